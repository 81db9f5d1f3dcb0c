// Package catalog keeps a SQLite ledger of tiling runs and publications.
package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

var ErrRunNotFound = errors.New("run not found")

type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run is one invocation of the tiling tool for a layer and zoom level.
type Run struct {
	ID         int64     `json:"id"`
	Layer      string    `json:"layer"`
	Source     string    `json:"source"`
	Zoom       int       `json:"zoom"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Store is an open catalog database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the catalog at path and applies pending
// migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return err
	}
	drv, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to prepare catalog migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
	if err != nil {
		return fmt.Errorf("failed to prepare catalog migrations: %w", err)
	}
	// m.Close would close db as well.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to migrate catalog: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// StartRun records a running zoom level and returns its id.
func (s *Store) StartRun(ctx context.Context, layer, source string, zoom int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (layer, source, zoom, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		layer, source, zoom, StatusRunning, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to record run: %w", err)
	}
	return res.LastInsertId()
}

// FinishRun marks a run succeeded, or failed with runErr.
func (s *Store) FinishRun(ctx context.Context, id int64, runErr error) error {
	status, msg := StatusSucceeded, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, msg, s.now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to record run result: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	return nil
}

// Runs returns the most recent runs, newest first. An empty layer lists
// every layer; limit <= 0 means no limit.
func (s *Store) Runs(ctx context.Context, layer string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, layer, source, zoom, status, error, started_at, finished_at
		FROM runs
		WHERE ? = '' OR layer = ?
		ORDER BY id DESC
		LIMIT ?`, layer, layer, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			started  int64
			finished sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.Layer, &r.Source, &r.Zoom, &r.Status, &r.Error, &started, &finished); err != nil {
			return nil, err
		}
		r.StartedAt = time.UnixMilli(started)
		if finished.Valid {
			r.FinishedAt = time.UnixMilli(finished.Int64)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LayerSummary is the catalog view of one layer.
type LayerSummary struct {
	Name      string    `json:"name"`
	Zooms     []int     `json:"zooms"`
	Runs      int       `json:"runs"`
	Failures  int       `json:"failures"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Layers summarises every layer with at least one run. Zooms lists the
// levels whose latest run succeeded.
func (s *Store) Layers(ctx context.Context) ([]LayerSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT layer,
		       COUNT(*),
		       SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END),
		       MAX(COALESCE(finished_at, started_at))
		FROM runs
		GROUP BY layer
		ORDER BY layer`)
	if err != nil {
		return nil, fmt.Errorf("failed to query layers: %w", err)
	}
	var layers []LayerSummary
	for rows.Next() {
		var (
			l       LayerSummary
			updated int64
		)
		if err := rows.Scan(&l.Name, &l.Runs, &l.Failures, &updated); err != nil {
			rows.Close()
			return nil, err
		}
		l.UpdatedAt = time.UnixMilli(updated)
		l.Zooms = []int{}
		layers = append(layers, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range layers {
		zooms, err := s.completedZooms(ctx, layers[i].Name)
		if err != nil {
			return nil, err
		}
		layers[i].Zooms = zooms
	}
	return layers, nil
}

func (s *Store) completedZooms(ctx context.Context, layer string) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.zoom
		FROM runs r
		WHERE r.layer = ?
		  AND r.id = (SELECT MAX(id) FROM runs WHERE layer = r.layer AND zoom = r.zoom)
		  AND r.status = 'succeeded'
		ORDER BY r.zoom`, layer)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	zooms := []int{}
	for rows.Next() {
		var z int
		if err := rows.Scan(&z); err != nil {
			return nil, err
		}
		zooms = append(zooms, z)
	}
	return zooms, rows.Err()
}

// Publication records an upload of a layer to object storage.
type Publication struct {
	Layer       string    `json:"layer"`
	Bucket      string    `json:"bucket"`
	Prefix      string    `json:"prefix"`
	Objects     int       `json:"objects"`
	PublishedAt time.Time `json:"published_at"`
}

func (s *Store) RecordPublication(ctx context.Context, p Publication) error {
	if p.PublishedAt.IsZero() {
		p.PublishedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO publications (layer, bucket, prefix, objects, published_at) VALUES (?, ?, ?, ?, ?)`,
		p.Layer, p.Bucket, p.Prefix, p.Objects, p.PublishedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record publication: %w", err)
	}
	return nil
}
