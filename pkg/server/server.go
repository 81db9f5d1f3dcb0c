// Package server serves generated tiles, the layer list and run events.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb/maptile"

	"tilepipe/pkg/catalog"
	"tilepipe/pkg/events"
	"tilepipe/pkg/tiles"
)

// CacheControl is sent with every tile.
const CacheControl = "public, max-age=86400"

type Server struct {
	Layout tiles.Layout
	// Store is optional; without it /layers only reports the filesystem.
	Store *catalog.Store
	Hub   *events.Hub
}

func New(layout tiles.Layout, store *catalog.Store) *Server {
	return &Server{Layout: layout, Store: store, Hub: events.NewHub()}
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tiles/{layer}/{z}/{x}/{file}", s.handleTile)
	mux.HandleFunc("GET /layers", s.handleLayers)
	mux.Handle("GET /ws", s.Hub)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})
	return logRequests(mux)
}

func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	layer := r.PathValue("layer")
	z, errZ := strconv.ParseUint(r.PathValue("z"), 10, 32)
	x, errX := strconv.ParseUint(r.PathValue("x"), 10, 32)
	row, ext, _ := strings.Cut(r.PathValue("file"), ".")
	y, errY := strconv.ParseUint(row, 10, 32)
	if errZ != nil || errX != nil || errY != nil || z > tiles.MaxZoom {
		http.Error(w, "Tile not found", http.StatusNotFound)
		return
	}

	path, err := s.Layout.Find(layer, maptile.New(uint32(x), uint32(y), maptile.Zoom(z)), ext)
	if err != nil {
		if !errors.Is(err, tiles.ErrTileNotFound) && !errors.Is(err, tiles.ErrInvalidLayer) {
			slog.Warn("tile lookup failed", "layer", layer, "error", err)
		}
		http.Error(w, "Tile not found", http.StatusNotFound)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		http.Error(w, "Tile not found", http.StatusNotFound)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		http.Error(w, "Tile not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Cache-Control", CacheControl)
	http.ServeContent(w, r, path, info.ModTime(), f)
}

// LayerInfo is one entry of GET /layers.
type LayerInfo struct {
	Name      string    `json:"name"`
	Zooms     []int     `json:"zooms"`
	Runs      int       `json:"runs"`
	Failures  int       `json:"failures"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

func (s *Server) handleLayers(w http.ResponseWriter, r *http.Request) {
	layers, err := s.Layers(r.Context())
	if err != nil {
		slog.Error("failed to list layers", "error", err)
		http.Error(w, "failed to list layers", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(layers)
}

// Layers merges the layer directories on disk with the catalog history.
func (s *Server) Layers(ctx context.Context) ([]LayerInfo, error) {
	onDisk, err := s.Layout.Layers()
	if err != nil {
		return nil, err
	}
	out := make([]LayerInfo, 0, len(onDisk))
	index := map[string]int{}
	for _, l := range onDisk {
		index[l.Name] = len(out)
		out = append(out, LayerInfo{Name: l.Name, Zooms: l.Zooms})
	}
	if s.Store == nil {
		return out, nil
	}
	summaries, err := s.Store.Layers(ctx)
	if err != nil {
		return nil, err
	}
	for _, sum := range summaries {
		i, ok := index[sum.Name]
		if !ok {
			// catalogued but removed from disk
			continue
		}
		out[i].Runs = sum.Runs
		out[i].Failures = sum.Failures
		out[i].UpdatedAt = sum.UpdatedAt
	}
	return out, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController and the websocket upgrader reach
// the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("http", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}
