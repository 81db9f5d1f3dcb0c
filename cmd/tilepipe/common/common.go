// Package common holds helpers shared by the tilepipe subcommands.
package common

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"tilepipe/pkg/catalog"
	"tilepipe/pkg/config"
	"tilepipe/pkg/events"
	"tilepipe/pkg/logging"
	"tilepipe/pkg/tiles"
)

// Config returns the configuration loaded by the root command.
func Config(cmd *cobra.Command) *config.Config {
	return config.FromContext(cmd.Context())
}

// ParseZooms parses a comma separated list of zoom levels ("12,13,14")
// or an inclusive range ("12-14"). Order is preserved.
func ParseZooms(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if lo, hi, ok := strings.Cut(s, "-"); ok {
		from, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("%w: %q", tiles.ErrInvalidZoom, s)
		}
		to, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil || to < from || from < 0 || to > tiles.MaxZoom {
			return nil, fmt.Errorf("%w: %q", tiles.ErrInvalidZoom, s)
		}
		zooms := make([]int, 0, to-from+1)
		for z := from; z <= to; z++ {
			zooms = append(zooms, z)
		}
		return zooms, nil
	}
	var zooms []int
	for _, part := range strings.Split(s, ",") {
		z, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("%w: %q", tiles.ErrInvalidZoom, part)
		}
		zooms = append(zooms, z)
	}
	return zooms, nil
}

// Zooms returns the zoom levels requested with --zoom, falling back to
// the configured ones.
func Zooms(cmd *cobra.Command, flag string) ([]int, error) {
	value, err := cmd.Flags().GetString(flag)
	if err != nil {
		return nil, err
	}
	zooms, err := ParseZooms(value)
	if err != nil {
		return nil, err
	}
	if zooms == nil {
		zooms = Config(cmd).Tiles.Zooms
	}
	return zooms, nil
}

// Observers builds the progress observers attached to a tiling run: a
// progress bar on stderr, the run catalog and the event socket of a
// running server. The returned cleanup closes the catalog.
func Observers(cmd *cobra.Command, source string, zooms int) ([]tiles.Observer, func()) {
	cfg := Config(cmd)
	ctx := cmd.Context()
	observers := []tiles.Observer{NewProgress(cmd.ErrOrStderr(), zooms)}
	cleanup := func() {}

	store, err := catalog.Open(cfg.CatalogPath())
	if err != nil {
		logging.GetLogger(ctx).Warn("catalog unavailable, runs will not be recorded", "path", cfg.CatalogPath(), "error", err)
	} else {
		observers = append(observers, &catalog.Recorder{Store: store, Source: source})
		cleanup = func() {
			if err := store.Close(); err != nil {
				logging.GetLogger(ctx).Warn("failed to close catalog", "error", err)
			}
		}
	}
	observers = append(observers, &events.Notifier{Socket: cfg.SocketPath()})
	return observers, cleanup
}

// Progress renders one bar step per finished zoom level.
type Progress struct {
	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func NewProgress(w io.Writer, total int) *Progress {
	return &Progress{bar: NewBar(w, total, "tiles")}
}

// NewBar returns the progress bar style used by every subcommand.
func NewBar(w io.Writer, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(
		total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription(description),
		progressbar.OptionThrottle(200*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)
}

func (p *Progress) ZoomStarted(ctx context.Context, layer string, zoom int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bar.Describe(fmt.Sprintf("%s z%d", layer, zoom))
}

func (p *Progress) ZoomFinished(ctx context.Context, layer string, zoom int, err error) {
	if err != nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.bar.Add(1)
}
