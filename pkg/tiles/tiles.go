// Package tiles builds tile pyramids with an external tiling tool, one
// zoom level at a time.
package tiles

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tilepipe/pkg/driver/tiler"
	"tilepipe/pkg/logging"
)

// MaxZoom is the deepest zoom level accepted.
const MaxZoom = 30

// DefaultZoomLevels are generated when no zoom levels are given.
var DefaultZoomLevels = []int{12, 13, 14}

var (
	ErrInvalidLayer  = errors.New("invalid layer name")
	ErrInvalidZoom   = errors.New("invalid zoom level")
	ErrInvalidScheme = errors.New("invalid tile scheme")
)

// Scheme is the row numbering of generated tiles.
type Scheme string

const (
	// TMS numbers rows from the south; gdal2tiles' default.
	TMS Scheme = "tms"
	// XYZ numbers rows from the north, as web maps request them.
	XYZ Scheme = "xyz"
)

func ParseScheme(s string) (Scheme, error) {
	switch Scheme(strings.ToLower(strings.TrimSpace(s))) {
	case "", TMS:
		return TMS, nil
	case XYZ:
		return XYZ, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidScheme, s)
}

// Observer is told about the progress of a generation run.
type Observer interface {
	ZoomStarted(ctx context.Context, layer string, zoom int)
	// ZoomFinished is called with the tool error, or nil on success.
	ZoomFinished(ctx context.Context, layer string, zoom int, err error)
}

// Generator writes tiles under {TileDir}/{layer}/{zoom}.
type Generator struct {
	TileDir    string
	Scheme     Scheme
	Resampling string
	// TileDriver is the image format of the tiles, PNG when empty.
	TileDriver string
	Observers  []Observer
}

// Dir returns the output directory of one layer and zoom level.
func (g *Generator) Dir(layer string, zoom int) string {
	return filepath.Join(g.TileDir, layer, strconv.Itoa(zoom))
}

// EnsureDir creates the output directory of a layer and zoom level with
// its parents. It is safe to call repeatedly.
func (g *Generator) EnsureDir(layer string, zoom int) (string, error) {
	if err := ValidateLayer(layer); err != nil {
		return "", err
	}
	if err := validateZoom(zoom); err != nil {
		return "", err
	}
	dir := g.Dir(layer, zoom)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create tile directory: %w", err)
	}
	return dir, nil
}

// Generate tiles src for each zoom level in order. The first failing zoom
// level stops the run; directories of later levels are not created. A nil
// zooms slice means DefaultZoomLevels.
func (g *Generator) Generate(ctx context.Context, src, layer string, zooms []int) error {
	if zooms == nil {
		zooms = DefaultZoomLevels
	}
	if err := ValidateLayer(layer); err != nil {
		return err
	}
	if err := ValidateZooms(zooms); err != nil {
		return err
	}
	scheme := g.Scheme
	if scheme == "" {
		scheme = TMS
	}

	logger := logging.GetLogger(ctx)
	for _, zoom := range zooms {
		if err := ctx.Err(); err != nil {
			return err
		}
		dir, err := g.EnsureDir(layer, zoom)
		if err != nil {
			return err
		}
		for _, o := range g.Observers {
			o.ZoomStarted(ctx, layer, zoom)
		}
		logger.Info("generating tiles", "layer", layer, "zoom", zoom, "dir", dir)
		err = tiler.Tile(ctx, tiler.Request{
			Source:     src,
			OutputDir:  dir,
			Zoom:       zoom,
			XYZ:        scheme == XYZ,
			Resampling: g.Resampling,
			TileDriver: g.TileDriver,
		})
		for _, o := range g.Observers {
			o.ZoomFinished(ctx, layer, zoom, err)
		}
		if err != nil {
			return fmt.Errorf("zoom %d of layer %s: %w", zoom, layer, err)
		}
	}
	return nil
}

// GenerateXYZ tiles src into {tileDir}/{layer}/{zoom} with gdal2tiles defaults.
func GenerateXYZ(ctx context.Context, tileDir, src, layer string, zooms []int) error {
	g := &Generator{TileDir: tileDir}
	return g.Generate(ctx, src, layer, zooms)
}

// ValidateLayer checks that layer can be used as a single path segment.
func ValidateLayer(layer string) error {
	switch {
	case layer == "", layer == ".", layer == "..":
		return fmt.Errorf("%w: %q", ErrInvalidLayer, layer)
	case strings.ContainsAny(layer, `/\`), strings.ContainsRune(layer, 0):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidLayer, layer)
	}
	return nil
}

// ValidateZooms checks every zoom level before any work starts.
func ValidateZooms(zooms []int) error {
	if len(zooms) == 0 {
		return fmt.Errorf("%w: no zoom levels given", ErrInvalidZoom)
	}
	for _, z := range zooms {
		if err := validateZoom(z); err != nil {
			return err
		}
	}
	return nil
}

func validateZoom(z int) error {
	if z < 0 || z > MaxZoom {
		return fmt.Errorf("%w: %d not in 0..%d", ErrInvalidZoom, z, MaxZoom)
	}
	return nil
}
