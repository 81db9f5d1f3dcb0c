// Package mosaic stitches the tiles of one zoom level into a single image
// for visual checks.
package mosaic

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/disintegration/imaging"
	"github.com/paulmach/orb"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"tilepipe/pkg/tiles"
)

var ErrNoTiles = errors.New("no tiles to stitch")

// DefaultMaxSize caps the longest side of a mosaic in pixels.
const DefaultMaxSize = 4096

type Options struct {
	// MaxSize downscales the result so its longest side fits; 0 means
	// DefaultMaxSize and a negative value keeps full resolution.
	MaxSize int
}

// Mosaic is a stitched zoom level.
type Mosaic struct {
	Image image.Image
	// Bounds is the longitude/latitude extent covered by Image.
	Bounds orb.Bound
	Tiles  int
}

// Build stitches every tile of layer at zoom. Missing tiles inside the
// covered range are left transparent.
func Build(layout tiles.Layout, layer string, zoom int, opts Options) (*Mosaic, error) {
	entries, err := layout.Tiles(layer, zoom)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s zoom %d", ErrNoTiles, layer, zoom)
	}

	minX, minY := entries[0].Tile.X, entries[0].Tile.Y
	maxX, maxY := minX, minY
	bounds := entries[0].Tile.Bound()
	for _, e := range entries[1:] {
		minX, maxX = min(minX, e.Tile.X), max(maxX, e.Tile.X)
		minY, maxY = min(minY, e.Tile.Y), max(maxY, e.Tile.Y)
		bounds = bounds.Union(e.Tile.Bound())
	}

	first, err := imaging.Open(entries[0].Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tile %s: %w", entries[0].Path, err)
	}
	tw, th := first.Bounds().Dx(), first.Bounds().Dy()
	cols, rows := int(maxX-minX+1), int(maxY-minY+1)

	// Tiles are scaled straight into the output so a sparse range never
	// needs a full resolution canvas.
	w, h, scale := fit(cols*tw, rows*th, opts.maxSize())
	dst := imaging.New(w, h, image.Transparent)
	for i, e := range entries {
		img := first
		if i > 0 {
			if img, err = imaging.Open(e.Path); err != nil {
				return nil, fmt.Errorf("failed to read tile %s: %w", e.Path, err)
			}
		}
		x, y := int(e.Tile.X-minX)*tw, int(e.Tile.Y-minY)*th
		if scale == 1 {
			off := image.Pt(x, y)
			draw.Draw(dst, img.Bounds().Sub(img.Bounds().Min).Add(off), img, img.Bounds().Min, draw.Over)
			continue
		}
		r := image.Rect(
			int(float64(x)*scale), int(float64(y)*scale),
			int(float64(x+tw)*scale), int(float64(y+th)*scale),
		)
		if r.Empty() {
			r.Max = r.Min.Add(image.Pt(1, 1))
		}
		draw.CatmullRom.Scale(dst, r, img, img.Bounds(), draw.Over, nil)
	}
	slog.Debug("stitched tiles", "layer", layer, "zoom", zoom, "tiles", len(entries), "cols", cols, "rows", rows, "scale", scale)

	return &Mosaic{Image: dst, Bounds: bounds, Tiles: len(entries)}, nil
}

func (o Options) maxSize() int {
	if o.MaxSize == 0 {
		return DefaultMaxSize
	}
	return o.MaxSize
}

// fit returns the output size for a w x h mosaic whose longest side must
// not exceed maxSize, and the scale factor applied.
func fit(w, h, maxSize int) (int, int, float64) {
	if maxSize < 0 || (w <= maxSize && h <= maxSize) {
		return w, h, 1
	}
	if w >= h {
		scale := float64(maxSize) / float64(w)
		return maxSize, max(int(float64(h)*scale+0.5), 1), scale
	}
	scale := float64(maxSize) / float64(h)
	return max(int(float64(w)*scale+0.5), 1), maxSize, scale
}

// Save writes m to path in the format implied by its extension.
func (m *Mosaic) Save(path string) error {
	return imaging.Save(m.Image, path)
}
