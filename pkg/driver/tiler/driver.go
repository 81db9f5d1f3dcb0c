package tiler

import (
	"context"
	"errors"

	"tilepipe/pkg/driver"
)

// ErrUnsupported is returned when the installed tool cannot honour a request option.
var ErrUnsupported = errors.New("option not supported by tiling tool")

// Request asks for the tiles of a single zoom level.
type Request struct {
	Source    string
	OutputDir string
	Zoom      int
	// XYZ selects the XYZ (OSM/Google) row numbering instead of TMS.
	XYZ        bool
	Resampling string
	// TileDriver is the GDAL driver of the tile images (PNG when empty).
	TileDriver string
}

// Driver cuts a web mercator raster into map tiles.
type Driver interface {
	Tile(ctx context.Context, req Request) error
}

// Tile runs req with the active driver.
func Tile(ctx context.Context, req Request) error {
	d, err := driver.Get[Driver](ctx)
	if err != nil {
		return err
	}
	return d.Tile(ctx, req)
}
