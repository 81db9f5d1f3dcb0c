package warper

import (
	"context"

	"tilepipe/pkg/driver"

	"github.com/paulmach/orb"
)

// Request describes one reprojection. Bounds are in TargetCRS units and,
// together with Width and Height, pin the destination grid.
type Request struct {
	Source      string
	Destination string
	TargetCRS   string
	Bounds      orb.Bound
	Width       int
	Height      int
	Resampling  string
	// Format is the GDAL driver short name of the output; empty lets the tool guess.
	Format string
}

// Driver writes a reprojected copy of a raster.
type Driver interface {
	Warp(ctx context.Context, req Request) error
}

// Warp runs req with the active driver.
func Warp(ctx context.Context, req Request) error {
	d, err := driver.Get[Driver](ctx)
	if err != nil {
		return err
	}
	return d.Warp(ctx, req)
}
