package rasterinfo

import (
	"context"

	"tilepipe/pkg/driver"
	"tilepipe/pkg/raster"
)

// Driver reads raster header metadata.
type Driver interface {
	Inspect(ctx context.Context, path string) (*raster.Dataset, error)
}

// Inspect reads the metadata of the raster at path with the active driver.
func Inspect(ctx context.Context, path string) (*raster.Dataset, error) {
	d, err := driver.Get[Driver](ctx)
	if err != nil {
		return nil, err
	}
	return d.Inspect(ctx, path)
}
