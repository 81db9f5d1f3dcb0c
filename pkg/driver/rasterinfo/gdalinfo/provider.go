package gdalinfo

import (
	"context"
	"fmt"

	"tilepipe/pkg/config"
	"tilepipe/pkg/driver"
	execdriver "tilepipe/pkg/driver/exec"
	"tilepipe/pkg/driver/rasterinfo"
	"tilepipe/pkg/raster"
)

type Provider struct{}

func (p Provider) ID() string         { return "rasterinfo_gdalinfo" }
func (p Provider) Name() string       { return "gdalinfo" }
func (p Provider) DefaultWeight() int { return driver.DefaultWeight }

func (p Provider) CheckCompatibility(ctx context.Context) error {
	tool := config.FromContext(ctx).Tools.Gdalinfo
	if _, err := execdriver.Which(ctx, tool); err != nil {
		return fmt.Errorf("%w: %w", driver.ErrIncompatible, err)
	}
	return nil
}

func (p Provider) New(ctx context.Context) (rasterinfo.Driver, error) {
	return &Driver{Tool: config.FromContext(ctx).Tools.Gdalinfo}, nil
}

type Driver struct {
	Tool string
}

func (d *Driver) Inspect(ctx context.Context, path string) (*raster.Dataset, error) {
	out, err := execdriver.Output(ctx, d.Tool, "-json", path)
	if err != nil {
		return nil, fmt.Errorf("failed to read raster %s: %w", path, err)
	}
	return raster.Decode(path, out)
}

func init() {
	driver.Register[rasterinfo.Driver](Provider{})
}
