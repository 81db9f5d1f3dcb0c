package gdal2tiles

import (
	"context"
	"fmt"
	"strconv"

	"tilepipe/pkg/config"
	"tilepipe/pkg/driver"
	execdriver "tilepipe/pkg/driver/exec"
	"tilepipe/pkg/driver/tiler"
	"tilepipe/pkg/semver"
)

const (
	// --xyz appeared in GDAL 3.1.
	minXYZVersion = "3.1"
	// --tiledriver appeared in GDAL 3.6.
	minTileDriverVersion = "3.6"
)

type Provider struct{}

func (p Provider) ID() string         { return "tiler_gdal2tiles" }
func (p Provider) Name() string       { return "gdal2tiles" }
func (p Provider) DefaultWeight() int { return driver.DefaultWeight }

func (p Provider) CheckCompatibility(ctx context.Context) error {
	tool := config.FromContext(ctx).Tools.Gdal2Tiles
	if _, err := execdriver.Which(ctx, tool); err != nil {
		return fmt.Errorf("%w: %w", driver.ErrIncompatible, err)
	}
	return nil
}

func (p Provider) New(ctx context.Context) (tiler.Driver, error) {
	tools := config.FromContext(ctx).Tools
	return &Driver{Tool: tools.Gdal2Tiles, VersionTool: tools.Gdalinfo}, nil
}

type Driver struct {
	Tool string
	// VersionTool is queried with --version to find the GDAL release.
	VersionTool string
}

func (d *Driver) Tile(ctx context.Context, req tiler.Request) error {
	if err := d.checkOptions(ctx, req); err != nil {
		return err
	}
	_, err := execdriver.CombinedOutput(ctx, d.Tool, Args(req)...)
	return err
}

func (d *Driver) checkOptions(ctx context.Context, req tiler.Request) error {
	if !req.XYZ && req.TileDriver == "" {
		return nil
	}
	out, err := execdriver.CombinedOutput(ctx, d.VersionTool, "--version")
	if err != nil {
		return fmt.Errorf("failed to query GDAL version: %w", err)
	}
	v, ok := semver.FromToolOutput(string(out))
	if !ok {
		return fmt.Errorf("unrecognised GDAL version output %q", out)
	}
	if req.XYZ && !v.AtLeast(minXYZVersion) {
		return fmt.Errorf("%w: --xyz needs GDAL %s, found %s", tiler.ErrUnsupported, minXYZVersion, v)
	}
	if req.TileDriver != "" && !v.AtLeast(minTileDriverVersion) {
		return fmt.Errorf("%w: --tiledriver needs GDAL %s, found %s", tiler.ErrUnsupported, minTileDriverVersion, v)
	}
	return nil
}

// Args builds the gdal2tiles argument list for a single zoom level with the
// HTML viewer disabled.
func Args(req tiler.Request) []string {
	args := []string{"-z", strconv.Itoa(req.Zoom), "-w", "none"}
	if req.XYZ {
		args = append(args, "--xyz")
	}
	if req.Resampling != "" {
		args = append(args, "-r", req.Resampling)
	}
	if req.TileDriver != "" {
		args = append(args, "--tiledriver", req.TileDriver)
	}
	return append(args, req.Source, req.OutputDir)
}

func init() {
	driver.Register[tiler.Driver](Provider{})
}
