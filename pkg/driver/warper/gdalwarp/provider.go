package gdalwarp

import (
	"context"
	"fmt"
	"strconv"

	"tilepipe/pkg/config"
	"tilepipe/pkg/driver"
	execdriver "tilepipe/pkg/driver/exec"
	"tilepipe/pkg/driver/warper"
)

type Provider struct{}

func (p Provider) ID() string         { return "warper_gdalwarp" }
func (p Provider) Name() string       { return "gdalwarp" }
func (p Provider) DefaultWeight() int { return driver.DefaultWeight }

func (p Provider) CheckCompatibility(ctx context.Context) error {
	tool := config.FromContext(ctx).Tools.Gdalwarp
	if _, err := execdriver.Which(ctx, tool); err != nil {
		return fmt.Errorf("%w: %w", driver.ErrIncompatible, err)
	}
	return nil
}

func (p Provider) New(ctx context.Context) (warper.Driver, error) {
	return &Driver{Tool: config.FromContext(ctx).Tools.Gdalwarp}, nil
}

type Driver struct {
	Tool string
}

func (d *Driver) Warp(ctx context.Context, req warper.Request) error {
	_, err := execdriver.CombinedOutput(ctx, d.Tool, Args(req)...)
	return err
}

// Args builds the gdalwarp argument list for req.
func Args(req warper.Request) []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	args := []string{"-overwrite", "-t_srs", req.TargetCRS}
	if !req.Bounds.IsZero() {
		args = append(args, "-te",
			f(req.Bounds.Min[0]), f(req.Bounds.Min[1]),
			f(req.Bounds.Max[0]), f(req.Bounds.Max[1]))
	}
	if req.Width > 0 && req.Height > 0 {
		args = append(args, "-ts", strconv.Itoa(req.Width), strconv.Itoa(req.Height))
	}
	if req.Resampling != "" {
		args = append(args, "-r", req.Resampling)
	}
	if req.Format != "" {
		args = append(args, "-of", req.Format)
	}
	return append(args, req.Source, req.Destination)
}

func init() {
	driver.Register[warper.Driver](Provider{})
}
