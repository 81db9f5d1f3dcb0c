// Package warp reprojects rasters into Web Mercator.
package warp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"tilepipe/pkg/driver/rasterinfo"
	"tilepipe/pkg/driver/warper"
	"tilepipe/pkg/logging"
	"tilepipe/pkg/raster"
)

// WebMercator is the target coordinate reference system.
const (
	WebMercator     = "EPSG:3857"
	WebMercatorEPSG = 3857
)

var (
	ErrSourceNotFound    = errors.New("source raster not found")
	ErrSameFile          = errors.New("source and destination are the same file")
	ErrBandCountMismatch = errors.New("reprojected raster lost bands")
	ErrUnexpectedCRS     = errors.New("reprojected raster is not in web mercator")
	ErrUnexpectedGrid    = errors.New("reprojected raster does not match the requested grid")
)

// Reprojector writes Web Mercator copies of rasters.
type Reprojector struct {
	Resampling Resampling
	// OutputFormat is a GDAL driver short name. Empty keeps the source format.
	OutputFormat string
}

// Warp reprojects src into Web Mercator and writes the result to dst,
// keeping every band. dst is overwritten.
func (r Reprojector) Warp(ctx context.Context, src, dst string) error {
	logger := logging.GetLogger(ctx)

	resampling, err := ParseResampling(string(r.Resampling))
	if err != nil {
		return err
	}

	if !raster.IsVirtual(src) {
		if _, err := os.Stat(src); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("%w: %s", ErrSourceNotFound, src)
			}
			return err
		}
		if same, err := sameFile(src, dst); err != nil {
			return err
		} else if same {
			return fmt.Errorf("%w: %s", ErrSameFile, dst)
		}
	}

	ds, err := rasterinfo.Inspect(ctx, src)
	if err != nil {
		return err
	}
	tr, err := DefaultTransform(ds)
	if err != nil {
		return err
	}

	format := r.OutputFormat
	if format == "" {
		format = ds.Driver
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	logger.Info("reprojecting", "src", src, "dst", dst, "crs", ds.CRS, "bands", ds.BandCount(),
		"width", tr.Width, "height", tr.Height, "resampling", resampling)

	err = warper.Warp(ctx, warper.Request{
		Source:      src,
		Destination: dst,
		TargetCRS:   WebMercator,
		Bounds:      tr.Bounds,
		Width:       tr.Width,
		Height:      tr.Height,
		Resampling:  resampling.String(),
		Format:      format,
	})
	if err != nil {
		return err
	}

	out, err := rasterinfo.Inspect(ctx, dst)
	if err != nil {
		return fmt.Errorf("failed to read reprojected raster: %w", err)
	}
	if out.BandCount() != ds.BandCount() {
		return fmt.Errorf("%w: %s has %d bands, source has %d", ErrBandCountMismatch, dst, out.BandCount(), ds.BandCount())
	}
	if out.CRS.EPSG != WebMercatorEPSG {
		return fmt.Errorf("%w: %s reports %s", ErrUnexpectedCRS, dst, out.CRS)
	}
	if !sameGrid(out, tr) {
		return fmt.Errorf("%w: %s is %dx%d at %v, want %dx%d at %v", ErrUnexpectedGrid, dst,
			out.Width, out.Height, out.GeoTransform, tr.Width, tr.Height, tr.GeoTransform())
	}
	return nil
}

// sameGrid reports whether ds has the size and geotransform of tr, to a
// thousandth of a pixel.
func sameGrid(ds *raster.Dataset, tr Transform) bool {
	if !ds.HasGeoTransform || ds.Width != tr.Width || ds.Height != tr.Height {
		return false
	}
	tol := tr.PixelSize() / 1000
	want := tr.GeoTransform()
	for i := range want {
		if math.Abs(ds.GeoTransform[i]-want[i]) > tol {
			return false
		}
	}
	return true
}

// ToWebMercator reprojects src into dst with nearest neighbour resampling.
func ToWebMercator(ctx context.Context, src, dst string) error {
	return Reprojector{Resampling: Nearest}.Warp(ctx, src, dst)
}

func sameFile(a, b string) (bool, error) {
	sa, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	sb, err := os.Stat(b)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return os.SameFile(sa, sb), nil
}
