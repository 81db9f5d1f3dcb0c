package gdal2tiles

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/paulmach/orb"

	_ "tilepipe/pkg/driver/exec/native"
	"tilepipe/pkg/driver/tiler"
	"tilepipe/pkg/raster/rastertest"
)

func TestMain(m *testing.M) { rastertest.Main(m) }

func TestArgs(t *testing.T) {
	tests := []struct {
		name string
		req  tiler.Request
		want []string
	}{
		{
			name: "plain invocation",
			req:  tiler.Request{Source: "in.tif", OutputDir: "out/roads/12", Zoom: 12},
			want: []string{"-z", "12", "-w", "none", "in.tif", "out/roads/12"},
		},
		{
			name: "all options",
			req: tiler.Request{
				Source: "in.tif", OutputDir: "out", Zoom: 3,
				XYZ: true, Resampling: "near", TileDriver: "WEBP",
			},
			want: []string{"-z", "3", "-w", "none", "--xyz", "-r", "near", "--tiledriver", "WEBP", "in.tif", "out"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Args(tt.req); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Args() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTileVersionGate(t *testing.T) {
	rastertest.Install(t)
	dir := t.TempDir()
	src := rastertest.WriteRaster(t, filepath.Join(dir, "in.tif"),
		rastertest.Geographic(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{0.01, 0.01}}, 10, 10, 1))
	d := &Driver{Tool: rastertest.Gdal2Tiles, VersionTool: rastertest.Gdalinfo}
	ctx := context.Background()

	tests := []struct {
		name    string
		version string
		req     tiler.Request
		wantErr error
	}{
		{"xyz on old gdal", "2.4.4", tiler.Request{XYZ: true}, tiler.ErrUnsupported},
		{"xyz on new gdal", "3.1.0", tiler.Request{XYZ: true}, nil},
		{"tile driver on 3.5", "3.5.3", tiler.Request{TileDriver: "JPEG"}, tiler.ErrUnsupported},
		{"tile driver on 3.8", "3.8.4", tiler.Request{TileDriver: "JPEG"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(rastertest.EnvGDALVersion, tt.version)
			req := tt.req
			req.Source = src
			req.OutputDir = filepath.Join(dir, tt.name)
			req.Zoom = 10
			err := d.Tile(ctx, req)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestTileWithoutOptionsSkipsVersionCheck(t *testing.T) {
	rastertest.Install(t)
	dir := t.TempDir()
	src := rastertest.WriteRaster(t, filepath.Join(dir, "in.tif"),
		rastertest.Geographic(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{0.01, 0.01}}, 10, 10, 1))
	d := &Driver{Tool: rastertest.Gdal2Tiles, VersionTool: rastertest.Gdalinfo}

	if err := d.Tile(context.Background(), tiler.Request{Source: src, OutputDir: filepath.Join(dir, "out"), Zoom: 12}); err != nil {
		t.Fatalf("Tile() error = %v", err)
	}
	if calls := rastertest.Invocations(t, rastertest.Gdalinfo); len(calls) != 0 {
		t.Errorf("expected no version query, got %v", calls)
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "12")); err != nil {
		t.Errorf("expected tiles for zoom 12: %v", err)
	}
}
