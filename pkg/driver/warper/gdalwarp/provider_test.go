package gdalwarp

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/paulmach/orb"

	_ "tilepipe/pkg/driver/exec/native"
	"tilepipe/pkg/driver/warper"
	"tilepipe/pkg/raster/rastertest"
)

func TestMain(m *testing.M) { rastertest.Main(m) }

func TestArgs(t *testing.T) {
	tests := []struct {
		name string
		req  warper.Request
		want []string
	}{
		{
			name: "target only",
			req:  warper.Request{Source: "a.tif", Destination: "b.tif", TargetCRS: "EPSG:3857"},
			want: []string{"-overwrite", "-t_srs", "EPSG:3857", "a.tif", "b.tif"},
		},
		{
			name: "pinned grid",
			req: warper.Request{
				Source: "a.tif", Destination: "b.tif", TargetCRS: "EPSG:3857",
				Bounds:     orb.Bound{Min: orb.Point{0, -10.5}, Max: orb.Point{100.25, 0}},
				Width:      10,
				Height:     20,
				Resampling: "near",
				Format:     "GTiff",
			},
			want: []string{
				"-overwrite", "-t_srs", "EPSG:3857",
				"-te", "0", "-10.5", "100.25", "0",
				"-ts", "10", "20",
				"-r", "near",
				"-of", "GTiff",
				"a.tif", "b.tif",
			},
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

func TestWarpInvokesTool(t *testing.T) {
	rastertest.Install(t)
	dir := t.TempDir()
	src := rastertest.WriteRaster(t, filepath.Join(dir, "src.tif"),
		rastertest.Geographic(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}, 10, 10, 1))
	dst := filepath.Join(dir, "dst.tif")

	d := &Driver{Tool: rastertest.Gdalwarp}
	req := warper.Request{Source: src, Destination: dst, TargetCRS: "EPSG:3857", Width: 10, Height: 10}
	if err := d.Warp(context.Background(), req); err != nil {
		t.Fatalf("Warp() error = %v", err)
	}

	calls := rastertest.Invocations(t, rastertest.Gdalwarp)
	if len(calls) != 1 {
		t.Fatalf("expected one gdalwarp call, got %d", len(calls))
	}
	if !reflect.DeepEqual(calls[0].Args, Args(req)) {
		t.Errorf("gdalwarp args = %v, want %v", calls[0].Args, Args(req))
	}
}
