package mosaic

import (
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	_ "tilepipe/pkg/driver/prelude"
	"tilepipe/pkg/raster/rastertest"
	"tilepipe/pkg/tiles"
)

func TestMain(m *testing.M) { rastertest.Main(m) }

func generate(t *testing.T, scheme tiles.Scheme) (tiles.Layout, orb.Bound) {
	t.Helper()
	rastertest.Install(t)
	extent := orb.Bound{Min: orb.Point{0.001, 0.001}, Max: orb.Point{0.06, 0.04}}
	src := rastertest.WriteRaster(t, filepath.Join(t.TempDir(), "src.tif"), rastertest.Geographic(extent, 64, 64, 1))
	tileDir := t.TempDir()
	g := &tiles.Generator{TileDir: tileDir, Scheme: scheme}
	if err := g.Generate(context.Background(), src, "roads", []int{13}); err != nil {
		t.Fatal(err)
	}
	return tiles.Layout{TileDir: tileDir, Scheme: scheme}, extent
}

func TestBuildPlacesTilesInMapOrder(t *testing.T) {
	for _, scheme := range []tiles.Scheme{tiles.TMS, tiles.XYZ} {
		t.Run(string(scheme), func(t *testing.T) {
			layout, extent := generate(t, scheme)
			m, err := Build(layout, "roads", 13, Options{MaxSize: -1})
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}

			topLeft := maptile.At(orb.Point{extent.Min[0], extent.Max[1]}, 13)
			bottomRight := maptile.At(orb.Point{extent.Max[0], extent.Min[1]}, 13)
			cols := int(bottomRight.X-topLeft.X) + 1
			rows := int(bottomRight.Y-topLeft.Y) + 1
			if m.Tiles != cols*rows {
				t.Errorf("tiles = %d, want %d", m.Tiles, cols*rows)
			}
			b := m.Image.Bounds()
			if b.Dx() != cols*256 || b.Dy() != rows*256 {
				t.Fatalf("mosaic is %dx%d, want %dx%d", b.Dx(), b.Dy(), cols*256, rows*256)
			}

			// the north-west tile lands in the top-left corner
			got := color.NRGBAModel.Convert(m.Image.At(10, 10)).(color.NRGBA)
			if want := rastertest.TileColor(topLeft); got != want {
				t.Errorf("top-left pixel = %v, want %v", got, want)
			}
			got = color.NRGBAModel.Convert(m.Image.At(b.Dx()-10, b.Dy()-10)).(color.NRGBA)
			if want := rastertest.TileColor(bottomRight); got != want {
				t.Errorf("bottom-right pixel = %v, want %v", got, want)
			}

			if !m.Bounds.Contains(extent.Center()) {
				t.Errorf("bounds %v do not cover %v", m.Bounds, extent)
			}
		})
	}
}

func TestBuildDownscales(t *testing.T) {
	layout, _ := generate(t, tiles.TMS)
	m, err := Build(layout, "roads", 13, Options{MaxSize: 100})
	if err != nil {
		t.Fatal(err)
	}
	b := m.Image.Bounds()
	if max(b.Dx(), b.Dy()) != 100 {
		t.Errorf("longest side = %d, want 100", max(b.Dx(), b.Dy()))
	}

	out := filepath.Join(t.TempDir(), "preview.png")
	if err := m.Save(out); err != nil {
		t.Fatal(err)
	}
	if _, err := imaging.Open(out); err != nil {
		t.Errorf("saved mosaic unreadable: %v", err)
	}
}

func TestBuildWithoutTiles(t *testing.T) {
	_, err := Build(tiles.Layout{TileDir: t.TempDir()}, "roads", 13, Options{})
	if !errors.Is(err, ErrNoTiles) {
		t.Errorf("expected ErrNoTiles, got %v", err)
	}
}

func TestBuildSparseRangeRespectsMaxSize(t *testing.T) {
	tileDir := t.TempDir()
	for _, x := range []string{"0", "16383"} {
		dir := filepath.Join(tileDir, "roads", "14", x)
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
		tile := imaging.New(256, 256, color.NRGBA{R: 200, A: 255})
		if err := imaging.Save(tile, filepath.Join(dir, "6000.png")); err != nil {
			t.Fatal(err)
		}
	}
	layout := tiles.Layout{TileDir: tileDir, Scheme: tiles.XYZ}

	m, err := Build(layout, "roads", 14, Options{MaxSize: 4096})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	b := m.Image.Bounds()
	if b.Dx() != 4096 || b.Dy() < 1 || b.Dy() > 4096 {
		t.Errorf("mosaic is %dx%d, want 4096 wide", b.Dx(), b.Dy())
	}
	if m.Tiles != 2 {
		t.Errorf("tiles = %d, want 2", m.Tiles)
	}
	if got := color.NRGBAModel.Convert(m.Image.At(0, 0)).(color.NRGBA); got.A == 0 {
		t.Errorf("left tile missing from the scaled mosaic: %v", got)
	}
}
