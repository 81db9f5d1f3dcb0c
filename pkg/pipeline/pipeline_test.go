package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"tilepipe/pkg/catalog"
	"tilepipe/pkg/config"
	execdriver "tilepipe/pkg/driver/exec"
	"tilepipe/pkg/driver/rasterinfo"
	"tilepipe/pkg/logging"
	_ "tilepipe/pkg/provider/prelude"
	"tilepipe/pkg/raster/rastertest"
	"tilepipe/pkg/tiles"
	"tilepipe/pkg/warp"
)

func TestMain(m *testing.M) { rastertest.Main(m) }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	root := t.TempDir()
	cfg.TileDir = filepath.Join(root, "tiles")
	cfg.DataDir = filepath.Join(root, "data")
	return cfg
}

func writeSource(t *testing.T) string {
	t.Helper()
	info := rastertest.Geographic(orb.Bound{Min: orb.Point{0.001, 0.001}, Max: orb.Point{0.02, 0.02}}, 32, 32, 3)
	return rastertest.WriteRaster(t, filepath.Join(t.TempDir(), "Flood.Depth.tif"), info)
}

func TestProcess(t *testing.T) {
	rastertest.Install(t)
	cfg := testConfig(t)
	store, err := catalog.Open(cfg.CatalogPath())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	p, err := FromConfig(cfg, &catalog.Recorder{Store: store, Source: "flood"})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	res, err := p.Process(ctx, Request{Source: writeSource(t), Zooms: []int{12, 13}})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if res.Layer != "flood.depth" {
		t.Errorf("layer = %q, want flood.depth", res.Layer)
	}
	if want := filepath.Join(cfg.DataDir, "Flood.Depth"+WarpedSuffix); res.Warped != want {
		t.Errorf("warped = %q, want %q", res.Warped, want)
	}
	for _, z := range []string{"12", "13"} {
		if _, err := os.Stat(filepath.Join(cfg.TileDir, "flood.depth", z)); err != nil {
			t.Errorf("missing zoom directory %s: %v", z, err)
		}
	}

	// tiles are cut from the reprojected raster
	for _, call := range rastertest.Invocations(t, rastertest.Gdal2Tiles) {
		if src := call.Args[len(call.Args)-2]; src != res.Warped {
			t.Errorf("gdal2tiles read %q, want %q", src, res.Warped)
		}
	}

	layers, err := store.Layers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(layers) != 1 || len(layers[0].Zooms) != 2 {
		t.Errorf("unexpected catalog layers %+v", layers)
	}
}

func TestProcessStopsOnWarpFailure(t *testing.T) {
	rastertest.Install(t)
	t.Setenv(rastertest.EnvFailTool, rastertest.Gdalwarp)
	cfg := testConfig(t)
	p, err := FromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}

	_, err = p.Process(context.Background(), Request{Source: writeSource(t), Layer: "flood"})
	var exitErr *execdriver.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected *ExitError, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.TileDir, "flood")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("no tiles may be generated after a failed warp, stat err = %v", err)
	}
}

func TestFromConfigRejectsBadSettings(t *testing.T) {
	cfg := config.Default()
	cfg.Warp.Resampling = "sinc"
	if _, err := FromConfig(cfg); !errors.Is(err, warp.ErrUnknownResampling) {
		t.Errorf("expected ErrUnknownResampling, got %v", err)
	}

	cfg = config.Default()
	cfg.Tiles.Scheme = "quadkey"
	if _, err := FromConfig(cfg); !errors.Is(err, tiles.ErrInvalidScheme) {
		t.Errorf("expected ErrInvalidScheme, got %v", err)
	}
}

func containsPair(args []string, flag, value string) bool {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}

func TestProcessWritesGeoTIFFForOtherFormats(t *testing.T) {
	rastertest.Install(t)
	cfg := testConfig(t)
	p, err := FromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	info := rastertest.Geographic(orb.Bound{Min: orb.Point{20, 10}, Max: orb.Point{21, 11}}, 64, 64, 1)
	info.Driver = "SRTMHGT"
	info.BandTypes = []string{"Int16"}
	src := rastertest.WriteRaster(t, filepath.Join(t.TempDir(), "N10E020.hgt"), info)

	ctx := context.Background()
	res, err := p.Process(ctx, Request{Source: src, Zooms: []int{12}})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	calls := rastertest.Invocations(t, rastertest.Gdalwarp)
	if len(calls) != 1 || !containsPair(calls[0].Args, "-of", WarpedFormat) {
		t.Fatalf("expected gdalwarp -of %s, got %v", WarpedFormat, calls)
	}
	out, err := rasterinfo.Inspect(ctx, res.Warped)
	if err != nil {
		t.Fatal(err)
	}
	if out.Driver != WarpedFormat {
		t.Errorf("%s written with driver %s, want %s", res.Warped, out.Driver, WarpedFormat)
	}
}

func TestFromConfigKeepsConfiguredFormat(t *testing.T) {
	cfg := config.Default()
	cfg.Warp.OutputFormat = "COG"
	p, err := FromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if p.Reprojector.OutputFormat != "COG" {
		t.Errorf("output format = %q, want COG", p.Reprojector.OutputFormat)
	}
}

func TestGeneratorNormalizesResampling(t *testing.T) {
	cases := map[string]string{
		"":         "",
		"nearest":  "near",
		"Median":   "med",
		"bilinear": "bilinear",
	}
	for in, want := range cases {
		cfg := config.Default()
		cfg.Tiles.Resampling = in
		gen, err := GeneratorFromConfig(cfg)
		if err != nil {
			t.Fatalf("GeneratorFromConfig(%q): %v", in, err)
		}
		if gen.Resampling != want {
			t.Errorf("resampling %q became %q, want %q", in, gen.Resampling, want)
		}
	}
}

func TestProcessPassesNormalizedTileResampling(t *testing.T) {
	rastertest.Install(t)
	cfg := testConfig(t)
	cfg.Tiles.Resampling = "nearest"
	p, err := FromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Process(context.Background(), Request{Source: writeSource(t), Zooms: []int{12}}); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	calls := rastertest.Invocations(t, rastertest.Gdal2Tiles)
	if len(calls) != 1 || !containsPair(calls[0].Args, "-r", "near") {
		t.Errorf("expected gdal2tiles -r near, got %v", calls)
	}
}

func TestProcessLogsWithLayer(t *testing.T) {
	rastertest.Install(t)
	cfg := testConfig(t)
	p, err := FromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	ctx := logging.WithLogger(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)))

	if _, err := p.Process(ctx, Request{Source: writeSource(t), Zooms: []int{12}}); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, "msg=reprojecting") {
			if !strings.Contains(line, "layer=flood.depth") {
				t.Errorf("reprojection log lacks the layer: %s", line)
			}
			return
		}
	}
	t.Errorf("no reprojection log in %q", buf.String())
}
