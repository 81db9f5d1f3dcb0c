package tiles

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"

	"tilepipe/pkg/catalog"
	"tilepipe/pkg/config"
	_ "tilepipe/pkg/driver/prelude"
	"tilepipe/pkg/raster/rastertest"
)

func TestMain(m *testing.M) { rastertest.Main(m) }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.TileDir = filepath.Join(t.TempDir(), "tiles")
	cfg.DataDir = t.TempDir()
	cfg.Server.Socket = filepath.Join(t.TempDir(), "absent.sock")
	return cfg
}

func run(t *testing.T, cfg *config.Config, args ...string) error {
	t.Helper()
	cmd := GetCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(config.WithContext(context.Background(), cfg))
}

func TestTilesCommand(t *testing.T) {
	rastertest.Install(t)
	cfg := testConfig(t)
	info := rastertest.Geographic(orb.Bound{Min: orb.Point{0.001, 0.001}, Max: orb.Point{0.02, 0.02}}, 32, 32, 1)
	src := rastertest.WriteRaster(t, filepath.Join(t.TempDir(), "roads.webmerc.tif"), info)

	if err := run(t, cfg, src, "--layer", "roads", "--zoom", "12,13"); err != nil {
		t.Fatalf("tiles: %v", err)
	}
	for _, z := range []string{"12", "13"} {
		if _, err := os.Stat(filepath.Join(cfg.TileDir, "roads", z)); err != nil {
			t.Errorf("zoom %s not generated: %v", z, err)
		}
	}

	store, err := catalog.Open(cfg.CatalogPath())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	runs, err := store.Runs(context.Background(), "roads", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("recorded %d runs, want 2", len(runs))
	}
	for _, r := range runs {
		if r.Status != catalog.StatusSucceeded {
			t.Errorf("run %d status %s", r.ID, r.Status)
		}
	}
}

func TestTilesCommandRequiresLayer(t *testing.T) {
	cfg := testConfig(t)
	if err := run(t, cfg, "whatever.tif"); err == nil {
		t.Fatal("expected an error without --layer")
	}
}
