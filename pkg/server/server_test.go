package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tilepipe/pkg/catalog"
	"tilepipe/pkg/tiles"
)

func writeTile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestServeTiles(t *testing.T) {
	tileDir := t.TempDir()
	// zoom 2, x 1, y 0 in XYZ is row 3 in TMS
	writeTile(t, filepath.Join(tileDir, "roads", "2", "2", "1", "3.png"), "nested")
	writeTile(t, filepath.Join(tileDir, "flood", "2", "1", "0.png"), "flat-xyz")
	writeTile(t, filepath.Join(tileDir, "roads", "2", "2", "1", "3.json"), "{}")

	tests := []struct {
		name   string
		scheme tiles.Scheme
		path   string
		status int
		body   string
	}{
		{"tms nested", tiles.TMS, "/tiles/roads/2/1/0.png", http.StatusOK, "nested"},
		{"xyz flat", tiles.XYZ, "/tiles/flood/2/1/0.png", http.StatusOK, "flat-xyz"},
		{"missing tile", tiles.TMS, "/tiles/roads/2/0/0.png", http.StatusNotFound, "Tile not found\n"},
		{"bad zoom", tiles.TMS, "/tiles/roads/x/1/0.png", http.StatusNotFound, "Tile not found\n"},
		{"wrong extension", tiles.TMS, "/tiles/roads/2/1/0.jpg", http.StatusNotFound, "Tile not found\n"},
		{"not a tile format", tiles.TMS, "/tiles/roads/2/1/0.json", http.StatusNotFound, "Tile not found\n"},
		{"traversal", tiles.TMS, "/tiles/..%2F..%2Fetc/2/1/0.png", http.StatusNotFound, "Tile not found\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tiles.Layout{TileDir: tileDir, Scheme: tt.scheme}, nil)
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if rec.Body.String() != tt.body {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.body)
			}
			if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
				t.Error("missing CORS header")
			}
			if tt.status == http.StatusOK && rec.Header().Get("Cache-Control") != CacheControl {
				t.Errorf("Cache-Control = %q", rec.Header().Get("Cache-Control"))
			}
		})
	}
}

func TestLayersMergesCatalog(t *testing.T) {
	tileDir := t.TempDir()
	writeTile(t, filepath.Join(tileDir, "roads", "12", "12", "0", "0.png"), "x")

	store, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()
	id, err := store.StartRun(ctx, "roads", "roads.tif", 12)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.FinishRun(ctx, id, nil); err != nil {
		t.Fatal(err)
	}

	s := New(tiles.Layout{TileDir: tileDir}, store)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/layers", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var layers []LayerInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &layers); err != nil {
		t.Fatal(err)
	}
	if len(layers) != 1 || layers[0].Name != "roads" || layers[0].Runs != 1 || len(layers[0].Zooms) != 1 {
		t.Errorf("unexpected layers %+v", layers)
	}
}

func TestServeOnUnixSocket(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "srv.sock")
	listeners, err := Listen("", socket)
	if err != nil {
		t.Fatal(err)
	}
	s := New(tiles.Layout{TileDir: t.TempDir()}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, s.Handler(), listeners) }()

	client := &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(ctx, "unix", socket)
		},
	}}
	resp, err := client.Get("http://unix/healthz")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if strings.TrimSpace(string(body)) != "ok" {
		t.Errorf("healthz = %q", body)
	}

	if _, err := Listen("", socket); err == nil {
		t.Error("expected a second listener on a live socket to fail")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
