package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "catalog.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func TestOpenIsRepeatable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	for i := 0; i < 2; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() #%d error = %v", i+1, err)
		}
		if err := s.Close(); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRunLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.StartRun(ctx, "roads", "roads.tif", 12)
	if err != nil {
		t.Fatal(err)
	}
	runs, err := s.Runs(ctx, "roads", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Status != StatusRunning || !runs[0].FinishedAt.IsZero() {
		t.Fatalf("unexpected runs after start: %+v", runs)
	}

	if err := s.FinishRun(ctx, id, errors.New("gdal2tiles exited with status 1")); err != nil {
		t.Fatal(err)
	}
	runs, _ = s.Runs(ctx, "", 10)
	if runs[0].Status != StatusFailed || runs[0].Error == "" || runs[0].FinishedAt.IsZero() {
		t.Errorf("unexpected run after failure: %+v", runs[0])
	}

	if err := s.FinishRun(ctx, 999, nil); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestLayersReportLatestSuccessfulZooms(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	record := func(layer string, zoom int, runErr error) {
		t.Helper()
		id, err := s.StartRun(ctx, layer, "src.tif", zoom)
		if err != nil {
			t.Fatal(err)
		}
		if err := s.FinishRun(ctx, id, runErr); err != nil {
			t.Fatal(err)
		}
	}
	record("roads", 12, nil)
	record("roads", 13, errors.New("boom"))
	record("roads", 14, errors.New("boom"))
	record("roads", 14, nil)
	record("flood", 3, nil)

	layers, err := s.Layers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(layers) != 2 {
		t.Fatalf("expected 2 layers, got %+v", layers)
	}
	roads := layers[1]
	if roads.Name != "roads" || roads.Runs != 4 || roads.Failures != 2 {
		t.Errorf("unexpected roads summary: %+v", roads)
	}
	if !reflect.DeepEqual(roads.Zooms, []int{12, 14}) {
		t.Errorf("roads zooms = %v, want [12 14]", roads.Zooms)
	}
}

func TestRecorder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	r := &Recorder{Store: s, Source: "dem.tif"}

	r.ZoomStarted(ctx, "elevation", 12)
	r.ZoomFinished(ctx, "elevation", 12, nil)
	r.ZoomStarted(ctx, "elevation", 13)
	r.ZoomFinished(ctx, "elevation", 13, errors.New("exit 1"))
	// unmatched finish is ignored
	r.ZoomFinished(ctx, "elevation", 14, nil)

	runs, err := s.Runs(ctx, "elevation", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Zoom != 13 || runs[0].Status != StatusFailed {
		t.Errorf("unexpected latest run %+v", runs[0])
	}
	if runs[1].Source != "dem.tif" || runs[1].Status != StatusSucceeded {
		t.Errorf("unexpected first run %+v", runs[1])
	}
}

func TestRecordPublication(t *testing.T) {
	s := openTestStore(t)
	err := s.RecordPublication(context.Background(), Publication{Layer: "roads", Bucket: "tiles", Objects: 42})
	if err != nil {
		t.Fatal(err)
	}
}
