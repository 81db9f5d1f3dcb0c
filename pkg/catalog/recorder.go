package catalog

import (
	"context"
	"sync"

	"tilepipe/pkg/logging"
)

// Recorder writes generation progress to the catalog. Catalog failures
// are logged and never stop tiling.
type Recorder struct {
	Store  *Store
	Source string

	mu  sync.Mutex
	ids map[runKey]int64
}

type runKey struct {
	layer string
	zoom  int
}

func (r *Recorder) ZoomStarted(ctx context.Context, layer string, zoom int) {
	id, err := r.Store.StartRun(ctx, layer, r.Source, zoom)
	if err != nil {
		logging.GetLogger(ctx).Warn("failed to record run start", "layer", layer, "zoom", zoom, "error", err)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ids == nil {
		r.ids = map[runKey]int64{}
	}
	r.ids[runKey{layer, zoom}] = id
}

func (r *Recorder) ZoomFinished(ctx context.Context, layer string, zoom int, runErr error) {
	r.mu.Lock()
	id, ok := r.ids[runKey{layer, zoom}]
	delete(r.ids, runKey{layer, zoom})
	r.mu.Unlock()
	if !ok {
		return
	}
	// The run may have been cancelled; the result is still worth keeping.
	if err := r.Store.FinishRun(context.WithoutCancel(ctx), id, runErr); err != nil {
		logging.GetLogger(ctx).Warn("failed to record run result", "layer", layer, "zoom", zoom, "error", err)
	}
}
