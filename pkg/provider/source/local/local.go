package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tilepipe/pkg/env"
	"tilepipe/pkg/provider"
	"tilepipe/pkg/provider/source"
)

func init() {
	provider.Register[source.Resolver](&Resolver{})
}

// Resolver accepts plain paths and file:// URLs.
type Resolver struct{}

func (r *Resolver) Name() string { return "local" }

func (r *Resolver) Detect(ctx context.Context, ref string) (bool, error) {
	if strings.HasPrefix(ref, "file://") {
		return true, nil
	}
	return !strings.Contains(ref, "://"), nil
}

func (r *Resolver) Resolve(ctx context.Context, ref string, opts source.Options) (string, error) {
	path := env.ExpandPath(strings.TrimPrefix(ref, "file://"))
	if strings.HasPrefix(path, "/vsi") {
		// GDAL virtual file systems are opened by GDAL itself.
		return path, nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", source.ErrNotFound, path)
	}
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", source.ErrUnsupported, path)
	}
	return filepath.Abs(path)
}
