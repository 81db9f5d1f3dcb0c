// Package source turns source references (paths or URLs) into local raster
// paths GDAL can open.
package source

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"tilepipe/pkg/provider"
)

var (
	ErrNotFound     = errors.New("source not found")
	ErrUnsupported  = errors.New("unsupported source reference")
	ErrEmptyArchive = errors.New("archive holds no raster")
)

// RasterExtensions are the members looked for inside archives.
var RasterExtensions = []string{".tif", ".tiff", ".hgt", ".img", ".vrt", ".nc", ".hdf", ".jp2"}

// Options control where and how sources are materialised.
type Options struct {
	// DataDir receives downloaded files.
	DataDir string
	// Hash verifies downloads, as "algo:digest" or a bare sha256 digest.
	Hash string
}

// Resolver materialises one kind of source reference as a local file.
type Resolver interface {
	provider.Provider
	Resolve(ctx context.Context, ref string, opts Options) (string, error)
}

// Resolve returns the GDAL-openable path of ref using the first resolver
// that detects it. Rasters inside zip archives are returned as /vsizip/ paths.
func Resolve(ctx context.Context, ref string, opts Options) (string, error) {
	r, ok, err := provider.First[Resolver](ctx, ref)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, ref)
	}
	path, err := r.Resolve(ctx, ref, opts)
	if err != nil {
		return "", err
	}
	return GDALPath(path)
}

// GDALPath addresses the first raster member of a zip archive through
// GDAL's /vsizip/ handler. Other paths are returned unchanged.
func GDALPath(path string) (string, error) {
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		return path, nil
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	defer zr.Close()
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if slices.Contains(RasterExtensions, strings.ToLower(filepath.Ext(f.Name))) {
			return "/vsizip/" + filepath.ToSlash(path) + "/" + f.Name, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrEmptyArchive, path)
}

// Stem returns the base name of path with archive and raster extensions
// removed, e.g. "N10E020.SRTMGL1.hgt.zip" gives "N10E020.SRTMGL1".
func Stem(path string) string {
	name := filepath.Base(filepath.ToSlash(path))
	for {
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".zip" && !slices.Contains(RasterExtensions, ext) {
			return name
		}
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
}
