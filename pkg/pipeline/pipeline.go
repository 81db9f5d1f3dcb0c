// Package pipeline chains source resolution, reprojection and tiling.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"tilepipe/pkg/config"
	"tilepipe/pkg/logging"
	"tilepipe/pkg/provider/source"
	"tilepipe/pkg/tiles"
	"tilepipe/pkg/warp"
)

// WarpedSuffix names reprojected rasters in the data directory.
const WarpedSuffix = ".webmerc.tif"

// WarpedFormat is the GDAL driver the pipeline writes WarpedSuffix files with.
const WarpedFormat = "GTiff"

type Pipeline struct {
	DataDir     string
	Reprojector warp.Reprojector
	Generator   *tiles.Generator
}

type Request struct {
	// Source is a path or URL.
	Source string
	// Hash verifies a downloaded source.
	Hash string
	// Layer defaults to the lower-cased source stem.
	Layer string
	// Zooms defaults to the generator's default levels.
	Zooms []int
}

type Result struct {
	Source string
	Warped string
	Layer  string
	Zooms  []int
}

// FromConfig builds a pipeline from configuration. Observers are attached
// to the tile generator.
func FromConfig(cfg *config.Config, observers ...tiles.Observer) (*Pipeline, error) {
	resampling, err := warp.ParseResampling(cfg.Warp.Resampling)
	if err != nil {
		return nil, err
	}
	gen, err := GeneratorFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	gen.Observers = observers
	format := cfg.Warp.OutputFormat
	if format == "" {
		format = WarpedFormat
	}
	return &Pipeline{
		DataDir:     cfg.DataDir,
		Reprojector: warp.Reprojector{Resampling: resampling, OutputFormat: format},
		Generator:   gen,
	}, nil
}

// GeneratorFromConfig builds the tile generator described by cfg.
func GeneratorFromConfig(cfg *config.Config) (*tiles.Generator, error) {
	scheme, err := tiles.ParseScheme(cfg.Tiles.Scheme)
	if err != nil {
		return nil, err
	}
	var resampling string
	if cfg.Tiles.Resampling != "" {
		r, err := warp.ParseResampling(cfg.Tiles.Resampling)
		if err != nil {
			return nil, err
		}
		resampling = r.String()
	}
	return &tiles.Generator{
		TileDir:    cfg.TileDir,
		Scheme:     scheme,
		Resampling: resampling,
		TileDriver: cfg.Tiles.TileDriver,
	}, nil
}

// Process resolves req.Source, reprojects it to {DataDir}/{stem}.webmerc.tif
// and tiles the result.
func (p *Pipeline) Process(ctx context.Context, req Request) (*Result, error) {
	logger := logging.GetLogger(ctx)

	src, err := source.Resolve(ctx, req.Source, source.Options{DataDir: p.DataDir, Hash: req.Hash})
	if err != nil {
		return nil, err
	}
	stem := source.Stem(src)
	layer := req.Layer
	if layer == "" {
		layer = strings.ToLower(stem)
	}
	if err := tiles.ValidateLayer(layer); err != nil {
		return nil, err
	}
	zooms := req.Zooms
	if zooms == nil {
		zooms = tiles.DefaultZoomLevels
	}
	if err := tiles.ValidateZooms(zooms); err != nil {
		return nil, err
	}

	logger = logger.With("layer", layer)
	ctx = logging.WithLogger(ctx, logger)

	warped := filepath.Join(p.DataDir, stem+WarpedSuffix)
	logger.Info("processing source", "source", src, "warped", warped)

	if err := p.Reprojector.Warp(ctx, src, warped); err != nil {
		return nil, fmt.Errorf("failed to reproject %s: %w", src, err)
	}
	if err := p.Generator.Generate(ctx, warped, layer, zooms); err != nil {
		return nil, err
	}
	return &Result{Source: src, Warped: warped, Layer: layer, Zooms: zooms}, nil
}
