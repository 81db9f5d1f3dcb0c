package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"tilepipe/pkg/env"

	"github.com/BurntSushi/toml"
)

// FileName is the project-local configuration file looked up in the working directory.
const FileName = "tilepipe.toml"

type Config struct {
	// TileDir is the base directory of the tile pyramid: {tile_dir}/{layer}/{zoom}.
	TileDir string `toml:"tile_dir"`
	// DataDir holds downloaded sources and reprojected rasters.
	DataDir string `toml:"data_dir"`

	Warp    WarpConfig     `toml:"warp"`
	Tiles   TilesConfig    `toml:"tiles"`
	Tools   ToolsConfig    `toml:"tools"`
	Server  ServerConfig   `toml:"server"`
	Catalog CatalogConfig  `toml:"catalog"`
	S3      S3Config       `toml:"s3"`
	Drivers map[string]int `toml:"drivers"`
}

type WarpConfig struct {
	Resampling   string `toml:"resampling"`
	OutputFormat string `toml:"output_format"`
}

type TilesConfig struct {
	Zooms      []int  `toml:"zooms"`
	Scheme     string `toml:"scheme"`
	Resampling string `toml:"resampling"`
	TileDriver string `toml:"tile_driver"`
}

type ToolsConfig struct {
	Gdalinfo   string `toml:"gdalinfo"`
	Gdalwarp   string `toml:"gdalwarp"`
	Gdal2Tiles string `toml:"gdal2tiles"`
}

type ServerConfig struct {
	Addr   string `toml:"addr"`
	Socket string `toml:"socket"`
}

type CatalogConfig struct {
	Path string `toml:"path"`
}

type S3Config struct {
	Endpoint  string `toml:"endpoint"`
	Region    string `toml:"region"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		TileDir: "tiles",
		DataDir: "data",
		Warp: WarpConfig{
			Resampling: "near",
		},
		Tiles: TilesConfig{
			Zooms:  []int{12, 13, 14},
			Scheme: "tms",
		},
		Tools: ToolsConfig{
			Gdalinfo:   "gdalinfo",
			Gdalwarp:   "gdalwarp",
			Gdal2Tiles: "gdal2tiles.py",
		},
		Server: ServerConfig{
			Addr: ":8000",
		},
		S3: S3Config{
			Region: "us-east-1",
		},
		Drivers: map[string]int{},
	}
}

// Load reads the first configuration file found in $TILEPIPE_CONFIG,
// ./tilepipe.toml and ~/.config/tilepipe/settings.toml, then applies
// environment overrides. No file at all is not an error.
func Load() (*Config, error) {
	for _, path := range candidates() {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		return LoadFile(path)
	}
	cfg := Default()
	cfg.applyEnv()
	cfg.expand()
	return cfg, nil
}

// LoadFile reads a TOML file on top of the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		slog.Warn("unknown configuration keys", "file", path, "keys", undecoded)
	}
	slog.Debug("loaded config", "file", path)
	cfg.applyEnv()
	cfg.expand()
	return cfg, nil
}

func candidates() []string {
	var paths []string
	if p := os.Getenv("TILEPIPE_CONFIG"); p != "" {
		paths = append(paths, env.ExpandPath(p))
	}
	paths = append(paths, FileName)
	if dir, err := env.GetConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "settings.toml"))
	}
	return paths
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"TILEPIPE_TILE_DIR":      &c.TileDir,
		"TILEPIPE_DATA_DIR":      &c.DataDir,
		"TILEPIPE_ADDR":          &c.Server.Addr,
		"TILEPIPE_S3_ENDPOINT":   &c.S3.Endpoint,
		"TILEPIPE_S3_ACCESS_KEY": &c.S3.AccessKey,
		"TILEPIPE_S3_SECRET_KEY": &c.S3.SecretKey,
		"TILEPIPE_S3_BUCKET":     &c.S3.Bucket,
	}
	for key, target := range overrides {
		if v := os.Getenv(key); v != "" {
			*target = v
		}
	}
}

func (c *Config) expand() {
	c.TileDir = env.ExpandPath(c.TileDir)
	c.DataDir = env.ExpandPath(c.DataDir)
	c.Catalog.Path = env.ExpandPath(c.Catalog.Path)
	c.Server.Socket = env.ExpandPath(c.Server.Socket)
}

// CatalogPath returns the SQLite catalog location, defaulting to {data_dir}/catalog.db.
func (c *Config) CatalogPath() string {
	if c.Catalog.Path != "" {
		return c.Catalog.Path
	}
	return filepath.Join(c.DataDir, "catalog.db")
}

// SocketPath returns the unix socket the tile server accepts run events on.
func (c *Config) SocketPath() string {
	if c.Server.Socket != "" {
		return c.Server.Socket
	}
	return filepath.Join(env.GetRuntimeDir(), "tilepipe.sock")
}

type configKey struct{}

// WithContext stores cfg in ctx.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext returns the config stored in ctx, or the defaults.
func FromContext(ctx context.Context) *Config {
	if ctx != nil {
		if cfg, ok := ctx.Value(configKey{}).(*Config); ok && cfg != nil {
			return cfg
		}
	}
	return Default()
}
