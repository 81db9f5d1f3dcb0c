package tiles

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/paulmach/orb/maptile"
)

var ErrTileNotFound = errors.New("tile not found")

// Extensions are the tile image formats looked up, in order.
var Extensions = []string{"png", "jpg", "webp"}

// Layout locates generated tiles on disk.
//
// gdal2tiles writes {zoom}/{x}/{row}.{ext} inside its output directory, so a
// tile of zoom z lands in {TileDir}/{layer}/{z}/{z}/{x}. Trees copied flat
// to {TileDir}/{layer}/{z}/{x} are found as well.
type Layout struct {
	TileDir string
	Scheme  Scheme
}

// Row returns the file row of tile t.
func (l Layout) Row(t maptile.Tile) uint32 {
	if l.Scheme == XYZ {
		return t.Y
	}
	return (1 << t.Z) - 1 - t.Y
}

// TileFromRow converts a file row back to XYZ numbering.
func (l Layout) TileFromRow(x, row uint32, z maptile.Zoom) maptile.Tile {
	if l.Scheme == XYZ {
		return maptile.New(x, row, z)
	}
	return maptile.New(x, (1<<z)-1-row, z)
}

// ZoomDirs returns the directories that may hold the {x} columns of a zoom level.
func (l Layout) ZoomDirs(layer string, zoom int) []string {
	base := filepath.Join(l.TileDir, layer, strconv.Itoa(zoom))
	return []string{filepath.Join(base, strconv.Itoa(zoom)), base}
}

// Find returns the file of tile t, which uses XYZ numbering. ext restricts
// the lookup to one of Extensions; empty tries them all.
func (l Layout) Find(layer string, t maptile.Tile, ext string) (string, error) {
	if err := ValidateLayer(layer); err != nil {
		return "", err
	}
	if int(t.Z) > MaxZoom || t.X >= 1<<t.Z || t.Y >= 1<<t.Z {
		return "", fmt.Errorf("%w: %d/%d/%d", ErrTileNotFound, t.Z, t.X, t.Y)
	}
	exts := Extensions
	if ext != "" {
		ext = strings.ToLower(ext)
		if !slices.Contains(Extensions, ext) {
			return "", fmt.Errorf("%w: unsupported format %q", ErrTileNotFound, ext)
		}
		exts = []string{ext}
	}
	row := strconv.FormatUint(uint64(l.Row(t)), 10)
	col := strconv.FormatUint(uint64(t.X), 10)
	for _, dir := range l.ZoomDirs(layer, int(t.Z)) {
		for _, e := range exts {
			path := filepath.Join(dir, col, row+"."+e)
			if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
				return path, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s %d/%d/%d", ErrTileNotFound, layer, t.Z, t.X, t.Y)
}

// Entry is a tile file found on disk.
type Entry struct {
	Tile maptile.Tile
	Path string
}

// Tiles lists the tile files of one layer and zoom level, sorted by x then y.
func (l Layout) Tiles(layer string, zoom int) ([]Entry, error) {
	if err := ValidateLayer(layer); err != nil {
		return nil, err
	}
	if err := validateZoom(zoom); err != nil {
		return nil, err
	}
	z := maptile.Zoom(zoom)
	for _, dir := range l.ZoomDirs(layer, zoom) {
		var entries []Entry
		cols, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, col := range cols {
			x, err := strconv.ParseUint(col.Name(), 10, 32)
			if err != nil || !col.IsDir() {
				continue
			}
			files, err := os.ReadDir(filepath.Join(dir, col.Name()))
			if err != nil {
				return nil, err
			}
			for _, f := range files {
				name, ext, ok := strings.Cut(f.Name(), ".")
				if !ok || !slices.Contains(Extensions, ext) {
					continue
				}
				row, err := strconv.ParseUint(name, 10, 32)
				if err != nil {
					continue
				}
				entries = append(entries, Entry{
					Tile: l.TileFromRow(uint32(x), uint32(row), z),
					Path: filepath.Join(dir, col.Name(), f.Name()),
				})
			}
		}
		if len(entries) > 0 {
			slices.SortFunc(entries, func(a, b Entry) int {
				if a.Tile.X != b.Tile.X {
					return int(a.Tile.X) - int(b.Tile.X)
				}
				return int(a.Tile.Y) - int(b.Tile.Y)
			})
			return entries, nil
		}
	}
	return nil, nil
}

// Layer summarises a layer directory.
type Layer struct {
	Name  string `json:"name"`
	Zooms []int  `json:"zooms"`
}

// Layers lists the layers under TileDir with the zoom directories present.
func (l Layout) Layers() ([]Layer, error) {
	dirs, err := os.ReadDir(l.TileDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var layers []Layer
	for _, d := range dirs {
		if !d.IsDir() || ValidateLayer(d.Name()) != nil || strings.HasPrefix(d.Name(), ".") {
			continue
		}
		zoomDirs, err := os.ReadDir(filepath.Join(l.TileDir, d.Name()))
		if err != nil {
			return nil, err
		}
		layer := Layer{Name: d.Name(), Zooms: []int{}}
		for _, zd := range zoomDirs {
			z, err := strconv.Atoi(zd.Name())
			if err != nil || !zd.IsDir() || validateZoom(z) != nil {
				continue
			}
			layer.Zooms = append(layer.Zooms, z)
		}
		slices.Sort(layer.Zooms)
		layers = append(layers, layer)
	}
	return layers, nil
}
