package rastertest

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"tilepipe/pkg/raster"
)

// maxFakeTiles bounds the tiles gdal2tiles writes for one zoom level.
const maxFakeTiles = 1024

func gdalinfo(args []string) error {
	if len(args) == 1 && args[0] == "--version" {
		v := os.Getenv(EnvGDALVersion)
		if v == "" {
			v = "3.8.4"
		}
		fmt.Printf("GDAL %s, released 2024/02/08\n", v)
		return nil
	}
	if len(args) != 2 || args[0] != "-json" {
		return fmt.Errorf("usage: gdalinfo -json <file>")
	}
	doc, err := readDocument(args[1])
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(doc)
}

func gdalwarp(args []string) error {
	var (
		targetCRS  string
		te         []float64
		ts         []int
		format     string
		positional []string
	)
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-overwrite":
		case "-t_srs":
			i++
			targetCRS = args[i]
		case "-te":
			for _, s := range args[i+1 : i+5] {
				v, err := strconv.ParseFloat(s, 64)
				if err != nil {
					return fmt.Errorf("invalid -te value %q", s)
				}
				te = append(te, v)
			}
			i += 4
		case "-ts":
			for _, s := range args[i+1 : i+3] {
				v, err := strconv.Atoi(s)
				if err != nil {
					return fmt.Errorf("invalid -ts value %q", s)
				}
				ts = append(ts, v)
			}
			i += 2
		case "-r":
			i++
		case "-of":
			i++
			format = args[i]
		default:
			positional = append(positional, args[i])
		}
	}
	if len(positional) != 2 {
		return fmt.Errorf("expected source and destination, got %v", positional)
	}
	doc, err := readDocument(positional[0])
	if err != nil {
		return err
	}
	if _, ok := doc["coordinateSystem"]; !ok {
		return errors.New("Unable to compute a transformation between pixel/line and georeferenced coordinates")
	}
	epsg, ok := strings.CutPrefix(targetCRS, "EPSG:")
	if !ok {
		return fmt.Errorf("unsupported target CRS %q", targetCRS)
	}
	code, err := strconv.Atoi(epsg)
	if err != nil {
		return fmt.Errorf("unsupported target CRS %q", targetCRS)
	}
	doc["coordinateSystem"] = map[string]any{"wkt": WKT(code)}
	if len(ts) == 2 {
		doc["size"] = ts
	}
	if len(te) == 4 && len(ts) == 2 {
		doc["geoTransform"] = []float64{
			te[0], (te[2] - te[0]) / float64(ts[0]), 0,
			te[3], 0, -(te[3] - te[1]) / float64(ts[1]),
		}
	}
	if format != "" {
		doc["driverShortName"] = format
	}
	return writeDocument(positional[1], doc)
}

func gdal2tiles(args []string) error {
	zoom := -1
	xyz := false
	ext := "png"
	var positional []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-z":
			i++
			z, err := strconv.Atoi(args[i])
			if err != nil {
				return fmt.Errorf("only single zoom levels are supported, got %q", args[i])
			}
			zoom = z
		case "-w", "-r":
			i++
		case "--xyz":
			xyz = true
		case "--tiledriver":
			i++
			switch strings.ToUpper(args[i]) {
			case "PNG":
			case "JPEG":
				ext = "jpg"
			default:
				return fmt.Errorf("fake gdal2tiles cannot write %s tiles", args[i])
			}
		default:
			positional = append(positional, args[i])
		}
	}
	if zoom < 0 || len(positional) != 2 {
		return fmt.Errorf("usage: gdal2tiles.py -z <zoom> [options] <src> <outdir>")
	}
	if os.Getenv(EnvFailZoom) == strconv.Itoa(zoom) {
		return fmt.Errorf("failed to generate tiles for zoom %d", zoom)
	}
	src, out := positional[0], positional[1]

	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("%s: No such file or directory", src)
	}
	ds, err := raster.Decode(src, data)
	if err != nil {
		return err
	}
	if len(ds.Footprint) == 0 {
		return fmt.Errorf("%s has no georeferencing", src)
	}
	bound := ds.Footprint.Bound()
	z := maptile.Zoom(zoom)
	topLeft := maptile.At(orb.Point{bound.Min[0], bound.Max[1]}, z)
	bottomRight := maptile.At(orb.Point{bound.Max[0], bound.Min[1]}, z)

	count := int(bottomRight.X-topLeft.X+1) * int(bottomRight.Y-topLeft.Y+1)
	if count > maxFakeTiles {
		return fmt.Errorf("refusing to write %d tiles", count)
	}
	for x := topLeft.X; x <= bottomRight.X; x++ {
		for y := topLeft.Y; y <= bottomRight.Y; y++ {
			row := y
			if !xyz {
				row = (1 << z) - 1 - y
			}
			dir := filepath.Join(out, strconv.Itoa(zoom), strconv.FormatUint(uint64(x), 10))
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}
			img := imaging.New(256, 256, TileColor(maptile.New(x, y, z)))
			if err := imaging.Save(img, filepath.Join(dir, strconv.FormatUint(uint64(row), 10)+"."+ext)); err != nil {
				return err
			}
		}
	}
	return nil
}

// TileColor is the solid fill of the fake tile at t, so tests can check
// where a tile ended up after stitching.
func TileColor(t maptile.Tile) color.NRGBA {
	return color.NRGBA{R: uint8(t.X * 40), G: uint8(t.Y * 40), B: uint8(t.Z * 10), A: 255}
}
