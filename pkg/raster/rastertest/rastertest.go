// Package rastertest provides fake GDAL command line tools for tests.
//
// A fake raster is a file holding its own `gdalinfo -json` document. The
// fakes are the test binary itself, re-executed through symlinks named after
// the real tools, so a package opts in with:
//
//	func TestMain(m *testing.M) { rastertest.Main(m) }
//
// and calls Install from the tests that need the tools on PATH.
package rastertest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
)

// Environment variables understood by the fake tools. They are inherited by
// the child processes, so tests set them with t.Setenv.
const (
	// EnvLog is the file every invocation is appended to as a JSON line.
	EnvLog = "TILEPIPE_FAKE_LOG"
	// EnvFailTool makes the named tool exit with status 1.
	EnvFailTool = "TILEPIPE_FAKE_FAIL_TOOL"
	// EnvFailZoom makes gdal2tiles exit with status 1 for that zoom level.
	EnvFailZoom = "TILEPIPE_FAKE_FAIL_ZOOM"
	// EnvGDALVersion overrides the release printed by `gdalinfo --version`.
	EnvGDALVersion = "TILEPIPE_FAKE_GDAL_VERSION"
)

// Tool names, matching the defaults in config.
const (
	Gdalinfo   = "gdalinfo"
	Gdalwarp   = "gdalwarp"
	Gdal2Tiles = "gdal2tiles.py"
)

var fakes = map[string]func(args []string) error{
	Gdalinfo:   gdalinfo,
	Gdalwarp:   gdalwarp,
	Gdal2Tiles: gdal2tiles,
}

// Main runs the fake tool named by os.Args[0] when the test binary was
// started through one of the links made by Install, and the tests otherwise.
func Main(m *testing.M) {
	name := filepath.Base(os.Args[0])
	if fn, ok := fakes[name]; ok {
		os.Exit(run(name, fn))
	}
	os.Exit(m.Run())
}

func run(name string, fn func(args []string) error) int {
	args := os.Args[1:]
	if err := logInvocation(name, args); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR 1:", err)
		return 1
	}
	if os.Getenv(EnvFailTool) == name {
		fmt.Fprintf(os.Stderr, "ERROR 1: %s failed on request\n", name)
		return 1
	}
	if err := fn(args); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR 1:", err)
		return 1
	}
	return 0
}

// Install links the fake tools into a temporary directory placed first on
// PATH and starts a fresh invocation log. It returns the directory.
func Install(t testing.TB) string {
	t.Helper()
	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("failed to locate test binary: %v", err)
	}
	bin := t.TempDir()
	for name := range fakes {
		if err := os.Symlink(exe, filepath.Join(bin, name)); err != nil {
			t.Fatalf("failed to link %s: %v", name, err)
		}
	}
	t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))
	t.Setenv(EnvLog, filepath.Join(bin, "invocations.jsonl"))
	return bin
}

// Invocation is one recorded run of a fake tool.
type Invocation struct {
	Tool string   `json:"tool"`
	Args []string `json:"args"`
}

func logInvocation(tool string, args []string) error {
	path := os.Getenv(EnvLog)
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(Invocation{Tool: tool, Args: args})
}

// Invocations returns the tool runs recorded since Install, optionally
// filtered to a single tool.
func Invocations(t testing.TB, tool string) []Invocation {
	t.Helper()
	f, err := os.Open(os.Getenv(EnvLog))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("failed to open invocation log: %v", err)
	}
	defer f.Close()

	var out []Invocation
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var inv Invocation
		if err := json.Unmarshal(sc.Bytes(), &inv); err != nil {
			t.Fatalf("corrupt invocation log: %v", err)
		}
		if tool == "" || inv.Tool == tool {
			out = append(out, inv)
		}
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("failed to read invocation log: %v", err)
	}
	return out
}

// Info describes a fake raster.
type Info struct {
	Driver string
	Width  int
	Height int
	// WKT is the coordinate system; empty means none.
	WKT string
	// GeoTransform is omitted from the document when nil.
	GeoTransform []float64
	// Extent is the longitude/latitude footprint; omitted when zero.
	Extent orb.Bound
	// BandTypes holds one GDAL data type per band.
	BandTypes []string
}

// WKT returns a minimal WKT2 definition carrying an EPSG identifier.
func WKT(epsg int) string {
	return fmt.Sprintf(`PROJCRS["EPSG %d",ID["EPSG",%d]]`, epsg, epsg)
}

// Geographic describes a north-up EPSG:4326 GeoTIFF covering extent.
func Geographic(extent orb.Bound, width, height, bands int) Info {
	types := make([]string, bands)
	for i := range types {
		types[i] = "Byte"
	}
	return Info{
		Driver: "GTiff",
		Width:  width,
		Height: height,
		WKT:    `GEOGCRS["WGS 84",ID["EPSG",4326]]`,
		GeoTransform: []float64{
			extent.Min[0], (extent.Max[0] - extent.Min[0]) / float64(width), 0,
			extent.Max[1], 0, -(extent.Max[1] - extent.Min[1]) / float64(height),
		},
		Extent:    extent,
		BandTypes: types,
	}
}

// Document returns the gdalinfo -json document of the raster.
func (i Info) Document() map[string]any {
	bands := make([]map[string]any, len(i.BandTypes))
	for n, typ := range i.BandTypes {
		bands[n] = map[string]any{"band": n + 1, "type": typ}
	}
	doc := map[string]any{
		"driverShortName": i.Driver,
		"size":            []int{i.Width, i.Height},
		"bands":           bands,
	}
	if i.WKT != "" {
		doc["coordinateSystem"] = map[string]any{"wkt": i.WKT}
	}
	if i.GeoTransform != nil {
		doc["geoTransform"] = i.GeoTransform
	}
	if !i.Extent.IsZero() {
		doc["wgs84Extent"] = extentPolygon(i.Extent)
	}
	return doc
}

func extentPolygon(b orb.Bound) map[string]any {
	return map[string]any{
		"type": "Polygon",
		"coordinates": [][][]float64{{
			{b.Min[0], b.Max[1]},
			{b.Min[0], b.Min[1]},
			{b.Max[0], b.Min[1]},
			{b.Max[0], b.Max[1]},
			{b.Min[0], b.Max[1]},
		}},
	}
}

// WriteRaster writes a fake raster to path and returns path.
func WriteRaster(t testing.TB, path string, info Info) string {
	t.Helper()
	if err := writeDocument(path, info.Document()); err != nil {
		t.Fatalf("failed to write fake raster: %v", err)
	}
	return path
}

func writeDocument(path string, doc map[string]any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func readDocument(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: No such file or directory", path)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s not recognized as a supported file format", path)
	}
	return doc, nil
}
