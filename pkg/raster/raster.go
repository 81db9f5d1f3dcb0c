// Package raster describes raster datasets as reported by the GDAL
// command line tools.
package raster

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/xeipuuv/gojsonschema"
)

var (
	ErrMissingCRS          = errors.New("raster has no coordinate reference system")
	ErrMissingGeoTransform = errors.New("raster has no geotransform")
	ErrMissingFootprint    = errors.New("raster has no WGS84 footprint")
	ErrInvalidInfo         = errors.New("invalid raster info document")
)

//go:embed schema.json
var infoSchema string

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(infoSchema))
})

// CRS is a coordinate reference system in WKT form, with its EPSG code when known.
type CRS struct {
	WKT  string
	EPSG int
}

// IsDefined reports whether the CRS carries any definition.
func (c CRS) IsDefined() bool {
	return strings.TrimSpace(c.WKT) != ""
}

func (c CRS) String() string {
	if c.EPSG != 0 {
		return fmt.Sprintf("EPSG:%d", c.EPSG)
	}
	if c.IsDefined() {
		return "custom"
	}
	return "undefined"
}

type Band struct {
	Index    int
	DataType string
	NoData   *float64
}

// Dataset is the header metadata of a raster file.
type Dataset struct {
	Path            string
	Driver          string
	Width           int
	Height          int
	Bands           []Band
	CRS             CRS
	GeoTransform    [6]float64
	HasGeoTransform bool
	// Footprint is the dataset outline in longitude/latitude.
	Footprint orb.Ring
}

// BandCount returns the number of bands.
func (d *Dataset) BandCount() int {
	return len(d.Bands)
}

// Bounds returns the dataset extent in its own CRS units, computed from the geotransform.
func (d *Dataset) Bounds() orb.Bound {
	gt := d.GeoTransform
	b := orb.Bound{Min: orb.Point{gt[0], gt[3]}, Max: orb.Point{gt[0], gt[3]}}
	for _, px := range [][2]float64{{0, 0}, {float64(d.Width), 0}, {0, float64(d.Height)}, {float64(d.Width), float64(d.Height)}} {
		x := gt[0] + px[0]*gt[1] + px[1]*gt[2]
		y := gt[3] + px[0]*gt[4] + px[1]*gt[5]
		b = b.Extend(orb.Point{x, y})
	}
	return b
}

// Georeferenced checks that the dataset can be reprojected: it must have a
// CRS, a geotransform and a WGS84 footprint.
func (d *Dataset) Georeferenced() error {
	if !d.CRS.IsDefined() {
		return fmt.Errorf("%w: %s", ErrMissingCRS, d.Path)
	}
	if !d.HasGeoTransform {
		return fmt.Errorf("%w: %s", ErrMissingGeoTransform, d.Path)
	}
	if len(d.Footprint) < 4 {
		return fmt.Errorf("%w: %s", ErrMissingFootprint, d.Path)
	}
	return nil
}

type infoDocument struct {
	Description      string          `json:"description"`
	DriverShortName  string          `json:"driverShortName"`
	Size             []int           `json:"size"`
	CoordinateSystem *struct {
		WKT string `json:"wkt"`
	} `json:"coordinateSystem"`
	GeoTransform []float64       `json:"geoTransform"`
	WGS84Extent  json.RawMessage `json:"wgs84Extent"`
	Bands        []struct {
		Band        int      `json:"band"`
		Type        string   `json:"type"`
		NoDataValue *float64 `json:"noDataValue"`
	} `json:"bands"`
}

// Decode parses the output of `gdalinfo -json` for the raster at path.
func Decode(path string, data []byte) (*Dataset, error) {
	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to compile raster info schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInfo, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidInfo, strings.Join(msgs, "; "))
	}

	var doc infoDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInfo, err)
	}

	ds := &Dataset{
		Path:   path,
		Driver: doc.DriverShortName,
		Width:  doc.Size[0],
		Height: doc.Size[1],
	}
	for _, b := range doc.Bands {
		ds.Bands = append(ds.Bands, Band{Index: b.Band, DataType: b.Type, NoData: b.NoDataValue})
	}
	if doc.CoordinateSystem != nil {
		ds.CRS = CRS{WKT: doc.CoordinateSystem.WKT, EPSG: epsgFromWKT(doc.CoordinateSystem.WKT)}
	}
	if len(doc.GeoTransform) == 6 {
		copy(ds.GeoTransform[:], doc.GeoTransform)
		ds.HasGeoTransform = true
	}
	if len(doc.WGS84Extent) > 0 && string(doc.WGS84Extent) != "null" {
		footprint, err := decodeFootprint(doc.WGS84Extent)
		if err != nil {
			return nil, err
		}
		ds.Footprint = footprint
	}
	return ds, nil
}

func decodeFootprint(raw json.RawMessage) (orb.Ring, error) {
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: wgs84Extent: %v", ErrInvalidInfo, err)
	}
	switch geom := g.Geometry().(type) {
	case orb.Polygon:
		if len(geom) == 0 {
			return nil, nil
		}
		return geom[0], nil
	case orb.MultiPolygon:
		// antimeridian-crossing datasets are split in two; keep the outline of both
		var ring orb.Ring
		for _, poly := range geom {
			if len(poly) > 0 {
				ring = append(ring, poly[0]...)
			}
		}
		return ring, nil
	default:
		return nil, fmt.Errorf("%w: unexpected wgs84Extent type %s", ErrInvalidInfo, g.Type)
	}
}

var (
	wkt2ID        = regexp.MustCompile(`ID\["EPSG",\s*(\d+)\]`)
	wkt1Authority = regexp.MustCompile(`AUTHORITY\["EPSG",\s*"(\d+)"\]`)
)

// epsgFromWKT returns the EPSG code of the outermost CRS in wkt, which is
// the last authority entry in both WKT1 and WKT2.
func epsgFromWKT(wkt string) int {
	for _, re := range []*regexp.Regexp{wkt2ID, wkt1Authority} {
		matches := re.FindAllStringSubmatch(wkt, -1)
		if len(matches) == 0 {
			continue
		}
		code, err := strconv.Atoi(matches[len(matches)-1][1])
		if err == nil {
			return code
		}
	}
	return 0
}

// IsVirtual reports whether path names a GDAL virtual file such as
// /vsizip/archive.zip/member.tif, which the filesystem cannot stat.
func IsVirtual(path string) bool {
	return strings.HasPrefix(path, "/vsi")
}
