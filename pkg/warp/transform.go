package warp

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"tilepipe/pkg/raster"
)

// MaxLatitude is the latitude at which Web Mercator becomes square.
const MaxLatitude = 85.05112877980659

// edgeSamples is the number of points taken along each footprint edge
// when projecting it, matching GDAL's suggested warp output.
const edgeSamples = 21

// Transform is the destination grid of a reprojection in Web Mercator metres.
type Transform struct {
	Bounds orb.Bound
	Width  int
	Height int
}

// PixelSize returns the square pixel size in metres.
func (t Transform) PixelSize() float64 {
	return (t.Bounds.Max[0] - t.Bounds.Min[0]) / float64(t.Width)
}

// GeoTransform returns the north-up affine transform of the grid.
func (t Transform) GeoTransform() [6]float64 {
	px := t.PixelSize()
	return [6]float64{t.Bounds.Min[0], px, 0, t.Bounds.Max[1], 0, -px}
}

// DefaultTransform computes the destination grid for reprojecting ds into
// Web Mercator. The extent comes from the raster edges sampled in source
// space for EPSG:4326 and EPSG:3857 sources, and from the WGS84 footprint
// reported by gdalinfo otherwise. The pixel size keeps the source's pixel
// count along the diagonal.
func DefaultTransform(ds *raster.Dataset) (Transform, error) {
	if err := ds.Georeferenced(); err != nil {
		return Transform{}, err
	}
	if ds.Width <= 0 || ds.Height <= 0 {
		return Transform{}, fmt.Errorf("raster %s has no pixels", ds.Path)
	}

	var b orb.Bound
	for i, m := range mercatorOutline(ds) {
		if i == 0 {
			b = orb.Bound{Min: m, Max: m}
			continue
		}
		b = b.Extend(m)
	}

	dx := b.Max[0] - b.Min[0]
	dy := b.Max[1] - b.Min[1]
	diagonal := math.Hypot(dx, dy)
	if diagonal == 0 {
		return Transform{}, fmt.Errorf("raster %s has an empty footprint", ds.Path)
	}
	pixel := diagonal / math.Hypot(float64(ds.Width), float64(ds.Height))

	width := max(int(dx/pixel+0.5), 1)
	height := max(int(dy/pixel+0.5), 1)

	// Snap the far edges so the grid holds whole pixels.
	b.Max[0] = b.Min[0] + float64(width)*pixel
	b.Min[1] = b.Max[1] - float64(height)*pixel

	return Transform{Bounds: b, Width: width, Height: height}, nil
}

// mercatorOutline returns points along the edges of ds in Web Mercator metres.
func mercatorOutline(ds *raster.Dataset) []orb.Point {
	var lonlat []orb.Point
	switch ds.CRS.EPSG {
	case WebMercatorEPSG:
		return ds.Bounds().ToRing()
	case 4326:
		lonlat = densify(ds.Bounds().ToRing(), edgeSamples)
	default:
		lonlat = densify(ds.Footprint, edgeSamples)
	}
	out := make([]orb.Point, len(lonlat))
	for i, p := range lonlat {
		out[i] = project.WGS84.ToMercator(orb.Point{p[0], clampLatitude(p[1])})
	}
	return out
}

func densify(ring orb.Ring, samples int) []orb.Point {
	if len(ring) < 2 {
		return ring
	}
	out := make([]orb.Point, 0, (len(ring)-1)*samples)
	for i := 0; i+1 < len(ring); i++ {
		a, b := ring[i], ring[i+1]
		for s := 0; s < samples; s++ {
			f := float64(s) / float64(samples-1)
			out = append(out, orb.Point{a[0] + (b[0]-a[0])*f, a[1] + (b[1]-a[1])*f})
		}
	}
	return out
}

func clampLatitude(lat float64) float64 {
	return math.Max(-MaxLatitude, math.Min(MaxLatitude, lat))
}
