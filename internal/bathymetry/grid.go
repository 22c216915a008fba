package bathymetry

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/seaenv/internal/gridutil"
)

// Grid is a cropped elevation raster. Altitude is indexed (lon, lat) in
// metres, negative below sea level. It is read-only once loaded.
type Grid struct {
	Lon      []float64
	Lat      []float64
	Altitude *mat.Dense
}

// Interpolate returns the bilinear altitude at (lat, lon). Queries outside
// the grid are clamped to its edge.
func (g *Grid) Interpolate(lat, lon float64) float64 {
	return gridutil.Bilinear(g.Lon, g.Lat, g.Altitude.At, lon, lat, true)
}

// SeaDepth returns the positive water depth at (lat, lon). Land is 0.
func (g *Grid) SeaDepth(lat, lon float64) float64 {
	return math.Max(-g.Interpolate(lat, lon), 0)
}

// Bounds returns the coordinate extent of the grid.
func (g *Grid) Bounds() (minLat, maxLat, minLon, maxLon float64) {
	return g.Lat[0], g.Lat[len(g.Lat)-1], g.Lon[0], g.Lon[len(g.Lon)-1]
}
