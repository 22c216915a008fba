// Package environment reconciles bathymetry and climatology along a transect
// into seafloor depths and sound-speed profiles.
package environment

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/seaenv/internal/bathymetry"
	"github.com/banshee-data/seaenv/internal/climatology"
	"github.com/banshee-data/seaenv/internal/transect"
)

// ErrNoValidProfile is returned when no climatology layer is usable anywhere
// on the transect.
var ErrNoValidProfile = errors.New("no valid temperature/salinity layer on transect")

// QueryMargin is added below the rounded seafloor when selecting layers.
const QueryMargin = 100.0

// roundingSlack absorbs interpolation round-off before depths are rounded up.
const roundingSlack = 1e-6

// Environment is the extraction result for one transect.
type Environment struct {
	// SeaDepth is the positive water depth at each transect point.
	SeaDepth []float64
	Profile  *Profile
}

// MaxSeaDepth returns the deepest water depth on the transect.
func (e *Environment) MaxSeaDepth() float64 { return floats.Max(e.SeaDepth) }

// Extractor samples the shared read-only grids. It is safe for concurrent use.
type Extractor struct {
	grid  *bathymetry.Grid
	atlas *climatology.Atlas
}

// NewExtractor creates an Extractor over loaded grids.
func NewExtractor(grid *bathymetry.Grid, atlas *climatology.Atlas) *Extractor {
	return &Extractor{grid: grid, atlas: atlas}
}

// QueryCeiling returns the deepest climatology depth needed for a transect
// whose deepest seafloor is maxSeaDepth.
func QueryCeiling(maxSeaDepth float64) float64 {
	return ceilDepth(maxSeaDepth/100)*100 + QueryMargin
}

func ceilDepth(z float64) float64 {
	return math.Max(0, math.Ceil(z-roundingSlack))
}

// Extract computes seafloor depths and the sound-speed profile for tr using
// climatology period idx.
func (e *Extractor) Extract(ctx context.Context, tr *transect.Transect, idx climatology.TimeIndex) (*Environment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := tr.Len()
	seaDepth := make([]float64, n)
	for i, p := range tr.Points {
		seaDepth[i] = e.grid.SeaDepth(p.Lat, p.Lon)
	}
	maxSea := floats.Max(seaDepth)

	vol, err := e.atlas.Layers(idx)
	if err != nil {
		return nil, err
	}
	ceiling := QueryCeiling(maxSea)
	nk := 0
	for nk < len(vol.Depth) && vol.Depth[nk] <= ceiling {
		nk++
	}
	if nk == 0 {
		nk = 1
	}

	// per-point temperature and salinity of the usable layers
	var (
		depths     []float64
		meanT      []float64
		meanS      []float64
		temp, salt [][]float64
	)
	for k := 0; k < nk; k++ {
		t, s, ok := e.sampleLayer(vol, k, tr)
		if !ok {
			tracef("layer %.0f m invalid on %d-point transect", vol.Depth[k], n)
			continue
		}
		mt, ms := nanMean(t), nanMean(s)
		if math.IsNaN(mt) || math.IsNaN(ms) {
			tracef("layer %.0f m has no sample on transect", vol.Depth[k])
			continue
		}
		depths = append(depths, vol.Depth[k])
		meanT = append(meanT, mt)
		meanS = append(meanS, ms)
		temp = append(temp, t)
		salt = append(salt, s)
	}
	if len(depths) == 0 {
		return nil, fmt.Errorf("%w (%s, %d layers to %.0f m)", ErrNoValidProfile, idx, nk, ceiling)
	}

	zmax := ceilDepth(maxSea)
	profDepth := extendDepths(depths, zmax)
	tMean := newSampler(depths, meanT)
	sMean := newSampler(depths, meanS)

	prof := &Profile{
		Depth:      profDepth,
		Temp:       make([]float64, len(profDepth)),
		Salt:       make([]float64, len(profDepth)),
		Speed:      make([]float64, len(profDepth)),
		PointSpeed: mat.NewDense(len(profDepth), n, nil),
	}
	for iz, z := range profDepth {
		prof.Temp[iz] = tMean.at(z)
		prof.Salt[iz] = sMean.at(z)
		prof.Speed[iz] = climatology.SoundSpeed(prof.Temp[iz], prof.Salt[iz], z)
	}

	column := make([]float64, len(depths))
	filled := 0
	for j := 0; j < n; j++ {
		for k := range depths {
			column[k] = temp[k][j]
		}
		tAt := newSampler(depths, append([]float64(nil), column...))
		for k := range depths {
			column[k] = salt[k][j]
		}
		sAt := newSampler(depths, append([]float64(nil), column...))

		for iz, z := range profDepth {
			c := climatology.SoundSpeed(tAt.at(z), sAt.at(z), z)
			if math.IsNaN(c) {
				c = prof.Speed[iz]
				filled++
			}
			prof.PointSpeed.Set(iz, j, c)
		}
	}

	diagf("transect %d pts, seafloor max %.1f m, %d/%d layers valid, profile to %.0f m (%d gaps filled)",
		n, maxSea, len(depths), nk, prof.MaxDepth(), filled)
	return &Environment{SeaDepth: seaDepth, Profile: prof}, nil
}

// sampleLayer interpolates layer k onto every transect point. It reports
// false when the layer has too many missing cells to be used.
func (e *Extractor) sampleLayer(vol *climatology.Volume, k int, tr *transect.Transect) ([]float64, []float64, bool) {
	layer, ok := vol.Layer(k).Filled()
	if !ok {
		return nil, nil, false
	}
	t := make([]float64, tr.Len())
	s := make([]float64, tr.Len())
	for i, p := range tr.Points {
		t[i], s[i] = layer.At(p.Lat, p.Lon)
	}
	return t, s, true
}

func nanMean(vals []float64) float64 {
	present := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return math.NaN()
	}
	return stat.Mean(present, nil)
}
