package environment

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/seaenv/internal/bathymetry"
	"github.com/banshee-data/seaenv/internal/climatology"
	"github.com/banshee-data/seaenv/internal/transect"
)

var atlasDepths = []float64{0, 100, 200, 300, 500}

func flatGrid(altitude float64) *bathymetry.Grid {
	return &bathymetry.Grid{
		Lon:      []float64{110, 111},
		Lat:      []float64{10, 11},
		Altitude: mat.NewDense(2, 2, []float64{altitude, altitude, altitude, altitude}),
	}
}

// linearAtlas holds temperature 20 - 0.01·z and salinity 35 everywhere,
// except depths listed in missing which are entirely NaN.
func linearAtlas(t *testing.T, missing ...float64) *climatology.Atlas {
	t.Helper()
	lon := []float64{109.5, 110.5, 111.5}
	lat := []float64{9.5, 10.5, 11.5}
	n := len(lon) * len(lat) * len(atlasDepths)
	temp := make([]float64, n)
	salt := make([]float64, n)
	for c := range temp {
		z := atlasDepths[c%len(atlasDepths)]
		temp[c] = 20 - 0.01*z
		salt[c] = 35
		for _, m := range missing {
			if z == m {
				temp[c] = math.NaN()
			}
		}
	}
	v, err := climatology.NewVolume(climatology.Annual, lon, lat, atlasDepths, temp, salt)
	require.NoError(t, err)
	atlas := climatology.NewAtlas()
	require.NoError(t, atlas.Add(v))
	return atlas
}

func shortTransect(t *testing.T) *transect.Transect {
	t.Helper()
	tr, err := transect.Build(transect.Point{Lat: 10.2, Lon: 110.2}, 45, []float64{5, 20})
	require.NoError(t, err)
	return tr
}

func extract(t *testing.T, altitude float64, atlas *climatology.Atlas, tr *transect.Transect) *Environment {
	t.Helper()
	env, err := NewExtractor(flatGrid(altitude), atlas).Extract(context.Background(), tr, climatology.Annual)
	require.NoError(t, err)
	return env
}

func assertNoNaN(t *testing.T, m *mat.Dense) {
	t.Helper()
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			require.False(t, math.IsNaN(m.At(i, j)), "NaN at (%d,%d)", i, j)
		}
	}
}

func TestExtractInterpolatesSeafloorBetweenSamples(t *testing.T) {
	env := extract(t, -250, linearAtlas(t), shortTransect(t))

	assert.Len(t, env.SeaDepth, 21)
	assert.InDelta(t, 250.0, env.MaxSeaDepth(), 1e-9)

	p := env.Profile
	assert.Equal(t, []float64{0, 100, 200, 250}, p.Depth)
	assert.InDelta(t, 17.5, p.Temp[3], 1e-9)
	assert.InDelta(t, climatology.SoundSpeed(17.5, 35, 250), p.BottomSpeed(), 1e-9)
	assert.InDelta(t, climatology.SoundSpeed(20, 35, 0), p.SurfaceSpeed(), 1e-9)

	r, c := p.PointSpeed.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 21, c)
	assertNoNaN(t, p.PointSpeed)
}

func TestExtractHoldsLastValueBelowClimatology(t *testing.T) {
	env := extract(t, -650, linearAtlas(t), shortTransect(t))

	p := env.Profile
	assert.Equal(t, []float64{0, 100, 200, 300, 500, 650}, p.Depth)
	assert.Equal(t, p.Temp[4], p.Temp[5])
	assert.Equal(t, 650.0, p.MaxDepth())
	for j := 0; j < 21; j++ {
		assert.InDelta(t, climatology.SoundSpeed(p.Temp[4], 35, 650), p.PointSpeed.At(5, j), 1e-9)
	}
}

func TestExtractExactSeafloorIsIdempotent(t *testing.T) {
	atlas := linearAtlas(t)
	tr := shortTransect(t)
	exact := extract(t, -200, atlas, tr).Profile
	deep := extract(t, -650, atlas, tr).Profile

	assert.Equal(t, []float64{0, 100, 200}, exact.Depth)
	for iz := range exact.Depth {
		assert.Equal(t, deep.Speed[iz], exact.Speed[iz], "depth %v", exact.Depth[iz])
		assert.Equal(t, mat.Row(nil, iz, deep.PointSpeed), mat.Row(nil, iz, exact.PointSpeed))
	}
}

func TestExtractSkipsInvalidLayers(t *testing.T) {
	env := extract(t, -650, linearAtlas(t, 300, 500), shortTransect(t))

	p := env.Profile
	assert.Equal(t, []float64{0, 100, 200, 650}, p.Depth)
	assert.InDelta(t, 18.0, p.Temp[3], 1e-9)
	assertNoNaN(t, p.PointSpeed)
}

// lonGradientAtlas is linearAtlas warmed by one degree per longitude cell,
// so edge clamping is visible in the sampled temperatures.
func lonGradientAtlas(t *testing.T) *climatology.Atlas {
	t.Helper()
	lon := []float64{109.5, 110.5, 111.5}
	lat := []float64{9.5, 10.5, 11.5}
	nz := len(atlasDepths)
	temp := make([]float64, len(lon)*len(lat)*nz)
	salt := make([]float64, len(temp))
	for c := range temp {
		i := c / (len(lat) * nz)
		temp[c] = 20 - 0.01*atlasDepths[c%nz] + float64(i)
		salt[c] = 35
	}
	v, err := climatology.NewVolume(climatology.Annual, lon, lat, atlasDepths, temp, salt)
	require.NoError(t, err)
	atlas := climatology.NewAtlas()
	require.NoError(t, atlas.Add(v))
	return atlas
}

func TestExtractClampsPointsOutsideClimatology(t *testing.T) {
	// 250 km east leaves the climatology grid after roughly 140 km
	tr, err := transect.Build(transect.Point{Lat: 10.5, Lon: 110.2}, 90, []float64{250})
	require.NoError(t, err)
	env := extract(t, -150, lonGradientAtlas(t), tr)

	p := env.Profile
	assertNoNaN(t, p.PointSpeed)
	last := tr.Len() - 1
	require.Greater(t, tr.Points[last].Lon, 111.5)
	for iz, z := range p.Depth[:2] {
		edge := climatology.SoundSpeed(22-0.01*z, 35, z)
		assert.InDelta(t, edge, p.PointSpeed.At(iz, last), 1e-9, "depth %v", z)
	}
}

func TestExtractTransectEntirelyOffGrid(t *testing.T) {
	// every point lies north of the last climatology row at 11.5
	tr, err := transect.Build(transect.Point{Lat: 11.6, Lon: 110.2}, 90, []float64{5})
	require.NoError(t, err)
	env, err := NewExtractor(flatGrid(-250), lonGradientAtlas(t)).Extract(context.Background(), tr, climatology.Annual)
	require.NoError(t, err)

	p := env.Profile
	assertNoNaN(t, p.PointSpeed)
	assert.InDelta(t, climatology.SoundSpeed(20.7, 35, 0), p.PointSpeed.At(0, 0), 1e-9)
}

func TestExtractNoValidProfile(t *testing.T) {
	atlas := linearAtlas(t, atlasDepths...)
	_, err := NewExtractor(flatGrid(-250), atlas).Extract(context.Background(), shortTransect(t), climatology.Annual)
	assert.ErrorIs(t, err, ErrNoValidProfile)
}

func TestExtractUnknownTimeIndex(t *testing.T) {
	_, err := NewExtractor(flatGrid(-250), linearAtlas(t)).Extract(context.Background(), shortTransect(t), 4)
	assert.ErrorIs(t, err, climatology.ErrTimeIndexNotLoaded)
}

func TestExtractLandOnlyTransect(t *testing.T) {
	env := extract(t, 35, linearAtlas(t), shortTransect(t))
	for _, d := range env.SeaDepth {
		assert.Equal(t, 0.0, d)
	}
	assert.Equal(t, []float64{0}, env.Profile.Depth)
}

func TestQueryCeiling(t *testing.T) {
	testCases := []struct {
		sea, want float64
	}{
		{0, 100},
		{1, 200},
		{250, 400},
		{300, 400},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, QueryCeiling(tc.sea), "sea depth %v", tc.sea)
	}
}
