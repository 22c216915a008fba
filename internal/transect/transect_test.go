package transect

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndPoint(t *testing.T) {
	t.Parallel()
	start := Point{Lat: 0, Lon: 110}
	testCases := []struct {
		name    string
		bearing float64
		rangeKm float64
		want    Point
	}{
		{"north", 0, 111, Point{Lat: 1, Lon: 110}},
		{"east at equator", 90, 111, Point{Lat: 0, Lon: 111}},
		{"south", 180, 55.5, Point{Lat: -0.5, Lon: 110}},
		{"zero range", 45, 0, start},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := EndPoint(start, tc.bearing, tc.rangeKm)
			assert.InDelta(t, tc.want.Lat, got.Lat, 1e-9)
			assert.InDelta(t, tc.want.Lon, got.Lon, 1e-9)
		})
	}
}

func TestEndPointLongitudeScalesWithLatitude(t *testing.T) {
	t.Parallel()
	got := EndPoint(Point{Lat: 60, Lon: 0}, 90, 111)
	assert.InDelta(t, 2.0, got.Lon, 1e-9)
}

func TestBuildSampling(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name   string
		ranges []float64
		points int
	}{
		{"short range keeps two points", []float64{0.4}, 2},
		{"zero range keeps two points", []float64{0}, 2},
		{"one km spacing", []float64{5, 10}, 11},
		{"fractional max", []float64{3.7}, 4},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tr, err := Build(Point{Lat: 18, Lon: 112}, 30, tc.ranges)
			require.NoError(t, err)
			assert.Equal(t, tc.points, tr.Len())
			assert.Len(t, tr.Distance, tc.points)
			assert.Equal(t, Point{Lat: 18, Lon: 112}, tr.Points[0])
			assert.InDelta(t, tr.MaxRange(), tr.Distance[tc.points-1], 1e-12)
		})
	}
}

func TestBuildMonotonic(t *testing.T) {
	t.Parallel()
	start := Point{Lat: 20.5, Lon: 115.2}
	for _, bearing := range []float64{0, 37, 90, 145, 180, 260, 359} {
		tr, err := Build(start, bearing, []float64{2, 25, 12})
		require.NoError(t, err)

		prev := -1.0
		for _, p := range tr.Points {
			dy := (p.Lat - start.Lat) * 111
			dx := (p.Lon - start.Lon) * 111 * math.Cos(start.Lat*math.Pi/180)
			d := math.Hypot(dx, dy)
			assert.GreaterOrEqual(t, d, prev-1e-9, "bearing %v", bearing)
			prev = d
		}
		assert.InDelta(t, 25.0, prev, 1e-6)
	}
}

func TestBuildRejectsBadRanges(t *testing.T) {
	t.Parallel()
	_, err := Build(Point{}, 0, nil)
	assert.ErrorIs(t, err, ErrNoRanges)

	_, err = Build(Point{}, 0, []float64{1, -2})
	assert.Error(t, err)

	_, err = Build(Point{}, 0, []float64{math.NaN()})
	assert.Error(t, err)
}
