// Package gridutil holds interpolation helpers for rectilinear grids.
package gridutil

import (
	"math"
	"sort"
)

// Bilinear interpolates f over the rectilinear grid xs × ys at (x, y). Both
// axes must be ascending. Outside the grid the result is NaN unless clamp is
// set, in which case the query is moved onto the nearest edge. Corners with
// zero weight are never evaluated, so NaN neighbours do not leak into exact
// grid hits.
func Bilinear(xs, ys []float64, f func(i, j int) float64, x, y float64, clamp bool) float64 {
	ix, tx, ok := Bracket(xs, x, clamp)
	if !ok {
		return math.NaN()
	}
	iy, ty, ok := Bracket(ys, y, clamp)
	if !ok {
		return math.NaN()
	}

	corners := [4]struct {
		di, dj int
		w      float64
	}{
		{0, 0, (1 - tx) * (1 - ty)},
		{1, 0, tx * (1 - ty)},
		{0, 1, (1 - tx) * ty},
		{1, 1, tx * ty},
	}
	var sum float64
	for _, c := range corners {
		if c.w == 0 {
			continue
		}
		sum += c.w * f(ix+c.di, iy+c.dj)
	}
	return sum
}

// Bracket locates x on the ascending axis xs. It returns the lower cell index
// and the fractional offset toward the next sample.
func Bracket(xs []float64, x float64, clamp bool) (int, float64, bool) {
	n := len(xs)
	if n == 0 || math.IsNaN(x) {
		return 0, 0, false
	}
	if x < xs[0] || x > xs[n-1] {
		if !clamp {
			return 0, 0, false
		}
		x = math.Min(math.Max(x, xs[0]), xs[n-1])
	}
	if n == 1 {
		return 0, 0, true
	}
	i := sort.SearchFloat64s(xs, x)
	if i == 0 {
		return 0, 0, true
	}
	if i >= n {
		i = n - 1
	}
	i--
	return i, (x - xs[i]) / (xs[i+1] - xs[i]), true
}
