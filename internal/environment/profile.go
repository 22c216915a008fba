package environment

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/mat"
)

// Profile is a sound-speed profile along a transect.
type Profile struct {
	// Depth is ascending, metres.
	Depth []float64
	// Temp, Salt and Speed are transect averages, one per depth. Speed is
	// computed from the averaged temperature and salinity.
	Temp  []float64
	Salt  []float64
	Speed []float64
	// PointSpeed is depth × transect point with no missing values.
	PointSpeed *mat.Dense
}

// SurfaceSpeed returns the averaged sound speed at the shallowest depth.
func (p *Profile) SurfaceSpeed() float64 { return p.Speed[0] }

// BottomSpeed returns the averaged sound speed at the deepest depth.
func (p *Profile) BottomSpeed() float64 { return p.Speed[len(p.Speed)-1] }

// MaxDepth returns the deepest profile depth.
func (p *Profile) MaxDepth() float64 { return p.Depth[len(p.Depth)-1] }

// extendDepths returns the profile depths for a seafloor at zmax given the
// valid sampled depths. Samples deeper than zmax are dropped and zmax is
// appended unless it is already the deepest sample.
func extendDepths(sampled []float64, zmax float64) []float64 {
	last := sampled[len(sampled)-1]
	switch {
	case last < zmax:
		return append(append([]float64(nil), sampled...), zmax)
	case last == zmax:
		return append([]float64(nil), sampled...)
	default:
		var out []float64
		for _, z := range sampled {
			if z < zmax {
				out = append(out, z)
			}
		}
		return append(out, zmax)
	}
}

// sampler evaluates a sampled depth series at arbitrary depths. Exact sample
// depths return the stored value, interior depths interpolate linearly and
// depths past either end hold the end value.
type sampler struct {
	xs []float64
	ys []float64
	pl *interp.PiecewiseLinear
}

func newSampler(xs, ys []float64) *sampler {
	s := &sampler{xs: xs, ys: ys}
	if len(xs) >= 2 {
		var pl interp.PiecewiseLinear
		if err := pl.Fit(xs, ys); err == nil {
			s.pl = &pl
		}
	}
	return s
}

func (s *sampler) at(z float64) float64 {
	n := len(s.xs)
	i := sort.SearchFloat64s(s.xs, z)
	switch {
	case i < n && s.xs[i] == z:
		return s.ys[i]
	case i == 0:
		return s.ys[0]
	case i >= n:
		return s.ys[n-1]
	case s.pl != nil:
		return s.pl.Predict(z)
	default:
		return math.NaN()
	}
}
