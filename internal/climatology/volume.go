package climatology

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/seaenv/internal/gridutil"
)

// MaxMissingRatio is the largest fraction of missing cells a layer may carry
// and still be interpolated.
const MaxMissingRatio = 0.9

var (
	// ErrTimeIndexNotLoaded is returned when a period was never loaded.
	ErrTimeIndexNotLoaded = errors.New("climatology time index not loaded")
	// ErrGridMismatch is returned when volumes disagree on the lon/lat grid.
	ErrGridMismatch = errors.New("climatology grid mismatch")
)

// Volume holds temperature and salinity for one period over a lon/lat/depth
// grid. Values are stored (lon, lat, depth) with depth varying fastest.
type Volume struct {
	Index TimeIndex
	Lon   []float64
	Lat   []float64
	Depth []float64
	temp  []float64
	salt  []float64
}

// NewVolume wraps (lon, lat, depth) ordered temperature and salinity data.
func NewVolume(idx TimeIndex, lon, lat, depth, temp, salt []float64) (*Volume, error) {
	n := len(lon) * len(lat) * len(depth)
	if len(temp) != n || len(salt) != n {
		return nil, fmt.Errorf("volume %s: want %d values, got temp=%d salt=%d", idx, n, len(temp), len(salt))
	}
	if !sort.Float64sAreSorted(depth) {
		return nil, fmt.Errorf("volume %s: depth axis not ascending", idx)
	}
	return &Volume{Index: idx, Lon: lon, Lat: lat, Depth: depth, temp: temp, salt: salt}, nil
}

func (v *Volume) offset(i, j, k int) int {
	return (i*len(v.Lat)+j)*len(v.Depth) + k
}

// Temp returns the temperature at grid cell (i, j, k).
func (v *Volume) Temp(i, j, k int) float64 { return v.temp[v.offset(i, j, k)] }

// Salt returns the salinity at grid cell (i, j, k).
func (v *Volume) Salt(i, j, k int) float64 { return v.salt[v.offset(i, j, k)] }

// MaxDepth returns the deepest sampled depth, or 0 for an empty volume.
func (v *Volume) MaxDepth() float64 {
	if len(v.Depth) == 0 {
		return 0
	}
	return v.Depth[len(v.Depth)-1]
}

// Layer extracts the horizontal slice at depth index k.
func (v *Volume) Layer(k int) Layer {
	n := len(v.Lon) * len(v.Lat)
	l := Layer{
		Depth: v.Depth[k],
		Lon:   v.Lon,
		Lat:   v.Lat,
		Temp:  make([]float64, n),
		Salt:  make([]float64, n),
	}
	for i := range v.Lon {
		for j := range v.Lat {
			c := i*len(v.Lat) + j
			l.Temp[c] = v.Temp(i, j, k)
			l.Salt[c] = v.Salt(i, j, k)
		}
	}
	return l
}

// Extend returns a volume whose layers are v's followed by every layer of
// deeper that lies strictly below v's last depth.
func (v *Volume) Extend(deeper *Volume) (*Volume, error) {
	if len(deeper.Lon) != len(v.Lon) || len(deeper.Lat) != len(v.Lat) {
		return nil, fmt.Errorf("%w: %s is %dx%d, %s is %dx%d", ErrGridMismatch,
			v.Index, len(v.Lon), len(v.Lat), deeper.Index, len(deeper.Lon), len(deeper.Lat))
	}
	start := sort.Search(len(deeper.Depth), func(k int) bool { return deeper.Depth[k] > v.MaxDepth() })
	extra := deeper.Depth[start:]
	if len(extra) == 0 {
		return v, nil
	}

	depth := append(append([]float64{}, v.Depth...), extra...)
	nd := len(depth)
	n := len(v.Lon) * len(v.Lat) * nd
	temp := make([]float64, n)
	salt := make([]float64, n)
	for i := range v.Lon {
		for j := range v.Lat {
			base := (i*len(v.Lat) + j) * nd
			for k := range v.Depth {
				temp[base+k] = v.Temp(i, j, k)
				salt[base+k] = v.Salt(i, j, k)
			}
			for e := range extra {
				temp[base+len(v.Depth)+e] = deeper.Temp(i, j, start+e)
				salt[base+len(v.Depth)+e] = deeper.Salt(i, j, start+e)
			}
		}
	}
	return NewVolume(v.Index, v.Lon, v.Lat, depth, temp, salt)
}

// Layer is one depth slice of a volume, stored (lon, lat) with lat fastest.
type Layer struct {
	Depth float64
	Lon   []float64
	Lat   []float64
	Temp  []float64
	Salt  []float64
}

// MissingRatio returns the fraction of cells where temperature or salinity is
// missing.
func (l Layer) MissingRatio() float64 {
	if len(l.Temp) == 0 {
		return 1
	}
	missing := 0
	for c := range l.Temp {
		if math.IsNaN(l.Temp[c]) || math.IsNaN(l.Salt[c]) {
			missing++
		}
	}
	return float64(missing) / float64(len(l.Temp))
}

// Filled returns a copy of l with missing cells replaced by the layer mean.
// It reports false when more than MaxMissingRatio of the cells are missing,
// in which case the layer must not be interpolated.
func (l Layer) Filled() (Layer, bool) {
	if l.MissingRatio() > MaxMissingRatio {
		return l, false
	}
	out := l
	out.Temp = fillMean(l.Temp)
	out.Salt = fillMean(l.Salt)
	return out, true
}

func fillMean(vals []float64) []float64 {
	present := make([]float64, 0, len(vals))
	for _, x := range vals {
		if !math.IsNaN(x) {
			present = append(present, x)
		}
	}
	out := make([]float64, len(vals))
	copy(out, vals)
	if len(present) == 0 {
		return out
	}
	mean := floats.Sum(present) / float64(len(present))
	for i, x := range out {
		if math.IsNaN(x) {
			out[i] = mean
		}
	}
	return out
}

// At bilinearly interpolates temperature and salinity at (lat, lon). Points
// outside the layer's grid take the value at the nearest edge.
func (l Layer) At(lat, lon float64) (float64, float64) {
	nLat := len(l.Lat)
	t := gridutil.Bilinear(l.Lon, l.Lat, func(i, j int) float64 { return l.Temp[i*nLat+j] }, lon, lat, true)
	s := gridutil.Bilinear(l.Lon, l.Lat, func(i, j int) float64 { return l.Salt[i*nLat+j] }, lon, lat, true)
	return t, s
}

// Atlas is the set of loaded climatology periods over one shared grid. It is
// read-only once loading finishes.
type Atlas struct {
	Lon     []float64
	Lat     []float64
	volumes map[TimeIndex]*Volume
}

// NewAtlas returns an empty atlas.
func NewAtlas() *Atlas {
	return &Atlas{volumes: make(map[TimeIndex]*Volume)}
}

// Add stores v, adopting its grid if it is the first volume.
func (a *Atlas) Add(v *Volume) error {
	if a.Lon == nil && a.Lat == nil {
		a.Lon, a.Lat = v.Lon, v.Lat
	} else if len(v.Lon) != len(a.Lon) || len(v.Lat) != len(a.Lat) {
		return fmt.Errorf("%w: %s is %dx%d, atlas is %dx%d", ErrGridMismatch,
			v.Index, len(v.Lon), len(v.Lat), len(a.Lon), len(a.Lat))
	}
	a.volumes[v.Index] = v
	return nil
}

// Volume returns the raw volume for idx.
func (a *Atlas) Volume(idx TimeIndex) (*Volume, bool) {
	v, ok := a.volumes[idx]
	return v, ok
}

// Indices lists the loaded periods in ascending order.
func (a *Atlas) Indices() []TimeIndex {
	out := make([]TimeIndex, 0, len(a.volumes))
	for idx := range a.volumes {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Layers returns the usable volume for idx. Periods shallower than the annual
// mean are extended with the annual layers below their last depth.
func (a *Atlas) Layers(idx TimeIndex) (*Volume, error) {
	v, ok := a.volumes[idx]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTimeIndexNotLoaded, idx)
	}
	if idx == Annual {
		return v, nil
	}
	annual, ok := a.volumes[Annual]
	if !ok {
		if idx.IsMonthly() {
			opsf("annual climatology not loaded; %s limited to %.0f m", idx, v.MaxDepth())
		}
		return v, nil
	}
	if annual.MaxDepth() <= v.MaxDepth() {
		return v, nil
	}
	return v.Extend(annual)
}
