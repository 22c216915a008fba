package climatology

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/banshee-data/seaenv/internal/ncutil"
)

// Default file naming for the WOA23 0.25° decadal-average product.
const (
	DefaultTempPattern = "woa23_decav91C0_t%s_04.nc"
	DefaultSaltPattern = "woa23_decav91C0_s%s_04.nc"
)

// ErrEmptyRegion is returned when the configured region selects no cells.
var ErrEmptyRegion = errors.New("climatology region is empty")

// LoaderConfig locates the climatology files and bounds the region kept in
// memory.
type LoaderConfig struct {
	Dir         string
	TempPattern string // fmt pattern with one %s for the period code
	SaltPattern string
	TempVar     string
	SaltVar     string
	LatRange    [2]float64
	LonRange    [2]float64
}

func (c LoaderConfig) withDefaults() LoaderConfig {
	if c.TempPattern == "" {
		c.TempPattern = DefaultTempPattern
	}
	if c.SaltPattern == "" {
		c.SaltPattern = DefaultSaltPattern
	}
	if c.TempVar == "" {
		c.TempVar = "t_an"
	}
	if c.SaltVar == "" {
		c.SaltVar = "s_an"
	}
	return c
}

// Loader reads temperature/salinity file pairs into an Atlas.
type Loader struct {
	cfg LoaderConfig
}

// NewLoader creates a Loader.
func NewLoader(cfg LoaderConfig) *Loader {
	return &Loader{cfg: cfg.withDefaults()}
}

// Load reads every requested period. Periods whose files are absent are
// skipped and reported in the returned warnings.
func (l *Loader) Load(ctx context.Context, indices ...TimeIndex) (*Atlas, []string, error) {
	atlas := NewAtlas()
	var warnings []string
	for _, idx := range indices {
		if err := ctx.Err(); err != nil {
			return nil, warnings, err
		}
		if !idx.Valid() {
			return nil, warnings, fmt.Errorf("invalid time index %d", int(idx))
		}
		if _, done := atlas.Volume(idx); done {
			continue
		}
		v, err := l.loadVolume(idx)
		if errors.Is(err, fs.ErrNotExist) {
			msg := fmt.Sprintf("climatology %s missing: %v", idx, err)
			opsf("%s", msg)
			warnings = append(warnings, msg)
			continue
		}
		if err != nil {
			return nil, warnings, err
		}
		if err := atlas.Add(v); err != nil {
			return nil, warnings, err
		}
		diagf("loaded %s: %dx%d cells, %d depths to %.0f m", idx, len(v.Lon), len(v.Lat), len(v.Depth), v.MaxDepth())
	}
	return atlas, warnings, nil
}

func (l *Loader) path(pattern string, idx TimeIndex) string {
	return filepath.Join(l.cfg.Dir, fmt.Sprintf(pattern, idx.FileCode()))
}

func (l *Loader) loadVolume(idx TimeIndex) (*Volume, error) {
	tf, err := ncutil.Open(l.path(l.cfg.TempPattern, idx))
	if err != nil {
		return nil, err
	}
	defer tf.Close()
	sf, err := ncutil.Open(l.path(l.cfg.SaltPattern, idx))
	if err != nil {
		return nil, err
	}
	defer sf.Close()

	lon, _, err := tf.ReadAll("lon")
	if err != nil {
		return nil, err
	}
	lat, _, err := tf.ReadAll("lat")
	if err != nil {
		return nil, err
	}
	depth, _, err := tf.ReadAll("depth")
	if err != nil {
		return nil, err
	}

	lo, hi, ok := window(lon, l.cfg.LonRange)
	if !ok {
		return nil, fmt.Errorf("%w: longitude %v", ErrEmptyRegion, l.cfg.LonRange)
	}
	la, ha, ok := window(lat, l.cfg.LatRange)
	if !ok {
		return nil, fmt.Errorf("%w: latitude %v", ErrEmptyRegion, l.cfg.LatRange)
	}

	r := cropper{
		nLon: len(lon), nLat: len(lat), nDepth: len(depth),
		lonLo: lo, lonHi: hi, latLo: la, latHi: ha,
	}
	temp, err := r.read(tf, l.cfg.TempVar)
	if err != nil {
		return nil, err
	}
	salt, err := r.read(sf, l.cfg.SaltVar)
	if err != nil {
		return nil, err
	}
	return NewVolume(idx, lon[lo:hi], lat[la:ha], depth, temp, salt)
}

// window returns the half-open index span of the ascending axis inside the
// inclusive range.
func window(axis []float64, rng [2]float64) (int, int, bool) {
	lo, hi := -1, -1
	for i, x := range axis {
		if x >= rng[0] && x <= rng[1] {
			if lo < 0 {
				lo = i
			}
			hi = i + 1
		}
	}
	return lo, hi, lo >= 0
}

// cropper reads a (time?, depth, lat, lon) variable one depth layer at a time
// and reorders the kept window into (lon, lat, depth).
type cropper struct {
	nLon, nLat, nDepth int
	lonLo, lonHi       int
	latLo, latHi       int
}

func (c cropper) read(f *ncutil.File, name string) ([]float64, error) {
	shape, err := f.Shape(name)
	if err != nil {
		return nil, err
	}
	lead := len(shape) - 3
	if lead < 0 || shape[lead] != c.nDepth || shape[lead+1] != c.nLat || shape[lead+2] != c.nLon {
		return nil, fmt.Errorf("%s: shape %v does not match depth=%d lat=%d lon=%d", name, shape, c.nDepth, c.nLat, c.nLon)
	}

	nLon, nLat := c.lonHi-c.lonLo, c.latHi-c.latLo
	out := make([]float64, nLon*nLat*c.nDepth)
	for k := 0; k < c.nDepth; k++ {
		begin := make([]int, len(shape))
		end := make([]int, len(shape))
		begin[lead] = k
		end[lead] = k + 1
		if end[lead] == c.nDepth && lead > 0 {
			end[lead] = 0
			end[lead-1] = 1
		}
		layer, err := f.ReadSlab(name, begin, end)
		if err != nil {
			return nil, err
		}
		for i := 0; i < nLon; i++ {
			for j := 0; j < nLat; j++ {
				src := (c.latLo+j)*c.nLon + c.lonLo + i
				out[(i*nLat+j)*c.nDepth+k] = layer[src]
			}
		}
		tracef("%s layer %d read (%d cells)", name, k, len(layer))
	}
	return out, nil
}
