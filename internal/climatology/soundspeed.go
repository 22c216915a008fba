package climatology

import (
	"fmt"
	"math"
)

// Substitutes used while evaluating the polynomial over missing inputs.
const (
	fillTemperature = 0.0
	fillSalinity    = 35.0
)

// SoundSpeed returns the empirical speed of sound in sea water (m/s) for
// temperature t (°C), salinity s (PSU) and depth d (m). The result is NaN when
// either t or s is NaN.
func SoundSpeed(t, s, d float64) float64 {
	if math.IsNaN(t) || math.IsNaN(s) {
		return math.NaN()
	}
	return soundSpeed(t, s, d)
}

func soundSpeed(t, s, d float64) float64 {
	return 1449.2 + 4.6*t - 0.055*t*t + 0.00029*t*t*t + (1.34-0.01*t)*(s-35) + 0.017*d
}

// SoundSpeeds evaluates SoundSpeed elementwise. temp and salt have matching
// length n·len(depth) laid out depth-major (row k holds depth[k]); depth is
// broadcast along each row. Missing inputs are substituted before evaluation
// and restored as NaN afterwards.
func SoundSpeeds(temp, salt, depth []float64) ([]float64, error) {
	if len(temp) != len(salt) {
		return nil, fmt.Errorf("temperature and salinity lengths differ: %d vs %d", len(temp), len(salt))
	}
	if len(depth) == 0 {
		return nil, fmt.Errorf("depth axis is empty")
	}
	if len(temp)%len(depth) != 0 {
		return nil, fmt.Errorf("%d samples do not tile %d depths", len(temp), len(depth))
	}
	perDepth := len(temp) / len(depth)
	out := make([]float64, len(temp))
	for i := range temp {
		t, s := temp[i], salt[i]
		missing := math.IsNaN(t) || math.IsNaN(s)
		if math.IsNaN(t) {
			t = fillTemperature
		}
		if math.IsNaN(s) {
			s = fillSalinity
		}
		out[i] = soundSpeed(t, s, depth[i/perDepth])
		if missing {
			out[i] = math.NaN()
		}
	}
	return out, nil
}
