package boundary

import (
	"fmt"
	"math"

	"github.com/banshee-data/seaenv/internal/units"
)

// WaveHeights maps sea-state level (0–8) to significant wave height in metres.
var WaveHeights = [...]float64{0, 0.1, 0.5, 1.25, 2.5, 4, 6, 9, 14}

// rmsFactor converts wave height to rms roughness.
const rmsFactor = 0.707

// SurfacePhase is the phase reported for every sea-surface row.
const SurfacePhase = 180.0

// SurfaceLoss returns the Rayleigh rough-surface reflection table for the
// given sea state and near-surface sound speed, averaging the coefficient
// magnitude over freqs.
func SurfaceLoss(seaState int, cSurface float64, freqs []float64) (Table, error) {
	var t Table
	if seaState < 0 || seaState >= len(WaveHeights) {
		return t, fmt.Errorf("sea state %d outside 0..%d", seaState, len(WaveHeights)-1)
	}
	if !(cSurface > 0) {
		return t, fmt.Errorf("surface sound speed must be positive, got %v", cSurface)
	}
	if err := validFrequencies(freqs); err != nil {
		return t, err
	}

	sigma := WaveHeights[seaState] * rmsFactor
	for a := 0; a < NumAngles; a++ {
		sinA := math.Sin(units.DegToRad(float64(a)))
		var sum float64
		for _, f := range freqs {
			tau := 2 * units.Wavenumber(f, cSurface) * sigma * sinA
			r := -math.Exp(-tau * tau / 2)
			sum += math.Abs(r)
		}
		t[a] = Row{Angle: float64(a), Magnitude: sum / float64(len(freqs)), Phase: SurfacePhase}
	}
	return t, nil
}
