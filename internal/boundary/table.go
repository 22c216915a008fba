// Package boundary computes sea-surface and seabed reflection coefficient
// tables over grazing angle.
package boundary

import (
	"errors"
	"fmt"
)

// NumAngles is the number of rows in a reflection table (0° to 90° in 1° steps).
const NumAngles = 91

var (
	// ErrNoFrequencies is returned when no frequency is supplied.
	ErrNoFrequencies = errors.New("reflection needs at least one frequency")
	// ErrUnknownBottomType is returned for an unrecognised seabed name.
	ErrUnknownBottomType = errors.New("unknown bottom type")
)

// Row is one reflection table entry. Angle and Phase are in degrees.
type Row struct {
	Angle     float64
	Magnitude float64
	Phase     float64
}

// Table holds one row per integer grazing angle.
type Table [NumAngles]Row

// Magnitudes returns the magnitude column.
func (t *Table) Magnitudes() []float64 {
	out := make([]float64, NumAngles)
	for i, r := range t {
		out[i] = r.Magnitude
	}
	return out
}

func validFrequencies(freqs []float64) error {
	if len(freqs) == 0 {
		return ErrNoFrequencies
	}
	for _, f := range freqs {
		if !(f > 0) {
			return fmt.Errorf("frequency must be positive, got %v", f)
		}
	}
	return nil
}
