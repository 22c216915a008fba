// Package bellhop serializes synthesized environments into the text files
// read by the BELLHOP ray tracer and replicates them across frequencies.
package bellhop

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// File extensions of one propagation input.
const (
	ExtEnv = ".env"
	ExtBty = ".bty"
	ExtSSP = ".ssp"
	ExtTrc = ".trc"
	ExtBrc = ".brc"
)

// AuxExtensions lists the files that accompany a main .env file.
var AuxExtensions = []string{ExtTrc, ExtBty, ExtBrc, ExtSSP}

// Defaults used by the environment generator.
const (
	DefaultTopOption    = "QFWT"
	DefaultBottomOption = "F*"
	DefaultRunType      = "A"
	DefaultBathyInterp  = "LS"
	DefaultBeamType     = "MS"
)

// ErrInvalidInput is wrapped by every Validate failure.
var ErrInvalidInput = errors.New("invalid propagation input")

// SSPPoint is one row of a medium's sound speed profile.
type SSPPoint struct {
	Depth            float64 // m
	Speed            float64 // compressional, m/s
	ShearSpeed       float64
	Density          float64 // g/cm³
	Attenuation      float64
	ShearAttenuation float64
}

// Medium is one layer of the SSP block.
type Medium struct {
	Mesh   int
	Sigma  float64
	Points []SSPPoint
}

// SSP is the layered sound speed block. Depths holds the interface depths,
// one more than the number of media.
type SSP struct {
	Depths []float64
	Media  []Medium
}

// HalfSpace describes an acoustic half-space beyond a boundary.
type HalfSpace struct {
	Speed            float64
	ShearSpeed       float64
	Density          float64
	Attenuation      float64
	ShearAttenuation float64
}

// Boundary is a top or bottom option string with its optional half-space.
// The half-space is written only when the option selects one.
type Boundary struct {
	Option    string
	HalfSpace HalfSpace
}

// Beam holds the run type and beam fan parameters.
type Beam struct {
	RunType   string
	Count     int
	Angles    [2]float64 // degrees
	Step      float64    // m, 0 lets the solver choose
	BoxDepth  float64    // m
	BoxRange  float64    // km
	Type      string
	EpsMult   float64
	LoopRange float64 // km
	Images    int
	Window    int
}

// cerveny reports whether the run type carries the Gaussian beam block.
func (b Beam) cerveny() bool {
	if len(b.RunType) < 2 {
		return false
	}
	switch b.RunType[1] {
	case 'G', 'B', 'S':
		return false
	}
	return true
}

// Bathymetry is the range-dependent seafloor written to the .bty file.
type Bathymetry struct {
	Interp string
	Range  []float64 // km from the source
	Depth  []float64 // m
}

// RangeSSP is the range-dependent sound speed grid written to the .ssp file.
// Speed has one row per depth and one column per range.
type RangeSSP struct {
	Range []float64 // km
	Speed *mat.Dense
}

// Input is everything needed to write one propagation input.
type Input struct {
	Title     string
	Frequency float64 // Hz

	SSP    SSP
	Top    Boundary
	Bottom Boundary

	SourceDepths   []float64 // m
	ReceiverDepths []float64 // m
	ReceiverRanges []float64 // km

	Beam       Beam
	Bathymetry Bathymetry
	RangeSSP   RangeSSP
}

// WithFrequency returns a copy of the input at another frequency. Slices and
// matrices are shared with the receiver and must be treated as read-only.
func (in *Input) WithFrequency(freq float64) *Input {
	out := *in
	out.Frequency = freq
	return &out
}

// Validate checks the structural invariants the file formats rely on.
func (in *Input) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
	}

	if in.Title == "" {
		return invalid("title is empty")
	}
	if strings.ContainsAny(in.Title, "'\r\n") {
		return invalid("title %q contains a quote or line break", in.Title)
	}
	if !(in.Frequency > 0) || math.IsInf(in.Frequency, 0) {
		return invalid("frequency must be positive, got %v", in.Frequency)
	}
	if len(in.SSP.Media) == 0 {
		return invalid("no media")
	}
	if len(in.SSP.Depths) != len(in.SSP.Media)+1 {
		return invalid("%d interface depths for %d media", len(in.SSP.Depths), len(in.SSP.Media))
	}
	for i, m := range in.SSP.Media {
		if len(m.Points) == 0 {
			return invalid("medium %d has no profile points", i)
		}
	}
	if in.Top.Option == "" || in.Bottom.Option == "" {
		return invalid("boundary option is empty")
	}
	if in.Beam.RunType == "" {
		return invalid("run type is empty")
	}
	if len(in.SourceDepths) == 0 || len(in.ReceiverDepths) == 0 || len(in.ReceiverRanges) == 0 {
		return invalid("source depths, receiver depths and ranges must be non-empty")
	}
	if len(in.Bathymetry.Range) == 0 || len(in.Bathymetry.Range) != len(in.Bathymetry.Depth) {
		return invalid("bathymetry has %d ranges and %d depths", len(in.Bathymetry.Range), len(in.Bathymetry.Depth))
	}
	if in.RangeSSP.Speed == nil {
		return invalid("range-dependent SSP is missing")
	}
	if _, c := in.RangeSSP.Speed.Dims(); c != len(in.RangeSSP.Range) {
		return invalid("range-dependent SSP has %d columns for %d ranges", c, len(in.RangeSSP.Range))
	}
	return nil
}
