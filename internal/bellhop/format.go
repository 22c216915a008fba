package bellhop

import (
	"fmt"
	"io"
	"math"

	"github.com/banshee-data/seaenv/internal/boundary"
)

// Tolerances of the equal-spacing test applied to written lists.
const (
	spacingAbsTol = 1e-6
	spacingRelTol = 1e-5
)

// errWriter keeps the first write error so a long run of Fprintf calls can be
// checked once.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

// FrequencyLine returns the second line of a .env file, newline included.
func FrequencyLine(freq float64) string {
	return fmt.Sprintf("%8.2f  \t \t \t ! Frequency (Hz) \n", freq)
}

// WriteEnv writes the main .env file.
func WriteEnv(w io.Writer, in *Input) error {
	ew := &errWriter{w: w}
	ssp := in.SSP

	ew.printf("'%s' ! Title \n", in.Title)
	ew.printf("%s", FrequencyLine(in.Frequency))
	ew.printf("%5d    \t \t \t ! NMedia \n", len(ssp.Media))
	ew.printf("'%s' \t \t \t ! Top Option \n", in.Top.Option)
	if len(in.Top.Option) > 1 && in.Top.Option[1] == 'A' {
		writeHalfSpace(ew, ssp.Depths[0], in.Top.HalfSpace, "upper halfspace")
	}

	for i, m := range ssp.Media {
		ew.printf("%5d %4.2f %6.2f \t ! N sigma depth \n", m.Mesh, m.Sigma, ssp.Depths[i+1])
		for _, p := range m.Points {
			ew.printf("\t %6.2f %6.2f %6.2f %6.2g %10.6f %6.2f / \t ! z c cs rho \n",
				p.Depth, p.Speed, p.ShearSpeed, p.Density, p.Attenuation, p.ShearAttenuation)
		}
	}

	ew.printf("'%s' %6.2f  \t \t ! Bottom Option, sigma \n", in.Bottom.Option, 0.0)
	if in.Bottom.Option[0] == 'A' {
		writeHalfSpace(ew, ssp.Depths[len(ssp.Media)], in.Bottom.HalfSpace, "lower halfspace")
	}

	ew.printf("%5d \t \t \t \t ! NSz \n", len(in.SourceDepths))
	writeList(ew, in.SourceDepths, "Sz(1)  ... (m)")
	ew.printf("%5d \t \t \t \t ! NRz \n", len(in.ReceiverDepths))
	writeList(ew, in.ReceiverDepths, "Rz(1)  ... (m)")
	ew.printf("%5d \t \t \t \t ! NRr \n", len(in.ReceiverRanges))
	writeList(ew, in.ReceiverRanges, "Rr(1)  ... (km)")

	writeBeam(ew, in.Beam)
	return ew.err
}

func writeHalfSpace(ew *errWriter, depth float64, hs HalfSpace, comment string) {
	ew.printf("    %6.2f %6.2f %6.2f %6.2g %6.2f %6.2f /  \t ! %s \n",
		depth, hs.Speed, hs.ShearSpeed, hs.Density, hs.Attenuation, hs.ShearAttenuation, comment)
}

// writeList writes an equally spaced list as its first and last value and
// anything else element by element.
func writeList(ew *errWriter, vals []float64, comment string) {
	if EquallySpaced(vals) {
		ew.printf("    %6f %6f", vals[0], vals[len(vals)-1])
	} else {
		for _, v := range vals {
			ew.printf("    %6f  ", v)
		}
	}
	ew.printf("/ \t ! %s \n", comment)
}

// EquallySpaced reports whether vals has at least two elements and every
// consecutive difference matches the first one within tolerance.
func EquallySpaced(vals []float64) bool {
	if len(vals) < 2 {
		return false
	}
	d0 := vals[1] - vals[0]
	for i := 2; i < len(vals); i++ {
		d := vals[i] - vals[i-1]
		if math.Abs(d-d0) > spacingAbsTol+spacingRelTol*math.Abs(d0) {
			return false
		}
	}
	return true
}

func writeBeam(ew *errWriter, b Beam) {
	ew.printf("'%s' \t \t \t \t ! Run Type \n", b.RunType)
	ew.printf("%d \t \t \t \t \t! Nbeams \n", b.Count)
	ew.printf("%f %f / \t \t ! angles (degrees) \n", b.Angles[0], b.Angles[1])
	ew.printf("%f %f %f \t ! deltas (m) Box.z (m) Box.r (km) \n", b.Step, b.BoxDepth, b.BoxRange)
	if b.cerveny() {
		typ := b.Type
		if len(typ) > 2 {
			typ = typ[:2]
		}
		ew.printf("'%s' %f %f  \t \t ! 'Min/Fill/Cer, Sin/Doub/Zero' Epsmult RLoop (km) \n",
			typ, b.EpsMult, b.LoopRange)
		ew.printf("%d %d  \t \t \t \t ! Nimage Ibwin \n", b.Images, b.Window)
	}
}

// WriteBty writes the bathymetry file.
func WriteBty(w io.Writer, b Bathymetry) error {
	ew := &errWriter{w: w}
	ew.printf("'%s'\n", b.Interp)
	ew.printf("%d\n", len(b.Range))
	for i := range b.Range {
		ew.printf("%f %f\n", b.Range[i], b.Depth[i])
	}
	return ew.err
}

// WriteSSP writes the range-dependent sound speed file.
func WriteSSP(w io.Writer, s RangeSSP) error {
	ew := &errWriter{w: w}
	ew.printf("%d\n", len(s.Range))
	for _, r := range s.Range {
		ew.printf("%6.3f ", r)
	}
	ew.printf("\n")
	rows, cols := s.Speed.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			ew.printf("%6.1f ", s.Speed.At(i, j))
		}
		ew.printf("\n")
	}
	return ew.err
}

// WriteReflection writes a .trc or .brc reflection table.
func WriteReflection(w io.Writer, t *boundary.Table) error {
	ew := &errWriter{w: w}
	ew.printf("%d \n", len(t))
	for _, r := range t {
		ew.printf("%6.2f  %6.2f  %6.2f\n", r.Angle, r.Magnitude, r.Phase)
	}
	return ew.err
}
