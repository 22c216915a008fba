package boundary

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"github.com/banshee-data/seaenv/internal/units"
)

// BottomPhase is the phase reported for every seabed row. The recursion is
// phase-aware but only magnitudes are carried into the table.
const BottomPhase = 0.0

// Layer is one horizontal medium. Depth is the top of the layer below the
// water/seabed interface, metres. Attenuation is dB per wavelength.
type Layer struct {
	Speed       float64
	Depth       float64
	Density     float64
	Attenuation float64
}

// LayerStack lists media from the water column (index 0) downward. The last
// layer is a half-space.
type LayerStack []Layer

type bottomProfile struct {
	speed   []float64 // sediment layers, the water speed is prepended
	depth   []float64
	density []float64
}

var bottomProfiles = map[string]bottomProfile{
	"IMG": {
		speed:   []float64{1500},
		depth:   []float64{0, 1},
		density: []float64{1, 1},
	},
	"D05": {
		speed:   []float64{1542.05, 1502.70, 1500.39, 1499.09, 1492.67, 1489.81, 1495.51, 1569.88, 1580.84, 1583.34},
		depth:   []float64{0, 0.462, 0.954, 1.453, 1.945, 2.443, 2.91, 3.406, 3.898, 4.395, 4.895},
		density: []float64{1, 1.51, 1.36, 1.37, 1.35, 1.38, 1.37, 1.38, 1.50, 1.45, 1.40},
	},
	"D40": {
		speed:   []float64{1568.69, 1664.50, 1591.08, 1569.42, 1587, 1562.01},
		depth:   []float64{0, 0.467, 0.967, 1.462, 1.958, 2.463, 3.268},
		density: []float64{1, 1.52, 1.72, 1.63, 1.58, 1.60, 1.57},
	},
	"SCS-4": {
		speed:   []float64{1609.87, 1591.64, 1589.51, 1552.50},
		depth:   []float64{0, 0.468, 0.962, 1.465, 2.158},
		density: []float64{1, 1.69, 1.64, 1.61, 1.51},
	},
}

// BottomTypes lists the built-in seabed names.
func BottomTypes() []string {
	out := make([]string, 0, len(bottomProfiles))
	for name := range bottomProfiles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// BottomType builds the layer stack for a named seabed. waterSpeed is the
// sound speed just above the seabed; alphaB is the sediment attenuation. The
// IMG mirror bottom carries no attenuation.
func BottomType(name string, waterSpeed, alphaB float64) (LayerStack, error) {
	p, ok := bottomProfiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBottomType, name)
	}
	if name == "IMG" {
		alphaB = 0
	}
	stack := make(LayerStack, len(p.depth))
	for k := range stack {
		speed := waterSpeed
		alpha := 0.0
		if k > 0 {
			speed = p.speed[k-1]
			alpha = alphaB
		}
		stack[k] = Layer{Speed: speed, Depth: p.depth[k], Density: p.density[k], Attenuation: alpha}
	}
	return stack, nil
}

// BottomLoss returns the seabed reflection table for stack, averaging the
// coefficient magnitude over freqs. Degenerate angles count as total
// reflection.
func BottomLoss(stack LayerStack, freqs []float64) (Table, error) {
	var t Table
	if len(stack) < 2 {
		return t, fmt.Errorf("layer stack needs at least 2 media, got %d", len(stack))
	}
	if err := validFrequencies(freqs); err != nil {
		return t, err
	}
	for a := 0; a < NumAngles; a++ {
		graze := units.DegToRad(float64(a))
		var sum float64
		for _, f := range freqs {
			r := stack.Reflection(f, graze)
			if cmplx.IsNaN(r) {
				sum++
				continue
			}
			sum += cmplx.Abs(r)
		}
		t[a] = Row{Angle: float64(a), Magnitude: sum / float64(len(freqs)), Phase: BottomPhase}
	}
	return t, nil
}

// Reflection returns the complex plane-wave reflection coefficient seen from
// the water at grazing angle graze (radians) and frequency freq (Hz). The
// stack is folded from the deepest interface upward.
func (s LayerStack) Reflection(freq, graze float64) complex128 {
	n := len(s)
	cosG := math.Cos(graze)
	angle := func(k int) float64 {
		// Snell's law referenced to the water column; NaN past critical
		return math.Acos(s[k].Speed / s[0].Speed * cosG)
	}
	impedance := func(k int, a float64) float64 {
		return s[k].Speed * s[k].Density / math.Sin(a)
	}

	aTemp := angle(n - 2)
	zTemp := impedance(n-2, aTemp)
	zBelow := impedance(n-1, angle(n-1))
	r := complex((zBelow-zTemp)/(zBelow+zTemp), 0)

	for k := n - 3; k >= 0; k-- {
		aUp := angle(k)
		zUp := impedance(k, aUp)
		rUp := complex((zTemp-zUp)/(zTemp+zUp), 0)

		// one-way phase across layer k+1, wavenumber taken in the medium below
		phi := units.Wavenumber(freq, s[k+2].Speed) * (s[k+2].Depth - s[k+1].Depth) * math.Sin(aTemp)
		e := cmplx.Exp(complex(0, 2*phi))
		r = (rUp + r*e) / (1 + rUp*r*e)

		zTemp, aTemp = zUp, aUp
	}
	return r
}
