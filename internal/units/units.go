// Package units provides shared constants and conversions for geographic
// and acoustic quantities.
package units

import "math"

// KmPerDegree is the flat-earth distance of one degree of latitude.
const KmPerDegree = 111.0

// MetersPerKm converts kilometres to metres.
const MetersPerKm = 1000.0

// Zone type constants name the bathymetric class of a coordinate group.
// They double as the top-level output directory names.
const (
	Shallow    = "Shallow"
	Transition = "Transition"
	Deep       = "Deep"
)

// ZoneTypes contains all zone types in output walk order.
var ZoneTypes = []string{Shallow, Transition, Deep}

// IsValidZone checks if the given zone type is known.
func IsValidZone(zone string) bool {
	for _, z := range ZoneTypes {
		if zone == z {
			return true
		}
	}
	return false
}

// GetValidZonesString returns a comma-separated string of zone types for error messages
func GetValidZonesString() string {
	return "Shallow, Transition, Deep"
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}

// Wavenumber returns the acoustic wavenumber 2πf/c in rad/m.
func Wavenumber(freqHz, speed float64) float64 {
	return 2 * math.Pi * freqHz / speed
}
