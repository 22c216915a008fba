// Package transect builds straight sampling lines from an acoustic source
// using a flat-earth bearing/distance approximation.
package transect

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/seaenv/internal/units"
)

// ErrNoRanges is returned when a transect is requested without ranges.
var ErrNoRanges = errors.New("transect needs at least one range")

// SampleSpacingKm is the distance between consecutive transect points.
const SampleSpacingKm = 1.0

// Point is a geographic position in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Transect is an ordered line of points from Source toward the farthest
// receiver range along Bearing.
type Transect struct {
	Source   Point
	Bearing  float64   // degrees clockwise from north
	Ranges   []float64 // receiver ranges, km
	Points   []Point
	Distance []float64 // km from Source for each point
}

// EndPoint returns the point rangeKm from start along bearing (degrees
// clockwise from north).
func EndPoint(start Point, bearing, rangeKm float64) Point {
	b := units.DegToRad(bearing)
	return Point{
		Lat: start.Lat + rangeKm*math.Cos(b)/units.KmPerDegree,
		Lon: start.Lon + rangeKm*math.Sin(b)/(units.KmPerDegree*math.Cos(units.DegToRad(start.Lat))),
	}
}

// Build samples the line from start to the end point of the largest range at
// 1 km spacing. At least two points are always produced.
func Build(start Point, bearing float64, ranges []float64) (*Transect, error) {
	if len(ranges) == 0 {
		return nil, ErrNoRanges
	}
	for _, r := range ranges {
		if r < 0 || math.IsNaN(r) || math.IsInf(r, 0) {
			return nil, fmt.Errorf("invalid range %v km", r)
		}
	}
	maxRange := floats.Max(ranges)
	end := EndPoint(start, bearing, maxRange)

	n := int(maxRange/SampleSpacingKm) + 1
	if n < 2 {
		n = 2
	}
	lats := floats.Span(make([]float64, n), start.Lat, end.Lat)
	lons := floats.Span(make([]float64, n), start.Lon, end.Lon)
	dist := floats.Span(make([]float64, n), 0, maxRange)

	points := make([]Point, n)
	for i := range points {
		points[i] = Point{Lat: lats[i], Lon: lons[i]}
	}
	return &Transect{
		Source:   start,
		Bearing:  bearing,
		Ranges:   append([]float64(nil), ranges...),
		Points:   points,
		Distance: dist,
	}, nil
}

// MaxRange returns the largest receiver range in km.
func (t *Transect) MaxRange() float64 {
	return floats.Max(t.Ranges)
}

// Len returns the number of sample points.
func (t *Transect) Len() int { return len(t.Points) }
