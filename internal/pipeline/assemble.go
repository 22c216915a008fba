package pipeline

import (
	"fmt"
	"math"

	"github.com/banshee-data/seaenv/internal/bellhop"
	"github.com/banshee-data/seaenv/internal/boundary"
	"github.com/banshee-data/seaenv/internal/environment"
	"github.com/banshee-data/seaenv/internal/transect"
)

// Geometry margins added to the deepest seafloor (m) and the transect
// length (km) for the beam box.
const (
	BoxDepthMargin = 500.0
	BoxRangeMargin = 1.0
)

// bottomHalfSpace is written for the acousto-elastic bottom option.
var bottomHalfSpace = bellhop.HalfSpace{Speed: 1500, Density: 1}

// BuildInput assembles the propagation input of unit u from its transect and
// extracted environment. The transect spans the group's farthest receiver,
// so every unit of a group shares the same geometry and differs only in
// receiver range and naming.
func BuildInput(u Unit, tr *transect.Transect, env *environment.Environment, p Params) (*bellhop.Input, error) {
	if env == nil || env.Profile == nil || len(env.Profile.Depth) == 0 {
		return nil, fmt.Errorf("%s: environment has no profile", u)
	}
	if len(env.SeaDepth) != tr.Len() {
		return nil, fmt.Errorf("%s: %d seafloor depths for %d transect points", u, len(env.SeaDepth), tr.Len())
	}

	prof := env.Profile
	points := make([]bellhop.SSPPoint, len(prof.Depth))
	for i := range prof.Depth {
		points[i] = bellhop.SSPPoint{Depth: prof.Depth[i], Speed: prof.Speed[i], Density: 1}
	}

	ranges := make([]float64, tr.Len())
	for i, d := range tr.Distance {
		ranges[i] = d - p.SourceRange
	}

	beam := p.Beam
	beam.Count = 0
	beam.Step = 0
	beam.BoxDepth = math.Ceil(env.MaxSeaDepth()) + BoxDepthMargin
	beam.BoxRange = tr.MaxRange() + BoxRangeMargin

	return &bellhop.Input{
		Title:     bellhop.Title(u.Group.GroupID, u.RangeKm),
		Frequency: p.Frequency,
		SSP: bellhop.SSP{
			Depths: []float64{0, prof.MaxDepth()},
			Media:  []bellhop.Medium{{Points: points}},
		},
		Top:            bellhop.Boundary{Option: p.TopOption},
		Bottom:         bellhop.Boundary{Option: p.BottomOption, HalfSpace: bottomHalfSpace},
		SourceDepths:   []float64{p.SourceDepth},
		ReceiverDepths: append([]float64(nil), u.Group.ReceiveDepths...),
		ReceiverRanges: []float64{u.RangeKm},
		Beam:           beam,
		Bathymetry: bellhop.Bathymetry{
			Interp: bellhop.DefaultBathyInterp,
			Range:  ranges,
			Depth:  append([]float64(nil), env.SeaDepth...),
		},
		RangeSSP: bellhop.RangeSSP{Range: ranges, Speed: prof.PointSpeed},
	}, nil
}

// Tables computes the surface and seabed reflection tables for env averaged
// over freqs. The surface uses the shallowest averaged sound speed and the
// seabed's water layer the deepest.
func Tables(env *environment.Environment, p Params, freqs []float64) (top, bottom boundary.Table, err error) {
	top, err = boundary.SurfaceLoss(p.SeaState, env.Profile.SurfaceSpeed(), freqs)
	if err != nil {
		return top, bottom, fmt.Errorf("surface reflection: %w", err)
	}
	stack, err := boundary.BottomType(p.BaseType, env.Profile.BottomSpeed(), p.AlphaB)
	if err != nil {
		return top, bottom, fmt.Errorf("seabed reflection: %w", err)
	}
	bottom, err = boundary.BottomLoss(stack, freqs)
	if err != nil {
		return top, bottom, fmt.Errorf("seabed reflection: %w", err)
	}
	return top, bottom, nil
}
