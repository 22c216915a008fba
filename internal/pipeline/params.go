// Package pipeline turns coordinate groups into propagation inputs: one unit
// per (group, receiver range), run on a bounded worker pool over shared
// read-only grids.
package pipeline

import (
	"github.com/banshee-data/seaenv/internal/bellhop"
	"github.com/banshee-data/seaenv/internal/climatology"
	"github.com/banshee-data/seaenv/internal/config"
)

// Params are the per-run settings applied to every unit.
type Params struct {
	OutputRoot  string
	SourceDepth float64 // m
	SourceRange float64 // km, subtracted from bathymetry ranges
	Azimuth     float64 // degrees clockwise from north
	TimeIndex   climatology.TimeIndex

	Frequency       float64 // Hz, template frequency
	ReflectionFreqs []float64
	SeaState        int
	BaseType        string
	AlphaB          float64

	TopOption    string
	BottomOption string
	Beam         bellhop.Beam

	// ReplicaFreqs, when RecomputeTables is set, are regenerated per unit as
	// test_<i> inputs with reflection tables computed at each frequency.
	ReplicaFreqs    []float64
	RecomputeTables bool

	Plots  bool
	Charts bool
}

// ParamsFromConfig resolves the generator configuration into Params.
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		OutputRoot:      cfg.Acoustic.GetOutputPath(),
		SourceDepth:     cfg.Acoustic.GetSourceDepth(),
		SourceRange:     cfg.Acoustic.GetSourceRange(),
		Azimuth:         cfg.Acoustic.GetAzimuth(),
		TimeIndex:       cfg.Data.GetTimeIndex(),
		Frequency:       cfg.Acoustic.GetFreq(),
		ReflectionFreqs: cfg.Acoustic.GetReflectionFreqs(),
		SeaState:        cfg.Acoustic.GetSeaStateLevel(),
		BaseType:        cfg.Acoustic.GetBaseType(),
		AlphaB:          cfg.Acoustic.GetAlphaB(),
		TopOption:       cfg.Acoustic.TopOption(),
		BottomOption:    cfg.Acoustic.BottomOption(),
		Beam:            cfg.Acoustic.Beam(),
		RecomputeTables: cfg.Acoustic.GetRecomputeTables(),
		Plots:           cfg.Run.GetPlots(),
		Charts:          cfg.Run.GetCharts(),
	}
}
