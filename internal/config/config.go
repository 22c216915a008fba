package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/seaenv/internal/bathymetry"
	"github.com/banshee-data/seaenv/internal/bellhop"
	"github.com/banshee-data/seaenv/internal/boundary"
	"github.com/banshee-data/seaenv/internal/climatology"
)

// DefaultConfigPath is the path to the canonical generator defaults file.
const DefaultConfigPath = "config/envgen.defaults.json"

// maxFileSize caps every JSON file this package reads.
const maxFileSize = 1 * 1024 * 1024 // 1MB

// Config is the root generator configuration. Fields omitted from the JSON
// file fall back to the defaults returned by the Get* methods.
type Config struct {
	Data     DataConfig     `json:"data"`
	Acoustic AcousticConfig `json:"acoustic"`
	Run      RunConfig      `json:"run"`
}

// DataConfig locates the bathymetry tiles and climatology files and bounds
// the region loaded from them.
type DataConfig struct {
	ETOPO  ETOPOConfig  `json:"etopo"`
	WOA23  WOA23Config  `json:"woa23"`
	Region RegionConfig `json:"region"`
}

// ETOPOConfig describes the bathymetry tile set.
type ETOPOConfig struct {
	Dir         *string `json:"dir,omitempty"`
	Prefix      *string `json:"prefix,omitempty"`
	Extension   *string `json:"extension,omitempty"`
	TileCells   *int    `json:"tile_cells,omitempty"`
	Concurrency *int    `json:"concurrency,omitempty"`
}

// WOA23Config describes the climatology files.
type WOA23Config struct {
	Dir         *string `json:"dir,omitempty"`
	TempPattern *string `json:"temp_pattern,omitempty"`
	SaltPattern *string `json:"salt_pattern,omitempty"`
	TimeIndex   *int    `json:"time_index,omitempty"`
}

// RegionConfig is the lat/lon box loaded from both datasets.
type RegionConfig struct {
	LatMin *float64 `json:"lat_min,omitempty"`
	LatMax *float64 `json:"lat_max,omitempty"`
	LonMin *float64 `json:"lon_min,omitempty"`
	LonMax *float64 `json:"lon_max,omitempty"`
}

// AcousticConfig holds the source geometry and solver parameters.
type AcousticConfig struct {
	OutputPath *string       `json:"output_path,omitempty"`
	Source     SourceConfig  `json:"source"`
	Azimuth    *float64      `json:"azimuth,omitempty"`
	Bellhop    BellhopParams `json:"bellhop_params"`
}

// SourceConfig is the source depth (m) and its range offset (km) on the transect.
type SourceConfig struct {
	Depth *float64 `json:"depth,omitempty"`
	Range *float64 `json:"range,omitempty"`
}

// BellhopParams are the solver options written into every unit.
type BellhopParams struct {
	Freq            *float64   `json:"freq,omitempty"`
	SeaStateLevel   *int       `json:"sea_state_level,omitempty"`
	BaseType        *string    `json:"base_type,omitempty"`
	AlphaB          *float64   `json:"alpha_b,omitempty"`
	TopOption       *string    `json:"top_option,omitempty"`
	BottomOption    *string    `json:"bottom_option,omitempty"`
	RunType         *string    `json:"run_type,omitempty"`
	BeamOption      BeamOption `json:"beam_option"`
	ReflectionFreqs []float64  `json:"reflection_freqs,omitempty"`
	RecomputeTables *bool      `json:"recompute_tables,omitempty"`
}

// BeamOption carries the Gaussian beam block parameters.
type BeamOption struct {
	Type   *string  `json:"type,omitempty"`
	EpMult *float64 `json:"epmult,omitempty"`
	RLoop  *float64 `json:"rLoop,omitempty"`
	NImage *int     `json:"Nimage,omitempty"`
	IBWin  *int     `json:"Ibwin,omitempty"`
}

// RunConfig controls the batch runner and its side outputs.
type RunConfig struct {
	Workers         *int          `json:"workers,omitempty"`
	LedgerPath      *string       `json:"ledger_path,omitempty"`
	MetricsTextfile *string       `json:"metrics_textfile,omitempty"`
	Plots           *bool         `json:"plots,omitempty"`
	Charts          *bool         `json:"charts,omitempty"`
	Tracing         TracingConfig `json:"tracing"`
}

// TracingConfig enables per-unit spans written to a local exporter.
type TracingConfig struct {
	Enabled     *bool    `json:"enabled,omitempty"`
	SampleRatio *float64 `json:"sample_ratio,omitempty"`
}

// Load reads a Config from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func Load(path string) (*Config, error) {
	data, err := readJSONFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory or
// a parent. Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *Config {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/envgen/ and deeper
	}
	for _, path := range candidates {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

func readJSONFile(path string) ([]byte, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return data, nil
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if err := c.Data.Validate(); err != nil {
		return err
	}
	if err := c.Acoustic.Validate(); err != nil {
		return err
	}
	return c.Run.Validate()
}

// Validate checks the data section.
func (c *DataConfig) Validate() error {
	if c.ETOPO.TileCells != nil && *c.ETOPO.TileCells < 2 {
		return fmt.Errorf("etopo.tile_cells must be at least 2, got %d", *c.ETOPO.TileCells)
	}
	if c.ETOPO.Concurrency != nil && *c.ETOPO.Concurrency < 1 {
		return fmt.Errorf("etopo.concurrency must be positive, got %d", *c.ETOPO.Concurrency)
	}
	for name, p := range map[string]*string{"temp_pattern": c.WOA23.TempPattern, "salt_pattern": c.WOA23.SaltPattern} {
		if p != nil && strings.Count(*p, "%s") != 1 {
			return fmt.Errorf("woa23.%s must contain exactly one %%s, got %q", name, *p)
		}
	}
	if c.WOA23.TimeIndex != nil && !climatology.TimeIndex(*c.WOA23.TimeIndex).Valid() {
		return fmt.Errorf("woa23.time_index must be between 1 and 17, got %d", *c.WOA23.TimeIndex)
	}

	lat, lon := c.LatRange(), c.LonRange()
	if lat[0] < -90 || lat[1] > 90 || lat[0] >= lat[1] {
		return fmt.Errorf("region latitude range invalid: [%v, %v]", lat[0], lat[1])
	}
	if lon[0] < -180 || lon[1] > 180 || lon[0] >= lon[1] {
		return fmt.Errorf("region longitude range invalid: [%v, %v]", lon[0], lon[1])
	}
	return nil
}

// Validate checks the acoustic section.
func (c *AcousticConfig) Validate() error {
	if c.Source.Depth != nil && *c.Source.Depth < 0 {
		return fmt.Errorf("source.depth must be non-negative, got %f", *c.Source.Depth)
	}
	if c.Source.Range != nil && *c.Source.Range < 0 {
		return fmt.Errorf("source.range must be non-negative, got %f", *c.Source.Range)
	}
	b := c.Bellhop
	if b.Freq != nil && !(*b.Freq > 0) {
		return fmt.Errorf("bellhop_params.freq must be positive, got %f", *b.Freq)
	}
	if b.SeaStateLevel != nil && (*b.SeaStateLevel < 0 || *b.SeaStateLevel >= len(boundary.WaveHeights)) {
		return fmt.Errorf("bellhop_params.sea_state_level must be between 0 and %d, got %d",
			len(boundary.WaveHeights)-1, *b.SeaStateLevel)
	}
	if b.BaseType != nil {
		if _, err := boundary.BottomType(*b.BaseType, 1500, c.GetAlphaB()); err != nil {
			return fmt.Errorf("bellhop_params.base_type: %w (known: %s)", err, strings.Join(boundary.BottomTypes(), ", "))
		}
	}
	if b.AlphaB != nil && *b.AlphaB < 0 {
		return fmt.Errorf("bellhop_params.alpha_b must be non-negative, got %f", *b.AlphaB)
	}
	for name, opt := range map[string]*string{"top_option": b.TopOption, "bottom_option": b.BottomOption, "run_type": b.RunType} {
		if opt != nil && *opt == "" {
			return fmt.Errorf("bellhop_params.%s must not be empty", name)
		}
	}
	for _, f := range b.ReflectionFreqs {
		if !(f > 0) {
			return fmt.Errorf("bellhop_params.reflection_freqs must be positive, got %f", f)
		}
	}
	return nil
}

// Validate checks the run section.
func (c *RunConfig) Validate() error {
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("run.workers must be positive, got %d", *c.Workers)
	}
	if r := c.Tracing.SampleRatio; r != nil && (*r < 0 || *r > 1) {
		return fmt.Errorf("run.tracing.sample_ratio must be between 0 and 1, got %f", *r)
	}
	return nil
}

// BathymetryLoader returns the tile loader settings.
func (c *DataConfig) BathymetryLoader() bathymetry.LoaderConfig {
	cfg := bathymetry.LoaderConfig{Dir: strOr(c.ETOPO.Dir, "data/etopo2022")}
	if c.ETOPO.Prefix != nil {
		cfg.Prefix = *c.ETOPO.Prefix
	}
	if c.ETOPO.Extension != nil {
		cfg.Extension = *c.ETOPO.Extension
	}
	if c.ETOPO.TileCells != nil {
		cfg.TileCells = *c.ETOPO.TileCells
	}
	if c.ETOPO.Concurrency != nil {
		cfg.Concurrency = *c.ETOPO.Concurrency
	}
	return cfg
}

// ClimatologyLoader returns the climatology loader settings cropped to the region.
func (c *DataConfig) ClimatologyLoader() climatology.LoaderConfig {
	cfg := climatology.LoaderConfig{
		Dir:      strOr(c.WOA23.Dir, "data/woa23"),
		LatRange: c.LatRange(),
		LonRange: c.LonRange(),
	}
	if c.WOA23.TempPattern != nil {
		cfg.TempPattern = *c.WOA23.TempPattern
	}
	if c.WOA23.SaltPattern != nil {
		cfg.SaltPattern = *c.WOA23.SaltPattern
	}
	return cfg
}

// GetTimeIndex returns the climatology time index or the default (annual).
func (c *DataConfig) GetTimeIndex() climatology.TimeIndex {
	if c.WOA23.TimeIndex == nil {
		return climatology.Annual
	}
	return climatology.TimeIndex(*c.WOA23.TimeIndex)
}

// LatRange returns the region latitude bounds or the default [5, 25].
func (c *DataConfig) LatRange() [2]float64 {
	return [2]float64{floatOr(c.Region.LatMin, 5), floatOr(c.Region.LatMax, 25)}
}

// LonRange returns the region longitude bounds or the default [105, 125].
func (c *DataConfig) LonRange() [2]float64 {
	return [2]float64{floatOr(c.Region.LonMin, 105), floatOr(c.Region.LonMax, 125)}
}

// GetOutputPath returns the output root or the default.
func (c *AcousticConfig) GetOutputPath() string { return strOr(c.OutputPath, "output/env") }

// GetSourceDepth returns the source depth in metres or the default.
func (c *AcousticConfig) GetSourceDepth() float64 { return floatOr(c.Source.Depth, 50) }

// GetSourceRange returns the source range offset in km or the default.
func (c *AcousticConfig) GetSourceRange() float64 { return floatOr(c.Source.Range, 0) }

// GetAzimuth returns the transect bearing in degrees or the default.
func (c *AcousticConfig) GetAzimuth() float64 { return floatOr(c.Azimuth, 0) }

// GetFreq returns the template frequency in Hz or the default.
func (c *AcousticConfig) GetFreq() float64 { return floatOr(c.Bellhop.Freq, 100) }

// GetSeaStateLevel returns the sea state or the default.
func (c *AcousticConfig) GetSeaStateLevel() int {
	if c.Bellhop.SeaStateLevel == nil {
		return 2
	}
	return *c.Bellhop.SeaStateLevel
}

// GetBaseType returns the seabed profile name or the default.
func (c *AcousticConfig) GetBaseType() string { return strOr(c.Bellhop.BaseType, "D05") }

// GetAlphaB returns the sediment attenuation or the default.
func (c *AcousticConfig) GetAlphaB() float64 { return floatOr(c.Bellhop.AlphaB, 0.05) }

// GetReflectionFreqs returns the frequencies averaged into the reflection
// tables, defaulting to the template frequency alone.
func (c *AcousticConfig) GetReflectionFreqs() []float64 {
	if len(c.Bellhop.ReflectionFreqs) == 0 {
		return []float64{c.GetFreq()}
	}
	return c.Bellhop.ReflectionFreqs
}

// GetRecomputeTables reports whether replication recomputes the reflection
// tables per frequency instead of copying the template's.
func (c *AcousticConfig) GetRecomputeTables() bool {
	if c.Bellhop.RecomputeTables == nil {
		return false
	}
	return *c.Bellhop.RecomputeTables
}

// Beam returns the beam block with the geometry-dependent box left zero.
func (c *AcousticConfig) Beam() bellhop.Beam {
	o := c.Bellhop.BeamOption
	b := bellhop.Beam{
		RunType:   strOr(c.Bellhop.RunType, bellhop.DefaultRunType),
		Angles:    [2]float64{-90, 90},
		Type:      strOr(o.Type, bellhop.DefaultBeamType),
		EpsMult:   floatOr(o.EpMult, 0.3),
		LoopRange: floatOr(o.RLoop, 1),
		Images:    1,
		Window:    4,
	}
	if o.NImage != nil {
		b.Images = *o.NImage
	}
	if o.IBWin != nil {
		b.Window = *o.IBWin
	}
	return b
}

// TopOption returns the surface option string.
func (c *AcousticConfig) TopOption() string {
	return strOr(c.Bellhop.TopOption, bellhop.DefaultTopOption)
}

// BottomOption returns the seabed option string.
func (c *AcousticConfig) BottomOption() string {
	return strOr(c.Bellhop.BottomOption, bellhop.DefaultBottomOption)
}

// GetWorkers returns the worker count or the default.
func (c *RunConfig) GetWorkers() int {
	if c.Workers == nil {
		return 4
	}
	return *c.Workers
}

// GetLedgerPath returns the sqlite ledger path; empty disables the ledger.
func (c *RunConfig) GetLedgerPath() string { return strOr(c.LedgerPath, "") }

// GetMetricsTextfile returns the Prometheus textfile path; empty disables it.
func (c *RunConfig) GetMetricsTextfile() string { return strOr(c.MetricsTextfile, "") }

// GetPlots reports whether per-unit profile plots are written.
func (c *RunConfig) GetPlots() bool { return c.Plots != nil && *c.Plots }

// GetCharts reports whether per-unit reflection charts are written.
func (c *RunConfig) GetCharts() bool { return c.Charts != nil && *c.Charts }

// GetTracingEnabled reports whether unit spans are exported.
func (c *RunConfig) GetTracingEnabled() bool { return c.Tracing.Enabled != nil && *c.Tracing.Enabled }

// GetTracingSampleRatio returns the span sampling ratio or the default.
func (c *RunConfig) GetTracingSampleRatio() float64 { return floatOr(c.Tracing.SampleRatio, 1) }

func strOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

func floatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
