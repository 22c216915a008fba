package pipeline

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the Prometheus collectors updated by a run.
type Metrics struct {
	gatherer prometheus.Gatherer

	Units         *prometheus.CounterVec
	UnitDuration  *prometheus.HistogramVec
	FilesWritten  *prometheus.CounterVec
	LastRunFailed prometheus.Gauge
}

// NewMetrics registers the run metrics against reg, defaulting to the global
// Prometheus registry when nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	units, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "envgen_units_total",
		Help: "Generated units, labeled by zone and status (ok, failed).",
	}, []string{"zone", "status"}), "envgen_units_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "envgen_unit_duration_seconds",
		Help:    "Time to extract, assemble and write one unit.",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"zone"}), "envgen_unit_duration_seconds")
	if err != nil {
		return nil, err
	}

	files, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "envgen_files_written_total",
		Help: "Files written, labeled by kind (input, replica, report).",
	}, []string{"kind"}), "envgen_files_written_total")
	if err != nil {
		return nil, err
	}

	lastFailed, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "envgen_last_run_failed_units",
		Help: "Failed units in the most recent run.",
	}), "envgen_last_run_failed_units")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		gatherer:      gatherer,
		Units:         units,
		UnitDuration:  durations,
		FilesWritten:  files,
		LastRunFailed: lastFailed,
	}, nil
}

// ObserveUnit records one finished unit.
func (m *Metrics) ObserveUnit(zone string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "failed"
	}
	m.Units.WithLabelValues(zone, status).Inc()
	m.UnitDuration.WithLabelValues(zone).Observe(d.Seconds())
}

// AddFiles counts written files of a kind.
func (m *Metrics) AddFiles(kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.FilesWritten.WithLabelValues(kind).Add(float64(n))
}

// SetRunFailed records the failed-unit count of the finished run.
func (m *Metrics) SetRunFailed(n int) {
	if m == nil {
		return
	}
	m.LastRunFailed.Set(float64(n))
}

// WriteTextfile writes the gathered metrics in the text exposition format,
// for node_exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.gatherer); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
