package pipeline

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/banshee-data/seaenv/internal/bellhop"
	"github.com/banshee-data/seaenv/internal/boundary"
	"github.com/banshee-data/seaenv/internal/climatology"
	"github.com/banshee-data/seaenv/internal/config"
	"github.com/banshee-data/seaenv/internal/environment"
	"github.com/banshee-data/seaenv/internal/fsutil"
	"github.com/banshee-data/seaenv/internal/ledger"
	"github.com/banshee-data/seaenv/internal/report"
	"github.com/banshee-data/seaenv/internal/timeutil"
	"github.com/banshee-data/seaenv/internal/transect"
)

// Run modes recorded in the ledger.
const (
	ModeGenerate  = "generate"
	ModeReplicate = "replicate"
)

// Extractor produces the environment along a transect.
type Extractor interface {
	Extract(ctx context.Context, tr *transect.Transect, idx climatology.TimeIndex) (*environment.Environment, error)
}

// Ledger persists run and unit outcomes.
type Ledger interface {
	StartRun(ctx context.Context, mode string, totalUnits int) (string, error)
	RecordUnit(ctx context.Context, runID string, u ledger.UnitRecord) error
	FinishRun(ctx context.Context, runID string, success, failed int) error
}

// Stats tallies a run. Units not started because the context was cancelled
// are counted in Total only.
type Stats struct {
	RunID   string
	Total   int
	Success int
	Failed  int
	Files   int
}

// Runner generates units on a fixed pool of workers.
type Runner struct {
	extractor Extractor
	fs        fsutil.FileSystem
	writer    *bellhop.Writer
	params    Params

	workers int
	ledger  Ledger
	metrics *Metrics
	tracer  trace.Tracer
	clock   timeutil.Clock
	check   bellhop.PathCheck
}

// RunnerOption customises Runner construction.
type RunnerOption func(*Runner)

// WithWorkers sets the number of concurrent units.
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithLedger records the run and every unit outcome.
func WithLedger(l Ledger) RunnerOption {
	return func(r *Runner) { r.ledger = l }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) RunnerOption {
	return func(r *Runner) { r.tracer = t }
}

// WithClock overrides wall time for unit durations.
func WithClock(c timeutil.Clock) RunnerOption {
	return func(r *Runner) { r.clock = c }
}

// WithPathCheck rejects unit folders before anything is written to them.
func WithPathCheck(check bellhop.PathCheck) RunnerOption {
	return func(r *Runner) { r.check = check }
}

// NewRunner creates a Runner writing through fsys (nil writes to disk).
func NewRunner(ex Extractor, fsys fsutil.FileSystem, p Params, opts ...RunnerOption) *Runner {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	r := &Runner{
		extractor: ex,
		fs:        fsys,
		writer:    bellhop.NewWriter(fsys),
		params:    p,
		workers:   1,
		clock:     timeutil.RealClock{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(tracerName)
	}
	return r
}

type unitResult struct {
	unit     Unit
	dir      string
	files    int
	err      error
	duration time.Duration
}

// Run generates every unit of groups. A failing unit is logged, recorded and
// counted; the others continue. The context is checked between units only,
// and its error is returned after the in-flight units have been collected.
func (r *Runner) Run(ctx context.Context, groups []config.CoordinateGroup) (Stats, error) {
	units := ExpandUnits(groups)
	stats := Stats{Total: len(units)}
	if len(units) == 0 {
		return stats, nil
	}

	if r.ledger != nil {
		id, err := r.ledger.StartRun(context.WithoutCancel(ctx), ModeGenerate, len(units))
		if err != nil {
			return stats, err
		}
		stats.RunID = id
	}

	diagf("generating %d units from %d groups on %d workers", len(units), len(groups), r.workers)

	jobs := make(chan Unit, r.workers*2)
	results := make(chan unitResult, r.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range jobs {
				if ctx.Err() != nil {
					continue
				}
				results <- r.processUnit(ctx, u)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, u := range units {
			select {
			case jobs <- u:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		stats.Files += res.files
		if res.err != nil {
			stats.Failed++
			opsf("unit %s failed: %v", res.unit, res.err)
		} else {
			stats.Success++
			diagf("unit %s done in %v (%d files)", res.unit, res.duration, res.files)
		}
		r.metrics.ObserveUnit(res.unit.Group.ZoneType, res.err == nil, res.duration)
		r.record(ctx, stats.RunID, res)
	}

	if r.ledger != nil {
		// The run row is closed even when ctx was cancelled.
		if err := r.ledger.FinishRun(context.WithoutCancel(ctx), stats.RunID, stats.Success, stats.Failed); err != nil {
			opsf("failed to finish run %s: %v", stats.RunID, err)
		}
	}
	r.metrics.SetRunFailed(stats.Failed)

	diagf("run finished: %d units, %d ok, %d failed, %d files", stats.Total, stats.Success, stats.Failed, stats.Files)
	return stats, ctx.Err()
}

func (r *Runner) record(ctx context.Context, runID string, res unitResult) {
	if r.ledger == nil {
		return
	}
	rec := ledger.UnitRecord{
		GroupID:    res.unit.Group.GroupID,
		Zone:       res.unit.Group.ZoneType,
		RangeIndex: res.unit.Index,
		RangeKm:    res.unit.RangeKm,
		OutputDir:  res.dir,
		Status:     ledger.StatusOK,
		Duration:   res.duration,
		Files:      res.files,
	}
	if res.err != nil {
		rec.Status = ledger.StatusFailed
		rec.Error = res.err.Error()
	}
	if err := r.ledger.RecordUnit(context.WithoutCancel(ctx), runID, rec); err != nil {
		opsf("failed to record unit %s: %v", res.unit, err)
	}
}

func (r *Runner) processUnit(ctx context.Context, u Unit) (res unitResult) {
	start := r.clock.Now()
	res.unit = u

	ctx, span := startUnitSpan(ctx, r.tracer, u)
	defer func() {
		res.duration = r.clock.Since(start)
		if res.err != nil {
			span.RecordError(res.err)
			span.SetStatus(codes.Error, res.err.Error())
		}
		span.End()
	}()

	res.dir, res.err = r.generate(ctx, u, &res.files)
	return res
}

// generate writes one unit and returns its folder. files is incremented as
// files are written so partial output is still counted.
func (r *Runner) generate(ctx context.Context, u Unit, files *int) (string, error) {
	p := r.params
	dir, err := bellhop.UnitDir(p.OutputRoot, u.Group.ZoneType, u.Group.GroupID, u.Index)
	if err != nil {
		return "", err
	}
	if r.check != nil {
		if err := r.check(dir, p.OutputRoot); err != nil {
			return dir, fmt.Errorf("refusing output folder: %w", err)
		}
	}

	tr, err := transect.Build(u.Group.Source(), p.Azimuth, u.Group.ReceiveRanges)
	if err != nil {
		return dir, fmt.Errorf("failed to build transect: %w", err)
	}
	env, err := r.extractor.Extract(ctx, tr, p.TimeIndex)
	if err != nil {
		return dir, fmt.Errorf("failed to extract environment: %w", err)
	}
	tracef("%s: %d points, deepest seafloor %.1f m, %d profile depths",
		u, tr.Len(), env.MaxSeaDepth(), len(env.Profile.Depth))

	in, err := BuildInput(u, tr, env, p)
	if err != nil {
		return dir, err
	}
	top, bottom, err := Tables(env, p, p.ReflectionFreqs)
	if err != nil {
		return dir, err
	}

	base := filepath.Join(dir, bellhop.BaseName(u.Group.GroupID, u.RangeKm))
	if err := r.writer.Write(base, in, &top, &bottom); err != nil {
		return dir, err
	}
	*files += 5
	r.metrics.AddFiles("input", 5)

	if p.RecomputeTables && len(p.ReplicaFreqs) > 0 {
		n, err := r.writeReplicas(dir, in, env)
		*files += n
		r.metrics.AddFiles("replica", n)
		if err != nil {
			return dir, err
		}
	}

	n := r.writeReports(base, in, env, &top, &bottom)
	*files += n
	r.metrics.AddFiles("report", n)
	return dir, nil
}

// writeReplicas writes test_<i> inputs in dir, one per replica frequency,
// with reflection tables recomputed at that frequency, then the manifest.
func (r *Runner) writeReplicas(dir string, in *bellhop.Input, env *environment.Environment) (int, error) {
	written := 0
	names := make([]string, 0, len(r.params.ReplicaFreqs))
	for i, f := range r.params.ReplicaFreqs {
		top, bottom, err := Tables(env, r.params, []float64{f})
		if err != nil {
			return written, fmt.Errorf("replica %.2f Hz: %w", f, err)
		}
		name := bellhop.ReplicaName(i + 1)
		if err := r.writer.Write(filepath.Join(dir, name), in.WithFrequency(f), &top, &bottom); err != nil {
			return written, err
		}
		written += 5
		names = append(names, name)
	}
	if err := bellhop.WriteManifest(r.fs, dir, names); err != nil {
		return written, err
	}
	return written + 1, nil
}

// writeReports writes the optional diagnostic plots and chart next to the
// template. Failures are logged and do not fail the unit.
func (r *Runner) writeReports(base string, in *bellhop.Input, env *environment.Environment, top, bottom *boundary.Table) int {
	written := 0
	if r.params.Plots {
		prof := env.Profile
		if p, err := report.ProfilePlot(in.Title, prof.Depth, prof.Speed, prof.PointSpeed); err != nil {
			opsf("%s: profile plot: %v", base, err)
		} else if err := r.createFile(base+"_ssp.png", func(w io.Writer) error { return report.WritePNG(w, p) }); err != nil {
			opsf("%s: %v", base, err)
		} else {
			written++
		}

		if p, err := report.BathymetryPlot(in.Title, in.Bathymetry.Range, in.Bathymetry.Depth); err != nil {
			opsf("%s: bathymetry plot: %v", base, err)
		} else if err := r.createFile(base+"_bty.png", func(w io.Writer) error { return report.WritePNG(w, p) }); err != nil {
			opsf("%s: %v", base, err)
		} else {
			written++
		}
	}
	if r.params.Charts {
		err := r.createFile(base+"_reflection.html", func(w io.Writer) error {
			return report.ReflectionChart(w, in.Title, top, bottom)
		})
		if err != nil {
			opsf("%s: %v", base, err)
		} else {
			written++
		}
	}
	return written
}

func (r *Runner) createFile(name string, write func(io.Writer) error) (err error) {
	f, err := r.fs.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", name, cerr)
		}
	}()
	if err := write(f); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
