// Command envgen synthesizes BELLHOP propagation inputs for coordinate groups
// from bathymetry tiles and ocean climatology, or replicates an existing
// output tree across a frequency list.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/banshee-data/seaenv/internal/bathymetry"
	"github.com/banshee-data/seaenv/internal/bellhop"
	"github.com/banshee-data/seaenv/internal/climatology"
	"github.com/banshee-data/seaenv/internal/config"
	"github.com/banshee-data/seaenv/internal/environment"
	"github.com/banshee-data/seaenv/internal/fsutil"
	"github.com/banshee-data/seaenv/internal/ledger"
	"github.com/banshee-data/seaenv/internal/pipeline"
	"github.com/banshee-data/seaenv/internal/security"
	"github.com/banshee-data/seaenv/internal/version"
)

var (
	configPath  = flag.String("config", config.DefaultConfigPath, "Path to the generator configuration JSON")
	groupsPath  = flag.String("groups", "", "Path to the coordinate groups JSON (generate mode)")
	mode        = flag.String("mode", pipeline.ModeGenerate, "Run mode: generate or replicate")
	freqsPath   = flag.String("freqs", "", "Frequency list (JSON array or whitespace separated); required for replicate")
	workers     = flag.Int("workers", 0, "Concurrent units (0 uses run.workers from the config)")
	traceLog    = flag.Bool("trace-log", false, "Write the per-file trace log stream to stderr")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

type options struct {
	configPath string
	groupsPath string
	mode       string
	freqsPath  string
	workers    int
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("envgen"))
		return
	}

	var traceW io.Writer
	if *traceLog {
		traceW = os.Stderr
	}
	setLogWriters(os.Stderr, os.Stderr, traceW)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := run(ctx, options{
		configPath: *configPath,
		groupsPath: *groupsPath,
		mode:       *mode,
		freqsPath:  *freqsPath,
		workers:    *workers,
	})
	if err != nil {
		log.Fatalf("envgen: %v", err)
	}
}

func setLogWriters(ops, diag, trace io.Writer) {
	bathymetry.SetLogWriters(ops, diag, trace)
	climatology.SetLogWriters(ops, diag, trace)
	environment.SetLogWriters(ops, diag, trace)
	bellhop.SetLogWriters(ops, diag, trace)
	pipeline.SetLogWriters(ops, diag, trace)
}

// run executes one invocation. Only setup problems are returned as errors;
// failed units are reported in the run summary.
func run(ctx context.Context, opts options) error {
	if opts.mode != pipeline.ModeGenerate && opts.mode != pipeline.ModeReplicate {
		return fmt.Errorf("unknown mode %q, expected %s or %s", opts.mode, pipeline.ModeGenerate, pipeline.ModeReplicate)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	metrics, err := pipeline.NewMetrics(prometheus.NewRegistry())
	if err != nil {
		return err
	}
	var store *ledger.Store
	if path := cfg.Run.GetLedgerPath(); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create ledger directory: %w", err)
		}
		store, err = ledger.Open(path, nil)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	if opts.mode == pipeline.ModeReplicate {
		err = replicate(ctx, cfg, opts, store, metrics)
	} else {
		err = generate(ctx, cfg, opts, store, metrics)
	}
	if err != nil {
		return err
	}

	if path := cfg.Run.GetMetricsTextfile(); path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			return err
		}
		log.Printf("metrics written to %s", path)
	}
	return nil
}

func generate(ctx context.Context, cfg *config.Config, opts options, store *ledger.Store, metrics *pipeline.Metrics) error {
	if opts.groupsPath == "" {
		return fmt.Errorf("-groups is required in %s mode", pipeline.ModeGenerate)
	}
	groups, err := config.LoadCoordinateGroups(opts.groupsPath)
	if err != nil {
		return err
	}

	params := pipeline.ParamsFromConfig(cfg)
	if opts.freqsPath != "" {
		if !params.RecomputeTables {
			return fmt.Errorf("-freqs in %s mode requires acoustic.bellhop_params.recompute_tables", pipeline.ModeGenerate)
		}
		params.ReplicaFreqs, err = bellhop.ReadFrequencies(fsutil.OSFileSystem{}, opts.freqsPath)
		if err != nil {
			return err
		}
	}

	latRange, lonRange := cfg.Data.LatRange(), cfg.Data.LonRange()
	grid, missing, err := bathymetry.NewLoader(cfg.Data.BathymetryLoader(), bathymetry.NetCDFReader{}).
		Load(ctx, latRange, lonRange)
	if err != nil {
		return fmt.Errorf("failed to load bathymetry: %w", err)
	}
	if len(missing) > 0 {
		log.Printf("%d bathymetry tiles missing, zero-filled", len(missing))
	}

	idx := cfg.Data.GetTimeIndex()
	indices := []climatology.TimeIndex{idx}
	if idx.IsMonthly() {
		indices = append(indices, climatology.Annual)
	}
	atlas, warnings, err := climatology.NewLoader(cfg.Data.ClimatologyLoader()).Load(ctx, indices...)
	if err != nil {
		return fmt.Errorf("failed to load climatology: %w", err)
	}
	if len(warnings) > 0 {
		log.Printf("%d climatology warnings", len(warnings))
	}

	if err := os.MkdirAll(params.OutputRoot, 0755); err != nil {
		return fmt.Errorf("failed to create output root: %w", err)
	}

	shutdown, err := pipeline.InitTracing(ctx, pipeline.TracingConfig{
		Enabled:     cfg.Run.GetTracingEnabled(),
		SampleRatio: cfg.Run.GetTracingSampleRatio(),
	})
	if err != nil {
		return err
	}
	defer pipeline.ShutdownWithTimeout(context.Background(), shutdown)

	workerCount := cfg.Run.GetWorkers()
	if opts.workers > 0 {
		workerCount = opts.workers
	}
	runnerOpts := []pipeline.RunnerOption{
		pipeline.WithWorkers(workerCount),
		pipeline.WithMetrics(metrics),
		pipeline.WithPathCheck(security.ValidatePathWithinDirectory),
	}
	if store != nil {
		runnerOpts = append(runnerOpts, pipeline.WithLedger(store))
	}

	runner := pipeline.NewRunner(environment.NewExtractor(grid, atlas), nil, params, runnerOpts...)
	stats, err := runner.Run(ctx, groups)
	log.Printf("generated %d/%d units (%d failed, %d files) under %s",
		stats.Success, stats.Total, stats.Failed, stats.Files, params.OutputRoot)
	if stats.RunID != "" {
		log.Printf("run id %s", stats.RunID)
	}
	return err
}

func replicate(ctx context.Context, cfg *config.Config, opts options, store *ledger.Store, metrics *pipeline.Metrics) error {
	if opts.freqsPath == "" {
		return fmt.Errorf("-freqs is required in %s mode", pipeline.ModeReplicate)
	}
	fsys := fsutil.OSFileSystem{}
	freqs, err := bellhop.ReadFrequencies(fsys, opts.freqsPath)
	if err != nil {
		return err
	}

	var runID string
	if store != nil {
		if runID, err = store.StartRun(ctx, pipeline.ModeReplicate, 0); err != nil {
			return err
		}
	}

	root := cfg.Acoustic.GetOutputPath()
	stats, err := bellhop.ReplicateTree(ctx, fsys, root, freqs, security.ValidatePathWithinDirectory)
	metrics.AddFiles("replica", stats.Success)
	metrics.SetRunFailed(stats.Failed)
	if store != nil {
		if ferr := store.FinishRun(context.WithoutCancel(ctx), runID, stats.Success, stats.Failed); ferr != nil {
			log.Printf("failed to finish run %s: %v", runID, ferr)
		}
	}
	log.Printf("replicated %d folders under %s: %d files, %d ok, %d failed, %d skipped",
		stats.Folders, root, stats.Files, stats.Success, stats.Failed, stats.Skipped)
	return err
}
