package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/banshee-data/seaenv/internal/climatology"
	"github.com/banshee-data/seaenv/internal/config"
	"github.com/banshee-data/seaenv/internal/environment"
	"github.com/banshee-data/seaenv/internal/fsutil"
	"github.com/banshee-data/seaenv/internal/ledger"
	"github.com/banshee-data/seaenv/internal/testutil"
	"github.com/banshee-data/seaenv/internal/timeutil"
	"github.com/banshee-data/seaenv/internal/transect"
)

type fakeExtractor struct {
	mu    sync.Mutex
	calls int
	fail  map[float64]bool // source latitudes that have no valid profile
}

func (f *fakeExtractor) Extract(ctx context.Context, tr *transect.Transect, idx climatology.TimeIndex) (*environment.Environment, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.fail[tr.Source.Lat] {
		return nil, environment.ErrNoValidProfile
	}
	return syntheticEnvironment(tr.Len()), nil
}

var epoch = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func twoGroups() []config.CoordinateGroup {
	return []config.CoordinateGroup{
		testGroup("A", "Deep", 18, 1, 3),
		testGroup("B", "Shallow", 19, 2),
	}
}

func openLedger(t *testing.T) *ledger.Store {
	t.Helper()
	store, err := ledger.Open(filepath.Join(t.TempDir(), "runs.db"), timeutil.NewMockClock(epoch))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRunnerGeneratesEveryUnit(t *testing.T) {
	ctx := context.Background()
	fsys := fsutil.NewMemoryFileSystem()
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)
	store := openLedger(t)

	r := NewRunner(&fakeExtractor{}, fsys, testParams("out"),
		WithWorkers(2),
		WithMetrics(metrics),
		WithLedger(store),
		WithClock(timeutil.NewSteppingClock(epoch, 250*time.Millisecond)),
	)
	stats, err := r.Run(ctx, twoGroups())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 3, stats.Success)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, 15, stats.Files)

	files := testutil.RelativeFiles(t, fsys, "out")
	assert.Len(t, files, 15)
	for _, ext := range []string{".env", ".bty", ".ssp", ".trc", ".brc"} {
		assert.Contains(t, files, "Deep/A/Rr1/envfilefolder/ENV_A_Rr1Km"+ext)
		assert.Contains(t, files, "Deep/A/Rr2/envfilefolder/ENV_A_Rr3Km"+ext)
		assert.Contains(t, files, "Shallow/B/Rr1/envfilefolder/ENV_B_Rr2Km"+ext)
	}

	env := testutil.ReadLines(t, fsys, filepath.Join("out", "Deep", "A", "Rr2", "envfilefolder", "ENV_A_Rr3Km.env"))
	assert.Equal(t, "'Acoustic Calculation A_Rr3Km'", strings.TrimSpace(strings.SplitN(env[0], "!", 2)[0]))
	assert.Contains(t, env[1], "100.00")

	assert.Equal(t, 2.0, promtestutil.ToFloat64(metrics.Units.WithLabelValues("Deep", "ok")))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(metrics.Units.WithLabelValues("Shallow", "ok")))
	assert.Equal(t, 15.0, promtestutil.ToFloat64(metrics.FilesWritten.WithLabelValues("input")))
	assert.Equal(t, 0.0, promtestutil.ToFloat64(metrics.LastRunFailed))

	run, err := store.GetRun(ctx, stats.RunID)
	require.NoError(t, err)
	assert.Equal(t, ModeGenerate, run.Mode)
	assert.Equal(t, 3, run.Total)
	assert.Equal(t, 3, run.Success)
	assert.False(t, run.FinishedAt.IsZero())

	units, err := store.Units(ctx, stats.RunID)
	require.NoError(t, err)
	require.Len(t, units, 3)
	for _, u := range units {
		assert.Equal(t, ledger.StatusOK, u.Status)
		assert.Equal(t, 5, u.Files)
		assert.GreaterOrEqual(t, u.Duration, 250*time.Millisecond)
	}
	assert.Equal(t, filepath.Join("out", "Deep", "A", "Rr1", "envfilefolder"), units[0].OutputDir)
}

func TestRunnerContinuesPastFailedUnits(t *testing.T) {
	ctx := context.Background()
	fsys := fsutil.NewMemoryFileSystem()
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)
	store := openLedger(t)

	ex := &fakeExtractor{fail: map[float64]bool{19: true}}
	r := NewRunner(ex, fsys, testParams("out"), WithWorkers(3), WithMetrics(metrics), WithLedger(store))
	stats, err := r.Run(ctx, twoGroups())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Success)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 3, ex.calls)
	assert.Len(t, testutil.RelativeFiles(t, fsys, filepath.Join("out", "Shallow")), 0)

	assert.Equal(t, 1.0, promtestutil.ToFloat64(metrics.Units.WithLabelValues("Shallow", "failed")))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(metrics.LastRunFailed))

	failed, err := store.FailedUnits(ctx, stats.RunID)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "B", failed[0].GroupID)
	assert.Contains(t, failed[0].Error, environment.ErrNoValidProfile.Error())
}

func TestRunnerRecomputesReplicaTables(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	p := testParams("out")
	p.RecomputeTables = true
	p.ReplicaFreqs = []float64{50, 200}

	r := NewRunner(&fakeExtractor{}, fsys, p)
	stats, err := r.Run(context.Background(), []config.CoordinateGroup{testGroup("C", "Transition", 18, 4)})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Success)
	assert.Equal(t, 16, stats.Files)

	dir := filepath.Join("out", "Transition", "C", "Rr1", "envfilefolder")
	assert.Equal(t, []string{"test_1", "test_2"}, testutil.ReadLines(t, fsys, filepath.Join(dir, "env_files_list.txt")))

	replica := testutil.ReadLines(t, fsys, filepath.Join(dir, "test_2.env"))
	assert.Contains(t, replica[1], "200.00")

	template, err := fsys.ReadFile(filepath.Join(dir, "ENV_C_Rr4Km.trc"))
	require.NoError(t, err)
	low, err := fsys.ReadFile(filepath.Join(dir, "test_1.trc"))
	require.NoError(t, err)
	assert.NotEqual(t, string(template), string(low), "surface table should be recomputed at 50 Hz")

	tmplSSP, err := fsys.ReadFile(filepath.Join(dir, "ENV_C_Rr4Km.ssp"))
	require.NoError(t, err)
	replicaSSP, err := fsys.ReadFile(filepath.Join(dir, "test_2.ssp"))
	require.NoError(t, err)
	assert.Equal(t, tmplSSP, replicaSSP)
}

func TestRunnerWritesReports(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	p := testParams("out")
	p.Plots = true
	p.Charts = true
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)

	r := NewRunner(&fakeExtractor{}, fsys, p, WithMetrics(metrics))
	stats, err := r.Run(context.Background(), []config.CoordinateGroup{testGroup("D", "Deep", 18, 2)})
	require.NoError(t, err)
	assert.Equal(t, 8, stats.Files)

	files := testutil.RelativeFiles(t, fsys, "out")
	assert.Contains(t, files, "Deep/D/Rr1/envfilefolder/ENV_D_Rr2Km_ssp.png")
	assert.Contains(t, files, "Deep/D/Rr1/envfilefolder/ENV_D_Rr2Km_bty.png")
	assert.Contains(t, files, "Deep/D/Rr1/envfilefolder/ENV_D_Rr2Km_reflection.html")
	assert.Equal(t, 3.0, promtestutil.ToFloat64(metrics.FilesWritten.WithLabelValues("report")))
}

func TestRunnerPathCheckRefusesUnits(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	refuse := errors.New("outside output root")
	var checked []string
	var mu sync.Mutex
	check := func(path, root string) error {
		mu.Lock()
		checked = append(checked, path)
		mu.Unlock()
		return refuse
	}

	ex := &fakeExtractor{}
	r := NewRunner(ex, fsys, testParams("out"), WithPathCheck(check), WithWorkers(2))
	stats, err := r.Run(context.Background(), twoGroups())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Failed)
	assert.Len(t, checked, 3)
	assert.Equal(t, 0, ex.calls)
	assert.Empty(t, fsys.Files("out"))
}

func TestRunnerCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := openLedger(t)

	ex := &fakeExtractor{}
	r := NewRunner(ex, fsutil.NewMemoryFileSystem(), testParams("out"), WithLedger(store), WithWorkers(2))
	stats, err := r.Run(ctx, twoGroups())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, stats.Total)
	assert.Zero(t, stats.Success+stats.Failed)
	assert.Zero(t, ex.calls)

	run, err := store.GetRun(context.Background(), stats.RunID)
	require.NoError(t, err)
	assert.False(t, run.FinishedAt.IsZero())
}

func TestRunnerNoGroups(t *testing.T) {
	r := NewRunner(&fakeExtractor{}, fsutil.NewMemoryFileSystem(), testParams("out"))
	stats, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

func TestRunnerSpansPerUnit(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ex := &fakeExtractor{fail: map[float64]bool{19: true}}
	r := NewRunner(ex, fsutil.NewMemoryFileSystem(), testParams("out"), WithTracer(tp.Tracer("test")))
	_, err := r.Run(context.Background(), twoGroups())
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 3)
	errored := 0
	for _, s := range spans {
		assert.Equal(t, "envgen/unit", s.Name())
		if s.Status().Code == codes.Error {
			errored++
		}
	}
	assert.Equal(t, 1, errored)
}
