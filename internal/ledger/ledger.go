// Package ledger records generator runs and their per-unit outcomes in a
// SQLite database.
package ledger

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/seaenv/internal/timeutil"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// Status is the outcome of one unit.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Run summarises one invocation of the generator.
type Run struct {
	ID         string
	Mode       string
	StartedAt  time.Time
	FinishedAt time.Time // zero while the run is open
	Total      int
	Success    int
	Failed     int
}

// UnitRecord is the outcome of one (group, receiver range) unit.
type UnitRecord struct {
	ID         string
	GroupID    string
	Zone       string
	RangeIndex int
	RangeKm    float64
	OutputDir  string
	Status     Status
	Error      string
	Duration   time.Duration
	Files      int
	RecordedAt time.Time
}

// Store is a run ledger backed by SQLite.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
}

// Open opens (or creates) the ledger at path and applies pending migrations.
// A nil clock uses wall time.
func Open(path string, clock timeutil.Clock) (*Store, error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	// Writes come from a single collector; one connection also keeps
	// in-memory databases coherent.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	s := &Store{db: db, clock: clock}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	return m, nil
}

// migrateUp runs all pending migrations. The migrate instance is not closed
// because that would close the shared connection.
func (s *Store) migrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// SchemaVersion returns the applied migration version and dirty flag.
func (s *Store) SchemaVersion() (uint, bool, error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// migrateLogger implements migrate.Logger.
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

// StartRun opens a run and returns its id.
func (s *Store) StartRun(ctx context.Context, mode string, totalUnits int) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, mode, started_at, total_units) VALUES (?, ?, ?, ?)`,
		id, mode, s.clock.Now().UnixNano(), totalUnits)
	if err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	return id, nil
}

// RecordUnit stores one unit outcome under runID. Empty ID and RecordedAt
// fields are filled in.
func (s *Store) RecordUnit(ctx context.Context, runID string, u UnitRecord) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.RecordedAt.IsZero() {
		u.RecordedAt = s.clock.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO units (unit_id, run_id, group_id, zone, range_index, range_km,
			output_dir, status, error, duration_ms, files, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, runID, u.GroupID, u.Zone, u.RangeIndex, u.RangeKm,
		u.OutputDir, string(u.Status), u.Error,
		float64(u.Duration)/float64(time.Millisecond), u.Files, u.RecordedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record unit %s/Rr%d: %w", u.GroupID, u.RangeIndex, err)
	}
	return nil
}

// FinishRun closes a run with its final tallies.
func (s *Store) FinishRun(ctx context.Context, runID string, success, failed int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, success = ?, failed = ? WHERE run_id = ?`,
		s.clock.Now().UnixNano(), success, failed, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// GetRun returns one run.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	var (
		r        Run
		started  int64
		finished sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, mode, started_at, finished_at, total_units, success, failed
		FROM runs WHERE run_id = ?`, runID).
		Scan(&r.ID, &r.Mode, &started, &finished, &r.Total, &r.Success, &r.Failed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	r.StartedAt = time.Unix(0, started).UTC()
	if finished.Valid {
		r.FinishedAt = time.Unix(0, finished.Int64).UTC()
	}
	return &r, nil
}

// Units returns a run's unit records ordered by group and range index.
func (s *Store) Units(ctx context.Context, runID string) ([]UnitRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT unit_id, group_id, zone, range_index, range_km, output_dir,
			status, error, duration_ms, files, recorded_at
		FROM units WHERE run_id = ?
		ORDER BY group_id, range_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query units: %w", err)
	}
	defer rows.Close()

	var out []UnitRecord
	for rows.Next() {
		var (
			u          UnitRecord
			status     string
			durationMs float64
			recorded   int64
		)
		if err := rows.Scan(&u.ID, &u.GroupID, &u.Zone, &u.RangeIndex, &u.RangeKm, &u.OutputDir,
			&status, &u.Error, &durationMs, &u.Files, &recorded); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		u.Status = Status(status)
		u.Duration = time.Duration(durationMs * float64(time.Millisecond))
		u.RecordedAt = time.Unix(0, recorded).UTC()
		out = append(out, u)
	}
	return out, rows.Err()
}

// FailedUnits returns the failed units of a run.
func (s *Store) FailedUnits(ctx context.Context, runID string) ([]UnitRecord, error) {
	all, err := s.Units(ctx, runID)
	if err != nil {
		return nil, err
	}
	var failed []UnitRecord
	for _, u := range all {
		if u.Status == StatusFailed {
			failed = append(failed, u)
		}
	}
	return failed, nil
}
