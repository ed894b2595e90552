package trace

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/criticalsim/heatup/internal/models"
	"github.com/criticalsim/heatup/internal/phases"
)

// ErrRunNotFound is returned when a run ID has no row in the store.
var ErrRunNotFound = errors.New("run not found")

// Config holds run store settings.
type Config struct {
	// DBPath is the SQLite database file path.
	DBPath string `yaml:"db_path"`

	// BatchSize is the number of snapshots a Recorder buffers before writing
	// them in one transaction.
	BatchSize int `yaml:"batch_size"`
}

// DefaultConfig returns the default run store configuration.
func DefaultConfig() Config {
	return Config{
		DBPath:    "heatup.db",
		BatchSize: 256,
	}
}

// Validate checks configuration values.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	return nil
}

// Run is one recorded simulation run.
type Run struct {
	ID        string
	StartedAt time.Time

	// FinishedAt is zero until FinishRun is called.
	FinishedAt time.Time

	// DtHr and SGCount echo the stepper configuration the run used.
	DtHr    float64
	SGCount int

	Notes string
}

// Store persists runs, snapshots, and phase windows in SQLite.
type Store struct {
	db  *sql.DB
	cfg Config
	mu  sync.RWMutex
}

// New creates a run store at cfg.DBPath, creating the parent directory and
// initializing the schema as needed.
func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid trace config: %w", err)
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer; serialize access through a single connection.
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, cfg: cfg}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRun registers a new run and returns it with a fresh ID.
func (s *Store) CreateRun(ctx context.Context, dtHr float64, sgCount int, notes string) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		DtHr:      dtHr,
		SGCount:   sgCount,
		Notes:     notes,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, dt_hr, sg_count, notes) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.Format(time.RFC3339Nano), r.DtHr, r.SGCount, nullString(r.Notes))
	if err != nil {
		return Run{}, fmt.Errorf("failed to create run: %w", err)
	}
	return r, nil
}

// FinishRun stamps the run's finish time.
func (s *Store) FinishRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check finish result: %w", err)
	}
	if n == 0 {
		return ErrRunNotFound
	}
	return nil
}

// GetRun returns one run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, dt_hr, sg_count, notes FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to get run: %w", err)
	}
	return r, nil
}

// ListRuns returns all runs, oldest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, dt_hr, sg_count, notes FROM runs ORDER BY started_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// AppendSnapshots writes a batch of snapshots for a run in one transaction.
func (s *Store) AppendSnapshots(ctx context.Context, runID string, snaps []models.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshots (
			run_id, step, time_hr, tavg_f, rcs_pressure_psig, heatup_rate_f_hr,
			pzr_temp_f, pzr_level_pct, bubble_formed, startup_state, sg_overall,
			dump_bridge, dump_demand, state
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	for i := range snaps {
		snap := &snaps[i]
		state, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot at step %d: %w", snap.Step, err)
		}
		_, err = stmt.ExecContext(ctx,
			runID, snap.Step, snap.TimeHr, snap.TavgF, snap.RCSPressurePsig, snap.HeatupRateFHr,
			snap.Pzr.TempF, snap.Pzr.LevelPct, snap.Pzr.BubbleFormed, string(snap.Startup),
			string(snap.SGOverall), string(snap.Dump.Bridge), snap.Dump.Demand, string(state))
		if err != nil {
			return fmt.Errorf("failed to insert snapshot at step %d: %w", snap.Step, err)
		}
	}

	return tx.Commit()
}

// Snapshots reloads a run's full trajectory, ordered by step.
func (s *Store) Snapshots(ctx context.Context, runID string) ([]models.Snapshot, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT state FROM snapshots WHERE run_id = ? ORDER BY step`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []models.Snapshot
	for rows.Next() {
		var state string
		if err := rows.Scan(&state); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		var snap models.Snapshot
		if err := json.Unmarshal([]byte(state), &snap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// CountSnapshots returns the number of recorded snapshots for a run.
func (s *Store) CountSnapshots(ctx context.Context, runID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM snapshots WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return n, nil
}

// SavePhaseWindows replaces a run's phase windows with the given set.
func (s *Store) SavePhaseWindows(ctx context.Context, runID string, windows []phases.Window) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM phase_windows WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to clear phase windows: %w", err)
	}
	for _, w := range windows {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO phase_windows (run_id, phase, start_hr, end_hr) VALUES (?, ?, ?, ?)`,
			runID, string(w.Phase), w.StartHr, w.EndHr)
		if err != nil {
			return fmt.Errorf("failed to insert phase window %s: %w", w.Phase, err)
		}
	}

	return tx.Commit()
}

// PhaseWindows returns a run's phase windows in chronological order.
func (s *Store) PhaseWindows(ctx context.Context, runID string) ([]phases.Window, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT phase, start_hr, end_hr FROM phase_windows WHERE run_id = ? ORDER BY start_hr`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query phase windows: %w", err)
	}
	defer rows.Close()

	var windows []phases.Window
	for rows.Next() {
		var w phases.Window
		var phase string
		if err := rows.Scan(&phase, &w.StartHr, &w.EndHr); err != nil {
			return nil, fmt.Errorf("failed to scan phase window: %w", err)
		}
		w.Phase = phases.Phase(phase)
		windows = append(windows, w)
	}
	return windows, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(sc rowScanner) (Run, error) {
	var r Run
	var started string
	var finished, notes sql.NullString
	if err := sc.Scan(&r.ID, &started, &finished, &r.DtHr, &r.SGCount, &notes); err != nil {
		return Run{}, err
	}

	t, err := time.Parse(time.RFC3339Nano, started)
	if err != nil {
		return Run{}, fmt.Errorf("failed to parse started_at: %w", err)
	}
	r.StartedAt = t

	if finished.Valid {
		t, err := time.Parse(time.RFC3339Nano, finished.String)
		if err != nil {
			return Run{}, fmt.Errorf("failed to parse finished_at: %w", err)
		}
		r.FinishedAt = t
	}
	r.Notes = notes.String
	return r, nil
}

// nullString converts empty strings to NULL for optional columns.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Recorder buffers snapshots for one run and writes them to the store in
// batches. It satisfies the stepper's snapshot sink; call Flush after the run
// completes to write the tail of the buffer.
type Recorder struct {
	store *Store
	ctx   context.Context
	runID string
	buf   []models.Snapshot
}

// NewRecorder returns a recorder for the given run. The context is captured
// for the lifetime of the recording and applies to every batch write.
func (s *Store) NewRecorder(ctx context.Context, runID string) *Recorder {
	return &Recorder{
		store: s,
		ctx:   ctx,
		runID: runID,
		buf:   make([]models.Snapshot, 0, s.cfg.BatchSize),
	}
}

// Emit buffers one snapshot, flushing when the batch fills.
func (r *Recorder) Emit(snap models.Snapshot) error {
	r.buf = append(r.buf, snap)
	if len(r.buf) >= r.store.cfg.BatchSize {
		return r.Flush()
	}
	return nil
}

// Flush writes any buffered snapshots.
func (r *Recorder) Flush() error {
	if len(r.buf) == 0 {
		return nil
	}
	err := r.store.AppendSnapshots(r.ctx, r.runID, r.buf)
	r.buf = r.buf[:0]
	return err
}
