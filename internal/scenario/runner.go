package scenario

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/criticalsim/heatup/internal/models"
	"github.com/criticalsim/heatup/internal/phases"
	"github.com/criticalsim/heatup/internal/stepper"
	"github.com/criticalsim/heatup/internal/trace"
)

// Runner executes scenarios against the real stepper and records every run
// through an isolated trace store.
type Runner struct {
	t  *testing.T
	st *trace.Store
}

// NewRunner creates a scenario runner with an isolated SQLite trace store.
func NewRunner(t *testing.T) *Runner {
	t.Helper()
	st, err := trace.New(trace.Config{
		DBPath:    filepath.Join(t.TempDir(), "heatup.db"),
		BatchSize: 512,
	})
	if err != nil {
		t.Fatalf("NewRunner: failed to create trace store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return &Runner{t: t, st: st}
}

// Store exposes the trace store for scenarios that assert on persistence.
func (r *Runner) Store() *trace.Store { return r.st }

// Run executes the scenario and returns the collected result. Infrastructure
// failures stop the test; behavioral checks belong in assertions.
func (r *Runner) Run(sc Scenario) Result {
	r.t.Helper()
	ctx := context.Background()

	if sc.Script == nil {
		r.t.Fatalf("Run(%s): scenario has no script", sc.Name)
	}

	cfg := stepper.DefaultConfig()
	if sc.Config != nil {
		cfg = *sc.Config
	}
	if sc.DtHr > 0 {
		cfg.DtHr = sc.DtHr
	}
	if sc.MaxHours > 0 {
		cfg.MaxHours = sc.MaxHours
	}
	if err := cfg.Validate(); err != nil {
		r.t.Fatalf("Run(%s): invalid config: %v", sc.Name, err)
	}

	st := stepper.New(cfg)
	state := st.InitialState()
	if sc.InitialState != nil {
		state = sc.InitialState.Clone()
	}
	initial := state.Clone()

	run, err := r.st.CreateRun(ctx, cfg.DtHr, cfg.SGCount, sc.Name)
	if err != nil {
		r.t.Fatalf("Run(%s): creating trace run: %v", sc.Name, err)
	}
	rec := r.st.NewRecorder(ctx, run.ID)

	snaps := make([]models.Snapshot, 0, int(cfg.MaxHours/cfg.DtHr)+1)
	sink := stepper.SinkFunc(func(snap models.Snapshot) error {
		snaps = append(snaps, snap)
		return rec.Emit(snap)
	})
	if err := st.Run(ctx, &state, sc.Script, sink); err != nil {
		r.t.Fatalf("Run(%s): stepper: %v", sc.Name, err)
	}
	if err := rec.Flush(); err != nil {
		r.t.Fatalf("Run(%s): flushing recorder: %v", sc.Name, err)
	}
	if err := r.st.FinishRun(ctx, run.ID); err != nil {
		r.t.Fatalf("Run(%s): finishing trace run: %v", sc.Name, err)
	}
	if len(snaps) == 0 {
		r.t.Fatalf("Run(%s): no snapshots produced", sc.Name)
	}

	windows := phases.New(phases.DefaultConfig()).Analyze(snaps)
	if err := r.st.SavePhaseWindows(ctx, run.ID, windows); err != nil {
		r.t.Fatalf("Run(%s): saving phase windows: %v", sc.Name, err)
	}

	return Result{
		Name:      sc.Name,
		Config:    cfg,
		RunID:     run.ID,
		Initial:   initial,
		Snapshots: snaps,
		Final:     snaps[len(snaps)-1].PlantState,
		Windows:   windows,
	}
}
