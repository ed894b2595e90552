package scenario

import (
	"github.com/criticalsim/heatup/internal/models"
	"github.com/criticalsim/heatup/internal/operator"
	"github.com/criticalsim/heatup/internal/phases"
	"github.com/criticalsim/heatup/internal/stepper"
)

// Scenario describes one scripted run.
type Scenario struct {
	// Name labels the run in the trace store and failure messages.
	Name string

	// Script supplies the per-tick inputs. Scripts latch decisions, so each
	// scenario needs its own instance.
	Script operator.Script

	// Config overrides the stepper configuration. Nil uses the default
	// 4-loop lineup.
	Config *stepper.Config

	// DtHr overrides the timestep when nonzero.
	DtHr float64

	// MaxHours overrides the run horizon when nonzero.
	MaxHours float64

	// InitialState overrides the cold-shutdown initial state, for scenarios
	// that start mid-procedure. The runner clones it.
	InitialState *models.PlantState
}

// Result is one run's collected output.
type Result struct {
	// Name echoes the scenario name.
	Name string

	// Config is the resolved stepper configuration the run used.
	Config stepper.Config

	// RunID is the trace store id the run was recorded under.
	RunID string

	// Initial is the state the run started from, before the first tick.
	Initial models.PlantState

	// Snapshots is the full per-tick series, in step order.
	Snapshots []models.Snapshot

	// Final is the last state of the run.
	Final models.PlantState

	// Windows are the bubble-procedure phase windows over the series.
	Windows []phases.Window
}

// Window returns the first window of the given phase.
func (r *Result) Window(p phases.Phase) (phases.Window, bool) {
	for _, w := range r.Windows {
		if w.Phase == p {
			return w, true
		}
	}
	return phases.Window{}, false
}

// FirstTime returns the simulation time of the first snapshot satisfying the
// predicate.
func (r *Result) FirstTime(pred func(s *models.Snapshot) bool) (float64, bool) {
	for i := range r.Snapshots {
		if pred(&r.Snapshots[i]) {
			return r.Snapshots[i].TimeHr, true
		}
	}
	return 0, false
}

// Between returns the sub-series with fromHr <= TimeHr < toHr.
func (r *Result) Between(fromHr, toHr float64) []models.Snapshot {
	lo, hi := len(r.Snapshots), len(r.Snapshots)
	for i := range r.Snapshots {
		if r.Snapshots[i].TimeHr >= fromHr {
			lo = i
			break
		}
	}
	for i := lo; i < len(r.Snapshots); i++ {
		if r.Snapshots[i].TimeHr >= toHr {
			hi = i
			break
		}
	}
	return r.Snapshots[lo:hi]
}

// CountRises counts false-to-true edges of the predicate over the series.
func (r *Result) CountRises(pred func(s *models.Snapshot) bool) int {
	count := 0
	prev := false
	for i := range r.Snapshots {
		cur := pred(&r.Snapshots[i])
		if cur && !prev {
			count++
		}
		prev = cur
	}
	return count
}

// MaxOver returns the maximum of fn over the series. Zero for an empty series.
func (r *Result) MaxOver(fn func(s *models.Snapshot) float64) float64 {
	var max float64
	for i := range r.Snapshots {
		if v := fn(&r.Snapshots[i]); i == 0 || v > max {
			max = v
		}
	}
	return max
}
