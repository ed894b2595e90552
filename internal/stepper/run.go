package stepper

import (
	"context"
	"errors"
	"fmt"

	"github.com/criticalsim/heatup/internal/models"
)

// ErrStop tells Run to end cleanly. A sink returns it when whatever it was
// waiting for has happened; Run treats it as success, not failure.
var ErrStop = errors.New("stop requested")

// InputSource supplies each tick's boundary conditions. It sees the state
// produced by the previous tick, so scripts can react to observed plant
// conditions rather than counting ticks.
type InputSource interface {
	Inputs(s *models.PlantState) models.ExternalInputs
}

// InputFunc adapts a function to InputSource.
type InputFunc func(s *models.PlantState) models.ExternalInputs

// Inputs implements InputSource.
func (f InputFunc) Inputs(s *models.PlantState) models.ExternalInputs { return f(s) }

// SnapshotSink receives each tick's snapshot.
type SnapshotSink interface {
	Emit(snap models.Snapshot) error
}

// SinkFunc adapts a function to SnapshotSink.
type SinkFunc func(snap models.Snapshot) error

// Emit implements SnapshotSink.
func (f SinkFunc) Emit(snap models.Snapshot) error { return f(snap) }

// Run advances the plant until MaxHours of simulation time, the MaxSteps
// guard, a sink-requested stop, or context cancellation. The sink may be nil
// for callers that only want the final state.
func (st *Stepper) Run(ctx context.Context, s *models.PlantState, src InputSource, sink SnapshotSink) error {
	cfg := &st.cfg

	for i := 0; i < cfg.MaxSteps && s.TimeHr < cfg.MaxHours; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		snap := st.Step(s, src.Inputs(s))
		if sink == nil {
			continue
		}
		if err := sink.Emit(snap); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return fmt.Errorf("emitting snapshot at %.4f hr: %w", snap.TimeHr, err)
		}
	}
	return nil
}
