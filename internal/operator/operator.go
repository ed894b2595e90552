// Package operator holds the scripted operator procedures that drive a run.
// A script supplies each tick's external inputs from the observed plant
// state, the way an operator works a procedure: every stage is keyed to
// plant conditions, not elapsed time, so scripts are robust to parameter
// and timestep changes.
package operator

import (
	"github.com/criticalsim/heatup/internal/models"
	"github.com/criticalsim/heatup/internal/stepper"
)

// Script supplies each tick's external inputs from the observed plant state.
// A script may latch decisions it has already made (commencing heatup,
// isolating RHR), so an instance belongs to a single run; construct a fresh
// script for each run.
type Script interface {
	stepper.InputSource

	// Name labels the script in run records and failure messages.
	Name() string
}

// New adapts a plain function to Script for one-off drill scripts.
func New(name string, fn func(s *models.PlantState) models.ExternalInputs) Script {
	return &funcScript{name: name, fn: fn}
}

type funcScript struct {
	name string
	fn   func(s *models.PlantState) models.ExternalInputs
}

func (f *funcScript) Name() string { return f.name }

func (f *funcScript) Inputs(s *models.PlantState) models.ExternalInputs { return f.fn(s) }
