// Package scenario provides a scripted end-to-end test harness for the plant
// heatup simulation.
//
// Scenarios exercise the real Stepper, trace store, and phase analyzer with
// no mocks. An operator.Script plays the operator: it reads each tick's plant
// state and supplies the external inputs the procedure calls for, so a run
// unfolds from observed plant conditions rather than a canned input tape.
// The runner records every run through an isolated SQLite trace store via
// t.TempDir() and returns the full snapshot series for property-based
// assertions.
//
// Usage:
//
//	func TestStandardHeatup(t *testing.T) {
//	    r := scenario.NewRunner(t)
//	    result := r.Run(scenario.Scenario{
//	        Name:     "standard-heatup",
//	        Script:   operator.NewStandardHeatup(),
//	        MaxHours: 24,
//	    })
//	    scenario.AssertPhaseOrder(t, result,
//	        phases.PhaseNone, phases.PhaseDetection, phases.PhaseVerification,
//	        phases.PhaseDrain, phases.PhaseStabilize, phases.PhasePressurize,
//	        phases.PhaseComplete)
//	}
package scenario
