package scenario

import (
	"fmt"
	"math"
	"testing"

	"github.com/criticalsim/heatup/internal/constants"
	"github.com/criticalsim/heatup/internal/models"
	"github.com/criticalsim/heatup/internal/phases"
)

// AssertPhaseOrder asserts that the analyzed phase windows match the given
// sequence exactly, zero-duration windows included.
func AssertPhaseOrder(t *testing.T, result Result, want ...phases.Phase) {
	t.Helper()
	got := make([]phases.Phase, len(result.Windows))
	for i, w := range result.Windows {
		got[i] = w.Phase
	}
	if len(got) != len(want) {
		t.Errorf("AssertPhaseOrder: got %d windows %v, want %d %v", len(got), got, len(want), want)
		return
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("AssertPhaseOrder: window %d is %s, want %s (full order %v)", i, got[i], want[i], got)
		}
	}
}

// AssertWindowStartsWithin asserts that every phase window present in run a
// exists in run b with a start time within tolHr.
func AssertWindowStartsWithin(t *testing.T, a, b Result, tolHr float64) {
	t.Helper()
	for _, wa := range a.Windows {
		wb, ok := b.Window(wa.Phase)
		if !ok {
			t.Errorf("AssertWindowStartsWithin: phase %s present in %s but missing from %s", wa.Phase, a.Name, b.Name)
			continue
		}
		if diff := math.Abs(wa.StartHr - wb.StartHr); diff >= tolHr {
			t.Errorf("AssertWindowStartsWithin: phase %s starts %.6f hr apart (max %.6f): %s at %.6f, %s at %.6f",
				wa.Phase, diff, tolHr, a.Name, wa.StartHr, b.Name, wb.StartHr)
		}
	}
}

// AssertStartupOrder asserts that each startup state is reached and that
// their first-hit times come in the given order. States may be revisited
// later (a boiling-onset quench can drop Tavg back across a rung); only the
// first hits are ordered.
func AssertStartupOrder(t *testing.T, result Result, states ...models.StartupState) {
	t.Helper()
	prev := result.Initial.Startup
	prevHr := math.Inf(-1)
	for _, want := range states {
		hr, ok := result.FirstTime(func(s *models.Snapshot) bool { return s.Startup == want })
		if !ok {
			t.Errorf("AssertStartupOrder: state %s never reached", want)
			return
		}
		if hr < prevHr {
			t.Errorf("AssertStartupOrder: %s first reached at %.4f hr, before %s at %.4f hr", want, hr, prev, prevHr)
		}
		prev, prevHr = want, hr
	}
}

// AssertSGLadderOrder asserts that the lagging-generator SG ladder reaches
// each given state, first hits in order.
func AssertSGLadderOrder(t *testing.T, result Result, states ...models.SGLadderState) {
	t.Helper()
	prev := result.Initial.SGOverall
	prevHr := math.Inf(-1)
	for _, want := range states {
		hr, ok := result.FirstTime(func(s *models.Snapshot) bool { return s.SGOverall == want })
		if !ok {
			t.Errorf("AssertSGLadderOrder: state %s never reached", want)
			return
		}
		if hr < prevHr {
			t.Errorf("AssertSGLadderOrder: %s first reached at %.4f hr, before %s at %.4f hr", want, hr, prev, prevHr)
		}
		prev, prevHr = want, hr
	}
}

// AssertNodeTempsOrdered asserts that while a generator is subcooled its
// stratification nodes read warmest at the top, within tolF.
func AssertNodeTempsOrdered(t *testing.T, result Result, tolF float64) {
	t.Helper()
	violations := 0
	first := ""
	for i := range result.Snapshots {
		s := &result.Snapshots[i]
		for j := range s.SGs {
			sg := &s.SGs[j]
			if sg.Phase != models.PhaseSubcooled {
				continue
			}
			for n := 0; n < models.SGNodeCount-1; n++ {
				if sg.NodeTempsF[n]+tolF < sg.NodeTempsF[n+1] {
					violations++
					if violations == 1 {
						first = fmt.Sprintf("t=%.4f hr SG %d: node %d at %.3f F below node %d at %.3f F",
							s.TimeHr, j, n, sg.NodeTempsF[n], n+1, sg.NodeTempsF[n+1])
					}
				}
			}
		}
	}
	if violations > 0 {
		t.Errorf("AssertNodeTempsOrdered: %d inversions; first: %s", violations, first)
	}
}

// AssertStratifiedDutyCap asserts that no generator exceeds the configured
// stratified duty cap while subcooled.
func AssertStratifiedDutyCap(t *testing.T, result Result) {
	t.Helper()
	capBTU := result.Config.SG.StratifiedDutyCapMW * constants.BTUPerHrPerMW
	limit := capBTU * (1 + 1e-9)
	violations := 0
	first := ""
	for i := range result.Snapshots {
		s := &result.Snapshots[i]
		for j := range s.SGs {
			sg := &s.SGs[j]
			if sg.Phase != models.PhaseSubcooled {
				continue
			}
			if sg.HeatDutyBTUHr > limit {
				violations++
				if violations == 1 {
					first = fmt.Sprintf("t=%.4f hr SG %d duty %.0f BTU/hr above cap %.0f",
						s.TimeHr, j, sg.HeatDutyBTUHr, capBTU)
				}
			}
		}
	}
	if violations > 0 {
		t.Errorf("AssertStratifiedDutyCap: %d snapshots over cap; first: %s", violations, first)
	}
}

// AssertHeatupRateAtMost asserts that the observed heatup rate never exceeds
// maxFHr. Cooldown excursions are not bounded here.
func AssertHeatupRateAtMost(t *testing.T, result Result, maxFHr float64) {
	t.Helper()
	violations := 0
	first := ""
	for i := range result.Snapshots {
		s := &result.Snapshots[i]
		if s.HeatupRateFHr > maxFHr {
			violations++
			if violations == 1 {
				first = fmt.Sprintf("t=%.4f hr rate %.2f F/hr", s.TimeHr, s.HeatupRateFHr)
			}
		}
	}
	if violations > 0 {
		t.Errorf("AssertHeatupRateAtMost: %d snapshots above %.1f F/hr; first: %s", violations, maxFHr, first)
	}
}

// AssertBackupHeaterBand asserts that backup heater transitions honor the
// configured hysteresis band: trips on only near or below the on setpoint,
// releases only near or above the off setpoint. tolPsi absorbs the pressure
// movement of the tick the transition lands on.
func AssertBackupHeaterBand(t *testing.T, result Result, tolPsi float64) {
	t.Helper()
	onMax := result.Config.Control.BackupOnPsig + tolPsi
	offMin := result.Config.Control.BackupOffPsig - tolPsi
	prev := result.Initial.Pzr.BackupOn
	violations := 0
	first := ""
	for i := range result.Snapshots {
		s := &result.Snapshots[i]
		switch {
		case s.Pzr.BackupOn && !prev && s.RCSPressurePsig > onMax:
			violations++
			if violations == 1 {
				first = fmt.Sprintf("t=%.4f hr: tripped on at %.2f psig (on setpoint %.0f)",
					s.TimeHr, s.RCSPressurePsig, result.Config.Control.BackupOnPsig)
			}
		case !s.Pzr.BackupOn && prev && s.RCSPressurePsig < offMin:
			violations++
			if violations == 1 {
				first = fmt.Sprintf("t=%.4f hr: released at %.2f psig (off setpoint %.0f)",
					s.TimeHr, s.RCSPressurePsig, result.Config.Control.BackupOffPsig)
			}
		}
		prev = s.Pzr.BackupOn
	}
	if violations > 0 {
		t.Errorf("AssertBackupHeaterBand: %d transitions outside the band; first: %s", violations, first)
	}
}

// AssertNoRelief asserts that neither PORV channel ever opens.
func AssertNoRelief(t *testing.T, result Result) {
	t.Helper()
	for i := range result.Snapshots {
		s := &result.Snapshots[i]
		if s.Pzr.PORVOpen[0] || s.Pzr.PORVOpen[1] {
			t.Errorf("AssertNoRelief: PORV open at t=%.4f hr, pressure %.2f psig", s.TimeHr, s.RCSPressurePsig)
			return
		}
	}
}

// AssertNoSpray asserts that pressurizer spray never actuates.
func AssertNoSpray(t *testing.T, result Result) {
	t.Helper()
	for i := range result.Snapshots {
		s := &result.Snapshots[i]
		if s.Pzr.SprayGPM > 0 {
			t.Errorf("AssertNoSpray: spray %.1f GPM at t=%.4f hr, pressure %.2f psig", s.Pzr.SprayGPM, s.TimeHr, s.RCSPressurePsig)
			return
		}
	}
}

// AssertNoTripOpen asserts that neither trip-open channel ever fires.
func AssertNoTripOpen(t *testing.T, result Result) {
	t.Helper()
	for i := range result.Snapshots {
		s := &result.Snapshots[i]
		if s.Dump.TripOpen12 || s.Dump.TripOpen34 {
			t.Errorf("AssertNoTripOpen: trip-open at t=%.4f hr (12=%v 34=%v)", s.TimeHr, s.Dump.TripOpen12, s.Dump.TripOpen34)
			return
		}
	}
}

// AssertGroupSequencing asserts that whenever a modulating group has a
// nonzero target, every lower-numbered group is full open. Snapshots under a
// trip-open channel are exempt; trip-open lifts groups out of sequence.
func AssertGroupSequencing(t *testing.T, result Result, tol float64) {
	t.Helper()
	violations := 0
	first := ""
	for i := range result.Snapshots {
		s := &result.Snapshots[i]
		if s.Dump.TripOpen12 || s.Dump.TripOpen34 {
			continue
		}
		for g := 1; g < models.DumpGroupCount; g++ {
			if s.Dump.GroupTargets[g] > tol && s.Dump.GroupTargets[g-1] < 1-tol {
				violations++
				if violations == 1 {
					first = fmt.Sprintf("t=%.4f hr: group %d target %.4f with group %d at %.4f",
						s.TimeHr, g+1, s.Dump.GroupTargets[g], g, s.Dump.GroupTargets[g-1])
				}
			}
		}
	}
	if violations > 0 {
		t.Errorf("AssertGroupSequencing: %d out-of-sequence snapshots; first: %s", violations, first)
	}
}

// AssertGroupsClosed asserts that valve groups numbered first and above hold
// a zero target for the whole run.
func AssertGroupsClosed(t *testing.T, result Result, first int) {
	t.Helper()
	violations := 0
	firstMsg := ""
	for i := range result.Snapshots {
		s := &result.Snapshots[i]
		for g := first - 1; g < models.DumpGroupCount; g++ {
			if s.Dump.GroupTargets[g] > 0 {
				violations++
				if violations == 1 {
					firstMsg = fmt.Sprintf("t=%.4f hr group %d target %.4f", s.TimeHr, g+1, s.Dump.GroupTargets[g])
				}
			}
		}
	}
	if violations > 0 {
		t.Errorf("AssertGroupsClosed: %d snapshots with group %d or above open; first: %s", violations, first, firstMsg)
	}
}

// AssertBridgeBetween asserts that the dump bridge reads want for every
// snapshot in [fromHr, toHr).
func AssertBridgeBetween(t *testing.T, result Result, fromHr, toHr float64, want models.BridgeState) {
	t.Helper()
	n := 0
	violations := 0
	first := ""
	for i := range result.Snapshots {
		s := &result.Snapshots[i]
		if s.TimeHr < fromHr || s.TimeHr >= toHr {
			continue
		}
		n++
		if s.Dump.Bridge != want {
			violations++
			if violations == 1 {
				first = fmt.Sprintf("t=%.4f hr bridge %s", s.TimeHr, s.Dump.Bridge)
			}
		}
	}
	if n == 0 {
		t.Errorf("AssertBridgeBetween: no snapshots in [%.4f, %.4f) hr", fromHr, toHr)
		return
	}
	if violations > 0 {
		t.Errorf("AssertBridgeBetween: %d of %d snapshots in [%.4f, %.4f) hr not %s; first: %s",
			violations, n, fromHr, toHr, want, first)
	}
}

// AssertFinalTavg asserts the final coolant temperature lies in [min, max].
func AssertFinalTavg(t *testing.T, result Result, min, max float64) {
	t.Helper()
	if got := result.Final.TavgF; got < min || got > max {
		t.Errorf("AssertFinalTavg: %.3f F not in [%.1f, %.1f]", got, min, max)
	}
}

// AssertFinalPressure asserts the final RCS pressure lies in [min, max].
func AssertFinalPressure(t *testing.T, result Result, min, max float64) {
	t.Helper()
	if got := result.Final.RCSPressurePsig; got < min || got > max {
		t.Errorf("AssertFinalPressure: %.3f psig not in [%.1f, %.1f]", got, min, max)
	}
}

// AssertFinalClose asserts that two runs end at nearly the same coolant
// temperature and pressure.
func AssertFinalClose(t *testing.T, a, b Result, tavgTolF, pressTolPsi float64) {
	t.Helper()
	if d := math.Abs(a.Final.TavgF - b.Final.TavgF); d > tavgTolF {
		t.Errorf("AssertFinalClose: final Tavg %.4f F apart (max %.4f): %s at %.4f, %s at %.4f",
			d, tavgTolF, a.Name, a.Final.TavgF, b.Name, b.Final.TavgF)
	}
	if d := math.Abs(a.Final.RCSPressurePsig - b.Final.RCSPressurePsig); d > pressTolPsi {
		t.Errorf("AssertFinalClose: final pressure %.4f psig apart (max %.4f): %s at %.4f, %s at %.4f",
			d, pressTolPsi, a.Name, a.Final.RCSPressurePsig, b.Name, b.Final.RCSPressurePsig)
	}
}
