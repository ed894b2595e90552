package scenario_test

import (
	"testing"

	"github.com/criticalsim/heatup/internal/models"
	"github.com/criticalsim/heatup/internal/operator"
	"github.com/criticalsim/heatup/internal/scenario"
)

// TestNoControlChatter validates that every latched channel honors its
// hysteresis band over a full heatup. The backup heaters are the interesting
// case: mid-heatup the insurge cooling exceeds the proportional bank, so they
// duty-cycle, and each transition must land on the correct side of the band
// rather than bouncing tick to tick.
//
// Setup:
//   - standard heatup script, 24 hour horizon
//
// Expected: backup heater transitions respect the on/off setpoints and stay
// far below one per band width of pressure travel; the P-12 block, tripped
// cold, clears exactly once; nothing ever reaches a relief or trip-open
// threshold.
func TestNoControlChatter(t *testing.T) {
	r := scenario.NewRunner(t)

	result := r.Run(scenario.Scenario{
		Name:     "chatter-heatup",
		Script:   operator.NewStandardHeatup(),
		MaxHours: 24,
	})

	// Assertion 1: backup heater transitions land inside the band.
	scenario.AssertBackupHeaterBand(t, result, 3.0)
	rises := result.CountRises(func(s *models.Snapshot) bool { return s.Pzr.BackupOn })
	if rises < 1 {
		t.Errorf("backup heaters never cycled; expected duty-cycling once insurge cooling exceeds the proportional bank")
	}
	if rises > 100 {
		t.Errorf("backup heaters cycled %d times; the hysteresis band is not holding", rises)
	}

	// Assertion 2: P-12 trips once while cold and clears once on the way up.
	if n := result.CountRises(func(s *models.Snapshot) bool { return s.Dump.P12Blocked }); n != 1 {
		t.Errorf("P-12 block rose %d times, want 1", n)
	}
	if blocked := result.Final.Dump.P12Blocked; blocked {
		t.Errorf("P-12 still blocked at hot standby")
	}

	// Assertion 3: no channel with a latched threshold ever fires.
	scenario.AssertNoRelief(t, result)
	scenario.AssertNoSpray(t, result)
	scenario.AssertNoTripOpen(t, result)

	t.Logf("backup heater cycles over the run: %d", rises)
}
