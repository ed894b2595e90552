// Package phases summarizes a recorded trajectory into bubble-procedure
// windows. The analyzer is a pure one-way classifier: given an ordered
// snapshot series it reports when each segment of the procedure began and
// ended, and a run that stalls simply leaves its last window open. It never
// moves backward, so a level or pressure excursion after a transition does
// not reopen an earlier phase.
package phases

import (
	"fmt"

	"github.com/criticalsim/heatup/internal/models"
	"github.com/criticalsim/heatup/internal/satprops"
)

// Phase identifies one segment of the bubble-drawing procedure.
type Phase string

const (
	// PhaseNone covers everything before bubble conditions are approached.
	PhaseNone Phase = "none"

	// PhaseDetection begins when the heaters are driving the pressurizer
	// toward saturation and it is within the detection margin of Tsat.
	PhaseDetection Phase = "detection"

	// PhaseVerification begins when the bubble has latched.
	PhaseVerification Phase = "verification"

	// PhaseDrain begins when level falls off the water-solid indication.
	PhaseDrain Phase = "drain"

	// PhaseStabilize begins when level reaches the drain target band.
	PhaseStabilize Phase = "stabilize"

	// PhasePressurize begins when RCS pressure passes the pressurize
	// threshold on its way up.
	PhasePressurize Phase = "pressurize"

	// PhaseComplete begins at operating pressure.
	PhaseComplete Phase = "complete"
)

// order is the one-way progression. A run may stall in any phase; it never
// skips a phase, and never moves backward.
var order = []Phase{
	PhaseNone,
	PhaseDetection,
	PhaseVerification,
	PhaseDrain,
	PhaseStabilize,
	PhasePressurize,
	PhaseComplete,
}

// Window is one contiguous span of a phase. EndHr equals the next window's
// StartHr; the final window ends at the last snapshot.
type Window struct {
	Phase   Phase   `json:"phase"`
	StartHr float64 `json:"start_hr"`
	EndHr   float64 `json:"end_hr"`
}

// DurationHr is the window length.
func (w Window) DurationHr() float64 { return w.EndHr - w.StartHr }

// Config sets the transition thresholds.
type Config struct {
	// DetectionTsatMarginF is how close the pressurizer must be to
	// saturation, with heaters driving, to count as approaching the bubble.
	DetectionTsatMarginF float64 `yaml:"detection_tsat_margin_f"`

	// DrainStartLevelPct is the level below which the post-flash drain is
	// considered underway.
	DrainStartLevelPct float64 `yaml:"drain_start_level_pct"`

	// DrainTargetLevelPct is the procedure's target level.
	DrainTargetLevelPct float64 `yaml:"drain_target_level_pct"`

	// StabilizeBandPct widens the target: stabilize begins at
	// target + band on the way down.
	StabilizeBandPct float64 `yaml:"stabilize_band_pct"`

	// PressurizePsig marks the start of the pressure ascent.
	PressurizePsig float64 `yaml:"pressurize_psig"`

	// CompletePsig marks operating pressure.
	CompletePsig float64 `yaml:"complete_psig"`
}

// DefaultConfig returns the standard procedure thresholds.
func DefaultConfig() Config {
	return Config{
		DetectionTsatMarginF: 15,
		DrainStartLevelPct:   95,
		DrainTargetLevelPct:  25,
		StabilizeBandPct:     3,
		PressurizePsig:       500,
		CompletePsig:         2200,
	}
}

// Validate checks threshold ordering.
func (c Config) Validate() error {
	if c.DetectionTsatMarginF < 0 {
		return fmt.Errorf("detection_tsat_margin_f must be non-negative: got %v", c.DetectionTsatMarginF)
	}
	if c.DrainStartLevelPct <= 0 || c.DrainStartLevelPct > 100 {
		return fmt.Errorf("drain_start_level_pct must be in (0, 100]: got %v", c.DrainStartLevelPct)
	}
	if c.DrainTargetLevelPct <= 0 || c.DrainTargetLevelPct >= c.DrainStartLevelPct {
		return fmt.Errorf("drain_target_level_pct must be in (0, %v): got %v", c.DrainStartLevelPct, c.DrainTargetLevelPct)
	}
	if c.StabilizeBandPct < 0 {
		return fmt.Errorf("stabilize_band_pct must be non-negative: got %v", c.StabilizeBandPct)
	}
	if c.PressurizePsig <= 0 {
		return fmt.Errorf("pressurize_psig must be positive: got %v", c.PressurizePsig)
	}
	if c.CompletePsig <= c.PressurizePsig {
		return fmt.Errorf("complete_psig (%v) must exceed pressurize_psig (%v)", c.CompletePsig, c.PressurizePsig)
	}
	return nil
}

// Analyzer classifies snapshot series into phase windows.
type Analyzer struct {
	cfg Config
}

// New creates an analyzer with the given config.
func New(cfg Config) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// Analyze walks the series in order and returns one window per phase
// entered, starting with the initial none window. A coarse series may enter
// several phases at one snapshot; each intermediate window is kept with zero
// duration so the progression stays complete.
func (a *Analyzer) Analyze(snaps []models.Snapshot) []Window {
	if len(snaps) == 0 {
		return nil
	}

	windows := []Window{{Phase: PhaseNone, StartHr: snaps[0].TimeHr}}
	idx := 0
	for i := range snaps {
		s := &snaps[i]
		for idx+1 < len(order) && a.entered(order[idx+1], s) {
			idx++
			windows[len(windows)-1].EndHr = s.TimeHr
			windows = append(windows, Window{Phase: order[idx], StartHr: s.TimeHr})
		}
	}
	windows[len(windows)-1].EndHr = snaps[len(snaps)-1].TimeHr
	return windows
}

// entered reports whether the snapshot satisfies the phase's entry
// condition. Conditions are checked only in ladder order, so each one only
// states what is new at its own transition.
func (a *Analyzer) entered(p Phase, s *models.Snapshot) bool {
	cfg := &a.cfg
	switch p {
	case PhaseDetection:
		heating := s.Pzr.ProportionalDuty > 0 || s.Pzr.BackupOn
		return heating && s.Pzr.TempF >= satprops.TsatFromPsig(s.RCSPressurePsig)-cfg.DetectionTsatMarginF
	case PhaseVerification:
		return s.Pzr.BubbleFormed
	case PhaseDrain:
		return s.Pzr.LevelPct <= cfg.DrainStartLevelPct
	case PhaseStabilize:
		return s.Pzr.LevelPct <= cfg.DrainTargetLevelPct+cfg.StabilizeBandPct
	case PhasePressurize:
		return s.RCSPressurePsig >= cfg.PressurizePsig
	case PhaseComplete:
		return s.RCSPressurePsig >= cfg.CompletePsig
	default:
		return false
	}
}
