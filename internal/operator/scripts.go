package operator

import (
	"github.com/criticalsim/heatup/internal/constants"
	"github.com/criticalsim/heatup/internal/models"
	"github.com/criticalsim/heatup/internal/satprops"
	"github.com/criticalsim/heatup/internal/stepper"
)

// Procedure figures the scripts work to. The flows are typical CVCS and feed
// capacities; the gains are the proportional bias an operator effectively
// applies when throttling toward a target.
const (
	cvcsTargetPsig     = 325.0
	holdTavgF          = 160.0
	chargingGPM        = 45.0
	drainLetdownGPM    = 120.0
	maxLetdownGPM      = 120.0
	levelGainGPMPerPct = 12.0
	drainTargetPct     = 25.0
	drainBandPct       = 3.0
	programHighPct     = 61.5
	rhrIsolateTavgF    = 350.0
	rhrBaseBTUHr       = 5.0e7
	rhrGainBTUHrPerF   = 1.2e7
	rhrMaxBTUHr        = 1.2e8
	feedTargetPct      = 70.0
	feedGainGPMPerPct  = 5.0
	feedMaxGPM         = 150.0
	feedTempF          = 100.0
)

// StandardHeatup drives the canonical cold-shutdown-to-hot-standby procedure:
// four RCPs with RHR throttled to hold the coolant cold while the heaters
// draw the bubble, a full-letdown drain to the procedure level, then heatup
// with the level following the program, RHR isolation passing 350 °F, and the
// condenser dumps armed in steam-pressure mode to catch the secondary at the
// no-load setpoint.
type StandardHeatup struct {
	drained  bool
	isolated bool
}

// NewStandardHeatup returns the script at the start of the procedure.
func NewStandardHeatup() *StandardHeatup { return &StandardHeatup{} }

// Name implements Script.
func (sc *StandardHeatup) Name() string { return "standard-heatup" }

// Inputs implements Script.
func (sc *StandardHeatup) Inputs(s *models.PlantState) models.ExternalInputs {
	in := models.ExternalInputs{
		RCPsRunning:               4,
		CVCSTargetPsig:            cvcsTargetPsig,
		CondenserAvailable:        true,
		DumpMode:                  models.DumpModeSteamPressure,
		SteamPressureSetpointPsig: constants.NoLoadSGPressurePsig,
		TavgRefF:                  constants.NoLoadTavgF,
		P12Bypass:                 true,
		SGFeedTempF:               feedTempF,
	}

	// Latched decisions. Heatup commences the first time the drain reaches
	// the target band; RHR stays isolated once isolated.
	if !sc.drained && s.Pzr.BubbleFormed && s.Pzr.LevelPct <= drainTargetPct+drainBandPct {
		sc.drained = true
	}
	if !sc.isolated && sc.drained && s.TavgF >= rhrIsolateTavgF {
		sc.isolated = true
	}

	switch {
	case !s.Pzr.BubbleFormed:
		// Bubble draw: CVCS balanced, RHR holds Tavg, heaters do the work.
		in.ChargingGPM = chargingGPM
		in.LetdownGPM = chargingGPM
		in.RHRHeatRemovalBTUHr = holdRHR(s.TavgF)

	case !sc.drained:
		// Drain at full letdown, still holding Tavg on RHR.
		in.ChargingGPM = chargingGPM
		in.LetdownGPM = drainLetdownGPM
		in.RHRHeatRemovalBTUHr = holdRHR(s.TavgF)

	default:
		// Heatup: RHR removal secured, letdown follows the level program,
		// feed holds the generators once they start steaming.
		in.ChargingGPM = chargingGPM
		in.LetdownGPM = letdownFor(s.Pzr.LevelPct, levelProgram(s.TavgF))
		in.RHRIsolated = sc.isolated
		feeds := make([]float64, len(s.SGs))
		for i := range s.SGs {
			feeds[i] = clamp((feedTargetPct-s.SGs[i].LevelPct)*feedGainGPMPerPct, 0, feedMaxGPM)
		}
		in.SGFeedGPM = feeds
	}
	return in
}

// BubbleProcedure draws the bubble, drains, and pressurizes to operating
// pressure while RHR holds the coolant cold the whole way. The secondary
// never approaches saturation, so every phase transition rides the
// near-linear pressurizer dynamics.
type BubbleProcedure struct {
	drained bool
}

// NewBubbleProcedure returns the script at the start of the procedure.
func NewBubbleProcedure() *BubbleProcedure { return &BubbleProcedure{} }

// Name implements Script.
func (sc *BubbleProcedure) Name() string { return "bubble-procedure" }

// Inputs implements Script.
func (sc *BubbleProcedure) Inputs(s *models.PlantState) models.ExternalInputs {
	in := models.ExternalInputs{
		RCPsRunning:         4,
		CVCSTargetPsig:      cvcsTargetPsig,
		RHRHeatRemovalBTUHr: holdRHR(s.TavgF),
		DumpMode:            models.DumpModeOff,
	}

	if !sc.drained && s.Pzr.BubbleFormed && s.Pzr.LevelPct <= drainTargetPct+drainBandPct {
		sc.drained = true
	}

	switch {
	case !s.Pzr.BubbleFormed:
		in.ChargingGPM = chargingGPM
		in.LetdownGPM = chargingGPM
	case !sc.drained:
		in.ChargingGPM = chargingGPM
		in.LetdownGPM = drainLetdownGPM
	default:
		in.ChargingGPM = chargingGPM
		in.LetdownGPM = letdownFor(s.Pzr.LevelPct, drainTargetPct)
	}
	return in
}

// HotStandbyState returns a plant already at no-load conditions: bubble
// drawn, RCS at the no-load temperature under operating pressure, every
// generator saturated at the given header pressure with developed
// circulation. Scenarios that exercise the steam-dump bridge start here
// instead of running the whole heatup.
func HotStandbyState(cfg stepper.Config, headerPsig float64) models.PlantState {
	s := models.PlantState{
		TavgF:           constants.NoLoadTavgF,
		RCSPressurePsig: constants.OperatingPressurePsig,
		RCPsRunning:     4,
		RHRIsolated:     true,
		Pzr: models.PressurizerState{
			TempF:            satprops.TsatFromPsig(constants.OperatingPressurePsig),
			LevelPct:         60,
			BubbleFormed:     true,
			ProportionalDuty: 0.5,
		},
		SGs:       make([]models.SGState, cfg.SGCount),
		Dump:      models.DumpState{Mode: models.DumpModeOff, Bridge: models.BridgeUnavailable},
		Startup:   models.StartupS5,
		SGOverall: models.SGLadder5,
	}
	secTempF := satprops.TsatFromPsig(headerPsig)
	for i := range s.SGs {
		g := &s.SGs[i]
		g.Phase = models.PhaseSaturated
		g.CirculationFactor = 1
		g.PressurePsig = headerPsig
		g.LevelPct = 65
		g.Ladder = models.SGLadder5
		for n := range g.NodeTempsF {
			g.NodeTempsF[n] = secTempF
		}
	}
	return s
}

// holdRHR is the removal an operator throttling RHR to hold the coolant near
// the hold temperature would apply.
func holdRHR(tavgF float64) float64 {
	return clamp(rhrBaseBTUHr+rhrGainBTUHrPerF*(tavgF-holdTavgF), 0, rhrMaxBTUHr)
}

// letdownFor is the letdown that walks pressurizer level toward the target.
func letdownFor(levelPct, targetPct float64) float64 {
	return clamp(chargingGPM+levelGainGPMPerPct*(levelPct-targetPct), 0, maxLetdownGPM)
}

// levelProgram is the programmed pressurizer level for the heatup: the drain
// target while cold, rising linearly to the no-load level.
func levelProgram(tavgF float64) float64 {
	f := (tavgF - holdTavgF) / (constants.NoLoadTavgF - holdTavgF)
	return clamp(drainTargetPct+f*(programHighPct-drainTargetPct), drainTargetPct, programHighPct)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
