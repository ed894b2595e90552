// Package startup classifies plant and steam-generator startup states. Both
// ladders are pure functions of process observables with a fixed total order:
// conditions are checked from the top down and the highest satisfied rung
// wins, so a transient dip in one signal can never skip a state upward.
// Classification never reads controller outputs.
package startup

import (
	"fmt"

	"github.com/criticalsim/heatup/internal/models"
)

// Config holds the ladder thresholds.
type Config struct {
	// Hot standby requires both temperature and pressure at the flats.
	HotStandbyTavgF        float64 `yaml:"hot_standby_tavg_f"`
	HotStandbyPressurePsig float64 `yaml:"hot_standby_pressure_psig"`

	// RHRMinTavgF is the temperature above which an isolated RHR system
	// counts as the heatup alignment.
	RHRMinTavgF float64 `yaml:"rhr_min_tavg_f"`

	// MidHeatupTavgF and EarlyHeatupTavgF split the low heatup band.
	MidHeatupTavgF   float64 `yaml:"mid_heatup_tavg_f"`
	EarlyHeatupTavgF float64 `yaml:"early_heatup_tavg_f"`

	// SGNoLoadPsig is the no-load secondary pressure rung.
	SGNoLoadPsig float64 `yaml:"sg_no_load_psig"`

	// SGSteamingPsig separates early steaming from boiling onset.
	SGSteamingPsig float64 `yaml:"sg_steaming_psig"`

	// SGHeatingDeltaF above the layup temperature marks a generator as
	// heating.
	SGHeatingDeltaF float64 `yaml:"sg_heating_delta_f"`

	// LayupTempF is the wet-layup reference the heating delta is measured
	// from.
	LayupTempF float64 `yaml:"layup_temp_f"`

	// SGWetLayupLevelPct is the minimum level for wet layup.
	SGWetLayupLevelPct float64 `yaml:"sg_wet_layup_level_pct"`
}

// DefaultConfig returns the standard ladder thresholds.
func DefaultConfig() Config {
	return Config{
		HotStandbyTavgF:        550,
		HotStandbyPressurePsig: 2200,
		RHRMinTavgF:            350,
		MidHeatupTavgF:         220,
		EarlyHeatupTavgF:       200,
		SGNoLoadPsig:           1062,
		SGSteamingPsig:         100,
		SGHeatingDeltaF:        20,
		LayupTempF:             100,
		SGWetLayupLevelPct:     90,
	}
}

// Validate checks that the rungs are ordered so the top-down scan is a true
// total order.
func (c Config) Validate() error {
	if c.EarlyHeatupTavgF >= c.MidHeatupTavgF {
		return fmt.Errorf("early_heatup_tavg_f (%v) must be below mid_heatup_tavg_f (%v)", c.EarlyHeatupTavgF, c.MidHeatupTavgF)
	}
	if c.MidHeatupTavgF >= c.RHRMinTavgF {
		return fmt.Errorf("mid_heatup_tavg_f (%v) must be below rhr_min_tavg_f (%v)", c.MidHeatupTavgF, c.RHRMinTavgF)
	}
	if c.RHRMinTavgF >= c.HotStandbyTavgF {
		return fmt.Errorf("rhr_min_tavg_f (%v) must be below hot_standby_tavg_f (%v)", c.RHRMinTavgF, c.HotStandbyTavgF)
	}
	if c.SGSteamingPsig >= c.SGNoLoadPsig {
		return fmt.Errorf("sg_steaming_psig (%v) must be below sg_no_load_psig (%v)", c.SGSteamingPsig, c.SGNoLoadPsig)
	}
	if c.SGHeatingDeltaF <= 0 {
		return fmt.Errorf("sg_heating_delta_f must be positive: got %v", c.SGHeatingDeltaF)
	}
	if c.SGWetLayupLevelPct <= 0 || c.SGWetLayupLevelPct > 100 {
		return fmt.Errorf("sg_wet_layup_level_pct must be in (0, 100]: got %v", c.SGWetLayupLevelPct)
	}
	return nil
}

// PlantInputs are the observables the plant ladder reads.
type PlantInputs struct {
	TavgF           float64
	RCSPressurePsig float64
	BubbleFormed    bool
	RCPsRunning     int
	RHRIsolated     bool
}

// SGInputs are the observables each generator's ladder reads.
type SGInputs struct {
	PressurePsig float64
	Saturated    bool
	BulkTempF    float64
	LevelPct     float64
}

// Classifier evaluates both ladders.
type Classifier struct {
	cfg Config
}

// New creates a classifier.
func New(cfg Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// Config returns the ladder thresholds.
func (c *Classifier) Config() Config { return c.cfg }

// Plant classifies the plant ladder.
func (c *Classifier) Plant(in PlantInputs) models.StartupState {
	cfg := &c.cfg
	switch {
	case in.TavgF >= cfg.HotStandbyTavgF && in.RCSPressurePsig >= cfg.HotStandbyPressurePsig:
		return models.StartupS5
	case in.RHRIsolated && in.TavgF > cfg.RHRMinTavgF:
		return models.StartupS4
	case in.TavgF > cfg.MidHeatupTavgF:
		return models.StartupS3b
	case in.TavgF > cfg.EarlyHeatupTavgF:
		return models.StartupS3a
	case in.BubbleFormed:
		return models.StartupS2
	case in.RCPsRunning >= 1:
		return models.StartupS1
	default:
		return models.StartupS0
	}
}

// SG classifies one generator's ladder.
func (c *Classifier) SG(in SGInputs) models.SGLadderState {
	cfg := &c.cfg
	switch {
	case in.PressurePsig >= cfg.SGNoLoadPsig:
		return models.SGLadder5
	case in.PressurePsig > cfg.SGSteamingPsig:
		return models.SGLadder4
	case in.Saturated:
		return models.SGLadder3
	case in.BulkTempF > cfg.LayupTempF+cfg.SGHeatingDeltaF:
		return models.SGLadder2
	case in.LevelPct >= cfg.SGWetLayupLevelPct:
		return models.SGLadder1
	default:
		return models.SGLadder0
	}
}

// Overall reduces per-generator states to the plant SG state: the lagging
// generator gates the plant.
func (c *Classifier) Overall(states []models.SGLadderState) models.SGLadderState {
	if len(states) == 0 {
		return models.SGLadder0
	}
	lowest := states[0]
	for _, s := range states[1:] {
		if s.Rank() < lowest.Rank() {
			lowest = s
		}
	}
	return lowest
}
