// Package pzr models the pressurizer vessel and its pressure control
// channels. The vessel side is a lumped energy balance: water-solid until the
// heaters pull the liquid to saturation, then a drawn steam bubble whose
// saturation temperature sets primary pressure. The control side computes
// all five mechanisms every tick from the same pressure signal: proportional
// heaters, backup heater bistables, spray, and two PORV channels.
package pzr

import (
	"fmt"

	"github.com/criticalsim/heatup/internal/constants"
	"github.com/criticalsim/heatup/internal/models"
	"github.com/criticalsim/heatup/internal/satprops"
)

// VesselConfig holds the pressurizer vessel parameters.
type VesselConfig struct {
	// VolumeFt3 is total vessel volume.
	VolumeFt3 float64 `yaml:"volume_ft3"`

	// WaterMassFullLbm is the liquid mass at 100 % level, used for the
	// level-proportional heat capacity.
	WaterMassFullLbm float64 `yaml:"water_mass_full_lbm"`

	// MetalBTUPerF adds vessel metal to the heat capacity.
	MetalBTUPerF float64 `yaml:"metal_btu_per_f"`

	// ProportionalKW and BackupKW are heater bank ratings.
	ProportionalKW float64 `yaml:"proportional_kw"`
	BackupKW       float64 `yaml:"backup_kw"`

	// HeaterEfficiency derates electrical input to water heat.
	HeaterEfficiency float64 `yaml:"heater_efficiency"`

	// AmbientLossBTUHr is standing heat loss through the insulation.
	AmbientLossBTUHr float64 `yaml:"ambient_loss_btu_hr"`

	// BubbleFlashLevelPct is indicated level just after the bubble flashes.
	BubbleFlashLevelPct float64 `yaml:"bubble_flash_level_pct"`

	// HeaterCutoffLevelPct de-energizes heaters on low level to protect the
	// elements.
	HeaterCutoffLevelPct float64 `yaml:"heater_cutoff_level_pct"`

	// PORVFlowLbmHr is relief capacity per channel.
	PORVFlowLbmHr float64 `yaml:"porv_flow_lbm_hr"`
}

// DefaultVesselConfig returns the 4-loop plant vessel parameters.
func DefaultVesselConfig() VesselConfig {
	return VesselConfig{
		VolumeFt3:            1800,
		WaterMassFullLbm:     100000,
		MetalBTUPerF:         50000,
		ProportionalKW:       370,
		BackupKW:             1424,
		HeaterEfficiency:     0.98,
		AmbientLossBTUHr:     5.0e4,
		BubbleFlashLevelPct:  97,
		HeaterCutoffLevelPct: 17,
		PORVFlowLbmHr:        210000,
	}
}

// Validate checks the vessel parameters.
func (c VesselConfig) Validate() error {
	for name, v := range map[string]float64{
		"volume_ft3":          c.VolumeFt3,
		"water_mass_full_lbm": c.WaterMassFullLbm,
		"proportional_kw":     c.ProportionalKW,
		"backup_kw":           c.BackupKW,
		"porv_flow_lbm_hr":    c.PORVFlowLbmHr,
	} {
		if v <= 0 {
			return fmt.Errorf("%s must be positive: got %v", name, v)
		}
	}
	if c.HeaterEfficiency <= 0 || c.HeaterEfficiency > 1 {
		return fmt.Errorf("heater_efficiency must be in (0, 1]: got %v", c.HeaterEfficiency)
	}
	if c.BubbleFlashLevelPct <= 0 || c.BubbleFlashLevelPct > 100 {
		return fmt.Errorf("bubble_flash_level_pct must be in (0, 100]: got %v", c.BubbleFlashLevelPct)
	}
	if c.HeaterCutoffLevelPct < 0 || c.HeaterCutoffLevelPct >= 100 {
		return fmt.Errorf("heater_cutoff_level_pct must be in [0, 100): got %v", c.HeaterCutoffLevelPct)
	}
	return nil
}

// GalPerPct converts level percent to gallons.
func (c VesselConfig) GalPerPct() float64 {
	return c.VolumeFt3 * constants.GalPerFt3 / 100
}

// Vessel advances pressurizer vessel state. Stateless; evolving state lives
// in models.PressurizerState.
type Vessel struct {
	cfg VesselConfig
}

// NewVessel creates a vessel model.
func NewVessel(cfg VesselConfig) *Vessel {
	return &Vessel{cfg: cfg}
}

// Config returns the vessel parameters.
func (v *Vessel) Config() VesselConfig { return v.cfg }

// InitialState returns a water-solid vessel at the given temperature.
func (v *Vessel) InitialState(tempF float64) models.PressurizerState {
	return models.PressurizerState{
		TempF:    tempF,
		LevelPct: 100,
	}
}

// StepInputs are the flows and heat applied to the vessel over one tick.
// SurgeGPM is net flow from the RCS into the vessel: CVCS mismatch plus
// thermal expansion insurge, negative on outsurge.
type StepInputs struct {
	HeaterBTUHr     float64
	SprayGPM        float64
	SprayTempF      float64
	SurgeGPM        float64
	SurgeTempF      float64
	ReliefLbmHr     float64
	RCSPressurePsig float64
	TimeHr          float64
	DtHr            float64
}

// Step advances temperature, level, and the bubble latch over one tick.
//
// Water-solid, level holds at 100 and the bubble check runs against the
// CVCS-held pressure; when liquid reaches saturation the bubble latches
// (one-way), level flashes down, and from then on the caller derives primary
// pressure from the liquid temperature via the saturation curve.
func (v *Vessel) Step(s *models.PressurizerState, in StepInputs) {
	cfg := &v.cfg
	cp := constants.CpWaterBTULbF

	level := s.LevelPct
	waterMass := level / 100 * cfg.WaterMassFullLbm
	if min := 0.05 * cfg.WaterMassFullLbm; waterMass < min {
		waterMass = min
	}
	capBTUPerF := waterMass*cp + cfg.MetalBTUPerF

	q := in.HeaterBTUHr - cfg.AmbientLossBTUHr
	if in.SprayGPM > 0 {
		m := in.SprayGPM * constants.MinutesPerHr * satprops.LbmPerGal(in.SprayTempF)
		q -= m * cp * (s.TempF - in.SprayTempF)
	}
	if in.SurgeGPM > 0 {
		m := in.SurgeGPM * constants.MinutesPerHr * satprops.LbmPerGal(in.SurgeTempF)
		q -= m * cp * (s.TempF - in.SurgeTempF)
	}
	if in.ReliefLbmHr > 0 {
		q -= in.ReliefLbmHr * satprops.HfgFromPsig(in.RCSPressurePsig)
	}

	s.TempF += q * in.DtHr / capBTUPerF

	if !s.BubbleFormed {
		s.LevelPct = 100
		if s.TempF >= satprops.TsatFromPsig(in.RCSPressurePsig) {
			s.BubbleFormed = true
			s.BubbleFormedHr = in.TimeHr
			s.LevelPct = cfg.BubbleFlashLevelPct
		}
		return
	}

	// With a bubble, level follows the volume ledger.
	dGal := (in.SurgeGPM + in.SprayGPM) * constants.MinutesPerHr * in.DtHr
	dGal -= in.ReliefLbmHr * in.DtHr / satprops.LbmPerGal(s.TempF)
	s.LevelPct = clamp(s.LevelPct+dGal/v.cfg.GalPerPct(), 0, 100)
}

// PressurePsig derives primary pressure once the bubble exists. Callers keep
// using the CVCS-held value before that.
func (v *Vessel) PressurePsig(s *models.PressurizerState) (float64, bool) {
	if !s.BubbleFormed {
		return 0, false
	}
	return satprops.PsatPsig(s.TempF), true
}

// HeatersAllowed gates heater output on the low-level cutoff.
func (v *Vessel) HeatersAllowed(s *models.PressurizerState) bool {
	return s.LevelPct > v.cfg.HeaterCutoffLevelPct
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
