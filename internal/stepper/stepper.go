// Package stepper advances the whole plant by fixed timesteps. Each tick is
// a pure function of the prior state and that tick's external inputs, applied
// in a fixed order: secondary thermal and pressure, primary energy and
// pressurizer, startup classification, controllers, actuator integration,
// snapshot. Controller commands computed at the end of a tick act on the
// following tick's physics.
package stepper

import (
	"fmt"

	"github.com/criticalsim/heatup/internal/constants"
	"github.com/criticalsim/heatup/internal/models"
	"github.com/criticalsim/heatup/internal/pzr"
	"github.com/criticalsim/heatup/internal/satprops"
	"github.com/criticalsim/heatup/internal/sg"
	"github.com/criticalsim/heatup/internal/startup"
	"github.com/criticalsim/heatup/internal/steamdump"
)

// Config holds the loop parameters and every sub-model configuration.
type Config struct {
	// DtHr is the fixed timestep. Validated against constants.MaxDtHr.
	DtHr float64 `yaml:"dt_hr"`

	// MaxSteps and MaxHours bound a run regardless of what the input
	// source does.
	MaxSteps int     `yaml:"max_steps"`
	MaxHours float64 `yaml:"max_hours"`

	// SGCount is the number of steam generators.
	SGCount int `yaml:"sg_count"`

	// InitialTavgF seeds the cold-shutdown coolant temperature.
	InitialTavgF float64 `yaml:"initial_tavg_f"`

	// InitialRCSPressurePsig seeds the water-solid CVCS-held pressure.
	InitialRCSPressurePsig float64 `yaml:"initial_rcs_pressure_psig"`

	// RCSHeatCapacityBTUPerF lumps coolant and loop metal.
	RCSHeatCapacityBTUPerF float64 `yaml:"rcs_heat_capacity_btu_per_f"`

	// RCPHeatMW is pump heat per running RCP.
	RCPHeatMW float64 `yaml:"rcp_heat_mw"`

	// AmbientLossBTUHr is standing loop heat loss.
	AmbientLossBTUHr float64 `yaml:"ambient_loss_btu_hr"`

	// RCSVolumeGal sizes the thermal-expansion surge into the pressurizer.
	RCSVolumeGal float64 `yaml:"rcs_volume_gal"`

	// WaterSolidTauHr is the CVCS pressure-approach time constant.
	WaterSolidTauHr float64 `yaml:"water_solid_tau_hr"`

	// DumpCapacityLbmHr is total condenser dump flow with all groups full
	// open at no-load header pressure. Capacity scales down linearly with
	// absolute header pressure below that.
	DumpCapacityLbmHr float64 `yaml:"dump_capacity_lbm_hr"`

	SG      sg.Config         `yaml:"sg"`
	Vessel  pzr.VesselConfig  `yaml:"vessel"`
	Control pzr.ControlConfig `yaml:"control"`
	Dump    steamdump.Config  `yaml:"dump"`
	Startup startup.Config    `yaml:"startup"`
}

// DefaultConfig returns the 4-loop plant lineup.
func DefaultConfig() Config {
	return Config{
		DtHr:                   constants.DefaultDtHr,
		MaxSteps:               constants.DefaultMaxSteps,
		MaxHours:               30,
		SGCount:                4,
		InitialTavgF:           160,
		InitialRCSPressurePsig: 325,
		RCSHeatCapacityBTUPerF: 1.6e6,
		RCPHeatMW:              5.25,
		AmbientLossBTUHr:       1.5e6,
		RCSVolumeGal:           86000,
		WaterSolidTauHr:        0.05,
		DumpCapacityLbmHr:      6.0e6,
		SG:                     sg.DefaultConfig(),
		Vessel:                 pzr.DefaultVesselConfig(),
		Control:                pzr.DefaultControlConfig(),
		Dump:                   steamdump.DefaultConfig(),
		Startup:                startup.DefaultConfig(),
	}
}

// Validate checks loop parameters and every sub-model configuration.
func (c Config) Validate() error {
	if c.DtHr <= 0 || c.DtHr > constants.MaxDtHr {
		return fmt.Errorf("dt_hr must be in (0, %v]: got %v", constants.MaxDtHr, c.DtHr)
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("max_steps must be positive: got %d", c.MaxSteps)
	}
	if c.MaxHours <= 0 {
		return fmt.Errorf("max_hours must be positive: got %v", c.MaxHours)
	}
	if c.SGCount < 1 {
		return fmt.Errorf("sg_count must be at least 1: got %d", c.SGCount)
	}
	if c.InitialTavgF < c.SG.AmbientTempF {
		return fmt.Errorf("initial_tavg_f (%v) must not be below ambient (%v)", c.InitialTavgF, c.SG.AmbientTempF)
	}
	for name, v := range map[string]float64{
		"rcs_heat_capacity_btu_per_f": c.RCSHeatCapacityBTUPerF,
		"rcs_volume_gal":              c.RCSVolumeGal,
		"water_solid_tau_hr":          c.WaterSolidTauHr,
		"dump_capacity_lbm_hr":        c.DumpCapacityLbmHr,
	} {
		if v <= 0 {
			return fmt.Errorf("%s must be positive: got %v", name, v)
		}
	}
	if c.RCPHeatMW < 0 {
		return fmt.Errorf("rcp_heat_mw must be non-negative: got %v", c.RCPHeatMW)
	}
	if c.AmbientLossBTUHr < 0 {
		return fmt.Errorf("ambient_loss_btu_hr must be non-negative: got %v", c.AmbientLossBTUHr)
	}
	if err := c.SG.Validate(); err != nil {
		return fmt.Errorf("sg: %w", err)
	}
	if err := c.Vessel.Validate(); err != nil {
		return fmt.Errorf("vessel: %w", err)
	}
	if err := c.Control.Validate(); err != nil {
		return fmt.Errorf("control: %w", err)
	}
	if err := c.Dump.Validate(); err != nil {
		return fmt.Errorf("dump: %w", err)
	}
	if err := c.Startup.Validate(); err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	return nil
}

// Stepper advances plant state. All evolving state lives in
// models.PlantState and the controllers' latched channels, so two steppers
// built from the same config and fed the same inputs produce identical
// trajectories.
type Stepper struct {
	cfg Config

	sg         *sg.Model
	vessel     *pzr.Vessel
	pzrCtl     *pzr.Controller
	dump       *steamdump.Controller
	classifier *startup.Classifier
}

// New creates a stepper from a validated config.
func New(cfg Config) *Stepper {
	return &Stepper{
		cfg:        cfg,
		sg:         sg.New(cfg.SG),
		vessel:     pzr.NewVessel(cfg.Vessel),
		pzrCtl:     pzr.NewController(cfg.Control),
		dump:       steamdump.New(cfg.Dump),
		classifier: startup.New(cfg.Startup),
	}
}

// Config returns the stepper configuration.
func (st *Stepper) Config() Config { return st.cfg }

// InitialState returns the cold-shutdown plant: RCS at the initial
// temperature under CVCS pressure control, pressurizer water-solid, steam
// generators in wet layup, dumps off.
func (st *Stepper) InitialState() models.PlantState {
	cfg := &st.cfg
	s := models.PlantState{
		TavgF:           cfg.InitialTavgF,
		RCSPressurePsig: cfg.InitialRCSPressurePsig,
		Pzr:             st.vessel.InitialState(cfg.InitialTavgF),
		SGs:             make([]models.SGState, cfg.SGCount),
		Dump:            models.DumpState{Mode: models.DumpModeOff, Bridge: models.BridgeUnavailable},
	}
	for i := range s.SGs {
		s.SGs[i] = st.sg.InitialState()
	}
	st.classify(&s)
	return s
}

// Step advances the plant one tick and returns the resulting snapshot.
func (st *Stepper) Step(s *models.PlantState, in models.ExternalInputs) models.Snapshot {
	cfg := &st.cfg
	dt := cfg.DtHr

	// Secondary side first: node thermal then pressure, ascending SG index.
	// Steam draw and feed come from the previous tick's valve positions and
	// this tick's inputs.
	draws := st.steamDraws(s)
	var sgDuty float64
	for i := range s.SGs {
		g := &s.SGs[i]
		var feed float64
		if i < len(in.SGFeedGPM) {
			feed = in.SGFeedGPM[i]
		}
		st.sg.ThermalStep(g, s.TavgF, draws[i], feed, in.SGFeedTempF, dt)
		st.sg.PressureStep(g, s.TimeHr)
		sgDuty += g.HeatDutyBTUHr
	}

	// Primary energy balance. The expansion surge uses the previous tick's
	// observed heatup rate; a hot outsurge returns pressurizer water to the
	// loop.
	q := float64(in.RCPsRunning)*cfg.RCPHeatMW*constants.BTUPerHrPerMW +
		in.DecayHeatBTUHr - sgDuty - cfg.AmbientLossBTUHr
	if !in.RHRIsolated {
		q -= in.RHRHeatRemovalBTUHr
	}

	expansionGPM := cfg.RCSVolumeGal * betaPerF(s.TavgF) * s.HeatupRateFHr / constants.MinutesPerHr
	surgeGPM := in.ChargingGPM - in.LetdownGPM + expansionGPM
	if surgeGPM < 0 {
		outLbmHr := -surgeGPM * constants.MinutesPerHr * satprops.LbmPerGal(s.Pzr.TempF)
		q += outLbmHr * constants.CpWaterBTULbF * (s.Pzr.TempF - s.TavgF)
	}

	s.HeatupRateFHr = q / cfg.RCSHeatCapacityBTUPerF
	s.TavgF += s.HeatupRateFHr * dt

	// Water-solid pressure approaches the CVCS target; once the bubble
	// exists the pressurizer saturation curve takes over below.
	if !s.Pzr.BubbleFormed {
		alpha := dt / cfg.WaterSolidTauHr
		if alpha > 1 {
			alpha = 1
		}
		s.RCSPressurePsig += (in.CVCSTargetPsig - s.RCSPressurePsig) * alpha
	}

	st.vessel.Step(&s.Pzr, pzr.StepInputs{
		HeaterBTUHr:     st.heaterBTUHr(s),
		SprayGPM:        s.Pzr.SprayGPM,
		SprayTempF:      s.TavgF,
		SurgeGPM:        surgeGPM,
		SurgeTempF:      s.TavgF,
		ReliefLbmHr:     st.reliefLbmHr(s),
		RCSPressurePsig: s.RCSPressurePsig,
		TimeHr:          s.TimeHr,
		DtHr:            dt,
	})
	if p, ok := st.vessel.PressurePsig(&s.Pzr); ok {
		s.RCSPressurePsig = p
	}

	s.TimeHr += dt
	s.Step++
	s.RCPsRunning = in.RCPsRunning
	s.RHRIsolated = in.RHRIsolated

	st.classify(s)

	// Controllers read the tick's final process values; their commands act
	// on the next tick.
	cmd := st.pzrCtl.Evaluate(s.RCSPressurePsig, in.RCPsRunning)
	s.Pzr.ProportionalDuty = cmd.ProportionalDuty
	s.Pzr.BackupOn = cmd.BackupOn
	s.Pzr.SprayGPM = cmd.SprayGPM
	s.Pzr.PORVOpen = cmd.PORVOpen

	st.dump.Update(&s.Dump, steamdump.Inputs{
		Mode:               in.DumpMode,
		HeaderPsig:         s.MeanSGPressurePsig(),
		SetpointPsig:       in.SteamPressureSetpointPsig,
		TavgF:              s.TavgF,
		TrefF:              in.TavgRefF,
		TurbineTripped:     in.TurbineTripped,
		TurbineLoadPct:     in.TurbineLoadPct,
		CondenserAvailable: in.CondenserAvailable,
		P12Bypass:          in.P12Bypass,
		C7Reset:            in.C7Reset,
		MinSGLevelPct:      s.MinSGLevelPct(),
		DtHr:               dt,
	})
	st.dump.Slew(&s.Dump, dt)

	return models.Snapshot{PlantState: s.Clone(), Inputs: in}
}

// heaterBTUHr converts the previous tick's heater commands to heat input,
// honoring the low-level cutoff.
func (st *Stepper) heaterBTUHr(s *models.PlantState) float64 {
	if !st.vessel.HeatersAllowed(&s.Pzr) {
		return 0
	}
	vcfg := st.cfg.Vessel
	kw := s.Pzr.ProportionalDuty * vcfg.ProportionalKW
	if s.Pzr.BackupOn {
		kw += vcfg.BackupKW
	}
	return kw * vcfg.HeaterEfficiency * constants.BTUPerHrPerKW
}

// reliefLbmHr totals PORV flow from the previous tick's channel commands.
func (st *Stepper) reliefLbmHr(s *models.PlantState) float64 {
	var flow float64
	for _, open := range s.Pzr.PORVOpen {
		if open {
			flow += st.cfg.Vessel.PORVFlowLbmHr
		}
	}
	return flow
}

// steamDraws allocates the condenser dump flow across generators. Valve
// positions meter a common header; capacity scales with absolute header
// pressure, and only saturated generators feed the header.
func (st *Stepper) steamDraws(s *models.PlantState) []float64 {
	draws := make([]float64, len(s.SGs))

	var open float64
	for _, p := range s.Dump.GroupPositions {
		open += p
	}
	if open == 0 {
		return draws
	}

	saturated := 0
	for i := range s.SGs {
		if s.SGs[i].Phase == models.PhaseSaturated {
			saturated++
		}
	}
	if saturated == 0 {
		return draws
	}

	header := s.MeanSGPressurePsig() + constants.PsiaOffset
	scale := header / (constants.NoLoadSGPressurePsig + constants.PsiaOffset)
	if scale > 1 {
		scale = 1
	}
	total := st.cfg.DumpCapacityLbmHr * open / models.DumpGroupCount * scale

	per := total / float64(saturated)
	for i := range s.SGs {
		if s.SGs[i].Phase == models.PhaseSaturated {
			draws[i] = per
		}
	}
	return draws
}

// classify runs both startup ladders.
func (st *Stepper) classify(s *models.PlantState) {
	s.Startup = st.classifier.Plant(startup.PlantInputs{
		TavgF:           s.TavgF,
		RCSPressurePsig: s.RCSPressurePsig,
		BubbleFormed:    s.Pzr.BubbleFormed,
		RCPsRunning:     s.RCPsRunning,
		RHRIsolated:     s.RHRIsolated,
	})

	if len(s.SGs) == 0 {
		s.SGOverall = models.SGLadder0
		return
	}
	lowest := models.SGLadder5
	for i := range s.SGs {
		g := &s.SGs[i]
		g.Ladder = st.classifier.SG(startup.SGInputs{
			PressurePsig: g.PressurePsig,
			Saturated:    g.Phase == models.PhaseSaturated,
			BulkTempF:    g.BulkTempF(st.cfg.SG.MassFractions),
			LevelPct:     g.LevelPct,
		})
		if g.Ladder.Rank() < lowest.Rank() {
			lowest = g.Ladder
		}
	}
	s.SGOverall = lowest
}

// betaPerF is the volumetric expansion coefficient of the coolant, linear
// between anchors and clamped at the ends.
func betaPerF(tempF float64) float64 {
	anchors := [...]struct{ tF, beta float64 }{
		{100, 1.3e-4},
		{200, 2.2e-4},
		{300, 3.5e-4},
		{400, 5.2e-4},
		{500, 7.2e-4},
		{550, 8.0e-4},
	}
	if tempF <= anchors[0].tF {
		return anchors[0].beta
	}
	for i := 1; i < len(anchors); i++ {
		if tempF <= anchors[i].tF {
			lo, hi := anchors[i-1], anchors[i]
			f := (tempF - lo.tF) / (hi.tF - lo.tF)
			return lo.beta + f*(hi.beta-lo.beta)
		}
	}
	return anchors[len(anchors)-1].beta
}
