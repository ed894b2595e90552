// Package steamdump implements the condenser steam-dump controller: the
// mode selector, the steam-pressure PI and the two Tavg sub-controllers,
// the arming and blocking interlocks, the trip-open bistables, and the
// four-group valve sequencing. The controller owns every latched channel;
// the observable outputs land in models.DumpState each tick.
package steamdump

import (
	"fmt"
	"math"

	"github.com/criticalsim/heatup/internal/bistable"
	"github.com/criticalsim/heatup/internal/constants"
	"github.com/criticalsim/heatup/internal/models"
)

// Config holds the steam-dump controller setpoints.
type Config struct {
	// SpanPsi is the steam-pressure proportional span: full demand at
	// setpoint + SpanPsi.
	SpanPsi float64 `yaml:"span_psi"`

	// KiPerHr is the steam-pressure integral gain in spans per hour.
	KiPerHr float64 `yaml:"ki_per_hr"`

	// NoLoadTavgF is the turbine-trip controller reference.
	NoLoadTavgF float64 `yaml:"no_load_tavg_f"`

	// TTSpanF is the turbine-trip proportional span. No deadband.
	TTSpanF float64 `yaml:"tt_span_f"`

	// LOLDeadbandF and LOLSpanF shape the loss-of-load controller: dead
	// below the deadband, full at deadband + span.
	LOLDeadbandF float64 `yaml:"lol_deadband_f"`
	LOLSpanF     float64 `yaml:"lol_span_f"`

	// C7LoadStepPct is the turbine load drop between ticks that seals in
	// the loss-of-load arming.
	C7LoadStepPct float64 `yaml:"c7_load_step_pct"`

	// P-12 low-low Tavg interlock thresholds.
	P12BlockF float64 `yaml:"p12_block_f"`
	P12ClearF float64 `yaml:"p12_clear_f"`

	// SG low-low level block: any generator below LowLowLevelPct for
	// LowLowHoldHr continuously.
	LowLowLevelPct float64 `yaml:"low_low_level_pct"`
	LowLowHoldHr   float64 `yaml:"low_low_hold_hr"`

	// Trip-open thresholds on controller error. High trips groups 1-2,
	// HighHigh trips groups 3-4; each sub-controller has its own pair.
	LOLHighTripF     float64 `yaml:"lol_high_trip_f"`
	LOLHighHighTripF float64 `yaml:"lol_high_high_trip_f"`
	TTHighTripF      float64 `yaml:"tt_high_trip_f"`
	TTHighHighTripF  float64 `yaml:"tt_high_high_trip_f"`

	// TripHysteresisF is the reset margin below each trip threshold.
	TripHysteresisF float64 `yaml:"trip_hysteresis_f"`

	// DemandTauHr low-pass filters the modulating demand. The filter uses an
	// exact exponential step, so its response does not depend on the
	// timestep; trip-open channels bypass it.
	DemandTauHr float64 `yaml:"demand_tau_hr"`

	// Stroke times for full valve travel.
	ModStrokeSec  float64 `yaml:"mod_stroke_sec"`
	TripStrokeSec float64 `yaml:"trip_stroke_sec"`
}

// DefaultConfig returns the standard 4-loop condenser dump lineup.
func DefaultConfig() Config {
	return Config{
		SpanPsi:          100,
		KiPerHr:          2.0,
		NoLoadTavgF:      constants.NoLoadTavgF,
		TTSpanF:          15,
		LOLDeadbandF:     5,
		LOLSpanF:         12,
		C7LoadStepPct:    10,
		P12BlockF:        553,
		P12ClearF:        555,
		LowLowLevelPct:   17,
		LowLowHoldHr:     5.0 / constants.MinutesPerHr,
		LOLHighTripF:     14,
		LOLHighHighTripF: 19,
		TTHighTripF:      10,
		TTHighHighTripF:  16,
		TripHysteresisF:  2,
		DemandTauHr:      0.1,
		ModStrokeSec:     20,
		TripStrokeSec:    3,
	}
}

// Validate checks span, threshold, and stroke ordering.
func (c Config) Validate() error {
	for name, v := range map[string]float64{
		"span_psi":         c.SpanPsi,
		"ki_per_hr":        c.KiPerHr,
		"tt_span_f":        c.TTSpanF,
		"lol_span_f":       c.LOLSpanF,
		"c7_load_step_pct": c.C7LoadStepPct,
		"demand_tau_hr":    c.DemandTauHr,
		"mod_stroke_sec":   c.ModStrokeSec,
		"trip_stroke_sec":  c.TripStrokeSec,
	} {
		if v <= 0 {
			return fmt.Errorf("%s must be positive: got %v", name, v)
		}
	}
	if c.LOLDeadbandF < 0 {
		return fmt.Errorf("lol_deadband_f must be non-negative: got %v", c.LOLDeadbandF)
	}
	if c.P12BlockF >= c.P12ClearF {
		return fmt.Errorf("p12_block_f (%v) must be below p12_clear_f (%v)", c.P12BlockF, c.P12ClearF)
	}
	if c.LowLowLevelPct <= 0 || c.LowLowLevelPct >= 100 {
		return fmt.Errorf("low_low_level_pct must be in (0, 100): got %v", c.LowLowLevelPct)
	}
	if c.LowLowHoldHr < 0 {
		return fmt.Errorf("low_low_hold_hr must be non-negative: got %v", c.LowLowHoldHr)
	}
	if c.LOLHighTripF >= c.LOLHighHighTripF {
		return fmt.Errorf("lol_high_trip_f (%v) must be below lol_high_high_trip_f (%v)", c.LOLHighTripF, c.LOLHighHighTripF)
	}
	if c.TTHighTripF >= c.TTHighHighTripF {
		return fmt.Errorf("tt_high_trip_f (%v) must be below tt_high_high_trip_f (%v)", c.TTHighTripF, c.TTHighHighTripF)
	}
	if c.TripHysteresisF <= 0 || c.TripHysteresisF >= c.TTHighTripF {
		return fmt.Errorf("trip_hysteresis_f must be in (0, %v): got %v", c.TTHighTripF, c.TripHysteresisF)
	}
	return nil
}

// Inputs are the signals the controller reads each tick.
type Inputs struct {
	Mode               models.DumpMode
	HeaderPsig         float64
	SetpointPsig       float64
	TavgF              float64
	TrefF              float64
	TurbineTripped     bool
	TurbineLoadPct     float64
	CondenserAvailable bool
	P12Bypass          bool
	C7Reset            bool
	MinSGLevelPct      float64
	DtHr               float64
}

// Controller evaluates the steam-dump system. It owns the latched channels:
// the C-7 seal-in, the P-12 and trip-open bistables, the low-low qualifying
// timer, the PI integrator, and the previous turbine load sample.
type Controller struct {
	cfg Config

	c7     bistable.SealIn
	p12    bistable.Logic
	lowLow bistable.Delayed

	lolHigh     bistable.Logic
	lolHighHigh bistable.Logic
	ttHigh      bistable.Logic
	ttHighHigh  bistable.Logic

	integral float64
	filtered float64
	prevLoad float64
	haveLoad bool
}

// New creates a controller with all channels reset.
func New(cfg Config) *Controller {
	return &Controller{
		cfg:         cfg,
		p12:         bistable.Logic{TripAt: cfg.P12BlockF, ResetAt: cfg.P12ClearF},
		lowLow:      bistable.Delayed{HoldHr: cfg.LowLowHoldHr},
		lolHigh:     bistable.Logic{TripAt: cfg.LOLHighTripF, ResetAt: cfg.LOLHighTripF - cfg.TripHysteresisF, TripHigh: true},
		lolHighHigh: bistable.Logic{TripAt: cfg.LOLHighHighTripF, ResetAt: cfg.LOLHighHighTripF - cfg.TripHysteresisF, TripHigh: true},
		ttHigh:      bistable.Logic{TripAt: cfg.TTHighTripF, ResetAt: cfg.TTHighTripF - cfg.TripHysteresisF, TripHigh: true},
		ttHighHigh:  bistable.Logic{TripAt: cfg.TTHighHighTripF, ResetAt: cfg.TTHighHighTripF - cfg.TripHysteresisF, TripHigh: true},
	}
}

// Config returns the controller setpoints.
func (c *Controller) Config() Config { return c.cfg }

// Update runs one controller evaluation: interlocks, arming, demand, trip-open
// channels, and group sequencing. Valve positions are advanced separately by
// Slew so the caller controls where actuator integration sits in the tick.
func (c *Controller) Update(s *models.DumpState, in Inputs) {
	cfg := &c.cfg

	// Interlocks first. The blocks gate everything downstream.
	p12Blocked := c.p12.Update(in.TavgF)
	lowLowBlocked := c.lowLow.Update(in.MinSGLevelPct < cfg.LowLowLevelPct, in.DtHr)
	fullBlock := !in.CondenserAvailable || lowLowBlocked
	p12Full := p12Blocked && !in.P12Bypass

	// C-7 seals in on a qualifying load step and holds until operator reset.
	if in.C7Reset {
		c.c7.Reset()
	}
	qualifyingStep := c.haveLoad && c.prevLoad-in.TurbineLoadPct >= cfg.C7LoadStepPct
	c.c7.Update(qualifyingStep)
	c.prevLoad, c.haveLoad = in.TurbineLoadPct, true

	// C-8 tracks the turbine trip input directly.
	c8 := in.TurbineTripped

	armed := false
	demand := 0.0
	blocked := fullBlock || p12Full
	ttActive, lolActive := false, false
	var tavgErr float64

	switch in.Mode {
	case models.DumpModeSteamPressure:
		armed = true
		p := (in.HeaderPsig - in.SetpointPsig) / cfg.SpanPsi
		if !blocked {
			// Integrate unless the output is already saturated in the
			// direction the error is pushing.
			raw := p + c.integral
			if !(raw >= 1 && p > 0) && !(raw <= 0 && p < 0) {
				c.integral += p * cfg.KiPerHr * in.DtHr
			}
			demand = clamp(p+c.integral, 0, 1)
		}
	case models.DumpModeTavg:
		c.integral = 0
		armed = c8 || c.c7.Sealed()
		switch {
		case !armed || blocked:
		case c8:
			// Turbine-trip controller wins when both are armed.
			ttActive = true
			tavgErr = in.TavgF - cfg.NoLoadTavgF
			demand = clamp(tavgErr/cfg.TTSpanF, 0, 1)
		default:
			lolActive = true
			tavgErr = in.TavgF - in.TrefF
			demand = clamp((tavgErr-cfg.LOLDeadbandF)/cfg.LOLSpanF, 0, 1)
		}
	default:
		c.integral = 0
	}

	// Modulating demand is low-passed; a block or disarm forces it to zero
	// at once. Trip-open commands below never pass through the filter.
	if !armed || blocked {
		c.filtered = 0
	} else {
		c.filtered += (demand - c.filtered) * (1 - math.Exp(-in.DtHr/cfg.DemandTauHr))
	}
	demand = c.filtered

	// Trip-open channels follow the active sub-controller's error; the
	// inactive pair is held reset so a mode or arming change starts clean.
	updateOrReset(&c.ttHigh, ttActive, tavgErr)
	updateOrReset(&c.ttHighHigh, ttActive, tavgErr)
	updateOrReset(&c.lolHigh, lolActive, tavgErr)
	updateOrReset(&c.lolHighHigh, lolActive, tavgErr)
	tripOpen12 := c.ttHigh.Tripped() || c.lolHigh.Tripped()
	tripOpen34 := c.ttHighHigh.Tripped() || c.lolHighHigh.Tripped()

	// Sequencing: group i opens across its quarter of the demand range, so
	// a group starts opening only after the one before it is full open.
	var targets [models.DumpGroupCount]float64
	for i := range targets {
		targets[i] = clamp(float64(models.DumpGroupCount)*demand-float64(i), 0, 1)
	}
	if tripOpen12 {
		targets[0], targets[1] = 1, 1
	}
	if tripOpen34 {
		targets[2], targets[3] = 1, 1
	}

	// Blocks mask targets last. P-12 with the bypass leaves only group 1.
	switch {
	case !armed || fullBlock:
		targets = [models.DumpGroupCount]float64{}
	case p12Blocked:
		for i := 1; i < len(targets); i++ {
			targets[i] = 0
		}
		if !in.P12Bypass {
			targets[0] = 0
		}
	}

	s.Mode = in.Mode
	s.Demand = demand
	s.GroupTargets = targets
	s.TripOpen12 = tripOpen12
	s.TripOpen34 = tripOpen34
	s.C7Sealed = c.c7.Sealed()
	s.C8Armed = c8
	s.P12Blocked = p12Blocked
	s.LowLowBlocked = lowLowBlocked
	s.Bridge = bridgeState(armed, fullBlock, p12Full, targets)
}

// Slew advances valve positions toward their targets. Groups under a
// trip-open command travel at the trip stroke rate; everything else moves at
// the modulating rate.
func (c *Controller) Slew(s *models.DumpState, dtHr float64) {
	modStep := dtHr * constants.SecondsPerHr / c.cfg.ModStrokeSec
	tripStep := dtHr * constants.SecondsPerHr / c.cfg.TripStrokeSec

	for i := range s.GroupPositions {
		step := modStep
		if (i < 2 && s.TripOpen12) || (i >= 2 && s.TripOpen34) {
			step = tripStep
		}
		s.GroupPositions[i] = approach(s.GroupPositions[i], s.GroupTargets[i], step)
	}
}

func bridgeState(armed, fullBlock, p12Full bool, targets [models.DumpGroupCount]float64) models.BridgeState {
	if !armed || fullBlock || p12Full {
		return models.BridgeUnavailable
	}
	for _, t := range targets {
		if t > 0 {
			return models.BridgeModulating
		}
	}
	return models.BridgeArmedClosed
}

func updateOrReset(l *bistable.Logic, active bool, value float64) {
	if active {
		l.Update(value)
		return
	}
	l.Force(false)
}

func approach(pos, target, maxStep float64) float64 {
	switch {
	case pos < target:
		return min(pos+maxStep, target)
	case pos > target:
		return max(pos-maxStep, target)
	default:
		return pos
	}
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
