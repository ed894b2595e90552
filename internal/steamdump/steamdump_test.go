package steamdump

import (
	"math"
	"testing"

	"github.com/criticalsim/heatup/internal/models"
)

const dt360 = 1.0 / 360

// pressureInputs is a steam-pressure mode lineup with every interlock clear:
// condenser available and Tavg above the P-12 clear point.
func pressureInputs() Inputs {
	return Inputs{
		Mode:               models.DumpModeSteamPressure,
		SetpointPsig:       1092,
		TavgF:              557,
		CondenserAvailable: true,
		MinSGLevelPct:      60,
		DtHr:               dt360,
	}
}

// tavgInputs is a Tavg-mode lineup with every interlock clear and neither
// arming signal present.
func tavgInputs() Inputs {
	return Inputs{
		Mode:               models.DumpModeTavg,
		TavgF:              557,
		TrefF:              557,
		CondenserAvailable: true,
		MinSGLevelPct:      60,
		DtHr:               dt360,
	}
}

// settle holds the inputs for an hour so the demand filter converges.
func settle(c *Controller, s *models.DumpState, in Inputs) {
	for i := 0; i < 360; i++ {
		c.Update(s, in)
	}
}

func TestUpdate_OffModeIsUnavailable(t *testing.T) {
	c := New(DefaultConfig())
	var s models.DumpState

	in := pressureInputs()
	in.Mode = models.DumpModeOff
	in.HeaderPsig = 1300
	c.Update(&s, in)

	if s.Bridge != models.BridgeUnavailable {
		t.Errorf("bridge = %v, want unavailable with the selector off", s.Bridge)
	}
	if s.Demand != 0 {
		t.Errorf("demand = %v, want 0", s.Demand)
	}
	for i, tgt := range s.GroupTargets {
		if tgt != 0 {
			t.Errorf("group %d target = %v, want 0", i+1, tgt)
		}
	}
}

func TestUpdate_SteamPressureBelowSetpointHoldsClosed(t *testing.T) {
	c := New(DefaultConfig())
	var s models.DumpState

	in := pressureInputs()
	in.HeaderPsig = 400
	for i := 0; i < 720; i++ {
		c.Update(&s, in)
	}

	if s.Demand != 0 {
		t.Errorf("demand = %v, want 0 well below setpoint", s.Demand)
	}
	if s.Bridge != models.BridgeArmedClosed {
		t.Errorf("bridge = %v, want armed-closed", s.Bridge)
	}
}

func TestUpdate_SteamPressureIntegralAction(t *testing.T) {
	c := New(DefaultConfig())
	var s models.DumpState

	// Constant +10 psi error for one hour: proportional 0.1, integral
	// 0.1 * 2.0 * 1 hr = 0.2. The demand filter lags the ramp by
	// tau * slope = 0.02, so the output lands near 0.28.
	in := pressureInputs()
	in.HeaderPsig = 1102
	settle(c, &s, in)

	if math.Abs(s.Demand-0.28) > 0.01 {
		t.Errorf("demand after 1 hr at +10 psi = %v, want ~0.28", s.Demand)
	}
	if s.Bridge != models.BridgeModulating {
		t.Errorf("bridge = %v, want modulating", s.Bridge)
	}
}

func TestUpdate_SteamPressureNoWindupBelowSetpoint(t *testing.T) {
	c := New(DefaultConfig())
	var s models.DumpState

	// Hours far below setpoint must not bank negative integral.
	in := pressureInputs()
	in.HeaderPsig = 700
	for i := 0; i < 3600; i++ {
		c.Update(&s, in)
	}

	// Just past setpoint the response is proportional-scale; banked
	// integral either way would show up within a few ticks.
	in.HeaderPsig = 1098
	for i := 0; i < 20; i++ {
		c.Update(&s, in)
	}
	if s.Demand > 0.1 {
		t.Errorf("demand shortly after crossing setpoint = %v, want well under 0.1", s.Demand)
	}
}

func TestUpdate_TavgModeUnarmedIsUnavailable(t *testing.T) {
	c := New(DefaultConfig())
	var s models.DumpState

	in := tavgInputs()
	in.TavgF = 570
	c.Update(&s, in)

	if s.Bridge != models.BridgeUnavailable {
		t.Errorf("bridge = %v, want unavailable with neither C-7 nor C-8 armed", s.Bridge)
	}
	if s.Demand != 0 {
		t.Errorf("demand = %v, want 0", s.Demand)
	}
}

func TestUpdate_TurbineTripController(t *testing.T) {
	c := New(DefaultConfig())
	var s models.DumpState

	in := tavgInputs()
	in.TurbineTripped = true
	in.TavgF = 563.5
	settle(c, &s, in)

	if !s.C8Armed {
		t.Error("C-8 not armed on turbine trip")
	}
	// (563.5 - 557) / 15, no deadband.
	if math.Abs(s.Demand-6.5/15) > 0.005 {
		t.Errorf("demand = %v, want %v", s.Demand, 6.5/15)
	}
	wantTargets := []float64{1, 4*6.5/15 - 1, 0, 0}
	for i, want := range wantTargets {
		if math.Abs(s.GroupTargets[i]-want) > 0.02 {
			t.Errorf("group %d target = %v, want %v", i+1, s.GroupTargets[i], want)
		}
	}

	// Trip clears: C-8 drops out on its own.
	in.TurbineTripped = false
	c.Update(&s, in)
	if s.C8Armed || s.Bridge != models.BridgeUnavailable {
		t.Errorf("C-8 = %v, bridge = %v after trip cleared, want disarmed and unavailable", s.C8Armed, s.Bridge)
	}
	if s.Demand != 0 {
		t.Errorf("demand = %v after disarm, want forced 0", s.Demand)
	}
}

func TestUpdate_TurbineTripTripOpenChannels(t *testing.T) {
	c := New(DefaultConfig())
	var s models.DumpState

	in := tavgInputs()
	in.TurbineTripped = true

	steps := []struct {
		tavg   float64
		want12 bool
		want34 bool
	}{
		{565, false, false},   // err 8, below High at 10
		{567.5, true, false},  // err 10.5
		{572, true, false},    // err 15, below HighHigh at 16
		{573.5, true, true},   // err 16.5
		{569, true, false},    // err 12: HighHigh resets at 14
		{564.5, false, false}, // err 7.5: High resets at 8
	}
	for i, st := range steps {
		in.TavgF = st.tavg
		c.Update(&s, in)
		if s.TripOpen12 != st.want12 || s.TripOpen34 != st.want34 {
			t.Errorf("step %d at Tavg %v: trip-open = %v/%v, want %v/%v",
				i, st.tavg, s.TripOpen12, s.TripOpen34, st.want12, st.want34)
		}
	}
}

func TestUpdate_TripOpenForcesGroupsFull(t *testing.T) {
	c := New(DefaultConfig())
	var s models.DumpState

	in := tavgInputs()
	in.TurbineTripped = true
	in.TavgF = 568 // err 11: trips 1-2, modulated demand 0.733
	settle(c, &s, in)

	if !s.TripOpen12 {
		t.Fatal("groups 1-2 did not trip open at err 11")
	}
	if s.GroupTargets[0] != 1 || s.GroupTargets[1] != 1 {
		t.Errorf("tripped group targets = %v, want groups 1-2 full", s.GroupTargets)
	}
	// Groups 3-4 still follow the modulated sequence.
	if want := 4*11.0/15 - 2; math.Abs(s.GroupTargets[2]-want) > 0.01 {
		t.Errorf("group 3 target = %v, want %v", s.GroupTargets[2], want)
	}
}

func TestUpdate_C7SealInSurvivesLoadRecovery(t *testing.T) {
	c := New(DefaultConfig())
	var s models.DumpState

	in := tavgInputs()
	in.TavgF = 575
	in.TrefF = 557

	in.TurbineLoadPct = 100
	c.Update(&s, in)
	if s.C7Sealed {
		t.Fatal("C-7 sealed without a load step")
	}

	// 100 -> 85 between ticks qualifies at the 10 % threshold.
	in.TurbineLoadPct = 85
	c.Update(&s, in)
	if !s.C7Sealed {
		t.Fatal("C-7 did not seal on a 15 % load step")
	}
	// err 18, deadband 5, span 12: (18-5)/12 clamps to 1.
	settle(c, &s, in)
	if math.Abs(s.Demand-1) > 0.01 {
		t.Errorf("loss-of-load demand = %v, want ~1", s.Demand)
	}

	// Load recovers; the seal holds.
	in.TurbineLoadPct = 100
	c.Update(&s, in)
	if !s.C7Sealed {
		t.Error("C-7 dropped out on load recovery")
	}

	// Only the operator reset clears it.
	in.C7Reset = true
	c.Update(&s, in)
	if s.C7Sealed {
		t.Error("C-7 still sealed after operator reset")
	}
	if s.Bridge != models.BridgeUnavailable {
		t.Errorf("bridge = %v, want unavailable once disarmed", s.Bridge)
	}
}

func TestUpdate_LossOfLoadDeadband(t *testing.T) {
	c := New(DefaultConfig())
	var s models.DumpState

	in := tavgInputs()
	in.TrefF = 557
	in.TurbineLoadPct = 100
	c.Update(&s, in)
	in.TurbineLoadPct = 80
	c.Update(&s, in)
	if !s.C7Sealed {
		t.Fatal("C-7 did not seal")
	}

	tests := []struct {
		tavg float64
		want float64
	}{
		{558, 0},    // err 1, inside deadband
		{562, 0},    // err 5, at the deadband edge
		{565, 0.25}, // err 8: (8-5)/12
		{574, 1},    // err 17 clamps
	}
	for _, tt := range tests {
		in.TavgF = tt.tavg
		settle(c, &s, in)
		if math.Abs(s.Demand-tt.want) > 0.01 {
			t.Errorf("LOL demand at Tavg %v = %v, want %v", tt.tavg, s.Demand, tt.want)
		}
	}
}

func TestUpdate_TurbineTripWinsOverSealedC7(t *testing.T) {
	c := New(DefaultConfig())
	var s models.DumpState

	in := tavgInputs()
	in.TrefF = 540 // large LOL error available
	in.TurbineLoadPct = 100
	c.Update(&s, in)
	in.TurbineLoadPct = 0
	c.Update(&s, in)
	if !s.C7Sealed {
		t.Fatal("C-7 did not seal")
	}

	in.TurbineTripped = true
	in.TavgF = 560
	settle(c, &s, in)

	// TT formula: (560 - 557) / 15 = 0.2. The LOL formula against Tref 540
	// would saturate at 1, so 0.2 proves the turbine-trip controller won.
	if math.Abs(s.Demand-0.2) > 0.005 {
		t.Errorf("demand with both armed = %v, want turbine-trip value 0.2", s.Demand)
	}
}

func TestUpdate_P12BlocksAndBypassRestoresGroupOne(t *testing.T) {
	c := New(DefaultConfig())
	var s models.DumpState

	in := pressureInputs()
	in.HeaderPsig = 1130 // proportional 0.38
	in.TavgF = 540       // below the 553 block

	c.Update(&s, in)
	if !s.P12Blocked {
		t.Fatal("P-12 did not block at Tavg 540")
	}
	if s.Bridge != models.BridgeUnavailable {
		t.Errorf("bridge = %v, want unavailable under P-12", s.Bridge)
	}
	for i, tgt := range s.GroupTargets {
		if tgt != 0 {
			t.Errorf("group %d target = %v under P-12, want 0", i+1, tgt)
		}
	}

	// Bypass restores group 1 only, even with demand calling for more.
	in.P12Bypass = true
	settle(c, &s, in)
	if s.GroupTargets[0] == 0 {
		t.Error("group 1 target still 0 under P-12 bypass")
	}
	for i := 1; i < len(s.GroupTargets); i++ {
		if s.GroupTargets[i] != 0 {
			t.Errorf("group %d target = %v under bypass, want 0", i+1, s.GroupTargets[i])
		}
	}
	if s.Bridge != models.BridgeModulating {
		t.Errorf("bridge = %v, want modulating through the bypassed group", s.Bridge)
	}
}

func TestUpdate_P12Hysteresis(t *testing.T) {
	c := New(DefaultConfig())
	var s models.DumpState

	in := pressureInputs()
	in.HeaderPsig = 1092

	for _, step := range []struct {
		tavg    float64
		blocked bool
	}{
		{557, false},
		{552, true},
		{554, true}, // between block and clear: holds
		{555, false},
		{553, true},
	} {
		in.TavgF = step.tavg
		c.Update(&s, in)
		if s.P12Blocked != step.blocked {
			t.Errorf("P-12 at Tavg %v = %v, want %v", step.tavg, s.P12Blocked, step.blocked)
		}
	}
}

func TestUpdate_CondenserBlockFreezesIntegral(t *testing.T) {
	c := New(DefaultConfig())
	var s models.DumpState

	in := pressureInputs()
	in.HeaderPsig = 1102
	settle(c, &s, in)

	// Condenser drops out: everything closes, integral holds.
	in.CondenserAvailable = false
	settle(c, &s, in)
	if s.Demand != 0 || s.Bridge != models.BridgeUnavailable {
		t.Fatalf("demand = %v, bridge = %v with condenser lost, want 0 and unavailable", s.Demand, s.Bridge)
	}

	// After recovery the integral resumes from where it froze: one hour
	// before the outage plus one hour after gives 0.4 of banked integral
	// on top of the 0.1 proportional term.
	in.CondenserAvailable = true
	settle(c, &s, in)
	if math.Abs(s.Demand-0.48) > 0.01 {
		t.Errorf("demand after condenser recovery = %v, want ~0.48 with integral preserved", s.Demand)
	}
}

func TestUpdate_SGLowLowQualifyingTime(t *testing.T) {
	c := New(DefaultConfig())
	var s models.DumpState

	in := pressureInputs()
	in.HeaderPsig = 1102
	in.MinSGLevelPct = 12

	// 5 minutes is 30 ticks at 1/360 hr. One tick short: no block.
	for i := 0; i < 29; i++ {
		c.Update(&s, in)
	}
	if s.LowLowBlocked {
		t.Fatal("low-low blocked before the qualifying time")
	}

	c.Update(&s, in)
	c.Update(&s, in)
	if !s.LowLowBlocked {
		t.Fatal("low-low did not block after 5 minutes")
	}
	if s.Bridge != models.BridgeUnavailable {
		t.Errorf("bridge = %v, want unavailable under low-low block", s.Bridge)
	}

	// Level recovery clears the block and restarts the timer.
	in.MinSGLevelPct = 40
	c.Update(&s, in)
	if s.LowLowBlocked {
		t.Error("low-low block held after level recovery")
	}
}

func TestUpdate_SequencingLadder(t *testing.T) {
	c := New(DefaultConfig())
	var s models.DumpState

	// Demand 0.3 through the turbine-trip controller: err 4.5 F.
	in := tavgInputs()
	in.TurbineTripped = true
	in.TavgF = 561.5
	settle(c, &s, in)

	want := []float64{1, 0.2, 0, 0}
	for i, w := range want {
		if math.Abs(s.GroupTargets[i]-w) > 0.01 {
			t.Errorf("group %d target at demand 0.3 = %v, want %v", i+1, s.GroupTargets[i], w)
		}
	}
}

func TestSlew_ModulatingAndTripStrokes(t *testing.T) {
	c := New(DefaultConfig())

	// 10 s ticks against a 20 s modulating stroke: half travel per tick.
	s := models.DumpState{GroupTargets: [models.DumpGroupCount]float64{1, 0, 0, 0}}
	c.Slew(&s, dt360)
	if math.Abs(s.GroupPositions[0]-0.5) > 1e-9 {
		t.Errorf("modulating position after one tick = %v, want 0.5", s.GroupPositions[0])
	}
	c.Slew(&s, dt360)
	if s.GroupPositions[0] != 1 {
		t.Errorf("modulating position after two ticks = %v, want 1", s.GroupPositions[0])
	}

	// Trip stroke covers full travel inside one 10 s tick.
	s = models.DumpState{
		GroupTargets: [models.DumpGroupCount]float64{1, 1, 0, 0},
		TripOpen12:   true,
	}
	c.Slew(&s, dt360)
	if s.GroupPositions[0] != 1 || s.GroupPositions[1] != 1 {
		t.Errorf("tripped positions after one tick = %v, want full open", s.GroupPositions)
	}

	// Closing uses the modulating rate.
	s.TripOpen12 = false
	s.GroupTargets = [models.DumpGroupCount]float64{}
	c.Slew(&s, dt360)
	if math.Abs(s.GroupPositions[0]-0.5) > 1e-9 {
		t.Errorf("closing position after one tick = %v, want 0.5", s.GroupPositions[0])
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default ok", func(c *Config) {}, false},
		{"zero span", func(c *Config) { c.SpanPsi = 0 }, true},
		{"negative deadband", func(c *Config) { c.LOLDeadbandF = -1 }, true},
		{"p12 inverted", func(c *Config) { c.P12ClearF = 552 }, true},
		{"low-low out of range", func(c *Config) { c.LowLowLevelPct = 100 }, true},
		{"lol trips inverted", func(c *Config) { c.LOLHighTripF = 19 }, true},
		{"tt trips inverted", func(c *Config) { c.TTHighTripF = 16 }, true},
		{"hysteresis too wide", func(c *Config) { c.TripHysteresisF = 10 }, true},
		{"zero demand tau", func(c *Config) { c.DemandTauHr = 0 }, true},
		{"zero trip stroke", func(c *Config) { c.TripStrokeSec = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
