package models

// Phase is the thermodynamic regime of a steam generator secondary.
type Phase string

const (
	// PhaseSubcooled covers wet layup through the stratified heatup: liquid
	// secondary under the nitrogen blanket, no steam space coupling.
	PhaseSubcooled Phase = "subcooled"

	// PhaseSaturated begins at boiling onset and never reverts. Pressure rides
	// the saturation curve from here on.
	PhaseSaturated Phase = "saturated"
)

// StartupState is the plant-level startup ladder. Classification is a pure
// function of observables; see the startup package.
type StartupState string

const (
	StartupS0  StartupState = "S0"  // cold shutdown, RHR cooling
	StartupS1  StartupState = "S1"  // RCPs running, water-solid
	StartupS2  StartupState = "S2"  // bubble drawn, still cold
	StartupS3a StartupState = "S3a" // heatup 200-220 °F
	StartupS3b StartupState = "S3b" // heatup 220-350 °F
	StartupS4  StartupState = "S4"  // RHR isolated, heatup above 350 °F
	StartupS5  StartupState = "S5"  // hot standby
)

// Rank orders startup states for highest-wins comparisons.
func (s StartupState) Rank() int {
	switch s {
	case StartupS1:
		return 1
	case StartupS2:
		return 2
	case StartupS3a:
		return 3
	case StartupS3b:
		return 4
	case StartupS4:
		return 5
	case StartupS5:
		return 6
	default:
		return 0
	}
}

// SGLadderState is the per-generator secondary-side ladder.
type SGLadderState string

const (
	SGLadder0 SGLadderState = "SG0" // drained / ambient
	SGLadder1 SGLadderState = "SG1" // wet layup
	SGLadder2 SGLadderState = "SG2" // heating, subcooled
	SGLadder3 SGLadderState = "SG3" // boiling onset
	SGLadder4 SGLadderState = "SG4" // steaming, pressure rising
	SGLadder5 SGLadderState = "SG5" // at no-load pressure
)

// Rank orders SG ladder states; the lagging generator gates the plant.
func (s SGLadderState) Rank() int {
	switch s {
	case SGLadder1:
		return 1
	case SGLadder2:
		return 2
	case SGLadder3:
		return 3
	case SGLadder4:
		return 4
	case SGLadder5:
		return 5
	default:
		return 0
	}
}

// DumpMode is the steam-dump mode selector position.
type DumpMode string

const (
	DumpModeOff           DumpMode = "off"
	DumpModeSteamPressure DumpMode = "steam-pressure"
	DumpModeTavg          DumpMode = "tavg"
)

// BridgeState summarizes steam-dump availability for displays and tests.
type BridgeState string

const (
	// BridgeUnavailable: not armed, or an interlock is blocking.
	BridgeUnavailable BridgeState = "unavailable"

	// BridgeArmedClosed: armed with every valve target at zero.
	BridgeArmedClosed BridgeState = "armed-closed"

	// BridgeModulating: armed with at least one nonzero valve target.
	BridgeModulating BridgeState = "modulating"
)

// SGNodeCount is the number of stratification nodes per steam generator,
// index 0 at the top of the bundle.
const SGNodeCount = 5

// DumpGroupCount is the number of steam-dump valve groups.
const DumpGroupCount = 4

// SGState is the observable state of one steam generator secondary.
type SGState struct {
	// NodeTempsF are the stratification node temperatures, top first.
	NodeTempsF [SGNodeCount]float64 `json:"node_temps_f"`

	// PressurePsig is the secondary pressure.
	PressurePsig float64 `json:"pressure_psig"`

	// Phase is subcooled until boiling onset, saturated after.
	Phase Phase `json:"phase"`

	// CirculationFactor ramps 0 to 1 after boiling onset as bulk circulation
	// develops. It blends heat transfer and mixing between the stagnant and
	// circulating values; there is no discrete circulation flag.
	CirculationFactor float64 `json:"circulation_factor"`

	// LevelPct is the narrow-range level.
	LevelPct float64 `json:"level_pct"`

	// BoilingOnsetHr is the simulation time of boiling onset. Meaningful only
	// once Phase is saturated.
	BoilingOnsetHr float64 `json:"boiling_onset_hr"`

	// HeatDutyBTUHr is the primary-to-secondary duty from the last thermal
	// step. Diagnostic.
	HeatDutyBTUHr float64 `json:"heat_duty_btu_hr"`

	// SteamFlowLbmHr is the dump steam draw from the last step. Diagnostic.
	SteamFlowLbmHr float64 `json:"steam_flow_lbm_hr"`

	// Ladder is the classified secondary-side startup state.
	Ladder SGLadderState `json:"ladder"`
}

// BulkTempF is the mass-weighted bulk temperature given the configured mass
// fractions.
func (s *SGState) BulkTempF(massFractions [SGNodeCount]float64) float64 {
	var t float64
	for i, m := range massFractions {
		t += m * s.NodeTempsF[i]
	}
	return t
}

// TopTempF is the top node temperature, which adjoins the steam space.
func (s *SGState) TopTempF() float64 { return s.NodeTempsF[0] }

// PressurizerState is the observable pressurizer state.
type PressurizerState struct {
	// TempF is the pressurizer liquid temperature.
	TempF float64 `json:"temp_f"`

	// LevelPct is indicated level; 100 while water-solid.
	LevelPct float64 `json:"level_pct"`

	// BubbleFormed latches when the steam bubble is drawn. One-way.
	BubbleFormed bool `json:"bubble_formed"`

	// BubbleFormedHr is the simulation time the bubble formed. Meaningful only
	// once BubbleFormed is set.
	BubbleFormedHr float64 `json:"bubble_formed_hr"`

	// ProportionalDuty is the proportional heater bank duty, 0-1.
	ProportionalDuty float64 `json:"proportional_duty"`

	// BackupOn reports the backup heater banks.
	BackupOn bool `json:"backup_on"`

	// SprayGPM is the applied spray flow.
	SprayGPM float64 `json:"spray_gpm"`

	// PORVOpen reports the two relief channels.
	PORVOpen [2]bool `json:"porv_open"`
}

// DumpState is the observable steam-dump controller state.
type DumpState struct {
	Mode   DumpMode    `json:"mode"`
	Bridge BridgeState `json:"bridge"`

	// Demand is the modulating output, 0-1, before group sequencing.
	Demand float64 `json:"demand"`

	// GroupTargets are the sequenced per-group targets, 0-1 each.
	GroupTargets [DumpGroupCount]float64 `json:"group_targets"`

	// GroupPositions are the actual valve positions after stroke-rate limits.
	GroupPositions [DumpGroupCount]float64 `json:"group_positions"`

	// TripOpen12 and TripOpen34 report the trip-open channels.
	TripOpen12 bool `json:"trip_open_12"`
	TripOpen34 bool `json:"trip_open_34"`

	C7Sealed      bool `json:"c7_sealed"`
	C8Armed       bool `json:"c8_armed"`
	P12Blocked    bool `json:"p12_blocked"`
	LowLowBlocked bool `json:"low_low_blocked"`
}

// PlantState is the complete observable plant state at one tick.
type PlantState struct {
	TimeHr float64 `json:"time_hr"`
	Step   int     `json:"step"`

	// TavgF is the RCS average coolant temperature. With no power and full
	// flow, hot and cold legs read the same.
	TavgF float64 `json:"tavg_f"`

	// RCSPressurePsig is the primary pressure: CVCS-held while water-solid,
	// saturation-held by the pressurizer after the bubble is drawn.
	RCSPressurePsig float64 `json:"rcs_pressure_psig"`

	// HeatupRateFHr is the observed dTavg/dt. Diagnostic.
	HeatupRateFHr float64 `json:"heatup_rate_f_hr"`

	RCPsRunning int  `json:"rcps_running"`
	RHRIsolated bool `json:"rhr_isolated"`

	Pzr PressurizerState `json:"pzr"`

	SGs []SGState `json:"sgs"`

	Dump DumpState `json:"dump"`

	// Startup is the classified plant ladder state.
	Startup StartupState `json:"startup"`

	// SGOverall is the minimum SG ladder state across generators.
	SGOverall SGLadderState `json:"sg_overall"`
}

// MeanSGPressurePsig is the steam header pressure seen by the dump controller.
func (p *PlantState) MeanSGPressurePsig() float64 {
	if len(p.SGs) == 0 {
		return 0
	}
	var sum float64
	for i := range p.SGs {
		sum += p.SGs[i].PressurePsig
	}
	return sum / float64(len(p.SGs))
}

// MinSGLevelPct is the lowest narrow-range level across generators.
func (p *PlantState) MinSGLevelPct() float64 {
	if len(p.SGs) == 0 {
		return 0
	}
	min := p.SGs[0].LevelPct
	for i := range p.SGs {
		if p.SGs[i].LevelPct < min {
			min = p.SGs[i].LevelPct
		}
	}
	return min
}

// Clone deep-copies the state so a caller can keep a trajectory without
// aliasing the stepper's working copy.
func (p *PlantState) Clone() PlantState {
	out := *p
	out.SGs = make([]SGState, len(p.SGs))
	copy(out.SGs, p.SGs)
	return out
}
