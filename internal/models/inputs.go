package models

// ExternalInputs are the per-tick boundary conditions the core consumes as
// plain values: RHR/CVCS, turbine and condenser signals, and operator switch
// positions. Scenario scripts or an external driver supply them; nothing in
// the core decides them.
type ExternalInputs struct {
	// RHRHeatRemovalBTUHr is residual heat removal duty taken out of the RCS.
	RHRHeatRemovalBTUHr float64 `json:"rhr_heat_removal_btu_hr"`

	// RHRIsolated is the operator's isolation of the RHR system.
	RHRIsolated bool `json:"rhr_isolated"`

	// CVCSTargetPsig is the letdown-controlled pressure target while the
	// plant is water-solid. Ignored once the bubble is drawn.
	CVCSTargetPsig float64 `json:"cvcs_target_psig"`

	// ChargingGPM and LetdownGPM are CVCS flows into and out of the RCS.
	ChargingGPM float64 `json:"charging_gpm"`
	LetdownGPM  float64 `json:"letdown_gpm"`

	// RCPsRunning is the number of reactor coolant pumps in service.
	RCPsRunning int `json:"rcps_running"`

	// DecayHeatBTUHr is core decay heat added to the RCS.
	DecayHeatBTUHr float64 `json:"decay_heat_btu_hr"`

	// TurbineTripped is the turbine trip signal (C-8 arming input).
	TurbineTripped bool `json:"turbine_tripped"`

	// TurbineLoadPct feeds C-7 load-step detection. Zero throughout a heatup.
	TurbineLoadPct float64 `json:"turbine_load_pct"`

	// CondenserAvailable is the C-9 interlock input.
	CondenserAvailable bool `json:"condenser_available"`

	// DumpMode is the steam-dump mode selector position.
	DumpMode DumpMode `json:"dump_mode"`

	// SteamPressureSetpointPsig is the operator's pressure-mode setpoint.
	SteamPressureSetpointPsig float64 `json:"steam_pressure_setpoint_psig"`

	// TavgRefF is the reference temperature for the loss-of-load controller.
	// At no load this is the no-load program value.
	TavgRefF float64 `json:"tavg_ref_f"`

	// P12Bypass restores valve group 1 under a P-12 block.
	P12Bypass bool `json:"p12_bypass"`

	// C7Reset clears the loss-of-load seal-in.
	C7Reset bool `json:"c7_reset"`

	// SGFeedGPM is feedwater flow per generator. Missing entries read as zero.
	SGFeedGPM []float64 `json:"sg_feed_gpm"`

	// SGFeedTempF is the feedwater temperature.
	SGFeedTempF float64 `json:"sg_feed_temp_f"`
}
