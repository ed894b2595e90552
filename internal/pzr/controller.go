package pzr

import (
	"fmt"

	"github.com/criticalsim/heatup/internal/bistable"
)

// ControlConfig holds the pressure-control setpoints. Defaults are the
// standard 4-loop lineup around the 2235 psig operating point.
type ControlConfig struct {
	// SetpointPsig is the master controller's pressure setpoint.
	SetpointPsig float64 `yaml:"setpoint_psig"`

	// Proportional heater band: full output at PropFullOnPsig, zero at
	// PropZeroPsig, linear between.
	PropFullOnPsig float64 `yaml:"prop_full_on_psig"`
	PropZeroPsig   float64 `yaml:"prop_zero_psig"`

	// Backup heater bistable band. Asymmetric about the setpoint and
	// narrower than the proportional band.
	BackupOnPsig  float64 `yaml:"backup_on_psig"`
	BackupOffPsig float64 `yaml:"backup_off_psig"`

	// Spray band: closed at SprayStartPsig, full at SprayFullPsig.
	SprayStartPsig float64 `yaml:"spray_start_psig"`
	SprayFullPsig  float64 `yaml:"spray_full_psig"`

	// SprayMaxGPM is the configured spray ceiling; the fraction from the
	// band scales it.
	SprayMaxGPM float64 `yaml:"spray_max_gpm"`

	// SprayMinRCPs is the pump count required for spray driving head.
	SprayMinRCPs int `yaml:"spray_min_rcps"`

	// PORV channel 1: fixed bistable with its own arming interlock.
	PORVOpenPsig   float64 `yaml:"porv_open_psig"`
	PORVClosePsig  float64 `yaml:"porv_close_psig"`
	PORVArmPsig    float64 `yaml:"porv_arm_psig"`
	PORVDisarmPsig float64 `yaml:"porv_disarm_psig"`

	// PORV channel 2: driven by master-controller pressure error, gated by
	// an independent arming interlock on the same thresholds.
	MasterErrOpenPsi  float64 `yaml:"master_err_open_psi"`
	MasterErrClosePsi float64 `yaml:"master_err_close_psi"`
}

// DefaultControlConfig returns the standard setpoint lineup.
func DefaultControlConfig() ControlConfig {
	return ControlConfig{
		SetpointPsig:      2235,
		PropFullOnPsig:    2220,
		PropZeroPsig:      2250,
		BackupOnPsig:      2210,
		BackupOffPsig:     2235,
		SprayStartPsig:    2260,
		SprayFullPsig:     2310,
		SprayMaxGPM:       840,
		SprayMinRCPs:      2,
		PORVOpenPsig:      2335,
		PORVClosePsig:     2315,
		PORVArmPsig:       2200,
		PORVDisarmPsig:    2185,
		MasterErrOpenPsi:  100,
		MasterErrClosePsi: 85,
	}
}

// Validate checks threshold ordering.
func (c ControlConfig) Validate() error {
	if c.PropFullOnPsig >= c.PropZeroPsig {
		return fmt.Errorf("prop_full_on_psig (%v) must be below prop_zero_psig (%v)", c.PropFullOnPsig, c.PropZeroPsig)
	}
	if c.BackupOnPsig >= c.BackupOffPsig {
		return fmt.Errorf("backup_on_psig (%v) must be below backup_off_psig (%v)", c.BackupOnPsig, c.BackupOffPsig)
	}
	if band, prop := c.BackupOffPsig-c.BackupOnPsig, c.PropZeroPsig-c.PropFullOnPsig; band >= prop {
		return fmt.Errorf("backup band (%v psi) must be narrower than the proportional band (%v psi)", band, prop)
	}
	if c.SprayStartPsig >= c.SprayFullPsig {
		return fmt.Errorf("spray_start_psig (%v) must be below spray_full_psig (%v)", c.SprayStartPsig, c.SprayFullPsig)
	}
	if c.SprayMaxGPM <= 0 {
		return fmt.Errorf("spray_max_gpm must be positive: got %v", c.SprayMaxGPM)
	}
	if c.PORVClosePsig >= c.PORVOpenPsig {
		return fmt.Errorf("porv_close_psig (%v) must be below porv_open_psig (%v)", c.PORVClosePsig, c.PORVOpenPsig)
	}
	if c.PORVDisarmPsig >= c.PORVArmPsig {
		return fmt.Errorf("porv_disarm_psig (%v) must be below porv_arm_psig (%v)", c.PORVDisarmPsig, c.PORVArmPsig)
	}
	if c.MasterErrClosePsi >= c.MasterErrOpenPsi {
		return fmt.Errorf("master_err_close_psi (%v) must be below master_err_open_psi (%v)", c.MasterErrClosePsi, c.MasterErrOpenPsi)
	}
	return nil
}

// Command is the controller output for one tick.
type Command struct {
	// ProportionalDuty is the proportional bank duty, 0-1.
	ProportionalDuty float64

	// BackupOn energizes the backup banks.
	BackupOn bool

	// SprayGPM is commanded spray flow after the ceiling and RCP gate.
	SprayGPM float64

	// PORVOpen reports both relief channels.
	PORVOpen [2]bool
}

// Controller evaluates the five pressure-control mechanisms. It owns the
// latched channel states; everything else is pure arithmetic on the inputs.
type Controller struct {
	cfg ControlConfig

	backup   bistable.Logic
	porv1    bistable.Logic
	porv1Arm bistable.Logic
	porv2    bistable.Logic
	porv2Arm bistable.Logic
}

// NewController creates a controller with all channels reset.
func NewController(cfg ControlConfig) *Controller {
	return &Controller{
		cfg:      cfg,
		backup:   bistable.Logic{TripAt: cfg.BackupOnPsig, ResetAt: cfg.BackupOffPsig},
		porv1:    bistable.Logic{TripAt: cfg.PORVOpenPsig, ResetAt: cfg.PORVClosePsig, TripHigh: true},
		porv1Arm: bistable.Logic{TripAt: cfg.PORVArmPsig, ResetAt: cfg.PORVDisarmPsig, TripHigh: true},
		porv2:    bistable.Logic{TripAt: cfg.MasterErrOpenPsi, ResetAt: cfg.MasterErrClosePsi, TripHigh: true},
		porv2Arm: bistable.Logic{TripAt: cfg.PORVArmPsig, ResetAt: cfg.PORVDisarmPsig, TripHigh: true},
	}
}

// Config returns the controller setpoints.
func (c *Controller) Config() ControlConfig { return c.cfg }

// Evaluate computes all five mechanisms from one pressure reading. Every
// channel updates every tick; interlocked channels still track their inputs
// so they respond correctly the tick an interlock clears.
func (c *Controller) Evaluate(pressurePsig float64, rcpsRunning int) Command {
	cfg := &c.cfg
	var cmd Command

	// Proportional heaters: full below the band, tapering to zero across it.
	cmd.ProportionalDuty = clamp((cfg.PropZeroPsig-pressurePsig)/(cfg.PropZeroPsig-cfg.PropFullOnPsig), 0, 1)

	// Backup banks: energize low, de-energize at setpoint.
	cmd.BackupOn = c.backup.Update(pressurePsig)

	// Spray: fraction of the configured ceiling, only with pump head.
	frac := clamp((pressurePsig-cfg.SprayStartPsig)/(cfg.SprayFullPsig-cfg.SprayStartPsig), 0, 1)
	if rcpsRunning >= cfg.SprayMinRCPs {
		cmd.SprayGPM = frac * cfg.SprayMaxGPM
	}

	// Channel 1: fixed bistable behind its arming interlock.
	armed1 := c.porv1Arm.Update(pressurePsig)
	cmd.PORVOpen[0] = c.porv1.Update(pressurePsig) && armed1

	// Channel 2: master-controller error behind an independent interlock.
	armed2 := c.porv2Arm.Update(pressurePsig)
	cmd.PORVOpen[1] = c.porv2.Update(pressurePsig-cfg.SetpointPsig) && armed2

	return cmd
}
