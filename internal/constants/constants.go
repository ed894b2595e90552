// Package constants provides named unit conversions and shared plant constants
// used throughout the heatup codebase. This centralizes magic numbers for
// better maintainability and documentation.
package constants

// Unit conversions
const (
	// BTUPerHrPerMW converts megawatts to BTU/hr.
	BTUPerHrPerMW = 3.412142e6

	// BTUPerHrPerKW converts kilowatts to BTU/hr.
	BTUPerHrPerKW = 3412.142

	// PsiaOffset converts between gauge and absolute pressure (psia = psig + offset).
	PsiaOffset = 14.696

	// GalPerFt3 converts cubic feet to US gallons.
	GalPerFt3 = 7.48052

	// MinutesPerHr is used when config values are quoted in minutes.
	MinutesPerHr = 60.0

	// SecondsPerHr is used when valve stroke times are quoted in seconds.
	SecondsPerHr = 3600.0
)

// Water properties used by the lumped energy balances. The simulation carries
// a constant specific heat; density variation enters only through the surge
// expansion table in the stepper.
const (
	// CpWaterBTULbF is the specific heat of water, BTU/lbm-°F.
	CpWaterBTULbF = 1.0

	// LbmPerGalCold is the mass of a gallon of cold water.
	LbmPerGalCold = 8.33
)

// Simulation step bounds
const (
	// DefaultDtHr is the default fixed timestep, 10 seconds.
	DefaultDtHr = 1.0 / 360.0

	// MaxDtHr is the largest timestep Validate accepts. Coarser steps make the
	// explicit node updates visibly lossy even with the no-overshoot clamp.
	MaxDtHr = 1.0 / 60.0

	// DefaultMaxSteps bounds a single Run call regardless of duration.
	DefaultMaxSteps = 200000
)

// Plant reference values shared by more than one package. Values that belong
// to a single controller live in that controller's Config instead.
const (
	// NoLoadTavgF is the no-load programmed average coolant temperature.
	NoLoadTavgF = 557.0

	// NoLoadSGPressurePsig is the steam-dump pressure-mode setpoint at no load.
	NoLoadSGPressurePsig = 1092.0

	// OperatingPressurePsig is the normal RCS operating pressure.
	OperatingPressurePsig = 2235.0
)
