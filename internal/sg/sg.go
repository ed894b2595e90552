// Package sg models one steam generator secondary during plant heatup: a
// five-node stratified thermal model and the pressure/phase model layered on
// it.
//
// While the secondary is stagnant the tube bundle heats the top of the
// downcomer inventory far more effectively than the bottom, so the node
// stack develops the documented thermocline: top node tracking the primary
// within a few degrees, bottom node cold for hours. Boiling onset switches
// the pressure model onto the saturation curve and starts a one-way
// circulation ramp that blends heat transfer and inter-node mixing from the
// stagnant values to the circulating ones. There is no discrete circulation
// flag; the ramp is what keeps heat duty bounded through onset.
package sg

import (
	"fmt"
	"math"

	"github.com/criticalsim/heatup/internal/constants"
	"github.com/criticalsim/heatup/internal/models"
)

// Config holds the per-generator model parameters. Defaults describe a
// Westinghouse model-F generator in wet layup.
type Config struct {
	// AreaFractions apportion tube-bundle heat transfer area to nodes, top
	// first. Must sum to 1.
	AreaFractions [models.SGNodeCount]float64 `yaml:"area_fractions"`

	// MassFractions apportion secondary water mass to nodes. Must sum to 1.
	MassFractions [models.SGNodeCount]float64 `yaml:"mass_fractions"`

	// StagnantEffectiveness derates each node's heat transfer while the
	// secondary is stagnant. Monotone non-increasing from top to bottom;
	// this is what produces stratification.
	StagnantEffectiveness [models.SGNodeCount]float64 `yaml:"stagnant_effectiveness"`

	// SecondaryMassLbm is the wet-layup secondary water inventory.
	SecondaryMassLbm float64 `yaml:"secondary_mass_lbm"`

	// HeatAreaFt2 is the total tube-bundle heat transfer area.
	HeatAreaFt2 float64 `yaml:"heat_area_ft2"`

	// StagnantU is the overall heat transfer coefficient with a stagnant
	// secondary, BTU/hr-ft²-°F.
	StagnantU float64 `yaml:"stagnant_u"`

	// CirculatingU is the coefficient with developed bulk circulation.
	CirculatingU float64 `yaml:"circulating_u"`

	// InterNodeCondBTUHrF is the diffusive conductance between adjacent
	// nodes while stagnant. Small: the thermocline erodes over hours.
	InterNodeCondBTUHrF float64 `yaml:"inter_node_cond_btu_hr_f"`

	// CirculationMixCondBTUHrF is the adjacent-node conductance with
	// developed circulation. Large: the inventory homogenizes quickly.
	CirculationMixCondBTUHrF float64 `yaml:"circulation_mix_cond_btu_hr_f"`

	// CirculationTauHr is the first-order time constant of the circulation
	// ramp after boiling onset.
	CirculationTauHr float64 `yaml:"circulation_tau_hr"`

	// StratifiedDutyCapMW bounds total primary-to-secondary duty while the
	// secondary is subcooled. Stagnant heat transfer physically cannot move
	// more than a few MW; the cap catches parameterizations that would.
	StratifiedDutyCapMW float64 `yaml:"stratified_duty_cap_mw"`

	// N2BlanketPsig is the wet-layup nitrogen blanket pressure.
	N2BlanketPsig float64 `yaml:"n2_blanket_psig"`

	// ExpansionPsiPerF is the small subcooled pressure rise per degree of
	// bulk temperature above layup.
	ExpansionPsiPerF float64 `yaml:"expansion_psi_per_f"`

	// LayupTempF is the wet-layup reference temperature.
	LayupTempF float64 `yaml:"layup_temp_f"`

	// AmbientTempF floors node temperatures.
	AmbientTempF float64 `yaml:"ambient_temp_f"`

	// NRSpanGal converts narrow-range level percent to gallons.
	NRSpanGal float64 `yaml:"nr_span_gal"`
}

// DefaultConfig returns the model-F wet-layup parameter set.
func DefaultConfig() Config {
	return Config{
		AreaFractions:            [models.SGNodeCount]float64{0.25, 0.22, 0.20, 0.18, 0.15},
		MassFractions:            [models.SGNodeCount]float64{0.12, 0.16, 0.20, 0.24, 0.28},
		StagnantEffectiveness:    [models.SGNodeCount]float64{1.0, 0.55, 0.28, 0.12, 0.05},
		SecondaryMassLbm:         165000,
		HeatAreaFt2:              55000,
		StagnantU:                5.0,
		CirculatingU:             180.0,
		InterNodeCondBTUHrF:      4000,
		CirculationMixCondBTUHrF: 2.0e6,
		CirculationTauHr:         1.0,
		StratifiedDutyCapMW:      6.0,
		N2BlanketPsig:            2.0,
		ExpansionPsiPerF:         0.01,
		LayupTempF:               100,
		AmbientTempF:             60,
		NRSpanGal:                12000,
	}
}

// Validate checks the parameter set.
func (c Config) Validate() error {
	if err := fractionsSumToOne("area_fractions", c.AreaFractions); err != nil {
		return err
	}
	if err := fractionsSumToOne("mass_fractions", c.MassFractions); err != nil {
		return err
	}
	for i, e := range c.StagnantEffectiveness {
		if e <= 0 || e > 1 {
			return fmt.Errorf("stagnant_effectiveness[%d] must be in (0, 1]: got %v", i, e)
		}
		if i > 0 && e > c.StagnantEffectiveness[i-1] {
			return fmt.Errorf("stagnant_effectiveness must be non-increasing top to bottom: index %d rises to %v", i, e)
		}
	}
	for name, v := range map[string]float64{
		"secondary_mass_lbm":            c.SecondaryMassLbm,
		"heat_area_ft2":                 c.HeatAreaFt2,
		"stagnant_u":                    c.StagnantU,
		"circulating_u":                 c.CirculatingU,
		"inter_node_cond_btu_hr_f":      c.InterNodeCondBTUHrF,
		"circulation_mix_cond_btu_hr_f": c.CirculationMixCondBTUHrF,
		"circulation_tau_hr":            c.CirculationTauHr,
		"stratified_duty_cap_mw":        c.StratifiedDutyCapMW,
		"nr_span_gal":                   c.NRSpanGal,
	} {
		if v <= 0 {
			return fmt.Errorf("%s must be positive: got %v", name, v)
		}
	}
	if c.CirculatingU <= c.StagnantU {
		return fmt.Errorf("circulating_u (%v) must exceed stagnant_u (%v)", c.CirculatingU, c.StagnantU)
	}
	if c.N2BlanketPsig < 0 {
		return fmt.Errorf("n2_blanket_psig must be non-negative: got %v", c.N2BlanketPsig)
	}
	return nil
}

func fractionsSumToOne(name string, f [models.SGNodeCount]float64) error {
	var sum float64
	for i, v := range f {
		if v <= 0 {
			return fmt.Errorf("%s[%d] must be positive: got %v", name, i, v)
		}
		sum += v
	}
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("%s must sum to 1: got %v", name, sum)
	}
	return nil
}

// Model advances steam generator state. It is stateless; all evolving state
// lives in models.SGState so the stepper owns the single source of truth.
type Model struct {
	cfg Config
}

// New creates a model with the given config.
func New(cfg Config) *Model {
	return &Model{cfg: cfg}
}

// Config returns the model parameters.
func (m *Model) Config() Config { return m.cfg }

// InitialState returns a wet-layup secondary at the layup temperature.
func (m *Model) InitialState() models.SGState {
	s := models.SGState{
		Phase:        models.PhaseSubcooled,
		PressurePsig: m.cfg.N2BlanketPsig,
		LevelPct:     100,
		Ladder:       models.SGLadder1,
	}
	for i := range s.NodeTempsF {
		s.NodeTempsF[i] = m.cfg.LayupTempF
	}
	return s
}

func lerp(a, b, f float64) float64 { return a + f*(b-a) }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// mcp returns a node's heat capacity in BTU/°F.
func (m *Model) mcp(i int) float64 {
	return m.cfg.MassFractions[i] * m.cfg.SecondaryMassLbm * constants.CpWaterBTULbF
}
