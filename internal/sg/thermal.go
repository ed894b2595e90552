package sg

import (
	"math"

	"github.com/criticalsim/heatup/internal/constants"
	"github.com/criticalsim/heatup/internal/models"
	"github.com/criticalsim/heatup/internal/satprops"
)

// water density in the hot operating band, used only for level bookkeeping.
const lbmPerGalHot = 6.2

// ThermalStep advances one generator's node temperatures over one tick.
//
// primaryTempF drives tube-bundle heat transfer into every node through the
// node's area fraction and effectiveness. steamDrawLbmHr is dump steam
// leaving the steam space (the stepper passes zero while subcooled); feedGPM
// and feedTempF are feedwater into the bottom node. The return value reports
// whether the stratified duty cap had to scale the step back.
//
// Every energy exchange carries a no-overshoot clamp: a node cannot cross
// the temperature driving it within a single tick, and an adjacent pair
// cannot swap past equalization. The update therefore stays monotone and
// stable at any validated timestep.
func (m *Model) ThermalStep(s *models.SGState, primaryTempF, steamDrawLbmHr, feedGPM, feedTempF, dtHr float64) bool {
	cfg := &m.cfg
	f := s.CirculationFactor
	uEff := lerp(cfg.StagnantU, cfg.CirculatingU, f)
	kEff := lerp(cfg.InterNodeCondBTUHrF, cfg.CirculationMixCondBTUHrF, f)

	// Primary-to-node duty.
	var qNet [models.SGNodeCount]float64
	var duty float64
	for i := range qNet {
		eEff := lerp(cfg.StagnantEffectiveness[i], 1.0, f)
		ua := uEff * cfg.HeatAreaFt2 * cfg.AreaFractions[i] * eEff
		q := ua * (primaryTempF - s.NodeTempsF[i])
		if qEq := m.mcp(i) * (primaryTempF - s.NodeTempsF[i]) / dtHr; math.Abs(q) > math.Abs(qEq) {
			q = qEq
		}
		qNet[i] = q
		duty += q
	}

	// The stagnant regime cannot physically move more than a few MW. Scale
	// back any parameterization that tries.
	capped := false
	if s.Phase == models.PhaseSubcooled {
		if capBTU := cfg.StratifiedDutyCapMW * constants.BTUPerHrPerMW; duty > capBTU {
			scale := capBTU / duty
			for i := range qNet {
				qNet[i] *= scale
			}
			duty = capBTU
			capped = true
		}
	}

	// Adjacent-node diffusive exchange, bounded so a pair cannot overshoot
	// equalization within the tick.
	for i := 0; i < models.SGNodeCount-1; i++ {
		dT := s.NodeTempsF[i] - s.NodeTempsF[i+1]
		q := kEff * dT
		reduced := m.mcp(i) * m.mcp(i+1) / (m.mcp(i) + m.mcp(i+1))
		if qEq := reduced * dT / dtHr; math.Abs(q) > math.Abs(qEq) {
			q = qEq
		}
		qNet[i] -= q
		qNet[i+1] += q
	}

	// Dump steam leaves through the steam space. Stagnant, only the top node
	// feeds it; with developed circulation the whole inventory does, weighted
	// by node mass. The weights sum to 1 at any ramp position.
	if steamDrawLbmHr > 0 {
		qDraw := steamDrawLbmHr * satprops.HfgFromPsig(s.PressurePsig)
		for i := range qNet {
			top := 0.0
			if i == 0 {
				top = 1.0
			}
			qNet[i] -= qDraw * lerp(top, cfg.MassFractions[i], f)
		}
	}

	// Feedwater enters at the bottom.
	feedLbmHr := feedGPM * constants.MinutesPerHr * constants.LbmPerGalCold
	if feedLbmHr > 0 {
		qNet[models.SGNodeCount-1] -= feedLbmHr * constants.CpWaterBTULbF *
			(s.NodeTempsF[models.SGNodeCount-1] - feedTempF)
	}

	for i := range s.NodeTempsF {
		s.NodeTempsF[i] += qNet[i] * dtHr / m.mcp(i)
	}
	m.clampNodes(s)

	// Circulation develops first-order after boiling onset. One-way.
	if s.Phase == models.PhaseSaturated {
		s.CirculationFactor = clamp(f+(1-f)*dtHr/cfg.CirculationTauHr, 0, 1)
	}

	// Level bookkeeping: feed in, steam out.
	feedGal := feedGPM * constants.MinutesPerHr * dtHr
	steamGal := steamDrawLbmHr * dtHr / lbmPerGalHot
	s.LevelPct = clamp(s.LevelPct+(feedGal-steamGal)/cfg.NRSpanGal*100, 0, 100)

	s.HeatDutyBTUHr = duty
	s.SteamFlowLbmHr = steamDrawLbmHr
	return capped
}

// clampNodes floors nodes at ambient and, while subcooled, caps them at the
// saturation temperature for the current secondary pressure so a node cannot
// run past boiling onset inside one tick.
func (m *Model) clampNodes(s *models.SGState) {
	var ceil float64 = math.MaxFloat64
	if s.Phase == models.PhaseSubcooled {
		ceil = satprops.TsatFromPsig(s.PressurePsig)
	}
	for i := range s.NodeTempsF {
		s.NodeTempsF[i] = clamp(s.NodeTempsF[i], m.cfg.AmbientTempF, ceil)
	}
}
