package sg

import (
	"github.com/criticalsim/heatup/internal/models"
	"github.com/criticalsim/heatup/internal/satprops"
)

// PressureStep derives secondary pressure from the node stack and handles the
// one-way phase transition at boiling onset.
//
// Subcooled, pressure is the nitrogen blanket plus a small thermal-expansion
// term; with the default 2 psig blanket the top node reaches saturation near
// 220 °F. Saturated, pressure is the saturation pressure of the top node,
// which adjoins the steam space; dumps pulling energy out walk the pressure
// back down the curve, but the phase never reverts.
func (m *Model) PressureStep(s *models.SGState, timeHr float64) {
	cfg := &m.cfg

	switch s.Phase {
	case models.PhaseSaturated:
		p := satprops.PsatPsig(s.TopTempF())
		if p < cfg.N2BlanketPsig {
			p = cfg.N2BlanketPsig
		}
		s.PressurePsig = p

	default:
		bulk := s.BulkTempF(cfg.MassFractions)
		p := cfg.N2BlanketPsig
		if over := bulk - cfg.LayupTempF; over > 0 {
			p += cfg.ExpansionPsiPerF * over
		}
		s.PressurePsig = p

		if s.TopTempF() >= satprops.TsatFromPsig(p) {
			s.Phase = models.PhaseSaturated
			s.BoilingOnsetHr = timeHr
		}
	}
}
