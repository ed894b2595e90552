// Package satprops provides saturation properties of water. Lookups
// interpolate linearly between steam-table anchor rows, which keeps every
// curve monotone. Over the secondary-side envelope, 14.696–1200 psia and
// 212–600 °F, anchor spacing holds error under 1 °F on temperature and 2 %
// on pressure and latent heat; the table continues to the critical point so
// the pressurizer saturation law works at primary operating pressure.
//
// Out-of-range inputs clamp to the table edges rather than erroring. The
// plant envelope never leaves the table, and a clamped answer at the edge is
// more useful to a running simulation than a fault.
package satprops

import "github.com/criticalsim/heatup/internal/constants"

// tableRow is one steam-table anchor: saturation pressure, the corresponding
// saturation temperature, and the latent heat of vaporization.
type tableRow struct {
	psia float64
	tF   float64
	hfg  float64
}

// saturation anchors, ASME steam tables, spacing chosen so linear
// interpolation stays inside the package error budget.
var table = []tableRow{
	{14.696, 212.00, 970.3},
	{20, 227.96, 960.1},
	{30, 250.33, 945.3},
	{40, 267.25, 933.7},
	{60, 292.71, 915.5},
	{80, 312.03, 901.1},
	{100, 327.82, 888.8},
	{120, 341.26, 877.9},
	{150, 358.42, 863.6},
	{200, 381.80, 843.0},
	{250, 400.96, 825.1},
	{300, 417.35, 809.0},
	{350, 431.73, 794.2},
	{400, 444.60, 780.5},
	{450, 456.28, 767.4},
	{500, 467.01, 755.0},
	{550, 476.94, 743.1},
	{600, 486.20, 731.6},
	{650, 494.89, 720.5},
	{700, 503.08, 709.7},
	{750, 510.84, 699.2},
	{800, 518.21, 688.9},
	{850, 525.24, 678.8},
	{900, 531.95, 668.8},
	{950, 538.39, 659.0},
	{1000, 544.58, 649.4},
	{1050, 550.53, 639.9},
	{1100, 556.28, 630.4},
	{1150, 561.82, 621.0},
	{1200, 567.19, 611.7},
	{1300, 577.46, 593.0},
	{1400, 587.10, 575.5},
	{1500, 596.23, 557.0},
	{1600, 604.90, 540.0},
	{1700, 613.15, 523.0},
	{1800, 621.03, 506.0},
	{1900, 628.58, 486.0},
	{2000, 635.82, 464.4},
	{2100, 642.76, 444.0},
	{2200, 649.45, 423.0},
	{2300, 655.89, 402.0},
	{2400, 662.11, 381.0},
	{2500, 668.11, 360.5},
	{2600, 673.91, 338.0},
	{2700, 679.53, 315.0},
	{2800, 684.96, 290.0},
	{2900, 690.22, 264.0},
	{3000, 695.33, 218.0},
	{3100, 700.28, 160.0},
	{3208.2, 705.44, 0.0},
}

// Table bounds. The certified error budget applies up to 1200 psia; beyond
// that the table serves the pressurizer saturation law.
const (
	MinPsia = 14.696
	MaxPsia = 3208.2
	MinTF   = 212.00
	MaxTF   = 705.44
)

// TsatF returns the saturation temperature in °F for a pressure in psia.
func TsatF(psia float64) float64 {
	i, frac := locatePressure(psia)
	return table[i].tF + frac*(table[i+1].tF-table[i].tF)
}

// HfgBTULb returns the latent heat of vaporization in BTU/lbm for a pressure
// in psia.
func HfgBTULb(psia float64) float64 {
	i, frac := locatePressure(psia)
	return table[i].hfg + frac*(table[i+1].hfg-table[i].hfg)
}

// PsatPsia returns the saturation pressure in psia for a temperature in °F.
// Inverse interpolation on the same anchors, so PsatPsia(TsatF(p)) round-trips
// to within interpolation error.
func PsatPsia(tF float64) float64 {
	if tF <= MinTF {
		return MinPsia
	}
	if tF >= MaxTF {
		return MaxPsia
	}
	lo, hi := 0, len(table)-1
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if table[mid].tF <= tF {
			lo = mid
		} else {
			hi = mid
		}
	}
	frac := (tF - table[lo].tF) / (table[hi].tF - table[lo].tF)
	return table[lo].psia + frac*(table[hi].psia-table[lo].psia)
}

// TsatFromPsig is TsatF with a gauge-pressure input.
func TsatFromPsig(psig float64) float64 {
	return TsatF(psig + constants.PsiaOffset)
}

// PsatPsig returns the saturation pressure in psig for a temperature in °F.
func PsatPsig(tF float64) float64 {
	return PsatPsia(tF) - constants.PsiaOffset
}

// HfgFromPsig is HfgBTULb with a gauge-pressure input.
func HfgFromPsig(psig float64) float64 {
	return HfgBTULb(psig + constants.PsiaOffset)
}

// LbmPerGal is a rough density fit for subcooled liquid water, used for
// mass/volume bookkeeping (spray, surge, level). Linear from 8.33 lbm/gal at
// 70 °F to 6.10 at 557 °F; good to a few percent over the heatup band, which
// is all level accounting needs.
func LbmPerGal(tempF float64) float64 {
	rho := 8.33 - 0.00458*(tempF-70)
	if rho < 5.5 {
		rho = 5.5
	}
	if rho > 8.4 {
		rho = 8.4
	}
	return rho
}

// locatePressure returns the lower anchor index and the interpolation fraction
// for a pressure, clamping to the table range.
func locatePressure(psia float64) (int, float64) {
	if psia <= MinPsia {
		return 0, 0
	}
	if psia >= MaxPsia {
		return len(table) - 2, 1
	}
	lo, hi := 0, len(table)-1
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if table[mid].psia <= psia {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo, (psia - table[lo].psia) / (table[hi].psia - table[lo].psia)
}
