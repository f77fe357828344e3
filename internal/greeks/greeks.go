// Package greeks implements closed-form Black-Scholes sensitivities for a
// single European option leg.
package greeks

import (
	"math"

	"github.com/svirmi/options-scanner/internal/models"
)

const (
	// MinDays floors time to expiry at one hour
	MinDays = 1.0 / 24.0
	// MinVolPercent floors implied volatility at 1%
	MinVolPercent = 1.0
	daysPerYear   = 365.0
)

// Abramowitz and Stegun 7.1.26
const (
	erfA1 = 0.254829592
	erfA2 = -0.284496736
	erfA3 = 1.421413741
	erfA4 = -1.453152027
	erfA5 = 1.061405429
	erfP  = 0.3275911
)

// Input describes one leg. ImpliedVol is in percent.
type Input struct {
	Spot         float64
	Strike       float64
	DaysToExpiry float64
	RiskFreeRate float64
	ImpliedVol   float64
	Type         models.OptionType
}

// Erf approximates the error function with a maximum absolute error of 1.5e-7
func Erf(x float64) float64 {
	sign := 1.0
	if x < 0 {
		sign = -1.0
	}
	x = math.Abs(x)

	t := 1.0 / (1.0 + erfP*x)
	y := 1.0 - (((((erfA5*t+erfA4)*t)+erfA3)*t+erfA2)*t+erfA1)*t*math.Exp(-x*x)
	return sign * y
}

// NormalCDF is the standard normal cumulative distribution
func NormalCDF(x float64) float64 {
	return 0.5 * (1 + Erf(x/math.Sqrt2))
}

// NormalPDF is the standard normal density
func NormalPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}

type terms struct {
	t, sigma, sqrtT, d1, d2 float64
}

func (in Input) terms() terms {
	days := in.DaysToExpiry
	if days < MinDays || math.IsNaN(days) {
		days = MinDays
	}
	vol := in.ImpliedVol
	if vol < MinVolPercent || math.IsNaN(vol) {
		vol = MinVolPercent
	}

	t := days / daysPerYear
	sigma := vol / 100
	sqrtT := math.Sqrt(t)
	d1 := (math.Log(in.Spot/in.Strike) + (in.RiskFreeRate+sigma*sigma/2)*t) / (sigma * sqrtT)
	return terms{t: t, sigma: sigma, sqrtT: sqrtT, d1: d1, d2: d1 - sigma*sqrtT}
}

func (in Input) degenerate() bool {
	return in.Spot <= 0 || in.Strike <= 0 || math.IsNaN(in.Spot) || math.IsNaN(in.Strike)
}

// Compute returns delta, gamma, daily theta and vega per vol point.
// Days and volatility below the floors are clamped; non-positive spot or
// strike yields zero Greeks.
func Compute(in Input) models.Greeks {
	if in.degenerate() {
		return models.Greeks{}
	}
	tm := in.terms()
	pdf := NormalPDF(tm.d1)
	discount := in.Strike * math.Exp(-in.RiskFreeRate*tm.t)
	decay := -in.Spot * pdf * tm.sigma / (2 * tm.sqrtT)

	g := models.Greeks{
		Gamma: pdf / (in.Spot * tm.sigma * tm.sqrtT),
		Vega:  in.Spot * pdf * tm.sqrtT / 100,
	}
	if in.Type == models.Put {
		g.Delta = NormalCDF(tm.d1) - 1
		g.Theta = (decay + in.RiskFreeRate*discount*(1-NormalCDF(tm.d2))) / daysPerYear
	} else {
		g.Delta = NormalCDF(tm.d1)
		g.Theta = (decay - in.RiskFreeRate*discount*NormalCDF(tm.d2)) / daysPerYear
	}
	return g
}

// Price returns the Black-Scholes theoretical value under the same floors as Compute
func Price(in Input) float64 {
	if in.degenerate() {
		return 0
	}
	tm := in.terms()
	discount := in.Strike * math.Exp(-in.RiskFreeRate*tm.t)
	if in.Type == models.Put {
		return discount*NormalCDF(-tm.d2) - in.Spot*NormalCDF(-tm.d1)
	}
	return in.Spot*NormalCDF(tm.d1) - discount*NormalCDF(tm.d2)
}
