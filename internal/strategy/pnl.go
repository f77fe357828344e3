// Package strategy builds expiry payoff curves and aggregate Greeks for
// multi-leg option positions.
package strategy

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/svirmi/options-scanner/internal/greeks"
	"github.com/svirmi/options-scanner/internal/models"
)

var (
	ErrNoLegs          = errors.New("strategy has no legs")
	ErrInvalidSpot     = errors.New("spot price must be positive")
	ErrLegNotFound     = errors.New("leg not found")
	ErrUnknownTemplate = errors.New("unknown strategy template")
)

const (
	DefaultLowRatio  = 0.6
	DefaultHighRatio = 1.4
	DefaultSteps     = 100
	// DefaultDays is the Greeks horizon for legs without an expiry
	DefaultDays = 30
)

// Engine evaluates strategies. The zero value is not usable; call NewEngine.
type Engine struct {
	LowRatio     float64
	HighRatio    float64
	Steps        int
	RiskFreeRate float64
	DefaultDays  float64
}

func NewEngine(riskFreeRate float64) *Engine {
	return &Engine{
		LowRatio:     DefaultLowRatio,
		HighRatio:    DefaultHighRatio,
		Steps:        DefaultSteps,
		RiskFreeRate: riskFreeRate,
		DefaultDays:  DefaultDays,
	}
}

// PriceRange returns Steps+1 integer prices spanning [LowRatio*spot, HighRatio*spot]
func (e *Engine) PriceRange(spot float64) []float64 {
	low, high := spot*e.LowRatio, spot*e.HighRatio
	step := (high - low) / float64(e.Steps)

	prices := make([]float64, e.Steps+1)
	for i := range prices {
		prices[i] = math.Round(low + float64(i)*step)
	}
	return prices
}

// Intrinsic is the expiry value of one long contract
func Intrinsic(typ models.OptionType, strike, price float64) float64 {
	if typ == models.Put {
		return math.Max(0, strike-price)
	}
	return math.Max(0, price-strike)
}

// LegPnL is the expiry profit of a leg at price
func LegPnL(leg models.StrategyLeg, price float64) float64 {
	sign := leg.Action.Sign()
	costBasis := leg.Premium * sign
	return (sign*Intrinsic(leg.Type, leg.Strike, price) - costBasis) * float64(leg.Quantity)
}

func (e *Engine) Curve(legs []models.StrategyLeg, spot float64) []models.PnLPoint {
	prices := e.PriceRange(spot)
	curve := make([]models.PnLPoint, len(prices))
	for i, price := range prices {
		total := 0.0
		for _, leg := range legs {
			total += LegPnL(leg, price)
		}
		curve[i] = models.PnLPoint{Price: price, PnL: total}
	}
	return curve
}

// Breakevens returns the later sample of every adjacent pair whose P&L changes sign
func Breakevens(curve []models.PnLPoint) []float64 {
	out := []float64{}
	for i := 1; i < len(curve); i++ {
		prev, cur := curve[i-1].PnL, curve[i].PnL
		if (prev <= 0 && cur > 0) || (prev > 0 && cur <= 0) {
			out = append(out, curve[i].Price)
		}
	}
	return out
}

// NetPremium is positive for a net credit
func NetPremium(legs []models.StrategyLeg) float64 {
	total := 0.0
	for _, leg := range legs {
		if leg.Action == models.Buy {
			total -= leg.Premium * float64(leg.Quantity)
		} else {
			total += leg.Premium * float64(leg.Quantity)
		}
	}
	return total
}

// PortfolioGreeks sums per-leg Greeks signed by action and scaled by quantity
func (e *Engine) PortfolioGreeks(legs []models.StrategyLeg, spot float64) models.Greeks {
	var total models.Greeks
	for _, leg := range legs {
		days := leg.DaysToExpiry
		if days <= 0 {
			days = e.DefaultDays
		}
		g := greeks.Compute(greeks.Input{
			Spot:         spot,
			Strike:       leg.Strike,
			DaysToExpiry: days,
			RiskFreeRate: e.RiskFreeRate,
			ImpliedVol:   leg.ImpliedVol,
			Type:         leg.Type,
		})
		total = total.Add(g, leg.Action.Sign()*float64(leg.Quantity))
	}
	return total
}

// netCalls is the signed call quantity, the slope of the curve beyond the highest strike
func netCalls(legs []models.StrategyLeg) float64 {
	n := 0.0
	for _, leg := range legs {
		if leg.Type == models.Call {
			n += leg.Action.Sign() * float64(leg.Quantity)
		}
	}
	return n
}

// Analyze validates the legs and derives the full strategy view. MaxProfit
// and MaxLoss are the extremes over the sampled range.
func (e *Engine) Analyze(legs []models.StrategyLeg, spot float64) (models.StrategyAnalysis, error) {
	if len(legs) == 0 {
		return models.StrategyAnalysis{}, ErrNoLegs
	}
	if spot <= 0 || math.IsNaN(spot) {
		return models.StrategyAnalysis{}, fmt.Errorf("%w: %v", ErrInvalidSpot, spot)
	}
	for i := range legs {
		if err := legs[i].Validate(); err != nil {
			return models.StrategyAnalysis{}, err
		}
	}

	curve := e.Curve(legs, spot)
	pnl := make([]float64, len(curve))
	for i, p := range curve {
		pnl[i] = p.PnL
	}
	slope := netCalls(legs)

	return models.StrategyAnalysis{
		Spot:            spot,
		Curve:           curve,
		MaxProfit:       floats.Max(pnl),
		MaxLoss:         floats.Min(pnl),
		Breakevens:      Breakevens(curve),
		NetPremium:      NetPremium(legs),
		Greeks:          e.PortfolioGreeks(legs, spot),
		ProfitUnbounded: slope > 0,
		LossUnbounded:   slope < 0,
	}, nil
}
