package strategy

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/svirmi/options-scanner/internal/greeks"
	"github.com/svirmi/options-scanner/internal/models"
)

type legSpec struct {
	typ    models.OptionType
	action models.TradeAction
	offset float64 // in strike steps from ATM
	iv     float64
}

var templates = map[string][]legSpec{
	"long-call": {{models.Call, models.Buy, 0, 65}},
	"long-put":  {{models.Put, models.Buy, 0, 65}},
	"straddle": {
		{models.Call, models.Buy, 0, 65},
		{models.Put, models.Buy, 0, 65},
	},
	"strangle": {
		{models.Call, models.Buy, 2, 70},
		{models.Put, models.Buy, -2, 70},
	},
	"iron-condor": {
		{models.Put, models.Buy, -3, 75},
		{models.Put, models.Sell, -2, 70},
		{models.Call, models.Sell, 2, 70},
		{models.Call, models.Buy, 3, 75},
	},
	"custom": {},
}

// TemplateNames lists the available templates in alphabetical order
func TemplateNames() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StrikeStep is the template strike grid: 1000 for a six-figure spot, 10 for four figures
func StrikeStep(spot float64) float64 {
	if spot <= 0 {
		return 1
	}
	exp := math.Floor(math.Log10(spot)) - 2
	return math.Pow(10, math.Max(exp, 0))
}

// Template builds the named strategy around the at-the-money strike with
// Black-Scholes premiums over the default horizon.
func (e *Engine) Template(name string, spot float64) ([]models.StrategyLeg, error) {
	specs, ok := templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	if spot <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpot, spot)
	}

	step := StrikeStep(spot)
	atm := math.Round(spot/step) * step

	legs := make([]models.StrategyLeg, 0, len(specs))
	for _, s := range specs {
		strike := atm + s.offset*step
		premium := greeks.Price(greeks.Input{
			Spot:         spot,
			Strike:       strike,
			DaysToExpiry: e.DefaultDays,
			RiskFreeRate: e.RiskFreeRate,
			ImpliedVol:   s.iv,
			Type:         s.typ,
		})
		legs = append(legs, models.StrategyLeg{
			ID:           uuid.NewString(),
			Type:         s.typ,
			Action:       s.action,
			Quantity:     1,
			Strike:       strike,
			Premium:      math.Round(premium*100) / 100,
			ImpliedVol:   s.iv,
			DaysToExpiry: e.DefaultDays,
		})
	}
	return legs, nil
}
