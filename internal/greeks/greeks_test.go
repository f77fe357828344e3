package greeks

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/svirmi/options-scanner/internal/models"
)

func TestNormalCDFMatchesReference(t *testing.T) {
	for x := -6.0; x <= 6.0; x += 0.05 {
		assert.InDelta(t, distuv.UnitNormal.CDF(x), NormalCDF(x), 2e-7, "x=%v", x)
	}
}

func TestNormalPDF(t *testing.T) {
	assert.InDelta(t, 0.3989422804, NormalPDF(0), 1e-9)
	assert.InDelta(t, NormalPDF(1.3), NormalPDF(-1.3), 1e-15)
}

func TestErfOddAndBounded(t *testing.T) {
	assert.InDelta(t, 0.0, Erf(0), 1e-8)
	assert.InDelta(t, math.Erf(0.5), Erf(0.5), 2e-7)
	assert.InDelta(t, -Erf(1.7), Erf(-1.7), 1e-15)
	assert.InDelta(t, 1.0, Erf(10), 1e-9)
}

func TestComputeAtTheMoney(t *testing.T) {
	in := Input{Spot: 100000, Strike: 100000, DaysToExpiry: 30, RiskFreeRate: 0.05, ImpliedVol: 65, Type: models.Call}
	call := Compute(in)
	in.Type = models.Put
	put := Compute(in)

	assert.Greater(t, call.Delta, 0.5)
	assert.Less(t, call.Delta, 0.6)
	assert.Less(t, put.Delta, 0.0)
	assert.Greater(t, call.Gamma, 0.0)
	assert.InDelta(t, call.Gamma, put.Gamma, 1e-15)
	assert.InDelta(t, call.Vega, put.Vega, 1e-9)
	assert.Less(t, call.Theta, 0.0)
	assert.Less(t, call.Theta, put.Theta, "call decays faster with positive rates")
}

func TestComputeDegenerateInputs(t *testing.T) {
	assert.Equal(t, models.Greeks{}, Compute(Input{Spot: 0, Strike: 100, DaysToExpiry: 10, ImpliedVol: 50}))
	assert.Equal(t, models.Greeks{}, Compute(Input{Spot: 100, Strike: -1, DaysToExpiry: 10, ImpliedVol: 50}))

	floored := Compute(Input{Spot: 100, Strike: 100, DaysToExpiry: 0, ImpliedVol: 0, Type: models.Call})
	explicit := Compute(Input{Spot: 100, Strike: 100, DaysToExpiry: MinDays, ImpliedVol: MinVolPercent, Type: models.Call})
	assert.Equal(t, explicit, floored)
	for _, v := range []float64{floored.Delta, floored.Gamma, floored.Theta, floored.Vega} {
		assert.False(t, math.IsNaN(v))
		assert.False(t, math.IsInf(v, 0))
	}
}

func TestPriceParity(t *testing.T) {
	in := Input{Spot: 108390, Strike: 110000, DaysToExpiry: 45, RiskFreeRate: 0.05, ImpliedVol: 60, Type: models.Call}
	call := Price(in)
	in.Type = models.Put
	put := Price(in)

	forward := in.Spot - in.Strike*math.Exp(-in.RiskFreeRate*in.DaysToExpiry/365)
	assert.InDelta(t, forward, call-put, 1e-4)
	assert.Greater(t, call, 0.0)
	assert.Greater(t, put, 0.0)
}

func TestProperty_DeltaParity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("call delta minus put delta is one", prop.ForAll(
		func(spot, moneyness, days, rate, vol float64) bool {
			in := Input{Spot: spot, Strike: spot * moneyness, DaysToExpiry: days, RiskFreeRate: rate, ImpliedVol: vol, Type: models.Call}
			call := Compute(in)
			in.Type = models.Put
			put := Compute(in)
			return math.Abs(call.Delta-put.Delta-1) <= 1e-9
		},
		gen.Float64Range(100, 200000),
		gen.Float64Range(0.5, 1.5),
		gen.Float64Range(0, 400),
		gen.Float64Range(0, 0.1),
		gen.Float64Range(0, 200),
	))

	properties.Property("delta is bounded", prop.ForAll(
		func(spot, moneyness, days, vol float64) bool {
			g := Compute(Input{Spot: spot, Strike: spot * moneyness, DaysToExpiry: days, RiskFreeRate: 0.05, ImpliedVol: vol, Type: models.Call})
			return g.Delta >= 0 && g.Delta <= 1 && g.Gamma >= 0 && g.Vega >= 0
		},
		gen.Float64Range(100, 200000),
		gen.Float64Range(0.5, 1.5),
		gen.Float64Range(0, 400),
		gen.Float64Range(0, 200),
	))

	properties.TestingRun(t)
}
