package arbitrage

import (
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svirmi/options-scanner/internal/models"
	"github.com/svirmi/options-scanner/internal/processor"
)

var testNow = time.Date(2025, 6, 28, 8, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func opt(typ models.OptionType, strike float64, bid, ask float64) models.OptionContract {
	suffix := "C"
	if typ == models.Put {
		suffix = "P"
	}
	return models.OptionContract{
		InstrumentID: "BTC-5JUL25-" + formatStrike(strike) + "-" + suffix,
		Type:         typ,
		Strike:       strike,
		ExpiryCode:   "5JUL25",
		ExpiresAt:    time.Date(2025, 7, 5, 8, 0, 0, 0, time.UTC),
		Bid:          bid,
		Ask:          ask,
		Volume:       25,
		OpenInterest: 60,
	}
}

func formatStrike(s float64) string {
	return strconv.FormatFloat(s, 'f', 0, 64)
}

func snapshot(spot float64, contracts ...models.OptionContract) Snapshot {
	return Snapshot{Underlying: "BTC-PERPETUAL", Spot: spot, Grouping: processor.Group(contracts)}
}

func TestScanEndToEndConversion(t *testing.T) {
	d := NewDetector(DefaultConfig(), WithClock(fixedClock))
	snap := snapshot(100000,
		opt(models.Call, 100000, 3000, 3100),
		opt(models.Put, 100000, 2700, 2800),
	)

	opps := d.Scan(snap)
	require.Len(t, opps, 1)

	o := opps[0]
	assert.Equal(t, models.Conversion, o.Type)
	assert.Equal(t, 198.5, o.Profit)
	assert.Equal(t, 99801.5, o.InitialInvestment)
	assert.Equal(t, 99801.5, o.RequiredCapital)
	assert.InDelta(t, 198.5/99801.5*100, o.ProfitPercent, 1e-9)
	assert.Equal(t, 7, o.DaysToExpiry)
	assert.InDelta(t, 198.5/99801.5*365/7*100, o.AnnualizedReturn, 1e-9)
	assert.InDelta(t, 0.01*99801.5, o.EstimatedSlippage, 1e-9)
	assert.Equal(t, models.DepthMedium, o.MarketDepth)
	assert.Equal(t, 200.0, o.SpreadCost)
	assert.Equal(t, models.RiskMedium, o.RiskLevel)
	assert.Equal(t, 110.0, o.RiskScore)
	assert.Equal(t, "85%", o.RiskMetrics.SuccessRate)

	require.Len(t, o.ExecutionSteps, 3)
	assert.Equal(t, models.ExecutionStep{Action: "BUY", Instrument: "BTC-PERPETUAL", Price: 100000, Quantity: 1}, o.ExecutionSteps[0])
	assert.Equal(t, "BUY", o.ExecutionSteps[1].Action)
	assert.Equal(t, 2800.0, o.ExecutionSteps[1].Price)
	assert.Equal(t, "SELL", o.ExecutionSteps[2].Action)
	assert.Equal(t, 3000.0, o.ExecutionSteps[2].Price)
}

func TestConversionRespectsThresholds(t *testing.T) {
	contracts := []models.OptionContract{
		opt(models.Call, 100000, 3000, 3100),
		opt(models.Put, 100000, 2700, 2800),
	}

	cfg := DefaultConfig()
	cfg.MinProfit = 200
	assert.Empty(t, NewDetector(cfg).Conversions(snapshot(100000, contracts...)))

	cfg = DefaultConfig()
	cfg.MinVolume = 30
	assert.Empty(t, NewDetector(cfg).Conversions(snapshot(100000, contracts...)))

	// 0.1% of the investment dominates a negative configured minimum
	cfg = DefaultConfig()
	cfg.MinProfit = -1000
	assert.Empty(t, NewDetector(cfg).Conversions(snapshot(100100, contracts...)))
}

func TestConversionSkipsMissingLegs(t *testing.T) {
	d := NewDetector(DefaultConfig())
	assert.Empty(t, d.Conversions(snapshot(100000, opt(models.Call, 100000, 3000, 3100))))
	assert.Empty(t, d.Reversals(snapshot(100000, opt(models.Put, 100000, 2700, 2800))))
}

func TestReversal(t *testing.T) {
	d := NewDetector(DefaultConfig(), WithClock(fixedClock))
	snap := snapshot(100000,
		opt(models.Call, 99000, 1000, 1100),
		opt(models.Put, 99000, 400, 450),
	)
	opps := d.Reversals(snap)
	require.Len(t, opps, 1)

	o := opps[0]
	// 100000 + 400 - 1100 - 1.5 - 99000
	assert.InDelta(t, 298.5, o.Profit, 1e-9)
	assert.InDelta(t, 298.5/99000*100, o.ProfitPercent, 1e-9)
	assert.Equal(t, 9900.0, o.RequiredCapital)
	assert.Equal(t, 9900.0, o.InitialInvestment)
	assert.Equal(t, "SELL", o.ExecutionSteps[0].Action)
	assert.Equal(t, "BUY", o.ExecutionSteps[2].Action)
	assert.Equal(t, 1100.0, o.ExecutionSteps[2].Price)
}

func TestBoxSpread(t *testing.T) {
	cfg := DefaultConfig()
	d := NewDetector(cfg, WithClock(fixedClock))
	snap := snapshot(100000,
		opt(models.Call, 100000, 2990, 3000),
		opt(models.Put, 100000, 2450, 2460),
		opt(models.Call, 101000, 2500, 2510),
		opt(models.Put, 101000, 2890, 2900),
	)

	opps := d.BoxSpreads(snap)
	require.Len(t, opps, 1)
	o := opps[0]

	// theoretical 1000, market (3000-2500)+(2900-2450)=950, costs 4*0.5
	assert.InDelta(t, 48, o.Profit, 1e-9)
	assert.InDelta(t, 48.0/950*100, o.ProfitPercent, 1e-9)
	assert.Equal(t, 100000.0, o.Strike)
	assert.Equal(t, 101000.0, o.HighStrike)
	assert.Equal(t, 5900.0, o.RequiredCapital)
	assert.Equal(t, 7, o.DaysToExpiry)
	assert.InDelta(t, 48.0/950*365/7*100, o.AnnualizedReturn, 1e-9, "annualized on the box price, not the capital")
	assert.InDelta(t, 4.8, o.RiskScore, 1e-9)
	assert.Equal(t, models.RiskLow, o.RiskLevel)
	assert.Equal(t, 40.0, o.SpreadCost)
	assert.Equal(t, 50.0, o.RiskMetrics.MaxRisk)
	require.Len(t, o.ExecutionSteps, 4)
}

func TestBoxSpreadRequiresAllLegs(t *testing.T) {
	d := NewDetector(DefaultConfig())
	snap := snapshot(100000,
		opt(models.Call, 100000, 2990, 3000),
		opt(models.Put, 100000, 2450, 2460),
		opt(models.Call, 101000, 2500, 2510),
	)
	assert.Empty(t, d.BoxSpreads(snap))
}

func TestScanSortsByProfit(t *testing.T) {
	d := NewDetector(DefaultConfig(), WithClock(fixedClock))
	snap := snapshot(100000,
		opt(models.Call, 100000, 2990, 3000),
		opt(models.Put, 100000, 2450, 2460),
		opt(models.Call, 101000, 2500, 2510),
		opt(models.Put, 101000, 2890, 2900),
	)
	opps := d.Scan(snap)
	require.NotEmpty(t, opps)
	for i := 1; i < len(opps); i++ {
		assert.GreaterOrEqual(t, opps[i-1].Profit, opps[i].Profit)
	}
}

func TestScanEmptySnapshot(t *testing.T) {
	d := NewDetector(DefaultConfig())
	assert.Empty(t, d.Scan(Snapshot{Spot: 100000}))
	assert.NotNil(t, d.Scan(snapshot(100000)))
}

func TestProperty_ConversionProfitIdentity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("emitted conversions satisfy the profit identity", prop.ForAll(
		func(spot, strikeRatio, callBid, putAsk, cost float64) bool {
			strike := math.Round(spot * strikeRatio)
			cfg := DefaultConfig()
			cfg.TransactionCost = cost
			d := NewDetector(cfg, WithClock(fixedClock))

			snap := snapshot(spot,
				opt(models.Call, strike, callBid, callBid+10),
				opt(models.Put, strike, putAsk-1, putAsk),
			)
			opps := d.Conversions(snap)

			investment := spot + putAsk - callBid + 3*cost
			expected := strike - investment
			shouldEmit := expected > math.Max(0, 0.001*investment)+1e-6
			if len(opps) == 0 {
				return !shouldEmit
			}
			return len(opps) == 1 && math.Abs(opps[0].Profit-expected) < 1e-6
		},
		gen.Float64Range(50000, 150000),
		gen.Float64Range(0.8, 1.2),
		gen.Float64Range(10, 20000),
		gen.Float64Range(10, 20000),
		gen.Float64Range(0, 5),
	))

	properties.TestingRun(t)
}

// permute returns the n-th permutation (n < len(xs)!) of xs
func permute(xs []models.OptionContract, n int) []models.OptionContract {
	pool := append([]models.OptionContract(nil), xs...)
	out := make([]models.OptionContract, 0, len(xs))
	for i := len(pool); i > 0; i-- {
		j := n % i
		n /= i
		out = append(out, pool[j])
		pool = append(pool[:j], pool[j+1:]...)
	}
	return out
}

func TestProperty_BoxProfitIdentity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("box profit is width minus market price minus costs in any arrival order", prop.ForAll(
		func(first, width float64, descending bool, order int, lca, hcb, hpa, lpb float64) bool {
			second := first + width
			if descending {
				second = first - width
			}
			low, high := math.Min(first, second), math.Max(first, second)

			cfg := DefaultConfig()
			d := NewDetector(cfg, WithClock(fixedClock))
			contracts := []models.OptionContract{
				opt(models.Call, low, lca-1, lca),
				opt(models.Put, low, lpb, lpb+1),
				opt(models.Call, high, hcb, hcb+1),
				opt(models.Put, high, hpa-1, hpa),
			}
			opps := d.BoxSpreads(snapshot(low, permute(contracts, order)...))

			market := (lca - hcb) + (hpa - lpb)
			expected := (high - low) - market - 4*cfg.TransactionCost
			switch {
			case expected > cfg.MinProfit+1e-6:
				if len(opps) != 1 {
					return false
				}
			case expected < cfg.MinProfit-1e-6:
				return len(opps) == 0
			default:
				return len(opps) <= 1
			}

			o := opps[0]
			return math.Abs(o.Profit-expected) < 1e-6 &&
				math.Abs(o.InitialInvestment-market) < 1e-6 &&
				o.Strike == low && o.HighStrike == high &&
				o.HighStrike-o.Strike > 0
		},
		gen.Float64Range(50000, 100000).Map(math.Round),
		gen.Float64Range(500, 5000).Map(math.Round),
		gen.Bool(),
		gen.IntRange(0, 23),
		gen.Float64Range(100, 5000),
		gen.Float64Range(100, 5000),
		gen.Float64Range(100, 5000),
		gen.Float64Range(100, 5000),
	))

	properties.TestingRun(t)
}
