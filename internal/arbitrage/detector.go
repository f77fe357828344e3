// Package arbitrage scans a grouped option snapshot for conversion, reversal
// and box-spread mispricings.
package arbitrage

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/svirmi/options-scanner/internal/logger"
	"github.com/svirmi/options-scanner/internal/models"
	"github.com/svirmi/options-scanner/internal/processor"
)

// Config holds the user-tunable scan parameters
type Config struct {
	MinProfit       float64 `mapstructure:"min_profit" json:"min_profit"`
	MaxRisk         float64 `mapstructure:"max_risk" json:"max_risk"`
	TransactionCost float64 `mapstructure:"transaction_cost" json:"transaction_cost"`
	// Slippage is a fraction of required capital; it is reported, never deducted
	Slippage     float64 `mapstructure:"slippage" json:"slippage"`
	MinVolume    float64 `mapstructure:"min_volume" json:"min_volume"`
	RiskFreeRate float64 `mapstructure:"risk_free_rate" json:"risk_free_rate"`
}

func DefaultConfig() Config {
	return Config{
		MinProfit:       0,
		MaxRisk:         10000,
		TransactionCost: 0.5,
		Slippage:        0.01,
		MinVolume:       0,
		RiskFreeRate:    0.05,
	}
}

// Snapshot is the detector input for one cycle
type Snapshot struct {
	// Underlying names the spot leg in execution steps, e.g. BTC-PERPETUAL
	Underlying string
	Spot       float64
	Grouping   *processor.Grouping
}

type Detector struct {
	cfg Config
	now func() time.Time
	log zerolog.Logger
}

type Option func(*Detector)

// WithClock replaces time.Now for expiry arithmetic
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

func NewDetector(cfg Config, opts ...Option) *Detector {
	d := &Detector{
		cfg: cfg,
		now: time.Now,
		log: logger.GetLogger("arbitrage"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Detector) Config() Config {
	return d.cfg
}

var (
	thousandth = decimal.NewFromFloat(0.001)
	tenth      = decimal.NewFromFloat(0.1)
	twentieth  = decimal.NewFromFloat(0.05)
	three      = decimal.NewFromInt(3)
	four       = decimal.NewFromInt(4)
)

// Scan runs all three scans and returns every opportunity sorted by profit, best first
func (d *Detector) Scan(snap Snapshot) []models.Opportunity {
	if snap.Grouping == nil || snap.Spot <= 0 {
		return []models.Opportunity{}
	}

	var opps []models.Opportunity
	opps = append(opps, d.safe("conversion", func() []models.Opportunity { return d.Conversions(snap) })...)
	opps = append(opps, d.safe("reversal", func() []models.Opportunity { return d.Reversals(snap) })...)
	opps = append(opps, d.safe("box", func() []models.Opportunity { return d.BoxSpreads(snap) })...)

	SortByProfit(opps)

	d.log.Debug().
		Float64("spot", snap.Spot).
		Int("groups", len(snap.Grouping.Groups)).
		Int("opportunities", len(opps)).
		Msg("Scan completed")

	if opps == nil {
		opps = []models.Opportunity{}
	}
	return opps
}

// SortByProfit orders opportunities by descending profit
func SortByProfit(opps []models.Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		return opps[i].Profit > opps[j].Profit
	})
}

func (d *Detector) safe(name string, scan func() []models.Opportunity) (out []models.Opportunity) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Str("scan", name).Interface("panic", r).Msg("Scan aborted")
			out = nil
		}
	}()
	return scan()
}

func (d *Detector) daysToExpiry(c *models.OptionContract) int {
	days, ok := DaysToExpiry(c.ExpiryCode, c.ExpiresAt, d.now())
	if !ok {
		d.log.Warn().
			Str("instrument", c.InstrumentID).
			Str("expiry", c.ExpiryCode).
			Int("default_days", days).
			Msg("Unparseable expiry, using default")
	}
	return days
}

func underlying(snap Snapshot) string {
	if snap.Underlying == "" {
		return "UNDERLYING"
	}
	return snap.Underlying
}

// Conversions finds long underlying + long put + short call mispricings
func (d *Detector) Conversions(snap Snapshot) []models.Opportunity {
	var opps []models.Opportunity
	spot := decimal.NewFromFloat(snap.Spot)
	cost := decimal.NewFromFloat(d.cfg.TransactionCost)
	minProfit := decimal.NewFromFloat(d.cfg.MinProfit)

	for _, key := range snap.Grouping.Order {
		grp := snap.Grouping.Groups[key]
		if !grp.Complete() {
			continue
		}
		call, put := grp.Call, grp.Put
		if call.Bid <= 0 || put.Ask <= 0 {
			continue
		}

		investment := spot.
			Add(decimal.NewFromFloat(put.Ask)).
			Sub(decimal.NewFromFloat(call.Bid)).
			Add(cost.Mul(three))
		profit := decimal.NewFromFloat(call.Strike).Sub(investment)
		threshold := decimal.Max(minProfit, thousandth.Mul(investment))

		if !profit.GreaterThan(threshold) || !meetsVolumeFloor(d.cfg.MinVolume, call, put) {
			continue
		}

		inv := investment.InexactFloat64()
		p := profit.InexactFloat64()
		days := d.daysToExpiry(call)
		risk := PairRiskScore(d.cfg.MinVolume, call, put)

		opp := models.Opportunity{
			ID:                fmt.Sprintf("conversion:%s:%s", call.InstrumentID, put.InstrumentID),
			Type:              models.Conversion,
			Strike:            call.Strike,
			Expiry:            key.Expiry,
			CallInstrument:    call.InstrumentID,
			PutInstrument:     put.InstrumentID,
			SpotPrice:         snap.Spot,
			Profit:            p,
			InitialInvestment: inv,
			RequiredCapital:   math.Max(inv, 0),
			AnnualizedReturn:  AnnualizedReturn(p, math.Abs(inv), days),
			LiquidityScore:    LiquidityScore(call, put),
			SpreadCost:        SpreadCost(call, put),
			MarketDepth:       MarketDepthOf(call, put),
			DaysToExpiry:      days,
			Confidence:        Confidence(call, put),
			RiskScore:         risk,
			RiskLevel:         RiskLevelOf(risk),
			RiskMetrics:       d.pairRiskMetrics(),
			ExecutionSteps:    conversionSteps(underlying(snap), snap.Spot, call, put),
			DetectedAt:        d.now(),
		}
		if inv > 0 {
			opp.ProfitPercent = p / inv * 100
		}
		opp.EstimatedSlippage = d.cfg.Slippage * opp.RequiredCapital
		opps = append(opps, opp)
	}
	return opps
}

// Reversals finds short underlying + short put + long call mispricings
func (d *Detector) Reversals(snap Snapshot) []models.Opportunity {
	var opps []models.Opportunity
	spot := decimal.NewFromFloat(snap.Spot)
	cost := decimal.NewFromFloat(d.cfg.TransactionCost)
	minProfit := decimal.NewFromFloat(d.cfg.MinProfit)

	for _, key := range snap.Grouping.Order {
		grp := snap.Grouping.Groups[key]
		if !grp.Complete() {
			continue
		}
		call, put := grp.Call, grp.Put
		if call.Ask <= 0 || put.Bid <= 0 {
			continue
		}

		strike := decimal.NewFromFloat(call.Strike)
		cashFlow := spot.
			Add(decimal.NewFromFloat(put.Bid)).
			Sub(decimal.NewFromFloat(call.Ask)).
			Sub(cost.Mul(three))
		profit := cashFlow.Sub(strike)
		threshold := decimal.Max(minProfit, thousandth.Mul(strike))

		if !profit.GreaterThan(threshold) || !meetsVolumeFloor(d.cfg.MinVolume, call, put) {
			continue
		}

		margin := decimal.Max(decimal.NewFromFloat(call.Ask), tenth.Mul(strike), twentieth.Mul(spot)).InexactFloat64()
		p := profit.InexactFloat64()
		days := d.daysToExpiry(call)
		risk := PairRiskScore(d.cfg.MinVolume, call, put)

		opps = append(opps, models.Opportunity{
			ID:                fmt.Sprintf("reversal:%s:%s", call.InstrumentID, put.InstrumentID),
			Type:              models.Reversal,
			Strike:            call.Strike,
			Expiry:            key.Expiry,
			CallInstrument:    call.InstrumentID,
			PutInstrument:     put.InstrumentID,
			SpotPrice:         snap.Spot,
			Profit:            p,
			ProfitPercent:     p / call.Strike * 100,
			InitialInvestment: margin,
			RequiredCapital:   margin,
			EstimatedSlippage: d.cfg.Slippage * margin,
			AnnualizedReturn:  AnnualizedReturn(p, margin, days),
			LiquidityScore:    LiquidityScore(call, put),
			SpreadCost:        SpreadCost(call, put),
			MarketDepth:       MarketDepthOf(call, put),
			DaysToExpiry:      days,
			Confidence:        Confidence(call, put),
			RiskScore:         risk,
			RiskLevel:         RiskLevelOf(risk),
			RiskMetrics:       d.pairRiskMetrics(),
			ExecutionSteps:    reversalSteps(underlying(snap), snap.Spot, call, put),
			DetectedAt:        d.now(),
		})
	}
	return opps
}

type boxLegs struct {
	strike    float64
	call, put *models.OptionContract
}

// BoxSpreads checks every adjacent pair of the distinct strike set against
// every expiry. A pair is skipped unless all four legs are listed.
func (d *Detector) BoxSpreads(snap Snapshot) []models.Opportunity {
	var opps []models.Opportunity
	g := snap.Grouping
	cost := decimal.NewFromFloat(d.cfg.TransactionCost)
	minProfit := decimal.NewFromFloat(d.cfg.MinProfit)

	for i := 0; i+1 < len(g.Strikes); i++ {
		for _, expiry := range g.Expiries {
			lowGrp, ok := g.Get(g.Strikes[i], expiry)
			if !ok || !lowGrp.Complete() {
				continue
			}
			highGrp, ok := g.Get(g.Strikes[i+1], expiry)
			if !ok || !highGrp.Complete() {
				continue
			}
			low := &boxLegs{strike: g.Strikes[i], call: lowGrp.Call, put: lowGrp.Put}
			high := &boxLegs{strike: g.Strikes[i+1], call: highGrp.Call, put: highGrp.Put}

			price := BoxMarketPrice(low.call, high.call, low.put, high.put)
			theoretical := decimal.NewFromFloat(high.strike).Sub(decimal.NewFromFloat(low.strike))
			profit := theoretical.Sub(price).Sub(cost.Mul(four))
			if !profit.GreaterThan(minProfit) {
				continue
			}

			opps = append(opps, d.boxOpportunity(snap, expiry, low, high, price.InexactFloat64(), profit.InexactFloat64()))
		}
	}
	return opps
}

// BoxMarketPrice is (lowCall.ask - highCall.bid) + (highPut.ask - lowPut.bid)
func BoxMarketPrice(lowCall, highCall, lowPut, highPut *models.OptionContract) decimal.Decimal {
	callSpread := decimal.NewFromFloat(lowCall.Ask).Sub(decimal.NewFromFloat(highCall.Bid))
	putSpread := decimal.NewFromFloat(highPut.Ask).Sub(decimal.NewFromFloat(lowPut.Bid))
	return callSpread.Add(putSpread)
}

func (d *Detector) boxOpportunity(snap Snapshot, expiry string, low, high *boxLegs, price, profit float64) models.Opportunity {
	capital := low.call.Ask + high.put.Ask
	days := d.daysToExpiry(low.call)
	risk := math.Abs(profit * 0.1)

	opp := models.Opportunity{
		ID:                 fmt.Sprintf("box:%s:%s", low.call.InstrumentID, high.call.InstrumentID),
		Type:               models.Box,
		Strike:             low.strike,
		HighStrike:         high.strike,
		Expiry:             expiry,
		CallInstrument:     low.call.InstrumentID,
		PutInstrument:      low.put.InstrumentID,
		HighCallInstrument: high.call.InstrumentID,
		HighPutInstrument:  high.put.InstrumentID,
		SpotPrice:          snap.Spot,
		Profit:             profit,
		InitialInvestment:  price,
		RequiredCapital:    capital,
		EstimatedSlippage:  d.cfg.Slippage * capital,
		AnnualizedReturn:   AnnualizedReturn(profit, price, days),
		LiquidityScore:     math.Min(LiquidityScore(low.call, low.put), LiquidityScore(high.call, high.put)),
		SpreadCost:         SpreadCost(low.call, low.put, high.call, high.put),
		MarketDepth:        shallower(MarketDepthOf(low.call, low.put), MarketDepthOf(high.call, high.put)),
		DaysToExpiry:       days,
		Confidence:         Confidence(low.call, low.put, high.call, high.put),
		RiskScore:          risk,
		RiskLevel:          RiskLevelOf(risk),
		RiskMetrics: models.RiskMetrics{
			MaxRisk:         50,
			SuccessRate:     "95%",
			ExecutionRisk:   "Low",
			TimeSensitivity: "Low",
		},
		ExecutionSteps: boxSteps(low, high),
		DetectedAt:     d.now(),
	}
	if price > 0 {
		opp.ProfitPercent = profit / price * 100
	}
	return opp
}

func (d *Detector) pairRiskMetrics() models.RiskMetrics {
	return models.RiskMetrics{
		MaxRisk:         d.cfg.MaxRisk,
		SuccessRate:     "85%",
		ExecutionRisk:   "Medium",
		TimeSensitivity: "High",
	}
}
