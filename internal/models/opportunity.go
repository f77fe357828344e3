package models

import (
	"strings"
	"time"
)

// ArbitrageType identifies the structure of an opportunity
type ArbitrageType string

const (
	Conversion ArbitrageType = "CONVERSION"
	Reversal   ArbitrageType = "REVERSAL"
	Box        ArbitrageType = "BOX"
)

// ParseArbitrageType accepts lower or upper case names; "" and "all" mean no type filter
func ParseArbitrageType(s string) (ArbitrageType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CONVERSION":
		return Conversion, true
	case "REVERSAL":
		return Reversal, true
	case "BOX":
		return Box, true
	}
	return "", false
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

type MarketDepth string

const (
	DepthShallow MarketDepth = "shallow"
	DepthMedium  MarketDepth = "medium"
	DepthDeep    MarketDepth = "deep"
)

// Rank orders depths so the shallower of two can be picked
func (d MarketDepth) Rank() int {
	switch d {
	case DepthDeep:
		return 2
	case DepthMedium:
		return 1
	}
	return 0
}

// ExecutionStep is one leg of the trade ticket
type ExecutionStep struct {
	Action     string  `json:"action"`
	Instrument string  `json:"instrument"`
	Price      float64 `json:"price"`
	Quantity   float64 `json:"quantity"`
}

type RiskMetrics struct {
	MaxRisk         float64 `json:"max_risk"`
	SuccessRate     string  `json:"success_rate"`
	ExecutionRisk   string  `json:"execution_risk"`
	TimeSensitivity string  `json:"time_sensitivity"`
}

// Opportunity is a read-only arbitrage record produced by one scan cycle
type Opportunity struct {
	ID     string        `json:"id" csv:"id"`
	Type   ArbitrageType `json:"type" csv:"type"`
	Strike float64       `json:"strike" csv:"strike"`
	// HighStrike is set for box spreads only
	HighStrike float64 `json:"high_strike,omitempty" csv:"high_strike"`
	Expiry     string  `json:"expiry" csv:"expiry"`

	CallInstrument     string `json:"call_instrument,omitempty" csv:"call"`
	PutInstrument      string `json:"put_instrument,omitempty" csv:"put"`
	HighCallInstrument string `json:"high_call_instrument,omitempty" csv:"-"`
	HighPutInstrument  string `json:"high_put_instrument,omitempty" csv:"-"`

	SpotPrice         float64 `json:"spot_price" csv:"spot"`
	Profit            float64 `json:"profit" csv:"profit"`
	ProfitPercent     float64 `json:"profit_percent" csv:"profit_percent"`
	InitialInvestment float64 `json:"initial_investment" csv:"initial_investment"`
	RequiredCapital   float64 `json:"required_capital" csv:"required_capital"`
	AnnualizedReturn  float64 `json:"annualized_return" csv:"annualized_return"`
	EstimatedSlippage float64 `json:"estimated_slippage" csv:"estimated_slippage"`

	LiquidityScore float64     `json:"liquidity_score" csv:"liquidity_score"`
	SpreadCost     float64     `json:"spread_cost" csv:"spread_cost"`
	MarketDepth    MarketDepth `json:"market_depth" csv:"market_depth"`
	DaysToExpiry   int         `json:"days_to_expiry" csv:"days_to_expiry"`
	Confidence     float64     `json:"confidence" csv:"confidence"`
	RiskScore      float64     `json:"risk_score" csv:"risk_score"`
	RiskLevel      RiskLevel   `json:"risk_level" csv:"risk_level"`

	RiskMetrics    RiskMetrics     `json:"risk_metrics" csv:"-"`
	ExecutionSteps []ExecutionStep `json:"execution_steps" csv:"-"`
	DetectedAt     time.Time       `json:"detected_at" csv:"detected_at"`
}

// Filter narrows an opportunity list for display
type Filter struct {
	// Type is empty for all types
	Type      ArbitrageType `json:"type,omitempty"`
	MinProfit float64       `json:"min_profit"`
}

// Match reports whether o passes the filter
func (f Filter) Match(o *Opportunity) bool {
	if f.Type != "" && o.Type != f.Type {
		return false
	}
	return o.Profit >= f.MinProfit
}

// Apply returns the matching opportunities, preserving order
func (f Filter) Apply(opps []Opportunity) []Opportunity {
	out := make([]Opportunity, 0, len(opps))
	for i := range opps {
		if f.Match(&opps[i]) {
			out = append(out, opps[i])
		}
	}
	return out
}
