package models

import (
	"fmt"
	"strings"
)

type TradeAction string

const (
	Buy  TradeAction = "BUY"
	Sell TradeAction = "SELL"
)

func ParseTradeAction(s string) (TradeAction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY", "LONG":
		return Buy, nil
	case "SELL", "SHORT":
		return Sell, nil
	}
	return "", fmt.Errorf("unknown trade action %q", s)
}

// Sign is +1 for buys and -1 for sells
func (a TradeAction) Sign() float64 {
	if a == Sell {
		return -1
	}
	return 1
}

// StrategyLeg is one user-editable leg of a strategy
type StrategyLeg struct {
	ID         string      `json:"id"`
	Type       OptionType  `json:"option_type"`
	Action     TradeAction `json:"action"`
	Quantity   int         `json:"quantity"`
	Strike     float64     `json:"strike"`
	Premium    float64     `json:"premium"`
	ImpliedVol float64     `json:"implied_vol"`
	ExpiryCode string      `json:"expiry,omitempty"`
	// DaysToExpiry is 0 when unset; the analyzer then uses its default horizon
	DaysToExpiry float64 `json:"days_to_expiry,omitempty"`
}

// Validate checks the leg invariants
func (l *StrategyLeg) Validate() error {
	if l.Type != Call && l.Type != Put {
		return fmt.Errorf("leg %s: invalid option type %q", l.ID, l.Type)
	}
	if l.Action != Buy && l.Action != Sell {
		return fmt.Errorf("leg %s: invalid action %q", l.ID, l.Action)
	}
	if l.Quantity <= 0 {
		return fmt.Errorf("leg %s: quantity must be positive, got %d", l.ID, l.Quantity)
	}
	if l.Strike <= 0 {
		return fmt.Errorf("leg %s: strike must be positive, got %v", l.ID, l.Strike)
	}
	if l.Premium < 0 {
		return fmt.Errorf("leg %s: premium must not be negative, got %v", l.ID, l.Premium)
	}
	return nil
}

// PnLPoint is one sample of a payoff curve
type PnLPoint struct {
	Price float64 `json:"price" csv:"price"`
	PnL   float64 `json:"pnl" csv:"pnl"`
}

// StrategyAnalysis is the derived view of a set of legs
type StrategyAnalysis struct {
	Spot       float64    `json:"spot"`
	Curve      []PnLPoint `json:"curve"`
	MaxProfit  float64    `json:"max_profit"`
	MaxLoss    float64    `json:"max_loss"`
	Breakevens []float64  `json:"breakevens"`
	NetPremium float64    `json:"net_premium"`
	Greeks     Greeks     `json:"greeks"`
	// Tail flags come from the net call exposure, not from the sampled range
	ProfitUnbounded bool `json:"profit_unbounded"`
	LossUnbounded   bool `json:"loss_unbounded"`
}
