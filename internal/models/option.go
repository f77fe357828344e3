package models

import (
	"fmt"
	"strings"
	"time"
)

// OptionType is CALL or PUT
type OptionType string

const (
	Call OptionType = "CALL"
	Put  OptionType = "PUT"
)

// ParseOptionType accepts the exchange spellings ("call", "C", "put", "P")
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CALL", "C":
		return Call, nil
	case "PUT", "P":
		return Put, nil
	}
	return "", fmt.Errorf("unknown option type %q", s)
}

// Greeks represents first-order option sensitivities
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
}

// Add returns g + o scaled by weight
func (g Greeks) Add(o Greeks, weight float64) Greeks {
	return Greeks{
		Delta: g.Delta + o.Delta*weight,
		Gamma: g.Gamma + o.Gamma*weight,
		Theta: g.Theta + o.Theta*weight,
		Vega:  g.Vega + o.Vega*weight,
	}
}

// OptionContract is an immutable snapshot of one listed option.
// Defaults are applied once at construction, never at read sites.
type OptionContract struct {
	InstrumentID string     `json:"instrument_id"`
	Type         OptionType `json:"option_type"`
	Strike       float64    `json:"strike"`
	ExpiryCode   string     `json:"expiry"`
	// ExpiresAt is zero when the exchange did not supply an expiration epoch
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
	ContractSize float64   `json:"contract_size"`

	Bid  float64 `json:"bid"`
	Ask  float64 `json:"ask"`
	Mark float64 `json:"mark"`
	Last float64 `json:"last"`

	Volume       float64 `json:"volume"`
	OpenInterest float64 `json:"open_interest"`
	ImpliedVol   float64 `json:"implied_vol"`
	Greeks       Greeks  `json:"greeks"`
}

// Spread returns ask - bid
func (c *OptionContract) Spread() float64 {
	return c.Ask - c.Bid
}

// Usable reports whether the quote is two-sided and not crossed
func (c *OptionContract) Usable() bool {
	return c.Bid > 0 && c.Ask > 0 && c.Bid < c.Ask
}

// ParseInstrumentName splits a Deribit option name such as BTC-5JUL25-100000-C
func ParseInstrumentName(name string) (currency, expiry string, strike string, typ OptionType, err error) {
	parts := strings.Split(name, "-")
	if len(parts) != 4 {
		return "", "", "", "", fmt.Errorf("malformed instrument name %q", name)
	}
	typ, err = ParseOptionType(parts[3])
	if err != nil {
		return "", "", "", "", fmt.Errorf("malformed instrument name %q: %w", name, err)
	}
	return parts[0], parts[1], parts[2], typ, nil
}
