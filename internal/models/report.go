package models

import "time"

// ScanSummary aggregates the profits of one cycle
type ScanSummary struct {
	Count        int                   `json:"count"`
	ByType       map[ArbitrageType]int `json:"by_type"`
	MeanProfit   float64               `json:"mean_profit"`
	MedianProfit float64               `json:"median_profit"`
	BestProfit   float64               `json:"best_profit"`
	TotalProfit  float64               `json:"total_profit"`
}

// ScanReport is the committed result of one scan cycle for a currency
type ScanReport struct {
	Currency      string        `json:"currency"`
	Generation    uint64        `json:"generation"`
	Spot          float64       `json:"spot"`
	SpotFallback  bool          `json:"spot_fallback"`
	ContractCount int           `json:"contract_count"`
	Opportunities []Opportunity `json:"opportunities"`
	Summary       ScanSummary   `json:"summary"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
	Error         string        `json:"error,omitempty"`
}

// Filtered returns a copy of the report carrying only matching opportunities
func (r *ScanReport) Filtered(f Filter) ScanReport {
	out := *r
	out.Opportunities = f.Apply(r.Opportunities)
	return out
}
