package scanner

import (
	"github.com/montanaflynn/stats"

	"github.com/svirmi/options-scanner/internal/models"
)

// Summarize aggregates the profit distribution of a cycle
func Summarize(opps []models.Opportunity) models.ScanSummary {
	summary := models.ScanSummary{
		Count:  len(opps),
		ByType: make(map[models.ArbitrageType]int),
	}
	if len(opps) == 0 {
		return summary
	}

	profits := make(stats.Float64Data, len(opps))
	for i, o := range opps {
		profits[i] = o.Profit
		summary.ByType[o.Type]++
	}

	// stats only errors on empty input, ruled out above
	summary.MeanProfit, _ = profits.Mean()
	summary.MedianProfit, _ = profits.Median()
	summary.BestProfit, _ = profits.Max()
	summary.TotalProfit, _ = profits.Sum()
	return summary
}
