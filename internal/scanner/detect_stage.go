package scanner

import (
	"context"

	"github.com/svirmi/options-scanner/internal/arbitrage"
	"github.com/svirmi/options-scanner/internal/ingestion"
	"github.com/svirmi/options-scanner/internal/processor"
)

// DetectionStage runs the arbitrage detector over the grouped cycle
type DetectionStage struct {
	Detector *arbitrage.Detector
}

func (s *DetectionStage) Process(ctx context.Context, c *processor.Cycle) error {
	c.Opportunities = s.Detector.Scan(arbitrage.Snapshot{
		Underlying: ingestion.PerpetualName(c.Currency),
		Spot:       c.Spot,
		Grouping:   c.Grouping,
	})
	return nil
}

func (s *DetectionStage) Name() string {
	return "detection"
}

// NewPipeline assembles the standard scan cycle
func NewPipeline(detector *arbitrage.Detector, quotedInUnderlying bool, errorHandler func(error)) *processor.Pipeline {
	return processor.NewPipeline(errorHandler,
		&processor.ValidationStage{},
		&processor.NormalizationStage{QuotedInUnderlying: quotedInUnderlying},
		&processor.GroupingStage{},
		&DetectionStage{Detector: detector},
	)
}
