package processor

import (
	"context"
	"errors"
)

// Common errors
var (
	ErrEmptySnapshot = errors.New("empty market snapshot")
)

// ValidationStage rejects snapshots that cannot produce contracts
type ValidationStage struct{}

func (s *ValidationStage) Process(ctx context.Context, c *Cycle) error {
	if c.Spot <= 0 {
		return ErrInvalidSpot
	}
	if len(c.Instruments) == 0 || len(c.Books) == 0 {
		return ErrEmptySnapshot
	}
	return nil
}

func (s *ValidationStage) Name() string {
	return "validation"
}

// NormalizationStage joins instruments and book summaries into contracts
type NormalizationStage struct {
	MinStrikeRatio     float64
	MaxStrikeRatio     float64
	QuotedInUnderlying bool
}

func (s *NormalizationStage) Process(ctx context.Context, c *Cycle) error {
	cfg := DefaultNormalizeConfig(c.Spot)
	if s.MinStrikeRatio > 0 {
		cfg.MinStrikeRatio = s.MinStrikeRatio
	}
	if s.MaxStrikeRatio > 0 {
		cfg.MaxStrikeRatio = s.MaxStrikeRatio
	}
	cfg.QuotedInUnderlying = s.QuotedInUnderlying

	contracts, err := Normalize(c.Instruments, c.Books, cfg)
	if err != nil {
		return err
	}
	c.Contracts = contracts
	return nil
}

func (s *NormalizationStage) Name() string {
	return "normalization"
}

// GroupingStage builds the strike/expiry grouping
type GroupingStage struct {
	Prefer Preference
}

func (s *GroupingStage) Process(ctx context.Context, c *Cycle) error {
	c.Grouping = Group(c.Contracts, WithPreference(s.Prefer))
	return nil
}

func (s *GroupingStage) Name() string {
	return "grouping"
}
