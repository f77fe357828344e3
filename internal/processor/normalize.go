package processor

import (
	"errors"
	"fmt"
	"time"

	"github.com/svirmi/options-scanner/internal/models"
)

var ErrInvalidSpot = errors.New("spot price must be positive")

// NormalizeConfig controls which joined records survive normalization
type NormalizeConfig struct {
	Spot           float64
	MinStrikeRatio float64
	MaxStrikeRatio float64
	// QuotedInUnderlying converts bid/ask/mark/last from units of the
	// underlying into quote currency by multiplying with Spot.
	QuotedInUnderlying bool
}

func DefaultNormalizeConfig(spot float64) NormalizeConfig {
	return NormalizeConfig{
		Spot:           spot,
		MinStrikeRatio: 0.5,
		MaxStrikeRatio: 1.5,
	}
}

// Normalize joins instrument metadata with book summaries on instrument name
// and returns the usable contracts in book order. Book entries without
// metadata, one-sided or crossed quotes and strikes outside the configured
// band around spot are skipped. The inputs are not modified.
func Normalize(instruments []models.DeribitInstrument, books []models.DeribitBookSummary, cfg NormalizeConfig) ([]models.OptionContract, error) {
	if cfg.Spot <= 0 {
		return nil, fmt.Errorf("normalize: %w (got %v)", ErrInvalidSpot, cfg.Spot)
	}
	if cfg.MinStrikeRatio == 0 && cfg.MaxStrikeRatio == 0 {
		cfg.MinStrikeRatio, cfg.MaxStrikeRatio = 0.5, 1.5
	}

	meta := make(map[string]*models.DeribitInstrument, len(instruments))
	for i := range instruments {
		meta[instruments[i].InstrumentName] = &instruments[i]
	}

	minStrike := cfg.Spot * cfg.MinStrikeRatio
	maxStrike := cfg.Spot * cfg.MaxStrikeRatio

	contracts := make([]models.OptionContract, 0, len(books))
	for i := range books {
		book := &books[i]
		inst, ok := meta[book.InstrumentName]
		if !ok {
			continue
		}

		if inst.Strike < minStrike || inst.Strike > maxStrike {
			continue
		}

		contract, err := newContract(inst, book)
		if err != nil || !contract.Usable() {
			continue
		}
		if cfg.QuotedInUnderlying {
			contract.Bid *= cfg.Spot
			contract.Ask *= cfg.Spot
			contract.Mark *= cfg.Spot
			contract.Last *= cfg.Spot
		}
		contracts = append(contracts, contract)
	}

	return contracts, nil
}

func newContract(inst *models.DeribitInstrument, book *models.DeribitBookSummary) (models.OptionContract, error) {
	_, expiry, _, typ, err := models.ParseInstrumentName(inst.InstrumentName)
	if err != nil {
		return models.OptionContract{}, err
	}
	if inst.OptionType != "" {
		declared, err := models.ParseOptionType(inst.OptionType)
		if err != nil {
			return models.OptionContract{}, err
		}
		if declared != typ {
			return models.OptionContract{}, fmt.Errorf("%s: option type %s disagrees with name", inst.InstrumentName, declared)
		}
	}

	c := models.OptionContract{
		InstrumentID: inst.InstrumentName,
		Type:         typ,
		Strike:       inst.Strike,
		ExpiryCode:   expiry,
		ContractSize: inst.ContractSize,
		Bid:          value(book.BidPrice),
		Ask:          value(book.AskPrice),
		Mark:         value(book.MarkPrice),
		Last:         value(book.Last),
		Volume:       nonNegative(value(book.Volume)),
		OpenInterest: nonNegative(value(book.OpenInterest)),
		ImpliedVol:   nonNegative(value(book.MarkIV)),
	}
	if c.ContractSize <= 0 {
		c.ContractSize = 1
	}
	if c.Mark <= 0 && c.Bid > 0 && c.Ask > 0 {
		c.Mark = (c.Bid + c.Ask) / 2
	}
	if inst.ExpirationTimestamp > 0 {
		c.ExpiresAt = time.UnixMilli(inst.ExpirationTimestamp).UTC()
	}
	if book.Greeks != nil {
		c.Greeks = models.Greeks{
			Delta: book.Greeks.Delta,
			Gamma: book.Greeks.Gamma,
			Theta: book.Greeks.Theta,
			Vega:  book.Greeks.Vega,
		}
	}
	return c, nil
}

func value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
