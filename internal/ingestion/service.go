package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/svirmi/options-scanner/internal/logger"
	"github.com/svirmi/options-scanner/internal/models"
)

var ErrSourceUnavailable = errors.New("no market data source available")

// Snapshot is one consistent fetch of a currency's option market
type Snapshot struct {
	Currency     string
	Spot         float64
	SpotFallback bool
	Instruments  []models.DeribitInstrument
	Books        []models.DeribitBookSummary
	FetchedAt    time.Time
}

type ServiceOptions struct {
	// InstrumentTTL caches instrument metadata; zero disables the cache
	InstrumentTTL time.Duration
	// FallbackSpot is used when neither the source nor the last-known cache has a price
	FallbackSpot map[string]float64
}

// DataIngestionService loads snapshots from its sources in registration
// order, falling through to the next source on failure.
type DataIngestionService struct {
	sources     map[string]MarketDataSource
	order       []string
	mu          sync.RWMutex
	spots       *cache.Cache
	instruments *cache.Cache
	opts        ServiceOptions
	logger      zerolog.Logger
}

func NewDataIngestionService(opts ServiceOptions) *DataIngestionService {
	return &DataIngestionService{
		sources:     make(map[string]MarketDataSource),
		spots:       cache.New(cache.NoExpiration, 0),
		instruments: cache.New(opts.InstrumentTTL, 2*opts.InstrumentTTL+time.Minute),
		opts:        opts,
		logger:      logger.GetLogger("ingestion"),
	}
}

func (s *DataIngestionService) AddSource(source MarketDataSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sources[source.ID()]; exists {
		return fmt.Errorf("source with ID %s already exists", source.ID())
	}

	s.sources[source.ID()] = source
	s.order = append(s.order, source.ID())
	return nil
}

func (s *DataIngestionService) GetSourceStatus(sourceID string) (SourceStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	source, exists := s.sources[sourceID]
	if !exists {
		return SourceStatus{}, fmt.Errorf("source with ID %s not found", sourceID)
	}

	return source.Status(), nil
}

func (s *DataIngestionService) GetAllSourceStatuses() map[string]SourceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := make(map[string]SourceStatus)
	for id, source := range s.sources {
		statuses[id] = source.Status()
	}
	return statuses
}

func (s *DataIngestionService) orderedSources() []MarketDataSource {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]MarketDataSource, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.sources[id])
	}
	return out
}

// Spot returns the current spot. On failure it falls back to the last known
// price, then to the configured fallback; the bool reports a fallback.
func (s *DataIngestionService) Spot(ctx context.Context, currency string) (float64, bool, error) {
	currency = strings.ToUpper(currency)

	var lastErr error = ErrSourceUnavailable
	for _, src := range s.orderedSources() {
		spot, err := src.SpotPrice(ctx, currency)
		if err == nil {
			s.spots.Set(currency, spot, cache.NoExpiration)
			return spot, false, nil
		}
		lastErr = err
	}

	if v, ok := s.spots.Get(currency); ok {
		s.logger.Warn().Err(lastErr).Str("currency", currency).Float64("spot", v.(float64)).Msg("Using last known spot price")
		return v.(float64), true, nil
	}
	if fb := s.opts.FallbackSpot[currency]; fb > 0 {
		s.logger.Warn().Err(lastErr).Str("currency", currency).Float64("spot", fb).Msg("Using fallback spot price")
		return fb, true, nil
	}
	return 0, false, fmt.Errorf("spot price for %s: %w", currency, lastErr)
}

// loadInstruments reports whether the result came from the cache
func (s *DataIngestionService) loadInstruments(ctx context.Context, currency string) ([]models.DeribitInstrument, bool, error) {
	if v, ok := s.instruments.Get(currency); ok {
		return v.([]models.DeribitInstrument), true, nil
	}

	var lastErr error = ErrSourceUnavailable
	for _, src := range s.orderedSources() {
		instruments, err := src.Instruments(ctx, currency)
		if err != nil {
			lastErr = err
			continue
		}
		if s.opts.InstrumentTTL > 0 {
			s.instruments.Set(currency, instruments, cache.DefaultExpiration)
		}
		return instruments, false, nil
	}
	return nil, false, fmt.Errorf("instruments for %s: %w", currency, lastErr)
}

func (s *DataIngestionService) loadBooks(ctx context.Context, currency string) ([]models.DeribitBookSummary, error) {
	var lastErr error = ErrSourceUnavailable
	for _, src := range s.orderedSources() {
		books, err := src.BookSummaries(ctx, currency)
		if err == nil {
			return books, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("book summaries for %s: %w", currency, lastErr)
}

// LoadSnapshot fetches spot, instruments and book summaries concurrently.
// Instrument or book failures fail the whole snapshot. Cached instruments
// are refetched once when the books list an instrument they do not know,
// which happens when the exchange lists new strikes or expiries.
func (s *DataIngestionService) LoadSnapshot(ctx context.Context, currency string) (*Snapshot, error) {
	currency = strings.ToUpper(currency)
	snap := &Snapshot{Currency: currency}
	var cached bool

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap.Spot, snap.SpotFallback, err = s.Spot(gctx, currency)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Instruments, cached, err = s.loadInstruments(gctx, currency)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Books, err = s.loadBooks(gctx, currency)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if cached && unlisted(snap.Instruments, snap.Books) > 0 {
		s.logger.Info().Str("currency", currency).Msg("Book lists unknown instruments, refreshing metadata")
		s.InvalidateInstruments(currency)
		instruments, _, err := s.loadInstruments(ctx, currency)
		if err != nil {
			return nil, err
		}
		snap.Instruments = instruments
	}

	snap.FetchedAt = time.Now()
	s.logger.Debug().
		Str("currency", currency).
		Float64("spot", snap.Spot).
		Bool("spot_fallback", snap.SpotFallback).
		Int("instruments", len(snap.Instruments)).
		Int("books", len(snap.Books)).
		Msg("Snapshot loaded")
	return snap, nil
}

// InvalidateInstruments drops cached metadata for a currency
func (s *DataIngestionService) InvalidateInstruments(currency string) {
	s.instruments.Delete(strings.ToUpper(currency))
}

// unlisted counts book entries without instrument metadata
func unlisted(instruments []models.DeribitInstrument, books []models.DeribitBookSummary) int {
	known := make(map[string]struct{}, len(instruments))
	for i := range instruments {
		known[instruments[i].InstrumentName] = struct{}{}
	}
	n := 0
	for i := range books {
		if _, ok := known[books[i].InstrumentName]; !ok {
			n++
		}
	}
	return n
}
