// Package scanner runs periodic, single-flight scan cycles per currency and
// keeps the committed results.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/svirmi/options-scanner/internal/arbitrage"
	"github.com/svirmi/options-scanner/internal/ingestion"
	"github.com/svirmi/options-scanner/internal/logger"
	"github.com/svirmi/options-scanner/internal/models"
	"github.com/svirmi/options-scanner/internal/processor"
)

var (
	// ErrStaleScan is returned for a cycle that finished after Stop or lost
	// against a newer generation.
	ErrStaleScan = errors.New("scan result discarded as stale")
	ErrRunning   = errors.New("scheduler already running")
)

// SnapshotLoader is satisfied by ingestion.DataIngestionService
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context, currency string) (*ingestion.Snapshot, error)
}

// Publisher receives every committed report
type Publisher interface {
	Publish(report models.ScanReport)
}

type Options struct {
	Interval           time.Duration
	QuotedInUnderlying bool
	// ScanTimeout bounds one cycle; zero means the interval
	ScanTimeout time.Duration
}

type Scheduler struct {
	currency string
	loader   SnapshotLoader
	pipeline *processor.Pipeline
	opts     Options

	group      singleflight.Group
	epoch      atomic.Uint64
	generation atomic.Uint64
	session    Session
	publishers []Publisher

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool

	logger zerolog.Logger
}

func NewScheduler(currency string, loader SnapshotLoader, detector *arbitrage.Detector, opts Options, publishers ...Publisher) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = opts.Interval
	}

	s := &Scheduler{
		currency:   strings.ToUpper(currency),
		loader:     loader,
		opts:       opts,
		publishers: publishers,
	}
	s.logger = logger.GetLogger("scanner").With().Str("currency", s.currency).Logger()
	s.pipeline = NewPipeline(detector, opts.QuotedInUnderlying, func(err error) {
		s.logger.Debug().Err(err).Msg("Pipeline error")
	})
	return s
}

func (s *Scheduler) Currency() string {
	return s.currency
}

func (s *Scheduler) Session() *Session {
	return &s.session
}

func (s *Scheduler) Pipeline() *processor.Pipeline {
	return s.pipeline
}

// Restore seeds the session with a persisted report so it is served before
// the first cycle completes. Later generations continue from its number.
func (s *Scheduler) Restore(report models.ScanReport) {
	if !strings.EqualFold(report.Currency, s.currency) {
		return
	}
	for {
		cur := s.generation.Load()
		if report.Generation <= cur || s.generation.CompareAndSwap(cur, report.Generation) {
			break
		}
	}
	s.session.commit(report)
}

// Start runs a cycle immediately and then on every interval tick
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrRunning
	}
	s.epoch.Add(1)

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(ctx, s.done)

	s.logger.Info().Dur("interval", s.opts.Interval).Msg("Scheduler started")
	return nil
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.Trigger(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn().Err(err).Msg("Scheduled scan failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Stop halts the ticker. A cycle still in flight finishes but its result
// is discarded.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.epoch.Add(1)
	s.running = false
	s.cancel()
	done := s.done
	s.mu.Unlock()

	<-done
	s.logger.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Trigger runs a cycle now. Concurrent callers share one in-flight cycle
// and receive the same report. The cycle is not bound to any caller: when
// ctx ends first, Trigger returns the committed report with ctx.Err() and
// the cycle carries on for the others.
func (s *Scheduler) Trigger(ctx context.Context) (models.ScanReport, error) {
	ch := s.group.DoChan("scan", func() (interface{}, error) {
		return s.scan(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Shared {
			s.logger.Debug().Msg("Joined in-flight scan")
		}
		report, _ := res.Val.(models.ScanReport)
		return report, res.Err
	case <-ctx.Done():
		prev, _ := s.session.Latest()
		return prev, ctx.Err()
	}
}

func (s *Scheduler) scan(ctx context.Context) (models.ScanReport, error) {
	epoch := s.epoch.Load()
	gen := s.generation.Add(1)
	started := time.Now()

	ctx, cancel := context.WithTimeout(ctx, s.opts.ScanTimeout)
	defer cancel()

	snap, err := s.loader.LoadSnapshot(ctx, s.currency)
	if err != nil {
		return s.failed(epoch, gen, fmt.Errorf("load snapshot: %w", err))
	}

	cycle := &processor.Cycle{
		Currency:     s.currency,
		Generation:   gen,
		StartedAt:    started,
		Spot:         snap.Spot,
		SpotFallback: snap.SpotFallback,
		Instruments:  snap.Instruments,
		Books:        snap.Books,
	}
	if err := s.pipeline.Run(ctx, cycle); err != nil && !errors.Is(err, processor.ErrEmptySnapshot) {
		return s.failed(epoch, gen, err)
	}

	report := models.ScanReport{
		Currency:      s.currency,
		Generation:    gen,
		Spot:          cycle.Spot,
		SpotFallback:  cycle.SpotFallback,
		ContractCount: len(cycle.Contracts),
		Opportunities: cycle.Opportunities,
		Summary:       Summarize(cycle.Opportunities),
		StartedAt:     started,
		FinishedAt:    time.Now(),
	}
	if report.Opportunities == nil {
		report.Opportunities = []models.Opportunity{}
	}

	if s.epoch.Load() != epoch || !s.session.commit(report) {
		s.logger.Debug().Uint64("generation", gen).Msg("Discarded stale scan")
		return report, ErrStaleScan
	}

	for _, p := range s.publishers {
		p.Publish(report)
	}

	s.logger.Info().
		Uint64("generation", gen).
		Float64("spot", report.Spot).
		Bool("spot_fallback", report.SpotFallback).
		Int("contracts", report.ContractCount).
		Int("opportunities", report.Summary.Count).
		Float64("best_profit", report.Summary.BestProfit).
		Dur("duration", report.FinishedAt.Sub(started)).
		Msg("Scan committed")
	return report, nil
}

// failed records err and returns the previously committed report. A cycle
// that outlived a Start or Stop is stale and leaves the session untouched.
func (s *Scheduler) failed(epoch, gen uint64, err error) (models.ScanReport, error) {
	prev, _ := s.session.Latest()
	if s.epoch.Load() != epoch {
		s.logger.Debug().Err(err).Uint64("generation", gen).Msg("Discarded stale failed scan")
		return prev, ErrStaleScan
	}
	s.session.fail(err)
	s.logger.Error().Err(err).Uint64("generation", gen).Msg("Scan failed, keeping previous results")
	return prev, err
}

// Latest returns the committed report narrowed by f
func (s *Scheduler) Latest(f models.Filter) (models.ScanReport, bool) {
	report, ok := s.session.Latest()
	if !ok {
		return report, false
	}
	return report.Filtered(f), true
}
