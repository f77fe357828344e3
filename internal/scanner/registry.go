package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/svirmi/options-scanner/internal/arbitrage"
	"github.com/svirmi/options-scanner/internal/models"
)

var ErrUnknownCurrency = errors.New("unknown currency")

// Registry owns one scheduler per configured currency
type Registry struct {
	mu         sync.RWMutex
	schedulers map[string]*Scheduler
	order      []string
}

func NewRegistry(schedulers ...*Scheduler) *Registry {
	r := &Registry{schedulers: make(map[string]*Scheduler)}
	for _, s := range schedulers {
		r.Add(s)
	}
	return r
}

func (r *Registry) Add(s *Scheduler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.schedulers[s.Currency()]; !exists {
		r.order = append(r.order, s.Currency())
	}
	r.schedulers[s.Currency()] = s
}

func (r *Registry) Get(currency string) (*Scheduler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schedulers[strings.ToUpper(currency)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCurrency, currency)
	}
	return s, nil
}

func (r *Registry) Currencies() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

func (r *Registry) all() []*Scheduler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Scheduler, 0, len(r.order))
	for _, ccy := range r.order {
		out = append(out, r.schedulers[ccy])
	}
	return out
}

func (r *Registry) StartAll(ctx context.Context) error {
	for _, s := range r.all() {
		if err := s.Start(ctx); err != nil {
			return fmt.Errorf("start %s: %w", s.Currency(), err)
		}
	}
	return nil
}

func (r *Registry) StopAll() {
	for _, s := range r.all() {
		s.Stop()
	}
}

// Opportunities merges the filtered opportunities of the selected
// currencies (all when currency is empty), best profit first.
func (r *Registry) Opportunities(currency string, f models.Filter) ([]models.Opportunity, error) {
	schedulers := r.all()
	if currency != "" {
		s, err := r.Get(currency)
		if err != nil {
			return nil, err
		}
		schedulers = []*Scheduler{s}
	}

	out := []models.Opportunity{}
	for _, s := range schedulers {
		if report, ok := s.Latest(f); ok {
			out = append(out, report.Opportunities...)
		}
	}
	arbitrage.SortByProfit(out)
	return out, nil
}

// Reports returns the latest committed report of every currency that has one
func (r *Registry) Reports() []models.ScanReport {
	var out []models.ScanReport
	for _, s := range r.all() {
		if report, ok := s.session.Latest(); ok {
			out = append(out, report)
		}
	}
	return out
}
