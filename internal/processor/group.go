package processor

import (
	"sort"
	"time"

	"github.com/svirmi/options-scanner/internal/models"
)

// GroupKey identifies a call/put pair
type GroupKey struct {
	Strike float64
	Expiry string
}

// StrikeExpiryGroup holds at most one call and one put. Either slot may be nil.
type StrikeExpiryGroup struct {
	Key  GroupKey
	Call *models.OptionContract
	Put  *models.OptionContract
}

// Complete reports whether both legs are present
func (g *StrikeExpiryGroup) Complete() bool {
	return g != nil && g.Call != nil && g.Put != nil
}

// Preference decides whether candidate replaces the contract already in a slot
type Preference func(current, candidate *models.OptionContract) bool

// FirstSeen keeps the first contract encountered for a slot
func FirstSeen(_, _ *models.OptionContract) bool { return false }

// TighterSpread replaces the slot when the candidate quote is narrower
func TighterSpread(current, candidate *models.OptionContract) bool {
	return candidate.Spread() < current.Spread()
}

type GroupOption func(*groupOptions)

type groupOptions struct {
	prefer Preference
}

// WithPreference overrides the first-seen tie-break
func WithPreference(p Preference) GroupOption {
	return func(o *groupOptions) {
		if p != nil {
			o.prefer = p
		}
	}
}

// Grouping is the grouped view of one snapshot
type Grouping struct {
	Groups map[GroupKey]*StrikeExpiryGroup
	// Order lists keys in first-seen order
	Order []GroupKey
	// Strikes is the ascending set of distinct strikes across all expiries
	Strikes []float64
	// Expiries is ordered by expiration time, then code
	Expiries  []string
	expiresAt map[string]time.Time
}

// Group builds the (strike, expiry) grouping. Contracts are referenced, not copied.
func Group(contracts []models.OptionContract, opts ...GroupOption) *Grouping {
	o := groupOptions{prefer: FirstSeen}
	for _, opt := range opts {
		opt(&o)
	}

	g := &Grouping{
		Groups:    make(map[GroupKey]*StrikeExpiryGroup),
		expiresAt: make(map[string]time.Time),
	}
	strikes := make(map[float64]struct{})

	for i := range contracts {
		c := &contracts[i]
		key := GroupKey{Strike: c.Strike, Expiry: c.ExpiryCode}

		grp, ok := g.Groups[key]
		if !ok {
			grp = &StrikeExpiryGroup{Key: key}
			g.Groups[key] = grp
			g.Order = append(g.Order, key)
		}

		slot := &grp.Call
		if c.Type == models.Put {
			slot = &grp.Put
		}
		if *slot == nil || o.prefer(*slot, c) {
			*slot = c
		}

		strikes[c.Strike] = struct{}{}
		if _, seen := g.expiresAt[c.ExpiryCode]; !seen {
			g.expiresAt[c.ExpiryCode] = c.ExpiresAt
			g.Expiries = append(g.Expiries, c.ExpiryCode)
		}
	}

	g.Strikes = make([]float64, 0, len(strikes))
	for s := range strikes {
		g.Strikes = append(g.Strikes, s)
	}
	sort.Float64s(g.Strikes)

	sort.SliceStable(g.Expiries, func(i, j int) bool {
		ti, tj := g.expiresAt[g.Expiries[i]], g.expiresAt[g.Expiries[j]]
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return g.Expiries[i] < g.Expiries[j]
	})

	return g
}

// Get returns the group for (strike, expiry)
func (g *Grouping) Get(strike float64, expiry string) (*StrikeExpiryGroup, bool) {
	grp, ok := g.Groups[GroupKey{Strike: strike, Expiry: expiry}]
	return grp, ok
}

// ExpiryTime returns the exchange expiration for a code, zero if unknown
func (g *Grouping) ExpiryTime(expiry string) time.Time {
	return g.expiresAt[expiry]
}

// ChainRow is one strike of an option chain
type ChainRow struct {
	Strike float64                `json:"strike"`
	Call   *models.OptionContract `json:"call,omitempty"`
	Put    *models.OptionContract `json:"put,omitempty"`
}

// Chain returns the strike ladder for one expiry in ascending strike order
func (g *Grouping) Chain(expiry string) []ChainRow {
	rows := make([]ChainRow, 0)
	for _, strike := range g.Strikes {
		grp, ok := g.Get(strike, expiry)
		if !ok {
			continue
		}
		rows = append(rows, ChainRow{Strike: strike, Call: grp.Call, Put: grp.Put})
	}
	return rows
}
