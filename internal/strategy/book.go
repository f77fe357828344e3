package strategy

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/svirmi/options-scanner/internal/models"
)

// Book is an editable, ordered set of legs. It is safe for concurrent use.
type Book struct {
	mu   sync.RWMutex
	legs []models.StrategyLeg
}

func NewBook(legs ...models.StrategyLeg) (*Book, error) {
	b := &Book{}
	for _, leg := range legs {
		if _, err := b.Add(leg); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Add validates the leg, assigns an id when missing and appends it
func (b *Book) Add(leg models.StrategyLeg) (string, error) {
	if leg.ID == "" {
		leg.ID = uuid.NewString()
	}
	if err := leg.Validate(); err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.indexOf(leg.ID) >= 0 {
		return "", fmt.Errorf("leg %s already exists", leg.ID)
	}
	b.legs = append(b.legs, leg)
	return leg.ID, nil
}

// Update edits a leg in place. The edit is discarded if it breaks the leg invariants.
func (b *Book) Update(id string, edit func(*models.StrategyLeg)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := b.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrLegNotFound, id)
	}
	updated := b.legs[i]
	edit(&updated)
	updated.ID = id
	if err := updated.Validate(); err != nil {
		return err
	}
	b.legs[i] = updated
	return nil
}

func (b *Book) Remove(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := b.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrLegNotFound, id)
	}
	b.legs = append(b.legs[:i], b.legs[i+1:]...)
	return nil
}

// Legs returns a copy of the legs in insertion order
func (b *Book) Legs() []models.StrategyLeg {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]models.StrategyLeg, len(b.legs))
	copy(out, b.legs)
	return out
}

func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.legs)
}

func (b *Book) indexOf(id string) int {
	for i := range b.legs {
		if b.legs[i].ID == id {
			return i
		}
	}
	return -1
}
