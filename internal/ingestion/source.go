package ingestion

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/svirmi/options-scanner/internal/models"
)

// MarketDataSource fetches one currency's option market snapshot
type MarketDataSource interface {
	ID() string
	SpotPrice(ctx context.Context, currency string) (float64, error)
	Instruments(ctx context.Context, currency string) ([]models.DeribitInstrument, error)
	BookSummaries(ctx context.Context, currency string) ([]models.DeribitBookSummary, error)
	Status() SourceStatus
}

type SourceStatus struct {
	Connected     bool      `json:"connected"`
	LastMessage   time.Time `json:"last_message"`
	MessagesCount int64     `json:"messages_count"`
	BytesReceived int64     `json:"bytes_received"`
	Errors        int64     `json:"errors"`
	LastError     string    `json:"last_error,omitempty"`
}

// statusTracker records request outcomes without locking
type statusTracker struct {
	// Atomic counters
	messagesCount atomic.Int64
	bytesReceived atomic.Int64
	errorCount    atomic.Int64

	connected   atomic.Bool
	lastMessage atomic.Value // stores time.Time
	lastError   atomic.Value // stores string
}

func newStatusTracker() *statusTracker {
	s := &statusTracker{}
	s.lastMessage.Store(time.Time{})
	s.lastError.Store("")
	return s
}

func (s *statusTracker) success(bytes int) {
	s.connected.Store(true)
	s.lastMessage.Store(time.Now())
	s.messagesCount.Add(1)
	s.bytesReceived.Add(int64(bytes))
}

func (s *statusTracker) failure(err error) {
	s.connected.Store(false)
	s.errorCount.Add(1)
	s.lastError.Store(err.Error())
}

func (s *statusTracker) snapshot() SourceStatus {
	return SourceStatus{
		Connected:     s.connected.Load(),
		LastMessage:   s.lastMessage.Load().(time.Time),
		MessagesCount: s.messagesCount.Load(),
		BytesReceived: s.bytesReceived.Load(),
		Errors:        s.errorCount.Load(),
		LastError:     s.lastError.Load().(string),
	}
}
