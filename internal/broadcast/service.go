// Package broadcast fans committed scan reports out to subscribers such as
// the websocket hub and the report store.
package broadcast

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/svirmi/options-scanner/internal/logger"
	"github.com/svirmi/options-scanner/internal/models"
)

type Subscriber struct {
	ID string
	Ch chan models.ScanReport
}

type BroadcastService struct {
	input       chan models.ScanReport
	subscribers map[string]*Subscriber
	mu          sync.RWMutex
	bufferSize  int
	metrics     *metrics
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
	started     atomic.Bool
	logger      zerolog.Logger
}

func NewBroadcastService(bufferSize int) *BroadcastService {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &BroadcastService{
		input:       make(chan models.ScanReport, bufferSize),
		subscribers: make(map[string]*Subscriber),
		bufferSize:  bufferSize,
		metrics:     &metrics{},
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
		logger:      logger.GetLogger("broadcast"),
	}
}

type metrics struct {
	subscriberCount   int
	reportsPublished  int64
	messagesSent      int64
	droppedMessages   int64
	droppedInput      int64
	lastBroadcastTime time.Time
	mu                sync.RWMutex
}

// Metrics is a point-in-time copy of the broadcast counters
type Metrics struct {
	SubscriberCount   int       `json:"subscriber_count"`
	ReportsPublished  int64     `json:"reports_published"`
	MessagesSent      int64     `json:"messages_sent"`
	DroppedMessages   int64     `json:"dropped_messages"`
	DroppedInput      int64     `json:"dropped_input"`
	LastBroadcastTime time.Time `json:"last_broadcast_time"`
}

func (b *BroadcastService) Start() {
	if b.started.Swap(true) {
		return
	}
	go b.broadcastLoop()
}

// Stop ends the loop and closes every subscriber channel
func (b *BroadcastService) Stop() {
	b.cancel()
	if b.started.Load() {
		<-b.done
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subscribers {
		close(sub.Ch)
	}
	b.subscribers = make(map[string]*Subscriber)

	b.metrics.mu.Lock()
	b.metrics.subscriberCount = 0
	b.metrics.mu.Unlock()
}

func (b *BroadcastService) Subscribe() (string, <-chan models.ScanReport) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan models.ScanReport, b.bufferSize)
	b.subscribers[id] = &Subscriber{ID: id, Ch: ch}

	b.metrics.mu.Lock()
	b.metrics.subscriberCount++
	b.metrics.mu.Unlock()

	return id, ch
}

func (b *BroadcastService) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, exists := b.subscribers[id]; exists {
		close(sub.Ch)
		delete(b.subscribers, id)

		b.metrics.mu.Lock()
		b.metrics.subscriberCount--
		b.metrics.mu.Unlock()
	}
}

// Publish queues a report without blocking the caller. A full queue drops it.
func (b *BroadcastService) Publish(report models.ScanReport) {
	select {
	case <-b.ctx.Done():
		return
	default:
	}

	select {
	case b.input <- report:
	default:
		b.metrics.mu.Lock()
		b.metrics.droppedInput++
		b.metrics.mu.Unlock()
		b.logger.Warn().Str("currency", report.Currency).Uint64("generation", report.Generation).Msg("Broadcast queue full, report dropped")
	}
}

func (b *BroadcastService) broadcastLoop() {
	defer close(b.done)
	for {
		select {
		case <-b.ctx.Done():
			return
		case report := <-b.input:
			b.broadcast(report)
		}
	}
}

func (b *BroadcastService) broadcast(report models.ScanReport) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	b.metrics.mu.Lock()
	b.metrics.lastBroadcastTime = time.Now()
	b.metrics.reportsPublished++
	b.metrics.mu.Unlock()

	for _, sub := range b.subscribers {
		select {
		case sub.Ch <- report:
			b.metrics.mu.Lock()
			b.metrics.messagesSent++
			b.metrics.mu.Unlock()
		default:
			// Subscriber buffer is full, drop the report for it
			b.metrics.mu.Lock()
			b.metrics.droppedMessages++
			b.metrics.mu.Unlock()
			b.logger.Debug().Str("subscriber", sub.ID).Msg("Dropped report for slow subscriber")
		}
	}
}

func (b *BroadcastService) GetMetrics() Metrics {
	b.metrics.mu.RLock()
	defer b.metrics.mu.RUnlock()
	return Metrics{
		SubscriberCount:   b.metrics.subscriberCount,
		ReportsPublished:  b.metrics.reportsPublished,
		MessagesSent:      b.metrics.messagesSent,
		DroppedMessages:   b.metrics.droppedMessages,
		DroppedInput:      b.metrics.droppedInput,
		LastBroadcastTime: b.metrics.lastBroadcastTime,
	}
}
