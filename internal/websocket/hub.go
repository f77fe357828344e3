package websocket

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/svirmi/options-scanner/internal/logger"
	"github.com/svirmi/options-scanner/internal/models"
)

// ReportSource returns the latest committed report per currency; new
// clients receive these on connect.
type ReportSource func() []models.ScanReport

type Hub struct {
	clients    map[*Client]bool
	broadcast  chan models.ScanReport
	register   chan *Client
	unregister chan *Client
	latest     ReportSource
	stopped    chan struct{}

	maxConnections int
	count          atomic.Int64
	delivered      atomic.Int64
	evicted        atomic.Int64

	logger zerolog.Logger
}

func NewHub(maxConnections int, bufferSize int, latest ReportSource) *Hub {
	return &Hub{
		broadcast:      make(chan models.ScanReport, bufferSize),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		clients:        make(map[*Client]bool),
		latest:         latest,
		stopped:        make(chan struct{}),
		maxConnections: maxConnections,
		logger:         logger.GetLogger("hub"),
	}
}

func (h *Hub) Run(ctx context.Context) {
	h.logger.Info().Msg("Starting WebSocket hub")
	defer close(h.stopped)

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Msg("Shutting down WebSocket hub")
			for client := range h.clients {
				h.remove(client)
			}
			return

		case client := <-h.register:
			if h.Full() {
				close(client.send)
				h.logger.Warn().Str("client_id", client.id).Msg("Connection limit reached")
				continue
			}
			h.clients[client] = true
			h.count.Store(int64(len(h.clients)))
			h.logger.Info().
				Str("client_id", client.id).
				Int("total_clients", len(h.clients)).
				Msg("Client registered")
			h.sendLatest(client)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.remove(client)
				h.logger.Info().
					Str("client_id", client.id).
					Int("total_clients", len(h.clients)).
					Msg("Client unregistered")
			}

		case report := <-h.broadcast:
			for client := range h.clients {
				if !client.deliver(report) {
					h.remove(client)
					h.evicted.Add(1)
					h.logger.Warn().
						Str("client_id", client.id).
						Int("total_clients", len(h.clients)).
						Msg("Removed slow client")
				}
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.count.Store(int64(len(h.clients)))
}

func (h *Hub) sendLatest(client *Client) {
	if h.latest == nil {
		return
	}
	for _, report := range h.latest() {
		if !client.deliver(report) {
			return
		}
	}
}

// Consume forwards reports from a broadcast subscription until it closes
func (h *Hub) Consume(ctx context.Context, reports <-chan models.ScanReport) {
	for {
		select {
		case <-ctx.Done():
			return
		case report, ok := <-reports:
			if !ok {
				return
			}
			select {
			case h.broadcast <- report:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// Full reports whether the connection limit is reached
func (h *Hub) Full() bool {
	return h.maxConnections > 0 && h.ClientCount() >= h.maxConnections
}
