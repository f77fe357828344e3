package websocket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/svirmi/options-scanner/internal/models"
)

// Client represents a single websocket connection
type Client struct {
	// The websocket connection
	conn *websocket.Conn

	// The hub managing this client
	hub *Hub

	// Buffered channel of outbound messages, closed by the hub
	send chan []byte

	// Replies to this client's own requests; never closed
	direct chan []byte

	// Unique client identifier
	id string

	ctx    context.Context
	cancel context.CancelFunc

	maxSize   int64
	processor *MessageProcessor

	filterMu sync.RWMutex
	filter   ClientFilter

	connectedAt time.Time
	lastPing    atomic.Value // stores time.Time

	stats struct {
		messagesReceived atomic.Int64
		messagesSent     atomic.Int64
		bytesReceived    atomic.Int64
		bytesSent        atomic.Int64
		errors           atomic.Int64
	}

	logger zerolog.Logger
}

func NewClient(
	hub *Hub,
	conn *websocket.Conn,
	maxMessageSize int64,
	proc *MessageProcessor,
	bufferSize int,
	log zerolog.Logger,
) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	client := &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, bufferSize),
		direct:      make(chan []byte, 16),
		id:          uuid.New().String(),
		ctx:         ctx,
		cancel:      cancel,
		maxSize:     maxMessageSize,
		processor:   proc,
		connectedAt: time.Now(),
	}
	client.lastPing.Store(time.Now())
	client.logger = log.With().Str("client_id", client.id).Str("remote_addr", conn.RemoteAddr().String()).Logger()
	return client
}

func (c *Client) Filter() ClientFilter {
	c.filterMu.RLock()
	defer c.filterMu.RUnlock()
	return c.filter
}

func (c *Client) setFilter(f ClientFilter) {
	c.filterMu.Lock()
	c.filter = f
	c.filterMu.Unlock()
}

// deliver queues the report narrowed by the client filter. It returns false
// when the client cannot keep up. Only the hub goroutine calls it.
func (c *Client) deliver(report models.ScanReport) bool {
	filter := c.Filter()
	if !filter.Accepts(report.Currency) {
		return true
	}

	data, err := encode(TypeScanReport, report.Filtered(filter.Filter))
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to encode report")
		return true
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// reply queues a direct response, dropping it when the buffer is full
func (c *Client) reply(typ string, payload interface{}) {
	data, err := encode(typ, payload)
	if err != nil {
		c.logError("encode error", err)
		return
	}
	select {
	case c.direct <- data:
	default:
		c.stats.errors.Add(1)
	}
}

// ReadPump reads client messages until the connection fails
func (c *Client) ReadPump(pongWait time.Duration) {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stopped:
		}
		c.cancel()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.maxSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.lastPing.Store(time.Now())
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				c.logError("read error", err)
			}
			return
		}

		c.stats.messagesReceived.Add(1)
		c.stats.bytesReceived.Add(int64(len(message)))

		msg, err := c.processor.ProcessMessage(message)
		if err != nil {
			c.logError("process error", err)
			c.reply(TypeError, map[string]string{"error": err.Error()})
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg *Message) {
	switch msg.Type {
	case TypeFilter:
		filter, err := c.processor.DecodeFilter(msg)
		if err != nil {
			c.logError("filter error", err)
			c.reply(TypeError, map[string]string{"error": err.Error()})
			return
		}
		c.setFilter(filter)
		c.logger.Debug().Interface("filter", filter).Msg("Filter updated")
		c.reply(TypeFilterAck, filter)
		c.replyLatest()

	case TypeSnapshot:
		c.replyLatest()
	}
}

// replyLatest sends the current reports through the client filter
func (c *Client) replyLatest() {
	if c.hub.latest == nil {
		return
	}
	filter := c.Filter()
	for _, report := range c.hub.latest() {
		if filter.Accepts(report.Currency) {
			c.reply(TypeScanReport, report.Filtered(filter.Filter))
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection
func (c *Client) WritePump(writeWait, pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if !c.write(message, writeWait) {
				return
			}

		case message := <-c.direct:
			if !c.write(message, writeWait) {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logError("ping error", err)
				return
			}
		}
	}
}

func (c *Client) write(message []byte, writeWait time.Duration) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		c.logError("write error", err)
		return false
	}
	c.stats.messagesSent.Add(1)
	c.stats.bytesSent.Add(int64(len(message)))
	return true
}

// GetStats returns current client statistics
func (c *Client) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"id":                c.id,
		"connected_at":      c.connectedAt,
		"messages_received": c.stats.messagesReceived.Load(),
		"messages_sent":     c.stats.messagesSent.Load(),
		"bytes_received":    c.stats.bytesReceived.Load(),
		"bytes_sent":        c.stats.bytesSent.Load(),
		"errors":            c.stats.errors.Load(),
		"last_ping":         c.lastPing.Load(),
		"filter":            c.Filter(),
	}
}

func (c *Client) logError(context string, err error) {
	c.stats.errors.Add(1)
	c.logger.Warn().Err(err).Msg(context)
}
