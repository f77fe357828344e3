package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/svirmi/options-scanner/internal/models"
)

// Inbound and outbound message types
const (
	TypeFilter     = "filter"
	TypeSnapshot   = "snapshot"
	TypeFilterAck  = "filter_ack"
	TypeScanReport = "scan_report"
	TypeError      = "error"
)

var ErrUnknownMessageType = errors.New("unknown message type")

type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Time    time.Time       `json:"time"`
}

// ClientFilter is the per-connection view selection. An empty currency
// receives every currency.
type ClientFilter struct {
	Currency string `json:"currency,omitempty"`
	models.Filter
}

// Accepts reports whether a report for currency should reach the client
func (f ClientFilter) Accepts(currency string) bool {
	return f.Currency == "" || strings.EqualFold(f.Currency, currency)
}

type filterPayload struct {
	Currency  string   `json:"currency"`
	Type      string   `json:"type"`
	MinProfit *float64 `json:"min_profit"`
}

// MessageProcessor validates and decodes client messages
type MessageProcessor struct {
	maxMessageSize int64
	stats          ProcessorStats
	mu             sync.Mutex
}

type ProcessorStats struct {
	ProcessedCount int64     `json:"processed_count"`
	ErrorCount     int64     `json:"error_count"`
	LastError      string    `json:"last_error,omitempty"`
	LastErrorTime  time.Time `json:"last_error_time,omitempty"`
	StartTime      time.Time `json:"start_time"`
}

func NewMessageProcessor(maxMessageSize int64) *MessageProcessor {
	return &MessageProcessor{
		maxMessageSize: maxMessageSize,
		stats:          ProcessorStats{StartTime: time.Now()},
	}
}

func (p *MessageProcessor) ProcessMessage(data []byte) (*Message, error) {
	if p.maxMessageSize > 0 && int64(len(data)) > p.maxMessageSize {
		return nil, p.fail(fmt.Errorf("message size exceeds limit: %d > %d", len(data), p.maxMessageSize))
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, p.fail(fmt.Errorf("invalid message format: %w", err))
	}
	if msg.Time.IsZero() {
		msg.Time = time.Now()
	}

	switch msg.Type {
	case "":
		return nil, p.fail(errors.New("message type is required"))
	case TypeFilter, TypeSnapshot:
	default:
		return nil, p.fail(fmt.Errorf("%w: %q", ErrUnknownMessageType, msg.Type))
	}

	p.mu.Lock()
	p.stats.ProcessedCount++
	p.mu.Unlock()
	return &msg, nil
}

// DecodeFilter parses a filter payload. Missing fields select everything.
func (p *MessageProcessor) DecodeFilter(msg *Message) (ClientFilter, error) {
	var payload filterPayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return ClientFilter{}, p.fail(fmt.Errorf("invalid filter payload: %w", err))
		}
	}

	filter := ClientFilter{Currency: strings.ToUpper(strings.TrimSpace(payload.Currency))}
	if payload.Type != "" && !strings.EqualFold(payload.Type, "all") {
		typ, ok := models.ParseArbitrageType(payload.Type)
		if !ok {
			return ClientFilter{}, p.fail(fmt.Errorf("invalid filter type %q", payload.Type))
		}
		filter.Type = typ
	}
	if payload.MinProfit != nil {
		filter.MinProfit = *payload.MinProfit
	}
	return filter, nil
}

func (p *MessageProcessor) fail(err error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.ErrorCount++
	p.stats.LastError = err.Error()
	p.stats.LastErrorTime = time.Now()
	return err
}

func (p *MessageProcessor) GetStats() ProcessorStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// encode wraps payload in an outbound envelope
func encode(typ string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: typ, Payload: raw, Time: time.Now().UTC()})
}
