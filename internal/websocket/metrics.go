package websocket

import (
	"net/http"
	"time"

	"github.com/svirmi/options-scanner/internal/broadcast"
	"github.com/svirmi/options-scanner/internal/ingestion"
	"github.com/svirmi/options-scanner/internal/processor"
)

// Metrics represents the server's runtime metrics
type Metrics struct {
	ActiveConnections   int64                             `json:"active_connections"`
	AcceptedConnections int64                             `json:"accepted_connections"`
	RejectedConnections int64                             `json:"rejected_connections"`
	EvictedClients      int64                             `json:"evicted_clients"`
	Messages            ProcessorStats                    `json:"messages"`
	StartTime           time.Time                         `json:"start_time"`
	MaxConnections      int                               `json:"max_connections"`
	MaxMessageSize      int64                             `json:"max_message_size"`
	Uptime              string                            `json:"uptime"`
	Scanners            map[string]ScannerMetrics         `json:"scanners"`
	Broadcast           *broadcast.Metrics                `json:"broadcast,omitempty"`
	Sources             map[string]ingestion.SourceStatus `json:"sources,omitempty"`
}

type ScannerMetrics struct {
	Running       bool                      `json:"running"`
	Generation    uint64                    `json:"generation"`
	Opportunities int                       `json:"opportunities"`
	LastScan      time.Time                 `json:"last_scan,omitempty"`
	Failures      int64                     `json:"failures"`
	LastError     string                    `json:"last_error,omitempty"`
	LastErrorAt   time.Time                 `json:"last_error_at,omitempty"`
	Pipeline      processor.PipelineMetrics `json:"pipeline"`
}

func (s *Server) collectMetrics() Metrics {
	m := Metrics{
		ActiveConnections:   int64(s.deps.Hub.ClientCount()),
		AcceptedConnections: s.accepted.Load(),
		RejectedConnections: s.rejected.Load(),
		EvictedClients:      s.deps.Hub.evicted.Load(),
		Messages:            s.processor.GetStats(),
		StartTime:           s.startTime,
		MaxConnections:      s.cfg.MaxConnections,
		MaxMessageSize:      s.cfg.MaxMessageSize,
		Uptime:              time.Since(s.startTime).Round(time.Second).String(),
		Scanners:            make(map[string]ScannerMetrics),
	}

	for _, ccy := range s.deps.Registry.Currencies() {
		sch, err := s.deps.Registry.Get(ccy)
		if err != nil {
			continue
		}
		sm := ScannerMetrics{
			Running:  sch.Running(),
			Failures: sch.Session().Failures(),
			Pipeline: sch.Pipeline().GetMetrics(),
		}
		if report, ok := sch.Session().Latest(); ok {
			sm.Generation = report.Generation
			sm.Opportunities = len(report.Opportunities)
			sm.LastScan = report.FinishedAt
		}
		if err := sch.Session().LastError(); err != nil {
			sm.LastError = err.Error()
			sm.LastErrorAt = sch.Session().LastErrorAt()
		}
		m.Scanners[ccy] = sm
	}

	if s.deps.Broadcast != nil {
		bm := s.deps.Broadcast.GetMetrics()
		m.Broadcast = &bm
	}
	if s.deps.Sources != nil {
		m.Sources = s.deps.Sources()
	}
	return m
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.collectMetrics())
}

type healthResponse struct {
	Status     string               `json:"status"`
	Clients    int                  `json:"clients"`
	Currencies map[string]string    `json:"currencies"`
	FailedAt   map[string]time.Time `json:"failed_at,omitempty"`
}

// handleHealth reports "degraded" when any currency has no committed scan
// or its last cycle failed.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:     "ok",
		Clients:    s.deps.Hub.ClientCount(),
		Currencies: make(map[string]string),
	}
	for _, ccy := range s.deps.Registry.Currencies() {
		sch, err := s.deps.Registry.Get(ccy)
		if err != nil {
			continue
		}
		state := "ok"
		if _, ok := sch.Session().Latest(); !ok {
			state = "pending"
		}
		if err := sch.Session().LastError(); err != nil {
			state = "error: " + err.Error()
			if resp.FailedAt == nil {
				resp.FailedAt = make(map[string]time.Time)
			}
			resp.FailedAt[ccy] = sch.Session().LastErrorAt()
		}
		if state != "ok" {
			resp.Status = "degraded"
		}
		resp.Currencies[ccy] = state
	}
	writeJSON(w, http.StatusOK, resp)
}
