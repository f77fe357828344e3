package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/svirmi/options-scanner/internal/broadcast"
	"github.com/svirmi/options-scanner/internal/config"
	"github.com/svirmi/options-scanner/internal/ingestion"
	"github.com/svirmi/options-scanner/internal/logger"
	"github.com/svirmi/options-scanner/internal/models"
	"github.com/svirmi/options-scanner/internal/scanner"
	"github.com/svirmi/options-scanner/internal/strategy"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Dashboard may be served from another origin
	},
}

// StrategyStore persists named strategy leg books
type StrategyStore interface {
	SaveStrategy(name string, legs []models.StrategyLeg) error
	LoadStrategy(name string) ([]models.StrategyLeg, error)
	Strategies() ([]string, error)
}

// Deps are the services the HTTP surface reads from. Store, Broadcast and
// Sources are optional.
type Deps struct {
	Hub       *Hub
	Registry  *scanner.Registry
	Engine    *strategy.Engine
	Store     StrategyStore
	Broadcast *broadcast.BroadcastService
	Sources   func() map[string]ingestion.SourceStatus
}

type Server struct {
	cfg       *config.Config
	deps      Deps
	processor *MessageProcessor
	server    *http.Server
	startTime time.Time
	accepted  atomic.Int64
	rejected  atomic.Int64
	logger    zerolog.Logger
}

func NewServer(cfg *config.Config, deps Deps) *Server {
	return &Server{
		cfg:       cfg,
		deps:      deps,
		processor: NewMessageProcessor(cfg.MaxMessageSize),
		startTime: time.Now(),
		logger:    logger.GetLogger("websocket_server"),
	}
}

// Handler builds the router for every endpoint
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/ws", s.handleWebSocket)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/opportunities", s.handleOpportunities).Methods(http.MethodGet)
	api.HandleFunc("/reports/{currency}", s.handleReport).Methods(http.MethodGet)
	api.HandleFunc("/scan", s.handleScan).Methods(http.MethodPost)
	api.HandleFunc("/greeks", s.handleGreeks).Methods(http.MethodGet)
	api.HandleFunc("/strategy/analyze", s.handleAnalyze).Methods(http.MethodPost)
	api.HandleFunc("/strategy/templates", s.handleTemplateNames).Methods(http.MethodGet)
	api.HandleFunc("/strategy/templates/{name}", s.handleTemplate).Methods(http.MethodGet)
	api.HandleFunc("/strategies", s.handleStrategyNames).Methods(http.MethodGet)
	api.HandleFunc("/strategies/{name}", s.handleLoadStrategy).Methods(http.MethodGet)
	api.HandleFunc("/strategies/{name}", s.handleSaveStrategy).Methods(http.MethodPut)
	api.HandleFunc("/strategies/{name}/legs/{id}", s.handleUpdateLeg).Methods(http.MethodPatch)
	api.HandleFunc("/strategies/{name}/legs/{id}", s.handleRemoveLeg).Methods(http.MethodDelete)

	r.Use(s.logRequests)
	return r
}

func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.cfg.WSPort,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.logger.Info().Str("addr", s.cfg.WSPort).Msg("Starting HTTP server")

	go s.deps.Hub.Run(ctx)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.deps.Hub.Full() {
		s.rejected.Add(1)
		writeError(w, http.StatusServiceUnavailable, errors.New("connection limit reached"))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	client := NewClient(s.deps.Hub, conn, s.cfg.MaxMessageSize, s.processor, s.cfg.BufferSize, s.logger)

	select {
	case s.deps.Hub.register <- client:
	case <-s.deps.Hub.stopped:
		conn.Close()
		return
	}
	s.accepted.Add(1)

	go client.WritePump(s.cfg.WriteTimeout, s.cfg.PingInterval)
	go client.ReadPump(s.cfg.PongWait)

	client.logger.Info().Msg("New WebSocket connection established")
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server")
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("Request served")
	})
}
