package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/vitos/signal_engine/internal/domain"
	"github.com/vitos/signal_engine/internal/usecase"
	"go.uber.org/zap"
)

// EngineLister exposes the engines of the running process.
type EngineLister interface {
	Engines() []*usecase.SignalEngine
}

type Server struct {
	router    *http.ServeMux
	server    *http.Server
	engines   EngineLister
	tradeRepo domain.TradeRepository
	metrics   http.Handler
	hub       *Hub
	logger    *zap.Logger
}

// NewServer wires the read-only status API. tradeRepo, metrics and hub
// may be nil; their routes answer 404 then.
func NewServer(
	port int,
	engines EngineLister,
	tradeRepo domain.TradeRepository,
	metrics http.Handler,
	hub *Hub,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:    http.NewServeMux(),
		engines:   engines,
		tradeRepo: tradeRepo,
		metrics:   metrics,
		hub:       hub,
		logger:    logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /healthz", s.handleHealth)

	// Engine state
	s.router.HandleFunc("GET /signals", s.handleSignals)

	// Closed trades
	if s.tradeRepo != nil {
		s.router.HandleFunc("GET /trades", s.handleTrades)
	}

	if s.metrics != nil {
		s.router.Handle("GET /metrics", s.metrics)
	}

	// Live event stream
	if s.hub != nil {
		s.router.HandleFunc("GET /ws", s.hub.ServeWS)
	}
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
