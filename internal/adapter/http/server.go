package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/location-fix-service/internal/domain"
)

// Locator is the acquisition machine as seen by the presentation layer.
type Locator interface {
	sharedobs.ReadinessChecker
	Start()
	Stop()
	Toggle()
	Snapshot() domain.AcquisitionState
	Subscribe() (<-chan domain.AcquisitionState, func())
}

// Server exposes health, readiness, metrics, the location API, and the
// WebSocket snapshot feed.
type Server struct {
	httpServer *http.Server
	locator    Locator
	formatter  domain.Formatter
	categories domain.Categories
	hub        *Hub
	logger     *slog.Logger
}

// NewServer creates an HTTP server. hub may be nil to disable /ws.
func NewServer(addr string, locator Locator, formatter domain.Formatter, categories domain.Categories, hub *Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		locator:    locator,
		formatter:  formatter,
		categories: categories,
		hub:        hub,
		logger:     logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(locator))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/location", s.handleLocation)
	mux.HandleFunc("GET /api/location/details", s.handleDetails)
	mux.HandleFunc("POST /api/location/start", s.handleCommand(locator.Start))
	mux.HandleFunc("POST /api/location/stop", s.handleCommand(locator.Stop))
	mux.HandleFunc("POST /api/location/toggle", s.handleCommand(locator.Toggle))
	mux.HandleFunc("GET /api/categories", s.handleCategories)
	if hub != nil {
		mux.HandleFunc("GET /ws", hub.ServeWS)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
