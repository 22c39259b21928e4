// Package server assembles the reqsink components into a runnable HTTP
// server: capture store, expiry reaper, notification hub, ingest pipeline
// and the public API, with graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/reqsink/reqsink/pkg/api"
	"github.com/reqsink/reqsink/pkg/collector"
	"github.com/reqsink/reqsink/pkg/config"
	"github.com/reqsink/reqsink/pkg/ingest"
	"github.com/reqsink/reqsink/pkg/metrics"
	"github.com/reqsink/reqsink/pkg/notify"
)

// shutdownTimeout bounds graceful drain at Stop.
const shutdownTimeout = 10 * time.Second

// Server owns the full component graph and the listening socket.
type Server struct {
	cfg  *config.Config
	log  *slog.Logger
	hub  *notify.Hub
	core *collector.Store

	httpServer *http.Server
	handler    http.Handler

	cancelReaper context.CancelFunc

	mu      sync.Mutex
	running bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the operational logger for every component.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// New builds the component graph from cfg. The configuration must have
// passed Validate.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg: cfg,
		log: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}

	retention, err := cfg.RetentionDuration()
	if err != nil {
		return nil, fmt.Errorf("invalid retention: %w", err)
	}
	sweep, err := cfg.SweepIntervalDuration()
	if err != nil {
		return nil, fmt.Errorf("invalid sweep interval: %w", err)
	}

	s.hub = notify.NewHub(notify.WithLogger(s.log))
	s.core = collector.NewStore(
		collector.WithNotifier(s.hub),
		collector.WithLogger(s.log),
		collector.WithRetention(retention),
		collector.WithSweepInterval(sweep),
	)
	pipeline := ingest.New(s.core,
		ingest.WithMaxBodySize(cfg.MaxBodySize),
		ingest.WithLogger(s.log),
	)

	registry := metrics.NewRegistry()
	capturesTotal, err := registry.NewCounter(
		"reqsink_captures_total", "Total captures stored since start.")
	if err != nil {
		return nil, err
	}
	collectorsTotal, err := registry.NewCounter(
		"reqsink_collectors_created_total", "Total collectors created since start.")
	if err != nil {
		return nil, err
	}
	if _, err := registry.NewGaugeFunc(
		"reqsink_collectors_active", "Collectors currently live.",
		func() float64 { return float64(s.core.StoreStats().Collectors) }); err != nil {
		return nil, err
	}
	if _, err := registry.NewGaugeFunc(
		"reqsink_captures_stored", "Captures currently held in memory.",
		func() float64 { return float64(s.core.StoreStats().Captures) }); err != nil {
		return nil, err
	}
	if _, err := registry.NewGaugeFunc(
		"reqsink_subscribers_active", "Open WebSocket subscriber connections.",
		func() float64 { return float64(s.hub.ConnectionCount()) }); err != nil {
		return nil, err
	}

	a := api.New(s.core, pipeline, s.hub,
		api.WithLogger(s.log),
		api.WithCounters(capturesTotal, collectorsTotal),
	)
	s.handler = a.Handler(registry)

	return s, nil
}

// Handler returns the root HTTP handler. Exposed for tests that mount
// the server behind httptest instead of a real listener.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Store returns the capture store.
func (s *Server) Store() *collector.Store {
	return s.core
}

// Start begins listening and launches the expiry reaper. It blocks until
// the listener fails or Stop is called.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true

	reaperCtx, cancel := context.WithCancel(context.Background())
	s.cancelReaper = cancel
	s.core.StartReaper(reaperCtx)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Unlock()

	s.log.Info("server listening", "port", s.cfg.Port)
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests, stops the reaper and closes every
// subscriber connection.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false

	s.cancelReaper()

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)

	s.hub.Close()
	s.log.Info("server stopped")
	return err
}
