// Package api exposes the public HTTP surface of reqsink: the capture
// endpoints under /i, the WebSocket subscribe channel at /ws, and the
// health and metrics endpoints.
package api

import (
	"log/slog"
	"net/http"

	"github.com/reqsink/reqsink/pkg/collector"
	"github.com/reqsink/reqsink/pkg/ingest"
	"github.com/reqsink/reqsink/pkg/metrics"
	"github.com/reqsink/reqsink/pkg/notify"
)

// checkUidsBodyLimit bounds the /i/checkuids request body; ten 8-char
// uids plus JSON framing fit comfortably.
const checkUidsBodyLimit = 1000

// API wires the capture store, ingest pipeline and notification hub to
// their HTTP routes.
type API struct {
	store    *collector.Store
	pipeline *ingest.Pipeline
	hub      *notify.Hub
	log      *slog.Logger

	capturesTotal   *metrics.Counter
	collectorsTotal *metrics.Counter
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *API) {
		if log != nil {
			a.log = log
		}
	}
}

// WithCounters wires the capture and collector-creation counters.
// Either may be nil.
func WithCounters(captures, collectors *metrics.Counter) Option {
	return func(a *API) {
		a.capturesTotal = captures
		a.collectorsTotal = collectors
	}
}

// New creates an API around the given core components.
func New(store *collector.Store, pipeline *ingest.Pipeline, hub *notify.Hub, opts ...Option) *API {
	a := &API{
		store:    store,
		pipeline: pipeline,
		hub:      hub,
		log:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the fully routed handler. registry may be nil, in
// which case /metrics is not served.
func (a *API) Handler(registry *metrics.Registry) http.Handler {
	mux := http.NewServeMux()

	// Collector lifecycle and lookups. Literal segments take precedence
	// over the {uid} wildcard, so newuid/checkuids/delcol never collide
	// with capture traffic.
	mux.HandleFunc("GET /i/newuid", a.handleNewUid)
	mux.HandleFunc("POST /i/checkuids", a.handleCheckUids)
	mux.HandleFunc("POST /i/delcol/{uid}", a.handleDeleteCollector)
	mux.HandleFunc("DELETE /i/delcol/{uid}", a.handleDeleteCollector)

	// Capture readout.
	mux.HandleFunc("GET /i/{uid}/out", a.handleListCaptures)
	mux.HandleFunc("GET /i/{uid}/out/last", a.handleGetLastCapture)
	mux.HandleFunc("GET /i/{uid}/out/{requestId}", a.handleGetCapture)
	mux.HandleFunc("POST /i/{uid}/del", a.handleDeleteCapture)

	// The capture endpoint itself accepts any common method.
	for _, method := range []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"} {
		mux.HandleFunc(method+" /i/{uid}", a.handleCapture)
	}

	// Real-time subscribe channel.
	mux.Handle("GET /ws", a.hub)

	// Operational endpoints.
	mux.HandleFunc("GET /health", a.handleHealth)
	if registry != nil {
		mux.Handle("GET /metrics", registry.Handler())
	}

	return mux
}
