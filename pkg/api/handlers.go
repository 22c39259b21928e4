package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/reqsink/reqsink/pkg/collector"
	"github.com/reqsink/reqsink/pkg/httputil"
)

// Error codes returned in JSON error bodies.
const (
	errCodeCollectorNotFound = "collector_not_found"
	errCodeCaptureNotFound   = "capture_not_found"
	errCodeValidation        = "validation_failed"
	errCodeBadToken          = "invalid_token"
	errCodeBadRequest        = "invalid_request"
)

// handleCapture ingests one inbound request addressed to a collector.
// The response body is deliberately empty: the sender is an arbitrary
// third-party system and learns nothing beyond "accepted".
func (a *API) handleCapture(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")

	_, err := a.pipeline.Ingest(uid, r)
	switch {
	case err == nil:
		if a.capturesTotal != nil {
			a.capturesTotal.Inc()
		}
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, collector.ErrCollectorNotFound):
		httputil.WriteNotFound(w, errCodeCollectorNotFound, "collector not found")
	case collector.IsValidation(err):
		httputil.WriteBadRequest(w, errCodeValidation, err.Error())
	default:
		a.log.Warn("capture ingest failed", "uid", uid, "error", err)
		httputil.WriteBadRequest(w, errCodeBadRequest, "could not read request body")
	}
}

// handleListCaptures returns every capture of a collector in arrival order.
func (a *API) handleListCaptures(w http.ResponseWriter, r *http.Request) {
	captures, err := a.store.List(r.PathValue("uid"))
	if err != nil {
		httputil.WriteNotFound(w, errCodeCollectorNotFound, "collector not found")
		return
	}
	// An empty collector serializes as [], not null.
	if captures == nil {
		captures = []*collector.Capture{}
	}
	httputil.WriteOK(w, captures)
}

// handleGetCapture returns one capture by its sequence id.
func (a *API) handleGetCapture(w http.ResponseWriter, r *http.Request) {
	requestID, err := strconv.Atoi(r.PathValue("requestId"))
	if err != nil {
		httputil.WriteBadRequest(w, errCodeBadRequest, "requestId must be an integer")
		return
	}

	c, err := a.store.GetByID(r.PathValue("uid"), requestID)
	switch {
	case err == nil:
		httputil.WriteOK(w, c)
	case errors.Is(err, collector.ErrCaptureNotFound):
		httputil.WriteNotFound(w, errCodeCaptureNotFound, "capture not found")
	default:
		httputil.WriteNotFound(w, errCodeCollectorNotFound, "collector not found")
	}
}

// handleGetLastCapture returns the most recent capture.
func (a *API) handleGetLastCapture(w http.ResponseWriter, r *http.Request) {
	c, err := a.store.GetLast(r.PathValue("uid"))
	switch {
	case err == nil:
		httputil.WriteOK(w, c)
	case errors.Is(err, collector.ErrEmptyCollector):
		httputil.WriteNotFound(w, errCodeCaptureNotFound, "collector has no captures")
	default:
		httputil.WriteNotFound(w, errCodeCollectorNotFound, "collector not found")
	}
}

// deleteCaptureRequest is the body of POST /i/{uid}/del. RequestID is a
// string for wire compatibility with existing clients.
type deleteCaptureRequest struct {
	RequestID string `json:"requestId"`
}

// handleDeleteCapture removes a single capture by id.
func (a *API) handleDeleteCapture(w http.ResponseWriter, r *http.Request) {
	var req deleteCaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, errCodeBadRequest, "invalid JSON body")
		return
	}
	requestID, err := strconv.Atoi(req.RequestID)
	if err != nil {
		httputil.WriteBadRequest(w, errCodeBadRequest, "requestId must be an integer")
		return
	}

	removed, err := a.store.DeleteCapture(r.PathValue("uid"), requestID)
	switch {
	case err != nil:
		httputil.WriteNotFound(w, errCodeCollectorNotFound, "collector not found")
	case !removed:
		httputil.WriteBadRequest(w, errCodeCaptureNotFound, "capture not found")
	default:
		w.WriteHeader(http.StatusOK)
	}
}

// handleNewUid creates a collector and returns its uid and bearer token.
// The token appears in this response and nowhere else, ever.
func (a *API) handleNewUid(w http.ResponseWriter, _ *http.Request) {
	uid, tok := a.store.CreateCollector()
	if a.collectorsTotal != nil {
		a.collectorsTotal.Inc()
	}
	httputil.WriteOK(w, map[string]string{"uid": uid, "token": tok})
}

// handleCheckUids filters a batch of at most ten uids down to the ones
// that exist.
func (a *API) handleCheckUids(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, checkUidsBodyLimit)

	var uids []string
	if err := json.NewDecoder(r.Body).Decode(&uids); err != nil {
		httputil.WriteBadRequest(w, errCodeBadRequest, "invalid JSON body")
		return
	}

	valid, err := a.store.ExistsMany(uids)
	if err != nil {
		httputil.WriteBadRequest(w, errCodeValidation, err.Error())
		return
	}
	httputil.WriteOK(w, valid)
}

// deleteCollectorRequest is the body of POST /i/delcol/{uid}: either a
// bare JSON string token or an object with a token field.
type deleteCollectorRequest struct {
	Token string `json:"token"`
}

// handleDeleteCollector tears down a collector, gated on its token.
func (a *API) handleDeleteCollector(w http.ResponseWriter, r *http.Request) {
	tok, ok := decodeToken(r)
	if !ok {
		httputil.WriteBadRequest(w, errCodeBadRequest, "invalid JSON body")
		return
	}

	deleted, err := a.store.DeleteCollector(r.PathValue("uid"), tok)
	switch {
	case err != nil:
		httputil.WriteNotFound(w, errCodeCollectorNotFound, "collector not found")
	case !deleted:
		httputil.WriteBadRequest(w, errCodeBadToken, "invalid token")
	default:
		w.WriteHeader(http.StatusOK)
	}
}

// decodeToken accepts both observed delete-collector body variants:
// `"<token>"` and `{"token":"<token>"}`.
func decodeToken(r *http.Request) (string, bool) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var req deleteCollectorRequest
	if err := json.Unmarshal(raw, &req); err == nil && req.Token != "" {
		return req.Token, true
	}
	return "", false
}

// handleHealth reports liveness and current store occupancy.
func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	stats := a.store.StoreStats()
	httputil.WriteOK(w, map[string]any{
		"status":      "ok",
		"collectors":  stats.Collectors,
		"captures":    stats.Captures,
		"subscribers": a.hub.ConnectionCount(),
	})
}
