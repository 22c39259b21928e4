// Package ingest turns raw inbound HTTP traffic into stored captures. It
// reads the request to completion, flattens headers, query parameters and
// form fields, and appends the finished record to the capture store. The
// append happens only after the full record is assembled; an aborted or
// oversized body never leaves a partial capture behind.
package ingest

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/reqsink/reqsink/pkg/collector"
)

// DefaultMaxBodySize caps accepted capture bodies, keeping a hostile
// sender from filling memory one request at a time. Rate limiting the
// sender is a separate, still-open concern.
const DefaultMaxBodySize = 50_000

// headerValueSeparator joins repeated header, query and form values into
// the single-valued maps of the stored record.
const headerValueSeparator = ";"

// Pipeline decodes inbound requests and feeds them to the store.
type Pipeline struct {
	store       *collector.Store
	maxBodySize int64
	log         *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMaxBodySize overrides the accepted body cap.
func WithMaxBodySize(n int64) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxBodySize = n
		}
	}
}

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(p *Pipeline) {
		if log != nil {
			p.log = log
		}
	}
}

// New creates a Pipeline writing to store.
func New(store *collector.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:       store,
		maxBodySize: DefaultMaxBodySize,
		log:         slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest captures one inbound request under uid. It fails with
// collector.ErrCollectorNotFound for unknown uids, a ValidationError for
// oversized bodies, and a wrapped read error when the body cannot be
// consumed; in every failure case the store is left untouched.
func (p *Pipeline) Ingest(uid string, r *http.Request) (*collector.Capture, error) {
	// Cheap existence probe before reading the body. The authoritative
	// check is the Append itself; a collector deleted mid-read simply
	// fails there.
	if !p.store.Exists(uid) {
		return nil, collector.ErrCollectorNotFound
	}

	in, err := p.decode(r)
	if err != nil {
		return nil, err
	}
	return p.store.Append(uid, in)
}

// decode assembles a CaptureInput from the request. Form and query
// decoding are best effort: a body that fails to parse as a form simply
// yields no form fields.
func (p *Pipeline) decode(r *http.Request) (collector.CaptureInput, error) {
	var in collector.CaptureInput

	body, err := p.readBody(r)
	if err != nil {
		return in, err
	}

	in.Method = r.Method
	in.Body = string(body)
	in.BodySize = len(body)
	in.Headers = flatten(r.Header)
	if r.Host != "" {
		in.Headers["Host"] = r.Host
	}
	if q := r.URL.Query(); len(q) > 0 {
		in.QueryParams = flatten(q)
	}
	in.FormData = parseForm(r, body)

	return in, nil
}

// readBody consumes the request body up to the configured cap.
func (p *Pipeline) readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer func() { _ = r.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(r.Body, p.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}
	if int64(len(body)) > p.maxBodySize {
		return nil, &collector.ValidationError{
			Msg: fmt.Sprintf("request body exceeds %d bytes", p.maxBodySize),
		}
	}
	return body, nil
}

// parseForm extracts form fields from an urlencoded or multipart body.
// Returns nil when the body is not form-encoded or fails to parse.
func parseForm(r *http.Request, body []byte) map[string]string {
	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil
	}

	switch {
	case mediaType == "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(body))
		if err != nil || len(values) == 0 {
			return nil
		}
		return flatten(values)

	case strings.HasPrefix(mediaType, "multipart/"):
		boundary := params["boundary"]
		if boundary == "" {
			return nil
		}
		clone := r.Clone(r.Context())
		clone.Body = io.NopCloser(bytes.NewReader(body))
		if err := clone.ParseMultipartForm(int64(len(body)) + 1024); err != nil {
			return nil
		}
		if len(clone.MultipartForm.Value) == 0 {
			return nil
		}
		fields := make(map[string]string, len(clone.MultipartForm.Value))
		for k, vs := range clone.MultipartForm.Value {
			fields[k] = strings.Join(vs, headerValueSeparator)
		}
		return fields
	}
	return nil
}

// flatten collapses a multi-valued map into the stored single-valued
// shape, joining repeats with ";". Lossy if a genuine value contains the
// separator; kept for wire compatibility with the captured-record JSON.
func flatten(m map[string][]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, vs := range m {
		out[k] = strings.Join(vs, headerValueSeparator)
	}
	return out
}
