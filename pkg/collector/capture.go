package collector

import "time"

// Capture records one intercepted request. Captures are immutable once
// stored; the only mutation the store ever performs is removal.
type Capture struct {
	// Timestamp is when the request was received.
	Timestamp time.Time `json:"timestamp"`

	// RequestID is the capture's sequence id, scoped to its collector.
	// Ids start at 1, increase strictly in arrival order, and are never
	// reused even after earlier captures are deleted.
	RequestID int `json:"requestId"`

	// Method is the HTTP method of the captured request.
	Method string `json:"method"`

	// Headers are the request headers, flattened to single values.
	// Repeated header names are joined with ";".
	Headers map[string]string `json:"headers"`

	// Body is the request body, best-effort decoded as UTF-8 text.
	Body string `json:"body"`

	// BodySize is the body size in bytes.
	BodySize int `json:"bodySize"`

	// FormData holds decoded form fields when the body was form-encoded,
	// nil otherwise.
	FormData map[string]string `json:"formData,omitempty"`

	// QueryParams holds the request's query parameters.
	QueryParams map[string]string `json:"queryParams,omitempty"`
}

// CaptureInput is a fully decoded request ready to be appended to a
// collector. The store assigns RequestID and Timestamp at append time.
type CaptureInput struct {
	Method      string
	Headers     map[string]string
	Body        string
	BodySize    int
	FormData    map[string]string
	QueryParams map[string]string
}
