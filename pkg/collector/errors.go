package collector

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by store lookups. Handlers map these to HTTP
// statuses; callers should match with errors.Is.
var (
	// ErrCollectorNotFound means the uid does not name a live collector.
	ErrCollectorNotFound = errors.New("collector not found")

	// ErrCaptureNotFound means the collector exists but holds no capture
	// with the requested id.
	ErrCaptureNotFound = errors.New("capture not found")

	// ErrEmptyCollector means the collector exists but has no captures yet.
	ErrEmptyCollector = errors.New("collector has no captures")
)

// ValidationError reports a request that is malformed or exceeds a limit,
// such as a checkuids batch over the cap. It is a caller error, never
// retried by the core.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Msg
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
