package collector

import (
	"log/slog"
	"sync"
	"time"

	"github.com/reqsink/reqsink/internal/id"
	"github.com/reqsink/reqsink/pkg/token"
)

// MaxExistsBatch caps the number of uids a single ExistsMany call may
// probe, bounding brute-force enumeration of the uid space.
const MaxExistsBatch = 10

// Notifier receives store mutation events for fan-out to subscribers.
// Implementations must not block for long; the store calls these on the
// mutation path, after the mutation has committed.
type Notifier interface {
	CaptureCreated(uid string, requestID int)
	CaptureDeleted(uid string, requestID int)
	CollectorDeleted(uid string)
}

// entry is the registry record for one collector: its ordered captures,
// its bearer token, and the id counter for the next capture.
type entry struct {
	captures []*Capture
	token    string
	nextID   int
}

// lastCapture returns the most recent capture, or nil if there are none.
func (e *entry) lastCapture() *Capture {
	if len(e.captures) == 0 {
		return nil
	}
	return e.captures[len(e.captures)-1]
}

// Store is the concurrent registry mapping collector uids to their
// captured requests. It is the single source of truth: every mutation to
// collector state goes through its API, which serializes structural
// changes under one registry lock. All methods are safe for concurrent
// use.
type Store struct {
	mu         sync.RWMutex
	collectors map[string]*entry

	notifier Notifier
	log      *slog.Logger

	retention     time.Duration
	sweepInterval time.Duration

	now func() time.Time // overridable for tests
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithNotifier sets the notifier invoked after each mutation.
func WithNotifier(n Notifier) StoreOption {
	return func(s *Store) { s.notifier = n }
}

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) StoreOption {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithRetention sets how long a collector is kept after its most recent
// capture before the reaper may remove it.
func WithRetention(d time.Duration) StoreOption {
	return func(s *Store) { s.retention = d }
}

// WithSweepInterval sets how often the reaper runs.
func WithSweepInterval(d time.Duration) StoreOption {
	return func(s *Store) { s.sweepInterval = d }
}

// NewStore creates an empty Store with the default 24h retention window
// and 2h sweep interval.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		collectors:    make(map[string]*entry),
		log:           slog.New(slog.DiscardHandler),
		retention:     DefaultRetention,
		sweepInterval: DefaultSweepInterval,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateCollector allocates a fresh uid, issues its bearer token, and
// registers an empty collector. Generation and registration happen under
// one lock acquisition, so two concurrent calls can never both claim the
// same uid.
func (s *Store) CreateCollector() (uid, tok string) {
	tok = token.Issue()

	s.mu.Lock()
	uid = id.Uid()
	for {
		if _, taken := s.collectors[uid]; !taken {
			break
		}
		uid = id.Uid()
	}
	s.collectors[uid] = &entry{token: tok}
	s.mu.Unlock()

	s.log.Debug("collector created", "uid", uid)
	return uid, tok
}

// Exists reports whether uid names a live collector.
func (s *Store) Exists(uid string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collectors[uid]
	return ok
}

// ExistsMany filters uids down to the ones that name live collectors,
// preserving input order. Supplying more than MaxExistsBatch uids fails
// with a ValidationError regardless of how many are valid.
func (s *Store) ExistsMany(uids []string) ([]string, error) {
	if len(uids) > MaxExistsBatch {
		return nil, validationf("too many uids supplied: %d (max %d)", len(uids), MaxExistsBatch)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	valid := make([]string, 0, len(uids))
	for _, uid := range uids {
		if _, ok := s.collectors[uid]; ok {
			valid = append(valid, uid)
		}
	}
	return valid, nil
}

// Append stores a new capture under uid, assigning the next sequence id
// for that collector. The capture becomes visible to readers before the
// created event is published; subscribers never observe an id that a
// subsequent List would not return.
func (s *Store) Append(uid string, in CaptureInput) (*Capture, error) {
	c := &Capture{
		Timestamp:   s.now(),
		Method:      in.Method,
		Headers:     in.Headers,
		Body:        in.Body,
		BodySize:    in.BodySize,
		FormData:    in.FormData,
		QueryParams: in.QueryParams,
	}
	if c.Headers == nil {
		c.Headers = make(map[string]string)
	}

	s.mu.Lock()
	e, ok := s.collectors[uid]
	if !ok {
		s.mu.Unlock()
		return nil, ErrCollectorNotFound
	}
	e.nextID++
	c.RequestID = e.nextID
	e.captures = append(e.captures, c)
	s.mu.Unlock()

	s.log.Debug("capture stored", "uid", uid, "requestId", c.RequestID, "bytes", c.BodySize)
	if s.notifier != nil {
		s.notifier.CaptureCreated(uid, c.RequestID)
	}
	return c, nil
}

// List returns the collector's captures in arrival order. The returned
// slice is a snapshot; the captures themselves are shared and immutable.
func (s *Store) List(uid string) ([]*Capture, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.collectors[uid]
	if !ok {
		return nil, ErrCollectorNotFound
	}
	out := make([]*Capture, len(e.captures))
	copy(out, e.captures)
	return out, nil
}

// GetByID returns the capture with the given sequence id.
func (s *Store) GetByID(uid string, requestID int) (*Capture, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.collectors[uid]
	if !ok {
		return nil, ErrCollectorNotFound
	}
	for _, c := range e.captures {
		if c.RequestID == requestID {
			return c, nil
		}
	}
	return nil, ErrCaptureNotFound
}

// GetLast returns the most recently appended capture.
func (s *Store) GetLast(uid string) (*Capture, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.collectors[uid]
	if !ok {
		return nil, ErrCollectorNotFound
	}
	last := e.lastCapture()
	if last == nil {
		return nil, ErrEmptyCollector
	}
	return last, nil
}

// DeleteCapture removes the capture with the given id, reporting whether
// a removal happened. Sequence ids of remaining captures are unaffected
// and the removed id is never reissued.
func (s *Store) DeleteCapture(uid string, requestID int) (bool, error) {
	s.mu.Lock()
	e, ok := s.collectors[uid]
	if !ok {
		s.mu.Unlock()
		return false, ErrCollectorNotFound
	}
	removed := false
	for i, c := range e.captures {
		if c.RequestID == requestID {
			e.captures = append(e.captures[:i], e.captures[i+1:]...)
			removed = true
			break
		}
	}
	s.mu.Unlock()

	if removed {
		s.log.Debug("capture deleted", "uid", uid, "requestId", requestID)
		if s.notifier != nil {
			s.notifier.CaptureDeleted(uid, requestID)
		}
	}
	return removed, nil
}

// DeleteCollector removes the collector and its token if suppliedToken
// matches the token issued at creation. A mismatch is a normal false
// return, not an error: forbidden is an expected outcome, distinguishable
// from the unknown-uid case.
func (s *Store) DeleteCollector(uid, suppliedToken string) (bool, error) {
	s.mu.Lock()
	e, ok := s.collectors[uid]
	if !ok {
		s.mu.Unlock()
		return false, ErrCollectorNotFound
	}
	if !token.Verify(e.token, suppliedToken) {
		s.mu.Unlock()
		s.log.Debug("collector delete refused: bad token", "uid", uid)
		return false, nil
	}
	delete(s.collectors, uid)
	s.mu.Unlock()

	s.log.Info("collector deleted", "uid", uid)
	if s.notifier != nil {
		s.notifier.CollectorDeleted(uid)
	}
	return true, nil
}

// Stats is a point-in-time summary of store contents.
type Stats struct {
	Collectors int `json:"collectors"`
	Captures   int `json:"captures"`
}

// StoreStats returns current collector and capture counts.
func (s *Store) StoreStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Collectors: len(s.collectors)}
	for _, e := range s.collectors {
		st.Captures += len(e.captures)
	}
	return st
}
