package collector

import (
	"context"
	"time"
)

// Reaper defaults. The sweep interval is deliberately independent of the
// retention window; a collector may live up to retention+interval before
// it is actually reclaimed.
const (
	DefaultRetention     = 24 * time.Hour
	DefaultSweepInterval = 2 * time.Hour
)

// StartReaper launches the background sweep that reclaims collectors whose
// most recent capture is older than the retention window. The goroutine
// stops when ctx is cancelled. Collectors with zero captures are never
// swept: they carry no timestamp to age against (known gap, an unused
// collector can outlive any window).
func (s *Store) StartReaper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()

		s.log.Info("reaper started", "interval", s.sweepInterval, "retention", s.retention)
		for {
			select {
			case <-ctx.Done():
				s.log.Info("reaper stopped")
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

// Sweep runs one reaper pass and returns the number of collectors
// removed. The scan works on a snapshot of last-capture timestamps so the
// registry lock is never held across the whole pass; the write lock is
// taken only to remove entries that are still expired at removal time.
func (s *Store) Sweep() int {
	now := s.now()

	type candidate struct {
		uid  string
		last time.Time
	}

	s.mu.RLock()
	candidates := make([]candidate, 0, len(s.collectors))
	for uid, e := range s.collectors {
		if last := e.lastCapture(); last != nil {
			candidates = append(candidates, candidate{uid: uid, last: last.Timestamp})
		}
	}
	s.mu.RUnlock()

	removed := 0
	for _, c := range candidates {
		if now.Sub(c.last) < s.retention {
			continue
		}

		s.mu.Lock()
		e, ok := s.collectors[c.uid]
		if !ok {
			// Deleted by its owner between snapshot and now.
			s.mu.Unlock()
			continue
		}
		if last := e.lastCapture(); last == nil || now.Sub(last.Timestamp) < s.retention {
			// A capture arrived after the snapshot; the collector is live again.
			s.mu.Unlock()
			continue
		}
		delete(s.collectors, c.uid)
		s.mu.Unlock()

		removed++
		s.log.Info("collector expired", "uid", c.uid, "lastCapture", c.last)
		// Expiry notifies subscribers the same way an owner-initiated
		// delete does, so a watching page learns its collector is gone.
		if s.notifier != nil {
			s.notifier.CollectorDeleted(c.uid)
		}
	}
	return removed
}
