package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestCounter(t *testing.T) {
	r := NewRegistry()
	c, err := r.NewCounter("captures_total", "Total captures stored.")
	if err != nil {
		t.Fatalf("NewCounter: %v", err)
	}

	c.Inc()
	c.Add(4)
	c.Add(-10) // ignored
	if got := c.Value(); got != 5 {
		t.Fatalf("Value = %g, want 5", got)
	}
}

func TestCounter_Concurrent(t *testing.T) {
	r := NewRegistry()
	c, _ := r.NewCounter("x", "")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Inc()
			}
		}()
	}
	wg.Wait()
	if got := c.Value(); got != 5000 {
		t.Fatalf("Value = %g, want 5000", got)
	}
}

func TestDuplicateRegistration(t *testing.T) {
	r := NewRegistry()
	if _, err := r.NewCounter("dup", ""); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := r.NewCounter("dup", ""); !errors.Is(err, ErrDuplicateMetric) {
		t.Fatalf("err = %v, want ErrDuplicateMetric", err)
	}
}

func TestHandler_Exposition(t *testing.T) {
	r := NewRegistry()
	c, _ := r.NewCounter("reqsink_captures_total", "Total captures stored.")
	c.Add(3)
	_, _ = r.NewGaugeFunc("reqsink_collectors_active", "Live collectors.", func() float64 { return 2 })

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		"# HELP reqsink_captures_total Total captures stored.",
		"# TYPE reqsink_captures_total counter",
		"reqsink_captures_total 3",
		"# TYPE reqsink_collectors_active gauge",
		"reqsink_collectors_active 2",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("exposition missing %q:\n%s", want, body)
		}
	}
	// Sorted output: captures_total before collectors_active.
	if strings.Index(body, "captures_total") > strings.Index(body, "collectors_active") {
		t.Fatalf("metrics not sorted:\n%s", body)
	}
}
