// Package metrics implements a small dependency-free counter/gauge
// registry with Prometheus-compatible text exposition. It covers the
// handful of series reqsink cares about; histograms and labels are out of
// scope until something needs them.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
)

// ErrDuplicateMetric is returned when registering a metric with a name
// that is already registered.
var ErrDuplicateMetric = errors.New("duplicate metric name")

// Metric is the interface implemented by all metric types.
type Metric interface {
	// Name returns the metric name.
	Name() string
	// Help returns the help text.
	Help() string
	// Type returns the exposition type ("counter" or "gauge").
	Type() string
	// Value returns the current sample value.
	Value() float64
}

// Counter is a monotonically increasing metric.
type Counter struct {
	name string
	help string
	n    atomic.Int64
}

// Inc increments the counter by one.
func (c *Counter) Inc() { c.n.Add(1) }

// Add increases the counter by delta. Negative deltas are ignored.
func (c *Counter) Add(delta int64) {
	if delta > 0 {
		c.n.Add(delta)
	}
}

// Name returns the metric name.
func (c *Counter) Name() string { return c.name }

// Help returns the help text.
func (c *Counter) Help() string { return c.help }

// Type returns "counter".
func (c *Counter) Type() string { return "counter" }

// Value returns the current count.
func (c *Counter) Value() float64 { return float64(c.n.Load()) }

// GaugeFunc is a gauge whose value is sampled at scrape time.
type GaugeFunc struct {
	name string
	help string
	fn   func() float64
}

// Name returns the metric name.
func (g *GaugeFunc) Name() string { return g.name }

// Help returns the help text.
func (g *GaugeFunc) Help() string { return g.help }

// Type returns "gauge".
func (g *GaugeFunc) Type() string { return "gauge" }

// Value calls the sampling function.
func (g *GaugeFunc) Value() float64 { return g.fn() }

// Registry holds registered metrics and serves the exposition endpoint.
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]Metric
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{metrics: make(map[string]Metric)}
}

// NewCounter creates and registers a counter.
func (r *Registry) NewCounter(name, help string) (*Counter, error) {
	c := &Counter{name: name, help: help}
	if err := r.register(c); err != nil {
		return nil, err
	}
	return c, nil
}

// NewGaugeFunc creates and registers a sampled gauge.
func (r *Registry) NewGaugeFunc(name, help string, fn func() float64) (*GaugeFunc, error) {
	g := &GaugeFunc{name: name, help: help, fn: fn}
	if err := r.register(g); err != nil {
		return nil, err
	}
	return g, nil
}

func (r *Registry) register(m Metric) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.metrics[m.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateMetric, m.Name())
	}
	r.metrics[m.Name()] = m
	return nil
}

// Handler returns the /metrics exposition handler.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		r.mu.RLock()
		names := make([]string, 0, len(r.metrics))
		for name := range r.metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		metrics := make([]Metric, 0, len(names))
		for _, name := range names {
			metrics = append(metrics, r.metrics[name])
		}
		r.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		for _, m := range metrics {
			fmt.Fprintf(w, "# HELP %s %s\n", m.Name(), m.Help())
			fmt.Fprintf(w, "# TYPE %s %s\n", m.Name(), m.Type())
			fmt.Fprintf(w, "%s %g\n", m.Name(), m.Value())
		}
	})
}
