package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"pluginrunner/pkg/logging"
)

// Metrics tracks Apply cycles and component transitions. Every observation
// goes to the Prometheus collectors and to an in-memory summary that the CLI
// can print without scraping.
type Metrics struct {
	ApplyTotal              *prometheus.CounterVec
	ApplyDuration           prometheus.Histogram
	TransitionsTotal        *prometheus.CounterVec
	ComponentsRunning       prometheus.Gauge
	UnsatisfiableComponents prometheus.Gauge

	mu      sync.RWMutex
	summary Summary
}

// Summary is a read-only view of the totals recorded so far.
type Summary struct {
	ApplyAttempts     int64     `json:"apply_attempts"`
	ApplySuccesses    int64     `json:"apply_successes"`
	ApplyFailures     int64     `json:"apply_failures"`
	StartsOK          int64     `json:"starts_ok"`
	StartsFailed      int64     `json:"starts_failed"`
	StartsSkipped     int64     `json:"starts_skipped"`
	Stops             int64     `json:"stops"`
	LastApplyAt       time.Time `json:"last_apply_at,omitempty"`
	LastApplyDuration string    `json:"last_apply_duration,omitempty"`
}

// New creates the metrics and registers them with reg. Passing a fresh
// prometheus.NewRegistry() keeps tests isolated from the global registry.
func New(reg prometheus.Registerer) *Metrics {
	applyTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pluginrunner_apply_total",
		Help: "Number of Apply cycles by result",
	}, []string{"result"})

	applyDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pluginrunner_apply_duration_seconds",
		Help:    "Duration of Apply cycles",
		Buckets: prometheus.DefBuckets,
	})

	transitionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pluginrunner_transitions_total",
		Help: "Component start and stop transitions by outcome",
	}, []string{"op", "outcome"})

	componentsRunning := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pluginrunner_components_running",
		Help: "Number of components currently running",
	})

	unsatisfiable := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pluginrunner_unsatisfiable_components",
		Help: "Number of components found unsatisfiable by the last Apply",
	})

	reg.MustRegister(applyTotal, applyDuration, transitionsTotal, componentsRunning, unsatisfiable)

	return &Metrics{
		ApplyTotal:              applyTotal,
		ApplyDuration:           applyDuration,
		TransitionsTotal:        transitionsTotal,
		ComponentsRunning:       componentsRunning,
		UnsatisfiableComponents: unsatisfiable,
	}
}

// ObserveApply records the end of an Apply cycle.
func (m *Metrics) ObserveApply(success bool, d time.Duration, running, unsatisfiable int) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.ApplyTotal.WithLabelValues(result).Inc()
	m.ApplyDuration.Observe(d.Seconds())
	m.ComponentsRunning.Set(float64(running))
	m.UnsatisfiableComponents.Set(float64(unsatisfiable))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.summary.ApplyAttempts++
	if success {
		m.summary.ApplySuccesses++
	} else {
		m.summary.ApplyFailures++
	}
	m.summary.LastApplyAt = time.Now()
	m.summary.LastApplyDuration = d.String()

	logging.Debug("Metrics", "Apply %s in %s (running: %d, unsatisfiable: %d)", result, d, running, unsatisfiable)
}

// ObserveTransition records one executed transition.
func (m *Metrics) ObserveTransition(op, outcome string, _ time.Duration) {
	m.TransitionsTotal.WithLabelValues(op, outcome).Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case op == "stop":
		m.summary.Stops++
	case outcome == "ok":
		m.summary.StartsOK++
	case outcome == "skipped":
		m.summary.StartsSkipped++
	default:
		m.summary.StartsFailed++
	}
}

// Summary returns a copy of the totals.
func (m *Metrics) Summary() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.summary
}
