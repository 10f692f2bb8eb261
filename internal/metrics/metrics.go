// Package metrics exposes Prometheus counters for sync cycles, pushes
// and restores. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "settings_sync"

// Outcome label values.
const (
	OutcomeApplied = "applied"
	OutcomeSkipped = "skipped"
	OutcomeEmpty   = "empty"
	OutcomeFailed  = "failed"
	OutcomeSuccess = "success"
	OutcomeInvalid = "invalid"
)

// Metrics holds the collectors registered for one engine.
type Metrics struct {
	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	pushes        *prometheus.CounterVec
	restores      *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pull_cycles_total",
			Help:      "Reconciliation cycles by outcome.",
		}, []string{"outcome"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pull_cycle_duration_seconds",
			Help:      "Duration of reconciliation cycles.",
			Buckets:   prometheus.DefBuckets,
		}),
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pushes_total",
			Help:      "Pushes to a remote backend by backend and outcome.",
		}, []string{"backend", "outcome"}),
		restores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restores_total",
			Help:      "Backup restores by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.cycles, m.cycleDuration, m.pushes, m.restores)

	return m
}

// NewRegistry returns a registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return reg
}

// Handler serves the registry in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveCycle(outcome string, d time.Duration) {
	if m == nil {
		return
	}

	m.cycles.WithLabelValues(outcome).Inc()
	m.cycleDuration.Observe(d.Seconds())
}

func (m *Metrics) ObservePush(backend, outcome string) {
	if m == nil {
		return
	}

	m.pushes.WithLabelValues(backend, outcome).Inc()
}

func (m *Metrics) ObserveRestore(outcome string) {
	if m == nil {
		return
	}

	m.restores.WithLabelValues(outcome).Inc()
}
