package embedding

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the Embedding Router's Prometheus instruments, named
// exactly as spec.md §4.7 requires: routing_fallback_total{from,to},
// routing_target_errors_total{target}, embedding_latency_by_target{target}.
// Grounded on the retrieval pack's observability.Metrics
// (kadirpekel-hector), generalized from its per-subsystem CounterVec/
// HistogramVec pattern to this router's three counters.
type Metrics struct {
	registry            *prometheus.Registry
	routingFallback     *prometheus.CounterVec
	routingTargetErrors *prometheus.CounterVec
	latencyByTarget     *prometheus.HistogramVec
}

// NewMetrics builds and registers the router's metrics in a fresh
// registry. A nil *Metrics (from a nil-returning constructor variant)
// is never produced here — callers needing metrics disabled should pass
// nil to NewRouter instead.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.routingFallback = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routing_fallback_total",
			Help: "Total number of embedding routing fallbacks from one target to another",
		},
		[]string{"from", "to"},
	)
	m.routingTargetErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routing_target_errors_total",
			Help: "Total number of embedding routing hard errors, by target",
		},
		[]string{"target"},
	)
	m.latencyByTarget = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "embedding_latency_by_target",
			Help:    "Embedding routing decision latency in seconds, by effective target",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to 2s
		},
		[]string{"target"},
	)

	m.registry.MustRegister(m.routingFallback, m.routingTargetErrors, m.latencyByTarget)
	return m
}

// Registry exposes the underlying Prometheus registry for wiring into an
// HTTP /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) recordFallback(from, to Target) {
	if m == nil {
		return
	}
	m.routingFallback.WithLabelValues(string(from), string(to)).Inc()
}

func (m *Metrics) recordTargetError(target Target) {
	if m == nil {
		return
	}
	m.routingTargetErrors.WithLabelValues(string(target)).Inc()
}

func (m *Metrics) recordLatency(target Target, d time.Duration) {
	if m == nil {
		return
	}
	m.latencyByTarget.WithLabelValues(string(target)).Observe(d.Seconds())
}
