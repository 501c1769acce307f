// Package metrics holds the Prometheus collectors of the authorize and
// execute services.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vybium_ledger"

// Metrics is one set of collectors registered on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	Requests       *prometheus.CounterVec
	Authorizations *prometheus.CounterVec
	Proofs         *prometheus.CounterVec
	ProofDuration  prometheus.Histogram
	QueueDepth     prometheus.Gauge
	BusyWorkers    prometheus.Gauge
	RateLimited    prometheus.Counter
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		Authorizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authorizations_total",
			Help:      "Authorizations built, by function and outcome.",
		}, []string{"function", "outcome"}),
		Proofs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proofs_total",
			Help:      "Execute calls by outcome (ok or an error code).",
		}, []string{"outcome"}),
		ProofDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "proof_duration_seconds",
			Help:      "Wall time of one execute call on a worker.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_queue_depth",
			Help:      "Jobs waiting for a prover worker.",
		}),
		BusyWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_busy_workers",
			Help:      "Prover workers currently proving.",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-client rate limiter.",
		}),
	}
	m.registry.MustRegister(
		m.Requests,
		m.Authorizations,
		m.Proofs,
		m.ProofDuration,
		m.QueueDepth,
		m.BusyWorkers,
		m.RateLimited,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveProof records one execute call. A nil receiver records nothing.
func (m *Metrics) ObserveProof(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Proofs.WithLabelValues(outcome).Inc()
	m.ProofDuration.Observe(elapsed.Seconds())
}
