package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricsNamespace = "ultradash"

	OutcomeSuccess     = "success"
	OutcomeClientError = "client_error"
	OutcomeServerError = "server_error"
	OutcomeUnavailable = "unavailable"
)

// Metrics holds the Prometheus collectors of the dashboard server.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	backendDuration    *prometheus.HistogramVec
	backendCalls       *prometheus.CounterVec
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	sessionValidations *prometheus.CounterVec
	leadExports        *prometheus.CounterVec
}

// NewMetrics registers every collector in a private registry so tests can build
// as many instances as they need.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		Registry: registry,

		backendDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "backend_request_duration_seconds",
				Help:      "Duration of calls to the lead-capture API by operation.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		backendCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "backend_requests_total",
				Help:      "Calls to the lead-capture API by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "cache_hits_total",
				Help:      "Session cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "cache_misses_total",
				Help:      "Session cache misses.",
			},
			[]string{"cache"},
		),
		sessionValidations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "session_validations_total",
				Help:      "Session validations against the current-user endpoint by result.",
			},
			[]string{"result"},
		),
		leadExports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "lead_exports_total",
				Help:      "CSV exports by scope and result.",
			},
			[]string{"scope", "result"},
		),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (metrics *Metrics) Handler() http.Handler {
	if metrics == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})
}

// ObserveBackendCall records one call to the external API.
func (metrics *Metrics) ObserveBackendCall(operation string, outcome string, duration time.Duration) {
	if metrics == nil {
		return
	}
	metrics.backendDuration.WithLabelValues(operation).Observe(duration.Seconds())
	metrics.backendCalls.WithLabelValues(operation, outcome).Inc()
}

// IncrCacheHit increments the hit counter of the named cache.
func (metrics *Metrics) IncrCacheHit(cache string) {
	if metrics == nil {
		return
	}
	metrics.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the miss counter of the named cache.
func (metrics *Metrics) IncrCacheMiss(cache string) {
	if metrics == nil {
		return
	}
	metrics.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrSessionValidation counts one validation result ("valid" or "invalid").
func (metrics *Metrics) IncrSessionValidation(result string) {
	if metrics == nil {
		return
	}
	metrics.sessionValidations.WithLabelValues(result).Inc()
}

// IncrLeadExport counts one export attempt.
func (metrics *Metrics) IncrLeadExport(scope string, result string) {
	if metrics == nil {
		return
	}
	metrics.leadExports.WithLabelValues(scope, result).Inc()
}
