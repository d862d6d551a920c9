package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cache lookup outcomes.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Metrics holds the Prometheus collectors used across the service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	cacheFailures   *prometheus.CounterVec
	eventsPublished *prometheus.CounterVec
}

// NewMetrics creates collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"path", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Errors rendered by the error middleware, by code.",
		}, []string{"path", "method", "code"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache-aside lookups by entity kind and outcome.",
		}, []string{"kind", "result"}),
		cacheFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_write_failures_total",
			Help: "Swallowed cache populate and invalidate failures.",
		}, []string{"kind", "op"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Domain events handed to the publisher, by type and outcome.",
		}, []string{"kind", "type", "outcome"}),
	}
	reg.MustRegister(m.requests, m.requestDuration, m.errors, m.cacheLookups, m.cacheFailures, m.eventsPublished)
	return m
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// RecordCacheLookup counts a cache-aside read outcome.
func (m *Metrics) RecordCacheLookup(kind, result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(kind, result).Inc()
}

// RecordCacheFailure counts a swallowed cache write ("set") or invalidation ("remove") failure.
func (m *Metrics) RecordCacheFailure(kind, op string) {
	if m == nil {
		return
	}
	m.cacheFailures.WithLabelValues(kind, op).Inc()
}

// RecordPublish counts an event publish attempt.
func (m *Metrics) RecordPublish(kind, eventType string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	m.eventsPublished.WithLabelValues(kind, eventType, outcome).Inc()
}
