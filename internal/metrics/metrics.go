// Package metrics provides Prometheus metrics for the finder and its HTTP host.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector, registered on its own registry so that
// tests and multiple finders never collide.
type Metrics struct {
	registry *prometheus.Registry

	cacheLookups   *prometheus.CounterVec
	walkDuration   *prometheus.HistogramVec
	listingEntries prometheus.Gauge
	queryDuration  prometheus.Histogram
	queryResults   prometheus.Histogram
	queryFailures  prometheus.Counter
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	sseEventsTotal *prometheus.CounterVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sowilo_cache_lookups_total",
				Help: "Directory cache lookups by result",
			},
			[]string{"result"},
		),
		walkDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sowilo_walk_duration_seconds",
				Help:    "Time to list a directory on a cache miss",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
			},
			[]string{"mode"},
		),
		listingEntries: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "sowilo_listing_entries",
				Help: "Number of entries in the cached listing",
			},
		),
		queryDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sowilo_query_duration_seconds",
				Help:    "End-to-end query latency",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
			},
		),
		queryResults: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sowilo_query_results",
				Help:    "Number of items returned per query",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		queryFailures: f.NewCounter(
			prometheus.CounterOpts{
				Name: "sowilo_query_failures_total",
				Help: "Queries degraded to an empty result",
			},
		),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sowilo_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sowilo_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		sseEventsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sowilo_sse_events_total",
				Help: "Total SSE events published",
			},
			[]string{"type"},
		),
	}
}

// Handler returns the Prometheus metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordCacheHit counts a listing served from the cache.
func (m *Metrics) RecordCacheHit() {
	m.cacheLookups.WithLabelValues("hit").Inc()
}

// RecordWalk counts a cache miss and records its walk.
func (m *Metrics) RecordWalk(recursive bool, entries int, took time.Duration) {
	mode := "flat"
	if recursive {
		mode = "recursive"
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
	m.walkDuration.WithLabelValues(mode).Observe(took.Seconds())
	m.listingEntries.Set(float64(entries))
}

// RecordQuery records a completed query.
func (m *Metrics) RecordQuery(results int, took time.Duration, failed bool) {
	m.queryDuration.Observe(took.Seconds())
	m.queryResults.Observe(float64(results))
	if failed {
		m.queryFailures.Inc()
	}
}

// RecordSSEEvent records an SSE event publication.
func (m *Metrics) RecordSSEEvent(eventType string) {
	m.sseEventsTotal.WithLabelValues(eventType).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request metrics labelled by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
