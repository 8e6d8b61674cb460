// Package observability holds the Prometheus collector and tracing setup.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Search outcomes.
const (
	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Metrics holds every collector of the service on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Searches       *prometheus.CounterVec
	NodesExplored  prometheus.Histogram
	SearchDuration prometheus.Histogram

	CacheBuilds  *prometheus.CounterVec
	CachePersons prometheus.Gauge
	CacheEdges   prometheus.Gauge

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors under namespace.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Shortest-path searches by outcome.",
		}, []string{"outcome"}),
		NodesExplored: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_nodes_explored",
			Help:      "Frontier dequeues per search.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Search latency including name resolution.",
			Buckets:   prometheus.DefBuckets,
		}),
		CacheBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_builds_total",
			Help:      "Graph snapshot builds by result.",
		}, []string{"result"}),
		CachePersons: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_persons",
			Help:      "Persons in the current snapshot.",
		}),
		CacheEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_edges",
			Help:      "Directed edges in the current snapshot.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Searches, m.NodesExplored, m.SearchDuration,
		m.CacheBuilds, m.CachePersons, m.CacheEdges,
		m.HTTPRequests, m.HTTPDuration,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSearch records one finished search.
func (m *Metrics) ObserveSearch(outcome string, nodesExplored int, d time.Duration) {
	if m == nil {
		return
	}
	m.Searches.WithLabelValues(outcome).Inc()
	m.SearchDuration.Observe(d.Seconds())
	if outcome != OutcomeError {
		m.NodesExplored.Observe(float64(nodesExplored))
	}
}

// ObserveCacheBuild records a snapshot build attempt.
func (m *Metrics) ObserveCacheBuild(err error, persons, edges int) {
	if m == nil {
		return
	}
	if err != nil {
		m.CacheBuilds.WithLabelValues("error").Inc()
		return
	}
	m.CacheBuilds.WithLabelValues("ok").Inc()
	m.CachePersons.Set(float64(persons))
	m.CacheEdges.Set(float64(edges))
}

// Middleware records request counts and latency keyed by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
