package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odyssey-erp/riskdesk/internal/query"
)

// Metrics collects Prometheus metrics for the dashboard.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	fetchesInFlight prometheus.Gauge
	fetchesTotal    *prometheus.CounterVec
	fetchDuration   *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
	controllers     prometheus.Gauge
}

// NewMetrics initialises the registry and the dashboard metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "riskdesk_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "riskdesk_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "riskdesk_fetches_in_flight",
		Help: "Listing fetch cycles currently running.",
	})
	fetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "riskdesk_fetch_cycles_total",
		Help: "Finished listing fetch cycles by outcome. Stale results are dropped, not applied.",
	}, []string{"outcome"})
	fetchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "riskdesk_fetch_duration_seconds",
		Help:    "Listing fetch duration by outcome.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	cache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "riskdesk_cache_lookups_total",
		Help: "Overview cache lookups by result.",
	}, []string{"result"})
	controllers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "riskdesk_controllers",
		Help: "Live per-session listing controllers.",
	})
	registry.MustRegister(requests, duration, inFlight, fetches, fetchDuration, cache, controllers)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		fetchesInFlight: inFlight,
		fetchesTotal:    fetches,
		fetchDuration:   fetchDuration,
		cacheLookups:    cache,
		controllers:     controllers,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// FetchStarted implements query.Observer.
func (m *Metrics) FetchStarted() {
	if m == nil {
		return
	}
	m.fetchesInFlight.Inc()
}

// FetchFinished implements query.Observer.
func (m *Metrics) FetchFinished(outcome query.Outcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.fetchesInFlight.Dec()
	m.fetchesTotal.WithLabelValues(string(outcome)).Inc()
	m.fetchDuration.WithLabelValues(string(outcome)).Observe(elapsed.Seconds())
}

// CacheLookup counts an overview cache read.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// SetControllers reports the number of live controllers.
func (m *Metrics) SetControllers(n int) {
	if m == nil {
		return
	}
	m.controllers.Set(float64(n))
}

// Registerer exposes the registry for custom metrics.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

var _ query.Observer = (*Metrics)(nil)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
