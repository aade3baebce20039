package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/venue-core/internal/function"
)

const metricsNamespace = "venuecore"

// Metrics holds the Prometheus collectors of one server.
//
// Each Metrics has its own registry so servers built in tests do not
// collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	inFlight     prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	invocations  *prometheus.CounterVec
	invDuration  *prometheus.HistogramVec
	rateLimited  prometheus.Counter
}

// NewMetrics creates and registers the server collectors together with
// the Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "route"}),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "functions",
			Name:      "invocations_total",
			Help:      "Total number of function invocations.",
		}, []string{"function", "method", "auth_type", "status"}),
		invDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "functions",
			Name:      "invocation_duration_seconds",
			Help:      "Duration of function invocations.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"function"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "functions",
			Name:      "rate_limited_total",
			Help:      "Function calls rejected by the rate limiter.",
		}),
	}

	m.registry.MustRegister(
		m.inFlight,
		m.httpRequests,
		m.httpDuration,
		m.invocations,
		m.invDuration,
		m.rateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeRequest(r *http.Request, status int, d time.Duration) {
	route := "unmatched"
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			route = p
		}
	}
	m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(r.Method, route).Observe(d.Seconds())
}

func (m *Metrics) observeInvocation(inv function.Invocation) {
	m.invocations.WithLabelValues(inv.Function, inv.Method, string(inv.AuthType), strconv.Itoa(inv.Status)).Inc()
	m.invDuration.WithLabelValues(inv.Function).Observe(inv.Duration.Seconds())
}
