package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the HTTP surface and the
// engine counters the handlers bump.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	EventsIngested  prometheus.Counter
	ShocksDetected  prometheus.Counter
	StudiesRun      prometheus.Counter
	MonitorsChecked prometheus.Counter
}

// NewMetrics creates the collectors on a private registry so tests can build
// routers without duplicate-registration panics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tremor_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tremor_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		EventsIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "tremor_events_ingested_total",
			Help: "Events accepted through the intake endpoint.",
		}),
		ShocksDetected: factory.NewCounter(prometheus.CounterOpts{
			Name: "tremor_shocks_detected_total",
			Help: "Signals classified as shocks.",
		}),
		StudiesRun: factory.NewCounter(prometheus.CounterOpts{
			Name: "tremor_event_studies_total",
			Help: "Event studies completed.",
		}),
		MonitorsChecked: factory.NewCounter(prometheus.CounterOpts{
			Name: "tremor_propagation_checks_total",
			Help: "Propagation monitor checks performed.",
		}),
	}
}

// Handler serves the /metrics scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency using the chi route pattern
// so path parameters do not explode the label space.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		m.requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
