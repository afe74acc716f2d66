package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"tremor/internal/causal"
	"tremor/internal/config"
	apperrors "tremor/internal/errors"
	"tremor/internal/exporter"
	"tremor/internal/infrastructure"
	"tremor/internal/propagation"
	"tremor/internal/signals"
	"tremor/internal/store"
)

// Deps bundles everything the router needs. All fields are required.
type Deps struct {
	Config   *config.Config
	Store    *store.Store
	Factory  *signals.Factory
	Monitor  *propagation.Monitor
	Graph    *causal.Graph
	Engine   *causal.EventStudyEngine
	Exporter *exporter.StudyExporter
	Metrics  *Metrics
	Logger   *slog.Logger
}

// NewRouter builds the full chi router: trace and logging middleware, the
// /api resource handlers, the Prometheus scrape endpoint and health probes.
func NewRouter(deps Deps) chi.Router {
	logger := deps.Logger
	errorHandler := apperrors.NewErrorHandler(logger)
	validate := validator.New()

	eventsHandler := NewEventsHandler(deps.Store, deps.Factory, deps.Monitor, validate, deps.Metrics, logger, errorHandler)
	signalsHandler := NewSignalsHandler(deps.Store, deps.Factory, validate, logger, errorHandler)
	monitorHandler := NewMonitorHandler(deps.Store, deps.Monitor, deps.Graph, deps.Metrics, logger, errorHandler)
	causalHandler := NewCausalHandler(deps.Store, deps.Engine, deps.Exporter, validate, deps.Metrics, logger, errorHandler)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(traceMiddleware)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(deps.Metrics.Middleware)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(deps.Config.Server.ReadTimeout))
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Mount("/events", eventsHandler.Routes())
		r.Mount("/signals", signalsHandler.Routes())
		r.Mount("/monitor", monitorHandler.Routes())
		r.Mount("/causal-tests", causalHandler.Routes())
	})

	r.Get("/healthz", healthz(deps))
	r.Handle("/metrics", deps.Metrics.Handler())

	return r
}

// traceMiddleware puts a trace id on the request context so every log line
// emitted downstream carries it.
func traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.NewString()
		}
		ctx := infrastructure.WithTraceID(r.Context(), traceID)
		w.Header().Set("X-Trace-ID", traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLogger emits one structured line per request after it completes.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.InfoContext(r.Context(), "request completed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// healthz reports liveness plus readiness of the causal graph.
func healthz(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		nodes := len(deps.Graph.Nodes())
		status := "ok"
		if nodes == 0 {
			status = "degraded"
		}
		render.JSON(w, r, map[string]interface{}{
			"status":      status,
			"graph_nodes": nodes,
			"time":        time.Now().UTC().Format(time.RFC3339),
		})
	}
}
