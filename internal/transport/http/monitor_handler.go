package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"tremor/internal/causal"
	apperrors "tremor/internal/errors"
	"tremor/internal/propagation"
	"tremor/internal/store"
	"tremor/pkg/contracts/domain"
)

// MonitorHandler exposes propagation monitoring and the causal network view.
type MonitorHandler struct {
	store        *store.Store
	monitor      *propagation.Monitor
	graph        *causal.Graph
	metrics      *Metrics
	logger       *slog.Logger
	errorHandler *apperrors.ErrorHandler
}

// NewMonitorHandler creates a new monitor handler
func NewMonitorHandler(st *store.Store, monitor *propagation.Monitor, graph *causal.Graph, metrics *Metrics, logger *slog.Logger, errorHandler *apperrors.ErrorHandler) *MonitorHandler {
	return &MonitorHandler{
		store:        st,
		monitor:      monitor,
		graph:        graph,
		metrics:      metrics,
		logger:       logger.With(slog.String("component", "monitor_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the monitor routes
func (h *MonitorHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/propagations", h.ListPropagations)
	r.Get("/propagations/{id}", h.GetPropagation)
	r.Post("/propagations/{id}/check", h.CheckPropagation)
	r.Post("/check-all", h.CheckAll)
	r.Get("/network", h.Network)
	r.Get("/path", h.Path)

	return r
}

// ListPropagations handles GET /api/monitor/propagations with an optional
// status filter
func (h *MonitorHandler) ListPropagations(w http.ResponseWriter, r *http.Request) {
	status := domain.PropagationStatus(r.URL.Query().Get("status"))
	records, err := h.store.ListPropagations(r.Context(), status)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"propagations": records,
		"count":        len(records),
	})
}

// GetPropagation handles GET /api/monitor/propagations/{id}
func (h *MonitorHandler) GetPropagation(w http.ResponseWriter, r *http.Request) {
	record, err := h.store.GetPropagation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, record)
}

// CheckPropagation handles POST /api/monitor/propagations/{id}/check
func (h *MonitorHandler) CheckPropagation(w http.ResponseWriter, r *http.Request) {
	record, err := h.monitor.Check(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.metrics.MonitorsChecked.Inc()
	render.JSON(w, r, record)
}

// CheckAll handles POST /api/monitor/check-all, refreshing every
// non-terminal propagation record
func (h *MonitorHandler) CheckAll(w http.ResponseWriter, r *http.Request) {
	records, err := h.monitor.CheckAll(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.metrics.MonitorsChecked.Add(float64(len(records)))
	render.JSON(w, r, map[string]interface{}{
		"checked":      len(records),
		"propagations": records,
	})
}

// Network handles GET /api/monitor/network, returning the loaded causal
// graph as node and edge lists
func (h *MonitorHandler) Network(w http.ResponseWriter, r *http.Request) {
	nodes := h.graph.Nodes()
	edges := h.graph.AllEdges()
	render.JSON(w, r, map[string]interface{}{
		"nodes":      nodes,
		"edges":      edges,
		"node_count": len(nodes),
		"edge_count": len(edges),
	})
}

// Path handles GET /api/monitor/path?source=X&target=Y
func (h *MonitorHandler) Path(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	target := r.URL.Query().Get("target")
	if source == "" || target == "" {
		h.errorHandler.HandleError(w, r, apperrors.NewValidationError("source and target query parameters are required"))
		return
	}
	for _, node := range []string{source, target} {
		if !h.graph.HasNode(node) {
			h.errorHandler.HandleError(w, r, apperrors.NewNotFoundError("node "+node))
			return
		}
	}

	path := h.graph.TransmissionPath(source, target)
	render.JSON(w, r, map[string]interface{}{
		"source": source,
		"target": target,
		"path":   path,
		"found":  len(path) > 0,
	})
}
