package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"tremor/internal/causal"
	apperrors "tremor/internal/errors"
	"tremor/internal/exporter"
	"tremor/internal/store"
	apiv1 "tremor/pkg/contracts/api/v1"
)

// CausalHandler runs event studies and serves their results.
type CausalHandler struct {
	store        *store.Store
	engine       *causal.EventStudyEngine
	exporter     *exporter.StudyExporter
	validate     *validator.Validate
	metrics      *Metrics
	logger       *slog.Logger
	errorHandler *apperrors.ErrorHandler
}

// NewCausalHandler creates a new causal test handler
func NewCausalHandler(st *store.Store, engine *causal.EventStudyEngine, exp *exporter.StudyExporter, validate *validator.Validate, metrics *Metrics, logger *slog.Logger, errorHandler *apperrors.ErrorHandler) *CausalHandler {
	return &CausalHandler{
		store:        st,
		engine:       engine,
		exporter:     exp,
		validate:     validate,
		metrics:      metrics,
		logger:       logger.With(slog.String("component", "causal_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the causal test routes
func (h *CausalHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/run", h.RunStudy)
	r.Get("/", h.ListResults)
	r.Get("/feasibility", h.Feasibility)
	r.Get("/{id}", h.GetResult)
	r.Get("/{id}/export", h.ExportResult)

	return r
}

// RunStudy handles POST /api/causal-tests/run
func (h *CausalHandler) RunStudy(w http.ResponseWriter, r *http.Request) {
	var req apiv1.EventStudyRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apperrors.NewParsingError("invalid request body", err))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.errorHandler.HandleError(w, r, apperrors.NewValidationError(err.Error()))
		return
	}

	// Overlap exclusion is on unless the request disables it.
	excludeOverlapping := true
	if req.ExcludeOverlapping != nil {
		excludeOverlapping = *req.ExcludeOverlapping
	}

	result, err := h.engine.Run(r.Context(), causal.EventStudyParams{
		TransformID:        req.TransformID,
		TargetNode:         req.TargetNode,
		PreWindowDays:      req.PreWindowDays,
		PostWindowDays:     req.PostWindowDays,
		GapDays:            req.GapDays,
		ExcludeOverlapping: excludeOverlapping,
		OverlapBufferDays:  req.OverlapBufferDays,
		SignificanceLevel:  req.SignificanceLevel,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.metrics.StudiesRun.Inc()

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, result)
}

// ListResults handles GET /api/causal-tests with an optional transform_id
// filter
func (h *CausalHandler) ListResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.store.ListStudyResults(r.Context(), r.URL.Query().Get("transform_id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

// Feasibility handles GET /api/causal-tests/feasibility
func (h *CausalHandler) Feasibility(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.FeasibilityReport(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"transforms": report,
		"count":      len(report),
	})
}

// GetResult handles GET /api/causal-tests/{id}
func (h *CausalHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	result, err := h.store.GetStudyResult(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

// ExportResult handles GET /api/causal-tests/{id}/export. The format query
// parameter selects xlsx (default) or csv.
func (h *CausalHandler) ExportResult(w http.ResponseWriter, r *http.Request) {
	result, err := h.store.GetStudyResult(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	format := r.URL.Query().Get("format")
	switch format {
	case "", "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="event_study_%s.xlsx"`, result.ID))
		if err := h.exporter.WriteWorkbook(w, result); err != nil {
			h.logger.ErrorContext(r.Context(), "workbook export failed",
				slog.String("result_id", result.ID),
				slog.String("error", err.Error()))
		}
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="event_study_%s.csv"`, result.ID))
		if err := h.exporter.WriteDetailsCSV(w, result); err != nil {
			h.logger.ErrorContext(r.Context(), "csv export failed",
				slog.String("result_id", result.ID),
				slog.String("error", err.Error()))
		}
	default:
		h.errorHandler.HandleError(w, r, apperrors.NewValidationError("format must be xlsx or csv"))
	}
}
