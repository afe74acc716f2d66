package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apperrors "tremor/internal/errors"
	"tremor/internal/signals"
	"tremor/internal/store"
	apiv1 "tremor/pkg/contracts/api/v1"
	"tremor/pkg/contracts/domain"
)

// SignalsHandler manages signal transforms and the signals they produce.
type SignalsHandler struct {
	store        *store.Store
	factory      *signals.Factory
	validate     *validator.Validate
	logger       *slog.Logger
	errorHandler *apperrors.ErrorHandler
}

// NewSignalsHandler creates a new signals handler
func NewSignalsHandler(st *store.Store, factory *signals.Factory, validate *validator.Validate, logger *slog.Logger, errorHandler *apperrors.ErrorHandler) *SignalsHandler {
	return &SignalsHandler{
		store:        st,
		factory:      factory,
		validate:     validate,
		logger:       logger.With(slog.String("component", "signals_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the signal routes
func (h *SignalsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/transforms", h.CreateTransform)
	r.Get("/transforms", h.ListTransforms)
	r.Get("/transforms/{id}", h.GetTransform)
	r.Post("/compute/{eventID}", h.ComputeForEvent)
	r.Get("/", h.ListSignals)
	r.Get("/{id}", h.GetSignal)

	return r
}

// CreateTransform handles POST /api/signals/transforms. The expression is
// parsed against the request's sample data shape at definition time so a
// malformed transform fails here, not at the first event.
func (h *SignalsHandler) CreateTransform(w http.ResponseWriter, r *http.Request) {
	var req apiv1.TransformCreateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apperrors.NewParsingError("invalid request body", err))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.errorHandler.HandleError(w, r, apperrors.NewValidationError(err.Error()))
		return
	}

	if err := signals.ValidateExpression(req.Expression); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	transform := &domain.SignalTransform{
		Name:        req.Name,
		Description: req.Description,
		EventTypes:  req.EventTypes,
		Expression:  req.Expression,
		Unit:        req.Unit,
		NodeMapping: req.NodeMapping,
		ThresholdSD: req.ThresholdSD,
	}
	if err := h.store.SaveTransform(r.Context(), transform); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, transform)
}

// ListTransforms handles GET /api/signals/transforms
func (h *SignalsHandler) ListTransforms(w http.ResponseWriter, r *http.Request) {
	transforms, err := h.store.ListTransforms(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"transforms": transforms,
		"count":      len(transforms),
	})
}

// GetTransform handles GET /api/signals/transforms/{id}
func (h *SignalsHandler) GetTransform(w http.ResponseWriter, r *http.Request) {
	transform, err := h.store.GetTransform(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, transform)
}

// ComputeForEvent handles POST /api/signals/compute/{eventID}, re-running
// every matching transform against a stored event.
func (h *SignalsHandler) ComputeForEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.store.GetEvent(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	computed, err := h.factory.ComputeForEvent(r.Context(), event)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"signals": computed,
		"count":   len(computed),
	})
}

// ListSignals handles GET /api/signals with an optional transform_id filter
func (h *SignalsHandler) ListSignals(w http.ResponseWriter, r *http.Request) {
	signalList, err := h.store.ListSignals(r.Context(), r.URL.Query().Get("transform_id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"signals": signalList,
		"count":   len(signalList),
	})
}

// GetSignal handles GET /api/signals/{id}
func (h *SignalsHandler) GetSignal(w http.ResponseWriter, r *http.Request) {
	signal, err := h.store.GetSignal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, signal)
}
