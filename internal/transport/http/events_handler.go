package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apperrors "tremor/internal/errors"
	"tremor/internal/propagation"
	"tremor/internal/signals"
	"tremor/internal/store"
	apiv1 "tremor/pkg/contracts/api/v1"
	"tremor/pkg/contracts/domain"
)

// EventsHandler handles event intake. Accepting an event immediately runs
// every matching transform and opens propagation monitors for any shock.
type EventsHandler struct {
	store        *store.Store
	factory      *signals.Factory
	monitor      *propagation.Monitor
	validate     *validator.Validate
	metrics      *Metrics
	logger       *slog.Logger
	errorHandler *apperrors.ErrorHandler
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(st *store.Store, factory *signals.Factory, monitor *propagation.Monitor, validate *validator.Validate, metrics *Metrics, logger *slog.Logger, errorHandler *apperrors.ErrorHandler) *EventsHandler {
	return &EventsHandler{
		store:        st,
		factory:      factory,
		monitor:      monitor,
		validate:     validate,
		metrics:      metrics,
		logger:       logger.With(slog.String("component", "events_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the event routes
func (h *EventsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/", h.CreateEvent)
	r.Get("/", h.ListEvents)
	r.Get("/{id}", h.GetEvent)

	return r
}

// CreateEvent handles POST /api/events
func (h *EventsHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req apiv1.EventCreateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apperrors.NewParsingError("invalid request body", err))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.errorHandler.HandleError(w, r, apperrors.NewValidationError(err.Error()))
		return
	}

	timestamp, err := time.Parse(time.RFC3339, req.Timestamp)
	if err != nil {
		h.errorHandler.HandleError(w, r, apperrors.NewValidationError("timestamp must be RFC 3339"))
		return
	}

	event := &domain.Event{
		Timestamp:   timestamp,
		Type:        req.Type,
		Subtype:     req.Subtype,
		Description: req.Description,
		Tags:        req.Tags,
		RawData:     req.RawData,
	}
	if err := h.store.SaveEvent(r.Context(), event); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.metrics.EventsIngested.Inc()

	computed, err := h.factory.ComputeForEvent(r.Context(), event)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	var monitors []domain.PropagationRecord
	for i := range computed {
		if !computed[i].IsShock {
			continue
		}
		h.metrics.ShocksDetected.Inc()
		created, err := h.monitor.CreateMonitors(r.Context(), &computed[i])
		if err != nil {
			h.logger.ErrorContext(r.Context(), "failed to open propagation monitors",
				slog.String("signal_id", computed[i].ID),
				slog.String("error", err.Error()),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
			continue
		}
		monitors = append(monitors, created...)
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]interface{}{
		"event":            event,
		"signals":          computed,
		"monitors_created": len(monitors),
	})
}

// ListEvents handles GET /api/events
func (h *EventsHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.store.ListEvents(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

// GetEvent handles GET /api/events/{id}
func (h *EventsHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.store.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, event)
}
