package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/simple-files/pkg/simplefiles"
)

// EventsHandler accepts object-stored notifications from external storage
// and classifies the objects synchronously.
type EventsHandler struct {
	service simplefiles.Service
	logger  *slog.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(service simplefiles.Service, logger *slog.Logger) *EventsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventsHandler{
		service: service,
		logger:  logger,
	}
}

// Routes returns the router for event endpoints
func (h *EventsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/object-stored", h.ObjectStored)
	return r
}

// ObjectStored classifies the object named by the event. It answers 202 with
// the classification, or 204 when the key is not an upload key.
func (h *EventsHandler) ObjectStored(w http.ResponseWriter, r *http.Request) {
	var event simplefiles.ObjectStoredEvent
	if err := render.DecodeJSON(r.Body, &event); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode event", "error", err)
		writeJSONError(w, r, http.StatusBadRequest, "invalid event body")
		return
	}
	if event.Key == "" {
		writeJSONError(w, r, http.StatusBadRequest, "key is required")
		return
	}

	classification, err := h.service.ProcessStoredObject(r.Context(), event)
	switch {
	case errors.Is(err, simplefiles.ErrObjectKeyNotManaged):
		h.logger.DebugContext(r.Context(), "Ignoring unmanaged object key", "key", event.Key)
		w.WriteHeader(http.StatusNoContent)
		return
	case errors.Is(err, simplefiles.ErrObjectNotFound):
		writeJSONError(w, r, http.StatusNotFound, "object not found")
		return
	case err != nil:
		writeServiceError(w, r, h.logger, err)
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, classification)
}
