package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/tendant/simple-files/pkg/simplefiles"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func writeJSONError(w http.ResponseWriter, r *http.Request, status int, msg string, details ...string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: msg, Details: details})
}

// writeError maps service errors to HTTP status codes.
func (h *FilesHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	writeServiceError(w, r, h.logger, err)
}

func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var (
		verr     *simplefiles.ValidationFailedError
		tooLarge *simplefiles.FileTooLargeError
	)
	switch {
	case errors.As(err, &verr):
		writeJSONError(w, r, http.StatusBadRequest, "metadata validation failed", verr.Messages()...)
	case errors.As(err, &tooLarge):
		writeJSONError(w, r, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, simplefiles.ErrNoFile), errors.Is(err, simplefiles.ErrMalformedRequest):
		writeJSONError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, simplefiles.ErrFileNotFound):
		writeJSONError(w, r, http.StatusNotFound, "file not found")
	default:
		logger.ErrorContext(r.Context(), "Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSONError(w, r, http.StatusInternalServerError, "internal server error")
	}
}
