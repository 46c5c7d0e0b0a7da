package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tendant/simple-files/pkg/simplefiles"
)

// NewRouter mounts the files and events endpoints on a chi router. The
// middlewares wrap every endpoint.
func NewRouter(service simplefiles.Service, logger *slog.Logger, middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middlewares...)
	r.Mount("/files", NewFilesHandler(service, logger).Routes())
	r.Mount("/events", NewEventsHandler(service, logger).Routes())
	return r
}
