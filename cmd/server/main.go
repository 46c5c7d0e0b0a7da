package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/tendant/chi-demo/app"
	demomiddleware "github.com/tendant/chi-demo/middleware"

	"github.com/tendant/simple-files/internal/logging"
	"github.com/tendant/simple-files/pkg/simplefiles/api"
	"github.com/tendant/simple-files/pkg/simplefiles/config"
)

const shutdownTimeout = 15 * time.Second

func main() {
	opts := []config.Option{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		opts = append(opts, config.WithFile(path))
	}
	opts = append(opts, config.WithEnv())

	serverConfig, err := config.Load(opts...)
	if err != nil {
		slog.Error("Failed to load server configuration", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Options{
		Format: serverConfig.LogFormat,
		Level:  serverConfig.LogLevel,
	})
	if err != nil {
		slog.Error("Failed to create logger", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	ctx := context.Background()
	rt, err := serverConfig.Build(ctx, logger)
	if err != nil {
		logger.Error("Failed to build service", "error", err)
		os.Exit(1)
	}

	handler, err := routes(rt, serverConfig, logger)
	if err != nil {
		logger.Error("Failed to set up routes", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", serverConfig.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Simple Files server starting",
			"port", serverConfig.Port,
			"env", serverConfig.Environment)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(ctx, shutdownTimeout, map[string]gfshutdown.Operation{
		"simple-files": func(ctx context.Context) error {
			// Stop accepting uploads before draining the event transport.
			if err := httpServer.Shutdown(ctx); err != nil {
				logger.Warn("HTTP server did not stop cleanly", "error", err)
			}
			return rt.Close(ctx)
		},
	})

	exitCode := <-wait
	logger.Info("Server exiting", "code", exitCode)
	os.Exit(exitCode)
}

// routes builds the HTTP handler: health checks and metrics at the root and
// the files API under /api/v1, behind API-key auth when a key is configured.
func routes(rt *config.Runtime, serverConfig *config.ServerConfig, logger *slog.Logger) (http.Handler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(api.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	app.RoutesHealthz(r)
	r.Get("/healthz/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := rt.Ready(r.Context()); err != nil {
			logger.WarnContext(r.Context(), "Readiness check failed", "error", err)
			render.Status(r, http.StatusServiceUnavailable)
			render.PlainText(w, r, http.StatusText(http.StatusServiceUnavailable))
			return
		}
		render.PlainText(w, r, http.StatusText(http.StatusOK))
	})

	if rt.Metrics != nil {
		r.Handle("/metrics", rt.Metrics.Handler())
	}

	var apiMiddlewares []func(http.Handler) http.Handler
	if serverConfig.APIKeySHA256 != "" {
		auth, err := demomiddleware.ApiKeyMiddleware(demomiddleware.ApiKeyConfig{
			APIKeys: map[string]string{
				"default": serverConfig.APIKeySHA256,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize API key middleware: %w", err)
		}
		apiMiddlewares = append(apiMiddlewares, auth)
	} else {
		logger.Warn("API_KEY_SHA256 not set, files API is unauthenticated")
	}

	r.Mount("/api/v1", api.NewRouter(rt.Service, logger, apiMiddlewares...))

	return r, nil
}
