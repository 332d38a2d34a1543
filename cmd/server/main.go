package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpattn/sapingest/internal/app"
	"github.com/rpattn/sapingest/internal/config"
	"github.com/rpattn/sapingest/internal/export"
	"github.com/rpattn/sapingest/internal/ingestion"
	"github.com/rpattn/sapingest/internal/logging"
	"github.com/rpattn/sapingest/internal/metrics"
	"github.com/rpattn/sapingest/internal/middleware"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

func main() {
	configPath := os.Getenv("SAPINGEST_CONFIG_DIR")
	if configPath == "" {
		configPath = "."
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		logging.New(logging.Config{}).WithError(err).Fatal("Failed to load configuration")
	}
	logger := logging.New(cfg.Log)
	if cfg.Source != "" {
		logger.WithField("file", cfg.Source).Info("Loaded configuration")
	} else {
		logger.Info("No config.yaml found, using defaults and env vars")
	}

	// Create context
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Setup database connection, migrations and the ingestion service
	application, err := app.Open(ctx, cfg, logger, app.Options{Migrate: true, Metrics: metrics.Default()})
	if err != nil {
		logger.WithError(err).Fatal("Failed to start ingestion service")
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close connections")
		}
	}()

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	imports := ingestion.NewHTTPHandler(application.Service, logger)
	mux := http.NewServeMux()
	mux.Handle("/imports", imports)
	mux.Handle("/imports/", imports)
	mux.Handle("GET /imports/{id}/failed-rows", export.NewHTTPHandler(application.Export, logger))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := application.Conn.Pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      corsHandler.Handler(middleware.LoggingMiddleware(logger)(mux)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.Server.Addr).Info("Starting import server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		logger.WithError(err).Error("Server stopped")
	}
	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
