package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"

	"github.com/neomorfeo/workflowiq/internal/adapter/fsm"
	"github.com/neomorfeo/workflowiq/internal/adapter/otel"
	riveradapter "github.com/neomorfeo/workflowiq/internal/adapter/river"
	"github.com/neomorfeo/workflowiq/internal/adapter/sqlite"
	"github.com/neomorfeo/workflowiq/internal/app"

	handler "github.com/neomorfeo/workflowiq/internal/adapter/http"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := envOrDefault("PORT", "8080")
	dataDir := envOrDefault("DATA_DIR", "data")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, port, dataDir); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, port, dataDir string) error {
	// --- Observability ---
	providers, err := otel.Setup(ctx, otel.ConfigFromEnv())
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Error("otel shutdown", "error", err)
		}
	}()

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	// --- Adapters (out) ---
	system, err := otel.OpenDB(dataDir + "/system.db")
	if err != nil {
		return err
	}
	defer system.Close()

	if err := sqlite.MigrateSystem(system); err != nil {
		return err
	}

	registry := sqlite.NewTenantRegistry(system)
	router := sqlite.NewRouter(dataDir, system, registry, otel.OpenDB)
	defer router.Close()

	definitions := sqlite.NewDefinitionStore(system, fsm.New())
	if err := app.SeedDefinitions(ctx, definitions); err != nil {
		return err
	}

	instances := otel.NewTracingInstanceStore(sqlite.NewInstanceStore(router))
	orders := sqlite.NewOrderStore(router)

	// --- Application + job queue ---
	// The queue client needs the service for its workers and the publisher
	// needs the client, so the publisher is wired in a second step.
	svc := app.NewWorkflowService(definitions, instances, orders, nil, logger)

	riverClient, err := riveradapter.Setup(ctx, system, svc)
	if err != nil {
		return err
	}
	publisher := riveradapter.NewPublisher(riverClient)
	svc.SetPublisher(publisher)

	if err := riverClient.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := riverClient.Stop(stopCtx); err != nil {
			logger.Error("river stop", "error", err)
		}
	}()

	// --- Adapters (in) ---
	mux := chi.NewMux()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Recoverer)
	mux.Use(otelchi.Middleware("workflowiq", otelchi.WithChiRoutes(mux)))

	api := humachi.New(mux, huma.DefaultConfig("workflowiq", "0.1.0"))
	handler.Register(api, svc, publisher)

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "port", port, "docs", "http://localhost:"+port+"/docs")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}

	logger.Info("stopped")
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
