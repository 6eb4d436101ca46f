// Package main is the entry point for the magicfactory estimation server.
// It serves single factory estimates, background parameter searches over
// distillation protocols, error-rate scaling sweeps and the stored results.
//
// The application follows the same layering throughout:
// - Domain layer is pure (no infrastructure dependencies)
// - Dependency injection via DI container
// - Repository pattern for data access
// - Service layer for the simulation and search logic
// - HTTP handlers for API endpoints
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/magicfactory/internal/config"
	"github.com/aristath/magicfactory/internal/di"
	"github.com/aristath/magicfactory/internal/server"
	"github.com/aristath/magicfactory/pkg/logger"
)

// main orchestrates startup:
// 1. Loads configuration from environment variables (.env supported)
// 2. Initializes logging
// 3. Wires databases, repositories, services and scheduler jobs
// 4. Starts the scheduler and the HTTP server
// 5. Waits for SIGINT/SIGTERM, cancels running searches and shuts down
//
// Two databases live in the data directory:
// - results.db: search runs and their rows (durable)
// - cache.db: memoised factory estimates (rebuildable)
func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Uint("precision_bits", cfg.PrecisionBits).
		Int("search_workers", cfg.SearchWorkers).
		Msg("Starting magicfactory")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Databases are closed (and the scheduler stopped) on exit so WAL
	// checkpoints land before the process ends.
	container, jobs, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		Container: container,
		Jobs:      jobs,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	container.Scheduler.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Running searches record themselves as cancelled
	for _, id := range container.Runner.Active() {
		container.Runner.Cancel(id)
		log.Info().Str("run_id", id).Msg("Cancelled running search")
	}
	deadline := time.Now().Add(5 * time.Second)
	for len(container.Runner.Active()) > 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
