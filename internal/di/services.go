package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/magicfactory/internal/archive"
	"github.com/aristath/magicfactory/internal/config"
	"github.com/aristath/magicfactory/internal/events"
	"github.com/aristath/magicfactory/internal/modules/distillation"
	"github.com/aristath/magicfactory/internal/modules/results"
	"github.com/aristath/magicfactory/internal/modules/scaling"
	"github.com/aristath/magicfactory/internal/modules/search"
	"github.com/aristath/magicfactory/internal/reliability"
	"github.com/aristath/magicfactory/internal/scheduler"
)

// InitializeRepositories creates the stores backed by the open databases
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}
	container.Repository = results.NewRepository(container.ResultsDB, log)
	container.Cache = results.NewCache(container.CacheDB)
	return nil
}

// InitializeServices creates the event system, the estimator and everything
// built on top of it
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	container.EventBus = events.NewBus()
	container.EventManager = events.NewManager(container.EventBus, log)

	container.Estimator = distillation.NewService(cfg.PrecisionBits, container.Cache, log)
	container.Runner = search.NewRunner(container.Estimator, container.Repository, container.EventManager, search.RunnerConfig{
		Workers:  cfg.SearchWorkers,
		QubitCap: cfg.SearchQubitCap,
	}, log)
	container.ScalingService = scaling.NewService(container.Estimator, cfg.SearchWorkers, log)

	client, err := archive.NewClient(ctx, cfg.Archive, log)
	if err != nil {
		return fmt.Errorf("failed to create archive client: %w", err)
	}
	container.Archive = client
	container.Exporter = results.NewExporter(container.Repository, cfg.ExportDir, client, container.EventManager, log)
	container.Backups = reliability.NewBackupService(container.Databases(), cfg.BackupDir, client, config.Version, log)

	container.Scheduler = scheduler.New(log)
	return nil
}
