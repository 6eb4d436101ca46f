package di

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/magicfactory/internal/config"
	"github.com/aristath/magicfactory/internal/reliability"
	"github.com/aristath/magicfactory/internal/scheduler"
)

// RegisterJobs registers the maintenance and search jobs with the scheduler
// Returns JobInstances for manual triggering via API
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}
	if container.Scheduler == nil {
		return nil, fmt.Errorf("scheduler not initialized")
	}

	instances := &JobInstances{}

	// WAL checkpoint across both databases
	instances.WALCheckpoint = scheduler.NewWALCheckpointJob(log, container.Databases()...)
	if cfg.WALCheckpointCron != "" {
		if err := container.Scheduler.AddJob(cfg.WALCheckpointCron, instances.WALCheckpoint); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", instances.WALCheckpoint.Name(), err)
		}
	}

	// CSV export (and upload) of finished runs
	instances.ExportResults = scheduler.NewExportResultsJob(container.Exporter, log)
	if cfg.ExportCron != "" {
		if err := container.Scheduler.AddJob(cfg.ExportCron, instances.ExportResults); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", instances.ExportResults.Name(), err)
		}
	}

	// Database snapshots, rotated by age
	instances.Backup = reliability.NewBackupJob(container.Backups, cfg.BackupRetentionDays, log)
	if cfg.BackupCron != "" {
		if err := container.Scheduler.AddJob(cfg.BackupCron, instances.Backup); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", instances.Backup.Name(), err)
		}
	}

	// Estimate cache expiry and compaction
	ttl := time.Duration(cfg.CacheTTLDays) * 24 * time.Hour
	instances.CacheMaintenance = reliability.NewCacheMaintenanceJob(container.Cache, container.CacheDB, ttl, log)
	if cfg.CacheMaintenanceCron != "" {
		if err := container.Scheduler.AddJob(cfg.CacheMaintenanceCron, instances.CacheMaintenance); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", instances.CacheMaintenance.Name(), err)
		}
	}

	// Optional recurring search over a preset
	if cfg.ScheduledSearchPreset != "" {
		instances.ScheduledSearch = scheduler.NewScheduledSearchJob(container.Runner, cfg.ScheduledSearchPreset, log)
		if err := container.Scheduler.AddJob(cfg.ScheduledSearchCron, instances.ScheduledSearch); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", instances.ScheduledSearch.Name(), err)
		}
	}

	log.Info().Int("jobs", len(container.Scheduler.Jobs())).Msg("Jobs registered")
	return instances, nil
}
