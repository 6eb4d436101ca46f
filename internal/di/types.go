// Package di provides dependency injection for the magicfactory server.
package di

import (
	"github.com/aristath/magicfactory/internal/archive"
	"github.com/aristath/magicfactory/internal/database"
	"github.com/aristath/magicfactory/internal/events"
	"github.com/aristath/magicfactory/internal/modules/distillation"
	"github.com/aristath/magicfactory/internal/modules/results"
	"github.com/aristath/magicfactory/internal/modules/scaling"
	"github.com/aristath/magicfactory/internal/modules/search"
	"github.com/aristath/magicfactory/internal/reliability"
	"github.com/aristath/magicfactory/internal/scheduler"
)

/**
 * Container holds all application dependencies.
 *
 * Initialization order:
 *   1. Databases (results, cache)
 *   2. Repositories (runs and rows, estimate cache)
 *   3. Services (estimator, search runner, scaling, exporter, archive, backups)
 *   4. Jobs (scheduler entries)
 */
type Container struct {
	// Databases
	ResultsDB *database.DB
	CacheDB   *database.DB

	// Repositories
	Repository *results.Repository
	Cache      *results.Cache

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Services
	Estimator      *distillation.Service
	Runner         *search.Runner
	ScalingService *scaling.Service
	Exporter       *results.Exporter
	Archive        *archive.Client
	Backups        *reliability.BackupService

	Scheduler *scheduler.Scheduler
}

// JobInstances holds the registered scheduler jobs for manual triggering.
// ScheduledSearch is nil when no preset is configured.
type JobInstances struct {
	WALCheckpoint    scheduler.Job
	ExportResults    scheduler.Job
	Backup           scheduler.Job
	CacheMaintenance scheduler.Job
	ScheduledSearch  scheduler.Job
}

// Databases lists the open databases in a fixed order.
func (c *Container) Databases() []*database.DB {
	var dbs []*database.DB
	for _, db := range []*database.DB{c.ResultsDB, c.CacheDB} {
		if db != nil {
			dbs = append(dbs, db)
		}
	}
	return dbs
}

// Close closes every open database and stops the scheduler.
func (c *Container) Close() error {
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	var firstErr error
	for _, db := range c.Databases() {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
