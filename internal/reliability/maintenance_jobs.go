package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/magicfactory/internal/database"
)

// BackupJob creates a backup and rotates old archives
type BackupJob struct {
	service       *BackupService
	retentionDays int
	timeout       time.Duration
	log           zerolog.Logger
}

// NewBackupJob creates a new backup job
func NewBackupJob(service *BackupService, retentionDays int, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		service:       service,
		retentionDays: retentionDays,
		timeout:       30 * time.Minute,
		log:           log.With().Str("job", "backup").Logger(),
	}
}

// Run executes the backup job
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	backup, err := j.service.CreateBackup(ctx)
	if err != nil {
		return err
	}

	deleted, err := j.service.RotateOldBackups(j.retentionDays)
	if err != nil {
		// The new archive exists; rotation failures are not fatal
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}
	j.log.Info().Str("archive", backup.Filename).Int("rotated", deleted).Msg("Backup job completed")
	return nil
}

// Name returns the job name for scheduler
func (j *BackupJob) Name() string {
	return "backup"
}

// Purger deletes cache entries written before a cutoff. *results.Cache
// satisfies it.
type Purger interface {
	Purge(cutoff time.Time) (int64, error)
}

// CacheMaintenanceJob expires old memoised estimates and compacts the cache
// database
type CacheMaintenanceJob struct {
	cache Purger
	db    *database.DB
	ttl   time.Duration
	log   zerolog.Logger
	now   func() time.Time
}

// NewCacheMaintenanceJob creates a new cache maintenance job. A ttl of 0
// skips expiry and only compacts.
func NewCacheMaintenanceJob(cache Purger, db *database.DB, ttl time.Duration, log zerolog.Logger) *CacheMaintenanceJob {
	return &CacheMaintenanceJob{
		cache: cache,
		db:    db,
		ttl:   ttl,
		log:   log.With().Str("job", "cache_maintenance").Logger(),
		now:   time.Now,
	}
}

// Run executes the cache maintenance job
func (j *CacheMaintenanceJob) Run() error {
	startTime := j.now()

	var purged int64
	if j.ttl > 0 {
		n, err := j.cache.Purge(startTime.Add(-j.ttl))
		if err != nil {
			return err
		}
		purged = n
	}

	if err := j.vacuumDatabase(); err != nil {
		return err
	}

	j.log.Info().
		Int64("purged", purged).
		Dur("duration_ms", j.now().Sub(startTime)).
		Msg("Cache maintenance completed")
	return nil
}

// Name returns the job name for scheduler
func (j *CacheMaintenanceJob) Name() string {
	return "cache_maintenance"
}

// vacuumDatabase performs VACUUM on the cache database
func (j *CacheMaintenanceJob) vacuumDatabase() error {
	sizeBefore, err := j.sizeMB()
	if err != nil {
		return err
	}

	if _, err := j.db.Conn().Exec("VACUUM"); err != nil {
		return fmt.Errorf("VACUUM failed for %s: %w", j.db.Name(), err)
	}

	sizeAfter, err := j.sizeMB()
	if err != nil {
		return err
	}
	j.log.Info().
		Str("database", j.db.Name()).
		Float64("size_before_mb", sizeBefore).
		Float64("size_after_mb", sizeAfter).
		Float64("space_reclaimed_mb", sizeBefore-sizeAfter).
		Msg("VACUUM completed")
	return nil
}

func (j *CacheMaintenanceJob) sizeMB() (float64, error) {
	stats, err := j.db.GetStats()
	if err != nil {
		return 0, err
	}
	return float64(stats.PageCount*stats.PageSize) / 1024 / 1024, nil
}
