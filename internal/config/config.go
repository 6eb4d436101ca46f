// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/aristath/magicfactory/internal/archive"
	"github.com/aristath/magicfactory/internal/modules/noise"
	"github.com/aristath/magicfactory/internal/modules/search"
)

// Config holds application configuration
type Config struct {
	DataDir   string // Base directory for databases and exports (always absolute)
	ExportDir string // CSV export directory, defaults to <DataDir>/exports
	BackupDir string // Backup archive directory, defaults to <DataDir>/backups
	LogLevel  string
	Port      int
	DevMode   bool

	PrecisionBits  uint // Working precision of the density-matrix engine
	SearchWorkers  int  // 0 = logical CPU count
	SearchQubitCap int  // One-level factories above this are disqualified

	WALCheckpointCron     string
	ExportCron            string // Empty disables the export job
	ScheduledSearchPreset string // Empty disables the scheduled search
	ScheduledSearchCron   string
	BackupCron            string // Empty disables backups
	BackupRetentionDays   int    // 0 keeps every archive
	CacheMaintenanceCron  string // Empty disables cache expiry and compaction
	CacheTTLDays          int    // 0 never expires estimates

	Archive archive.Config
}

// Version of the magicfactory build, reported by /health and recorded in
// backup manifests.
const Version = "1.0.0"

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("MAGICFACTORY_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	exportDir := getEnv("MAGICFACTORY_EXPORT_DIR", filepath.Join(absDataDir, "exports"))
	absExportDir, err := filepath.Abs(exportDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve export directory path: %w", err)
	}

	backupDir, err := filepath.Abs(getEnv("MAGICFACTORY_BACKUP_DIR", filepath.Join(absDataDir, "backups")))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve backup directory path: %w", err)
	}

	cfg := &Config{
		DataDir:   absDataDir,
		ExportDir: absExportDir,
		BackupDir: backupDir,
		Port:      getEnvAsInt("PORT", 8001),
		DevMode:   getEnvAsBool("DEV_MODE", false),
		LogLevel:  getEnv("LOG_LEVEL", "info"),

		PrecisionBits:  uint(getEnvAsInt("PRECISION_BITS", int(noise.DefaultPrecision))),
		SearchWorkers:  getEnvAsInt("SEARCH_WORKERS", 0),
		SearchQubitCap: getEnvAsInt("SEARCH_QUBIT_CAP", search.DefaultQubitCap),

		WALCheckpointCron:     getSchedule("WAL_CHECKPOINT_CRON", "0 0 * * * *"), // Hourly
		ExportCron:            getSchedule("EXPORT_CRON", "0 */10 * * * *"),      // Every 10 minutes
		ScheduledSearchPreset: getEnv("SCHEDULED_SEARCH_PRESET", ""),
		ScheduledSearchCron:   getEnv("SCHEDULED_SEARCH_CRON", "0 0 3 * * *"), // 3 AM daily

		BackupCron:           getSchedule("BACKUP_CRON", "0 0 4 * * 0"), // Sunday 4 AM
		BackupRetentionDays:  getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
		CacheMaintenanceCron: getSchedule("CACHE_MAINTENANCE_CRON", "0 30 4 * * 0"),
		CacheTTLDays:         getEnvAsInt("CACHE_TTL_DAYS", 90),

		Archive: archive.Config{
			Bucket:          getEnv("S3_BUCKET", ""),
			Region:          getEnv("S3_REGION", ""),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			Prefix:          getEnv("S3_PREFIX", "magicfactory"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.PrecisionBits < noise.MinPrecision {
		return fmt.Errorf("PRECISION_BITS=%d below minimum %d", c.PrecisionBits, noise.MinPrecision)
	}
	if c.SearchWorkers < 0 {
		return fmt.Errorf("SEARCH_WORKERS=%d must not be negative", c.SearchWorkers)
	}
	if c.BackupRetentionDays < 0 || c.CacheTTLDays < 0 {
		return fmt.Errorf("BACKUP_RETENTION_DAYS and CACHE_TTL_DAYS must not be negative")
	}

	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedules := map[string]string{
		"WAL_CHECKPOINT_CRON":    c.WALCheckpointCron,
		"EXPORT_CRON":            c.ExportCron,
		"SCHEDULED_SEARCH_CRON":  c.ScheduledSearchCron,
		"BACKUP_CRON":            c.BackupCron,
		"CACHE_MAINTENANCE_CRON": c.CacheMaintenanceCron,
	}
	for name, expr := range schedules {
		if expr == "" {
			continue
		}
		if _, err := parser.Parse(expr); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, expr, err)
		}
	}

	if c.ScheduledSearchPreset != "" {
		if _, err := search.LookupPreset(c.ScheduledSearchPreset); err != nil {
			return fmt.Errorf("invalid SCHEDULED_SEARCH_PRESET: %w", err)
		}
	}
	if c.Archive.Bucket != "" && (c.Archive.AccessKeyID == "") != (c.Archive.SecretAccessKey == "") {
		return fmt.Errorf("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY must be set together")
	}
	return nil
}

// DatabasePath returns the file path of a named database in the data directory
func (c *Config) DatabasePath(name string) string {
	return filepath.Join(c.DataDir, name+".db")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getSchedule is getEnv for cron expressions, where an explicitly empty value
// disables the job.
func getSchedule(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
