package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/magicfactory/internal/database"
	"github.com/aristath/magicfactory/internal/reliability"
	"github.com/aristath/magicfactory/internal/scheduler"
)

// JobLister reports scheduled jobs.
type JobLister interface {
	Jobs() []scheduler.JobInfo
}

// ActiveSearches reports background searches in flight.
type ActiveSearches interface {
	Active() []string
}

// ArchiveLister lists archived result files.
type ArchiveLister interface {
	Enabled() bool
	List(ctx context.Context) ([]string, error)
}

// BackupLister lists local backup archives.
type BackupLister interface {
	ListBackups() ([]reliability.BackupInfo, error)
}

// PrecisionReporter reports the estimator's working precision.
type PrecisionReporter interface {
	Precision() uint
}

// SystemDeps groups what the system handlers read from. Nil members are
// reported as absent.
type SystemDeps struct {
	DataDir   string
	Databases []*database.DB
	Scheduler JobLister
	Searches  ActiveSearches
	Archive   ArchiveLister
	Backups   BackupLister
	Estimator PrecisionReporter
	Jobs      []scheduler.Job
}

// SystemHandlers handles system-wide HTTP requests
type SystemHandlers struct {
	deps      SystemDeps
	log       zerolog.Logger
	startedAt time.Time
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(deps SystemDeps, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		deps:      deps,
		log:       log.With().Str("handler", "system").Logger(),
		startedAt: time.Now(),
	}
}

// SystemStatusResponse is the body of GET /api/system/status
type SystemStatusResponse struct {
	Status         string   `json:"status"` // "healthy" or "unhealthy"
	UptimeSeconds  int64    `json:"uptime_seconds"`
	CPUPercent     float64  `json:"cpu_percent"`
	MemoryPercent  float64  `json:"memory_percent"`
	LogicalCPUs    int      `json:"logical_cpus"`
	Goroutines     int      `json:"goroutines"`
	PrecisionBits  uint     `json:"precision_bits,omitempty"`
	ActiveSearches []string `json:"active_searches"`
	ArchiveEnabled bool     `json:"archive_enabled"`
	DataDir        string   `json:"data_dir"`
}

// DatabaseStatsResponse is the body of GET /api/system/database/stats
type DatabaseStatsResponse struct {
	Databases   []database.Stats `json:"databases"`
	TotalSizeMB float64          `json:"total_size_mb"`
	LastChecked string           `json:"last_checked"`
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	for _, db := range h.deps.Databases {
		if err := db.QuickCheck(r.Context()); err != nil {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Database check failed")
			status = "unhealthy"
		}
	}

	cpuPercent, memPercent := h.getSystemStats()
	cpus, err := cpu.Counts(true)
	if err != nil || cpus <= 0 {
		cpus = runtime.NumCPU()
	}

	response := SystemStatusResponse{
		Status:         status,
		UptimeSeconds:  int64(time.Since(h.startedAt).Seconds()),
		CPUPercent:     cpuPercent,
		MemoryPercent:  memPercent,
		LogicalCPUs:    cpus,
		Goroutines:     runtime.NumGoroutine(),
		ActiveSearches: []string{},
		DataDir:        h.deps.DataDir,
	}
	if h.deps.Estimator != nil {
		response.PrecisionBits = h.deps.Estimator.Precision()
	}
	if h.deps.Searches != nil {
		response.ActiveSearches = append(response.ActiveSearches, h.deps.Searches.Active()...)
	}
	if h.deps.Archive != nil {
		response.ArchiveEnabled = h.deps.Archive.Enabled()
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleJobsStatus handles GET /api/system/jobs
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	jobs := []scheduler.JobInfo{}
	if h.deps.Scheduler != nil {
		jobs = append(jobs, h.deps.Scheduler.Jobs()...)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": jobs,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"count":     len(jobs),
		},
	})
}

// HandleTriggerJob handles POST /api/system/jobs/{name}. The job runs in the
// background; the response only acknowledges it.
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var job scheduler.Job
	for _, j := range h.deps.Jobs {
		if j.Name() == name {
			job = j
			break
		}
	}
	if job == nil {
		http.Error(w, "unknown job "+name, http.StatusNotFound)
		return
	}

	go func() {
		if err := job.Run(); err != nil {
			h.log.Error().Err(err).Str("job", name).Msg("Manually triggered job failed")
			return
		}
		h.log.Info().Str("job", name).Msg("Manually triggered job completed")
	}()

	h.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"data": map[string]interface{}{"job": name, "status": "triggered"},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleDatabaseStats handles GET /api/system/database/stats
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	response := DatabaseStatsResponse{
		Databases:   []database.Stats{},
		LastChecked: time.Now().Format(time.RFC3339),
	}
	for _, db := range h.deps.Databases {
		stats, err := db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
			continue
		}
		response.Databases = append(response.Databases, *stats)
		response.TotalSizeMB += float64(stats.SizeBytes+stats.WALSizeBytes) / 1024 / 1024
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleArchiveList handles GET /api/system/archive
func (h *SystemHandlers) HandleArchiveList(w http.ResponseWriter, r *http.Request) {
	if h.deps.Archive == nil || !h.deps.Archive.Enabled() {
		http.Error(w, "archive not configured", http.StatusServiceUnavailable)
		return
	}

	keys, err := h.deps.Archive.List(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list archive")
		http.Error(w, "Failed to list archive", http.StatusBadGateway)
		return
	}
	if keys == nil {
		keys = []string{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": keys,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"count":     len(keys),
		},
	})
}

// HandleBackupList handles GET /api/system/backups
func (h *SystemHandlers) HandleBackupList(w http.ResponseWriter, r *http.Request) {
	var backups []reliability.BackupInfo
	if h.deps.Backups != nil {
		var err error
		backups, err = h.deps.Backups.ListBackups()
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to list backups")
			http.Error(w, "Failed to list backups", http.StatusInternalServerError)
			return
		}
	}
	if backups == nil {
		backups = []reliability.BackupInfo{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": backups,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"count":     len(backups),
		},
	})
}

// getSystemStats samples CPU and RAM usage percentages
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	// 100ms sample keeps the endpoint responsive
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
