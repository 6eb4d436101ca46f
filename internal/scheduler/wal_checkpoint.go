package scheduler

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/magicfactory/internal/database"
)

// WALCheckpointJob truncates the write-ahead logs of the databases
type WALCheckpointJob struct {
	log       zerolog.Logger
	databases []*database.DB
}

// NewWALCheckpointJob creates a checkpoint job. Nil databases are skipped.
func NewWALCheckpointJob(log zerolog.Logger, databases ...*database.DB) *WALCheckpointJob {
	return &WALCheckpointJob{
		log:       log.With().Str("job", "wal_checkpoint").Logger(),
		databases: databases,
	}
}

// Name returns the job name
func (j *WALCheckpointJob) Name() string {
	return "wal_checkpoint"
}

// Run checkpoints every database. All databases are attempted; the first
// failure is returned.
func (j *WALCheckpointJob) Run() error {
	var firstErr error
	checked := 0
	for _, db := range j.databases {
		if db == nil {
			continue
		}
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to checkpoint WAL")
			if firstErr == nil {
				firstErr = fmt.Errorf("checkpoint %s: %w", db.Name(), err)
			}
			continue
		}
		checked++
	}

	j.log.Info().Int("checkpointed", checked).Msg("WAL checkpoint completed")
	return firstErr
}
