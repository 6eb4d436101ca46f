package scheduler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/magicfactory/internal/modules/search"
)

// SearchRunner runs a search to completion.
type SearchRunner interface {
	Run(ctx context.Context, req search.Request) (*search.Summary, error)
}

// ScheduledSearchJob runs one preset search per tick
type ScheduledSearchJob struct {
	runner SearchRunner
	preset string
	log    zerolog.Logger
}

// NewScheduledSearchJob creates a job that runs preset
func NewScheduledSearchJob(runner SearchRunner, preset string, log zerolog.Logger) *ScheduledSearchJob {
	return &ScheduledSearchJob{
		runner: runner,
		preset: preset,
		log:    log.With().Str("job", "scheduled_search").Logger(),
	}
}

// Name returns the job name
func (j *ScheduledSearchJob) Name() string {
	return "scheduled_search"
}

// Run executes the preset search
func (j *ScheduledSearchJob) Run() error {
	summary, err := j.runner.Run(context.Background(), search.Request{Preset: j.preset})
	if err != nil {
		return fmt.Errorf("scheduled %s search: %w", j.preset, err)
	}

	event := j.log.Info().Str("run_id", summary.Run.ID).Int("rows", len(summary.Rows))
	if summary.Best != nil {
		event = event.Str("best", summary.Best.Name)
	}
	event.Msg("Scheduled search finished")
	return nil
}
