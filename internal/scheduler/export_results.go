package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/magicfactory/internal/modules/results"
)

// PendingExporter writes the CSVs of finished runs.
type PendingExporter interface {
	ExportPending(ctx context.Context) ([]results.Export, error)
}

// ExportResultsJob exports completed searches that have no CSV yet
type ExportResultsJob struct {
	exporter PendingExporter
	timeout  time.Duration
	log      zerolog.Logger
}

// NewExportResultsJob creates an export job
func NewExportResultsJob(exporter PendingExporter, log zerolog.Logger) *ExportResultsJob {
	return &ExportResultsJob{
		exporter: exporter,
		timeout:  5 * time.Minute,
		log:      log.With().Str("job", "export_results").Logger(),
	}
}

// Name returns the job name
func (j *ExportResultsJob) Name() string {
	return "export_results"
}

// Run exports pending runs
func (j *ExportResultsJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	exports, err := j.exporter.ExportPending(ctx)
	if err != nil {
		return err
	}
	if len(exports) > 0 {
		j.log.Info().Int("exported", len(exports)).Msg("Exported finished searches")
	}
	return nil
}
