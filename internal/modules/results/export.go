package results

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/aristath/magicfactory/internal/events"
)

// Uploader copies an exported file to remote storage.
type Uploader interface {
	Enabled() bool
	Upload(ctx context.Context, key string, body io.Reader) (location string, err error)
}

// Export describes one written CSV.
type Export struct {
	RunID    string `json:"run_id"`
	Path     string `json:"path"`
	Rows     int    `json:"rows"`
	Location string `json:"location,omitempty"`
}

// Exporter writes finished runs to CSV files in a directory and optionally
// uploads them.
type Exporter struct {
	repo     *Repository
	dir      string
	uploader Uploader
	events   *events.Manager
	log      zerolog.Logger
}

// NewExporter creates an exporter. uploader and em may be nil.
func NewExporter(repo *Repository, dir string, uploader Uploader, em *events.Manager, log zerolog.Logger) *Exporter {
	return &Exporter{
		repo:     repo,
		dir:      dir,
		uploader: uploader,
		events:   em,
		log:      log.With().Str("component", "results_exporter").Logger(),
	}
}

// ExportRun writes the CSV of one run and records its path. An upload
// failure is logged and leaves the local file in place.
func (e *Exporter) ExportRun(ctx context.Context, runID string) (*Export, error) {
	run, err := e.repo.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	rows, err := e.repo.ListRows(ctx, runID)
	if err != nil {
		return nil, err
	}

	stamp := run.StartedAt
	if run.FinishedAt != nil {
		stamp = *run.FinishedAt
	}
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(e.dir, FileName(FileStem(run.Protocol), stamp))

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	n, err := WriteCSV(f, run.Protocol, rows)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}

	export := &Export{RunID: runID, Path: path, Rows: n}
	if e.uploader != nil && e.uploader.Enabled() {
		export.Location, err = e.upload(ctx, path)
		if err != nil {
			e.log.Warn().Err(err).Str("path", path).Msg("Failed to upload export")
		}
	}

	if err := e.repo.MarkExported(ctx, runID, path); err != nil {
		return nil, err
	}

	if e.events != nil {
		e.events.EmitTyped("results", &events.ExportCompletedData{
			RunID:    runID,
			Path:     path,
			Rows:     n,
			Uploaded: export.Location != "",
			Location: export.Location,
		})
	}
	e.log.Info().Str("run_id", runID).Str("path", path).Int("rows", n).Msg("Exported run")
	return export, nil
}

func (e *Exporter) upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return e.uploader.Upload(ctx, filepath.Base(path), f)
}

// ExportPending exports every completed run that has no CSV yet.
func (e *Exporter) ExportPending(ctx context.Context) ([]Export, error) {
	runs, err := e.repo.ListUnexported(ctx)
	if err != nil {
		return nil, err
	}
	var out []Export
	for _, run := range runs {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		export, err := e.ExportRun(ctx, run.ID)
		if err != nil {
			return out, fmt.Errorf("export run %s: %w", run.ID, err)
		}
		out = append(out, *export)
	}
	return out, nil
}
