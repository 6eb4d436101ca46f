package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/magicfactory/internal/database"
	"github.com/aristath/magicfactory/internal/domain"
	"github.com/aristath/magicfactory/internal/modules/distillation"
)

// Repository persists search runs and their rows.
// Database: results.db (runs, factory_rows tables)
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a results repository on results.db
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "results_repository").Logger(),
	}
}

// Filter selects rows across runs. Zero fields do not constrain.
type Filter struct {
	Protocol     distillation.Protocol
	PPhys        float64
	MinErrorRate float64
	MaxErrorRate float64
	MaxQubits    int
	Limit        int
}

// CreateRun records a new run.
func (r *Repository) CreateRun(ctx context.Context, run Run) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (id, protocol, preset, precision_bits, status, total, completed, failed, error, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, string(run.Protocol), run.Preset, run.Precision, string(run.Status),
		run.Total, run.Completed, run.Failed, run.Error, run.StartedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to create run %s: %w", run.ID, err)
	}
	return nil
}

// AppendRows inserts rows and advances the run's counters in one transaction.
func (r *Repository) AppendRows(ctx context.Context, runID string, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	failed := 0
	err := database.WithTransaction(r.db.Conn(), func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO factory_rows (
				run_id, seq, protocol, date, precision_bits, pphys,
				dx, dz, dm, dx2, dz2, dm2, n1,
				name, error_rate, qubits, code_cycles, status, error
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, row := range rows {
			var errorRate, cycles, qubits interface{}
			if row.OK() {
				errorRate, cycles, qubits = row.ErrorRate, row.Cycles, row.Qubits
			} else {
				failed++
			}
			p := row.Params
			if _, err := stmt.ExecContext(ctx,
				runID, row.Seq, string(row.Protocol), row.Date.Format(DateLayout), row.Precision, p.PPhys,
				p.DX, p.DZ, p.DM, p.DX2, p.DZ2, p.DM2, p.NL1,
				row.Name, errorRate, qubits, cycles, string(row.Status), row.Error,
			); err != nil {
				return fmt.Errorf("row %d: %w", row.Seq, err)
			}
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE runs SET completed = completed + ?, failed = failed + ? WHERE id = ?
		`, len(rows), failed, runID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("run %s: %w", runID, domain.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append rows to run %s: %w", runID, err)
	}

	r.log.Debug().
		Str("run_id", runID).
		Int("rows", len(rows)).
		Int("failed", failed).
		Msg("Appended search rows")
	return nil
}

// FinishRun sets the terminal status of a run.
func (r *Repository) FinishRun(ctx context.Context, runID string, status RunStatus, errText string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?
	`, string(status), errText, at.Unix(), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", runID, domain.ErrNotFound)
	}
	return nil
}

const runColumns = `id, protocol, preset, precision_bits, status, total, completed, failed, error, started_at, finished_at, export_path`

// GetRun returns a run by id.
func (r *Repository) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.queryRuns(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
}

// ListUnexported returns completed runs without an exported CSV, oldest first.
func (r *Repository) ListUnexported(ctx context.Context) ([]Run, error) {
	return r.queryRuns(ctx, `
		SELECT `+runColumns+` FROM runs
		WHERE status = ? AND export_path = ''
		ORDER BY started_at, id
	`, string(RunCompleted))
}

// MarkExported records where a run's CSV was written.
func (r *Repository) MarkExported(ctx context.Context, runID, path string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE runs SET export_path = ? WHERE id = ?`, path, runID)
	if err != nil {
		return fmt.Errorf("failed to mark run %s exported: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", runID, domain.ErrNotFound)
	}
	return nil
}

func (r *Repository) queryRuns(ctx context.Context, query string, args ...interface{}) ([]Run, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run       Run
		protocol  string
		status    string
		precision int64
		started   int64
		finished  sql.NullInt64
	)
	if err := s.Scan(&run.ID, &protocol, &run.Preset, &precision, &status,
		&run.Total, &run.Completed, &run.Failed, &run.Error, &started, &finished, &run.ExportPath); err != nil {
		return nil, err
	}
	run.Protocol = distillation.Protocol(protocol)
	run.Status = RunStatus(status)
	run.Precision = uint(precision)
	run.StartedAt = time.Unix(started, 0).UTC()
	if finished.Valid {
		t := time.Unix(finished.Int64, 0).UTC()
		run.FinishedAt = &t
	}
	return &run, nil
}

const rowColumns = `run_id, seq, protocol, date, precision_bits, pphys, dx, dz, dm, dx2, dz2, dm2, n1,
	name, error_rate, qubits, code_cycles, status, error`

// ListRows returns a run's rows in evaluation order.
func (r *Repository) ListRows(ctx context.Context, runID string) ([]Row, error) {
	return r.queryRows(ctx, `SELECT `+rowColumns+` FROM factory_rows WHERE run_id = ? ORDER BY seq`, runID)
}

// FindRows returns successful rows matching f, lowest error rate first.
func (r *Repository) FindRows(ctx context.Context, f Filter) ([]Row, error) {
	var (
		where = []string{"status = ?"}
		args  = []interface{}{string(StatusOK)}
	)
	if f.Protocol != "" {
		where = append(where, "protocol = ?")
		args = append(args, string(f.Protocol))
	}
	if f.PPhys > 0 {
		where = append(where, "pphys = ?")
		args = append(args, f.PPhys)
	}
	if f.MinErrorRate > 0 {
		where = append(where, "error_rate >= ?")
		args = append(args, f.MinErrorRate)
	}
	if f.MaxErrorRate > 0 {
		where = append(where, "error_rate <= ?")
		args = append(args, f.MaxErrorRate)
	}
	if f.MaxQubits > 0 {
		where = append(where, "qubits <= ?")
		args = append(args, f.MaxQubits)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 1000
	}
	args = append(args, limit)

	query := `SELECT ` + rowColumns + ` FROM factory_rows WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY error_rate, qubits LIMIT ?`
	return r.queryRows(ctx, query, args...)
}

func (r *Repository) queryRows(ctx context.Context, query string, args ...interface{}) ([]Row, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			row       Row
			protocol  string
			date      string
			precision int64
			status    string
			errorRate sql.NullFloat64
			qubits    sql.NullInt64
			cycles    sql.NullFloat64
		)
		p := &row.Params
		if err := rows.Scan(&row.RunID, &row.Seq, &protocol, &date, &precision, &p.PPhys,
			&p.DX, &p.DZ, &p.DM, &p.DX2, &p.DZ2, &p.DM2, &p.NL1,
			&row.Name, &errorRate, &qubits, &cycles, &status, &row.Error); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row.Protocol = distillation.Protocol(protocol)
		row.Precision = uint(precision)
		row.Status = Status(status)
		row.ErrorRate = errorRate.Float64
		row.Qubits = int(qubits.Int64)
		row.Cycles = cycles.Float64
		if t, err := time.Parse(DateLayout, date); err == nil {
			row.Date = t
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}
