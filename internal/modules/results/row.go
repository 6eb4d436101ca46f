// Package results stores factory search output: the CSV files that record a
// search, the SQLite repository of runs and rows, and the estimate cache.
package results

import (
	"time"

	"github.com/aristath/magicfactory/internal/domain"
	"github.com/aristath/magicfactory/internal/modules/distillation"
)

// Status is the outcome of one evaluated parameter point.
type Status string

const (
	StatusOK       Status = "ok"
	StatusInvalid  Status = "invalid"
	StatusUnstable Status = "unstable"
	StatusFailed   Status = "failed"
)

// Row is one evaluated parameter point of a search.
type Row struct {
	RunID     string                `json:"run_id"`
	Seq       int                   `json:"seq"`
	Protocol  distillation.Protocol `json:"protocol"`
	Date      time.Time             `json:"date"`
	Precision uint                  `json:"precision_in_bits"`
	Params    distillation.Params   `json:"params"`
	Name      string                `json:"name,omitempty"`
	ErrorRate float64               `json:"error_rate"`
	Qubits    int                   `json:"qubits"`
	Cycles    float64               `json:"code_cycles"`
	Status    Status                `json:"status"`
	Error     string                `json:"error,omitempty"`
}

// OK reports whether the row carries a factory estimate.
func (r Row) OK() bool {
	return r.Status == StatusOK
}

// Factories rebuilds the cost summaries of the successful rows. Rows do not
// keep the layout, so Dimensions is zero and TGates is 1.
func Factories(rows []Row) []domain.MagicStateFactory {
	factories := make([]domain.MagicStateFactory, 0, len(rows))
	for _, r := range rows {
		if r.OK() {
			factories = append(factories, domain.MagicStateFactory{
				Name: r.Name, ErrorRate: r.ErrorRate, Qubits: r.Qubits, Cycles: r.Cycles, TGates: 1,
			})
		}
	}
	return factories
}

// RunStatus is the lifecycle state of a search run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Run is the bookkeeping record of one search.
type Run struct {
	ID         string                `json:"id"`
	Protocol   distillation.Protocol `json:"protocol"`
	Preset     string                `json:"preset,omitempty"`
	Precision  uint                  `json:"precision_bits"`
	Status     RunStatus             `json:"status"`
	Total      int                   `json:"total"`
	Completed  int                   `json:"completed"`
	Failed     int                   `json:"failed"`
	Error      string                `json:"error,omitempty"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt *time.Time            `json:"finished_at,omitempty"`
	ExportPath string                `json:"export_path,omitempty"`
}
