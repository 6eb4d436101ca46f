package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/magicfactory/internal/domain"
	"github.com/aristath/magicfactory/internal/events"
	"github.com/aristath/magicfactory/internal/modules/distillation"
	"github.com/aristath/magicfactory/internal/modules/results"
)

const moduleName = "search"

// DefaultFlushEvery is how many rows are buffered between store writes.
const DefaultFlushEvery = 20

// Estimator evaluates one factory.
type Estimator interface {
	Estimate(ctx context.Context, proto distillation.Protocol, p distillation.Params) (*distillation.Result, error)
	Precision() uint
}

// Store persists runs and rows. *results.Repository satisfies it.
type Store interface {
	CreateRun(ctx context.Context, run results.Run) error
	AppendRows(ctx context.Context, runID string, rows []results.Row) error
	FinishRun(ctx context.Context, runID string, status results.RunStatus, errText string, at time.Time) error
}

// Request describes a search: either a preset name or an explicit space.
type Request struct {
	Preset string `json:"preset,omitempty"`
	Space  *Space `json:"space,omitempty"`
	// QubitCap overrides the preset or runner cap for one-level ratings.
	QubitCap int `json:"qubit_cap,omitempty"`
	Workers  int `json:"workers,omitempty"`
}

// Summary is the outcome of a finished search.
type Summary struct {
	Run        results.Run   `json:"run"`
	Rows       []results.Row `json:"rows"`
	Best       *results.Row  `json:"best,omitempty"`
	BestRating float64       `json:"best_rating"`
}

// RunnerConfig tunes a Runner.
type RunnerConfig struct {
	Workers    int
	QubitCap   int
	FlushEvery int
}

// Runner executes searches. Workers only compute; the goroutine that called
// Run is the single writer of rows, counters and the store.
type Runner struct {
	est    Estimator
	store  Store
	events *events.Manager
	cfg    RunnerConfig
	log    zerolog.Logger
	now    func() time.Time

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewRunner creates a search runner. store and em may be nil.
func NewRunner(est Estimator, store Store, em *events.Manager, cfg RunnerConfig, log zerolog.Logger) *Runner {
	if cfg.QubitCap == 0 {
		cfg.QubitCap = DefaultQubitCap
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = DefaultFlushEvery
	}
	return &Runner{
		est:    est,
		store:  store,
		events: em,
		cfg:    cfg,
		log:    log.With().Str("service", "search").Logger(),
		now:    time.Now,
		active: make(map[string]context.CancelFunc),
	}
}

type plan struct {
	space    Space
	preset   string
	qubitCap int
	workers  int
}

func (r *Runner) resolve(req Request) (plan, error) {
	var pl plan
	switch {
	case req.Space != nil && req.Preset != "":
		return pl, fmt.Errorf("give either a preset or a space, not both: %w", domain.ErrInvalidInput)
	case req.Space != nil:
		pl.space = *req.Space
		pl.qubitCap = r.cfg.QubitCap
	case req.Preset != "":
		preset, err := LookupPreset(req.Preset)
		if err != nil {
			return pl, err
		}
		pl.space = preset.Space
		pl.preset = preset.Name
		pl.qubitCap = r.cfg.QubitCap
		if preset.QubitCap != 0 {
			pl.qubitCap = preset.QubitCap
		}
	default:
		return pl, fmt.Errorf("no preset or space given: %w", domain.ErrInvalidInput)
	}
	if req.QubitCap != 0 {
		pl.qubitCap = req.QubitCap
	}
	if err := pl.space.Validate(); err != nil {
		return pl, err
	}
	pl.workers = req.Workers
	if pl.workers <= 0 {
		pl.workers = r.cfg.Workers
	}
	return pl, nil
}

func (r *Runner) newRun(pl plan) results.Run {
	return results.Run{
		ID:        uuid.New().String(),
		Protocol:  pl.space.Protocol,
		Preset:    pl.preset,
		Precision: r.est.Precision(),
		Status:    results.RunRunning,
		Total:     pl.space.Size(),
		StartedAt: r.now(),
	}
}

// Run executes a search to completion on the calling goroutine.
func (r *Runner) Run(ctx context.Context, req Request) (*Summary, error) {
	pl, err := r.resolve(req)
	if err != nil {
		return nil, err
	}
	run := r.newRun(pl)
	if r.store != nil {
		if err := r.store.CreateRun(ctx, run); err != nil {
			return nil, err
		}
	}
	return r.execute(ctx, pl, run)
}

// Start launches a search in the background and returns its run id. The
// search outlives ctx; stop it with Cancel.
func (r *Runner) Start(ctx context.Context, req Request) (string, error) {
	pl, err := r.resolve(req)
	if err != nil {
		return "", err
	}
	run := r.newRun(pl)
	if r.store != nil {
		if err := r.store.CreateRun(ctx, run); err != nil {
			return "", err
		}
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.mu.Lock()
	r.active[run.ID] = cancel
	r.mu.Unlock()

	go func() {
		defer func() {
			r.mu.Lock()
			delete(r.active, run.ID)
			r.mu.Unlock()
			cancel()
		}()
		if _, err := r.execute(runCtx, pl, run); err != nil {
			r.log.Warn().Err(err).Str("run_id", run.ID).Msg("Background search ended with error")
		}
	}()
	return run.ID, nil
}

// Cancel stops a background search. It reports whether the run was active.
func (r *Runner) Cancel(runID string) bool {
	r.mu.Lock()
	cancel, ok := r.active[runID]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Active lists the ids of running background searches.
func (r *Runner) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.active))
	for id := range r.active {
		ids = append(ids, id)
	}
	return ids
}

func (r *Runner) execute(ctx context.Context, pl plan, run results.Run) (*Summary, error) {
	proto := pl.space.Protocol
	points := pl.space.Points()
	pool := NewWorkerPool(pl.workers)
	start := r.now()
	log := r.log.With().Str("run_id", run.ID).Str("protocol", string(proto)).Logger()

	r.emit(&events.SearchStartedData{
		RunID:     run.ID,
		Protocol:  string(proto),
		Preset:    pl.preset,
		Total:     len(points),
		Workers:   pool.Workers(),
		Precision: run.Precision,
	})
	log.Info().Int("points", len(points)).Int("workers", pool.Workers()).Msg("Starting search")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		buffer   []results.Row
		current  int
		failed   int
		storeErr error
	)
	flush := func() {
		batch := buffer
		buffer = nil
		if r.store == nil || len(batch) == 0 || storeErr != nil {
			return
		}
		if err := r.store.AppendRows(context.WithoutCancel(ctx), run.ID, batch); err != nil {
			storeErr = err
			cancel()
		}
	}

	evals, poolErr := pool.EvaluateBatch(ctx, points,
		func(ctx context.Context, p distillation.Params) (*distillation.Result, error) {
			return r.est.Estimate(ctx, proto, p)
		},
		func(ev Evaluation) {
			if isContextErr(ev.Err) {
				return
			}
			row := r.toRow(run, proto, ev)
			current++
			if !row.OK() {
				failed++
				log.Debug().Int("seq", row.Seq).Str("status", string(row.Status)).Str("error", row.Error).Msg("Point rejected")
			}
			buffer = append(buffer, row)
			if len(buffer) >= r.cfg.FlushEvery {
				flush()
				r.emit(&events.SearchProgressData{
					RunID:     run.ID,
					Current:   current,
					Total:     len(points),
					Failed:    failed,
					Message:   row.Name,
					ElapsedMS: r.now().Sub(start).Milliseconds(),
				})
			}
		},
	)
	flush()

	summary := &Summary{Run: run, BestRating: Disqualified}
	for _, ev := range evals {
		if isContextErr(ev.Err) {
			continue
		}
		row := r.toRow(run, proto, ev)
		summary.Rows = append(summary.Rows, row)
		if !row.OK() || ev.Result == nil {
			continue
		}
		rating := Rating(proto, ev.Result.Factory, pl.qubitCap)
		if summary.Best == nil || rating > summary.BestRating {
			best := row
			summary.Best = &best
			summary.BestRating = rating
		}
	}
	summary.Run.Completed = current
	summary.Run.Failed = failed

	finished := r.now()
	summary.Run.FinishedAt = &finished
	status, errText := results.RunCompleted, ""
	switch {
	case storeErr != nil:
		status, errText = results.RunFailed, storeErr.Error()
	case poolErr != nil && errors.Is(poolErr, context.Canceled):
		status, errText = results.RunCancelled, poolErr.Error()
	case poolErr != nil:
		status, errText = results.RunFailed, poolErr.Error()
	}
	summary.Run.Status = status
	summary.Run.Error = errText

	if r.store != nil {
		// The run context may be cancelled; the terminal status still has to land.
		if err := r.store.FinishRun(context.WithoutCancel(ctx), run.ID, status, errText, finished); err != nil {
			log.Error().Err(err).Msg("Failed to record run status")
			if storeErr == nil {
				storeErr = err
			}
		}
	}

	duration := finished.Sub(start)
	if status != results.RunCompleted {
		err := storeErr
		if err == nil {
			err = poolErr
		}
		r.emit(&events.SearchFailedData{
			RunID:     run.ID,
			Error:     err.Error(),
			Cancelled: status == results.RunCancelled,
		})
		log.Warn().Err(err).Str("status", string(status)).Int("evaluated", current).Msg("Search stopped")
		return summary, fmt.Errorf("search %s %s: %w", run.ID, status, err)
	}

	completed := &events.SearchCompletedData{
		RunID:      run.ID,
		Protocol:   string(proto),
		Evaluated:  current,
		Failed:     failed,
		DurationMS: duration.Milliseconds(),
	}
	if summary.Best != nil {
		completed.BestName = summary.Best.Name
		completed.BestErrorRate = summary.Best.ErrorRate
		completed.BestQubits = summary.Best.Qubits
	}
	r.emit(completed)

	logEvent := log.Info().Int("evaluated", current).Int("failed", failed).Dur("duration", duration)
	if summary.Best != nil {
		logEvent = logEvent.Str("best", summary.Best.Name).Float64("best_rating", summary.BestRating)
	}
	logEvent.Msg("Search completed")
	return summary, storeErr
}

func (r *Runner) toRow(run results.Run, proto distillation.Protocol, ev Evaluation) results.Row {
	row := results.Row{
		RunID:     run.ID,
		Seq:       ev.Index,
		Protocol:  proto,
		Date:      run.StartedAt,
		Precision: run.Precision,
		Params:    ev.Params,
		Status:    StatusOf(ev.Err),
	}
	if ev.Err != nil {
		row.Error = ev.Err.Error()
		return row
	}
	if ev.Result == nil {
		row.Status = results.StatusFailed
		row.Error = "no result"
		return row
	}
	f := ev.Result.Factory
	row.Name = f.Name
	row.ErrorRate = f.ErrorRate
	row.Qubits = f.Qubits
	row.Cycles = f.Cycles
	return row
}

// StatusOf classifies an evaluation error.
func StatusOf(err error) results.Status {
	switch {
	case err == nil:
		return results.StatusOK
	case errors.Is(err, domain.ErrInvalidInput):
		return results.StatusInvalid
	case errors.Is(err, domain.ErrUnstableResult):
		return results.StatusUnstable
	default:
		return results.StatusFailed
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (r *Runner) emit(data events.EventData) {
	if r.events != nil {
		r.events.EmitTyped(moduleName, data)
	}
}
