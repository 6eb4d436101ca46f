package search

import (
	"context"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/aristath/magicfactory/internal/modules/distillation"
)

// DefaultWorkers is used when the logical CPU count is unavailable.
const DefaultWorkers = 10

// Evaluation is the outcome of one grid point.
type Evaluation struct {
	Index  int
	Params distillation.Params
	Result *distillation.Result
	Err    error
}

// EvalFunc evaluates one point. It runs on a worker goroutine.
type EvalFunc func(ctx context.Context, p distillation.Params) (*distillation.Result, error)

// WorkerPool runs grid evaluations on a bounded set of goroutines
type WorkerPool struct {
	numWorkers int
}

// NewWorkerPool creates a worker pool. A non-positive count selects the
// number of logical CPUs.
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = cpuWorkers()
	}
	return &WorkerPool{numWorkers: numWorkers}
}

func cpuWorkers() int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		return DefaultWorkers
	}
	return n
}

// Workers returns the pool size.
func (wp *WorkerPool) Workers() int {
	return wp.numWorkers
}

// EvaluateBatch evaluates every point and returns the evaluations in input
// order. onResult, if set, sees each evaluation in completion order on the
// calling goroutine. Workers stop picking up points once ctx is done; points
// never started carry ctx.Err() and the call returns it.
func (wp *WorkerPool) EvaluateBatch(
	ctx context.Context,
	points []distillation.Params,
	eval EvalFunc,
	onResult func(Evaluation),
) ([]Evaluation, error) {
	out := make([]Evaluation, len(points))
	if len(points) == 0 {
		return out, nil
	}

	jobs := make(chan int, len(points))
	results := make(chan Evaluation, len(points))

	numActualWorkers := wp.numWorkers
	if len(points) < numActualWorkers {
		numActualWorkers = len(points)
	}

	var wg sync.WaitGroup
	for i := 0; i < numActualWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if ctx.Err() != nil {
					return
				}
				res, err := eval(ctx, points[idx])
				results <- Evaluation{Index: idx, Params: points[idx], Result: res, Err: err}
			}
		}()
	}

	for idx := range points {
		jobs <- idx
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	done := make([]bool, len(points))
	for ev := range results {
		out[ev.Index] = ev
		done[ev.Index] = true
		if onResult != nil {
			onResult(ev)
		}
	}

	if err := ctx.Err(); err != nil {
		for i, ok := range done {
			if !ok {
				out[i] = Evaluation{Index: i, Params: points[i], Err: err}
			}
		}
		return out, err
	}
	return out, nil
}
