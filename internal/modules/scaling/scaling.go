// Package scaling measures how factory error rates scale with the physical
// error rate: it sweeps pphys for fixed code distances and fits a power law
// to each sweep.
package scaling

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/magicfactory/internal/domain"
	"github.com/aristath/magicfactory/internal/modules/distillation"
	"github.com/aristath/magicfactory/internal/modules/search"
	"github.com/aristath/magicfactory/pkg/formulas"
)

// Request selects the sweep. With no Distances the error-rate-scaling preset
// supplies protocol, pphys grid and distances.
type Request struct {
	Protocol  distillation.Protocol `json:"protocol,omitempty"`
	PPhys     []float64             `json:"pphys,omitempty"`
	Distances []distillation.Params `json:"distances,omitempty"`
	Workers   int                   `json:"workers,omitempty"`
}

// Point is one successful estimate of a sweep.
type Point struct {
	PPhys     float64 `json:"pphys"`
	ErrorRate float64 `json:"error_rate"`
	Qubits    int     `json:"qubits"`
}

// Fit is the sweep and power-law fit for one distance tuple.
type Fit struct {
	Distances distillation.Params `json:"distances"`
	Points    []Point             `json:"points"`
	Failed    int                 `json:"failed"`
	Law       *formulas.PowerLaw  `json:"law,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// Report holds one Fit per distance tuple in request order.
type Report struct {
	Protocol distillation.Protocol `json:"protocol"`
	Fits     []Fit                 `json:"fits"`
}

// Service runs scaling sweeps.
type Service struct {
	est     search.Estimator
	workers int
	log     zerolog.Logger
}

// NewService creates a scaling service. workers <= 0 uses the CPU count.
func NewService(est search.Estimator, workers int, log zerolog.Logger) *Service {
	return &Service{
		est:     est,
		workers: workers,
		log:     log.With().Str("service", "scaling").Logger(),
	}
}

// DefaultRequest expands the error-rate-scaling preset into a request.
func DefaultRequest() Request {
	preset, _ := search.LookupPreset(search.PresetErrorRateScaling)
	space := preset.Space
	req := Request{Protocol: space.Protocol, PPhys: space.PPhys}
	space.PPhys = []float64{0}
	req.Distances = space.Points()
	return req
}

func (r Request) normalize() (Request, error) {
	if len(r.Distances) == 0 && r.Protocol == "" && len(r.PPhys) == 0 {
		def := DefaultRequest()
		def.Workers = r.Workers
		return def, nil
	}
	if _, err := distillation.ParseProtocol(string(r.Protocol)); err != nil {
		return r, err
	}
	if len(r.PPhys) < 2 {
		return r, fmt.Errorf("a sweep needs at least two pphys values: %w", domain.ErrInvalidInput)
	}
	if len(r.Distances) == 0 {
		return r, fmt.Errorf("no distance tuples: %w", domain.ErrInvalidInput)
	}
	for _, pp := range r.PPhys {
		if math.IsNaN(pp) || !(pp > 0) || pp >= 1 {
			return r, fmt.Errorf("pphys %g outside (0,1): %w", pp, domain.ErrInvalidInput)
		}
	}
	return r, nil
}

// Sweep evaluates every tuple at every pphys and fits error_rate = a*pphys^b
// per tuple. Points that fail to evaluate are counted and left out of the fit.
func (s *Service) Sweep(ctx context.Context, req Request) (*Report, error) {
	req, err := req.normalize()
	if err != nil {
		return nil, err
	}

	points := make([]distillation.Params, 0, len(req.Distances)*len(req.PPhys))
	for _, d := range req.Distances {
		for _, pp := range req.PPhys {
			p := d
			p.PPhys = pp
			points = append(points, p)
		}
	}
	for _, d := range req.Distances {
		d.PPhys = req.PPhys[0]
		if err := d.Validate(req.Protocol); err != nil {
			return nil, err
		}
	}

	workers := req.Workers
	if workers <= 0 {
		workers = s.workers
	}
	pool := search.NewWorkerPool(workers)
	evals, err := pool.EvaluateBatch(ctx, points,
		func(ctx context.Context, p distillation.Params) (*distillation.Result, error) {
			return s.est.Estimate(ctx, req.Protocol, p)
		}, nil)
	if err != nil {
		return nil, err
	}

	report := &Report{Protocol: req.Protocol, Fits: make([]Fit, len(req.Distances))}
	for i, d := range req.Distances {
		fit := Fit{Distances: d}
		var xs, ys []float64
		for _, ev := range evals[i*len(req.PPhys) : (i+1)*len(req.PPhys)] {
			if ev.Err != nil || ev.Result == nil {
				fit.Failed++
				continue
			}
			f := ev.Result.Factory
			fit.Points = append(fit.Points, Point{PPhys: ev.Params.PPhys, ErrorRate: f.ErrorRate, Qubits: f.Qubits})
			xs = append(xs, ev.Params.PPhys)
			ys = append(ys, f.ErrorRate)
		}
		law, err := formulas.FitPowerLaw(xs, ys)
		if err != nil {
			fit.Error = err.Error()
		} else {
			fit.Law = &law
		}
		report.Fits[i] = fit

		s.log.Debug().
			Ints("distances", []int{d.DX, d.DZ, d.DM, d.DX2, d.DZ2, d.DM2, d.NL1}).
			Int("points", len(fit.Points)).
			Int("failed", fit.Failed).
			Msg("Fitted scaling sweep")
	}
	s.log.Info().Str("protocol", string(req.Protocol)).Int("tuples", len(report.Fits)).Msg("Scaling sweep completed")
	return report, nil
}
