package distillation

import (
	"fmt"
	"math"

	"github.com/aristath/magicfactory/internal/domain"
	"github.com/aristath/magicfactory/internal/modules/noise"
	"github.com/aristath/magicfactory/pkg/formulas"
)

// LevelOne describes the level-1 stage feeding a two-level factory.
type LevelOne struct {
	Outcome
	// PL1 is the error of a level-1 state on arrival at level 2.
	PL1 float64 `json:"pl1"`
	// L1Time is the number of code cycles between level-1 deliveries.
	L1Time float64 `json:"l1time"`
	// ThroughputBound reports whether the level-1 rate, not the level-2
	// cycle time, sets L1Time.
	ThroughputBound bool `json:"throughput_bound"`
}

// levelTwoRates holds the logical error rates of the level-2 block.
type levelTwoRates struct {
	dx2, dz2, dm2 float64
	px2, pz2, pm2 float64
}

func newLevelTwoRates(p Params) levelTwoRates {
	return levelTwoRates{
		dx2: float64(p.DX2),
		dz2: float64(p.DZ2),
		dm2: float64(p.DM2),
		px2: formulas.Plog(p.PPhys, p.DX2),
		pz2: formulas.Plog(p.PPhys, p.DZ2),
		pm2: formulas.Plog(p.PPhys, p.DM2),
	}
}

// runLevelOne simulates the standard 15-to-1 block at level-1 distances.
func runLevelOne(p Params, prec uint) (Outcome, error) {
	return runAndExtract(StandardSchedule(p), prec, keep15to1, noise.Ideal15to1(prec))
}

// TwoLevel15to1Level returns the level-1 quantities of (15-to-1)x(15-to-1):
// pl1 adds the routing error 5*pm2*dm2 and l1time = max(6dm/(1-pfail1), 2dm2).
func TwoLevel15to1Level(p Params, l1 Outcome) LevelOne {
	r2 := newLevelTwoRates(p)
	throughput := 6 * float64(p.DM) / l1.Acceptance
	return LevelOne{
		Outcome:         l1,
		PL1:             l1.POut + 5*r2.pm2*r2.dm2,
		L1Time:          math.Max(throughput, 2*r2.dm2),
		ThroughputBound: throughput > 2*r2.dm2,
	}
}

// TwoLevel15to1Schedule is the level-2 15-to-1 stage whose inputs arrive with
// error pl1 every l1time code cycles.
func TwoLevel15to1Schedule(p Params, l1 LevelOne) Schedule {
	r := newLevelTwoRates(p)
	dx2, dz2, dm2 := r.dx2, r.dz2, r.dm2
	px2, pz2, pm2 := r.px2, r.pz2, r.pm2
	pl1, l1time := l1.PL1, l1.L1Time

	lmove := 5 * dm2
	h := 0.5 * (dz2 / dx2) * px2 * l1time
	k := 0.5 * (dx2 / dz2) * pz2 * l1time
	q := 0.5 * px2 * l1time
	full := dx2 + 4*dz2 + dm2

	rot := func(b *builder, ax []noise.Operator, l float64) {
		b.rot(ax, pl1+0.5*lmove*pm2, 0.5*lmove*pm2+0.5*l*dx2/dm2*pm2, 0)
	}
	output := func(b *builder) {
		b.storeZ(0.5*full*dm2/dx2*px2, 0, 0, 0, 0)
	}

	b := newBuilder(string(TwoLevel15to1), 5)

	b.next()
	rot(b, axis(one, z, one, one, one), 4*dz2+dm2)
	b.storeX(0, h, 0, 0, 0).storeZ(0, k, 0, 0, 0)

	b.next()
	rot(b, axis(one, one, z, one, one), 3*dz2+dm2)
	b.storeX(0, h, h, 0, 0).storeZ(0, k, k, 0, 0)

	b.next()
	rot(b, axis(one, one, one, z, one), 2*dz2+dm2)
	b.storeX(0, h, h, h, 0).storeZ(0, k, k, k, 0)

	b.next()
	rot(b, axis(one, one, one, one, z), dz2+dm2)
	b.storeX(0, h, h, h, h).storeZ(0, k, k, k, k)

	b.next()
	rot(b, axis(z, z, z, one, one), full)
	output(b)
	b.storeX(q, h, h, h, h).storeZ(q, k, k, k, k)

	b.next()
	rot(b, axis(one, z, z, z, one), 4*dz2+dm2)
	b.storeX(q, h, h, h, h).storeZ(q, k, k, k, k)

	for _, ax := range [][]noise.Operator{
		axis(z, one, z, z, one),
		axis(z, z, one, z, one),
		axis(z, z, one, one, z),
		axis(z, one, one, z, z),
		axis(z, one, z, one, z),
		axis(z, z, z, z, z),
	} {
		b.next()
		rot(b, ax, full)
		output(b)
		b.storeX(q, h, h, h, h).storeZ(q, k, k, k, k)
	}

	b.next()
	rot(b, axis(one, z, one, z, z), 4*dz2+dm2)
	b.storeX(q, h, h, h, h).storeZ(q, k, k, k, k)

	b.next()
	rot(b, axis(one, one, z, z, z), 3*dz2+dm2)
	b.storeX(q, h, h, h, h).storeZ(q, k, k, k, k)

	// qubit 4 is consumed here; the output waits dx2 more cycles
	b.next()
	rot(b, axis(one, z, z, one, z), 4*dz2+dm2)
	last := 0.5 * px2 * (l1time + dx2)
	b.storeX(last, h, h, 0, h).storeZ(last, k, k, 0, k)

	return b.build()
}

func simulateTwoLevel15to1(p Params, prec uint) (*Result, error) {
	l1out, err := runLevelOne(p, prec)
	if err != nil {
		return nil, fmt.Errorf("level 1: %w", err)
	}
	l1 := TwoLevel15to1Level(p, l1out)

	out, err := runAndExtract(TwoLevel15to1Schedule(p, l1), prec, keep15to1, noise.Ideal15to1(prec))
	if err != nil {
		return nil, fmt.Errorf("level 2: %w", err)
	}

	dx, dz, dm := p.DX, p.DZ, p.DM
	dx2, dz2, dm2 := p.DX2, p.DZ2, p.DM2
	return &Result{
		Protocol:  TwoLevel15to1,
		Params:    p,
		Precision: prec,
		Outcome:   out,
		Level1:    &l1,
		Factory: domain.MagicStateFactory{
			Name: fmt.Sprintf("Small footprint (15-to-1)x(15-to-1) with pphys=%s, dx=%d, dz=%d, dm=%d, dx2=%d, dz2=%d, dm2=%d",
				formatPPhys(p.PPhys), dx, dz, dm, dx2, dz2, dm2),
			ErrorRate:  out.POut,
			Qubits:     2 * ((dx2+4*dz2+dm2)*2*dx2 + (dx+4*dz)*3*dx + 2*dm + 2*dm2*dm2),
			Cycles:     15 * l1.L1Time / out.Acceptance,
			Dimensions: [2]int{4*dz2 + dx2 + dm2 + 3*dx, 2 * dx2},
			TGates:     1,
		},
	}, nil
}
