package distillation

import (
	"fmt"
	"math"

	"github.com/aristath/magicfactory/internal/domain"
	"github.com/aristath/magicfactory/internal/modules/noise"
)

// TwoLevel20to4Level returns the level-1 quantities of (15-to-1)x(20-to-4).
// nl1 factories deliver in parallel pairs, so
// l1time = max(6dm/(nl1/2)/(1-pfail1), dm2).
func TwoLevel20to4Level(p Params, l1 Outcome) LevelOne {
	dm2 := float64(p.DM2)
	throughput := 6 * float64(p.DM) / (float64(p.NL1) / 2) / l1.Acceptance
	return LevelOne{
		Outcome:         l1,
		PL1:             l1.POut,
		L1Time:          math.Max(throughput, dm2),
		ThroughputBound: throughput > dm2,
	}
}

// TwoLevel20to4Schedule is the level-2 20-to-4 stage on four outputs (qubits
// 1-4) and three ancillas (qubits 5-7). Rotations run two at a time.
func TwoLevel20to4Schedule(p Params, l1 LevelOne) Schedule {
	r := newLevelTwoRates(p)
	dx2, dz2, dm2 := r.dx2, r.dz2, r.dm2
	px2, pz2, pm2 := r.px2, r.pz2, r.pm2
	pl1, l1time := l1.PL1, l1.L1Time
	dx, dz := float64(p.DX), float64(p.DZ)

	lmove := 10*dm2 + float64(p.NL1)/4*(dx+4*dz)
	h := 0.5 * (dz2 / dx2) * px2 * l1time
	k := 0.5 * (dx2 / dz2) * pz2 * l1time
	q := 0.5 * px2 * l1time
	// outputs already measured out wait dm2+2dx2 cycles
	f := 0.5 * (dm2 + 2*dx2) * px2

	rot := func(b *builder, ax []noise.Operator, l float64) {
		b.rot(ax, pl1+0.5*lmove*pm2, 0.5*lmove*pm2+0.5*l*dx2/dm2*pm2, 0)
	}
	e := func(l float64) float64 { return 0.5 * l * dm2 / dx2 * px2 }
	e2 := func(l, m float64) float64 { return 0.5 * (l + m) * dm2 / dx2 * px2 }

	b := newBuilder(string(TwoLevel20to4), 7)

	b.next()
	rot(b, axis(one, one, one, one, nz, one, one), 4*dx2+dz2+dm2)
	rot(b, axis(one, one, one, one, one, nz, one), 2*dz2+dm2)
	b.storeX(0, 0, 0, 0, h, h, 0).storeZ(0, 0, 0, 0, k, k, 0)

	b.next()
	rot(b, axis(z, one, one, one, z, z, one), 4*dx2+2*dz2+dm2)
	rot(b, axis(one, one, one, one, nz, z, z), 3*dz2+dm2)
	b.storeZ(e(4*dx2+2*dz2+dm2), 0, 0, 0, 0, 0, 0)
	b.storeX(q, 0, 0, 0, h, h, h).storeZ(q, 0, 0, 0, k, k, k)

	b.next()
	rot(b, axis(z, one, one, one, one, z, z), 4*dx2+3*dz2+dm2)
	rot(b, axis(one, one, one, one, one, one, nz), dz2+dm2)
	b.storeZ(e(4*dx2+3*dz2+dm2), 0, 0, 0, 0, 0, 0)
	b.storeX(q, 0, 0, 0, h, h, h).storeZ(q, 0, 0, 0, k, k, k)

	b.next()
	rot(b, axis(z, one, one, one, z, one, z), 4*dx2+3*dz2+dm2)
	rot(b, axis(one, z, one, one, z, z, one), 3*dx2+3*dz2+dm2)
	b.storeZ(e(4*dx2+3*dz2+dm2), e(3*dx2+3*dz2+dm2), 0, 0, 0, 0, 0)
	b.storeX(q, q, 0, 0, h, h, h).storeZ(q, q, 0, 0, k, k, k)

	b.next()
	a, c := 4*dx2+2*dz2+dm2, 3*dx2+3*dz2+dm2
	rot(b, axis(z, z, z, z, one, z, one), a)
	rot(b, axis(one, z, one, one, z, one, z), c)
	b.storeZ(e(a), e2(a, c), e(a), e(a), 0, 0, 0)
	b.storeX(q, q, q, q, h, h, h).storeZ(q, q, q, q, k, k, k)

	b.next()
	a = 4*dx2 + dz2 + dm2
	rot(b, axis(z, z, z, z, z, one, one), a)
	rot(b, axis(one, z, one, one, one, z, z), c)
	b.storeZ(e(a), e2(a, c), e(a), e(a), 0, 0, 0)
	b.storeX(q, q, q, q, h, h, h).storeZ(q, q, q, q, k, k, k)

	b.next()
	a, c = 4*dx2+3*dz2+dm2, 2*dx2+3*dz2+dm2
	rot(b, axis(z, z, z, z, z, z, z), a)
	rot(b, axis(one, one, z, one, z, z, one), c)
	b.storeZ(e(a), e(a), e2(a, c), e(a), 0, 0, 0)
	b.storeX(q, q, q, q, h, h, h).storeZ(q, q, q, q, k, k, k)

	// outputs 1 and 2 are complete after this step
	b.next()
	rot(b, axis(z, z, z, z, one, one, z), a)
	rot(b, axis(one, one, z, one, z, one, z), c)
	b.storeZ(e(a), e(a), e2(a, c), e(a), 0, 0, 0)
	b.storeX(f, f, q, q, h, h, h).storeZ(f, f, q, q, k, k, k)

	b.next()
	c = dx2 + 3*dz2 + dm2
	rot(b, axis(one, one, z, one, one, z, z), a)
	rot(b, axis(one, one, one, z, z, z, one), c)
	b.storeZ(0, 0, e(a), e(c), 0, 0, 0)
	b.storeX(0, 0, f, q, h, h, h).storeZ(0, 0, f, q, k, k, k)

	b.next()
	rot(b, axis(one, one, one, z, z, one, z), a)
	rot(b, axis(one, one, one, z, one, z, z), c)
	b.storeZ(0, 0, 0, e2(a, c), 0, 0, 0)
	b.storeX(0, 0, 0, q+f, h, h, h).storeZ(0, 0, 0, q+f, k, k, k)

	return b.build()
}

func simulateTwoLevel20to4(p Params, prec uint) (*Result, error) {
	l1out, err := runLevelOne(p, prec)
	if err != nil {
		return nil, fmt.Errorf("level 1: %w", err)
	}
	l1 := TwoLevel20to4Level(p, l1out)

	out, err := runAndExtract(TwoLevel20to4Schedule(p, l1), prec, keep20to4, noise.Ideal20to4(prec))
	if err != nil {
		return nil, fmt.Errorf("level 2: %w", err)
	}

	dx, dz, dm := float64(p.DX), float64(p.DZ), float64(p.DM)
	dx2, dz2, dm2 := float64(p.DX2), float64(p.DZ2), float64(p.DM2)
	nl1 := float64(p.NL1)
	qubits := 2 * int((4*dx2+3*dz2)*3*dx2+nl1*((dx+4*dz)*(3*dx+dm2/2)+2*dm)+20*dm2*dm2+2*dx2*dm2)

	return &Result{
		Protocol:  TwoLevel20to4,
		Params:    p,
		Precision: prec,
		Outcome:   out,
		Level1:    &l1,
		Factory: domain.MagicStateFactory{
			Name: fmt.Sprintf("(15-to-1)x(20-to-4) with pphys=%s, dx=%d, dz=%d, dm=%d, dx2=%d, dz2=%d, dm2=%d, nl1=%d",
				formatPPhys(p.PPhys), p.DX, p.DZ, p.DM, p.DX2, p.DZ2, p.DM2, p.NL1),
			ErrorRate:  out.POut / 4,
			Qubits:     qubits,
			Cycles:     10 * l1.L1Time / out.Acceptance,
			Dimensions: [2]int{4*p.DX2 + 3*p.DZ2, 3 * p.DX2},
			TGates:     4,
		},
	}, nil
}
