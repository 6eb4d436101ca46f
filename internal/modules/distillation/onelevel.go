package distillation

import (
	"errors"
	"fmt"

	"github.com/aristath/magicfactory/internal/domain"
	"github.com/aristath/magicfactory/internal/modules/noise"
	"github.com/aristath/magicfactory/pkg/formulas"
)

// levelOneRates holds the logical error rates of a level-1 block.
type levelOneRates struct {
	dx, dz, dm float64
	px, pz, pm float64
	third      float64
}

func newLevelOneRates(p Params) levelOneRates {
	return levelOneRates{
		dx:    float64(p.DX),
		dz:    float64(p.DZ),
		dm:    float64(p.DM),
		px:    formulas.Plog(p.PPhys, p.DX),
		pz:    formulas.Plog(p.PPhys, p.DZ),
		pm:    formulas.Plog(p.PPhys, p.DM),
		third: p.PPhys / 3,
	}
}

// SmallFootprintSchedule is the 15-to-1 protocol where every time step takes
// 2dm code cycles, so rotations accumulate full-step storage errors.
func SmallFootprintSchedule(p Params) Schedule {
	r := newLevelOneRates(p)
	dx, dz, dm := r.dx, r.dz, r.dm
	px, pz, pm, third := r.px, r.pz, r.pm, r.third

	// half-step storage during the first fast measurements
	a1 := 0.5 * (dm / dz) * pz * dm
	h1 := 0.5 * (dz / dx) * px * dm
	k1 := 0.5 * (dx / dz) * pz * dm
	a := (dm / dz) * pz * dm
	h := (dz / dx) * px * dm
	k := (dx / dz) * pz * dm
	q := (dm / dx) * px * dm
	x1 := px * dm

	single := func(b *builder, ax []noise.Operator) {
		b.rot(ax, third, third+0.5*dz*pm, third)
	}
	multi := func(b *builder, ax []noise.Operator, l float64) {
		b.rot(ax, third+(dm/dz)*pm*dm, third+l*pm, third)
	}

	b := newBuilder(string(SmallFootprint15to1), 5)

	b.next()
	single(b, axis(one, z, one, one, one))
	single(b, axis(one, one, z, one, one))
	single(b, axis(one, one, one, z, one))
	b.storeZ(0, a1, a1, a1, 0).storeX(0, h1, h1, h1, 0).storeZ(0, k1, k1, k1, 0)

	b.next()
	multi(b, axis(one, z, z, z, one), 4*dz)
	b.storeZ(0, a, a, a, 0).storeX(0, h, h, h, 0).storeZ(0, k, k, k, 0)

	b.next()
	multi(b, axis(z, z, z, one, one), dx+3*dz)
	b.storeZ(q, a, a, 0, 0).storeX(x1, h, h, h, 0).storeZ(x1, k, k, k, 0)

	b.next()
	multi(b, axis(z, z, one, z, one), dx+3*dz)
	b.storeZ(q, a, 0, a, 0).storeX(x1, h, h, h, 0).storeZ(x1, k, k, k, 0)

	b.next()
	multi(b, axis(z, one, z, z, one), dx+3*dz)
	single(b, axis(one, one, one, one, z))
	b.storeZ(q, 0, a, a, a1).storeX(x1, h, h, h, h1).storeZ(x1, k, k, k, k1)

	b.next()
	multi(b, axis(z, one, one, z, z), dx+4*dz)
	b.storeZ(q, 0, 0, a, a).storeX(x1, h, h, h, h).storeZ(x1, k, k, k, k)

	b.next()
	multi(b, axis(z, z, one, one, z), dx+4*dz)
	b.storeZ(q, a, 0, 0, a).storeX(x1, h, h, h, h).storeZ(x1, k, k, k, k)

	b.next()
	multi(b, axis(z, one, z, one, z), dx+4*dz)
	b.storeZ(q, 0, a, 0, a).storeX(x1, h, h, h, h).storeZ(x1, k, k, k, k)

	b.next()
	multi(b, axis(z, z, z, z, z), dx+4*dz)
	b.storeZ(q, a, a, a, a).storeX(x1, h, h, h, h).storeZ(x1, k, k, k, k)

	b.next()
	multi(b, axis(one, one, z, z, z), 4*dz)
	b.storeZ(0, 0, a, a, a).storeX(x1, h, h, h, h).storeZ(x1, k, k, k, k)

	b.next()
	multi(b, axis(one, z, one, z, z), 4*dz)
	b.storeZ(0, a, 0, a, a).storeX(x1, h, h, h, h).storeZ(x1, k, k, k, k)

	// the output qubit idles for dx more cycles before it is consumed
	b.next()
	multi(b, axis(one, z, z, one, z), 4*dz)
	last := px * (dm + dx)
	b.storeZ(0, a, a, 0, a).storeX(last, h, h, h, h).storeZ(last, k, k, k, k)

	return b.build()
}

// CompactSchedule is the 15-to-1 protocol with dm code cycles per time step
// and interleaved output-patch measurements.
func CompactSchedule(p Params) Schedule {
	r := newLevelOneRates(p)
	dx, dz, dm := r.dx, r.dz, r.dm
	px, pz, pm, third := r.px, r.pz, r.pm, r.third

	h := 0.5 * (dz / dx) * px * dm
	k := 0.5 * (dx / dz) * pz * dm
	x1 := 0.5 * px * dm

	single := func(b *builder, ax []noise.Operator) {
		b.rot(ax, third+0.5*(dm/dz)*pz*dm, third+0.5*dz*pm, third)
	}
	multi := func(b *builder, ax []noise.Operator, l float64) {
		b.rot(ax, third+0.5*pm*dm, third+0.5*pm*dm+0.5*l*dx/dm*pm, third)
	}
	output := func(b *builder, l float64) {
		b.storeZ(0.5*l/dx*px*dm, 0, 0, 0, 0)
	}

	b := newBuilder(string(Compact15to1), 5)

	b.next()
	single(b, axis(one, z, one, one, one))
	single(b, axis(one, one, z, one, one))
	single(b, axis(one, one, one, z, one))
	b.storeX(0, h, h, h, 0).storeZ(0, k, k, k, 0)

	b.next()
	multi(b, axis(one, z, z, z, one), 3*dz)
	b.storeX(0, h, (dz/dx)*px*dm, h, 0).storeZ(0, k, (dx/dz)*pz*dm, k, 0)

	b.next()
	multi(b, axis(z, z, z, one, one), dx+2*dz)
	output(b, dx+2*dz)
	b.storeX(x1, h, h, h, 0).storeZ(x1, k, k, k, 0)

	b.next()
	multi(b, axis(z, z, one, z, one), dx+3*dz)
	output(b, dx+3*dz)
	b.storeX(x1, h, h, h, 0).storeZ(x1, k, k, k, 0)

	b.next()
	multi(b, axis(z, one, z, z, one), dx+3*dz)
	single(b, axis(one, one, one, one, z))
	output(b, dx+3*dz)
	b.storeX(x1, h, h, h, h).storeZ(x1, k, k, k, k)

	for _, ax := range [][]noise.Operator{
		axis(z, one, one, z, z),
		axis(z, z, one, one, z),
		axis(z, one, z, one, z),
		axis(z, z, z, z, z),
	} {
		b.next()
		multi(b, ax, dx+4*dz)
		output(b, dx+4*dz)
		b.storeX(x1, h, h, h, h).storeZ(x1, k, k, k, k)
	}

	b.next()
	multi(b, axis(one, one, z, z, z), 3*dz)
	b.storeX(x1, h, h, h, h).storeZ(x1, k, k, k, k)

	b.next()
	multi(b, axis(one, z, one, z, z), 4*dz)
	b.storeX(x1, h, h, h, h).storeZ(x1, k, k, k, k)

	b.next()
	multi(b, axis(one, z, z, one, z), 4*dz)
	last := 0.5 * px * (dm + 2*dx)
	b.storeX(last, h, h, h, h).storeZ(last, k, k, k, k)

	return b.build()
}

// StandardSchedule is the 15-to-1 protocol used as the level-1 block of the
// two-level factories: four single-qubit rotations, then eleven multi-qubit
// rotations applied in pairs.
func StandardSchedule(p Params) Schedule {
	r := newLevelOneRates(p)
	dx, dz, dm := r.dx, r.dz, r.dm
	px, pz, pm, third := r.px, r.pz, r.pm, r.third

	h := 0.5 * (dz / dx) * px * dm
	k := 0.5 * (dx / dz) * pz * dm

	single := func(b *builder, ax []noise.Operator) {
		b.rot(ax, third+0.5*(dm/dz)*pz*dm, third+0.5*dz*pm, third)
	}
	// rotations touching the output qubit span the full dx+4dz block and
	// leave extra dephasing on it
	multi := func(b *builder, ax []noise.Operator) {
		touchesOutput := ax[0] == z
		l := 4 * dz
		if touchesOutput {
			l = dx + 4*dz
		}
		b.rot(ax, third+0.5*pm*dm, third+0.5*pm*dm+0.5*l*dx/dm*pm, third)
		if touchesOutput {
			b.storeZ(0.5*l/dx*px*dm, 0, 0, 0, 0)
		}
	}

	b := newBuilder(string(Standard15to1), 5)

	b.next()
	single(b, axis(one, z, one, one, one))
	single(b, axis(one, one, z, one, one))
	single(b, axis(one, one, one, z, one))
	single(b, axis(one, one, one, one, z))
	multi(b, axis(one, z, z, z, one))
	b.storeX(0, h, h, h, h).storeZ(0, k, k, k, k)

	pairs := [][2][]noise.Operator{
		{axis(z, z, z, one, one), axis(z, z, one, z, one)},
		{axis(z, one, z, z, one), axis(z, one, one, z, z)},
		{axis(z, z, one, one, z), axis(z, one, z, one, z)},
		{axis(z, z, z, z, z), axis(one, one, z, z, z)},
		{axis(one, z, one, z, z), axis(one, z, z, one, z)},
	}
	for i, pair := range pairs {
		b.next()
		multi(b, pair[0])
		multi(b, pair[1])
		q1 := 0.5 * px * dm
		if i == len(pairs)-1 {
			q1 = 0.5 * px * (dm + 2*dx)
		}
		b.storeX(q1, h, h, h, h).storeZ(q1, k, k, k, k)
	}

	return b.build()
}

func simulateSmallFootprint(p Params, prec uint) (*Result, error) {
	out, err := runAndExtract(SmallFootprintSchedule(p), prec, keep15to1, noise.Ideal15to1(prec))
	if err != nil {
		return nil, err
	}
	dx, dz, dm := p.DX, p.DZ, p.DM
	return &Result{
		Protocol:  SmallFootprint15to1,
		Params:    p,
		Precision: prec,
		Outcome:   out,
		Factory: domain.MagicStateFactory{
			Name:       fmt.Sprintf("Small-footprint 15-to-1 with pphys=%s, dx=%d, dz=%d, dm=%d", formatPPhys(p.PPhys), dx, dz, dm),
			ErrorRate:  out.POut,
			Qubits:     2 * (dx + dm) * (dx + 4*dz),
			Cycles:     23 * float64(dm) / out.Acceptance,
			Dimensions: [2]int{dx + dm, dx + 4*dz},
			TGates:     1,
		},
	}, nil
}

func simulateCompact(p Params, prec uint) (*Result, error) {
	out, err := runAndExtract(CompactSchedule(p), prec, keep15to1, noise.Ideal15to1(prec))
	if err != nil {
		return nil, err
	}
	dx, dz, dm := p.DX, p.DZ, p.DM
	return &Result{
		Protocol:  Compact15to1,
		Params:    p,
		Precision: prec,
		Outcome:   out,
		Factory: domain.MagicStateFactory{
			Name:       fmt.Sprintf("Small footprint 15-to-1 with pphys=%s, dx=%d, dz=%d, dm=%d", formatPPhys(p.PPhys), dx, dz, dm),
			ErrorRate:  out.POut,
			Qubits:     2 * (2*dx*(dx+4*dz) + dm),
			Cycles:     12 * float64(dm) / out.Acceptance,
			Dimensions: [2]int{2 * dx, dx + 4*dz},
			TGates:     1,
		},
	}, nil
}

func simulateStandard(p Params, prec uint) (*Result, error) {
	out, err := runAndExtract(StandardSchedule(p), prec, keep15to1, noise.Ideal15to1(prec))
	if err != nil {
		return nil, err
	}
	dx, dz, dm := p.DX, p.DZ, p.DM
	return &Result{
		Protocol:  Standard15to1,
		Params:    p,
		Precision: prec,
		Outcome:   out,
		Factory: domain.MagicStateFactory{
			Name:       fmt.Sprintf("15-to-1 with pphys=%s, dx=%d, dz=%d, dm=%d", formatPPhys(p.PPhys), dx, dz, dm),
			ErrorRate:  out.POut,
			Qubits:     2 * ((dx+4*dz)*3*dx + 2*dm),
			Cycles:     6 * float64(dm) / out.Acceptance,
			Dimensions: [2]int{dx + 4*dz, 3*dx + 2*dm},
			TGates:     1,
		},
	}, nil
}

func runAndExtract(s Schedule, prec uint, keep []noise.Operator, ideal *noise.Matrix) (Outcome, error) {
	rho, err := s.Run(prec)
	if errors.Is(err, noise.ErrInvalidProbability) {
		// distances too small for pphys push channel weights past 1
		return Outcome{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	if err != nil {
		return Outcome{}, err
	}
	out, err := Extract(rho, keep, ideal)
	if err != nil {
		return Outcome{}, fmt.Errorf("%s: %w", s.Name, err)
	}
	return out, nil
}
