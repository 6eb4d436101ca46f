package distillation

import (
	"fmt"
	"math/big"

	"github.com/aristath/magicfactory/internal/domain"
	"github.com/aristath/magicfactory/internal/modules/noise"
)

// Post-selection projectors: ancillas must be found in |+>.
var (
	keep15to1 = axis(one, noise.ProjX, noise.ProjX, noise.ProjX, noise.ProjX)
	keep20to4 = axis(one, one, one, one, noise.ProjX, noise.ProjX, noise.ProjX)
)

// Outcome summarises post-selection on a final register state.
type Outcome struct {
	// PFail is the probability that post-selection rejects the run.
	PFail float64 `json:"pfail"`
	// Acceptance is 1-PFail evaluated at working precision.
	Acceptance float64 `json:"acceptance"`
	// POut is the infidelity of the accepted state with the ideal output.
	POut float64 `json:"pout"`
}

// Extract post-selects rho on the projector and measures the infidelity of the
// renormalised state against ideal. Results that cannot be resolved at the
// matrix precision are reported as domain.ErrUnstableResult, including an
// output error at or below resolution(prec): an exact zero is
// indistinguishable from cancellation, so it is never returned.
func Extract(rho *noise.Matrix, keep []noise.Operator, ideal *noise.Matrix) (Outcome, error) {
	prec := rho.Precision()
	tol := tolerance(prec)

	proj := noise.KronOps(prec, keep...)
	accRe, accIm, err := noise.TraceProduct(proj, rho)
	if err != nil {
		return Outcome{}, err
	}
	if exceeds(accIm, tol) {
		return Outcome{}, fmt.Errorf("acceptance probability has imaginary part %s: %w", accIm.Text('g', 6), domain.ErrUnstableResult)
	}
	if accRe.Cmp(tol) <= 0 {
		return Outcome{}, fmt.Errorf("acceptance probability %s below working precision: %w", accRe.Text('g', 6), domain.ErrUnstableResult)
	}

	post, err := noise.Conjugate(rho, keep)
	if err != nil {
		return Outcome{}, err
	}
	inv := new(big.Float).SetPrec(prec).Quo(new(big.Float).SetPrec(prec).SetInt64(1), accRe)
	post = post.Scale(inv)

	trRe, trIm := post.Trace()
	trRe.Sub(trRe, big.NewFloat(1))
	if exceeds(trRe, tol) || exceeds(trIm, tol) {
		return Outcome{}, fmt.Errorf("post-selected trace deviates from 1 by %s: %w", trRe.Text('g', 6), domain.ErrUnstableResult)
	}

	fRe, fIm, err := noise.TraceProduct(post, ideal)
	if err != nil {
		return Outcome{}, err
	}
	if exceeds(fIm, tol) {
		return Outcome{}, fmt.Errorf("fidelity has imaginary part %s: %w", fIm.Text('g', 6), domain.ErrUnstableResult)
	}

	pout := new(big.Float).SetPrec(prec).SetInt64(1)
	pout.Sub(pout, fRe)
	upper := new(big.Float).SetPrec(prec).SetInt64(1)
	upper.Add(upper, tol)
	if pout.Cmp(upper) > 0 {
		return Outcome{}, fmt.Errorf("output error %s outside [0,1]: %w", pout.Text('g', 6), domain.ErrUnstableResult)
	}
	// 1-F cancels to rounding residue once the true error drops below the
	// resolution floor; such values carry no information.
	if floor := resolution(prec); pout.Cmp(floor) <= 0 {
		return Outcome{}, fmt.Errorf("output error %s not resolvable above %s at %d bits: %w",
			pout.Text('g', 6), floor.Text('g', 3), prec, domain.ErrUnstableResult)
	}

	pfail := new(big.Float).SetPrec(prec).SetInt64(1)
	pfail.Sub(pfail, accRe)

	out := Outcome{}
	out.PFail, _ = pfail.Float64()
	out.Acceptance, _ = accRe.Float64()
	out.POut, _ = pout.Float64()
	if out.POut > 1 {
		out.POut = 1
	}
	return out, nil
}

// tolerance is 2^(-prec/2), the smallest magnitude trusted after the long
// chains of near-1 multiplications in a schedule.
func tolerance(prec uint) *big.Float {
	return new(big.Float).SetPrec(prec).SetMantExp(big.NewFloat(1), -int(prec/2))
}

// resolutionMargin is the number of low mantissa bits assumed lost to
// rounding over a full schedule.
const resolutionMargin = 24

// resolution is the smallest output error distinguishable from rounding
// residue at prec bits, 2^-(prec-24).
func resolution(prec uint) *big.Float {
	return new(big.Float).SetPrec(prec).SetMantExp(big.NewFloat(1), -int(prec-resolutionMargin))
}

func exceeds(x, tol *big.Float) bool {
	return new(big.Float).Abs(x).Cmp(tol) > 0
}
