package formulas

import (
	"errors"
	"math"
)

var (
	// ErrNoBracket is returned when f(a) and f(b) have the same sign.
	ErrNoBracket = errors.New("root is not bracketed")
	// ErrNoConvergence is returned when the iteration budget runs out.
	ErrNoConvergence = errors.New("root finding did not converge")
)

// DefaultBrentIterations bounds Brent when callers pass maxIter <= 0.
const DefaultBrentIterations = 200

// Brent finds a root of f in [a, b] using Brent's method (inverse quadratic
// interpolation with bisection fallback). f(a) and f(b) must differ in sign.
func Brent(f func(float64) float64, a, b, tol float64, maxIter int) (float64, error) {
	if maxIter <= 0 {
		maxIter = DefaultBrentIterations
	}
	fa, fb := f(a), f(b)
	if math.IsNaN(fa) || math.IsNaN(fb) {
		return 0, ErrNoBracket
	}
	if fa == 0 {
		return a, nil
	}
	if fb == 0 {
		return b, nil
	}
	if (fa > 0) == (fb > 0) {
		return 0, ErrNoBracket
	}

	const eps = 2.220446049250313e-16
	c, fc := b, fb
	var d, e float64
	for i := 0; i < maxIter; i++ {
		if (fb > 0) == (fc > 0) {
			c, fc = a, fa
			d = b - a
			e = d
		}
		if math.Abs(fc) < math.Abs(fb) {
			a, b, c = b, c, b
			fa, fb, fc = fb, fc, fb
		}
		tol1 := 2*eps*math.Abs(b) + 0.5*tol
		xm := 0.5 * (c - b)
		if math.Abs(xm) <= tol1 || fb == 0 {
			return b, nil
		}
		if math.Abs(e) >= tol1 && math.Abs(fa) > math.Abs(fb) {
			s := fb / fa
			var p, q float64
			if a == c {
				// secant
				p = 2 * xm * s
				q = 1 - s
			} else {
				// inverse quadratic interpolation
				q = fa / fc
				r := fb / fc
				p = s * (2*xm*q*(q-r) - (b-a)*(r-1))
				q = (q - 1) * (r - 1) * (s - 1)
			}
			if p > 0 {
				q = -q
			}
			p = math.Abs(p)
			if 2*p < math.Min(3*xm*q-math.Abs(tol1*q), math.Abs(e*q)) {
				e = d
				d = p / q
			} else {
				d = xm
				e = d
			}
		} else {
			d = xm
			e = d
		}
		a, fa = b, fb
		if math.Abs(d) > tol1 {
			b += d
		} else {
			b += math.Copysign(tol1, xm)
		}
		fb = f(b)
		if math.IsNaN(fb) {
			return 0, ErrNoConvergence
		}
	}
	return 0, ErrNoConvergence
}
