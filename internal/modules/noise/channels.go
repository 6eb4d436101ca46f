package noise

import (
	"fmt"
	"math"
	"math/big"
)

// ApplyRotation applies the error channel of a faulty pi/8 rotation about the
// Pauli string P = axis[0] x ... x axis[n-1]. The state is tracked in the frame of
// the ideal rotations, so only the error part acts:
//
//	rho' = (1-p1-p2-p3) rho + p1 P rho P + p2 R rho R^+ + p3 R^+ rho R
//
// with R = (I + iP)/sqrt(2). p1 weights a P error, p2 a rotation in the wrong
// direction (a pi/4 error) and p3 both. All-zero weights leave rho unchanged.
func ApplyRotation(rho *Matrix, axis []Operator, p1, p2, p3 float64) (*Matrix, error) {
	if len(axis) != rho.qubits {
		return nil, fmt.Errorf("rotation axis has %d factors for %d qubits: %w", len(axis), rho.qubits, ErrDimensionMismatch)
	}
	if err := checkMixture(p1, p2, p3); err != nil {
		return nil, err
	}
	if p1 == 0 && p2 == 0 && p3 == 0 {
		return rho.Clone(), nil
	}

	prec := rho.prec
	w1 := newFloat(prec).SetFloat64(p1)
	w2 := newFloat(prec).SetFloat64(p2)
	w3 := newFloat(prec).SetFloat64(p3)
	w0 := newFloat(prec).SetInt64(1)
	w0.Sub(w0, w1)
	w0.Sub(w0, w2)
	w0.Sub(w0, w3)

	if sigma, ok := diagonalSigns(axis, rho.dim); ok {
		return rotateDiagonal(rho, sigma, w0, w1, w2, w3), nil
	}
	return rotateDense(rho, axis, w0, w1, w2, w3)
}

// diagonalSigns returns the diagonal of P when every factor is diag(+-1, +-1).
func diagonalSigns(axis []Operator, dim int) ([]int8, bool) {
	n := len(axis)
	sigma := make([]int8, dim)
	for i := range sigma {
		sigma[i] = 1
	}
	for q, op := range axis {
		s0, s1, ok := op.signs()
		if !ok {
			return nil, false
		}
		mask := 1 << (n - 1 - q)
		for i := range sigma {
			if i&mask == 0 {
				sigma[i] *= s0
			} else {
				sigma[i] *= s1
			}
		}
	}
	return sigma, true
}

// rotateDiagonal handles diagonal P elementwise. Entries with sigma_i == sigma_j
// keep their value; the rest are multiplied by (w0-w1) + i*sigma_i*(w2-w3).
func rotateDiagonal(rho *Matrix, sigma []int8, w0, w1, w2, w3 *big.Float) *Matrix {
	prec := rho.prec
	kr := newFloat(prec).Sub(w0, w1)
	ki := newFloat(prec).Sub(w2, w3)
	kiNeg := newFloat(prec).Neg(ki)

	out := rho.Clone()
	s := newScratch(prec)
	for i := 0; i < rho.dim; i++ {
		im := ki
		if sigma[i] < 0 {
			im = kiNeg
		}
		for j := 0; j < rho.dim; j++ {
			if sigma[i] == sigma[j] {
				continue
			}
			k := out.index(i, j)
			s.mul(&out.re[k], &out.im[k], &out.re[k], &out.im[k], kr, im)
		}
	}
	return out
}

func rotateDense(rho *Matrix, axis []Operator, w0, w1, w2, w3 *big.Float) (*Matrix, error) {
	prec := rho.prec
	p := KronOps(prec, axis...)

	// R = (I + iP)/sqrt(2)
	r := invSqrt2(prec)
	rot := NewMatrix(rho.qubits, prec)
	for k := range rot.re {
		rot.re[k].Neg(&p.im[k])
		rot.im[k].Set(&p.re[k])
	}
	for i := 0; i < rot.dim; i++ {
		k := rot.index(i, i)
		rot.re[k].Add(&rot.re[k], newFloat(prec).SetInt64(1))
	}
	rot = rot.Scale(r)
	rotDag := rot.ConjTranspose()

	pauli, err := sandwich(p, rho, p)
	if err != nil {
		return nil, err
	}
	forward, err := sandwich(rot, rho, rotDag)
	if err != nil {
		return nil, err
	}
	backward, err := sandwich(rotDag, rho, rot)
	if err != nil {
		return nil, err
	}

	out := NewMatrix(rho.qubits, prec)
	t := newFloat(prec)
	terms := []struct {
		w *big.Float
		m *Matrix
	}{{w0, rho}, {w1, pauli}, {w2, forward}, {w3, backward}}
	for _, term := range terms {
		if term.w.Sign() == 0 {
			continue
		}
		for k := range out.re {
			out.re[k].Add(&out.re[k], t.Mul(term.w, &term.m.re[k]))
			out.im[k].Add(&out.im[k], t.Mul(term.w, &term.m.im[k]))
		}
	}
	return out, nil
}

func sandwich(a, b, c *Matrix) (*Matrix, error) {
	ab, err := Mul(a, b)
	if err != nil {
		return nil, err
	}
	return Mul(ab, c)
}

// StorageZ applies an independent dephasing channel (1-p)rho + p Z rho Z to each
// qubit, weights[q] being the probability for qubit q+1. Zero weights are skipped.
func StorageZ(rho *Matrix, weights ...float64) (*Matrix, error) {
	if err := checkWeights(rho, weights); err != nil {
		return nil, err
	}
	out := rho.Clone()
	f := newFloat(rho.prec)
	for q, p := range weights {
		if p == 0 {
			continue
		}
		// off-diagonal blocks of qubit q shrink by 1-2p
		f.SetFloat64(p)
		f.Mul(f, newFloat(rho.prec).SetInt64(-2))
		f.Add(f, newFloat(rho.prec).SetInt64(1))
		mask := qubitMask(rho.qubits, q)
		for i := 0; i < out.dim; i++ {
			for j := 0; j < out.dim; j++ {
				if (i^j)&mask == 0 {
					continue
				}
				k := out.index(i, j)
				out.re[k].Mul(&out.re[k], f)
				out.im[k].Mul(&out.im[k], f)
			}
		}
	}
	return out, nil
}

// StorageX applies an independent bit-flip channel (1-p)rho + p X rho X to each
// qubit, weights[q] being the probability for qubit q+1. Zero weights are skipped.
func StorageX(rho *Matrix, weights ...float64) (*Matrix, error) {
	if err := checkWeights(rho, weights); err != nil {
		return nil, err
	}
	out := rho.Clone()
	p := newFloat(rho.prec)
	d := newFloat(rho.prec)
	for q, w := range weights {
		if w == 0 {
			continue
		}
		p.SetFloat64(w)
		mask := qubitMask(rho.qubits, q)
		for i := 0; i < out.dim; i++ {
			if i&mask != 0 {
				continue
			}
			for j := 0; j < out.dim; j++ {
				if j&mask != 0 {
					continue
				}
				mixPair(out, out.index(i, j), out.index(i|mask, j|mask), p, d)
				mixPair(out, out.index(i, j|mask), out.index(i|mask, j), p, d)
			}
		}
	}
	return out, nil
}

// mixPair replaces (x, y) by ((1-p)x + py, (1-p)y + px).
func mixPair(m *Matrix, x, y int, p, d *big.Float) {
	d.Sub(&m.re[y], &m.re[x])
	d.Mul(d, p)
	m.re[x].Add(&m.re[x], d)
	m.re[y].Sub(&m.re[y], d)

	d.Sub(&m.im[y], &m.im[x])
	d.Mul(d, p)
	m.im[x].Add(&m.im[x], d)
	m.im[y].Sub(&m.im[y], d)
}

// Conjugate returns O rho O^+ for O = ops[0] x ... x ops[n-1], applied one
// qubit at a time. Identity factors are skipped.
func Conjugate(rho *Matrix, ops []Operator) (*Matrix, error) {
	if len(ops) != rho.qubits {
		return nil, fmt.Errorf("%d operators for %d qubits: %w", len(ops), rho.qubits, ErrDimensionMismatch)
	}
	out := rho.Clone()
	prec := rho.prec
	s := newScratch(prec)
	var blkRe, blkIm, nRe, nIm [2][2]*big.Float
	for a := 0; a < 2; a++ {
		for b := 0; b < 2; b++ {
			blkRe[a][b], blkIm[a][b] = newFloat(prec), newFloat(prec)
			nRe[a][b], nIm[a][b] = newFloat(prec), newFloat(prec)
		}
	}
	tr, ti := newFloat(prec), newFloat(prec)
	ur, ui := newFloat(prec), newFloat(prec)

	for q, op := range ops {
		if op.IsIdentity() {
			continue
		}
		oRe, oIm := op.bigEntries(prec)
		mask := qubitMask(rho.qubits, q)
		for i := 0; i < out.dim; i++ {
			if i&mask != 0 {
				continue
			}
			for j := 0; j < out.dim; j++ {
				if j&mask != 0 {
					continue
				}
				idx := func(a, b int) int {
					return out.index(i|a*mask, j|b*mask)
				}
				for a := 0; a < 2; a++ {
					for b := 0; b < 2; b++ {
						k := idx(a, b)
						blkRe[a][b].Set(&out.re[k])
						blkIm[a][b].Set(&out.im[k])
					}
				}
				// N[x][y] = sum_ab O[x][a] B[a][b] conj(O[y][b])
				for x := 0; x < 2; x++ {
					for y := 0; y < 2; y++ {
						nRe[x][y].SetInt64(0)
						nIm[x][y].SetInt64(0)
						for a := 0; a < 2; a++ {
							for b := 0; b < 2; b++ {
								s.mul(tr, ti, oRe[x][a], oIm[x][a], blkRe[a][b], blkIm[a][b])
								ui.Neg(oIm[y][b])
								ur.Set(oRe[y][b])
								s.mul(tr, ti, tr, ti, ur, ui)
								nRe[x][y].Add(nRe[x][y], tr)
								nIm[x][y].Add(nIm[x][y], ti)
							}
						}
					}
				}
				for a := 0; a < 2; a++ {
					for b := 0; b < 2; b++ {
						k := idx(a, b)
						out.re[k].Set(nRe[a][b])
						out.im[k].Set(nIm[a][b])
					}
				}
			}
		}
	}
	return out, nil
}

func qubitMask(qubits, q int) int {
	return 1 << (qubits - 1 - q)
}

func checkWeights(rho *Matrix, weights []float64) error {
	if len(weights) != rho.qubits {
		return fmt.Errorf("%d storage weights for %d qubits: %w", len(weights), rho.qubits, ErrDimensionMismatch)
	}
	for q, w := range weights {
		if math.IsNaN(w) || w < 0 || w > 1 {
			return fmt.Errorf("qubit %d storage weight %g: %w", q+1, w, ErrInvalidProbability)
		}
	}
	return nil
}

func checkMixture(ps ...float64) error {
	sum := 0.0
	for _, p := range ps {
		if math.IsNaN(p) || p < 0 {
			return fmt.Errorf("rotation weight %g: %w", p, ErrInvalidProbability)
		}
		sum += p
	}
	if sum > 1 {
		return fmt.Errorf("rotation weights sum to %g: %w", sum, ErrInvalidProbability)
	}
	return nil
}
