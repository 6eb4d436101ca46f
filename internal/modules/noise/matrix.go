package noise

import (
	"fmt"
	"math/big"
)

// Matrix is a 2^n x 2^n complex matrix with big.Float components.
type Matrix struct {
	qubits int
	dim    int
	prec   uint
	re, im []big.Float
}

// NewMatrix returns the zero matrix on the given number of qubits.
func NewMatrix(qubits int, prec uint) *Matrix {
	if prec == 0 {
		prec = DefaultPrecision
	}
	dim := 1 << qubits
	m := &Matrix{
		qubits: qubits,
		dim:    dim,
		prec:   prec,
		re:     make([]big.Float, dim*dim),
		im:     make([]big.Float, dim*dim),
	}
	for k := range m.re {
		m.re[k].SetPrec(prec)
		m.im[k].SetPrec(prec)
	}
	return m
}

// Qubits returns the number of qubits the matrix acts on.
func (m *Matrix) Qubits() int { return m.qubits }

// Dim returns the matrix dimension 2^n.
func (m *Matrix) Dim() int { return m.dim }

// Precision returns the mantissa width in bits.
func (m *Matrix) Precision() uint { return m.prec }

func (m *Matrix) index(i, j int) int { return i*m.dim + j }

// Entry returns element (i, j) rounded to complex128.
func (m *Matrix) Entry(i, j int) complex128 {
	k := m.index(i, j)
	re, _ := m.re[k].Float64()
	im, _ := m.im[k].Float64()
	return complex(re, im)
}

// EntryBig returns copies of the components of element (i, j).
func (m *Matrix) EntryBig(i, j int) (re, im *big.Float) {
	k := m.index(i, j)
	return new(big.Float).Copy(&m.re[k]), new(big.Float).Copy(&m.im[k])
}

// Clone returns a deep copy of m.
func (m *Matrix) Clone() *Matrix {
	c := NewMatrix(m.qubits, m.prec)
	for k := range m.re {
		c.re[k].Set(&m.re[k])
		c.im[k].Set(&m.im[k])
	}
	return c
}

// Equal reports whether m and o hold exactly the same entries.
func (m *Matrix) Equal(o *Matrix) bool {
	if m.dim != o.dim {
		return false
	}
	for k := range m.re {
		if m.re[k].Cmp(&o.re[k]) != 0 || m.im[k].Cmp(&o.im[k]) != 0 {
			return false
		}
	}
	return true
}

// Trace returns the trace of m.
func (m *Matrix) Trace() (re, im *big.Float) {
	re, im = newFloat(m.prec), newFloat(m.prec)
	for i := 0; i < m.dim; i++ {
		k := m.index(i, i)
		re.Add(re, &m.re[k])
		im.Add(im, &m.im[k])
	}
	return re, im
}

// Scale returns s*m for a real scalar s.
func (m *Matrix) Scale(s *big.Float) *Matrix {
	out := NewMatrix(m.qubits, m.prec)
	for k := range m.re {
		out.re[k].Mul(&m.re[k], s)
		out.im[k].Mul(&m.im[k], s)
	}
	return out
}

// ConjTranspose returns the Hermitian conjugate of m.
func (m *Matrix) ConjTranspose() *Matrix {
	out := NewMatrix(m.qubits, m.prec)
	for i := 0; i < m.dim; i++ {
		for j := 0; j < m.dim; j++ {
			src, dst := m.index(i, j), out.index(j, i)
			out.re[dst].Set(&m.re[src])
			out.im[dst].Neg(&m.im[src])
		}
	}
	return out
}

// Mul returns the matrix product ab.
func Mul(a, b *Matrix) (*Matrix, error) {
	if a.dim != b.dim {
		return nil, fmt.Errorf("multiply %dx%d by %dx%d: %w", a.dim, a.dim, b.dim, b.dim, ErrDimensionMismatch)
	}
	prec := maxPrec(a.prec, b.prec)
	out := NewMatrix(a.qubits, prec)
	s := newScratch(prec)
	pr, pi := newFloat(prec), newFloat(prec)
	for i := 0; i < a.dim; i++ {
		for k := 0; k < a.dim; k++ {
			ak := a.index(i, k)
			if a.re[ak].Sign() == 0 && a.im[ak].Sign() == 0 {
				continue
			}
			for j := 0; j < b.dim; j++ {
				bk := b.index(k, j)
				s.mul(pr, pi, &a.re[ak], &a.im[ak], &b.re[bk], &b.im[bk])
				ok := out.index(i, j)
				out.re[ok].Add(&out.re[ok], pr)
				out.im[ok].Add(&out.im[ok], pi)
			}
		}
	}
	return out, nil
}

// TraceProduct returns Tr(ab) without forming the product.
func TraceProduct(a, b *Matrix) (re, im *big.Float, err error) {
	if a.dim != b.dim {
		return nil, nil, fmt.Errorf("trace of %dx%d times %dx%d: %w", a.dim, a.dim, b.dim, b.dim, ErrDimensionMismatch)
	}
	prec := maxPrec(a.prec, b.prec)
	s := newScratch(prec)
	re, im = newFloat(prec), newFloat(prec)
	pr, pi := newFloat(prec), newFloat(prec)
	for i := 0; i < a.dim; i++ {
		for j := 0; j < a.dim; j++ {
			ak, bk := a.index(i, j), b.index(j, i)
			s.mul(pr, pi, &a.re[ak], &a.im[ak], &b.re[bk], &b.im[bk])
			re.Add(re, pr)
			im.Add(im, pi)
		}
	}
	return re, im, nil
}

// Kron returns the tensor product of the factors, the first factor leftmost.
func Kron(factors ...*Matrix) *Matrix {
	if len(factors) == 0 {
		return nil
	}
	out := factors[0].Clone()
	for _, f := range factors[1:] {
		out = kron2(out, f)
	}
	return out
}

func kron2(a, b *Matrix) *Matrix {
	prec := maxPrec(a.prec, b.prec)
	out := NewMatrix(a.qubits+b.qubits, prec)
	s := newScratch(prec)
	for i := 0; i < out.dim; i++ {
		ai, bi := i/b.dim, i%b.dim
		for j := 0; j < out.dim; j++ {
			ak, bk := a.index(ai, j/b.dim), b.index(bi, j%b.dim)
			k := out.index(i, j)
			s.mul(&out.re[k], &out.im[k], &a.re[ak], &a.im[ak], &b.re[bk], &b.im[bk])
		}
	}
	return out
}

func maxPrec(a, b uint) uint {
	if a > b {
		return a
	}
	return b
}

// scratch holds temporaries for complex multiplication.
type scratch struct {
	a, b, c, d big.Float
}

func newScratch(prec uint) *scratch {
	s := &scratch{}
	s.a.SetPrec(prec)
	s.b.SetPrec(prec)
	s.c.SetPrec(prec)
	s.d.SetPrec(prec)
	return s
}

// mul sets zr + i*zi = (ar + i*ai)(br + i*bi). The outputs may alias the inputs.
func (s *scratch) mul(zr, zi, ar, ai, br, bi *big.Float) {
	s.a.Mul(ar, br)
	s.b.Mul(ai, bi)
	s.c.Mul(ar, bi)
	s.d.Mul(ai, br)
	zr.Sub(&s.a, &s.b)
	zi.Add(&s.c, &s.d)
}
