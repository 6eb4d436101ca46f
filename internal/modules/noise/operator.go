// Package noise implements the arbitrary-precision density-matrix algebra used to
// propagate errors through distillation protocols.
//
// Matrices carry their own mantissa precision. Every operation returns a new
// matrix and leaves its inputs untouched.
package noise

import (
	"errors"
	"math/big"
)

const (
	// DefaultPrecision is the mantissa width, in bits, used when none is configured.
	DefaultPrecision uint = 128
	// MinPrecision is the narrowest mantissa that still resolves two-level output errors.
	MinPrecision uint = 64
)

var (
	// ErrDimensionMismatch signals operands whose qubit counts disagree.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrInvalidProbability signals a channel weight outside [0,1] or weights summing above 1.
	ErrInvalidProbability = errors.New("invalid channel probability")
)

// Operator is a single-qubit operator with exactly representable entries.
type Operator [2][2]complex128

// Single-qubit operators used to describe rotation axes and projectors.
var (
	One   = Operator{{1, 0}, {0, 1}}
	Z     = Operator{{1, 0}, {0, -1}}
	X     = Operator{{0, 1}, {1, 0}}
	ProjX = Operator{{0.5, 0.5}, {0.5, 0.5}}
)

// Neg returns -o.
func (o Operator) Neg() Operator {
	var n Operator
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			n[i][j] = -o[i][j]
		}
	}
	return n
}

// IsIdentity reports whether o is the identity.
func (o Operator) IsIdentity() bool {
	return o == One
}

// signs reports whether o is diag(s0, s1) with s0, s1 in {+1, -1}.
func (o Operator) signs() (s0, s1 int8, ok bool) {
	if o[0][1] != 0 || o[1][0] != 0 {
		return 0, 0, false
	}
	s0, ok0 := unitSign(o[0][0])
	s1, ok1 := unitSign(o[1][1])
	return s0, s1, ok0 && ok1
}

func unitSign(c complex128) (int8, bool) {
	switch c {
	case 1:
		return 1, true
	case -1:
		return -1, true
	}
	return 0, false
}

// Matrix converts o to a one-qubit matrix at the given precision.
func (o Operator) Matrix(prec uint) *Matrix {
	m := NewMatrix(1, prec)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			k := m.index(i, j)
			m.re[k].SetFloat64(real(o[i][j]))
			m.im[k].SetFloat64(imag(o[i][j]))
		}
	}
	return m
}

// bigEntries returns the entries of o as big floats at the given precision.
func (o Operator) bigEntries(prec uint) (re, im [2][2]*big.Float) {
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			re[i][j] = newFloat(prec).SetFloat64(real(o[i][j]))
			im[i][j] = newFloat(prec).SetFloat64(imag(o[i][j]))
		}
	}
	return re, im
}

// KronOps is the tensor product of single-qubit operators, qubit 1 leftmost.
func KronOps(prec uint, ops ...Operator) *Matrix {
	factors := make([]*Matrix, len(ops))
	for i, op := range ops {
		factors[i] = op.Matrix(prec)
	}
	return Kron(factors...)
}

// PlusState returns |+><+| on n qubits.
func PlusState(n int, prec uint) *Matrix {
	m := NewMatrix(n, prec)
	v := newFloat(prec).SetMantExp(big.NewFloat(1), -n)
	for k := range m.re {
		m.re[k].Set(v)
	}
	return m
}

// Ideal15to1 is the error-free 15-to-1 register: output and four ancillas in |+>.
func Ideal15to1(prec uint) *Matrix {
	return PlusState(5, prec)
}

// Ideal20to4 is the error-free 20-to-4 register: four outputs and three ancillas in |+>.
func Ideal20to4(prec uint) *Matrix {
	return PlusState(7, prec)
}

func newFloat(prec uint) *big.Float {
	return new(big.Float).SetPrec(prec)
}

func invSqrt2(prec uint) *big.Float {
	two := newFloat(prec).SetInt64(2)
	r := newFloat(prec).Sqrt(two)
	return r.Quo(newFloat(prec).SetInt64(1), r)
}
