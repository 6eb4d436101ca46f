package formulas

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Arange returns start, start+step, ... up to but excluding stop, with
// ceil((stop-start)/step) elements computed as start + i*step.
func Arange(start, stop, step float64) []float64 {
	if step == 0 {
		return nil
	}
	n := int(math.Ceil((stop - start) / step))
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

// Linspace returns n evenly spaced values over [lo, hi], both ends included.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{lo}
	}
	return floats.Span(make([]float64, n), lo, hi)
}

// NegPow10 maps every exponent x to 10^-x.
func NegPow10(exponents []float64) []float64 {
	out := make([]float64, len(exponents))
	for i, x := range exponents {
		out[i] = math.Pow(10, -x)
	}
	return out
}

// IntRange mirrors a half-open integer range with a positive step.
func IntRange(start, stop, step int) []int {
	if step <= 0 || stop <= start {
		return nil
	}
	out := make([]int, 0, (stop-start+step-1)/step)
	for v := start; v < stop; v += step {
		out = append(out, v)
	}
	return out
}
