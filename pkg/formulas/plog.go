// Package formulas contains the closed-form surface-code error models and the
// numeric helpers used around them.
package formulas

import "math"

// Plog is the logical error rate per code cycle of a distance-d surface-code
// patch at physical error rate p: 0.1 * (100p)^((d+1)/2).
func Plog(p float64, d int) float64 {
	return PlogAt(p, float64(d))
}

// PlogAt is Plog for a continuous distance, as needed by root finding.
func PlogAt(p, d float64) float64 {
	return 0.1 * math.Pow(100*p, (d+1)/2)
}
