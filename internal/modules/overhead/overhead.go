// Package overhead sizes the computation a factory can feed: the code distance
// needed to keep the whole computation's logical error at 1%, and the factory's
// spacetime cost in units of that distance.
package overhead

import (
	"errors"
	"fmt"
	"math"

	"github.com/aristath/magicfactory/internal/domain"
	"github.com/aristath/magicfactory/pkg/formulas"
)

// ComputationSize names a reference computation by the number of logical
// qubit-cycles it spans.
type ComputationSize string

const (
	Qubits100  ComputationSize = "100-qubit"
	Qubits5000 ComputationSize = "5000-qubit"
)

// Bracket for the distance root. Distances beyond the upper end are never needed
// for pphys below threshold.
const (
	minDistance = 1.0
	maxDistance = 10000.0
	// TargetError is the total logical error budget of the computation.
	TargetError = 0.01
)

var coefficients = map[ComputationSize]float64{
	Qubits100:  231,
	Qubits5000: 20284,
}

// Sizes returns the known computation sizes, smallest first.
func Sizes() []ComputationSize {
	return []ComputationSize{Qubits100, Qubits5000}
}

// ParseSize resolves a computation size by name. "10000-qubit" is accepted as
// an alias of the 5000-qubit computation, which shares its coefficient.
func ParseSize(name string) (ComputationSize, error) {
	switch name {
	case string(Qubits100), "100":
		return Qubits100, nil
	case string(Qubits5000), "5000", "10000-qubit", "10000":
		return Qubits5000, nil
	}
	return "", fmt.Errorf("unknown computation size %q: %w", name, domain.ErrInvalidInput)
}

// Coefficient returns the number of T gates per unit of d*plog the computation
// consumes.
func (c ComputationSize) Coefficient() (float64, bool) {
	v, ok := coefficients[c]
	return v, ok
}

// RequiredDistance returns the smallest odd code distance at which a computation
// of the given size, fed by states of error pout, stays within TargetError:
//
//	C/pout * d * plog(pphys, d) = 0.01
//
// The continuous root is rounded to the nearest odd integer.
func RequiredDistance(pout, pphys float64, size ComputationSize) (int, error) {
	c, ok := size.Coefficient()
	if !ok {
		return 0, fmt.Errorf("unknown computation size %q: %w", size, domain.ErrInvalidInput)
	}
	if !(pout > 0) || pout > 1 {
		return 0, fmt.Errorf("output error %g not in (0,1]: %w", pout, domain.ErrInvalidInput)
	}
	if !(pphys > 0) || pphys >= 1 {
		return 0, fmt.Errorf("pphys %g not in (0,1): %w", pphys, domain.ErrInvalidInput)
	}

	logerr := func(d float64) float64 {
		return c/pout*d*formulas.PlogAt(pphys, d) - TargetError
	}
	root, err := formulas.Brent(logerr, minDistance, maxDistance, 1e-12, 0)
	if err != nil {
		if errors.Is(err, formulas.ErrNoBracket) {
			return 0, fmt.Errorf("no distance in [%g, %g] for pout=%g pphys=%g: %w", minDistance, maxDistance, pout, pphys, err)
		}
		return 0, fmt.Errorf("required distance: %w", err)
	}
	return 2*int(math.RoundToEven(root/2)) + 1, nil
}

// SpacetimeCost is the factory's qubitcycles per output state, expressed in
// d^3 units, counting two physical qubits per patch cell.
func SpacetimeCost(f domain.MagicStateFactory, d int) float64 {
	if d <= 0 {
		return math.Inf(1)
	}
	return float64(f.Qubits) * f.Cycles / (2 * math.Pow(float64(d), 3))
}

// Analysis is the overhead of one factory for one computation size.
type Analysis struct {
	Size             ComputationSize `json:"computation"`
	RequiredDistance int             `json:"required_distance"`
	SpacetimeCost    float64         `json:"spacetime_cost_d3"`
}

// Analyze computes the overhead of f for every requested size. No sizes means
// all known sizes.
func Analyze(f domain.MagicStateFactory, pphys float64, sizes ...ComputationSize) ([]Analysis, error) {
	if len(sizes) == 0 {
		sizes = Sizes()
	}
	out := make([]Analysis, 0, len(sizes))
	for _, size := range sizes {
		d, err := RequiredDistance(f.ErrorRate, pphys, size)
		if err != nil {
			return nil, err
		}
		out = append(out, Analysis{
			Size:             size,
			RequiredDistance: d,
			SpacetimeCost:    SpacetimeCost(f, d),
		})
	}
	return out, nil
}
