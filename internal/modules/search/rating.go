package search

import (
	"math"

	"github.com/aristath/magicfactory/internal/domain"
	"github.com/aristath/magicfactory/internal/modules/distillation"
)

// Disqualified is the rating of a one-level factory over the qubit cap.
const Disqualified = -99999999

// Rating scores a factory: higher is better. One-level factories above
// qubitCap are disqualified; a non-positive cap disables the check.
func Rating(proto distillation.Protocol, f domain.MagicStateFactory, qubitCap int) float64 {
	if proto.Levels() == 1 && qubitCap > 0 && f.Qubits > qubitCap {
		return Disqualified
	}
	if !(f.ErrorRate > 0) {
		return math.Inf(1)
	}
	return -math.Log10(f.ErrorRate)
}
