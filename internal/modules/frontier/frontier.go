// Package frontier selects the factories worth building from a search: the
// qubit/error Pareto set, its convex lower hull and the best factory under a
// qubit budget.
package frontier

import (
	"math"
	"sort"

	"github.com/aristath/magicfactory/internal/domain"
)

// usable drops factories without a positive, finite error rate or qubit count.
func usable(factories []domain.MagicStateFactory) []domain.MagicStateFactory {
	out := make([]domain.MagicStateFactory, 0, len(factories))
	for _, f := range factories {
		if f.Qubits > 0 && f.ErrorRate > 0 && !math.IsInf(f.ErrorRate, 0) {
			out = append(out, f)
		}
	}
	return out
}

func byQubits(factories []domain.MagicStateFactory) {
	sort.SliceStable(factories, func(i, j int) bool {
		if factories[i].Qubits != factories[j].Qubits {
			return factories[i].Qubits < factories[j].Qubits
		}
		return factories[i].ErrorRate < factories[j].ErrorRate
	})
}

// Pareto returns the factories no other factory beats on both qubits and
// error rate, ordered by increasing qubits (and so decreasing error rate).
func Pareto(factories []domain.MagicStateFactory) []domain.MagicStateFactory {
	pts := usable(factories)
	byQubits(pts)

	front := make([]domain.MagicStateFactory, 0, len(pts))
	bestErr := math.Inf(1)
	for _, f := range pts {
		if f.ErrorRate < bestErr {
			front = append(front, f)
			bestErr = f.ErrorRate
		}
	}
	return front
}

// LowerHull returns the Pareto factories on the lower convex hull of
// (qubits, log10 error rate), ordered by increasing qubits. These are the
// factories that trade qubits for accuracy at a non-diminishing rate.
func LowerHull(factories []domain.MagicStateFactory) []domain.MagicStateFactory {
	front := Pareto(factories)
	if len(front) < 3 {
		return front
	}

	cross := func(o, a, b domain.MagicStateFactory) float64 {
		ox, oy := float64(o.Qubits), math.Log10(o.ErrorRate)
		return (float64(a.Qubits)-ox)*(math.Log10(b.ErrorRate)-oy) -
			(math.Log10(a.ErrorRate)-oy)*(float64(b.Qubits)-ox)
	}

	hull := make([]domain.MagicStateFactory, 0, len(front))
	for _, f := range front {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], f) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, f)
	}
	return hull
}

// Best returns the most accurate factory using at most maxQubits qubits. A
// non-positive maxQubits means no budget. Ties go to the smaller factory.
func Best(factories []domain.MagicStateFactory, maxQubits int) (domain.MagicStateFactory, bool) {
	var (
		best  domain.MagicStateFactory
		found bool
	)
	for _, f := range usable(factories) {
		if maxQubits > 0 && f.Qubits > maxQubits {
			continue
		}
		if !found || f.ErrorRate < best.ErrorRate ||
			(f.ErrorRate == best.ErrorRate && f.Qubits < best.Qubits) {
			best, found = f, true
		}
	}
	return best, found
}
