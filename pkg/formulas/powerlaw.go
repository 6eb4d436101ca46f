package formulas

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ErrInsufficientData is returned when fewer than two usable points remain.
var ErrInsufficientData = errors.New("insufficient data for fit")

// PowerLaw describes y = Prefactor * x^Exponent fitted in log-log space.
type PowerLaw struct {
	Exponent  float64 `json:"exponent"`
	Prefactor float64 `json:"prefactor"`
	RSquared  float64 `json:"r_squared"`
	Points    int     `json:"points"`
}

// Eval returns the fitted value at x.
func (p PowerLaw) Eval(x float64) float64 {
	return p.Prefactor * math.Pow(x, p.Exponent)
}

// FitPowerLaw fits log10(y) = a + b*log10(x) by least squares. Points with a
// non-positive or non-finite coordinate are ignored.
func FitPowerLaw(x, y []float64) (PowerLaw, error) {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	lx := make([]float64, 0, n)
	ly := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if !(x[i] > 0) || !(y[i] > 0) || math.IsInf(x[i], 0) || math.IsInf(y[i], 0) {
			continue
		}
		lx = append(lx, math.Log10(x[i]))
		ly = append(ly, math.Log10(y[i]))
	}
	if len(lx) < 2 {
		return PowerLaw{}, ErrInsufficientData
	}

	alpha, beta := stat.LinearRegression(lx, ly, nil, false)
	if math.IsNaN(alpha) || math.IsNaN(beta) {
		return PowerLaw{}, ErrInsufficientData
	}
	return PowerLaw{
		Exponent:  beta,
		Prefactor: math.Pow(10, alpha),
		RSquared:  stat.RSquared(lx, ly, nil, alpha, beta),
		Points:    len(lx),
	}, nil
}
