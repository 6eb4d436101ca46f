package overhead

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/magicfactory/internal/domain"
)

func TestRequiredDistance(t *testing.T) {
	tests := []struct {
		name  string
		pout  float64
		pphys float64
		size  ComputationSize
		want  int
	}{
		{"small footprint 100 qubits", 0.09142119745976138, 1e-3, Qubits100, 11},
		{"small footprint 5000 qubits", 0.09142119745976138, 1e-3, Qubits5000, 15},
		{"standard 100 qubits", 4.7925259230731875e-08, 1e-3, Qubits100, 25},
		{"standard 5000 qubits", 4.7925259230731875e-08, 1e-3, Qubits5000, 29},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := RequiredDistance(tt.pout, tt.pphys, tt.size)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
			assert.Equal(t, 1, d%2)
		})
	}
}

func TestRequiredDistance_LargerComputationNeedsMore(t *testing.T) {
	for _, pout := range []float64{1e-3, 1e-6, 1e-9} {
		small, err := RequiredDistance(pout, 1e-4, Qubits100)
		require.NoError(t, err)
		large, err := RequiredDistance(pout, 1e-4, Qubits5000)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, large, small, "pout=%g", pout)
	}
}

func TestRequiredDistance_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		pout  float64
		pphys float64
		size  ComputationSize
	}{
		{"zero output error", 0, 1e-3, Qubits100},
		{"output error above one", 1.5, 1e-3, Qubits100},
		{"nan output error", math.NaN(), 1e-3, Qubits100},
		{"zero pphys", 1e-6, 0, Qubits100},
		{"pphys one", 1e-6, 1, Qubits100},
		{"unknown size", 1e-6, 1e-3, ComputationSize("7-qubit")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RequiredDistance(tt.pout, tt.pphys, tt.size)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestRequiredDistance_AboveThresholdHasNoRoot(t *testing.T) {
	// 100*pphys > 1 makes plog grow with d, so the error never falls to 1%.
	_, err := RequiredDistance(1e-3, 0.02, Qubits100)
	assert.Error(t, err)
}

func TestSpacetimeCost(t *testing.T) {
	f := domain.MagicStateFactory{Qubits: 144, Cycles: 1000}
	assert.InDelta(t, 144.0*1000/(2*1331), SpacetimeCost(f, 11), 1e-12)
	assert.True(t, math.IsInf(SpacetimeCost(f, 0), 1))
}

func TestAnalyze(t *testing.T) {
	f := domain.MagicStateFactory{ErrorRate: 0.09142119745976138, Qubits: 144, Cycles: 1079.3}

	all, err := Analyze(f, 1e-3)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, Qubits100, all[0].Size)
	assert.Equal(t, 11, all[0].RequiredDistance)
	assert.Equal(t, Qubits5000, all[1].Size)
	assert.Equal(t, 15, all[1].RequiredDistance)
	assert.InDelta(t, SpacetimeCost(f, 15), all[1].SpacetimeCost, 1e-12)

	one, err := Analyze(f, 1e-3, Qubits5000)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, 15, one[0].RequiredDistance)
}

func TestParseSize(t *testing.T) {
	for name, want := range map[string]ComputationSize{
		"100-qubit":   Qubits100,
		"100":         Qubits100,
		"5000-qubit":  Qubits5000,
		"10000-qubit": Qubits5000,
	} {
		got, err := ParseSize(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got)
	}
	_, err := ParseSize("huge")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
