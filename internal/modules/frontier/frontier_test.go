package frontier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/magicfactory/internal/domain"
	testutil "github.com/aristath/magicfactory/internal/testing"
)

func names(fs []domain.MagicStateFactory) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Name
	}
	return out
}

func TestPareto(t *testing.T) {
	front := Pareto(testutil.NewFactoryFixtures())
	assert.Equal(t, []string{"tiny", "compact", "standard", "large"}, names(front))
}

func TestPareto_SkipsUnusable(t *testing.T) {
	fs := []domain.MagicStateFactory{
		{Name: "zero", ErrorRate: 0, Qubits: 10},
		{Name: "empty", ErrorRate: 1e-3, Qubits: 0},
		{Name: "ok", ErrorRate: 1e-3, Qubits: 50},
		{Name: "same size worse", ErrorRate: 1e-2, Qubits: 50},
	}
	assert.Equal(t, []string{"ok"}, names(Pareto(fs)))
	assert.Empty(t, Pareto(nil))
}

func TestLowerHull(t *testing.T) {
	hull := LowerHull(testutil.NewFactoryFixtures())
	assert.Equal(t, []string{"tiny", "standard", "large"}, names(hull))

	two := LowerHull(testutil.NewFactoryFixtures()[:2])
	assert.Equal(t, []string{"tiny", "compact"}, names(two))
}

func TestLowerHull_DropsConcaveMiddle(t *testing.T) {
	fs := []domain.MagicStateFactory{
		{Name: "a", ErrorRate: 1e-2, Qubits: 100},
		{Name: "b", ErrorRate: 1e-3, Qubits: 200},
		{Name: "c", ErrorRate: 1e-6, Qubits: 300},
	}
	assert.Equal(t, []string{"a", "c"}, names(LowerHull(fs)))
}

func TestBest(t *testing.T) {
	fixtures := testutil.NewFactoryFixtures()
	tests := []struct {
		name      string
		maxQubits int
		want      string
		found     bool
	}{
		{"no budget", 0, "large", true},
		{"400 qubits", 400, "standard", true},
		{"150 qubits", 150, "tiny", true},
		{"too small", 100, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := Best(fixtures, tt.maxQubits)
			require.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, f.Name)
		})
	}
}
