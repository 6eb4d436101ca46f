package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMagicStateFactory_String(t *testing.T) {
	f := MagicStateFactory{
		Name:       "Small footprint 15-to-1 with pphys=0.001, dx=5, dz=1, dm=3",
		ErrorRate:  0.026148851010991132,
		Qubits:     186,
		Cycles:     338.09367565075286,
		Dimensions: [2]int{10, 9},
		TGates:     1,
	}

	want := "Small footprint 15-to-1 with pphys=0.001, dx=5, dz=1, dm=3\n" +
		"Output error: 2.6e-02\n" +
		"Qubits: 186\n" +
		"Code cycles: 338.1\n" +
		"T-gates per distillation: 1\n" +
		"Footprint: (10, 9)\n" +
		"Qubitcycles: 62885\n"
	assert.Equal(t, want, f.String())
}

func TestMagicStateFactory_QubitCycles(t *testing.T) {
	tests := []struct {
		name     string
		factory  MagicStateFactory
		expected int
	}{
		{"single output", MagicStateFactory{Qubits: 100, Cycles: 10.9, TGates: 1}, 1090},
		{"four outputs", MagicStateFactory{Qubits: 1000, Cycles: 50, TGates: 4}, 12500},
		{"truncates toward zero", MagicStateFactory{Qubits: 3, Cycles: 1.5, TGates: 4}, 1},
		{"missing gate count treated as one", MagicStateFactory{Qubits: 10, Cycles: 2}, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.factory.QubitCycles())
		})
	}
}
