// Package domain holds the value types shared by the distillation, search and
// reporting modules.
package domain

import (
	"fmt"
	"strings"
)

// MagicStateFactory is the cost summary of one distillation protocol at fixed
// code distances and physical error rate.
type MagicStateFactory struct {
	// Name describes the protocol and every parameter that produced it.
	Name string `json:"name" msgpack:"name"`
	// ErrorRate is the output error per distilled magic state.
	ErrorRate float64 `json:"error_rate" msgpack:"error_rate"`
	// Qubits is the number of physical qubits occupied by the factory.
	Qubits int `json:"qubits" msgpack:"qubits"`
	// Cycles is the expected number of code cycles per successful distillation.
	Cycles float64 `json:"code_cycles" msgpack:"code_cycles"`
	// Dimensions is the layout footprint in physical-qubit units.
	Dimensions [2]int `json:"dimensions" msgpack:"dimensions"`
	// TGates is the number of magic states produced per distillation.
	TGates int `json:"t_gates_per_distillation" msgpack:"t_gates_per_distillation"`
}

// QubitCycles is the space-time cost per output state, truncated toward zero.
func (f MagicStateFactory) QubitCycles() int {
	n := f.TGates
	if n <= 0 {
		n = 1
	}
	return int(float64(f.Qubits) * f.Cycles / float64(n))
}

// String renders the factory as a multi-line report.
func (f MagicStateFactory) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", f.Name)
	fmt.Fprintf(&b, "Output error: %.1e\n", f.ErrorRate)
	fmt.Fprintf(&b, "Qubits: %d\n", f.Qubits)
	fmt.Fprintf(&b, "Code cycles: %.1f\n", f.Cycles)
	fmt.Fprintf(&b, "T-gates per distillation: %d\n", f.TGates)
	fmt.Fprintf(&b, "Footprint: (%d, %d)\n", f.Dimensions[0], f.Dimensions[1])
	fmt.Fprintf(&b, "Qubitcycles: %d\n", f.QubitCycles())
	return b.String()
}
