package testing

import (
	"time"

	"github.com/aristath/magicfactory/internal/domain"
	"github.com/aristath/magicfactory/internal/modules/distillation"
	"github.com/aristath/magicfactory/internal/modules/results"
)

// FixtureDate is the timestamp stamped on fixture rows.
var FixtureDate = time.Date(2024, 4, 1, 10, 42, 0, 0, time.UTC)

// NewFactoryFixtures returns factories spanning the qubit/error trade-off.
// The first dominates nothing, the last is the largest and most accurate.
func NewFactoryFixtures() []domain.MagicStateFactory {
	return []domain.MagicStateFactory{
		{Name: "tiny", ErrorRate: 9.1e-2, Qubits: 144, Cycles: 1079.3, Dimensions: [2]int{8, 9}, TGates: 1},
		{Name: "compact", ErrorRate: 2.6e-2, Qubits: 188, Cycles: 338.1, Dimensions: [2]int{10, 9}, TGates: 1},
		{Name: "wasteful", ErrorRate: 5e-2, Qubits: 400, Cycles: 500, Dimensions: [2]int{20, 10}, TGates: 1},
		{Name: "standard", ErrorRate: 4.3e-8, Qubits: 382, Cycles: 18.1, Dimensions: [2]int{19, 27}, TGates: 1},
		{Name: "large", ErrorRate: 1.9e-11, Qubits: 1210, Cycles: 30.03, Dimensions: [2]int{31, 43}, TGates: 1},
	}
}

// NewRowFixtures returns successful one-level search rows for run.
func NewRowFixtures(run string) []results.Row {
	return []results.Row{
		{
			RunID: run, Seq: 0, Protocol: distillation.SmallFootprint15to1, Date: FixtureDate, Precision: 128,
			Params:    distillation.Params{PPhys: 1e-3, DX: 5, DZ: 1, DM: 3},
			ErrorRate: 0.09142119745976138, Qubits: 144, Cycles: 1079.33, Status: results.StatusOK,
		},
		{
			RunID: run, Seq: 1, Protocol: distillation.SmallFootprint15to1, Date: FixtureDate, Precision: 128,
			Params:    distillation.Params{PPhys: 1e-3, DX: 7, DZ: 3, DM: 3},
			ErrorRate: 1.5e-4, Qubits: 532, Cycles: 72.4, Status: results.StatusOK,
		},
		{
			RunID: run, Seq: 2, Protocol: distillation.SmallFootprint15to1, Date: FixtureDate, Precision: 128,
			Params: distillation.Params{PPhys: 1e-3, DX: 9, DZ: 1, DM: 1},
			Status: results.StatusUnstable, Error: "acceptance probability vanishes",
		},
	}
}
