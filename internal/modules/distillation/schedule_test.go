package distillation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/magicfactory/internal/domain"
	"github.com/aristath/magicfactory/internal/modules/noise"
)

func countKind(s Schedule, kind StepKind) int {
	n := 0
	for _, step := range s.Steps {
		if step.Kind == kind {
			n++
		}
	}
	return n
}

func TestSchedules_Shape(t *testing.T) {
	single := Params{PPhys: 1e-4, DX: 7, DZ: 3, DM: 3}
	l1 := LevelOne{PL1: 1e-6, L1Time: 12}
	double := Params{PPhys: 1e-4, DX: 7, DZ: 3, DM: 3, DX2: 9, DZ2: 5, DM2: 5, NL1: 4}

	tests := []struct {
		name      string
		schedule  Schedule
		qubits    int
		stages    int
		rotations int
	}{
		{"small footprint", SmallFootprintSchedule(single), 5, 12, 15},
		{"compact", CompactSchedule(single), 5, 12, 15},
		{"standard", StandardSchedule(single), 5, 6, 15},
		{"two-level 15-to-1", TwoLevel15to1Schedule(double, l1), 5, 15, 15},
		{"two-level 20-to-4", TwoLevel20to4Schedule(double, l1), 7, 10, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.schedule
			assert.Equal(t, tt.qubits, s.Qubits)
			assert.Equal(t, tt.stages, s.Stages())
			assert.Equal(t, tt.rotations, countKind(s, Rotate))
			assert.Positive(t, countKind(s, StoreX))
			assert.Positive(t, countKind(s, StoreZ))

			prev := 0
			for _, step := range s.Steps {
				assert.GreaterOrEqual(t, step.Stage, prev)
				prev = step.Stage
				switch step.Kind {
				case Rotate:
					assert.Len(t, step.Axis, s.Qubits)
					assert.LessOrEqual(t, step.P1+step.P2+step.P3, 1.0)
				default:
					assert.Len(t, step.Weights, s.Qubits)
				}
			}
		})
	}
}

func TestSchedule_StepwiseReplayMatchesRun(t *testing.T) {
	s := CompactSchedule(Params{PPhys: 1e-3, DX: 5, DZ: 1, DM: 3})

	want, err := s.Run(0)
	require.NoError(t, err)

	rho := noise.PlusState(s.Qubits, 0)
	for _, step := range s.Steps {
		rho, err = step.Apply(rho)
		require.NoError(t, err)
	}
	assert.True(t, want.Equal(rho))
}

func TestSchedule_RunFromRejectsWrongRegister(t *testing.T) {
	s := StandardSchedule(Params{PPhys: 1e-3, DX: 5, DZ: 1, DM: 3})
	_, err := s.RunFrom(noise.PlusState(7, 0))
	assert.ErrorIs(t, err, noise.ErrDimensionMismatch)
}

func TestSchedule_InvalidCoefficientsSurface(t *testing.T) {
	// at pphys close to 1 the logical rates exceed 1
	s := CompactSchedule(Params{PPhys: 0.5, DX: 3, DZ: 1, DM: 1})
	_, err := s.Run(0)
	assert.ErrorIs(t, err, noise.ErrInvalidProbability)
}

func TestStep_UnknownKind(t *testing.T) {
	_, err := Step{}.Apply(noise.PlusState(1, 0))
	assert.Error(t, err)
	assert.Equal(t, "step(0)", StepKind(0).String())
	assert.Equal(t, "rotate", Rotate.String())
}

func TestSchedules_TwoLevelRunsLevelOne(t *testing.T) {
	p := Params{PPhys: 1e-4, DX: 5, DZ: 1, DM: 1, DX2: 7, DZ2: 3, DM2: 3}
	ss, err := Schedules(TwoLevel15to1, p, 0)
	require.NoError(t, err)
	require.Len(t, ss, 2)
	assert.Equal(t, string(Standard15to1), ss[0].Name)
	assert.Equal(t, string(TwoLevel15to1), ss[1].Name)

	ss, err = Schedules(SmallFootprint15to1, Params{PPhys: 1e-4, DX: 5, DZ: 1, DM: 1}, 0)
	require.NoError(t, err)
	require.Len(t, ss, 1)

	_, err = Schedules(Compact15to1, Params{PPhys: 1e-4, DX: 2, DZ: 1, DM: 1}, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestExtract_IdealStateIsUnresolvable(t *testing.T) {
	// a vanishing output error cannot be told apart from cancellation
	_, err := Extract(noise.PlusState(5, 0), keep15to1, noise.Ideal15to1(0))
	assert.ErrorIs(t, err, domain.ErrUnstableResult)
}

func TestExtract_ResolutionFloor(t *testing.T) {
	tests := []struct {
		name   string
		p      float64
		stable bool
	}{
		{"well above the floor", 1e-20, true},
		{"below the floor", 1e-40, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rho, err := noise.ApplyRotation(noise.PlusState(5, 0), axis(z, one, one, one, one), tt.p, 0, 0)
			require.NoError(t, err)

			out, err := Extract(rho, keep15to1, noise.Ideal15to1(0))
			if !tt.stable {
				assert.ErrorIs(t, err, domain.ErrUnstableResult)
				return
			}
			require.NoError(t, err)
			assert.InEpsilon(t, tt.p, out.POut, 1e-9)
		})
	}
}

func TestExtract_OutputError(t *testing.T) {
	// a Z error on the output qubit with probability 0.1
	rho, err := noise.ApplyRotation(noise.PlusState(5, 0), axis(z, one, one, one, one), 0.1, 0, 0)
	require.NoError(t, err)

	out, err := Extract(rho, keep15to1, noise.Ideal15to1(0))
	require.NoError(t, err)
	assert.Equal(t, 0.0, out.PFail)
	assert.InDelta(t, 0.1, out.POut, 1e-15)
}

func TestExtract_AncillaErrorIsRejected(t *testing.T) {
	rho, err := noise.ApplyRotation(noise.PlusState(5, 0), axis(z, one, one, one, one), 0.01, 0, 0)
	require.NoError(t, err)
	rho, err = noise.ApplyRotation(rho, axis(one, z, one, one, one), 0.25, 0, 0)
	require.NoError(t, err)

	out, err := Extract(rho, keep15to1, noise.Ideal15to1(0))
	require.NoError(t, err)
	assert.InDelta(t, 0.25, out.PFail, 1e-15)
	assert.InDelta(t, 0.75, out.Acceptance, 1e-15)
	// only the output error survives post-selection
	assert.InDelta(t, 0.01, out.POut, 1e-15)
}

func TestExtract_VanishingAcceptanceIsUnstable(t *testing.T) {
	rho, err := noise.ApplyRotation(noise.PlusState(5, 0), axis(one, z, one, one, one), 1, 0, 0)
	require.NoError(t, err)

	_, err = Extract(rho, keep15to1, noise.Ideal15to1(0))
	assert.ErrorIs(t, err, domain.ErrUnstableResult)
}

func TestExtract_DimensionMismatch(t *testing.T) {
	_, err := Extract(noise.PlusState(5, 0), keep15to1, noise.Ideal20to4(0))
	assert.ErrorIs(t, err, noise.ErrDimensionMismatch)
}
