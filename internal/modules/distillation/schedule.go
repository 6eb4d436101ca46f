package distillation

import (
	"fmt"

	"github.com/aristath/magicfactory/internal/modules/noise"
)

// StepKind tags a schedule entry.
type StepKind uint8

const (
	// Rotate applies the error channel of a faulty pi/8 rotation.
	Rotate StepKind = iota + 1
	// StoreX applies per-qubit idle bit-flip errors.
	StoreX
	// StoreZ applies per-qubit idle dephasing errors.
	StoreZ
)

func (k StepKind) String() string {
	switch k {
	case Rotate:
		return "rotate"
	case StoreX:
		return "storage_x"
	case StoreZ:
		return "storage_z"
	default:
		return fmt.Sprintf("step(%d)", uint8(k))
	}
}

// Step is one operation of a protocol schedule. Axis and P1..P3 are read by
// Rotate steps, Weights by the storage steps.
type Step struct {
	Kind    StepKind
	Stage   int
	Axis    []noise.Operator
	P1      float64
	P2      float64
	P3      float64
	Weights []float64
}

// Apply runs the step on rho and returns the new state.
func (s Step) Apply(rho *noise.Matrix) (*noise.Matrix, error) {
	switch s.Kind {
	case Rotate:
		return noise.ApplyRotation(rho, s.Axis, s.P1, s.P2, s.P3)
	case StoreX:
		return noise.StorageX(rho, s.Weights...)
	case StoreZ:
		return noise.StorageZ(rho, s.Weights...)
	default:
		return nil, fmt.Errorf("unknown step kind %d", s.Kind)
	}
}

// Schedule is the fixed, ordered step list of one protocol evaluated at
// concrete parameters.
type Schedule struct {
	Name   string
	Qubits int
	Steps  []Step
}

// Stages returns the number of protocol time steps in the schedule.
func (s Schedule) Stages() int {
	if len(s.Steps) == 0 {
		return 0
	}
	return s.Steps[len(s.Steps)-1].Stage
}

// Run replays the schedule on |+><+| over all qubits.
func (s Schedule) Run(prec uint) (*noise.Matrix, error) {
	return s.RunFrom(noise.PlusState(s.Qubits, prec))
}

// RunFrom replays the schedule starting from rho.
func (s Schedule) RunFrom(rho *noise.Matrix) (*noise.Matrix, error) {
	if rho.Qubits() != s.Qubits {
		return nil, fmt.Errorf("%s: state has %d qubits, schedule needs %d: %w", s.Name, rho.Qubits(), s.Qubits, noise.ErrDimensionMismatch)
	}
	out := rho
	for i, step := range s.Steps {
		next, err := step.Apply(out)
		if err != nil {
			return nil, fmt.Errorf("%s: stage %d step %d (%s): %w", s.Name, step.Stage, i+1, step.Kind, err)
		}
		out = next
	}
	return out, nil
}

var (
	one = noise.One
	z   = noise.Z
	nz  = noise.Z.Neg()
)

func axis(ops ...noise.Operator) []noise.Operator { return ops }

// builder accumulates steps grouped into numbered stages.
type builder struct {
	name   string
	qubits int
	stage  int
	steps  []Step
}

func newBuilder(name string, qubits int) *builder {
	return &builder{name: name, qubits: qubits}
}

// next opens the following protocol time step.
func (b *builder) next() *builder {
	b.stage++
	return b
}

func (b *builder) rot(ax []noise.Operator, p1, p2, p3 float64) *builder {
	b.steps = append(b.steps, Step{Kind: Rotate, Stage: b.stage, Axis: ax, P1: p1, P2: p2, P3: p3})
	return b
}

func (b *builder) storeX(w ...float64) *builder {
	b.steps = append(b.steps, Step{Kind: StoreX, Stage: b.stage, Weights: w})
	return b
}

func (b *builder) storeZ(w ...float64) *builder {
	b.steps = append(b.steps, Step{Kind: StoreZ, Stage: b.stage, Weights: w})
	return b
}

func (b *builder) build() Schedule {
	return Schedule{Name: b.name, Qubits: b.qubits, Steps: b.steps}
}
