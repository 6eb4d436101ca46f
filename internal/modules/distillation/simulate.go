package distillation

import (
	"fmt"

	"github.com/aristath/magicfactory/internal/domain"
	"github.com/aristath/magicfactory/internal/modules/noise"
)

// Result is a factory estimate together with the quantities that produced it.
type Result struct {
	Protocol  Protocol                 `json:"protocol" msgpack:"protocol"`
	Params    Params                   `json:"params" msgpack:"params"`
	Precision uint                     `json:"precision_bits" msgpack:"precision_bits"`
	Outcome   Outcome                  `json:"outcome" msgpack:"outcome"`
	Level1    *LevelOne                `json:"level1,omitempty" msgpack:"level1,omitempty"`
	Factory   domain.MagicStateFactory `json:"factory" msgpack:"factory"`
}

type simulator func(p Params, prec uint) (*Result, error)

var simulators = map[Protocol]simulator{
	SmallFootprint15to1: simulateSmallFootprint,
	Compact15to1:        simulateCompact,
	Standard15to1:       simulateStandard,
	TwoLevel15to1:       simulateTwoLevel15to1,
	TwoLevel20to4:       simulateTwoLevel20to4,
}

// Simulate evaluates one protocol at the given parameters with prec-bit
// arithmetic. A zero prec selects noise.DefaultPrecision. The call is a pure
// function of its arguments and safe to run concurrently.
func Simulate(proto Protocol, p Params, prec uint) (*Result, error) {
	sim, ok := simulators[proto]
	if !ok {
		return nil, fmt.Errorf("unknown protocol %q: %w", proto, domain.ErrInvalidInput)
	}
	if err := p.Validate(proto); err != nil {
		return nil, err
	}
	if prec == 0 {
		prec = noise.DefaultPrecision
	}
	if prec < noise.MinPrecision {
		return nil, fmt.Errorf("precision %d below minimum %d bits: %w", prec, noise.MinPrecision, domain.ErrInvalidInput)
	}
	return sim(p, prec)
}

// Schedules returns the level schedules of a protocol at p. Two-level
// protocols need the level-1 simulation to parameterise level 2, so this runs
// it at prec.
func Schedules(proto Protocol, p Params, prec uint) ([]Schedule, error) {
	if err := p.Validate(proto); err != nil {
		return nil, err
	}
	if prec == 0 {
		prec = noise.DefaultPrecision
	}
	switch proto {
	case SmallFootprint15to1:
		return []Schedule{SmallFootprintSchedule(p)}, nil
	case Compact15to1:
		return []Schedule{CompactSchedule(p)}, nil
	case Standard15to1:
		return []Schedule{StandardSchedule(p)}, nil
	case TwoLevel15to1, TwoLevel20to4:
		l1out, err := runLevelOne(p, prec)
		if err != nil {
			return nil, fmt.Errorf("level 1: %w", err)
		}
		if proto == TwoLevel15to1 {
			return []Schedule{StandardSchedule(p), TwoLevel15to1Schedule(p, TwoLevel15to1Level(p, l1out))}, nil
		}
		return []Schedule{StandardSchedule(p), TwoLevel20to4Schedule(p, TwoLevel20to4Level(p, l1out))}, nil
	default:
		return nil, fmt.Errorf("unknown protocol %q: %w", proto, domain.ErrInvalidInput)
	}
}
