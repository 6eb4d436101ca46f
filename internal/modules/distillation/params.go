// Package distillation simulates magic-state distillation protocols on the
// noise density-matrix engine and turns the resulting error channels into
// factory cost estimates.
package distillation

import (
	"fmt"
	"math"
	"strconv"

	"github.com/aristath/magicfactory/internal/domain"
)

// Protocol names a distillation protocol layout.
type Protocol string

const (
	// SmallFootprint15to1 is the one-level 15-to-1 protocol with 2dm code cycles per step.
	SmallFootprint15to1 Protocol = "small-footprint-15to1"
	// Compact15to1 is the faster one-level 15-to-1 variant with dm code cycles per step.
	Compact15to1 Protocol = "compact-15to1"
	// Standard15to1 is the one-level 15-to-1 protocol fed into the two-level factories.
	Standard15to1 Protocol = "standard-15to1"
	// TwoLevel15to1 is (15-to-1)x(15-to-1).
	TwoLevel15to1 Protocol = "two-level-15to1"
	// TwoLevel20to4 is (15-to-1)x(20-to-4) with nl1 level-1 factories.
	TwoLevel20to4 Protocol = "two-level-20to4"
)

// Protocols lists every supported protocol in a stable order.
func Protocols() []Protocol {
	return []Protocol{SmallFootprint15to1, Compact15to1, Standard15to1, TwoLevel15to1, TwoLevel20to4}
}

// ParseProtocol validates a protocol name.
func ParseProtocol(name string) (Protocol, error) {
	for _, p := range Protocols() {
		if string(p) == name {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown protocol %q: %w", name, domain.ErrInvalidInput)
}

// Levels is the number of distillation levels.
func (p Protocol) Levels() int {
	switch p {
	case TwoLevel15to1, TwoLevel20to4:
		return 2
	default:
		return 1
	}
}

// Params are the inputs of one factory estimate. Level-2 distances are only
// read by two-level protocols and NL1 only by TwoLevel20to4.
type Params struct {
	PPhys float64 `json:"pphys" msgpack:"pphys"`
	DX    int     `json:"dx" msgpack:"dx"`
	DZ    int     `json:"dz" msgpack:"dz"`
	DM    int     `json:"dm" msgpack:"dm"`
	DX2   int     `json:"dx2,omitempty" msgpack:"dx2,omitempty"`
	DZ2   int     `json:"dz2,omitempty" msgpack:"dz2,omitempty"`
	DM2   int     `json:"dm2,omitempty" msgpack:"dm2,omitempty"`
	NL1   int     `json:"nl1,omitempty" msgpack:"nl1,omitempty"`
}

// Validate rejects parameters the protocol cannot be evaluated at.
func (p Params) Validate(proto Protocol) error {
	if math.IsNaN(p.PPhys) || !(p.PPhys > 0) || p.PPhys >= 1 {
		return fmt.Errorf("pphys %g outside (0,1): %w", p.PPhys, domain.ErrInvalidInput)
	}
	check := func(name string, d int) error {
		if d < 1 || d%2 == 0 {
			return fmt.Errorf("%s=%d must be a positive odd distance: %w", name, d, domain.ErrInvalidInput)
		}
		return nil
	}
	for _, c := range []struct {
		name string
		d    int
	}{{"dx", p.DX}, {"dz", p.DZ}, {"dm", p.DM}} {
		if err := check(c.name, c.d); err != nil {
			return err
		}
	}

	switch proto {
	case SmallFootprint15to1, Compact15to1, Standard15to1:
		return nil
	case TwoLevel15to1, TwoLevel20to4:
		for _, c := range []struct {
			name string
			d    int
		}{{"dx2", p.DX2}, {"dz2", p.DZ2}, {"dm2", p.DM2}} {
			if err := check(c.name, c.d); err != nil {
				return err
			}
		}
		if proto == TwoLevel20to4 && (p.NL1 < 2 || p.NL1%2 != 0) {
			return fmt.Errorf("nl1=%d must be a positive even factory count: %w", p.NL1, domain.ErrInvalidInput)
		}
		return nil
	default:
		return fmt.Errorf("unknown protocol %q: %w", proto, domain.ErrInvalidInput)
	}
}

// formatPPhys renders pphys the way factory names show it, e.g. 0.001 or 1e-05.
func formatPPhys(p float64) string {
	return strconv.FormatFloat(p, 'g', -1, 64)
}
