// Package search sweeps distillation protocols over grids of code distances
// and physical error rates and ranks the resulting factories.
package search

import (
	"fmt"

	"github.com/aristath/magicfactory/internal/domain"
	"github.com/aristath/magicfactory/internal/modules/distillation"
	"github.com/aristath/magicfactory/pkg/formulas"
)

// Range is a half-open integer range [Start, Stop) with a positive Step.
// The zero Range is unset and contributes a single zero value.
type Range struct {
	Start int `json:"start"`
	Stop  int `json:"stop"`
	Step  int `json:"step"`
}

// Span is shorthand for Range{start, stop, step}.
func Span(start, stop, step int) Range {
	return Range{Start: start, Stop: stop, Step: step}
}

// IsZero reports whether the range is unset.
func (r Range) IsZero() bool {
	return r == Range{}
}

// Values lists the range's members.
func (r Range) Values() []int {
	if r.IsZero() {
		return []int{0}
	}
	return formulas.IntRange(r.Start, r.Stop, r.Step)
}

// Space is the cartesian grid a search evaluates.
type Space struct {
	Protocol distillation.Protocol `json:"protocol"`
	PPhys    []float64             `json:"pphys"`
	DX       Range                 `json:"dx"`
	DZ       Range                 `json:"dz"`
	DM       Range                 `json:"dm"`
	DX2      Range                 `json:"dx2"`
	DZ2      Range                 `json:"dz2"`
	DM2      Range                 `json:"dm2"`
	NL1      Range                 `json:"nl1"`
}

// Validate checks that every range the protocol reads is non-empty and that
// ranges it ignores are unset.
func (s Space) Validate() error {
	if _, err := distillation.ParseProtocol(string(s.Protocol)); err != nil {
		return err
	}
	if len(s.PPhys) == 0 {
		return fmt.Errorf("no pphys values: %w", domain.ErrInvalidInput)
	}

	levels := s.Protocol.Levels()
	ranges := []struct {
		name string
		r    Range
		used bool
	}{
		{"dx", s.DX, true},
		{"dz", s.DZ, true},
		{"dm", s.DM, true},
		{"dx2", s.DX2, levels == 2},
		{"dz2", s.DZ2, levels == 2},
		{"dm2", s.DM2, levels == 2},
		{"nl1", s.NL1, s.Protocol == distillation.TwoLevel20to4},
	}
	for _, c := range ranges {
		switch {
		case c.used && len(c.r.Values()) == 0:
			return fmt.Errorf("%s range %v is empty: %w", c.name, c.r, domain.ErrInvalidInput)
		case c.used && c.r.IsZero():
			return fmt.Errorf("%s range is required for %s: %w", c.name, s.Protocol, domain.ErrInvalidInput)
		case !c.used && !c.r.IsZero():
			return fmt.Errorf("%s range is not used by %s: %w", c.name, s.Protocol, domain.ErrInvalidInput)
		}
	}
	return nil
}

// Size is the number of points in the grid.
func (s Space) Size() int {
	n := len(s.PPhys)
	for _, r := range []Range{s.DX, s.DZ, s.DM, s.DX2, s.DZ2, s.DM2, s.NL1} {
		n *= len(r.Values())
	}
	return n
}

// Points enumerates the grid with pphys outermost, then dx, dz, dm, dx2, dz2,
// dm2 and nl1 innermost.
func (s Space) Points() []distillation.Params {
	points := make([]distillation.Params, 0, s.Size())
	for _, pphys := range s.PPhys {
		for _, dx := range s.DX.Values() {
			for _, dz := range s.DZ.Values() {
				for _, dm := range s.DM.Values() {
					for _, dx2 := range s.DX2.Values() {
						for _, dz2 := range s.DZ2.Values() {
							for _, dm2 := range s.DM2.Values() {
								for _, nl1 := range s.NL1.Values() {
									points = append(points, distillation.Params{
										PPhys: pphys,
										DX:    dx, DZ: dz, DM: dm,
										DX2: dx2, DZ2: dz2, DM2: dm2,
										NL1: nl1,
									})
								}
							}
						}
					}
				}
			}
		}
	}
	return points
}

// Preset is a named search with its qubit cap.
type Preset struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Space       Space  `json:"space"`
	// QubitCap disqualifies one-level factories above this many qubits.
	QubitCap int `json:"qubit_cap,omitempty"`
}

// DefaultQubitCap is the one-level qubit budget used when none is configured.
const DefaultQubitCap = 3000

// Preset names.
const (
	PresetOneLevel         = "one-level"
	PresetTwoLevel         = "two-level"
	PresetTwoLevel20to4    = "two-level-20to4"
	PresetErrorRateScaling = "error-rate-scaling"
)

// Presets returns the built-in searches.
func Presets() []Preset {
	odd := func(lo, hi int) Range { return Span(lo, hi+1, 2) }
	return []Preset{
		{
			Name:        PresetOneLevel,
			Description: "Small-footprint 15-to-1 at pphys=1e-5 under a 3000-qubit cap",
			Space: Space{
				Protocol: distillation.SmallFootprint15to1,
				PPhys:    []float64{1e-5},
				DX:       odd(3, 21), DZ: odd(1, 7), DM: odd(1, 7),
			},
			QubitCap: DefaultQubitCap,
		},
		{
			Name:        PresetTwoLevel,
			Description: "(15-to-1)x(15-to-1) at pphys=1e-5",
			Space: Space{
				Protocol: distillation.TwoLevel15to1,
				PPhys:    []float64{1e-5},
				DX:       odd(3, 15), DZ: odd(1, 7), DM: odd(1, 7),
				DX2: odd(3, 15), DZ2: odd(1, 7), DM2: odd(1, 7),
			},
		},
		{
			Name:        PresetTwoLevel20to4,
			Description: "(15-to-1)x(20-to-4) at pphys=1e-5 with 2, 4 or 6 level-1 factories",
			Space: Space{
				Protocol: distillation.TwoLevel20to4,
				PPhys:    []float64{1e-5},
				DX:       odd(3, 9), DZ: odd(1, 7), DM: odd(1, 7),
				DX2: odd(3, 15), DZ2: odd(1, 7), DM2: odd(1, 7),
				NL1: Span(2, 7, 2),
			},
		},
		{
			Name:        PresetErrorRateScaling,
			Description: "Small-footprint 15-to-1 over pphys=10^-x, x in [3, 6) step 0.1",
			Space: Space{
				Protocol: distillation.SmallFootprint15to1,
				PPhys:    formulas.NegPow10(formulas.Arange(3, 6, 0.1)),
				DX:       odd(5, 7), DZ: odd(3, 5), DM: odd(3, 5),
			},
			QubitCap: DefaultQubitCap,
		},
	}
}

// LookupPreset returns the preset with the given name.
func LookupPreset(name string) (Preset, error) {
	for _, p := range Presets() {
		if p.Name == name {
			return p, nil
		}
	}
	return Preset{}, fmt.Errorf("unknown preset %q: %w", name, domain.ErrInvalidInput)
}
