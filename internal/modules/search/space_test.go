package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/magicfactory/internal/domain"
	"github.com/aristath/magicfactory/internal/modules/distillation"
)

func TestRange_Values(t *testing.T) {
	assert.Equal(t, []int{3, 5, 7}, Span(3, 8, 2).Values())
	assert.Equal(t, []int{0}, Range{}.Values())
	assert.Empty(t, Span(5, 5, 2).Values())
}

func TestSpace_PointsOrder(t *testing.T) {
	s := Space{
		Protocol: distillation.SmallFootprint15to1,
		PPhys:    []float64{1e-3, 1e-4},
		DX:       Span(5, 8, 2),
		DZ:       Span(1, 2, 1),
		DM:       Span(1, 4, 2),
	}
	require.NoError(t, s.Validate())
	points := s.Points()
	require.Len(t, points, s.Size())
	assert.Equal(t, 8, len(points))

	assert.Equal(t, distillation.Params{PPhys: 1e-3, DX: 5, DZ: 1, DM: 1}, points[0])
	assert.Equal(t, distillation.Params{PPhys: 1e-3, DX: 5, DZ: 1, DM: 3}, points[1])
	assert.Equal(t, distillation.Params{PPhys: 1e-3, DX: 7, DZ: 1, DM: 1}, points[2])
	assert.Equal(t, distillation.Params{PPhys: 1e-4, DX: 5, DZ: 1, DM: 1}, points[4])
}

func TestSpace_Validate(t *testing.T) {
	tests := []struct {
		name  string
		space Space
	}{
		{"unknown protocol", Space{Protocol: "nope", PPhys: []float64{1e-3}, DX: Span(3, 4, 1), DZ: Span(1, 2, 1), DM: Span(1, 2, 1)}},
		{"no pphys", Space{Protocol: distillation.Compact15to1, DX: Span(3, 4, 1), DZ: Span(1, 2, 1), DM: Span(1, 2, 1)}},
		{"empty dx", Space{Protocol: distillation.Compact15to1, PPhys: []float64{1e-3}, DX: Span(5, 3, 2), DZ: Span(1, 2, 1), DM: Span(1, 2, 1)}},
		{"missing dm", Space{Protocol: distillation.Compact15to1, PPhys: []float64{1e-3}, DX: Span(3, 4, 1), DZ: Span(1, 2, 1)}},
		{"stray dx2", Space{Protocol: distillation.Compact15to1, PPhys: []float64{1e-3}, DX: Span(3, 4, 1), DZ: Span(1, 2, 1), DM: Span(1, 2, 1), DX2: Span(3, 4, 1)}},
		{"missing nl1", Space{
			Protocol: distillation.TwoLevel20to4, PPhys: []float64{1e-3},
			DX: Span(3, 4, 1), DZ: Span(1, 2, 1), DM: Span(1, 2, 1),
			DX2: Span(3, 4, 1), DZ2: Span(1, 2, 1), DM2: Span(1, 2, 1),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.space.Validate(), domain.ErrInvalidInput)
		})
	}
}

func TestPresets(t *testing.T) {
	sizes := map[string]int{
		PresetOneLevel:         10 * 4 * 4,
		PresetTwoLevel:         7 * 4 * 4 * 7 * 4 * 4,
		PresetTwoLevel20to4:    4 * 4 * 4 * 7 * 4 * 4 * 3,
		PresetErrorRateScaling: 30 * 2 * 2 * 2,
	}
	for _, p := range Presets() {
		t.Run(p.Name, func(t *testing.T) {
			require.NoError(t, p.Space.Validate())
			assert.Equal(t, sizes[p.Name], p.Space.Size())
			for _, pt := range p.Space.Points() {
				require.NoError(t, pt.Validate(p.Space.Protocol))
			}
		})
	}

	scaling, err := LookupPreset(PresetErrorRateScaling)
	require.NoError(t, err)
	assert.InDelta(t, 1e-3, scaling.Space.PPhys[0], 1e-15)
	assert.InDelta(t, 1.2589254117941662e-06, scaling.Space.PPhys[29], 1e-18)

	_, err = LookupPreset("three-level")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
