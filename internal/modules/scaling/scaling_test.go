package scaling

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/magicfactory/internal/domain"
	"github.com/aristath/magicfactory/internal/modules/distillation"
	testutil "github.com/aristath/magicfactory/internal/testing"
)

var quiet = zerolog.New(nil).Level(zerolog.Disabled)

func TestDefaultRequest(t *testing.T) {
	req := DefaultRequest()
	assert.Equal(t, distillation.SmallFootprint15to1, req.Protocol)
	assert.Len(t, req.PPhys, 30)
	require.Len(t, req.Distances, 8)
	assert.Equal(t, distillation.Params{DX: 5, DZ: 3, DM: 3}, req.Distances[0])
	assert.Equal(t, distillation.Params{DX: 7, DZ: 5, DM: 5}, req.Distances[7])
}

func TestSweep_RecoversExponent(t *testing.T) {
	est := &testutil.FakeEstimator{}
	svc := NewService(est, 4, quiet)

	report, err := svc.Sweep(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, 240, est.Calls())
	require.Len(t, report.Fits, 8)
	for _, fit := range report.Fits {
		require.NotNil(t, fit.Law, fit.Error)
		assert.Len(t, fit.Points, 30)
		assert.InDelta(t, 3, fit.Law.Exponent, 1e-9)
		assert.InDelta(t, 35/float64(fit.Distances.DX), fit.Law.Prefactor, 1e-6)
		assert.InDelta(t, 1, fit.Law.RSquared, 1e-9)
	}
}

func TestSweep_FailedPointsAreCounted(t *testing.T) {
	est := &testutil.FakeEstimator{Fail: map[int]error{7: testutil.ErrFakeUnstable}}
	svc := NewService(est, 2, quiet)

	report, err := svc.Sweep(context.Background(), Request{
		Protocol:  distillation.Compact15to1,
		PPhys:     []float64{1e-3, 1e-4, 1e-5},
		Distances: []distillation.Params{{DX: 5, DZ: 1, DM: 3}, {DX: 7, DZ: 1, DM: 3}},
	})
	require.NoError(t, err)
	require.Len(t, report.Fits, 2)
	assert.NotNil(t, report.Fits[0].Law)
	assert.Equal(t, 0, report.Fits[0].Failed)
	assert.Nil(t, report.Fits[1].Law)
	assert.Equal(t, 3, report.Fits[1].Failed)
	assert.NotEmpty(t, report.Fits[1].Error)
}

func TestSweep_RejectsBadRequests(t *testing.T) {
	svc := NewService(&testutil.FakeEstimator{}, 1, quiet)
	tests := []struct {
		name string
		req  Request
	}{
		{"unknown protocol", Request{Protocol: "x", PPhys: []float64{1e-3, 1e-4}, Distances: []distillation.Params{{DX: 5, DZ: 1, DM: 3}}}},
		{"single pphys", Request{Protocol: distillation.Compact15to1, PPhys: []float64{1e-3}, Distances: []distillation.Params{{DX: 5, DZ: 1, DM: 3}}}},
		{"pphys out of range", Request{Protocol: distillation.Compact15to1, PPhys: []float64{1e-3, 2}, Distances: []distillation.Params{{DX: 5, DZ: 1, DM: 3}}}},
		{"no distances", Request{Protocol: distillation.Compact15to1, PPhys: []float64{1e-3, 1e-4}}},
		{"even distance", Request{Protocol: distillation.Compact15to1, PPhys: []float64{1e-3, 1e-4}, Distances: []distillation.Params{{DX: 4, DZ: 1, DM: 3}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Sweep(context.Background(), tt.req)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}
