package distillation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/magicfactory/internal/domain"
)

// Reference values were produced with exact rational arithmetic on the same
// float64 coefficients, so 1e-9 relative agreement is expected at 128 bits.
const fixtureTolerance = 1e-9

func TestSimulate_SmallFootprintFixture(t *testing.T) {
	res, err := Simulate(SmallFootprint15to1, Params{PPhys: 1e-3, DX: 5, DZ: 1, DM: 3}, 0)
	require.NoError(t, err)

	assert.InEpsilon(t, 0.09142119745976138, res.Factory.ErrorRate, fixtureTolerance)
	assert.InEpsilon(t, 0.9360715186720557, res.Outcome.PFail, fixtureTolerance)
	assert.Equal(t, 144, res.Factory.Qubits)
	assert.InEpsilon(t, 69/(1-0.9360715186720557), res.Factory.Cycles, 1e-8)
	assert.Equal(t, [2]int{8, 9}, res.Factory.Dimensions)
	assert.Equal(t, 1, res.Factory.TGates)
	assert.Equal(t, "Small-footprint 15-to-1 with pphys=0.001, dx=5, dz=1, dm=3", res.Factory.Name)
	assert.Equal(t, 1, res.Protocol.Levels())
	assert.Nil(t, res.Level1)
}

func TestSimulate_CompactFixture(t *testing.T) {
	res, err := Simulate(Compact15to1, Params{PPhys: 1e-3, DX: 5, DZ: 1, DM: 3}, 0)
	require.NoError(t, err)

	assert.InEpsilon(t, 0.026148851010991132, res.Factory.ErrorRate, fixtureTolerance)
	assert.Equal(t, 186, res.Factory.Qubits)
	assert.InEpsilon(t, 338.09367565075286, res.Factory.Cycles, 1e-8)
	assert.Equal(t, [2]int{10, 9}, res.Factory.Dimensions)
	assert.Equal(t, "Small footprint 15-to-1 with pphys=0.001, dx=5, dz=1, dm=3", res.Factory.Name)
}

func TestSimulate_StandardFixtures(t *testing.T) {
	tests := []struct {
		name  string
		p     Params
		pout  float64
		pfail float64
	}{
		{"(17,7,7) at 1e-3", Params{PPhys: 1e-3, DX: 17, DZ: 7, DM: 7}, 4.7925259230731875e-08, 0.015305869028611656},
		{"(7,3,3) at 1e-4", Params{PPhys: 1e-4, DX: 7, DZ: 3, DM: 3}, 4.334631999899528e-08, 0.0032281840399804355},
		{"(11,5,5) at 1e-4", Params{PPhys: 1e-4, DX: 11, DZ: 5, DM: 5}, 1.8786923778984593e-11, 0.0010346582792818636},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Simulate(Standard15to1, tt.p, 0)
			require.NoError(t, err)
			assert.InEpsilon(t, tt.pout, res.Factory.ErrorRate, fixtureTolerance)
			assert.InEpsilon(t, tt.pfail, res.Outcome.PFail, fixtureTolerance)
			assert.Equal(t, 2*((tt.p.DX+4*tt.p.DZ)*3*tt.p.DX+2*tt.p.DM), res.Factory.Qubits)
			assert.InEpsilon(t, 6*float64(tt.p.DM)/(1-tt.pfail), res.Factory.Cycles, 1e-8)
		})
	}
}

func TestSimulate_StandardPublishedOrderOfMagnitude(t *testing.T) {
	res, err := Simulate(Standard15to1, Params{PPhys: 1e-4, DX: 9, DZ: 3, DM: 3}, 0)
	require.NoError(t, err)
	assert.InEpsilon(t, 1.007756468364307e-09, res.Factory.ErrorRate, fixtureTolerance)
}

func TestSimulate_TwoLevel15to1Fixtures(t *testing.T) {
	tests := []struct {
		name       string
		p          Params
		pout       float64
		qubits     int
		cycles     float64
		dims       [2]int
		throughput bool
	}{
		{
			name:   "throughput bound at 1e-3",
			p:      Params{PPhys: 1e-3, DX: 5, DZ: 1, DM: 3, DX2: 11, DZ2: 3, DM2: 5},
			pout:   0.11804216729298199,
			qubits: 1614, cycles: 22135.805639512324, dims: [2]int{43, 22},
			throughput: true,
		},
		{
			name:   "fast level 1 at 1e-3",
			p:      Params{PPhys: 1e-3, DX: 3, DZ: 1, DM: 1, DX2: 11, DZ2: 3, DM2: 5},
			pout:   0.035114426062873114,
			qubits: 1462, cycles: 1185.9732495211274, dims: [2]int{37, 22},
			throughput: true,
		},
		{
			name:   "low error at 1e-4",
			p:      Params{PPhys: 1e-4, DX: 5, DZ: 1, DM: 1, DX2: 7, DZ2: 3, DM2: 3},
			pout:   8.669872114806036e-08,
			qubits: 926, cycles: 107.94261944860574, dims: [2]int{37, 14},
			throughput: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Simulate(TwoLevel15to1, tt.p, 0)
			require.NoError(t, err)
			assert.InEpsilon(t, tt.pout, res.Factory.ErrorRate, fixtureTolerance)
			assert.Equal(t, tt.qubits, res.Factory.Qubits)
			assert.InEpsilon(t, tt.cycles, res.Factory.Cycles, 1e-8)
			assert.Equal(t, tt.dims, res.Factory.Dimensions)

			require.NotNil(t, res.Level1)
			assert.Equal(t, tt.throughput, res.Level1.ThroughputBound)
			want := math.Max(6*float64(tt.p.DM)/res.Level1.Acceptance, 2*float64(tt.p.DM2))
			assert.Equal(t, want, res.Level1.L1Time)
		})
	}
}

func TestSimulate_TwoLevel15to1CycleBound(t *testing.T) {
	// level 1 delivers faster than the 2*dm2 level-2 cycle can consume
	p := Params{PPhys: 1e-4, DX: 5, DZ: 1, DM: 1, DX2: 7, DZ2: 3, DM2: 5}
	res, err := Simulate(TwoLevel15to1, p, 0)
	require.NoError(t, err)

	require.NotNil(t, res.Level1)
	assert.False(t, res.Level1.ThroughputBound)
	assert.Less(t, 6/res.Level1.Acceptance, 10.0)
	assert.Equal(t, 10.0, res.Level1.L1Time)
	assert.InEpsilon(t, 150/res.Outcome.Acceptance, res.Factory.Cycles, 1e-12)
	assert.Equal(t, 1046, res.Factory.Qubits)
	assert.Equal(t, [2]int{39, 14}, res.Factory.Dimensions)
	assert.Positive(t, res.Factory.ErrorRate)
	assert.Less(t, res.Factory.ErrorRate, 1e-3)
}

func TestSimulate_UnresolvableOutputError(t *testing.T) {
	tests := []struct {
		name string
		p    Params
		prec uint
	}{
		{"cancels to zero at 128 bits", Params{PPhys: 1e-6, DX: 13, DZ: 7, DM: 7, DX2: 21, DZ2: 11, DM2: 11}, 128},
		{"rounding residue at 64 bits", Params{PPhys: 1e-6, DX: 9, DZ: 5, DM: 5, DX2: 15, DZ2: 7, DM2: 7}, 64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Simulate(TwoLevel15to1, tt.p, tt.prec)
			assert.ErrorIs(t, err, domain.ErrUnstableResult)
		})
	}
}

func TestSimulate_HigherPrecisionResolvesTinyErrors(t *testing.T) {
	p := Params{PPhys: 1e-6, DX: 9, DZ: 5, DM: 5, DX2: 15, DZ2: 7, DM2: 7}
	res, err := Simulate(TwoLevel15to1, p, 256)
	require.NoError(t, err)
	assert.InEpsilon(t, 2.54e-31, res.Factory.ErrorRate, 0.01)
}

func TestTwoLevel15to1Level_Branches(t *testing.T) {
	p := Params{PPhys: 1e-4, DX: 5, DZ: 1, DM: 3, DX2: 7, DZ2: 3, DM2: 5}

	l1 := TwoLevel15to1Level(p, Outcome{Acceptance: 0.5, POut: 1e-6})
	assert.True(t, l1.ThroughputBound)
	assert.Equal(t, 36.0, l1.L1Time)
	assert.InEpsilon(t, 1e-6+5*0.1*math.Pow(1e-2, 3)*5, l1.PL1, 1e-12)

	p.DM = 1
	l1 = TwoLevel15to1Level(p, Outcome{Acceptance: 1})
	assert.False(t, l1.ThroughputBound)
	assert.Equal(t, 10.0, l1.L1Time)
}

func TestTwoLevel20to4Level_Branches(t *testing.T) {
	p := Params{PPhys: 1e-4, DX: 5, DZ: 1, DM: 3, DX2: 7, DZ2: 3, DM2: 5, NL1: 4}

	l1 := TwoLevel20to4Level(p, Outcome{Acceptance: 0.5, POut: 1e-6})
	assert.True(t, l1.ThroughputBound)
	assert.Equal(t, 18.0, l1.L1Time)
	assert.Equal(t, 1e-6, l1.PL1)

	p.DM, p.NL1 = 1, 6
	l1 = TwoLevel20to4Level(p, Outcome{Acceptance: 1})
	assert.False(t, l1.ThroughputBound)
	assert.Equal(t, 5.0, l1.L1Time)
}

func TestSimulate_ResultInvariants(t *testing.T) {
	cases := []struct {
		proto Protocol
		p     Params
	}{
		{SmallFootprint15to1, Params{PPhys: 1e-4, DX: 7, DZ: 3, DM: 3}},
		{Compact15to1, Params{PPhys: 1e-4, DX: 7, DZ: 3, DM: 3}},
		{Standard15to1, Params{PPhys: 1e-5, DX: 5, DZ: 3, DM: 3}},
		{TwoLevel15to1, Params{PPhys: 1e-4, DX: 5, DZ: 1, DM: 1, DX2: 7, DZ2: 3, DM2: 3}},
	}
	for _, c := range cases {
		t.Run(string(c.proto), func(t *testing.T) {
			res, err := Simulate(c.proto, c.p, 0)
			require.NoError(t, err)
			f := res.Factory
			assert.GreaterOrEqual(t, f.ErrorRate, 0.0)
			assert.LessOrEqual(t, f.ErrorRate, 1.0)
			assert.Positive(t, f.Qubits)
			assert.Positive(t, f.Cycles)
			assert.Positive(t, f.Dimensions[0])
			assert.Positive(t, f.Dimensions[1])
			assert.InDelta(t, 1, res.Outcome.PFail+res.Outcome.Acceptance, 1e-15)
		})
	}
}

func TestSimulate_Deterministic(t *testing.T) {
	p := Params{PPhys: 1e-3, DX: 7, DZ: 3, DM: 3}
	a, err := Simulate(Compact15to1, p, 0)
	require.NoError(t, err)
	b, err := Simulate(Compact15to1, p, 0)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSimulate_MonotoneInPPhys(t *testing.T) {
	for _, proto := range []Protocol{Standard15to1, Compact15to1} {
		t.Run(string(proto), func(t *testing.T) {
			prev := -1.0
			for _, pphys := range []float64{1e-6, 1e-5, 1e-4, 1e-3} {
				res, err := Simulate(proto, Params{PPhys: pphys, DX: 7, DZ: 3, DM: 3}, 0)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, res.Factory.ErrorRate, prev, "pphys=%g", pphys)
				prev = res.Factory.ErrorRate
			}
		})
	}
}

func TestSimulate_LowerPrecisionAgrees(t *testing.T) {
	p := Params{PPhys: 1e-4, DX: 7, DZ: 3, DM: 3}
	hi, err := Simulate(Standard15to1, p, 256)
	require.NoError(t, err)
	lo, err := Simulate(Standard15to1, p, 64)
	require.NoError(t, err)
	assert.Equal(t, uint(64), lo.Precision)
	assert.InEpsilon(t, hi.Factory.ErrorRate, lo.Factory.ErrorRate, 1e-6)
}

func TestSimulate_InvalidInput(t *testing.T) {
	valid := Params{PPhys: 1e-3, DX: 5, DZ: 1, DM: 3, DX2: 9, DZ2: 3, DM2: 3, NL1: 4}
	tests := []struct {
		name  string
		proto Protocol
		mod   func(p *Params)
		prec  uint
	}{
		{"zero pphys", SmallFootprint15to1, func(p *Params) { p.PPhys = 0 }, 0},
		{"pphys of one", Compact15to1, func(p *Params) { p.PPhys = 1 }, 0},
		{"NaN pphys", Standard15to1, func(p *Params) { p.PPhys = math.NaN() }, 0},
		{"even dx", SmallFootprint15to1, func(p *Params) { p.DX = 4 }, 0},
		{"zero dm", Compact15to1, func(p *Params) { p.DM = 0 }, 0},
		{"negative dz", Standard15to1, func(p *Params) { p.DZ = -1 }, 0},
		{"missing level-2 distance", TwoLevel15to1, func(p *Params) { p.DX2 = 0 }, 0},
		{"even dm2", TwoLevel20to4, func(p *Params) { p.DM2 = 2 }, 0},
		{"odd nl1", TwoLevel20to4, func(p *Params) { p.NL1 = 3 }, 0},
		{"distances too small for pphys", Compact15to1, func(p *Params) { p.PPhys = 0.5 }, 0},
		{"unknown protocol", Protocol("31-to-1"), func(p *Params) {}, 0},
		{"precision too low", Compact15to1, func(p *Params) {}, 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mod(&p)
			_, err := Simulate(tt.proto, p, tt.prec)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestParseProtocol(t *testing.T) {
	for _, proto := range Protocols() {
		got, err := ParseProtocol(string(proto))
		require.NoError(t, err)
		assert.Equal(t, proto, got)
	}
	_, err := ParseProtocol("nope")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	assert.Equal(t, 2, TwoLevel20to4.Levels())
	assert.Equal(t, 1, Compact15to1.Levels())
}

func TestFormatPPhys(t *testing.T) {
	assert.Equal(t, "0.001", formatPPhys(1e-3))
	assert.Equal(t, "0.0001", formatPPhys(1e-4))
	assert.Equal(t, "1e-05", formatPPhys(1e-5))
}
