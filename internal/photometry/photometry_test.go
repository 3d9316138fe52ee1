package photometry

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvert_ZeroColor(t *testing.T) {
	// With bp_rp = 0 only the constant terms remain.
	bv, v := Convert(10, 0)

	bt := 10 + 0.004288
	vt := 10 + 0.01077
	assert.InDelta(t, 0.850*(bt-vt), bv, 1e-12)
	assert.InDelta(t, vt-0.090*(bt-vt), v, 1e-12)
}

func TestConvert_KnownValue(t *testing.T) {
	bv, v := Convert(9.81, 0.65)

	x := 0.65
	bt := 9.81 - (-0.8547*x + 0.1244*x*x - 0.9085*x*x*x + 0.4843*x*x*x*x - 0.06814*x*x*x*x*x - 0.004288)
	vt := 9.81 - (-0.0682*x - 0.2387*x*x + 0.02342*x*x*x - 0.01077)
	assert.InDelta(t, 0.850*(bt-vt), bv, 1e-9)
	assert.InDelta(t, vt-0.090*(bt-vt), v, 1e-9)

	// Solar-type color lands near B-V 0.6.
	assert.InDelta(t, 0.6, bv, 0.1)
}

func TestTychoToJohnson(t *testing.T) {
	bt, vt := 10.5, 10.0

	bv, v := TychoToJohnson(&bt, &vt)
	require.NotNil(t, bv)
	require.NotNil(t, v)
	assert.InDelta(t, 0.425, *bv, 1e-12)
	assert.InDelta(t, 9.955, *v, 1e-12)

	bv, v = TychoToJohnson(nil, &vt)
	assert.Nil(t, bv)
	assert.Equal(t, vt, *v)

	bv, v = TychoToJohnson(&bt, nil)
	assert.Nil(t, bv)
	assert.Equal(t, bt, *v)

	bv, v = TychoToJohnson(nil, nil)
	assert.Nil(t, bv)
	assert.Nil(t, v)
}

// TestProperty_ConvertDeterministic checks that Convert is a pure function
// and agrees with the two-step Tycho route.
func TestProperty_ConvertDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("same inputs give identical outputs", prop.ForAll(
		func(g, bpRP float64) bool {
			bv1, v1 := Convert(g, bpRP)
			bv2, v2 := Convert(g, bpRP)
			return math.Float64bits(bv1) == math.Float64bits(bv2) &&
				math.Float64bits(v1) == math.Float64bits(v2)
		},
		gen.Float64Range(3, 21),
		gen.Float64Range(-0.5, 5),
	))

	properties.Property("matches the Tycho route", prop.ForAll(
		func(g, bpRP float64) bool {
			bt, vt := BT(g, bpRP), VT(g, bpRP)
			bvT, vT := TychoToJohnson(&bt, &vt)
			bv, v := Convert(g, bpRP)
			return math.Abs(*bvT-bv) < 1e-12 && math.Abs(*vT-v) < 1e-12
		},
		gen.Float64Range(3, 21),
		gen.Float64Range(-0.5, 5),
	))

	properties.TestingRun(t)
}
