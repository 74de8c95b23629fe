package dp_test

import (
	"math"
	"testing"

	"github.com/luminous-dynamics/hdc/dp"
	"github.com/luminous-dynamics/hdc/errdefs"
	"github.com/luminous-dynamics/hdc/hypervector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seed = hypervector.SeedFromString("dp-test")

func TestFlipProbability(t *testing.T) {
	assert.InDelta(t, 1/(1+math.E), dp.Pure(1).FlipProbability(), 1e-12)
	assert.Greater(t, dp.Pure(0.1).FlipProbability(), 0.4)
	assert.Less(t, dp.Pure(10).FlipProbability(), 0.001)
	assert.InDelta(t, 0.731, dp.Pure(1).ExpectedSimilarity(), 0.001)

	a := dp.Approximate(1, 0.2)
	assert.InDelta(t, 0.8/(1+math.E)+0.1, a.FlipProbability(), 1e-12)
	assert.InDelta(t, 1/(1+math.E), dp.Approximate(1, 0).FlipProbability(), 1e-12)
}

func TestSimilarityIsMonotoneInEpsilon(t *testing.T) {
	v := hypervector.Random(seed, "patient")
	prev := 0.0
	for i, eps := range []float64{1e-6, 0.1, 0.5, 1, 2, 5} {
		hv, err := dp.Privatize(v, dp.Pure(eps), dp.SeededSource(uint64(i)))
		require.NoError(t, err)
		sim := hypervector.Similarity(v, hv.AsHypervector())
		assert.InDelta(t, dp.Pure(eps).ExpectedSimilarity(), sim, 0.02, "ε=%g", eps)
		assert.Greater(t, sim, prev-0.02)
		prev = sim
	}

	hv, err := dp.Privatize(v, dp.Pure(1e-6), dp.SeededSource(99))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, hypervector.Similarity(v, hv.AsHypervector()), 0.02)
}

func TestPrivatizeIsDeterministicForASource(t *testing.T) {
	v := hypervector.Random(seed, "patient")
	a, err := dp.Privatize(v, dp.Pure(1), dp.SeededSource(7))
	require.NoError(t, err)
	b, err := dp.Privatize(v, dp.Pure(1), dp.SeededSource(7))
	require.NoError(t, err)
	c, err := dp.Privatize(v, dp.Pure(1), dp.SeededSource(8))
	require.NoError(t, err)

	assert.True(t, hypervector.Equal(a.AsHypervector(), b.AsHypervector()))
	assert.False(t, hypervector.Equal(a.AsHypervector(), c.AsHypervector()))
	assert.Equal(t, 1.0, a.Epsilon())
	assert.True(t, a.IsHighPrivacy())
}

func TestFromHypervectorUsesFreshNoise(t *testing.T) {
	v := hypervector.Random(seed, "patient")
	a, err := dp.FromHypervector(v, dp.Pure(1))
	require.NoError(t, err)
	b, err := dp.FromHypervector(v, dp.Pure(1))
	require.NoError(t, err)
	assert.False(t, hypervector.Equal(a.AsHypervector(), b.AsHypervector()))
}

func TestApproximateMechanism(t *testing.T) {
	v := hypervector.Random(seed, "patient")
	params := dp.Approximate(5, 0.3)
	hv, err := dp.Privatize(v, params, dp.SeededSource(3))
	require.NoError(t, err)
	assert.InDelta(t, params.ExpectedSimilarity(), hypervector.Similarity(v, hv.AsHypervector()), 0.02)
	assert.Less(t, params.ExpectedSimilarity(), dp.Pure(5).ExpectedSimilarity())
}

func TestValidate(t *testing.T) {
	bad := []dp.Params{
		dp.Pure(0),
		dp.Pure(-1),
		dp.Pure(math.NaN()),
		dp.Pure(math.Inf(1)),
		dp.Approximate(1, 1),
		dp.Approximate(1, -0.1),
		{Epsilon: 1, Delta: 0.1, Mechanism: dp.RandomizedResponse},
		{Epsilon: 1, Mechanism: dp.Mechanism(9)},
	}
	v := hypervector.Random(seed, "x")
	for _, p := range bad {
		err := p.Validate()
		require.ErrorIs(t, err, errdefs.ErrPrivacyBudget, "%+v", p)
		require.ErrorIs(t, err, errdefs.ErrConfiguration, "%+v", p)

		_, err = dp.Privatize(v, p, dp.SeededSource(1))
		require.ErrorIs(t, err, errdefs.ErrPrivacyBudget)
	}

	var pbe *errdefs.PrivacyBudgetError
	require.ErrorAs(t, dp.Pure(0).Validate(), &pbe)
	assert.Equal(t, "epsilon", pbe.Param)

	_, err := dp.Privatize(v, dp.Pure(1), nil)
	require.ErrorIs(t, err, errdefs.ErrConfiguration)
}

func TestCorrectedSimilarity(t *testing.T) {
	v := hypervector.Random(seed, "a")
	u := hypervector.Random(seed, "b")

	a1, _ := dp.Privatize(v, dp.Pure(1), dp.SeededSource(1))
	a2, _ := dp.Privatize(v, dp.Pure(1), dp.SeededSource(2))
	b1, _ := dp.Privatize(u, dp.Pure(1), dp.SeededSource(3))

	raw := a1.Similarity(a2)
	assert.InDelta(t, dp.Pure(1).ExpectedRetention(), raw, 0.02)
	assert.Greater(t, dp.CorrectedSimilarity(a1, a2), 0.9)
	assert.InDelta(t, 0.5, dp.CorrectedSimilarity(a1, b1), 0.12)

	noise, _ := dp.Privatize(v, dp.Approximate(1, 0), dp.SeededSource(4))
	c := dp.CorrectedSimilarity(a1, noise)
	assert.GreaterOrEqual(t, c, 0.0)
	assert.LessOrEqual(t, c, 1.0)
}

func TestLevels(t *testing.T) {
	prev := 0.0
	for _, l := range dp.Levels {
		p := l.Params()
		require.NoError(t, p.Validate(), l.String())
		assert.Greater(t, p.Epsilon, prev)
		prev = p.Epsilon
	}
	assert.Equal(t, 0.1, dp.LevelHigh.Params().Epsilon)
	assert.Equal(t, 5.0, dp.LevelLow.Params().Epsilon)
	assert.True(t, dp.LevelModerate.Params().IsHighPrivacy())
	assert.False(t, dp.LevelStandard.Params().IsHighPrivacy())
	require.Error(t, dp.Level(42).Params().Validate())
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "ε=1.00: flip_prob=26.9%, similarity_retention=60.7%", dp.Pure(1).Describe())
	assert.Contains(t, dp.Approximate(1, 0.01).Describe(), "δ=0.01")
}

func TestMechanismText(t *testing.T) {
	for _, m := range []dp.Mechanism{dp.RandomizedResponse, dp.ApproximateRandomizedResponse} {
		text, err := m.MarshalText()
		require.NoError(t, err)
		var got dp.Mechanism
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, m, got)
	}
	var m dp.Mechanism
	require.ErrorIs(t, m.UnmarshalText([]byte("laplace")), errdefs.ErrUnknownSymbol)
}
