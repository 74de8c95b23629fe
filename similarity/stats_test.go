package similarity_test

import (
	"testing"

	"github.com/luminous-dynamics/hdc/hypervector"
	"github.com/luminous-dynamics/hdc/similarity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsOf(t *testing.T) {
	s := similarity.StatsOf([]float64{0.1, 0.2, 0.3, 0.4, 0.5})
	assert.InDelta(t, 0.1, s.Min, 1e-12)
	assert.InDelta(t, 0.5, s.Max, 1e-12)
	assert.InDelta(t, 0.3, s.Mean, 1e-12)
	assert.InDelta(t, 0.1414213, s.StdDev, 1e-6)
	assert.Equal(t, 5, s.Count)

	assert.Equal(t, similarity.Stats{}, similarity.StatsOf(nil))
}

func TestLevelOf(t *testing.T) {
	tests := []struct {
		sim  float64
		want similarity.Level
	}{
		{0.90, similarity.VeryHigh},
		{0.85, similarity.VeryHigh},
		{0.75, similarity.High},
		{0.60, similarity.Moderate},
		{0.53, similarity.Low},
		{0.50, similarity.VeryLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, similarity.LevelOf(tt.sim), "%g", tt.sim)
	}
	assert.Equal(t, 0.97, similarity.VeryHigh.Probability())
	assert.Equal(t, 0.35, similarity.VeryLow.Probability())
	assert.Equal(t, "High confidence - likely match", similarity.High.Description())
}

func TestConfidenceOf(t *testing.T) {
	c := similarity.ConfidenceOf(0.75)
	assert.Equal(t, similarity.High, c.Level)
	assert.InDelta(t, 50, c.ZScore, 1e-9)
	assert.Equal(t, 2500, c.BitsAboveRandom)
	assert.Less(t, c.PValue, 0.001)
	assert.True(t, c.IsClinicalGrade())
	assert.True(t, c.IsSignificant(0.05))

	r := similarity.ConfidenceOf(0.5)
	assert.Equal(t, similarity.VeryLow, r.Level)
	assert.Less(t, r.ZScore, 1.0)
	assert.InDelta(t, 0.5, r.PValue, 1e-12)
	assert.False(t, r.IsSignificant(0.05))
	assert.False(t, r.IsClinicalGrade())

	v := hypervector.Random(hypervector.SeedFromString("confidence"), "x")
	self := similarity.Compare(v, v)
	assert.Equal(t, similarity.VeryHigh, self.Level)
	assert.Equal(t, 1.0, self.Similarity)
}

func TestSummarize(t *testing.T) {
	s := similarity.Summarize([]float64{0.50, 0.55, 0.60, 0.70, 0.80, 0.90})
	assert.InDelta(t, 0.675, s.Stats.Mean, 1e-12)
	assert.Equal(t, 3, s.HighConfidenceCount)
	assert.Equal(t, 3, s.ClinicalGradeCount)
	require.Len(t, s.Comparisons, 6)

	top := s.TopMatches(2)
	require.Len(t, top, 2)
	assert.Equal(t, 0.90, top[0].Similarity)
	assert.Equal(t, 0.80, top[1].Similarity)
	assert.Len(t, s.TopMatches(10), 6)
}
