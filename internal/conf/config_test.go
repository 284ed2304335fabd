package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreWeightsRenormalize(t *testing.T) {
	w := ScoreWeights{Novelty: 2, Emergence: 2, Obscurity: 2, CrossSource: 2, ExpertSignal: 2}
	require.NoError(t, w.Normalize())
	assert.InDelta(t, 0.2, w.Novelty, 1e-9, "weights renormalized to sum 1")
	assert.InDelta(t, 1.0, w.Novelty+w.Emergence+w.Obscurity+w.CrossSource+w.ExpertSignal, 1e-9)
}

func TestScoreWeightsRejectNegative(t *testing.T) {
	w := ScoreWeights{Novelty: -0.1, Emergence: 1.1}
	assert.Error(t, w.Normalize())
}

func TestScoreWeightsRejectZeroSum(t *testing.T) {
	var w ScoreWeights
	assert.Error(t, w.Normalize())
}

func TestEngineConfigDefaults(t *testing.T) {
	var c EngineConfig
	require.NoError(t, c.Validate())

	assert.Equal(t, DefaultScoreWeights(), c.Scoring.Weights)
	assert.Equal(t, 21.0, c.Scoring.HalfLifeDays)
	assert.Equal(t, 100.0, c.Scoring.Cap)
	assert.Equal(t, 50.0, c.Scoring.NeutralEmergence)
	assert.Equal(t, 0.80, c.Resolution.MergeThreshold)
	assert.Equal(t, 3, c.Topics.MinTopicSize)
	assert.Equal(t, 0.60, c.Topics.AssignThreshold)
	assert.Equal(t, 0.85, c.Topics.MergeThreshold)
	assert.Equal(t, 0.70, c.Topics.SplitThreshold)
	assert.Equal(t, 14, c.Topics.ForecastHorizonDays)
	assert.Equal(t, 0.80, c.Relations.SemanticThreshold)
	assert.Equal(t, 2, c.Relations.MaxGraphDepth)
}

func TestGraphDepthCapped(t *testing.T) {
	c := RelationsConfig{MaxGraphDepth: 7}
	require.NoError(t, c.Validate())
	assert.Equal(t, 3, c.MaxGraphDepth)
}

func TestThresholdsOutOfRangeRejected(t *testing.T) {
	r := ResolutionConfig{MergeThreshold: 1.5}
	assert.Error(t, r.Validate())

	tc := TopicsConfig{AssignThreshold: -0.2}
	assert.Error(t, tc.Validate())

	rc := RelationsConfig{SemanticThreshold: 2}
	assert.Error(t, rc.Validate())
}

func TestNeutralEmergenceRange(t *testing.T) {
	c := ScoringConfig{Weights: DefaultScoreWeights(), NeutralEmergence: 120}
	assert.Error(t, c.Validate())
}
