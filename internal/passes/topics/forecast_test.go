package topics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrowthRate(t *testing.T) {
	assert.InDelta(t, 1.0, GrowthRate([]float64{1, 2, 3, 4}), 1e-9, "linear growth")
	assert.InDelta(t, -1.0, GrowthRate([]float64{4, 3, 2, 1}), 1e-9, "linear decline")
	assert.Equal(t, 0.0, GrowthRate([]float64{5}), "one point has no trend")
	assert.Equal(t, 0.0, GrowthRate(nil))
}

func TestPredictGrowthExtrapolates(t *testing.T) {
	daily := []float64{1, 2, 3, 4, 5, 6, 7}
	forecast := PredictGrowth(daily, 7)

	assert.Equal(t, 7, forecast.HorizonDays)
	assert.Greater(t, forecast.Expected, 7.0*7, "trend continues past the last observation")
	assert.InDelta(t, 1.0, forecast.DailyRate, 1e-9)
	assert.Greater(t, forecast.Confidence, 0.3, "clean linear history earns confidence")
}

func TestPredictGrowthNeverNegative(t *testing.T) {
	daily := []float64{9, 6, 3, 0, 0, 0}
	forecast := PredictGrowth(daily, 14)
	assert.GreaterOrEqual(t, forecast.Expected, 0.0, "negative fitted days contribute nothing")
}

func TestForecastConfidenceDegradesWithSparseHistory(t *testing.T) {
	sparse := PredictGrowth([]float64{3, 5}, 7)
	assert.Equal(t, 0.1, sparse.Confidence, "under three observations is floor confidence")

	short := PredictGrowth([]float64{1, 2, 3, 4}, 7)
	long := PredictGrowth([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14}, 7)
	assert.Greater(t, long.Confidence, short.Confidence, "more history, more confidence")
	assert.LessOrEqual(t, long.Confidence, 0.95)
}

func TestEmergenceScore(t *testing.T) {
	flat := EmergenceScore(0, 50)
	growing := EmergenceScore(2.0, 50)
	require.Greater(t, growing, flat, "growth raises emergence")

	assert.InDelta(t, 20.0, flat, 1e-9, "no growth leaves only the novelty term")
	assert.LessOrEqual(t, EmergenceScore(100, 100), 100.0)
	assert.GreaterOrEqual(t, EmergenceScore(-5, 0), 0.0, "decline clamps to zero growth")
}
