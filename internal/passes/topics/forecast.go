package topics

import "math"

// Forecast is a short-horizon growth prediction for one topic.
type Forecast struct {
	HorizonDays int     `json:"horizon_days"`
	Expected    float64 `json:"expected"`   // forecast assignment count over the horizon
	DailyRate   float64 `json:"daily_rate"` // fitted slope, assignments/day/day
	Confidence  float64 `json:"confidence"` // 0-1, degrades with sparse history
}

// GrowthRate fits a least-squares line through the daily counts and returns
// its slope. Fewer than two points means no trend.
func GrowthRate(daily []float64) float64 {
	slope, _ := fitLine(daily)
	return slope
}

func fitLine(daily []float64) (slope, intercept float64) {
	n := float64(len(daily))
	if n < 2 {
		if n == 1 {
			return 0, daily[0]
		}
		return 0, 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range daily {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

// PredictGrowth extrapolates the fitted trend over the horizon. Confidence
// scales with the amount of history and the fit quality rather than
// asserting false precision on sparse data.
func PredictGrowth(daily []float64, horizonDays int) Forecast {
	slope, intercept := fitLine(daily)

	var expected float64
	for t := 0; t < horizonDays; t++ {
		day := intercept + slope*float64(len(daily)+t)
		if day > 0 {
			expected += day
		}
	}

	return Forecast{
		HorizonDays: horizonDays,
		Expected:    expected,
		DailyRate:   slope,
		Confidence:  forecastConfidence(daily, slope, intercept),
	}
}

func forecastConfidence(daily []float64, slope, intercept float64) float64 {
	n := len(daily)
	if n < 3 {
		return 0.1
	}

	// History factor: two weeks of observations earn full weight.
	history := float64(n) / 14
	if history > 1 {
		history = 1
	}

	// Fit factor: 1 - normalized residual variance.
	var ssRes, ssTot, mean float64
	for _, y := range daily {
		mean += y
	}
	mean /= float64(n)
	for i, y := range daily {
		fit := intercept + slope*float64(i)
		ssRes += (y - fit) * (y - fit)
		ssTot += (y - mean) * (y - mean)
	}
	fitQuality := 0.5
	if ssTot > 0 {
		r2 := 1 - ssRes/ssTot
		if r2 < 0 {
			r2 = 0
		}
		fitQuality = 0.3 + 0.7*r2
	}

	conf := history * fitQuality
	return math.Min(0.95, math.Max(0.1, conf))
}

// EmergenceScore ranks "what's hot" on a 0-100 scale from the short-window
// growth slope and the mean novelty of the topic's constituents.
func EmergenceScore(growthSlope, avgNovelty float64) float64 {
	growth := 0.0
	if growthSlope > 0 {
		growth = 1 - math.Exp(-growthSlope)
	}
	novelty := avgNovelty / 100
	if novelty < 0 {
		novelty = 0
	}
	if novelty > 1 {
		novelty = 1
	}
	return 100 * (0.6*growth + 0.4*novelty)
}
