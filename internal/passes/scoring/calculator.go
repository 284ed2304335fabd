package scoring

import (
	"math"
	"time"

	"github.com/iceymoss/discovery-engine/internal/conf"
)

// SubScores are the five 0-100 components of a discovery score.
type SubScores struct {
	Novelty      float64
	Emergence    float64
	Obscurity    float64
	CrossSource  float64
	ExpertSignal float64
}

// EdgeSignal is one confirmed relationship touching the artifact, reduced to
// what cross-source scoring needs.
type EdgeSignal struct {
	OtherSource string
	Confidence  float64
}

// Calculator turns raw signals into sub-scores and the combined discovery
// score. It is pure: same inputs, same outputs, which is what makes
// re-scoring idempotent.
type Calculator struct {
	cfg conf.ScoringConfig
}

// NewCalculator validates the config up front; a bad weight set never gets
// to touch a single artifact.
func NewCalculator(cfg conf.ScoringConfig) (*Calculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{cfg: cfg}, nil
}

// Novelty maps the max cosine similarity against prior artifacts to 0-100.
// A near-duplicate scores near 0; with no prior corpus the artifact is
// maximally novel by definition.
func (c *Calculator) Novelty(maxSimilarity float64, hasPrior bool) float64 {
	if !hasPrior {
		return 100
	}
	if maxSimilarity < 0 {
		maxSimilarity = 0
	}
	if maxSimilarity > 1 {
		maxSimilarity = 1
	}
	return (1 - maxSimilarity) * 100
}

// Obscurity is the log-scaled inverse of raw engagement, so one viral item
// cannot dominate the range. Zero engagement scores 100.
func (c *Calculator) Obscurity(engagement int64) float64 {
	if engagement < 0 {
		engagement = 0
	}
	return 100 / (1 + math.Log1p(float64(engagement)))
}

// CrossSource saturates over the per-source best edge confidences, giving
// diminishing returns past a few independent corroborators.
func (c *Calculator) CrossSource(edges []EdgeSignal) float64 {
	bestPerSource := make(map[string]float64)
	for _, e := range edges {
		if e.Confidence > bestPerSource[e.OtherSource] {
			bestPerSource[e.OtherSource] = e.Confidence
		}
	}
	var total float64
	for _, conf := range bestPerSource {
		total += conf
	}
	return 100 * (1 - math.Exp(-total/1.5))
}

// ExpertSignal saturates over the influence of entities engaging with or
// citing the artifact. Influence values are 0-1 per entity.
func (c *Calculator) ExpertSignal(influences []float64) float64 {
	var total float64
	for _, inf := range influences {
		if inf > 0 {
			total += inf
		}
	}
	return 100 * (1 - math.Exp(-total))
}

// Emergence averages the emergence scores of the artifact's topics. Without
// any assignment the configured neutral default applies.
func (c *Calculator) Emergence(topicEmergence []float64) float64 {
	if len(topicEmergence) == 0 {
		return c.cfg.NeutralEmergence
	}
	var sum float64
	for _, e := range topicEmergence {
		sum += e
	}
	return sum / float64(len(topicEmergence))
}

// Combine applies the weighted sum, the recency half-life decay and the cap.
func (c *Calculator) Combine(sub SubScores, publishedAt, now time.Time) float64 {
	w := c.cfg.Weights
	raw := sub.Novelty*w.Novelty +
		sub.Emergence*w.Emergence +
		sub.Obscurity*w.Obscurity +
		sub.CrossSource*w.CrossSource +
		sub.ExpertSignal*w.ExpertSignal

	ageDays := now.Sub(publishedAt).Hours() / 24
	if ageDays > 0 {
		raw *= math.Pow(0.5, ageDays/c.cfg.HalfLifeDays)
	}

	if raw > c.cfg.Cap {
		raw = c.cfg.Cap
	}
	if raw < 0 {
		raw = 0
	}
	return raw
}
