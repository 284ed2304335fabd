package conf

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/iceymoss/discovery-engine/pkg/xerr"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Passes []PassConfig `mapstructure:"passes"`
	Engine EngineConfig `mapstructure:"engine"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type PassConfig struct {
	Name   string         `mapstructure:"name"`
	Cron   string         `mapstructure:"cron"`
	Enable bool           `mapstructure:"enable"`
	Params map[string]any `mapstructure:"params"`
}

// EngineConfig carries every hot-configurable tunable of the engine. All of
// it is validated before a pass touches the store, so a bad config can never
// corrupt a subset of the corpus.
type EngineConfig struct {
	Scoring    ScoringConfig    `mapstructure:"scoring"`
	Resolution ResolutionConfig `mapstructure:"resolution"`
	Topics     TopicsConfig     `mapstructure:"topics"`
	Relations  RelationsConfig  `mapstructure:"relations"`
}

// ScoreWeights blends the five sub-scores. Must sum to 1.0 after Normalize.
type ScoreWeights struct {
	Novelty      float64 `mapstructure:"novelty"`
	Emergence    float64 `mapstructure:"emergence"`
	Obscurity    float64 `mapstructure:"obscurity"`
	CrossSource  float64 `mapstructure:"crossSource"`
	ExpertSignal float64 `mapstructure:"expertSignal"`
}

func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		Novelty:      0.35,
		Emergence:    0.30,
		Obscurity:    0.20,
		CrossSource:  0.10,
		ExpertSignal: 0.05,
	}
}

// Normalize renormalizes the weights to sum 1.0. A non-positive sum or any
// negative weight is rejected.
func (w *ScoreWeights) Normalize() error {
	return normalizeWeights("scoring", []*float64{
		&w.Novelty, &w.Emergence, &w.Obscurity, &w.CrossSource, &w.ExpertSignal,
	})
}

type ScoringConfig struct {
	Weights ScoreWeights `mapstructure:"weights"`

	// HalfLifeDays controls the recency decay, default 21.
	HalfLifeDays float64 `mapstructure:"halfLifeDays"`

	// Cap bounds the final discovery score, default 100.
	Cap float64 `mapstructure:"cap"`

	// NoveltyNeighbors is how many most-similar prior artifacts novelty is
	// judged against, default 10.
	NoveltyNeighbors int `mapstructure:"noveltyNeighbors"`

	// NeutralEmergence is the sub-score used while an artifact has no topic
	// assignment yet, default 50.
	NeutralEmergence float64 `mapstructure:"neutralEmergence"`
}

func (c *ScoringConfig) Validate() error {
	if err := c.Weights.Normalize(); err != nil {
		return err
	}
	if c.HalfLifeDays <= 0 {
		c.HalfLifeDays = 21
	}
	if c.Cap <= 0 {
		c.Cap = 100
	}
	if c.NoveltyNeighbors <= 0 {
		c.NoveltyNeighbors = 10
	}
	if c.NeutralEmergence == 0 {
		c.NeutralEmergence = 50
	}
	if c.NeutralEmergence < 0 || c.NeutralEmergence > 100 {
		return xerr.New(xerr.ErrConfigInvalid, fmt.Sprintf("neutralEmergence %.2f out of [0,100]", c.NeutralEmergence))
	}
	return nil
}

// ResolutionWeights blends the four identity similarity fields.
type ResolutionWeights struct {
	Name        float64 `mapstructure:"name"`
	Affiliation float64 `mapstructure:"affiliation"`
	Domain      float64 `mapstructure:"domain"`
	Accounts    float64 `mapstructure:"accounts"`
}

func DefaultResolutionWeights() ResolutionWeights {
	return ResolutionWeights{
		Name:        0.50,
		Affiliation: 0.30,
		Domain:      0.15,
		Accounts:    0.05,
	}
}

func (w *ResolutionWeights) Normalize() error {
	return normalizeWeights("resolution", []*float64{
		&w.Name, &w.Affiliation, &w.Domain, &w.Accounts,
	})
}

type ResolutionConfig struct {
	Weights ResolutionWeights `mapstructure:"weights"`

	// MergeThreshold is the weighted-similarity bar for an auto-merge,
	// default 0.80.
	MergeThreshold float64 `mapstructure:"mergeThreshold"`

	// RequireConfirmation downgrades borderline matches to candidates
	// instead of auto-merging.
	RequireConfirmation bool `mapstructure:"requireConfirmation"`
}

func (c *ResolutionConfig) Validate() error {
	if err := c.Weights.Normalize(); err != nil {
		return err
	}
	if c.MergeThreshold == 0 {
		c.MergeThreshold = 0.80
	}
	return checkUnit("resolution.mergeThreshold", c.MergeThreshold)
}

type TopicsConfig struct {
	// MinTopicSize is the cluster size below which no topic forms, default 3.
	MinTopicSize int `mapstructure:"minTopicSize"`

	// AssignThreshold is the centroid similarity for assigning an artifact
	// to an existing topic, default 0.60.
	AssignThreshold float64 `mapstructure:"assignThreshold"`

	// MergeThreshold is the centroid similarity above which two topics
	// combine, default 0.85.
	MergeThreshold float64 `mapstructure:"mergeThreshold"`

	// SplitThreshold is the internal coherence below which a topic is
	// re-clustered, default 0.70.
	SplitThreshold float64 `mapstructure:"splitThreshold"`

	// WindowDays is the trailing window for growth/decline analysis,
	// default 30.
	WindowDays int `mapstructure:"windowDays"`

	// ForecastHorizonDays is the forward horizon for growth prediction,
	// default 14.
	ForecastHorizonDays int `mapstructure:"forecastHorizonDays"`
}

func (c *TopicsConfig) Validate() error {
	if c.MinTopicSize <= 0 {
		c.MinTopicSize = 3
	}
	if c.AssignThreshold == 0 {
		c.AssignThreshold = 0.60
	}
	if c.MergeThreshold == 0 {
		c.MergeThreshold = 0.85
	}
	if c.SplitThreshold == 0 {
		c.SplitThreshold = 0.70
	}
	if c.WindowDays <= 0 {
		c.WindowDays = 30
	}
	if c.ForecastHorizonDays <= 0 {
		c.ForecastHorizonDays = 14
	}
	for name, v := range map[string]float64{
		"topics.assignThreshold": c.AssignThreshold,
		"topics.mergeThreshold":  c.MergeThreshold,
		"topics.splitThreshold":  c.SplitThreshold,
	} {
		if err := checkUnit(name, v); err != nil {
			return err
		}
	}
	return nil
}

type RelationsConfig struct {
	// SemanticThreshold is the cross-source similarity above which a
	// semantic edge is created, default 0.80.
	SemanticThreshold float64 `mapstructure:"semanticThreshold"`

	// MaxGraphDepth bounds citation-graph traversal, default 2, capped at 3.
	MaxGraphDepth int `mapstructure:"maxGraphDepth"`
}

func (c *RelationsConfig) Validate() error {
	if c.SemanticThreshold == 0 {
		c.SemanticThreshold = 0.80
	}
	if c.MaxGraphDepth <= 0 {
		c.MaxGraphDepth = 2
	}
	if c.MaxGraphDepth > 3 {
		c.MaxGraphDepth = 3
	}
	return checkUnit("relations.semanticThreshold", c.SemanticThreshold)
}

// Validate applies defaults and rejects invalid tunables. Called once at
// startup and again at the start of every pass run.
func (c *EngineConfig) Validate() error {
	if c.Scoring.Weights == (ScoreWeights{}) {
		c.Scoring.Weights = DefaultScoreWeights()
	}
	if c.Resolution.Weights == (ResolutionWeights{}) {
		c.Resolution.Weights = DefaultResolutionWeights()
	}
	if err := c.Scoring.Validate(); err != nil {
		return err
	}
	if err := c.Resolution.Validate(); err != nil {
		return err
	}
	if err := c.Topics.Validate(); err != nil {
		return err
	}
	return c.Relations.Validate()
}

const weightEpsilon = 1e-6

func normalizeWeights(kind string, weights []*float64) error {
	var sum float64
	for _, w := range weights {
		if *w < 0 {
			return xerr.New(xerr.ErrConfigInvalid, fmt.Sprintf("%s weights: negative weight %.4f", kind, *w))
		}
		sum += *w
	}
	if sum <= 0 {
		return xerr.New(xerr.ErrConfigInvalid, fmt.Sprintf("%s weights: sum %.4f is not positive", kind, sum))
	}
	if math.Abs(sum-1.0) > weightEpsilon {
		for _, w := range weights {
			*w /= sum
		}
	}
	return nil
}

func checkUnit(name string, v float64) error {
	if v < 0 || v > 1 {
		return xerr.New(xerr.ErrConfigInvalid, fmt.Sprintf("%s %.4f out of [0,1]", name, v))
	}
	return nil
}

// LoadConfig reads the YAML config, expanding ${VAR} from the environment.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.Contains(val, "${") {
			v.Set(key, os.ExpandEnv(val))
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	if err := c.Engine.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
