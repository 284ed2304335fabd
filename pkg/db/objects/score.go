package objects

import "time"

// Score is the one-to-one discovery score for an artifact. The scoring pass
// replaces the whole row on each run, it never patches single sub-scores.
type Score struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	ArtifactID uint64 `gorm:"not null;uniqueIndex" json:"artifact_id"`

	// Sub-scores, each 0-100.
	Novelty      float64 `json:"novelty"`
	Emergence    float64 `json:"emergence"`
	Obscurity    float64 `json:"obscurity"`
	CrossSource  float64 `json:"cross_source"`
	ExpertSignal float64 `json:"expert_signal"`

	// DiscoveryScore is the decayed, clamped combination. Indexed together
	// with artifact_id for keyset pagination on (score desc, id desc).
	DiscoveryScore float64 `gorm:"index:idx_discovery_score" json:"discovery_score"`

	ScoredAt  time.Time `json:"scored_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Score) TableName() string {
	return "scores"
}
