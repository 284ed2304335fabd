package objects

import "time"

// Relationship types between artifacts.
const (
	RelationCite      = "cite"
	RelationReference = "reference"
	RelationImplement = "implement"
	RelationDiscuss   = "discuss"
)

// Detection methods.
const (
	DetectPattern  = "pattern"
	DetectSemantic = "semantic"
)

// ArtifactRelationship is one directed, typed, confidence-weighted edge.
// The composite unique index enforces at most one row per
// (source, target, type); re-detection raises confidence to the max.
type ArtifactRelationship struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	SourceArtifactID uint64 `gorm:"not null;uniqueIndex:idx_edge;index" json:"source_artifact_id"`
	TargetArtifactID uint64 `gorm:"not null;uniqueIndex:idx_edge;index" json:"target_artifact_id"`
	Type             string `gorm:"type:varchar(16);not null;uniqueIndex:idx_edge" json:"type"`

	Confidence      float64 `gorm:"not null" json:"confidence"`
	DetectionMethod string  `gorm:"type:varchar(16);not null" json:"detection_method"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ArtifactRelationship) TableName() string {
	return "artifact_relationships"
}
