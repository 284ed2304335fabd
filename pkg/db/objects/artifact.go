package objects

import (
	"time"

	"gorm.io/gorm"
)

// Artifact source tags. Relationship type heuristics key off these.
const (
	SourcePaperIndex     = "paper_index"
	SourceCodeHost       = "code_host"
	SourceSocialPlatform = "social_platform"
)

// Artifact is one unit of discovered content (paper, repo, post). Rows are
// written by the ingestion layer and read-only to the engine.
type Artifact struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	// ExternalID is the stable id at the source (arXiv id, repo slug, post id).
	ExternalID string `gorm:"type:varchar(255);not null;uniqueIndex:idx_source_external" json:"external_id"`
	Source     string `gorm:"type:varchar(32);not null;uniqueIndex:idx_source_external;index" json:"source"`

	Title string `gorm:"type:varchar(512);not null" json:"title"`
	Body  string `gorm:"type:text" json:"body"`

	// Authors are raw author references as seen at the source, resolved to
	// entities separately.
	Authors []string `gorm:"serializer:json;type:json" json:"authors"`

	// Engagement is the aggregated raw counter (stars, likes, citations).
	Engagement int64 `gorm:"default:0" json:"engagement"`

	PublishedAt time.Time      `gorm:"index" json:"published_at"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Artifact) TableName() string {
	return "artifacts"
}
