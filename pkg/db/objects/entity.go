package objects

import (
	"time"

	"gorm.io/gorm"
)

const (
	EntityTypePerson       = "person"
	EntityTypeLab          = "lab"
	EntityTypeOrganization = "organization"
)

// Entity is a person/lab/organization record. Merging never deletes: the
// losing record keeps its row and points at the canonical via CanonicalID.
// Alias chains are always single-hop, flattened at merge time.
type Entity struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	Type        string `gorm:"type:varchar(32);not null;default:person" json:"type"`
	DisplayName string `gorm:"type:varchar(255);not null;index" json:"display_name"`
	Affiliation string `gorm:"type:varchar(512)" json:"affiliation"`

	// Domain is the registrable homepage domain, e.g. "mit.edu".
	Domain string `gorm:"type:varchar(255)" json:"domain"`

	// Accounts are linked social handles, e.g. "github:jsmith".
	Accounts []string `gorm:"serializer:json;type:json" json:"accounts"`

	// CanonicalID is nil for a canonical record. Non-nil marks this row as a
	// weak alias of the referenced entity.
	CanonicalID *uint64 `gorm:"index" json:"canonical_id"`

	// Influence feeds the expert-signal sub-score.
	Influence float64 `gorm:"default:0" json:"influence"`

	// ArtifactCount is the number of artifacts attributed to this entity,
	// used to pick the canonical side of a merge.
	ArtifactCount int64 `gorm:"default:0" json:"artifact_count"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Entity) TableName() string {
	return "entities"
}

// IsAlias reports whether this record was merged into another.
func (e *Entity) IsAlias() bool {
	return e.CanonicalID != nil
}
