package objects

import "time"

// Topic lifecycle states. Declining is terminal but the row is never deleted.
const (
	TopicStatusEmerging  = "emerging"
	TopicStatusStable    = "stable"
	TopicStatusDeclining = "declining"
)

// Topic event types recorded on lifecycle transitions.
const (
	TopicEventEmerge  = "emerge"
	TopicEventMerge   = "merge"
	TopicEventSplit   = "split"
	TopicEventDecline = "decline"
)

// Topic is a named cluster of artifacts with a centroid embedding.
type Topic struct {
	ID   uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"type:varchar(255);not null" json:"name"`

	// Centroid is the little-endian float32 encoding of the cluster centroid.
	Centroid []byte `gorm:"type:blob" json:"-"`

	ArtifactCount  int64   `gorm:"default:0" json:"artifact_count"`
	Status         string  `gorm:"type:varchar(16);not null;default:emerging;index" json:"status"`
	EmergenceScore float64 `gorm:"default:0" json:"emergence_score"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Topic) TableName() string {
	return "topics"
}

// ArtifactTopic joins artifacts to topics with an assignment confidence.
// An artifact may have zero rows here (uncovered).
type ArtifactTopic struct {
	ID         uint64  `gorm:"primaryKey;autoIncrement" json:"id"`
	ArtifactID uint64  `gorm:"not null;uniqueIndex:idx_artifact_topic" json:"artifact_id"`
	TopicID    uint64  `gorm:"not null;uniqueIndex:idx_artifact_topic;index" json:"topic_id"`
	Confidence float64 `gorm:"not null" json:"confidence"`

	AssignedAt time.Time `json:"assigned_at"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (ArtifactTopic) TableName() string {
	return "artifact_topics"
}

// TopicEvent is the append-only record of one lifecycle transition, serving
// the topic timeline query.
type TopicEvent struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	TopicID uint64 `gorm:"not null;index" json:"topic_id"`
	Type    string `gorm:"type:varchar(16);not null" json:"type"`

	// RelatedTopicID is the peer topic for merge events and the parent topic
	// for split events.
	RelatedTopicID *uint64 `json:"related_topic_id"`

	// Strength records the similarity/coherence that triggered the event.
	Strength float64 `json:"strength"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (TopicEvent) TableName() string {
	return "topic_events"
}
