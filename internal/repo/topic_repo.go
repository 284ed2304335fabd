package repo

import (
	"context"
	"time"

	"github.com/iceymoss/discovery-engine/pkg/db"
	"github.com/iceymoss/discovery-engine/pkg/db/objects"
	"github.com/iceymoss/discovery-engine/pkg/transaction"

	"gorm.io/gorm/clause"
)

type TopicRepo struct{}

func NewTopicRepo() *TopicRepo { return &TopicRepo{} }

func (r *TopicRepo) GetByID(ctx context.Context, id uint64) (*objects.Topic, error) {
	var topic objects.Topic
	err := transaction.GetTransactionOrDB(ctx, db.GetStoreConn()).
		Where("id = ?", id).First(&topic).Error
	if err != nil {
		return nil, err
	}
	return &topic, nil
}

// ListActive returns topics that have not declined.
func (r *TopicRepo) ListActive(ctx context.Context) ([]*objects.Topic, error) {
	var list []*objects.Topic
	err := transaction.GetTransactionOrDB(ctx, db.GetStoreConn()).
		Where("status <> ?", objects.TopicStatusDeclining).
		Order("id ASC").Find(&list).Error
	return list, err
}

func (r *TopicRepo) Create(ctx context.Context, topic *objects.Topic) error {
	return transaction.GetTransactionOrDB(ctx, db.GetStoreConn()).Create(topic).Error
}

func (r *TopicRepo) Save(ctx context.Context, topic *objects.Topic) error {
	return transaction.GetTransactionOrDB(ctx, db.GetStoreConn()).Save(topic).Error
}

// ReplaceAssignment upserts one artifact-topic assignment.
func (r *TopicRepo) ReplaceAssignment(ctx context.Context, assignment *objects.ArtifactTopic) error {
	return transaction.GetTransactionOrDB(ctx, db.GetStoreConn()).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "artifact_id"}, {Name: "topic_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"confidence", "assigned_at", "updated_at"}),
		}).Create(assignment).Error
}

// RepointAssignments moves every assignment of one topic onto another, used
// when topics merge. An artifact can hold rows in both topics once centroids
// drift between runs; those loser rows are dropped first so the bulk update
// never collides with the (artifact_id, topic_id) unique index. Two queries
// instead of a self-referential subquery, which mysql rejects.
func (r *TopicRepo) RepointAssignments(ctx context.Context, fromTopicID, toTopicID uint64) error {
	conn := transaction.GetTransactionOrDB(ctx, db.GetStoreConn())

	var taken []uint64
	err := conn.Model(&objects.ArtifactTopic{}).
		Where("topic_id = ?", toTopicID).
		Pluck("artifact_id", &taken).Error
	if err != nil {
		return err
	}
	if len(taken) > 0 {
		err = conn.Where("topic_id = ? AND artifact_id IN ?", fromTopicID, taken).
			Delete(&objects.ArtifactTopic{}).Error
		if err != nil {
			return err
		}
	}

	return conn.Model(&objects.ArtifactTopic{}).Where("topic_id = ?", fromTopicID).
		Update("topic_id", toTopicID).Error
}

// DeleteAssignment removes one artifact from one topic, used when a split
// moves the artifact to a child topic.
func (r *TopicRepo) DeleteAssignment(ctx context.Context, artifactID, topicID uint64) error {
	return transaction.GetTransactionOrDB(ctx, db.GetStoreConn()).
		Where("artifact_id = ? AND topic_id = ?", artifactID, topicID).
		Delete(&objects.ArtifactTopic{}).Error
}

func (r *TopicRepo) ListAssignmentsByTopic(ctx context.Context, topicID uint64) ([]*objects.ArtifactTopic, error) {
	var list []*objects.ArtifactTopic
	err := transaction.GetTransactionOrDB(ctx, db.GetStoreConn()).
		Where("topic_id = ?", topicID).Order("artifact_id ASC").Find(&list).Error
	return list, err
}

func (r *TopicRepo) ListAssignmentsByArtifacts(ctx context.Context, artifactIDs []uint64) ([]*objects.ArtifactTopic, error) {
	if len(artifactIDs) == 0 {
		return nil, nil
	}
	var list []*objects.ArtifactTopic
	err := transaction.GetTransactionOrDB(ctx, db.GetStoreConn()).
		Where("artifact_id IN ?", artifactIDs).Find(&list).Error
	return list, err
}

// DayCount is one day's assignment volume for a topic.
type DayCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

// DailyAssignmentCounts aggregates assignment volume per day over the
// trailing window, feeding growth/decline analysis.
func (r *TopicRepo) DailyAssignmentCounts(ctx context.Context, topicID uint64, since time.Time) ([]DayCount, error) {
	var counts []DayCount
	err := transaction.GetTransactionOrDB(ctx, db.GetStoreConn()).
		Model(&objects.ArtifactTopic{}).
		Select("DATE(assigned_at) AS day, COUNT(*) AS count").
		Where("topic_id = ? AND assigned_at >= ?", topicID, since).
		Group("DATE(assigned_at)").
		Order("day ASC").
		Scan(&counts).Error
	return counts, err
}

// CountAssignmentsSince returns how many artifacts joined the topic within
// the window.
func (r *TopicRepo) CountAssignmentsSince(ctx context.Context, topicID uint64, since time.Time) (int64, error) {
	var n int64
	err := transaction.GetTransactionOrDB(ctx, db.GetStoreConn()).
		Model(&objects.ArtifactTopic{}).
		Where("topic_id = ? AND assigned_at >= ?", topicID, since).Count(&n).Error
	return n, err
}

// Coverage returns (artifacts with at least one assignment, total artifacts).
func (r *TopicRepo) Coverage(ctx context.Context) (assigned int64, total int64, err error) {
	conn := transaction.GetTransactionOrDB(ctx, db.GetStoreConn())
	if err = conn.Model(&objects.Artifact{}).Count(&total).Error; err != nil {
		return
	}
	err = conn.Model(&objects.ArtifactTopic{}).
		Distinct("artifact_id").Count(&assigned).Error
	return
}

func (r *TopicRepo) CreateEvent(ctx context.Context, event *objects.TopicEvent) error {
	return transaction.GetTransactionOrDB(ctx, db.GetStoreConn()).Create(event).Error
}

func (r *TopicRepo) ListEventsByTopic(ctx context.Context, topicID uint64) ([]*objects.TopicEvent, error) {
	var list []*objects.TopicEvent
	err := transaction.GetTransactionOrDB(ctx, db.GetStoreConn()).
		Where("topic_id = ? OR related_topic_id = ?", topicID, topicID).
		Order("created_at ASC, id ASC").Find(&list).Error
	return list, err
}
