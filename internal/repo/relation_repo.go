package repo

import (
	"context"
	"errors"
	"time"

	"github.com/iceymoss/discovery-engine/pkg/db"
	"github.com/iceymoss/discovery-engine/pkg/db/objects"
	"github.com/iceymoss/discovery-engine/pkg/transaction"

	"gorm.io/gorm"
)

type RelationRepo struct{}

func NewRelationRepo() *RelationRepo { return &RelationRepo{} }

// UpsertMaxConfidence inserts the edge or, when the (source, target, type)
// triple already exists, raises its confidence to the max of old and new.
// The unique index on the triple is the backstop against concurrent inserts;
// callers run this inside a transaction.
func (r *RelationRepo) UpsertMaxConfidence(ctx context.Context, edge *objects.ArtifactRelationship) error {
	conn := transaction.GetTransactionOrDB(ctx, db.GetStoreConn())

	var existing objects.ArtifactRelationship
	err := conn.Where("source_artifact_id = ? AND target_artifact_id = ? AND type = ?",
		edge.SourceArtifactID, edge.TargetArtifactID, edge.Type).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		edge.UpdatedAt = time.Now()
		return conn.Create(edge).Error
	}
	if err != nil {
		return err
	}

	if edge.Confidence <= existing.Confidence {
		return nil
	}
	return conn.Model(&objects.ArtifactRelationship{}).
		Where("id = ?", existing.ID).
		Updates(map[string]any{
			"confidence":       edge.Confidence,
			"detection_method": edge.DetectionMethod,
			"updated_at":       time.Now(),
		}).Error
}

// ListFrom returns outgoing edges from the given artifacts at or above the
// confidence floor, the expansion step of the citation-graph BFS.
func (r *RelationRepo) ListFrom(ctx context.Context, sourceIDs []uint64, minConfidence float64) ([]*objects.ArtifactRelationship, error) {
	if len(sourceIDs) == 0 {
		return nil, nil
	}
	var list []*objects.ArtifactRelationship
	err := transaction.GetTransactionOrDB(ctx, db.GetStoreConn()).
		Where("source_artifact_id IN ? AND confidence >= ?", sourceIDs, minConfidence).
		Order("source_artifact_id ASC, target_artifact_id ASC").
		Find(&list).Error
	return list, err
}

// ListTouching returns all edges where the artifact is either endpoint,
// feeding the cross-source sub-score.
func (r *RelationRepo) ListTouching(ctx context.Context, artifactID uint64) ([]*objects.ArtifactRelationship, error) {
	var list []*objects.ArtifactRelationship
	err := transaction.GetTransactionOrDB(ctx, db.GetStoreConn()).
		Where("source_artifact_id = ? OR target_artifact_id = ?", artifactID, artifactID).
		Find(&list).Error
	return list, err
}
