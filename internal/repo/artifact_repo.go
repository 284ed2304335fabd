package repo

import (
	"context"
	"time"

	"github.com/iceymoss/discovery-engine/pkg/db"
	"github.com/iceymoss/discovery-engine/pkg/db/objects"
	"github.com/iceymoss/discovery-engine/pkg/transaction"
)

// ArtifactRepo reads artifact rows. The engine never writes them, ingestion
// owns that table.
type ArtifactRepo struct{}

func NewArtifactRepo() *ArtifactRepo { return &ArtifactRepo{} }

func (r *ArtifactRepo) GetByID(ctx context.Context, id uint64) (*objects.Artifact, error) {
	var artifact objects.Artifact
	err := transaction.GetTransactionOrDB(ctx, db.GetStoreConn()).
		Where("id = ?", id).First(&artifact).Error
	if err != nil {
		return nil, err
	}
	return &artifact, nil
}

func (r *ArtifactRepo) ListByIDs(ctx context.Context, ids []uint64) ([]*objects.Artifact, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var list []*objects.Artifact
	err := transaction.GetTransactionOrDB(ctx, db.GetStoreConn()).
		Where("id IN ?", ids).Find(&list).Error
	return list, err
}

// ListPublishedSince returns artifacts published after the given time,
// oldest first so re-runs process the same order.
func (r *ArtifactRepo) ListPublishedSince(ctx context.Context, since time.Time, limit int) ([]*objects.Artifact, error) {
	var list []*objects.Artifact
	q := transaction.GetTransactionOrDB(ctx, db.GetStoreConn()).
		Where("published_at >= ?", since).
		Order("published_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&list).Error
	return list, err
}

// FindBySourceExternalID resolves an extracted identifier (arXiv id, repo
// slug, DOI) to an artifact row.
func (r *ArtifactRepo) FindBySourceExternalID(ctx context.Context, source, externalID string) (*objects.Artifact, error) {
	var artifact objects.Artifact
	err := transaction.GetTransactionOrDB(ctx, db.GetStoreConn()).
		Where("source = ? AND external_id = ?", source, externalID).
		First(&artifact).Error
	if err != nil {
		return nil, err
	}
	return &artifact, nil
}

// ListUnassigned returns recent artifacts with no topic assignment, the raw
// material for topic emergence.
func (r *ArtifactRepo) ListUnassigned(ctx context.Context, since time.Time, limit int) ([]*objects.Artifact, error) {
	var list []*objects.Artifact
	q := transaction.GetTransactionOrDB(ctx, db.GetStoreConn()).
		Where("published_at >= ?", since).
		Where("id NOT IN (?)",
			transaction.GetTransactionOrDB(ctx, db.GetStoreConn()).
				Model(&objects.ArtifactTopic{}).Select("artifact_id")).
		Order("published_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&list).Error
	return list, err
}

func (r *ArtifactRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := transaction.GetTransactionOrDB(ctx, db.GetStoreConn()).
		Model(&objects.Artifact{}).Count(&n).Error
	return n, err
}
