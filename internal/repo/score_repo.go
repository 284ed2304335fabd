package repo

import (
	"context"
	"time"

	"github.com/iceymoss/discovery-engine/pkg/db"
	"github.com/iceymoss/discovery-engine/pkg/db/objects"
	"github.com/iceymoss/discovery-engine/pkg/transaction"

	"gorm.io/gorm/clause"
)

type ScoreRepo struct{}

func NewScoreRepo() *ScoreRepo { return &ScoreRepo{} }

// Replace writes the whole score row for an artifact, overwriting any prior
// run's result. Never a partial update.
func (r *ScoreRepo) Replace(ctx context.Context, score *objects.Score) error {
	return transaction.GetTransactionOrDB(ctx, db.GetStoreConn()).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "artifact_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"novelty", "emergence", "obscurity", "cross_source",
				"expert_signal", "discovery_score", "scored_at", "updated_at",
			}),
		}).Create(score).Error
}

func (r *ScoreRepo) GetByArtifact(ctx context.Context, artifactID uint64) (*objects.Score, error) {
	var score objects.Score
	err := transaction.GetTransactionOrDB(ctx, db.GetStoreConn()).
		Where("artifact_id = ?", artifactID).First(&score).Error
	if err != nil {
		return nil, err
	}
	return &score, nil
}

// ScoredArtifact is one row of the ranked listing.
type ScoredArtifact struct {
	objects.Score
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"published_at"`
}

// ListTop returns the ranked page after the given cursor position, ordered by
// (discovery_score DESC, artifact_id DESC). The artifact id tie-break makes
// cursor pagination deterministic when scores collide.
func (r *ScoreRepo) ListTop(ctx context.Context, limit int, afterScore float64, afterArtifactID uint64,
	source string, publishedAfter time.Time) ([]*ScoredArtifact, error) {

	q := transaction.GetTransactionOrDB(ctx, db.GetStoreConn()).
		Model(&objects.Score{}).
		Select("scores.*, artifacts.source, artifacts.title, artifacts.published_at").
		Joins("JOIN artifacts ON artifacts.id = scores.artifact_id")

	if afterArtifactID > 0 {
		q = q.Where("(scores.discovery_score < ?) OR (scores.discovery_score = ? AND scores.artifact_id < ?)",
			afterScore, afterScore, afterArtifactID)
	}
	if source != "" {
		q = q.Where("artifacts.source = ?", source)
	}
	if !publishedAfter.IsZero() {
		q = q.Where("artifacts.published_at >= ?", publishedAfter)
	}

	var list []*ScoredArtifact
	err := q.Order("scores.discovery_score DESC, scores.artifact_id DESC").
		Limit(limit).Scan(&list).Error
	return list, err
}
