package repo

import (
	"context"

	"github.com/iceymoss/discovery-engine/pkg/db"
	"github.com/iceymoss/discovery-engine/pkg/db/objects"
	"github.com/iceymoss/discovery-engine/pkg/transaction"

	"gorm.io/gorm"
)

type EntityRepo struct{}

func NewEntityRepo() *EntityRepo { return &EntityRepo{} }

func (r *EntityRepo) GetByID(ctx context.Context, id uint64) (*objects.Entity, error) {
	var entity objects.Entity
	err := transaction.GetTransactionOrDB(ctx, db.GetStoreConn()).
		Where("id = ?", id).First(&entity).Error
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

// ListCanonical returns entities that have not been merged away.
func (r *EntityRepo) ListCanonical(ctx context.Context, limit int) ([]*objects.Entity, error) {
	var list []*objects.Entity
	q := transaction.GetTransactionOrDB(ctx, db.GetStoreConn()).
		Where("canonical_id IS NULL").
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&list).Error
	return list, err
}

func (r *EntityRepo) Create(ctx context.Context, entity *objects.Entity) error {
	return transaction.GetTransactionOrDB(ctx, db.GetStoreConn()).Create(entity).Error
}

func (r *EntityRepo) Save(ctx context.Context, entity *objects.Entity) error {
	return transaction.GetTransactionOrDB(ctx, db.GetStoreConn()).Save(entity).Error
}

// SetAlias points an entity at its canonical. Part of a merge transaction.
func (r *EntityRepo) SetAlias(ctx context.Context, aliasID, canonicalID uint64) error {
	return transaction.GetTransactionOrDB(ctx, db.GetStoreConn()).
		Model(&objects.Entity{}).Where("id = ?", aliasID).
		Update("canonical_id", canonicalID).Error
}

// RepointAliases flattens merge chains at write time: every alias of the
// losing entity is pointed directly at the new canonical, so resolution is
// always a single hop.
func (r *EntityRepo) RepointAliases(ctx context.Context, fromID, toID uint64) error {
	return transaction.GetTransactionOrDB(ctx, db.GetStoreConn()).
		Model(&objects.Entity{}).Where("canonical_id = ?", fromID).
		Update("canonical_id", toID).Error
}

// AddArtifactCount moves attribution volume onto the canonical at merge time.
func (r *EntityRepo) AddArtifactCount(ctx context.Context, id uint64, delta int64) error {
	return transaction.GetTransactionOrDB(ctx, db.GetStoreConn()).
		Model(&objects.Entity{}).Where("id = ?", id).
		Update("artifact_count", gorm.Expr("artifact_count + ?", delta)).Error
}

// InfluencesForAuthors resolves author display names to entities, follows
// alias pointers to the canonical, and returns the canonical influence
// values. Unknown authors are simply absent from the result.
func (r *EntityRepo) InfluencesForAuthors(ctx context.Context, authors []string) ([]float64, error) {
	if len(authors) == 0 {
		return nil, nil
	}
	var entities []*objects.Entity
	err := transaction.GetTransactionOrDB(ctx, db.GetStoreConn()).
		Where("display_name IN ?", authors).Find(&entities).Error
	if err != nil {
		return nil, err
	}

	influences := make([]float64, 0, len(entities))
	seen := make(map[uint64]bool)
	for _, entity := range entities {
		canonical := entity
		if entity.IsAlias() {
			canonical, err = r.GetByID(ctx, *entity.CanonicalID)
			if err != nil {
				continue
			}
		}
		if seen[canonical.ID] {
			continue
		}
		seen[canonical.ID] = true
		influences = append(influences, canonical.Influence)
	}
	return influences, nil
}

// AliasCount counts entities currently pointing at the given canonical.
func (r *EntityRepo) AliasCount(ctx context.Context, canonicalID uint64) (int64, error) {
	var n int64
	err := transaction.GetTransactionOrDB(ctx, db.GetStoreConn()).
		Model(&objects.Entity{}).Where("canonical_id = ?", canonicalID).Count(&n).Error
	return n, err
}
