package repo

import (
	"context"
	"testing"
	"time"

	"github.com/iceymoss/discovery-engine/pkg/db"
	"github.com/iceymoss/discovery-engine/pkg/db/objects"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// openTestStore points the shared connection at an in-memory sqlite database
// with the engine schema migrated, so the repositories run their real SQL.
func openTestStore(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	require.NoError(t, err)

	pool, err := conn.DB()
	require.NoError(t, err)
	// :memory: lives on a single connection.
	pool.SetMaxOpenConns(1)

	require.NoError(t, conn.AutoMigrate(
		&objects.Artifact{},
		&objects.Score{},
		&objects.ArtifactTopic{},
		&objects.ArtifactRelationship{},
	))
	db.SetStoreConn(conn)
	return conn
}

func TestRepointAssignmentsSurvivesOverlappingArtifact(t *testing.T) {
	conn := openTestStore(t)
	ctx := context.Background()

	// Artifact 7 sits in both topics, which happens when a drifted centroid
	// re-assigns it before the topics merge.
	require.NoError(t, conn.Create(&objects.ArtifactTopic{ArtifactID: 7, TopicID: 1, Confidence: 0.9}).Error)
	require.NoError(t, conn.Create(&objects.ArtifactTopic{ArtifactID: 7, TopicID: 2, Confidence: 0.8}).Error)
	require.NoError(t, conn.Create(&objects.ArtifactTopic{ArtifactID: 8, TopicID: 2, Confidence: 0.7}).Error)

	require.NoError(t, NewTopicRepo().RepointAssignments(ctx, 2, 1))

	var rows []*objects.ArtifactTopic
	require.NoError(t, conn.Order("artifact_id ASC").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, uint64(7), rows[0].ArtifactID)
	assert.Equal(t, uint64(1), rows[0].TopicID)
	assert.Equal(t, uint64(8), rows[1].ArtifactID)
	assert.Equal(t, uint64(1), rows[1].TopicID)
}

func TestRepointAssignmentsWithoutOverlap(t *testing.T) {
	conn := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, conn.Create(&objects.ArtifactTopic{ArtifactID: 1, TopicID: 5, Confidence: 0.9}).Error)
	require.NoError(t, conn.Create(&objects.ArtifactTopic{ArtifactID: 2, TopicID: 5, Confidence: 0.9}).Error)

	require.NoError(t, NewTopicRepo().RepointAssignments(ctx, 5, 6))

	var n int64
	require.NoError(t, conn.Model(&objects.ArtifactTopic{}).Where("topic_id = ?", 6).Count(&n).Error)
	assert.Equal(t, int64(2), n)
}

func TestUpsertMaxConfidenceRaisesNeverLowers(t *testing.T) {
	conn := openTestStore(t)
	ctx := context.Background()
	r := NewRelationRepo()

	require.NoError(t, r.UpsertMaxConfidence(ctx, &objects.ArtifactRelationship{
		SourceArtifactID: 2, TargetArtifactID: 1, Type: objects.RelationImplement,
		Confidence: 0.82, DetectionMethod: objects.DetectSemantic,
	}))
	require.NoError(t, r.UpsertMaxConfidence(ctx, &objects.ArtifactRelationship{
		SourceArtifactID: 2, TargetArtifactID: 1, Type: objects.RelationImplement,
		Confidence: 0.95, DetectionMethod: objects.DetectPattern,
	}))
	require.NoError(t, r.UpsertMaxConfidence(ctx, &objects.ArtifactRelationship{
		SourceArtifactID: 2, TargetArtifactID: 1, Type: objects.RelationImplement,
		Confidence: 0.70, DetectionMethod: objects.DetectSemantic,
	}))

	var rows []*objects.ArtifactRelationship
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1, "one row per (source, target, type)")
	assert.Equal(t, 0.95, rows[0].Confidence)
	assert.Equal(t, objects.DetectPattern, rows[0].DetectionMethod)

	// A different type is a distinct edge.
	require.NoError(t, r.UpsertMaxConfidence(ctx, &objects.ArtifactRelationship{
		SourceArtifactID: 2, TargetArtifactID: 1, Type: objects.RelationDiscuss,
		Confidence: 0.81, DetectionMethod: objects.DetectSemantic,
	}))
	var n int64
	require.NoError(t, conn.Model(&objects.ArtifactRelationship{}).Count(&n).Error)
	assert.Equal(t, int64(2), n)
}

func TestListTopKeysetPagination(t *testing.T) {
	conn := openTestStore(t)
	ctx := context.Background()
	r := NewScoreRepo()

	published := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	scores := map[uint64]float64{1: 80, 2: 80, 3: 90, 4: 70}
	for id, score := range scores {
		require.NoError(t, conn.Create(&objects.Artifact{
			ID: id, ExternalID: string(rune('a' + id)), Source: objects.SourcePaperIndex,
			Title: "artifact", PublishedAt: published,
		}).Error)
		require.NoError(t, conn.Create(&objects.Score{
			ArtifactID: id, DiscoveryScore: score,
		}).Error)
	}

	ids := func(rows []*ScoredArtifact) []uint64 {
		out := make([]uint64, len(rows))
		for i, row := range rows {
			out[i] = row.ArtifactID
		}
		return out
	}

	// First page: score desc, artifact id breaks the 80-point tie.
	page1, err := r.ListTop(ctx, 2, 0, 0, "", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 2}, ids(page1))

	// Second page resumes strictly after (80, 2): no overlap, no skips.
	last := page1[len(page1)-1]
	page2, err := r.ListTop(ctx, 2, last.DiscoveryScore, last.ArtifactID, "", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 4}, ids(page2))
}
