package relations

import (
	"context"
	"database/sql"
	"hash/fnv"
	"strings"
	"testing"
	"time"

	"github.com/iceymoss/discovery-engine/internal/conf"
	"github.com/iceymoss/discovery-engine/pkg/db/objects"
	"github.com/iceymoss/discovery-engine/pkg/embedding"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type bagEmbedder struct{}

func (bagEmbedder) EmbedBatch(_ context.Context, _ embedding.Namespace, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, 128)
		for _, token := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			h.Write([]byte(token))
			vec[h.Sum32()%128]++
		}
		out[i] = vec
	}
	return out, nil
}

type fakeArtifacts struct {
	artifacts []*objects.Artifact
}

func (f *fakeArtifacts) ListPublishedSince(_ context.Context, since time.Time, limit int) ([]*objects.Artifact, error) {
	var out []*objects.Artifact
	for _, a := range f.artifacts {
		if !a.PublishedAt.Before(since) {
			out = append(out, a)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeArtifacts) FindBySourceExternalID(_ context.Context, source, externalID string) (*objects.Artifact, error) {
	for _, a := range f.artifacts {
		if a.Source == source && a.ExternalID == externalID {
			return a, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type edgeKey struct {
	src, dst uint64
	typ      string
}

// captureRelations mirrors the store's raise-to-max upsert in memory.
type captureRelations struct {
	edges map[edgeKey]*objects.ArtifactRelationship
}

func newCaptureRelations() *captureRelations {
	return &captureRelations{edges: make(map[edgeKey]*objects.ArtifactRelationship)}
}

func (c *captureRelations) UpsertMaxConfidence(_ context.Context, edge *objects.ArtifactRelationship) error {
	key := edgeKey{src: edge.SourceArtifactID, dst: edge.TargetArtifactID, typ: edge.Type}
	existing, ok := c.edges[key]
	if !ok || edge.Confidence > existing.Confidence {
		c.edges[key] = edge
	}
	return nil
}

type passthroughTx struct{}

func (passthroughTx) Execute(ctx context.Context, _ *sql.TxOptions, op func(ctx context.Context) error) error {
	return op(ctx)
}

func newTestPass(artifacts []*objects.Artifact, now time.Time) (*Pass, *captureRelations) {
	edges := newCaptureRelations()
	pass := &Pass{
		cfg:       conf.RelationsConfig{SemanticThreshold: 0.80, MaxGraphDepth: 2},
		embed:     bagEmbedder{},
		artifacts: &fakeArtifacts{artifacts: artifacts},
		relations: edges,
		tx:        passthroughTx{},
		now:       func() time.Time { return now },
	}
	return pass, edges
}

func TestRunDetectsPatternEdges(t *testing.T) {
	now := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	artifacts := []*objects.Artifact{
		{ID: 1, Source: objects.SourcePaperIndex, ExternalID: "2301.04567",
			Title: "Sparse Mixture Routing", Body: "we propose sparse routing layers",
			PublishedAt: now.AddDate(0, 0, -20)},
		{ID: 2, Source: objects.SourceCodeHost, ExternalID: "acme/sparse-routing",
			Title: "sparse-routing", Body: "reference implementation of arXiv:2301.04567",
			PublishedAt: now.AddDate(0, 0, -10)},
	}
	pass, edges := newTestPass(artifacts, now)

	summary, err := pass.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Details["pattern_edges"])

	edge, ok := edges.edges[edgeKey{src: 2, dst: 1, typ: objects.RelationImplement}]
	require.True(t, ok, "code referencing a paper yields an implement edge")
	assert.Equal(t, 0.95, edge.Confidence)
	assert.Equal(t, objects.DetectPattern, edge.DetectionMethod)
}

func TestRunSkipsUnresolvableIdentifiers(t *testing.T) {
	now := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	artifacts := []*objects.Artifact{
		{ID: 1, Source: objects.SourceSocialPlatform,
			Body:        "great thread on arXiv:9999.00001 which we have not ingested",
			PublishedAt: now.AddDate(0, 0, -1)},
	}
	pass, edges := newTestPass(artifacts, now)

	summary, err := pass.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Details["pattern_edges"])
	assert.Empty(t, edges.edges)
}

func TestRunDetectsSemanticEdgesNewerToOlder(t *testing.T) {
	now := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	body := "evaluating retrieval quality with synthetic relevance judgments"
	artifacts := []*objects.Artifact{
		{ID: 1, Source: objects.SourcePaperIndex, Body: body, PublishedAt: now.AddDate(0, 0, -15)},
		{ID: 2, Source: objects.SourceSocialPlatform, Body: body, PublishedAt: now.AddDate(0, 0, -2)},
	}
	pass, edges := newTestPass(artifacts, now)

	summary, err := pass.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Details["semantic_edges"])

	edge, ok := edges.edges[edgeKey{src: 2, dst: 1, typ: objects.RelationDiscuss}]
	require.True(t, ok, "edge points from the newer artifact to the older one")
	assert.GreaterOrEqual(t, edge.Confidence, 0.80)
	assert.Equal(t, objects.DetectSemantic, edge.DetectionMethod)
}

func TestRunIgnoresSameSourcePairs(t *testing.T) {
	now := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	body := "identical abstracts from the same index"
	artifacts := []*objects.Artifact{
		{ID: 1, Source: objects.SourcePaperIndex, Body: body, PublishedAt: now.AddDate(0, 0, -9)},
		{ID: 2, Source: objects.SourcePaperIndex, Body: body, PublishedAt: now.AddDate(0, 0, -8)},
	}
	pass, edges := newTestPass(artifacts, now)

	summary, err := pass.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Details["semantic_edges"])
	assert.Empty(t, edges.edges)
}

func TestRunRaisesConfidenceNeverLowers(t *testing.T) {
	now := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	artifacts := []*objects.Artifact{
		{ID: 1, Source: objects.SourcePaperIndex, ExternalID: "2301.04567",
			Body: "original paper", PublishedAt: now.AddDate(0, 0, -20)},
		{ID: 2, Source: objects.SourceCodeHost,
			Body: "code for arXiv:2301.04567", PublishedAt: now.AddDate(0, 0, -10)},
	}
	pass, edges := newTestPass(artifacts, now)

	// A prior semantic run left a weaker edge of the same type.
	key := edgeKey{src: 2, dst: 1, typ: objects.RelationImplement}
	edges.edges[key] = &objects.ArtifactRelationship{
		SourceArtifactID: 2, TargetArtifactID: 1, Type: objects.RelationImplement,
		Confidence: 0.82, DetectionMethod: objects.DetectSemantic,
	}

	_, err := pass.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 0.95, edges.edges[key].Confidence, "pattern evidence raises the confidence")
	assert.Equal(t, objects.DetectPattern, edges.edges[key].DetectionMethod)
}
