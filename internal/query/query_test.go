package query

import (
	"context"
	"testing"
	"time"

	"github.com/iceymoss/discovery-engine/internal/repo"
	"github.com/iceymoss/discovery-engine/pkg/db/objects"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	c := Cursor{Score: 87.53, ArtifactID: 42}
	got, err := DecodeCursor(c.Encode())
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestCursorEmptyTokenIsFirstPage(t *testing.T) {
	got, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Equal(t, Cursor{}, got)
}

func TestCursorMalformedToken(t *testing.T) {
	_, err := DecodeCursor("not base64 !!!")
	assert.Error(t, err)

	_, err = DecodeCursor(Cursor{}.Encode() + "x")
	assert.Error(t, err)
}

// fakeEdges serves a static adjacency list, honoring the confidence floor the
// way the store query does.
type fakeEdges struct {
	edges []*objects.ArtifactRelationship
}

func (f *fakeEdges) ListFrom(_ context.Context, sourceIDs []uint64, minConfidence float64) ([]*objects.ArtifactRelationship, error) {
	wanted := make(map[uint64]bool, len(sourceIDs))
	for _, id := range sourceIDs {
		wanted[id] = true
	}
	var out []*objects.ArtifactRelationship
	for _, e := range f.edges {
		if wanted[e.SourceArtifactID] && e.Confidence >= minConfidence {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeArtifacts struct {
	byID map[uint64]*objects.Artifact
}

func (f *fakeArtifacts) ListByIDs(_ context.Context, ids []uint64) ([]*objects.Artifact, error) {
	var out []*objects.Artifact
	for _, id := range ids {
		if a, ok := f.byID[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func edge(src, dst uint64, confidence float64) *objects.ArtifactRelationship {
	return &objects.ArtifactRelationship{
		SourceArtifactID: src,
		TargetArtifactID: dst,
		Type:             objects.RelationCite,
		Confidence:       confidence,
		DetectionMethod:  objects.DetectPattern,
	}
}

func artifactSet(ids ...uint64) *fakeArtifacts {
	f := &fakeArtifacts{byID: make(map[uint64]*objects.Artifact)}
	for _, id := range ids {
		f.byID[id] = &objects.Artifact{ID: id, Source: objects.SourcePaperIndex}
	}
	return f
}

func TestTraverseTerminatesOnCycles(t *testing.T) {
	edges := &fakeEdges{edges: []*objects.ArtifactRelationship{
		edge(1, 2, 0.9),
		edge(2, 1, 0.9),
	}}

	graph, err := traverse(context.Background(), edges, artifactSet(1, 2), 1, 3, 0)
	require.NoError(t, err)

	assert.Len(t, graph.Nodes, 2, "cycle visited once per node")
	assert.Len(t, graph.Edges, 2)
}

func TestTraverseRespectsDepthBound(t *testing.T) {
	edges := &fakeEdges{edges: []*objects.ArtifactRelationship{
		edge(1, 2, 0.9),
		edge(2, 3, 0.9),
		edge(3, 4, 0.9),
	}}

	graph, err := traverse(context.Background(), edges, artifactSet(1, 2, 3, 4), 1, 2, 0)
	require.NoError(t, err)

	depths := make(map[uint64]int)
	for _, n := range graph.Nodes {
		depths[n.ArtifactID] = n.Depth
	}
	assert.Equal(t, map[uint64]int{1: 0, 2: 1, 3: 2}, depths, "expansion stops at the depth bound")
}

func TestTraverseFiltersByConfidence(t *testing.T) {
	edges := &fakeEdges{edges: []*objects.ArtifactRelationship{
		edge(1, 2, 0.9),
		edge(1, 3, 0.4),
	}}

	graph, err := traverse(context.Background(), edges, artifactSet(1, 2, 3), 1, 2, 0.6)
	require.NoError(t, err)

	require.Len(t, graph.Edges, 1)
	assert.Equal(t, uint64(2), graph.Edges[0].TargetArtifactID)
	assert.Len(t, graph.Nodes, 2, "weak edge's target never enters the graph")
}

func TestDenseDailySeries(t *testing.T) {
	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	until := since.AddDate(0, 0, 3)
	counts := []repo.DayCount{
		{Day: "2026-08-01", Count: 2},
		{Day: "2026-08-03", Count: 5},
	}

	series := DenseDailySeries(counts, since, until)
	assert.Equal(t, []float64{2, 0, 5, 0}, series, "missing days filled with zeros")
}
