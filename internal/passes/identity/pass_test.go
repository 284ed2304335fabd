package identity

import (
	"context"
	"database/sql"
	"hash/fnv"
	"strings"
	"testing"

	"github.com/iceymoss/discovery-engine/internal/conf"
	"github.com/iceymoss/discovery-engine/pkg/db/objects"
	"github.com/iceymoss/discovery-engine/pkg/embedding"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bagEmbedder maps each token to a dimension bucket, so identical normalized
// texts embed identically and disjoint texts stay dissimilar.
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

type fakeEntityStore struct {
	entities map[uint64]*objects.Entity
}

func newFakeEntityStore(entities ...*objects.Entity) *fakeEntityStore {
	s := &fakeEntityStore{entities: make(map[uint64]*objects.Entity)}
	for _, e := range entities {
		s.entities[e.ID] = e
	}
	return s
}

func (s *fakeEntityStore) ListCanonical(_ context.Context, _ int) ([]*objects.Entity, error) {
	var out []*objects.Entity
	for id := uint64(1); id <= uint64(len(s.entities)); id++ {
		if e, ok := s.entities[id]; ok && !e.IsAlias() {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeEntityStore) GetByID(_ context.Context, id uint64) (*objects.Entity, error) {
	return s.entities[id], nil
}

func (s *fakeEntityStore) Save(_ context.Context, entity *objects.Entity) error {
	s.entities[entity.ID] = entity
	return nil
}

func (s *fakeEntityStore) SetAlias(_ context.Context, aliasID, canonicalID uint64) error {
	id := canonicalID
	s.entities[aliasID].CanonicalID = &id
	return nil
}

func (s *fakeEntityStore) RepointAliases(_ context.Context, fromID, toID uint64) error {
	for _, e := range s.entities {
		if e.CanonicalID != nil && *e.CanonicalID == fromID {
			id := toID
			e.CanonicalID = &id
		}
	}
	return nil
}

func (s *fakeEntityStore) AddArtifactCount(_ context.Context, id uint64, delta int64) error {
	s.entities[id].ArtifactCount += delta
	return nil
}

type passthroughTx struct{}

func (passthroughTx) Execute(ctx context.Context, _ *sql.TxOptions, op func(ctx context.Context) error) error {
	return op(ctx)
}

func testResolutionConfig() conf.ResolutionConfig {
	return conf.ResolutionConfig{
		Weights:        conf.DefaultResolutionWeights(),
		MergeThreshold: 0.80,
	}
}

func TestRunMergesDuplicateEntities(t *testing.T) {
	store := newFakeEntityStore(
		&objects.Entity{ID: 1, Type: "person", DisplayName: "John Smith", Affiliation: "MIT",
			Accounts: []string{"@jsmith"}, ArtifactCount: 5},
		&objects.Entity{ID: 2, Type: "person", DisplayName: "Smith, John", Affiliation: "MIT",
			Accounts: []string{"@jsmith"}, ArtifactCount: 1},
	)
	pass := NewPassWithDeps(testResolutionConfig(), bagEmbedder{}, store, passthroughTx{})

	summary, err := pass.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Details["merges"])

	loser := store.entities[2]
	require.NotNil(t, loser.CanonicalID, "loser tombstoned as alias")
	assert.Equal(t, uint64(1), *loser.CanonicalID, "record with more evidence wins")
	assert.Equal(t, int64(6), store.entities[1].ArtifactCount, "attribution moved to the canonical")
}

func TestRunLeavesDistinctPeopleApart(t *testing.T) {
	store := newFakeEntityStore(
		&objects.Entity{ID: 1, Type: "person", DisplayName: "David Chen",
			Affiliation: "Stanford University", ArtifactCount: 3},
		&objects.Entity{ID: 2, Type: "person", DisplayName: "David Chen",
			Affiliation: "UC Berkeley", ArtifactCount: 2},
	)
	pass := NewPassWithDeps(testResolutionConfig(), bagEmbedder{}, store, passthroughTx{})

	summary, err := pass.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Details["merges"], "same name alone must not merge")
	assert.Nil(t, store.entities[1].CanonicalID)
	assert.Nil(t, store.entities[2].CanonicalID)
}

func TestMergeFlattensAliasChains(t *testing.T) {
	store := newFakeEntityStore(
		&objects.Entity{ID: 1, Type: "person", DisplayName: "Jane Doe", Affiliation: "CMU",
			Accounts: []string{"@jdoe"}, ArtifactCount: 9},
		&objects.Entity{ID: 2, Type: "person", DisplayName: "Doe, Jane", Affiliation: "CMU",
			Accounts: []string{"@jdoe"}, ArtifactCount: 2},
	)
	// An older merge already pointed entity 3 at entity 2.
	prior := uint64(2)
	store.entities[3] = &objects.Entity{ID: 3, Type: "person", DisplayName: "J Doe",
		CanonicalID: &prior}

	pass := NewPassWithDeps(testResolutionConfig(), bagEmbedder{}, store, passthroughTx{})
	_, err := pass.Run(context.Background(), nil)
	require.NoError(t, err)

	require.NotNil(t, store.entities[2].CanonicalID)
	assert.Equal(t, uint64(1), *store.entities[2].CanonicalID)
	require.NotNil(t, store.entities[3].CanonicalID)
	assert.Equal(t, uint64(1), *store.entities[3].CanonicalID,
		"existing aliases repointed so resolution stays single-hop")
}

func TestConfirmationModeOnlyRecordsCandidates(t *testing.T) {
	cfg := testResolutionConfig()
	cfg.RequireConfirmation = true
	store := newFakeEntityStore(
		&objects.Entity{ID: 1, Type: "person", DisplayName: "John Smith", Affiliation: "MIT",
			Accounts: []string{"@jsmith"}, ArtifactCount: 5},
		&objects.Entity{ID: 2, Type: "person", DisplayName: "Smith, John", Affiliation: "MIT",
			Accounts: []string{"@jsmith"}, ArtifactCount: 1},
	)
	pass := NewPassWithDeps(cfg, bagEmbedder{}, store, passthroughTx{})

	summary, err := pass.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Details["merges"])
	assert.Equal(t, 1, summary.Details["candidates"])
	assert.Nil(t, store.entities[2].CanonicalID)
}
