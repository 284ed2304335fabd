// Package scoring converts raw artifacts plus their cross-source signals into
// bounded discovery scores. The pass is idempotent: re-running it over an
// unchanged corpus reproduces the same scores.
package scoring

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/iceymoss/discovery-engine/internal/conf"
	"github.com/iceymoss/discovery-engine/internal/core"
	"github.com/iceymoss/discovery-engine/internal/repo"
	"github.com/iceymoss/discovery-engine/pkg/db/objects"
	"github.com/iceymoss/discovery-engine/pkg/embedding"
	zLog "github.com/iceymoss/discovery-engine/pkg/logger"
	"github.com/iceymoss/discovery-engine/pkg/vector"

	"go.uber.org/zap"
)

const PassName = "scoring"

type artifactStore interface {
	ListPublishedSince(ctx context.Context, since time.Time, limit int) ([]*objects.Artifact, error)
	ListByIDs(ctx context.Context, ids []uint64) ([]*objects.Artifact, error)
}

type scoreStore interface {
	Replace(ctx context.Context, score *objects.Score) error
}

type relationStore interface {
	ListTouching(ctx context.Context, artifactID uint64) ([]*objects.ArtifactRelationship, error)
}

type topicStore interface {
	ListAssignmentsByArtifacts(ctx context.Context, artifactIDs []uint64) ([]*objects.ArtifactTopic, error)
	GetByID(ctx context.Context, id uint64) (*objects.Topic, error)
}

type entityStore interface {
	InfluencesForAuthors(ctx context.Context, authors []string) ([]float64, error)
}

type embedder interface {
	EmbedBatch(ctx context.Context, ns embedding.Namespace, texts []string) ([][]float32, error)
}

type Pass struct {
	cfg       conf.ScoringConfig
	embed     embedder
	artifacts artifactStore
	scores    scoreStore
	relations relationStore
	topics    topicStore
	entities  entityStore
	now       func() time.Time
}

// NewPass wires the production dependencies.
func NewPass(cfg conf.ScoringConfig, embed *embedding.Service) *Pass {
	return &Pass{
		cfg:       cfg,
		embed:     embed,
		artifacts: repo.NewArtifactRepo(),
		scores:    repo.NewScoreRepo(),
		relations: repo.NewRelationRepo(),
		topics:    repo.NewTopicRepo(),
		entities:  repo.NewEntityRepo(),
		now:       time.Now,
	}
}

func (p *Pass) Identifier() string { return PassName }

// Run scores every artifact published inside the working window against a
// wider corpus window. One bad artifact is skipped and counted, never fatal.
func (p *Pass) Run(ctx context.Context, params map[string]any) (core.PassSummary, error) {
	var summary core.PassSummary

	calc, err := NewCalculator(p.cfg)
	if err != nil {
		return summary, err
	}

	sinceHours := core.IntParam(params, "sinceHours", 720)
	corpusDays := core.IntParam(params, "corpusDays", 90)
	limit := core.IntParam(params, "limit", 1000)

	now := p.now()
	targets, err := p.artifacts.ListPublishedSince(ctx, now.Add(-time.Duration(sinceHours)*time.Hour), limit)
	if err != nil {
		return summary, fmt.Errorf("list target artifacts: %w", err)
	}
	corpus, err := p.artifacts.ListPublishedSince(ctx, now.AddDate(0, 0, -corpusDays), 0)
	if err != nil {
		return summary, fmt.Errorf("list corpus artifacts: %w", err)
	}

	targetIDs := make(map[uint64]bool, len(targets))
	for _, a := range targets {
		targetIDs[a.ID] = true
	}

	// Merge corpus and targets, oldest first. Walking in published order lets
	// the similarity index hold exactly the artifacts published before the
	// one being scored.
	byID := make(map[uint64]*objects.Artifact, len(corpus)+len(targets))
	for _, a := range corpus {
		byID[a.ID] = a
	}
	for _, a := range targets {
		byID[a.ID] = a
	}
	ordered := make([]*objects.Artifact, 0, len(byID))
	for _, a := range byID {
		ordered = append(ordered, a)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].PublishedAt.Equal(ordered[j].PublishedAt) {
			return ordered[i].PublishedAt.Before(ordered[j].PublishedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	vectors, err := p.embedBodies(ctx, ordered)
	if err != nil {
		return summary, err
	}

	index := vector.NewScanIndex()
	for _, artifact := range ordered {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		vec := vectors[artifact.ID]
		if targetIDs[artifact.ID] {
			if vec == nil {
				zLog.Warn("artifact has no body, skipping score",
					zap.Uint64("artifact_id", artifact.ID))
				summary.Skipped++
			} else if err := p.scoreOne(ctx, calc, artifact, vec, index, now); err != nil {
				zLog.Error("score artifact failed",
					zap.Uint64("artifact_id", artifact.ID), zap.Error(err))
				summary.Errored++
			} else {
				summary.Processed++
			}
		}

		if vec != nil {
			index.Add(artifact.ID, vec)
		}
	}

	return summary, nil
}

func (p *Pass) scoreOne(ctx context.Context, calc *Calculator, artifact *objects.Artifact,
	vec []float32, index *vector.ScanIndex, now time.Time) error {

	maxSim := 0.0
	hasPrior := index.Len() > 0
	if hasPrior {
		matches := index.TopK(vec, p.cfg.NoveltyNeighbors)
		if len(matches) > 0 {
			maxSim = matches[0].Similarity
		}
	}

	edges, influences, err := p.edgeSignals(ctx, artifact)
	if err != nil {
		return err
	}

	topicEmergence, err := p.topicEmergence(ctx, artifact.ID)
	if err != nil {
		return err
	}

	sub := SubScores{
		Novelty:      calc.Novelty(maxSim, hasPrior),
		Emergence:    calc.Emergence(topicEmergence),
		Obscurity:    calc.Obscurity(artifact.Engagement),
		CrossSource:  calc.CrossSource(edges),
		ExpertSignal: calc.ExpertSignal(influences),
	}

	score := &objects.Score{
		ArtifactID:     artifact.ID,
		Novelty:        sub.Novelty,
		Emergence:      sub.Emergence,
		Obscurity:      sub.Obscurity,
		CrossSource:    sub.CrossSource,
		ExpertSignal:   sub.ExpertSignal,
		DiscoveryScore: calc.Combine(sub, artifact.PublishedAt, now),
		ScoredAt:       now,
	}
	return p.scores.Replace(ctx, score)
}

// edgeSignals reduces the artifact's confirmed relationships to cross-source
// signals and collects the influence of authors on the other endpoints.
func (p *Pass) edgeSignals(ctx context.Context, artifact *objects.Artifact) ([]EdgeSignal, []float64, error) {
	relations, err := p.relations.ListTouching(ctx, artifact.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list relationships: %w", err)
	}
	if len(relations) == 0 {
		return nil, nil, nil
	}

	otherIDs := make([]uint64, 0, len(relations))
	for _, rel := range relations {
		other := rel.SourceArtifactID
		if other == artifact.ID {
			other = rel.TargetArtifactID
		}
		otherIDs = append(otherIDs, other)
	}
	others, err := p.artifacts.ListByIDs(ctx, otherIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("load relationship endpoints: %w", err)
	}
	otherByID := make(map[uint64]*objects.Artifact, len(others))
	var authors []string
	for _, a := range others {
		otherByID[a.ID] = a
		authors = append(authors, a.Authors...)
	}

	edges := make([]EdgeSignal, 0, len(relations))
	for _, rel := range relations {
		otherID := rel.SourceArtifactID
		if otherID == artifact.ID {
			otherID = rel.TargetArtifactID
		}
		other, ok := otherByID[otherID]
		if !ok {
			continue
		}
		if other.Source == artifact.Source {
			continue // corroboration requires an independent source
		}
		edges = append(edges, EdgeSignal{OtherSource: other.Source, Confidence: rel.Confidence})
	}

	var influences []float64
	if len(authors) > 0 {
		influences, err = p.entities.InfluencesForAuthors(ctx, authors)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve author influence: %w", err)
		}
	}
	return edges, influences, nil
}

func (p *Pass) topicEmergence(ctx context.Context, artifactID uint64) ([]float64, error) {
	assignments, err := p.topics.ListAssignmentsByArtifacts(ctx, []uint64{artifactID})
	if err != nil {
		return nil, fmt.Errorf("list topic assignments: %w", err)
	}
	var scores []float64
	for _, assignment := range assignments {
		topic, err := p.topics.GetByID(ctx, assignment.TopicID)
		if err != nil {
			continue
		}
		scores = append(scores, topic.EmergenceScore)
	}
	return scores, nil
}

// embedBodies batch-embeds every non-empty body, deduplicated by the service.
func (p *Pass) embedBodies(ctx context.Context, artifacts []*objects.Artifact) (map[uint64][]float32, error) {
	var texts []string
	var ids []uint64
	for _, a := range artifacts {
		if a.Body == "" {
			continue
		}
		texts = append(texts, a.Body)
		ids = append(ids, a.ID)
	}
	if len(texts) == 0 {
		return map[uint64][]float32{}, nil
	}
	vecs, err := p.embed.EmbedBatch(ctx, embedding.NamespaceBody, texts)
	if err != nil {
		return nil, fmt.Errorf("embed artifact bodies: %w", err)
	}
	out := make(map[uint64][]float32, len(ids))
	for i, id := range ids {
		out[id] = vecs[i]
	}
	return out, nil
}
