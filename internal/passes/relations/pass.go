// Package relations builds the directed, typed, confidence-weighted graph of
// citation/reference/implementation/discussion links between artifacts. Two
// independent detectors feed the same edge table: deterministic identifier
// extraction and cross-source embedding similarity.
package relations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iceymoss/discovery-engine/internal/conf"
	"github.com/iceymoss/discovery-engine/internal/core"
	"github.com/iceymoss/discovery-engine/internal/repo"
	"github.com/iceymoss/discovery-engine/pkg/db/objects"
	"github.com/iceymoss/discovery-engine/pkg/embedding"
	zLog "github.com/iceymoss/discovery-engine/pkg/logger"
	"github.com/iceymoss/discovery-engine/pkg/transaction"
	"github.com/iceymoss/discovery-engine/pkg/vector"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const PassName = "relations"

type artifactStore interface {
	ListPublishedSince(ctx context.Context, since time.Time, limit int) ([]*objects.Artifact, error)
	FindBySourceExternalID(ctx context.Context, source, externalID string) (*objects.Artifact, error)
}

type relationStore interface {
	UpsertMaxConfidence(ctx context.Context, edge *objects.ArtifactRelationship) error
}

type txRunner interface {
	Execute(ctx context.Context, opts *sql.TxOptions, operation func(ctx context.Context) error) error
}

type embedder interface {
	EmbedBatch(ctx context.Context, ns embedding.Namespace, texts []string) ([][]float32, error)
}

type Pass struct {
	cfg       conf.RelationsConfig
	embed     embedder
	artifacts artifactStore
	relations relationStore
	tx        txRunner
	now       func() time.Time
}

func NewPass(cfg conf.RelationsConfig, embed *embedding.Service) *Pass {
	return &Pass{
		cfg:       cfg,
		embed:     embed,
		artifacts: repo.NewArtifactRepo(),
		relations: repo.NewRelationRepo(),
		tx:        transaction.NewManager(),
		now:       time.Now,
	}
}

func (p *Pass) Identifier() string { return PassName }

func (p *Pass) Run(ctx context.Context, params map[string]any) (core.PassSummary, error) {
	var summary core.PassSummary

	if err := p.cfg.Validate(); err != nil {
		return summary, err
	}

	sinceDays := core.IntParam(params, "sinceDays", 30)
	limit := core.IntParam(params, "limit", 2000)

	artifacts, err := p.artifacts.ListPublishedSince(ctx, p.now().AddDate(0, 0, -sinceDays), limit)
	if err != nil {
		return summary, fmt.Errorf("list artifacts: %w", err)
	}

	var patternEdges int
	for _, artifact := range artifacts {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if artifact.Body == "" {
			summary.Skipped++
			continue
		}
		edges, err := p.detectPatternEdges(ctx, artifact)
		if err != nil {
			zLog.Error("pattern detection failed",
				zap.Uint64("artifact_id", artifact.ID), zap.Error(err))
			summary.Errored++
			continue
		}
		summary.Processed++
		patternEdges += edges
	}
	summary.Note("pattern_edges", patternEdges)

	semanticEdges, err := p.detectSemanticEdges(ctx, artifacts)
	if err != nil {
		return summary, err
	}
	summary.Note("semantic_edges", semanticEdges)

	return summary, nil
}

// detectPatternEdges extracts external identifiers from the artifact's text
// and links each to the artifact bearing that identifier.
func (p *Pass) detectPatternEdges(ctx context.Context, artifact *objects.Artifact) (int, error) {
	extracted := ExtractIdentifiers(artifact.Title + "\n" + artifact.Body)

	var created int
	for _, ext := range extracted {
		target, err := p.artifacts.FindBySourceExternalID(ctx, ext.Source, ext.ExternalID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue // the referenced artifact is not ingested yet
		}
		if err != nil {
			return created, err
		}
		if target.ID == artifact.ID {
			continue
		}

		edge := &objects.ArtifactRelationship{
			SourceArtifactID: artifact.ID,
			TargetArtifactID: target.ID,
			Type:             RelationType(artifact.Source, target.Source),
			Confidence:       ext.Confidence,
			DetectionMethod:  objects.DetectPattern,
		}
		err = p.tx.Execute(ctx, &sql.TxOptions{}, func(txCtx context.Context) error {
			return p.relations.UpsertMaxConfidence(txCtx, edge)
		})
		if err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

// detectSemanticEdges links artifact pairs from different sources whose body
// embeddings exceed the similarity threshold. The newer artifact points at
// the older one, matching citation direction.
func (p *Pass) detectSemanticEdges(ctx context.Context, artifacts []*objects.Artifact) (int, error) {
	var texts []string
	var withBody []*objects.Artifact
	for _, a := range artifacts {
		if a.Body == "" {
			continue
		}
		texts = append(texts, a.Body)
		withBody = append(withBody, a)
	}
	if len(withBody) < 2 {
		return 0, nil
	}

	vecs, err := p.embed.EmbedBatch(ctx, embedding.NamespaceBody, texts)
	if err != nil {
		return 0, fmt.Errorf("embed artifact bodies: %w", err)
	}
	norms := make([]float64, len(vecs))
	for i, v := range vecs {
		norms[i] = vector.Norm(v)
	}

	var created int
	for i := 0; i < len(withBody); i++ {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		for j := i + 1; j < len(withBody); j++ {
			a, b := withBody[i], withBody[j]
			if a.Source == b.Source {
				continue // semantic corroboration requires distinct sources
			}
			sim := vector.CosineWithNorms(vecs[i], vecs[j], norms[i], norms[j])
			if sim < p.cfg.SemanticThreshold {
				continue
			}

			src, dst := a, b
			if b.PublishedAt.After(a.PublishedAt) {
				src, dst = b, a
			}
			edge := &objects.ArtifactRelationship{
				SourceArtifactID: src.ID,
				TargetArtifactID: dst.ID,
				Type:             RelationType(src.Source, dst.Source),
				Confidence:       sim,
				DetectionMethod:  objects.DetectSemantic,
			}
			err := p.tx.Execute(ctx, &sql.TxOptions{}, func(txCtx context.Context) error {
				return p.relations.UpsertMaxConfidence(txCtx, edge)
			})
			if err != nil {
				return created, err
			}
			created++
		}
	}
	return created, nil
}
