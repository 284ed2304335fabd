// Package identity finds and merges duplicate entity records using weighted
// similarity across name, affiliation, homepage domain and linked accounts.
// Merges tombstone the loser as a single-hop alias, never delete it.
package identity

import (
	"context"
	"database/sql"
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
	"github.com/iceymoss/discovery-engine/pkg/xerr"

	"go.uber.org/zap"
)

const PassName = "identity"

// candidateNameSim is the name-embedding similarity floor for considering a
// pair at all. Blocking, not a decision threshold.
const candidateNameSim = 0.70

type entityStore interface {
	ListCanonical(ctx context.Context, limit int) ([]*objects.Entity, error)
	GetByID(ctx context.Context, id uint64) (*objects.Entity, error)
	Save(ctx context.Context, entity *objects.Entity) error
	SetAlias(ctx context.Context, aliasID, canonicalID uint64) error
	RepointAliases(ctx context.Context, fromID, toID uint64) error
	AddArtifactCount(ctx context.Context, id uint64, delta int64) error
}

type txRunner interface {
	Execute(ctx context.Context, opts *sql.TxOptions, operation func(ctx context.Context) error) error
}

type embedder interface {
	EmbedBatch(ctx context.Context, ns embedding.Namespace, texts []string) ([][]float32, error)
}

type Pass struct {
	cfg      conf.ResolutionConfig
	embed    embedder
	entities entityStore
	tx       txRunner
}

func NewPass(cfg conf.ResolutionConfig, embed *embedding.Service) *Pass {
	return &Pass{
		cfg:      cfg,
		embed:    embed,
		entities: repo.NewEntityRepo(),
		tx:       transaction.NewManager(),
	}
}

// NewPassWithDeps is for tests.
func NewPassWithDeps(cfg conf.ResolutionConfig, embed embedder, entities entityStore, tx txRunner) *Pass {
	return &Pass{cfg: cfg, embed: embed, entities: entities, tx: tx}
}

func (p *Pass) Identifier() string { return PassName }

type candidatePair struct {
	a, b int // indexes into the entity slice
}

func (p *Pass) Run(ctx context.Context, params map[string]any) (core.PassSummary, error) {
	var summary core.PassSummary

	resolver, err := NewResolver(p.cfg)
	if err != nil {
		return summary, err
	}

	limit := core.IntParam(params, "limit", 2000)
	entities, err := p.entities.ListCanonical(ctx, limit)
	if err != nil {
		return summary, fmt.Errorf("list entities: %w", err)
	}
	if len(entities) < 2 {
		summary.Processed = len(entities)
		return summary, nil
	}

	nameVecs, affilVecs, err := p.embedFields(ctx, entities)
	if err != nil {
		return summary, err
	}

	pairs := p.candidates(entities, nameVecs)

	merged := make(map[uint64]bool)
	var merges, candidates int
	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		a, b := entities[pair.a], entities[pair.b]
		if merged[a.ID] || merged[b.ID] {
			continue
		}

		fields := FieldScores{
			Name:        clampUnit(vector.Cosine(nameVecs[pair.a], nameVecs[pair.b])),
			Affiliation: clampUnit(vector.Cosine(affilVecs[pair.a], affilVecs[pair.b])),
			Domain:      DomainSimilarity(a.Domain, b.Domain),
			Accounts:    AccountOverlap(a.Accounts, b.Accounts),
		}
		score := resolver.Score(fields)
		summary.Processed++

		merge, candidate := resolver.ShouldMerge(score)
		if candidate {
			candidates++
			zLog.Info("merge candidate needs confirmation",
				zap.Uint64("entity_a", a.ID), zap.Uint64("entity_b", b.ID),
				zap.Float64("score", score))
			continue
		}
		if !merge {
			continue
		}

		if err := p.mergePair(ctx, a, b); err != nil {
			zLog.Error("entity merge failed",
				zap.Uint64("entity_a", a.ID), zap.Uint64("entity_b", b.ID), zap.Error(err))
			summary.Errored++
			continue
		}
		merged[a.ID] = true
		merged[b.ID] = true
		merges++
	}

	summary.Note("merges", merges)
	summary.Note("candidates", candidates)
	return summary, nil
}

// embedFields batch-embeds normalized names and affiliations in their own
// namespaces so the two similarity spaces never mix.
func (p *Pass) embedFields(ctx context.Context, entities []*objects.Entity) ([][]float32, [][]float32, error) {
	names := make([]string, len(entities))
	affiliations := make([]string, len(entities))
	for i, e := range entities {
		names[i] = NormalizeName(e.DisplayName)
		affiliations[i] = e.Affiliation
	}
	nameVecs, err := p.embed.EmbedBatch(ctx, embedding.NamespaceName, names)
	if err != nil {
		return nil, nil, fmt.Errorf("embed names: %w", err)
	}
	affilVecs, err := p.embed.EmbedBatch(ctx, embedding.NamespaceAffiliation, affiliations)
	if err != nil {
		return nil, nil, fmt.Errorf("embed affiliations: %w", err)
	}
	return nameVecs, affilVecs, nil
}

// candidates blocks the O(n^2) space down to pairs with similar names or a
// shared account.
func (p *Pass) candidates(entities []*objects.Entity, nameVecs [][]float32) []candidatePair {
	seen := make(map[[2]int]bool)
	var pairs []candidatePair
	add := func(i, j int) {
		if i == j {
			return
		}
		if i > j {
			i, j = j, i
		}
		key := [2]int{i, j}
		if !seen[key] {
			seen[key] = true
			pairs = append(pairs, candidatePair{a: i, b: j})
		}
	}

	index := vector.NewScanIndex()
	for i := range entities {
		index.Add(uint64(i), nameVecs[i])
	}
	for i := range entities {
		for _, match := range index.TopK(nameVecs[i], 6) {
			if match.Similarity >= candidateNameSim {
				add(i, int(match.ID))
			}
		}
	}

	byAccount := make(map[string][]int)
	for i, e := range entities {
		for _, acc := range e.Accounts {
			byAccount[acc] = append(byAccount[acc], i)
		}
	}
	for _, holders := range byAccount {
		for x := 0; x < len(holders); x++ {
			for y := x + 1; y < len(holders); y++ {
				add(holders[x], holders[y])
			}
		}
	}
	return pairs
}

// mergePair merges the pair atomically: the record with more linked accounts
// and attributed artifacts becomes canonical, the other becomes its alias,
// and every prior alias of the loser is repointed so chains stay single-hop.
func (p *Pass) mergePair(ctx context.Context, a, b *objects.Entity) error {
	winner, loser := a, b
	if entityWeight(b) > entityWeight(a) {
		winner, loser = b, a
	}

	return p.tx.Execute(ctx, &sql.TxOptions{}, func(txCtx context.Context) error {
		// Re-read inside the transaction, another pass may have touched them.
		current, err := p.entities.GetByID(txCtx, winner.ID)
		if err != nil {
			return err
		}
		if current.IsAlias() {
			return xerr.New(xerr.ErrMergeChain,
				fmt.Sprintf("merge target %d is already an alias of %d", current.ID, *current.CanonicalID))
		}

		if err := p.entities.SetAlias(txCtx, loser.ID, winner.ID); err != nil {
			return err
		}
		if err := p.entities.RepointAliases(txCtx, loser.ID, winner.ID); err != nil {
			return err
		}
		if err := p.entities.AddArtifactCount(txCtx, winner.ID, loser.ArtifactCount); err != nil {
			return err
		}

		current.Accounts = unionAccounts(current.Accounts, loser.Accounts)
		current.UpdatedAt = time.Now()
		return p.entities.Save(txCtx, current)
	})
}

func entityWeight(e *objects.Entity) int64 {
	return int64(len(e.Accounts)) + e.ArtifactCount
}

func unionAccounts(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, acc := range append(append([]string{}, a...), b...) {
		if acc == "" || seen[acc] {
			continue
		}
		seen[acc] = true
		out = append(out, acc)
	}
	return out
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
