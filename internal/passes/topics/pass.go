// Package topics clusters artifacts into topics over time and detects
// lifecycle events: emergence, merge, split and decline, with short-horizon
// growth forecasts.
package topics

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

	"go.uber.org/zap"
)

const PassName = "topics"

// coverageTarget is the correctness bar for assignment coverage; running
// below it is logged as a defect signal.
const coverageTarget = 0.95

type artifactStore interface {
	ListPublishedSince(ctx context.Context, since time.Time, limit int) ([]*objects.Artifact, error)
	ListByIDs(ctx context.Context, ids []uint64) ([]*objects.Artifact, error)
}

type topicStore interface {
	ListActive(ctx context.Context) ([]*objects.Topic, error)
	GetByID(ctx context.Context, id uint64) (*objects.Topic, error)
	Create(ctx context.Context, topic *objects.Topic) error
	Save(ctx context.Context, topic *objects.Topic) error
	ReplaceAssignment(ctx context.Context, assignment *objects.ArtifactTopic) error
	DeleteAssignment(ctx context.Context, artifactID, topicID uint64) error
	RepointAssignments(ctx context.Context, fromTopicID, toTopicID uint64) error
	ListAssignmentsByTopic(ctx context.Context, topicID uint64) ([]*objects.ArtifactTopic, error)
	DailyAssignmentCounts(ctx context.Context, topicID uint64, since time.Time) ([]repo.DayCount, error)
	CountAssignmentsSince(ctx context.Context, topicID uint64, since time.Time) (int64, error)
	Coverage(ctx context.Context) (assigned int64, total int64, err error)
	CreateEvent(ctx context.Context, event *objects.TopicEvent) error
}

type scoreStore interface {
	GetByArtifact(ctx context.Context, artifactID uint64) (*objects.Score, error)
}

type txRunner interface {
	Execute(ctx context.Context, opts *sql.TxOptions, operation func(ctx context.Context) error) error
}

type embedder interface {
	EmbedBatch(ctx context.Context, ns embedding.Namespace, texts []string) ([][]float32, error)
}

type Pass struct {
	cfg       conf.TopicsConfig
	embed     embedder
	artifacts artifactStore
	topics    topicStore
	scores    scoreStore
	tx        txRunner
	now       func() time.Time
}

func NewPass(cfg conf.TopicsConfig, embed *embedding.Service) *Pass {
	return &Pass{
		cfg:       cfg,
		embed:     embed,
		artifacts: repo.NewArtifactRepo(),
		topics:    repo.NewTopicRepo(),
		scores:    repo.NewScoreRepo(),
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

	limit := core.IntParam(params, "limit", 2000)
	now := p.now()
	windowStart := now.AddDate(0, 0, -p.cfg.WindowDays)

	// Stage 1: assign recent artifacts to existing topics.
	unassigned, err := p.assignRecent(ctx, windowStart, limit, now, &summary)
	if err != nil {
		return summary, err
	}

	// Stage 2: emergence from the leftovers.
	created, err := p.detectEmergence(ctx, unassigned, now)
	if err != nil {
		return summary, err
	}
	summary.Note("topics_created", created)

	// Stage 3: merge near-identical topics.
	mergedCount, err := p.detectMerges(ctx, now)
	if err != nil {
		return summary, err
	}
	summary.Note("topics_merged", mergedCount)

	// Stage 4: split incoherent topics.
	splitCount, err := p.detectSplits(ctx, now)
	if err != nil {
		return summary, err
	}
	summary.Note("topics_split", splitCount)

	// Stage 5: decline detection + emergence rescoring + stabilization.
	declined, err := p.refreshLifecycles(ctx, now)
	if err != nil {
		return summary, err
	}
	summary.Note("topics_declined", declined)

	// Coverage monitoring.
	assigned, total, err := p.topics.Coverage(ctx)
	if err != nil {
		return summary, fmt.Errorf("compute coverage: %w", err)
	}
	coverage := 1.0
	if total > 0 {
		coverage = float64(assigned) / float64(total)
	}
	summary.Note("coverage", coverage)
	if coverage < coverageTarget {
		zLog.Warn("topic coverage below target",
			zap.Float64("coverage", coverage), zap.Float64("target", coverageTarget))
	}

	return summary, nil
}

// assignRecent matches window artifacts against active topic centroids and
// returns the items no topic claims.
func (p *Pass) assignRecent(ctx context.Context, windowStart time.Time, limit int,
	now time.Time, summary *core.PassSummary) ([]Item, error) {

	artifacts, err := p.artifacts.ListPublishedSince(ctx, windowStart, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent artifacts: %w", err)
	}

	activeTopics, err := p.topics.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	// Keep the topic order stable (ListActive orders by id) so similarity
	// ties always resolve to the same topic.
	centroids := make([][]float32, len(activeTopics))
	for i, t := range activeTopics {
		centroids[i] = vector.Deserialize(t.Centroid)
	}

	var texts []string
	var withBody []*objects.Artifact
	for _, a := range artifacts {
		if a.Body == "" {
			summary.Skipped++
			continue
		}
		texts = append(texts, a.Body)
		withBody = append(withBody, a)
	}
	if len(withBody) == 0 {
		return nil, nil
	}
	vecs, err := p.embed.EmbedBatch(ctx, embedding.NamespaceBody, texts)
	if err != nil {
		return nil, fmt.Errorf("embed artifact bodies: %w", err)
	}

	var unassigned []Item
	for i, artifact := range withBody {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var bestTopic uint64
		bestSim := 0.0
		for t, centroid := range centroids {
			sim := vector.Cosine(vecs[i], centroid)
			if sim >= p.cfg.AssignThreshold && sim > bestSim {
				bestSim = sim
				bestTopic = activeTopics[t].ID
			}
		}
		if bestTopic == 0 {
			unassigned = append(unassigned, Item{ID: artifact.ID, Vec: vecs[i]})
			continue
		}
		err := p.topics.ReplaceAssignment(ctx, &objects.ArtifactTopic{
			ArtifactID: artifact.ID,
			TopicID:    bestTopic,
			Confidence: bestSim,
			AssignedAt: now,
		})
		if err != nil {
			zLog.Error("assign artifact to topic failed",
				zap.Uint64("artifact_id", artifact.ID), zap.Uint64("topic_id", bestTopic), zap.Error(err))
			summary.Errored++
			continue
		}
		summary.Processed++
	}
	return unassigned, nil
}

// detectEmergence clusters unassigned artifacts; clusters meeting the minimum
// size become new emerging topics.
func (p *Pass) detectEmergence(ctx context.Context, unassigned []Item, now time.Time) (int, error) {
	if len(unassigned) == 0 {
		return 0, nil
	}
	clusters := Greedy(unassigned, p.cfg.AssignThreshold)

	var created int
	for _, cluster := range clusters {
		if len(cluster.Members) < p.cfg.MinTopicSize {
			continue
		}
		name, err := p.topicName(ctx, cluster)
		if err != nil {
			return created, err
		}
		err = p.tx.Execute(ctx, &sql.TxOptions{}, func(txCtx context.Context) error {
			topic := &objects.Topic{
				Name:          name,
				Centroid:      vector.Serialize(cluster.Centroid),
				ArtifactCount: int64(len(cluster.Members)),
				Status:        objects.TopicStatusEmerging,
			}
			if err := p.topics.Create(txCtx, topic); err != nil {
				return err
			}
			for _, member := range cluster.Members {
				assignment := &objects.ArtifactTopic{
					ArtifactID: member.ID,
					TopicID:    topic.ID,
					Confidence: vector.Cosine(member.Vec, cluster.Centroid),
					AssignedAt: now,
				}
				if err := p.topics.ReplaceAssignment(txCtx, assignment); err != nil {
					return err
				}
			}
			return p.topics.CreateEvent(txCtx, &objects.TopicEvent{
				TopicID:  topic.ID,
				Type:     objects.TopicEventEmerge,
				Strength: Coherence(memberVecs(cluster), cluster.Centroid),
			})
		})
		if err != nil {
			return created, fmt.Errorf("create emerging topic: %w", err)
		}
		created++
	}
	return created, nil
}

// topicName labels a new topic after its most central member's title.
func (p *Pass) topicName(ctx context.Context, cluster Cluster) (string, error) {
	best := cluster.Members[0]
	bestSim := -1.0
	for _, m := range cluster.Members {
		if sim := vector.Cosine(m.Vec, cluster.Centroid); sim > bestSim {
			bestSim = sim
			best = m
		}
	}
	artifacts, err := p.artifacts.ListByIDs(ctx, []uint64{best.ID})
	if err != nil || len(artifacts) == 0 {
		return fmt.Sprintf("topic-%d", best.ID), err
	}
	name := artifacts[0].Title
	if len(name) > 80 {
		name = name[:80]
	}
	return name, nil
}

// detectMerges combines active topic pairs whose centroids exceed the merge
// threshold. The larger topic absorbs the smaller; the combined centroid is
// the artifact-count-weighted average.
func (p *Pass) detectMerges(ctx context.Context, now time.Time) (int, error) {
	topics, err := p.topics.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	absorbed := make(map[uint64]bool)
	var merges int
	for i := 0; i < len(topics); i++ {
		for j := i + 1; j < len(topics); j++ {
			a, b := topics[i], topics[j]
			if absorbed[a.ID] || absorbed[b.ID] {
				continue
			}
			sim := vector.Cosine(vector.Deserialize(a.Centroid), vector.Deserialize(b.Centroid))
			if sim <= p.cfg.MergeThreshold {
				continue
			}

			winner, loser := a, b
			if b.ArtifactCount > a.ArtifactCount {
				winner, loser = b, a
			}
			if err := p.mergeTopics(ctx, winner, loser, sim, now); err != nil {
				return merges, fmt.Errorf("merge topics %d<-%d: %w", winner.ID, loser.ID, err)
			}
			absorbed[loser.ID] = true
			merges++
		}
	}
	return merges, nil
}

func (p *Pass) mergeTopics(ctx context.Context, winner, loser *objects.Topic, sim float64, now time.Time) error {
	return p.tx.Execute(ctx, &sql.TxOptions{}, func(txCtx context.Context) error {
		merged := vector.WeightedMean(
			vector.Deserialize(winner.Centroid), float64(winner.ArtifactCount),
			vector.Deserialize(loser.Centroid), float64(loser.ArtifactCount),
		)
		winner.Centroid = vector.Serialize(merged)
		winner.ArtifactCount += loser.ArtifactCount
		winner.UpdatedAt = now
		if err := p.topics.Save(txCtx, winner); err != nil {
			return err
		}

		if err := p.topics.RepointAssignments(txCtx, loser.ID, winner.ID); err != nil {
			return err
		}

		loser.Status = objects.TopicStatusDeclining
		loser.ArtifactCount = 0
		loser.UpdatedAt = now
		if err := p.topics.Save(txCtx, loser); err != nil {
			return err
		}

		return p.topics.CreateEvent(txCtx, &objects.TopicEvent{
			TopicID:        winner.ID,
			Type:           objects.TopicEventMerge,
			RelatedTopicID: &loser.ID,
			Strength:       sim,
		})
	})
}

// detectSplits re-clusters topics whose internal coherence has fallen below
// the split threshold; each child meeting the minimum size becomes a new
// emerging topic.
func (p *Pass) detectSplits(ctx context.Context, now time.Time) (int, error) {
	topics, err := p.topics.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	var splits int
	for _, topic := range topics {
		if err := ctx.Err(); err != nil {
			return splits, err
		}
		members, err := p.topicMembers(ctx, topic.ID)
		if err != nil {
			return splits, err
		}
		if len(members) < 2*p.cfg.MinTopicSize {
			continue // too small to split into viable children
		}

		centroid := vector.Deserialize(topic.Centroid)
		coherence := Coherence(itemVecs(members), centroid)
		if coherence >= p.cfg.SplitThreshold {
			continue
		}

		children := Greedy(members, p.cfg.AssignThreshold)
		var viable []Cluster
		for _, c := range children {
			if len(c.Members) >= p.cfg.MinTopicSize {
				viable = append(viable, c)
			}
		}
		if len(viable) < 2 {
			continue
		}

		if err := p.splitTopic(ctx, topic, viable, coherence, now); err != nil {
			return splits, fmt.Errorf("split topic %d: %w", topic.ID, err)
		}
		splits++
	}
	return splits, nil
}

func (p *Pass) splitTopic(ctx context.Context, parent *objects.Topic, children []Cluster,
	coherence float64, now time.Time) error {

	return p.tx.Execute(ctx, &sql.TxOptions{}, func(txCtx context.Context) error {
		for _, child := range children {
			name, err := p.topicName(txCtx, child)
			if err != nil {
				return err
			}
			topic := &objects.Topic{
				Name:          name,
				Centroid:      vector.Serialize(child.Centroid),
				ArtifactCount: int64(len(child.Members)),
				Status:        objects.TopicStatusEmerging,
			}
			if err := p.topics.Create(txCtx, topic); err != nil {
				return err
			}
			for _, member := range child.Members {
				assignment := &objects.ArtifactTopic{
					ArtifactID: member.ID,
					TopicID:    topic.ID,
					Confidence: vector.Cosine(member.Vec, child.Centroid),
					AssignedAt: now,
				}
				if err := p.topics.ReplaceAssignment(txCtx, assignment); err != nil {
					return err
				}
				if err := p.topics.DeleteAssignment(txCtx, member.ID, parent.ID); err != nil {
					return err
				}
			}
			if err := p.topics.CreateEvent(txCtx, &objects.TopicEvent{
				TopicID:        topic.ID,
				Type:           objects.TopicEventSplit,
				RelatedTopicID: &parent.ID,
				Strength:       coherence,
			}); err != nil {
				return err
			}
		}

		parent.Status = objects.TopicStatusDeclining
		parent.ArtifactCount = 0
		parent.UpdatedAt = now
		return p.topics.Save(txCtx, parent)
	})
}

// refreshLifecycles handles decline detection, emerging->stable promotion and
// emergence rescoring for every active topic.
func (p *Pass) refreshLifecycles(ctx context.Context, now time.Time) (int, error) {
	topics, err := p.topics.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	window := p.cfg.WindowDays
	var declined int
	for _, topic := range topics {
		daily, err := p.topics.DailyAssignmentCounts(ctx, topic.ID, now.AddDate(0, 0, -2*window))
		if err != nil {
			return declined, err
		}
		series := denseSeries(daily, now, 2*window)
		slope := GrowthRate(series)

		recent, err := p.topics.CountAssignmentsSince(ctx, topic.ID, now.AddDate(0, 0, -window))
		if err != nil {
			return declined, err
		}

		if recent == 0 && slope < 0 {
			topic.Status = objects.TopicStatusDeclining
			topic.UpdatedAt = now
			if err := p.topics.Save(ctx, topic); err != nil {
				return declined, err
			}
			if err := p.topics.CreateEvent(ctx, &objects.TopicEvent{
				TopicID:  topic.ID,
				Type:     objects.TopicEventDecline,
				Strength: -slope,
			}); err != nil {
				return declined, err
			}
			declined++
			continue
		}

		// Emerging topics stabilize once they have survived a full window
		// at twice the minimum size.
		if topic.Status == objects.TopicStatusEmerging &&
			now.Sub(topic.CreatedAt) > time.Duration(window)*24*time.Hour &&
			topic.ArtifactCount >= int64(2*p.cfg.MinTopicSize) {
			topic.Status = objects.TopicStatusStable
		}

		avgNovelty, err := p.averageNovelty(ctx, topic.ID)
		if err != nil {
			return declined, err
		}
		shortSeries := denseSeries(daily, now, window)
		topic.EmergenceScore = EmergenceScore(GrowthRate(shortSeries), avgNovelty)
		topic.UpdatedAt = now
		if err := p.topics.Save(ctx, topic); err != nil {
			return declined, err
		}
	}
	return declined, nil
}

func (p *Pass) averageNovelty(ctx context.Context, topicID uint64) (float64, error) {
	assignments, err := p.topics.ListAssignmentsByTopic(ctx, topicID)
	if err != nil {
		return 0, err
	}
	var sum float64
	var n int
	for _, assignment := range assignments {
		score, err := p.scores.GetByArtifact(ctx, assignment.ArtifactID)
		if err != nil {
			continue // unscored member, not an error
		}
		sum += score.Novelty
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}

func (p *Pass) topicMembers(ctx context.Context, topicID uint64) ([]Item, error) {
	assignments, err := p.topics.ListAssignmentsByTopic(ctx, topicID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.ArtifactID)
	}
	artifacts, err := p.artifacts.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	var texts []string
	var withBody []*objects.Artifact
	for _, a := range artifacts {
		if a.Body == "" {
			continue
		}
		texts = append(texts, a.Body)
		withBody = append(withBody, a)
	}
	if len(withBody) == 0 {
		return nil, nil
	}
	vecs, err := p.embed.EmbedBatch(ctx, embedding.NamespaceBody, texts)
	if err != nil {
		return nil, err
	}
	items := make([]Item, len(withBody))
	for i, a := range withBody {
		items[i] = Item{ID: a.ID, Vec: vecs[i]}
	}
	return items, nil
}

// denseSeries expands sparse day counts into one value per day over the
// trailing window, zeros filled in, oldest first.
func denseSeries(daily []repo.DayCount, now time.Time, days int) []float64 {
	byDay := make(map[string]int64, len(daily))
	for _, d := range daily {
		byDay[d.Day] = d.Count
	}
	series := make([]float64, days)
	for i := 0; i < days; i++ {
		day := now.AddDate(0, 0, -(days - 1 - i)).Format("2006-01-02")
		series[i] = float64(byDay[day])
	}
	return series
}

func memberVecs(c Cluster) [][]float32 {
	return itemVecs(c.Members)
}

func itemVecs(items []Item) [][]float32 {
	vecs := make([][]float32, len(items))
	for i, item := range items {
		vecs[i] = item.Vec
	}
	return vecs
}
