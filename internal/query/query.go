// Package query is the read-only surface over the engine's derived data:
// ranked artifact listings, merge-aware entity resolution, topic timelines,
// and citation-graph traversal. Nothing in here writes to the store.
package query

import (
	"context"
	"errors"
	"time"

	"github.com/iceymoss/discovery-engine/internal/conf"
	"github.com/iceymoss/discovery-engine/internal/passes/topics"
	"github.com/iceymoss/discovery-engine/internal/repo"
	"github.com/iceymoss/discovery-engine/pkg/db/objects"
	"github.com/iceymoss/discovery-engine/pkg/xerr"

	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type Service struct {
	cfg       conf.EngineConfig
	artifacts *repo.ArtifactRepo
	scores    *repo.ScoreRepo
	entities  *repo.EntityRepo
	topics    *repo.TopicRepo
	relations *repo.RelationRepo
	now       func() time.Time
}

func NewService(cfg conf.EngineConfig) *Service {
	return &Service{
		cfg:       cfg,
		artifacts: repo.NewArtifactRepo(),
		scores:    repo.NewScoreRepo(),
		entities:  repo.NewEntityRepo(),
		topics:    repo.NewTopicRepo(),
		relations: repo.NewRelationRepo(),
		now:       time.Now,
	}
}

// TopPage is one page of the ranked artifact listing.
type TopPage struct {
	Items      []*repo.ScoredArtifact `json:"items"`
	NextCursor string                 `json:"next_cursor,omitempty"`
}

// TopArtifacts returns the ranked listing after the cursor, optionally
// filtered by source and minimum publish time.
func (s *Service) TopArtifacts(ctx context.Context, limit int, cursorToken, source string,
	publishedAfter time.Time) (*TopPage, error) {

	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	cursor, err := DecodeCursor(cursorToken)
	if err != nil {
		return nil, xerr.Wrap(xerr.ErrConfigInvalid, "invalid cursor", err)
	}

	items, err := s.scores.ListTop(ctx, limit, cursor.Score, cursor.ArtifactID, source, publishedAfter)
	if err != nil {
		return nil, err
	}

	page := &TopPage{Items: items}
	if len(items) == limit {
		last := items[len(items)-1]
		page.NextCursor = Cursor{Score: last.DiscoveryScore, ArtifactID: last.ArtifactID}.Encode()
	}
	return page, nil
}

// EntityView is an entity response with merge resolution applied.
type EntityView struct {
	Entity     *objects.Entity `json:"entity"`
	Canonical  *objects.Entity `json:"canonical,omitempty"`
	AliasCount int64           `json:"alias_count"`
}

// ResolveEntity returns the requested entity and, when it has been merged
// away, the canonical it now resolves to. Merge chains are flattened at write
// time, so one hop always suffices.
func (s *Service) ResolveEntity(ctx context.Context, id uint64) (*EntityView, error) {
	entity, err := s.entities.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, xerr.New(xerr.ErrNotFound, "entity not found")
	}
	if err != nil {
		return nil, err
	}

	view := &EntityView{Entity: entity}
	canonical := entity
	if entity.IsAlias() {
		canonical, err = s.entities.GetByID(ctx, *entity.CanonicalID)
		if err != nil {
			return nil, err
		}
		view.Canonical = canonical
	}
	view.AliasCount, err = s.entities.AliasCount(ctx, canonical.ID)
	if err != nil {
		return nil, err
	}
	return view, nil
}

// TopicTimeline is the lifecycle view of one topic: its events, its daily
// assignment volume over the analysis window, and a short-horizon forecast.
type TopicTimeline struct {
	Topic    *objects.Topic        `json:"topic"`
	Events   []*objects.TopicEvent `json:"events"`
	Daily    []repo.DayCount       `json:"daily"`
	Forecast topics.Forecast       `json:"forecast"`
}

func (s *Service) TopicTimeline(ctx context.Context, topicID uint64) (*TopicTimeline, error) {
	topic, err := s.topics.GetByID(ctx, topicID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, xerr.New(xerr.ErrNotFound, "topic not found")
	}
	if err != nil {
		return nil, err
	}

	events, err := s.topics.ListEventsByTopic(ctx, topicID)
	if err != nil {
		return nil, err
	}

	window := s.cfg.Topics.WindowDays
	since := s.now().AddDate(0, 0, -window)
	daily, err := s.topics.DailyAssignmentCounts(ctx, topicID, since)
	if err != nil {
		return nil, err
	}

	series := DenseDailySeries(daily, since, s.now())
	return &TopicTimeline{
		Topic:    topic,
		Events:   events,
		Daily:    daily,
		Forecast: topics.PredictGrowth(series, s.cfg.Topics.ForecastHorizonDays),
	}, nil
}

// CitationGraph traverses outgoing relationship edges from the root artifact
// breadth-first, bounded by depth and minimum confidence. Depth defaults to
// the configured value and never exceeds its cap.
func (s *Service) CitationGraph(ctx context.Context, rootID uint64, depth int, minConfidence float64) (*Graph, error) {
	if _, err := s.artifacts.GetByID(ctx, rootID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.New(xerr.ErrNotFound, "artifact not found")
		}
		return nil, err
	}

	if depth <= 0 {
		depth = s.cfg.Relations.MaxGraphDepth
	}
	if depth > 3 {
		depth = 3
	}
	return traverse(ctx, s.relations, s.artifacts, rootID, depth, minConfidence)
}

// DenseDailySeries fills the gaps in sparse day counts with zeros so trend
// fitting sees the quiet days too.
func DenseDailySeries(counts []repo.DayCount, since, until time.Time) []float64 {
	byDay := make(map[string]float64, len(counts))
	for _, c := range counts {
		byDay[c.Day] = float64(c.Count)
	}
	var series []float64
	for day := since; !day.After(until); day = day.AddDate(0, 0, 1) {
		series = append(series, byDay[day.Format("2006-01-02")])
	}
	return series
}
