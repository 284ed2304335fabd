package main

import (
	"log"
	"time"

	"github.com/iceymoss/discovery-engine/internal/conf"
	"github.com/iceymoss/discovery-engine/internal/core"
	"github.com/iceymoss/discovery-engine/internal/engine"
	"github.com/iceymoss/discovery-engine/internal/journal"
	"github.com/iceymoss/discovery-engine/internal/passes/identity"
	"github.com/iceymoss/discovery-engine/internal/passes/relations"
	"github.com/iceymoss/discovery-engine/internal/passes/scoring"
	"github.com/iceymoss/discovery-engine/internal/passes/topics"
	"github.com/iceymoss/discovery-engine/internal/query"
	"github.com/iceymoss/discovery-engine/internal/server"
	"github.com/iceymoss/discovery-engine/pkg/config"
	"github.com/iceymoss/discovery-engine/pkg/db"
	"github.com/iceymoss/discovery-engine/pkg/db/objects"
	"github.com/iceymoss/discovery-engine/pkg/embedding"
	"github.com/iceymoss/discovery-engine/pkg/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file, using environment as-is: %v", err)
	}

	config.InitConfig("configs/service.yaml")

	cfg, err := conf.LoadConfig("configs/config.yaml")
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	if err := migrate(); err != nil {
		logger.Fatal("migrate store", zap.Error(err))
	}

	embedSvc := newEmbeddingService(config.ServiceConf.Embedding)
	registerPasses(cfg, embedSvc)

	recorder := journal.New(db.GetMongoConn(), config.ServiceConf.Mongo.Database)
	scheduler := engine.NewScheduler(recorder)
	queries := query.NewService(cfg.Engine)

	srv := server.NewServer(cfg, scheduler, queries, embedSvc)

	port := cfg.Server.Port
	if port == "" {
		port = ":8080"
	}

	logger.Info("discovery engine listening", zap.String("port", port))
	if err := srv.Run(port); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func migrate() error {
	return db.GetStoreConn().AutoMigrate(
		&objects.Artifact{},
		&objects.Score{},
		&objects.Entity{},
		&objects.Topic{},
		&objects.ArtifactTopic{},
		&objects.TopicEvent{},
		&objects.ArtifactRelationship{},
	)
}

func newEmbeddingService(ec config.EmbeddingConfig) *embedding.Service {
	embedder := embedding.New(embedding.Config{
		Endpoint:  ec.Endpoint,
		Model:     ec.Model,
		Dimension: ec.Dimension,
		BatchSize: ec.BatchSize,
		Timeout:   time.Duration(ec.TimeoutS) * time.Second,
	})
	return embedding.NewService(embedder, embedding.ServiceOptions{
		Remote:  embedding.NewRedisBackend(db.GetRedisConn()),
		Memory:  embedding.NewMemoryCache(ec.L1Size),
		TTL:     time.Duration(ec.CacheTTLH) * time.Hour,
		Workers: ec.Workers,
	})
}

func registerPasses(cfg *conf.Config, embedSvc *embedding.Service) {
	core.Register(scoring.PassName, func() core.Pass {
		return scoring.NewPass(cfg.Engine.Scoring, embedSvc)
	})
	core.Register(identity.PassName, func() core.Pass {
		return identity.NewPass(cfg.Engine.Resolution, embedSvc)
	})
	core.Register(topics.PassName, func() core.Pass {
		return topics.NewPass(cfg.Engine.Topics, embedSvc)
	})
	core.Register(relations.PassName, func() core.Pass {
		return relations.NewPass(cfg.Engine.Relations, embedSvc)
	})
}
