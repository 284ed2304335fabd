package server

import (
	"errors"
	"strconv"
	"time"

	"github.com/iceymoss/discovery-engine/internal/conf"
	"github.com/iceymoss/discovery-engine/internal/engine"
	"github.com/iceymoss/discovery-engine/internal/query"
	"github.com/iceymoss/discovery-engine/pkg/embedding"
	zLog "github.com/iceymoss/discovery-engine/pkg/logger"
	"github.com/iceymoss/discovery-engine/pkg/xerr"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	engine    *gin.Engine
	scheduler *engine.Scheduler
}

func NewServer(cfg *conf.Config, scheduler *engine.Scheduler,
	queries *query.Service, embed *embedding.Service) *Server {

	for _, pass := range cfg.Passes {
		if !pass.Enable {
			continue
		}
		err := scheduler.AddPass(pass.Cron, pass.Name, pass.Params, "yaml")
		if err != nil {
			zLog.Warn("failed to schedule pass", zap.String("pass", pass.Name), zap.Error(err))
		} else {
			zLog.Info("pass scheduled", zap.String("pass", pass.Name), zap.String("cron", pass.Cron))
		}
	}

	router := gin.Default()

	api := router.Group("/api")
	{
		api.GET("/passes", func(c *gin.Context) {
			c.JSON(200, gin.H{"data": scheduler.Stats.GetAll()})
		})

		api.POST("/passes/:name/run", func(c *gin.Context) {
			name := c.Param("name")
			if err := scheduler.ManualRun(name); err != nil {
				c.JSON(400, gin.H{"error": err.Error()})
				return
			}
			c.JSON(200, gin.H{"message": "Triggered"})
		})

		api.GET("/artifacts/top", func(c *gin.Context) {
			limit, _ := strconv.Atoi(c.Query("limit"))
			var publishedAfter time.Time
			if raw := c.Query("published_after"); raw != "" {
				t, err := time.Parse(time.RFC3339, raw)
				if err != nil {
					c.JSON(400, gin.H{"error": "published_after must be RFC3339"})
					return
				}
				publishedAfter = t
			}
			page, err := queries.TopArtifacts(c.Request.Context(), limit,
				c.Query("cursor"), c.Query("source"), publishedAfter)
			if err != nil {
				c.JSON(httpStatus(err), gin.H{"error": err.Error()})
				return
			}
			c.JSON(200, gin.H{"data": page})
		})

		api.GET("/entities/:id", func(c *gin.Context) {
			id, err := strconv.ParseUint(c.Param("id"), 10, 64)
			if err != nil {
				c.JSON(400, gin.H{"error": "invalid entity id"})
				return
			}
			view, err := queries.ResolveEntity(c.Request.Context(), id)
			if err != nil {
				c.JSON(httpStatus(err), gin.H{"error": err.Error()})
				return
			}
			c.JSON(200, gin.H{"data": view})
		})

		api.GET("/topics/:id/timeline", func(c *gin.Context) {
			id, err := strconv.ParseUint(c.Param("id"), 10, 64)
			if err != nil {
				c.JSON(400, gin.H{"error": "invalid topic id"})
				return
			}
			timeline, err := queries.TopicTimeline(c.Request.Context(), id)
			if err != nil {
				c.JSON(httpStatus(err), gin.H{"error": err.Error()})
				return
			}
			c.JSON(200, gin.H{"data": timeline})
		})

		api.GET("/artifacts/:id/graph", func(c *gin.Context) {
			id, err := strconv.ParseUint(c.Param("id"), 10, 64)
			if err != nil {
				c.JSON(400, gin.H{"error": "invalid artifact id"})
				return
			}
			depth, _ := strconv.Atoi(c.Query("depth"))
			minConfidence, _ := strconv.ParseFloat(c.Query("min_confidence"), 64)
			graph, err := queries.CitationGraph(c.Request.Context(), id, depth, minConfidence)
			if err != nil {
				c.JSON(httpStatus(err), gin.H{"error": err.Error()})
				return
			}
			c.JSON(200, gin.H{"data": graph})
		})

		api.GET("/embeddings/stats", func(c *gin.Context) {
			c.JSON(200, gin.H{"data": embed.Stats()})
		})
	}

	return &Server{engine: router, scheduler: scheduler}
}

func httpStatus(err error) int {
	var cm *xerr.CodeMsg
	if errors.As(err, &cm) {
		switch cm.Code {
		case xerr.ErrNotFound:
			return 404
		case xerr.ErrConfigInvalid:
			return 400
		}
	}
	return 500
}

func (s *Server) Run(addr string) error {
	s.scheduler.Start()
	return s.engine.Run(addr)
}
