// Package journal persists pass-run summaries to mongo so operators can audit
// what each batch run processed, skipped and errored. The journal is strictly
// best-effort: an unreachable mongo never fails a pass.
package journal

import (
	"context"
	"time"

	"github.com/iceymoss/discovery-engine/internal/engine"
	zLog "github.com/iceymoss/discovery-engine/pkg/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const collection = "pass_runs"

type Journal struct {
	client   *mongo.Client
	database string
}

func New(client *mongo.Client, database string) *Journal {
	if database == "" {
		database = "discovery"
	}
	return &Journal{client: client, database: database}
}

func (j *Journal) Record(ctx context.Context, run engine.PassRun) {
	if j == nil || j.client == nil {
		return
	}
	insertCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := j.client.Database(j.database).Collection(collection).InsertOne(insertCtx, run)
	if err != nil {
		zLog.Warn("pass journal write failed", zap.String("pass", run.Pass), zap.Error(err))
	}
}
