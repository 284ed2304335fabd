package db

import (
	"context"
	"sync"
	"time"

	conf "github.com/iceymoss/discovery-engine/pkg/config"
	zLog "github.com/iceymoss/discovery-engine/pkg/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var mongoConn = make(map[string]*mongo.Client)
var mongoMutex sync.RWMutex

func GetMongoConn() *mongo.Client {
	mongoMutex.RLock()
	conn, ok := mongoConn["main"]
	mongoMutex.RUnlock()
	if ok {
		return conn
	}

	mongoMutex.Lock()
	defer mongoMutex.Unlock()
	if conn, ok = mongoConn["main"]; ok {
		return conn
	}

	mongoUri := conf.ServiceConf.Mongo.Link
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoUri).SetMaxPoolSize(120))
	if err != nil {
		zLog.Error(err.Error())
		return nil
	}

	mongoConn["main"] = client
	return client
}
