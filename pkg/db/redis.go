package db

import (
	"fmt"
	"sync"

	conf "github.com/iceymoss/discovery-engine/pkg/config"

	"github.com/go-redis/redis/v8"
)

const DISCOVERY_RDB = "main"

var redisConn = make(map[string]*redis.Client)
var redisMutex sync.RWMutex

func GetRedisConn() *redis.Client {
	redisMutex.RLock()
	rdb, ok := redisConn[DISCOVERY_RDB]
	redisMutex.RUnlock()
	if ok {
		return rdb
	}

	redisMutex.Lock()
	defer redisMutex.Unlock()
	if rdb, ok = redisConn[DISCOVERY_RDB]; ok {
		return rdb
	}

	opt := redis.Options{
		Addr:     fmt.Sprintf("%s:%d", conf.ServiceConf.RedisDB.Host, conf.ServiceConf.RedisDB.Port),
		Password: conf.ServiceConf.RedisDB.Password,
		DB:       conf.ServiceConf.RedisDB.DB,
	}
	rdb = redis.NewClient(&opt)
	redisConn[DISCOVERY_RDB] = rdb
	return rdb
}
