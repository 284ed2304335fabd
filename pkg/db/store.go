package db

import (
	"fmt"
	"strconv"
	"sync"

	conf "github.com/iceymoss/discovery-engine/pkg/config"
	zLog "github.com/iceymoss/discovery-engine/pkg/logger"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const STORE_MAIN = "main"

var storeConn = make(map[string]*gorm.DB)
var storeMutex sync.RWMutex

// SetStoreConn replaces the shared connection. Tests use it to point the
// repositories at an in-memory database.
func SetStoreConn(conn *gorm.DB) {
	storeMutex.Lock()
	defer storeMutex.Unlock()
	storeConn[STORE_MAIN] = conn
}

// GetStoreConn returns the shared relational store connection. The driver is
// selected by config so the same engine runs against mysql or postgres.
func GetStoreConn() *gorm.DB {
	storeMutex.RLock()
	conn, ok := storeConn[STORE_MAIN]
	storeMutex.RUnlock()
	if ok {
		return conn
	}

	storeMutex.Lock()
	defer storeMutex.Unlock()
	if conn, ok = storeConn[STORE_MAIN]; ok {
		return conn
	}

	cfg := conf.ServiceConf.Store

	var gormLevel gormLogger.LogLevel
	switch cfg.LogLevel {
	case "debug", "info":
		gormLevel = gormLogger.Info
	case "warning":
		gormLevel = gormLogger.Warn
	default:
		gormLevel = gormLogger.Error
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
			cfg.Host, cfg.User, cfg.Password, cfg.DbName, cfg.Port)
		dialector = postgres.Open(dsn)
	default:
		dsn := cfg.User + ":" + cfg.Password + "@tcp(" + cfg.Host + ":" + strconv.Itoa(cfg.Port) + ")/" +
			cfg.DbName + "?charset=utf8mb4&parseTime=True&loc=Local"
		dialector = mysql.Open(dsn)
	}

	dbConn, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLevel),
	})
	if err != nil {
		zLog.Error("store connect failed: " + err.Error())
		return nil
	}

	pool, poolErr := dbConn.DB()
	if poolErr != nil {
		zLog.Error(poolErr.Error())
	} else {
		pool.SetMaxOpenConns(30)
		pool.SetMaxIdleConns(15)
	}

	storeConn[STORE_MAIN] = dbConn
	return dbConn
}
