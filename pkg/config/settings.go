package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

var ServiceConf *ServiceConfig

// StoreConfig relational store connection (mysql or postgres)
type StoreConfig struct {
	Driver   string `mapstructure:"driver" json:"driver"` // mysql / postgres
	Host     string `mapstructure:"host" json:"host"`
	Port     int    `mapstructure:"port" json:"port"`
	User     string `mapstructure:"user" json:"user"`
	Password string `mapstructure:"password" json:"password"`
	DbName   string `mapstructure:"dbname" json:"dbname"`
	LogLevel string `mapstructure:"logLevel" json:"logLevel"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host" json:"host"`
	Port     int    `mapstructure:"port" json:"port"`
	Password string `mapstructure:"password" json:"password"`
	DB       int    `mapstructure:"db" json:"db"`
}

type MongoDB struct {
	Link     string `mapstructure:"link" json:"link"`
	Database string `mapstructure:"database" json:"database"`
}

// EmbeddingConfig OpenAI-compatible embedding server
type EmbeddingConfig struct {
	Endpoint  string `mapstructure:"endpoint" json:"endpoint"`
	Model     string `mapstructure:"model" json:"model"`
	Dimension int    `mapstructure:"dimension" json:"dimension"`
	BatchSize int    `mapstructure:"batchSize" json:"batchSize"`
	Workers   int    `mapstructure:"workers" json:"workers"`
	TimeoutS  int    `mapstructure:"timeoutSeconds" json:"timeoutSeconds"`
	CacheTTLH int    `mapstructure:"cacheTTLHours" json:"cacheTTLHours"`
	L1Size    int    `mapstructure:"l1Size" json:"l1Size"`
}

type ServiceConfig struct {
	Store     StoreConfig     `mapstructure:"store" json:"store"`
	RedisDB   RedisConfig     `mapstructure:"redis" json:"redis"`
	Mongo     MongoDB         `mapstructure:"mongo" json:"mongo"`
	Embedding EmbeddingConfig `mapstructure:"embedding" json:"embedding"`
}

func InitConfig(configFile string) {
	v := viper.New()
	v.SetConfigFile(configFile)

	if err := v.ReadInConfig(); err != nil {
		panic(fmt.Sprintf("read service config: %v", err))
	}

	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.Contains(val, "${") {
			v.Set(key, os.ExpandEnv(val))
		}
	}

	if err := v.Unmarshal(&ServiceConf); err != nil {
		panic(fmt.Sprintf("unmarshal service config: %v", err))
	}
}
