package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
	DB          DBConfig          `mapstructure:"db"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Session     SessionConfig     `mapstructure:"session"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	WebSocket   WebSocketConfig   `mapstructure:"websocket"`
	Log         LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	Address        string   `mapstructure:"address"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// StorageConfig 選擇持久化後端: "postgres" 或 "memory"
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type DBConfig struct {
	Host         string `mapstructure:"host"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	Port         int    `mapstructure:"port"`
	TimeZone     string `mapstructure:"timezone"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// RedisConfig Addr 為空時停用排行榜鏡像
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type SessionConfig struct {
	IdleTTL          time.Duration `mapstructure:"idle_ttl"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	DefaultTimeLimit time.Duration `mapstructure:"default_time_limit"`
	DefaultPoints    int           `mapstructure:"default_points"`
	CodeLength       int           `mapstructure:"code_length"`
	CodeRetries      int           `mapstructure:"code_retries"`
}

type PersistenceConfig struct {
	Workers      int           `mapstructure:"workers"`
	QueueSize    int           `mapstructure:"queue_size"`
	Retries      int           `mapstructure:"retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type WebSocketConfig struct {
	SendBuffer int           `mapstructure:"send_buffer"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults 註冊所有設定的預設值
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("storage.driver", "memory")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "partygame")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 5)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("session.idle_ttl", 30*time.Minute)
	v.SetDefault("session.sweep_interval", time.Minute)
	v.SetDefault("session.default_time_limit", 20*time.Second)
	v.SetDefault("session.default_points", 100)
	v.SetDefault("session.code_length", 6)
	v.SetDefault("session.code_retries", 10)

	v.SetDefault("persistence.workers", 4)
	v.SetDefault("persistence.queue_size", 1024)
	v.SetDefault("persistence.retries", 3)
	v.SetDefault("persistence.retry_backoff", 200*time.Millisecond)
	v.SetDefault("persistence.timeout", 5*time.Second)

	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("websocket.read_limit", 4096)
	v.SetDefault("websocket.pong_wait", 60*time.Second)
	v.SetDefault("websocket.ping_period", 54*time.Second)
	v.SetDefault("websocket.write_wait", 10*time.Second)

	v.SetDefault("log.level", "INFO")
	v.SetDefault("log.format", "json")
}

// Load 讀取設定檔與環境變數 (前綴 PARTYGAME_)，找不到設定檔時使用預設值
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./pkg/config")

	v.SetEnvPrefix("partygame")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate 檢查設定值是否合理
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return errors.New("storage.driver must be \"postgres\" or \"memory\"")
	}
	if c.Session.CodeLength < 4 {
		return errors.New("session.code_length must be at least 4")
	}
	if c.Session.CodeRetries < 1 {
		return errors.New("session.code_retries must be at least 1")
	}
	if c.Session.DefaultPoints < 0 {
		return errors.New("session.default_points must not be negative")
	}
	if c.Persistence.Workers < 1 {
		return errors.New("persistence.workers must be at least 1")
	}
	if c.WebSocket.PingPeriod >= c.WebSocket.PongWait {
		return errors.New("websocket.ping_period must be shorter than websocket.pong_wait")
	}
	return nil
}
