package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	MongoDB  MongoDBConfig
	Redis    RedisConfig
	Poller   PollerConfig
	Stream   StreamConfig
	JWT      JWTConfig
	LogLevel string
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string
	AllowedHosts []string
}

// MongoDBConfig holds MongoDB-specific configuration
type MongoDBConfig struct {
	URI      string
	Database string
}

// RedisConfig holds fabric (Redis) pool and retry configuration
type RedisConfig struct {
	Addr              string
	Password          string
	DB                int
	PoolSize          int
	MinIdleConns      int
	PoolTimeout       time.Duration
	ConnMaxIdleTime   time.Duration
	MaxRetries        int
	MinRetryBackoff   time.Duration
	MaxRetryBackoff   time.Duration
	DialTimeout       time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	HeartbeatInterval time.Duration
}

// PollerConfig holds scrape-task configuration
type PollerConfig struct {
	BaseURL      string
	LiveInterval time.Duration // cycle interval inside the live window
	IdleInterval time.Duration // cycle interval outside it
	Deadline     time.Duration // hard wall-clock budget per task
	FetchTimeout time.Duration // per-attempt budget
	FetchRetries int
	LeaseTTL     time.Duration
	CacheTTL     time.Duration // fabric hash expiry
}

// StreamConfig holds subscriber-session configuration
type StreamConfig struct {
	HeartbeatInterval time.Duration
	IdleTimeout       time.Duration
	SweepInterval     time.Duration
	DedupWindow       time.Duration
	FanoutChunkSize   int
	SessionBuffer     int
}

// JWTConfig holds JWT-specific configuration for the admin endpoints
type JWTConfig struct {
	Secret    string
	ExpiresIn int
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(GetEnv("CONFIG_PATH", "."))
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// It's okay if config file is not found, we'll use environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults sets default values for configuration
func setDefaults() {
	viper.SetDefault("Server.Port", "4000")
	viper.SetDefault("Server.AllowedHosts", []string{"localhost:3000"})

	viper.SetDefault("MongoDB.URI", "mongodb://localhost:27017")
	viper.SetDefault("MongoDB.Database", "xoso-live")

	viper.SetDefault("Redis.Addr", "localhost:6379")
	viper.SetDefault("Redis.DB", 0)
	viper.SetDefault("Redis.PoolSize", 20)
	viper.SetDefault("Redis.MinIdleConns", 2)
	viper.SetDefault("Redis.PoolTimeout", 5*time.Second)
	viper.SetDefault("Redis.ConnMaxIdleTime", 5*time.Minute)
	viper.SetDefault("Redis.MaxRetries", 5)
	viper.SetDefault("Redis.MinRetryBackoff", 100*time.Millisecond)
	viper.SetDefault("Redis.MaxRetryBackoff", 3*time.Second)
	viper.SetDefault("Redis.DialTimeout", 5*time.Second)
	viper.SetDefault("Redis.ReadTimeout", 3*time.Second)
	viper.SetDefault("Redis.WriteTimeout", 3*time.Second)
	viper.SetDefault("Redis.HeartbeatInterval", 30*time.Second)

	viper.SetDefault("Poller.BaseURL", "https://xskt.com.vn")
	viper.SetDefault("Poller.LiveInterval", 10*time.Second)
	viper.SetDefault("Poller.IdleInterval", 30*time.Second)
	viper.SetDefault("Poller.Deadline", 20*time.Minute)
	viper.SetDefault("Poller.FetchTimeout", 10*time.Second)
	viper.SetDefault("Poller.FetchRetries", 3)
	viper.SetDefault("Poller.LeaseTTL", 90*time.Second)
	viper.SetDefault("Poller.CacheTTL", 4*time.Hour)

	viper.SetDefault("Stream.HeartbeatInterval", 15*time.Second)
	viper.SetDefault("Stream.IdleTimeout", 5*time.Minute)
	viper.SetDefault("Stream.SweepInterval", time.Minute)
	viper.SetDefault("Stream.DedupWindow", 10*time.Minute)
	viper.SetDefault("Stream.FanoutChunkSize", 64)
	viper.SetDefault("Stream.SessionBuffer", 32)

	viper.SetDefault("JWT.ExpiresIn", 24*60*60) // 24 hours
	viper.SetDefault("LogLevel", "info")
}
