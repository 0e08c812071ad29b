package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// UploadConfig holds upload acceptance configuration
type UploadConfig struct {
	BaseDir      string `mapstructure:"base_dir"`
	MaxSizeBytes int64  `mapstructure:"max_size_bytes"`
}

// WorkerConfig holds the processing worker pool configuration
type WorkerConfig struct {
	PoolSize   int `mapstructure:"pool_size"`
	QueueSize  int `mapstructure:"queue_size"`
	MaxRetries int `mapstructure:"max_retries"` // extra attempts for retryable failures
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// RetentionConfig holds the sweeper's retention policy
type RetentionConfig struct {
	MaxAge time.Duration `mapstructure:"max_age"`
}

// Config is the full application configuration
type Config struct {
	Debug     bool            `mapstructure:"debug"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Retention RetentionConfig `mapstructure:"retention"`
}

// Load reads configuration from an optional yaml file plus SALESBOARD_*
// environment variables. A missing config file is fine unless one was named
// explicitly; env vars and defaults then carry everything.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("config/")
	}

	v.SetEnvPrefix("SALESBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8081)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("upload.base_dir", "uploads")
	v.SetDefault("upload.max_size_bytes", int64(50)<<20) // 50 MiB
	v.SetDefault("worker.pool_size", 4)
	v.SetDefault("worker.queue_size", 64)
	v.SetDefault("worker.max_retries", 2)
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("retention.max_age", 7*24*time.Hour)
}

// bindEnvKeys explicitly binds every key so env vars map onto struct fields
// even when no config file exists.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"debug",
		"server.host",
		"server.port",
		"database.dsn",
		"database.auto_migrate",
		"upload.base_dir",
		"upload.max_size_bytes",
		"worker.pool_size",
		"worker.queue_size",
		"worker.max_retries",
		"auth.jwt_secret",
		"auth.token_ttl",
		"retention.max_age",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}
