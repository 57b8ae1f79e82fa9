package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"github.com/wb-go/wbf/zlog"
)

// Config holds the main configuration for the application.
type Config struct {
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
	Storage  Storage  `mapstructure:"storage"`
	Limits   Limits   `mapstructure:"limits"`
	Auth     Auth     `mapstructure:"auth"`
	Kafka    Kafka    `mapstructure:"kafka"`
	Retry    Retry    `mapstructure:"retry"`
}

// Server holds HTTP server-related configuration.
type Server struct {
	HTTPPort string `mapstructure:"http_port"` // HTTP port to listen on
}

// Database holds database master and slave configuration.
type Database struct {
	Master DatabaseNode   `mapstructure:"master"`
	Slaves []DatabaseNode `mapstructure:"slaves"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DatabaseNode holds connection parameters for a single database node.
type DatabaseNode struct {
	Host    string `mapstructure:"host"`
	Port    string `mapstructure:"port"`
	User    string `mapstructure:"user"`
	Pass    string `mapstructure:"pass"`
	Name    string `mapstructure:"name"`
	SSLMode string `mapstructure:"ssl_mode"`
}

// Storage holds configuration for the S3-compatible object store. When
// AccessKey or SecretKey is empty the service falls back to local-filesystem
// storage under LocalDir instead of refusing to start.
type Storage struct {
	Endpoint      string `mapstructure:"endpoint"`
	Region        string `mapstructure:"region"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	BucketName    string `mapstructure:"bucket_name"`
	UseSSL        bool   `mapstructure:"use_ssl"`
	PublicBaseURL string `mapstructure:"public_base_url"` // overrides endpoint-derived URLs
	LocalDir      string `mapstructure:"local_dir"`
	LocalBaseURL  string `mapstructure:"local_base_url"`
}

// Limits bounds upload sizes and derived-variant dimensions.
type Limits struct {
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"` // ceiling for originals
	MultipartMemory int64         `mapstructure:"multipart_memory"` // in-memory multipart limit
	ThumbnailSize   int           `mapstructure:"thumbnail_size"`   // square thumbnail edge, px
	OptimizeCap     int           `mapstructure:"optimize_cap"`     // longest-edge cap, px
	SignedURLTTL    time.Duration `mapstructure:"signed_url_ttl"`   // default signed-URL lifetime
}

// Auth holds session token configuration.
type Auth struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// Kafka holds configuration for the ingestion event topic. An empty broker
// list disables event publishing.
type Kafka struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// Retry defines retry policy configuration.
type Retry struct {
	Attempts int           `mapstructure:"attempts"` // Number of retry attempts
	Delay    time.Duration `mapstructure:"delay"`    // Initial delay between retries
	Backoff  float64       `mapstructure:"backoff"`  // Backoff multiplier for delays
}

// DSN returns the PostgreSQL DSN string for connecting to this database node.
func (n DatabaseNode) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		n.User, n.Pass, n.Host, n.Port, n.Name, n.SSLMode,
	)
}

// mustBindEnv binds critical environment variables to Viper keys.
//
// It panics if any environment variable cannot be bound.
func mustBindEnv() {
	bindings := map[string]string{
		"database.master.host":    "DB_HOST",
		"database.master.port":    "DB_PORT",
		"database.master.user":    "DB_USER",
		"database.master.pass":    "DB_PASSWORD",
		"database.master.name":    "DB_NAME",
		"storage.endpoint":        "S3_ENDPOINT",
		"storage.region":          "S3_REGION",
		"storage.access_key":      "S3_ACCESS_KEY",
		"storage.secret_key":      "S3_SECRET_KEY",
		"storage.bucket_name":     "S3_BUCKET",
		"limits.max_upload_bytes": "MAX_FILE_SIZE",
		"auth.jwt_secret":         "JWT_SECRET",
	}

	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			zlog.Logger.Panic().Err(err).Msgf("failed to bind env %s", env)
		}
	}
}

// setDefaults fills in the limits the upload pipeline relies on so a sparse
// config file still yields a working service.
func setDefaults() {
	viper.SetDefault("server.http_port", ":8080")
	viper.SetDefault("limits.max_upload_bytes", int64(500<<20))
	viper.SetDefault("limits.multipart_memory", int64(32<<20))
	viper.SetDefault("limits.thumbnail_size", 300)
	viper.SetDefault("limits.optimize_cap", 1200)
	viper.SetDefault("limits.signed_url_ttl", time.Hour)
	viper.SetDefault("auth.token_ttl", 24*time.Hour)
	viper.SetDefault("storage.local_dir", "./uploads")
	viper.SetDefault("storage.local_base_url", "http://localhost:8080/uploads")
	viper.SetDefault("retry.attempts", 3)
	viper.SetDefault("retry.delay", 100*time.Millisecond)
	viper.SetDefault("retry.backoff", 2.0)
}

// MustLoad loads the configuration from the specified directory.
// It panics if the configuration file cannot be loaded or unmarshaled.
func MustLoad(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(path)
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		zlog.Logger.Panic().Err(err).Msg("failed to read config")
	}

	mustBindEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		zlog.Logger.Panic().Err(err).Msgf("failed to unmarshal config: %v", err)
	}

	return &cfg
}
