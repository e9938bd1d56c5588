package config

import (
	"time"

	"github.com/andriizakutkodev/AutoMarketplace/internal/platform/logger"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds all configuration for the media service.
type Config struct {
	ServiceName            string `mapstructure:"SERVICE_NAME"`
	HTTPPort               string `mapstructure:"HTTP_PORT"`
	MongoURI               string `mapstructure:"MONGO_URI"`
	MongoDatabase          string `mapstructure:"MONGO_DATABASE"`
	RedisAddress           string `mapstructure:"REDIS_ADDRESS"`
	NATSURL                string `mapstructure:"NATS_URL"`
	MinIOEndpoint          string `mapstructure:"MINIO_ENDPOINT"`
	MinIOAccessKey         string `mapstructure:"MINIO_ACCESS_KEY"`
	MinIOSecretKey         string `mapstructure:"MINIO_SECRET_KEY"`
	MinIOBucket            string `mapstructure:"MINIO_BUCKET"`
	MinIOUseSSL            bool   `mapstructure:"MINIO_USE_SSL"`
	JWTSecret              string `mapstructure:"JWT_SECRET"`
	StorageTimeoutSeconds  int    `mapstructure:"STORAGE_TIMEOUT_SECONDS"`
	ReconcilerIntervalSecs int    `mapstructure:"RECONCILER_INTERVAL_SECONDS"`
	ReconcilerMinAgeSecs   int    `mapstructure:"RECONCILER_MIN_AGE_SECONDS"`
	MaxUploadSizeMB        int64  `mapstructure:"MAX_UPLOAD_SIZE_MB"`
	PrometheusMetricsPort  string `mapstructure:"PROMETHEUS_METRICS_PORT"`
	LogLevel               string `mapstructure:"LOG_LEVEL"`
	LogFormat              string `mapstructure:"LOG_FORMAT"`
	OTExporterOTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// StorageTimeout is the bounded timeout applied to each collaborator call.
func (c *Config) StorageTimeout() time.Duration {
	return time.Duration(c.StorageTimeoutSeconds) * time.Second
}

// ReconcilerInterval is how often the intent reconciler sweeps. Zero disables it.
func (c *Config) ReconcilerInterval() time.Duration {
	return time.Duration(c.ReconcilerIntervalSecs) * time.Second
}

// ReconcilerMinAge is how old an intent must be before the reconciler touches it,
// so in-flight operations are never swept out from under the coordinator.
func (c *Config) ReconcilerMinAge() time.Duration {
	return time.Duration(c.ReconcilerMinAgeSecs) * time.Second
}

// LoadConfig reads configuration from environment variables and/or .env file.
func LoadConfig(appLogger *logger.Logger) (*Config, error) {
	viper.SetDefault("SERVICE_NAME", "media-service")
	viper.SetDefault("HTTP_PORT", "8084")
	viper.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	viper.SetDefault("MONGO_DATABASE", "auto_marketplace_media")
	viper.SetDefault("REDIS_ADDRESS", "localhost:6379")
	viper.SetDefault("NATS_URL", "nats://localhost:4222")
	viper.SetDefault("MINIO_ENDPOINT", "localhost:9000")
	viper.SetDefault("MINIO_ACCESS_KEY", "minioadmin")
	viper.SetDefault("MINIO_SECRET_KEY", "minioadmin")
	viper.SetDefault("MINIO_BUCKET", "marketplace-media")
	viper.SetDefault("MINIO_USE_SSL", false)
	viper.SetDefault("JWT_SECRET", "change-me-in-production")
	viper.SetDefault("STORAGE_TIMEOUT_SECONDS", 15)
	viper.SetDefault("RECONCILER_INTERVAL_SECONDS", 60)
	viper.SetDefault("RECONCILER_MIN_AGE_SECONDS", 300)
	viper.SetDefault("MAX_UPLOAD_SIZE_MB", 10)
	viper.SetDefault("PROMETHEUS_METRICS_PORT", "9094")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		appLogger.Error("Failed to unmarshal configuration", zap.Error(err))
		return nil, err
	}

	if cfg.JWTSecret == "change-me-in-production" || cfg.JWTSecret == "" {
		appLogger.Warn("JWT_SECRET is set to its default insecure value or is empty. Please set a strong secret in your environment.")
	}
	if cfg.MongoURI == "" {
		appLogger.Fatal("MONGO_URI is not set. This is required.")
	}
	if cfg.MongoDatabase == "" {
		appLogger.Fatal("MONGO_DATABASE is not set. This is required.")
	}
	if cfg.MinIOEndpoint == "" {
		appLogger.Fatal("MINIO_ENDPOINT is not set. This is required.")
	}
	if cfg.StorageTimeoutSeconds <= 0 {
		appLogger.Warn("STORAGE_TIMEOUT_SECONDS must be positive, falling back to 15.")
		cfg.StorageTimeoutSeconds = 15
	}

	appLogger.Debug("Configuration loaded",
		zap.String("service_name", cfg.ServiceName),
		zap.String("http_port", cfg.HTTPPort),
		zap.Bool("mongo_uri_present", cfg.MongoURI != ""),
		zap.String("mongo_database", cfg.MongoDatabase),
		zap.String("redis_address", cfg.RedisAddress),
		zap.String("nats_url", cfg.NATSURL),
		zap.String("minio_endpoint", cfg.MinIOEndpoint),
		zap.String("minio_bucket", cfg.MinIOBucket),
		zap.Bool("jwt_secret_present", cfg.JWTSecret != ""),
		zap.Int("storage_timeout_seconds", cfg.StorageTimeoutSeconds),
		zap.Int("reconciler_interval_seconds", cfg.ReconcilerIntervalSecs),
		zap.String("prometheus_port", cfg.PrometheusMetricsPort),
	)

	return &cfg, nil
}
