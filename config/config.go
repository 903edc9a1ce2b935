package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	AppEnv        string `env:"APP_ENV, default=dev"`
	Port          string `env:"APP_PORT, default=8080"`
	LogLevel      string `env:"LOG_LEVEL, default=info"`
	LogPretty     bool   `env:"LOG_PRETTY, default=false"`
	SessionSecret string `env:"SECRET_KEY_SESSION"`

	DB        DatabaseConfig
	Storage   StorageConfig
	CORS      CORSConfig
	Telemetry TelemetryConfig
}

type DatabaseConfig struct {
	Engine             string `env:"DB_ENGINE, default=postgres"`
	Host               string `env:"DB_HOST, default=localhost"`
	Port               string `env:"DB_PORT, default=5432"`
	Name               string `env:"DB_NAME"`
	InstanceIdentifier string `env:"DB_INSTANCE_IDENTIFIER"`
	Username           string `env:"DB_USER"`
	Password           string `env:"DB_PASSWORD"`
	SSLMode            string `env:"DB_SSLMODE"`
	AutoMigrate        bool   `env:"DB_AUTO_MIGRATE, default=false"`
}

type StorageConfig struct {
	Driver          string        `env:"STORAGE_DRIVER, default=gcs"`
	Bucket          string        `env:"GCS_BUCKET_NAME"`
	CredentialsJSON string        `env:"GOOGLE_CREDENTIALS_JSON"`
	SignedURLTTL    time.Duration `env:"SIGNED_URL_TTL, default=15m"`

	MinIOEndpoint  string `env:"MINIO_ENDPOINT"`
	MinIOAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinIOSecretKey string `env:"MINIO_SECRET_KEY"`
	MinIOUseSSL    bool   `env:"MINIO_USE_SSL, default=false"`
	MinIORegion    string `env:"MINIO_REGION, default=us-east-1"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS, default=*"`
}

type TelemetryConfig struct {
	ServiceName          string            `env:"OTEL_SERVICE_NAME, default=profile-service"`
	ServiceVersion       string            `env:"OTEL_SERVICE_VERSION, default=dev"`
	OTLPEndpoint         string            `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPTracesEndpoint   string            `env:"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"`
	OTLPMetricsEndpoint  string            `env:"OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"`
	OTLPProtocol         string            `env:"OTEL_EXPORTER_OTLP_PROTOCOL, default=grpc"`
	OTLPHeaders          map[string]string `env:"OTEL_EXPORTER_OTLP_HEADERS"`
	OTLPInsecure         bool              `env:"OTEL_EXPORTER_OTLP_INSECURE, default=false"`
	ExportTimeout        time.Duration     `env:"OTEL_EXPORTER_OTLP_TIMEOUT, default=10s"`
	MetricExportInterval time.Duration     `env:"OTEL_METRIC_EXPORT_INTERVAL, default=60s"`
}

var lookuper envconfig.Lookuper = envconfig.OsLookuper()

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return Config{}, fmt.Errorf("invalid environment: %w", err)
	}

	if cfg.DB.Name == "" {
		cfg.DB.Name = cfg.DB.InstanceIdentifier
	}
	if cfg.DB.SSLMode == "" {
		if cfg.AppEnv == "prod" {
			cfg.DB.SSLMode = "require"
		} else {
			cfg.DB.SSLMode = "disable"
		}
	}
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	cfg.CORS.AllowedOrigins = trimAll(cfg.CORS.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.DB.Name == "" || c.DB.Username == "" {
		return errors.New("DB_NAME (or DB_INSTANCE_IDENTIFIER) and DB_USER must be set")
	}
	if c.AppEnv == "prod" && c.SessionSecret == "" {
		return errors.New("SECRET_KEY_SESSION must be set in prod")
	}
	switch c.Storage.Driver {
	case "gcs", "minio":
	default:
		return fmt.Errorf("invalid STORAGE_DRIVER: %s", c.Storage.Driver)
	}
	if c.Storage.SignedURLTTL <= 0 {
		return fmt.Errorf("invalid SIGNED_URL_TTL: %s", c.Storage.SignedURLTTL)
	}
	return nil
}

// Configured reports whether enough settings are present to reach a bucket.
func (s StorageConfig) Configured() bool {
	if s.Bucket == "" {
		return false
	}
	switch s.Driver {
	case "minio":
		return s.MinIOEndpoint != "" && s.MinIOAccessKey != "" && s.MinIOSecretKey != ""
	default:
		return s.CredentialsJSON != ""
	}
}

func trimAll(values []string) []string {
	var results []string
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}
