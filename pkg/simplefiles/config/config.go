package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/tendant/simple-files/internal/logging"
	"github.com/tendant/simple-files/pkg/simplefiles"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:           "8080",
		Environment:    "development",
		LogLevel:       "info",
		LogFormat:      "text",
		DatabaseURL:    "memory",
		DBSchema:       "files",
		StorageURL:     "memory://",
		EventsURL:      "inproc://",
		EventWorkers:   4,
		MaxUploadBytes: simplefiles.DefaultMaxUploadBytes,
		MetricsEnabled: true,
	}
}

// ServerConfig represents server configuration for the simple-files service.
// Fields are read from files and environment variables by WithFile and WithEnv.
type ServerConfig struct {
	Port        string `yaml:"port" json:"port" env:"PORT"`
	Environment string `yaml:"environment" json:"environment" env:"ENVIRONMENT"`
	LogLevel    string `yaml:"log_level" json:"log_level" env:"LOG_LEVEL"`
	LogFormat   string `yaml:"log_format" json:"log_format" env:"LOG_FORMAT"`

	// Record store: "memory", "postgres://..." or "redis://..."
	DatabaseURL string `yaml:"database_url" json:"database_url" env:"DATABASE_URL"`
	DBSchema    string `yaml:"db_schema" json:"db_schema" env:"DB_SCHEMA"`

	// Object store: "memory://", "file:///path" or "s3://bucket?region=..."
	StorageURL        string `yaml:"storage_url" json:"storage_url" env:"STORAGE_URL"`
	S3AccessKeyID     string `yaml:"s3_access_key_id" json:"s3_access_key_id" env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `yaml:"s3_secret_access_key" json:"s3_secret_access_key" env:"S3_SECRET_ACCESS_KEY"`

	// Object-stored event transport: "inproc://", "nats://host:4222" or "none"
	EventsURL     string `yaml:"events_url" json:"events_url" env:"EVENTS_URL"`
	EventsSubject string `yaml:"events_subject" json:"events_subject" env:"EVENTS_SUBJECT"`
	EventWorkers  int    `yaml:"event_workers" json:"event_workers" env:"EVENT_WORKERS"`

	MaxUploadBytes int64  `yaml:"max_upload_bytes" json:"max_upload_bytes" env:"MAX_UPLOAD_BYTES"`
	APIKeySHA256   string `yaml:"api_key_sha256" json:"api_key_sha256" env:"API_KEY_SHA256"`
	MetricsEnabled bool   `yaml:"metrics_enabled" json:"metrics_enabled" env:"METRICS_ENABLED"`
}

// Record store kinds.
const (
	DatabaseMemory   = "memory"
	DatabasePostgres = "postgres"
	DatabaseRedis    = "redis"
)

// Object store kinds.
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageS3     = "s3"
)

// Event transport kinds.
const (
	EventsInproc = "inproc"
	EventsNATS   = "nats"
	EventsNone   = "none"
)

// DatabaseKind returns the record store selected by DatabaseURL.
func (c *ServerConfig) DatabaseKind() (string, error) {
	switch u := strings.TrimSpace(c.DatabaseURL); {
	case u == "" || u == "memory" || u == "memory://":
		return DatabaseMemory, nil
	case strings.HasPrefix(u, "postgres://") || strings.HasPrefix(u, "postgresql://"):
		return DatabasePostgres, nil
	case strings.HasPrefix(u, "redis://") || strings.HasPrefix(u, "rediss://"):
		return DatabaseRedis, nil
	default:
		return "", fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory', 'postgres://...' or 'redis://...')", redact(u))
	}
}

// StorageKind returns the object store selected by StorageURL.
func (c *ServerConfig) StorageKind() (string, error) {
	switch u := strings.TrimSpace(c.StorageURL); {
	case u == "" || u == "memory" || u == "memory://":
		return StorageMemory, nil
	case strings.HasPrefix(u, "file://"):
		if strings.TrimPrefix(u, "file://") == "" {
			return "", errors.New("filesystem path cannot be empty in STORAGE_URL")
		}
		return StorageFile, nil
	case strings.HasPrefix(u, "s3://"):
		return StorageS3, nil
	default:
		return "", fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...' or 's3://...')", u)
	}
}

// EventsKind returns the event transport selected by EventsURL.
func (c *ServerConfig) EventsKind() (string, error) {
	switch u := strings.TrimSpace(c.EventsURL); {
	case u == "" || u == "inproc" || u == "inproc://":
		return EventsInproc, nil
	case u == "none":
		return EventsNone, nil
	case strings.HasPrefix(u, "nats://") || strings.HasPrefix(u, "tls://"):
		return EventsNATS, nil
	default:
		return "", fmt.Errorf("unsupported EVENTS_URL format: %s (use 'inproc://', 'nats://...' or 'none')", u)
	}
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if f := strings.ToLower(c.LogFormat); f != "" && f != "text" && f != "json" {
		return fmt.Errorf("log_format must be 'text' or 'json', got: %s", c.LogFormat)
	}
	if _, err := c.DatabaseKind(); err != nil {
		return err
	}
	if _, err := c.StorageKind(); err != nil {
		return err
	}
	if _, err := c.EventsKind(); err != nil {
		return err
	}
	if c.EventWorkers <= 0 {
		return fmt.Errorf("event_workers must be positive, got: %d", c.EventWorkers)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive, got: %d", c.MaxUploadBytes)
	}
	return nil
}

// redact hides the password of a connection URL.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
