package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// WithEnv reads settings from the environment. Variables that are set
// override earlier options; unset ones leave the current value alone.
//
// Variables: PORT, ENVIRONMENT, LOG_LEVEL, LOG_FORMAT, DATABASE_URL,
// DB_SCHEMA, STORAGE_URL, S3_ACCESS_KEY_ID, S3_SECRET_ACCESS_KEY,
// EVENTS_URL, EVENTS_SUBJECT, EVENT_WORKERS, MAX_UPLOAD_BYTES,
// API_KEY_SHA256, METRICS_ENABLED.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		if err := cleanenv.ReadEnv(c); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}
		return nil
	}
}

// WithFile reads settings from a YAML, JSON, TOML or .env file. Environment
// variables override values from the file.
func WithFile(path string) Option {
	return func(c *ServerConfig) error {
		if err := cleanenv.ReadConfig(path, c); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil
	}
}

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithDatabaseURL selects the record store.
func WithDatabaseURL(url string) Option {
	return func(c *ServerConfig) error {
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithStorageURL selects the object store.
func WithStorageURL(url string) Option {
	return func(c *ServerConfig) error {
		c.StorageURL = url
		return nil
	}
}

// WithEventsURL selects the object-stored event transport.
func WithEventsURL(url string) Option {
	return func(c *ServerConfig) error {
		c.EventsURL = url
		return nil
	}
}

// WithMaxUploadBytes sets the upload size limit.
func WithMaxUploadBytes(n int64) Option {
	return func(c *ServerConfig) error {
		if n <= 0 {
			return fmt.Errorf("max upload bytes must be positive, got: %d", n)
		}
		c.MaxUploadBytes = n
		return nil
	}
}

// WithMetrics enables or disables the Prometheus collector.
func WithMetrics(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.MetricsEnabled = enabled
		return nil
	}
}
