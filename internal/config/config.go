package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration.
type Config struct {
	Port  string `env:"PORT" envDefault:"8080"`
	Debug bool   `env:"DEBUG" envDefault:"false"`
	// LogJSON switches console logging to JSON lines.
	LogJSON bool `env:"LOG_JSON" envDefault:"false"`

	DatabaseURL    string `env:"DATABASE_URL,required,notEmpty"`
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"migrations"`
	// GraphTxTimeout bounds every graph transaction.
	GraphTxTimeout time.Duration `env:"GRAPH_TX_TIMEOUT" envDefault:"30s"`

	Auth    AuthConfig
	Plugins PluginsConfig
	Sqids   SqidsConfig
	Rabbit  RabbitConfig
	Storage StorageConfig

	// AllowedOrigins for websocket upgrades; empty allows any origin.
	AllowedOrigins  []string      `env:"WS_ALLOWED_ORIGINS" envSeparator:","`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

type AuthConfig struct {
	URL            string `env:"AUTH_URL"`
	MasterAPIKey   string `env:"MASTER_API_KEY"`
	MasterUserID   int64  `env:"MASTER_USER_ID" envDefault:"0"`
	MasterUserRole string `env:"MASTER_USER_ROLE"`
}

// JWKSURL is where signing keys are published.
func (a *AuthConfig) JWKSURL() string {
	return strings.TrimSuffix(a.URL, "/") + "/jwks"
}

type PluginsConfig struct {
	URL         string        `env:"PLUGINS_URL" envDefault:"http://plugins:42562"`
	MaxParallel int64         `env:"PLUGINS_MAX_PARALLEL" envDefault:"8"`
	Retries     int           `env:"PLUGINS_RETRIES" envDefault:"3"`
	Backoff     time.Duration `env:"PLUGINS_BACKOFF" envDefault:"250ms"`
}

type SqidsConfig struct {
	Alphabet  string `env:"SQIDS_ALPHABET" envDefault:"RQWMLGFATEYHDSIUKXNCOVZJPB"`
	MinLength uint8  `env:"SQIDS_MIN_LENGTH" envDefault:"4"`
}

type RabbitConfig struct {
	User     string `env:"RABBITMQ_USER"`
	Password string `env:"RABBITMQ_PASSWORD"`
	Host     string `env:"RABBITMQ_HOST"`
	Port     string `env:"RABBITMQ_PORT" envDefault:"5672"`
}

// IsConfigured reports whether a broker is available.
func (r *RabbitConfig) IsConfigured() bool {
	return r.Host != ""
}

// URL returns the AMQP connection string.
func (r *RabbitConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", r.User, r.Password, r.Host, r.Port)
}

type StorageConfig struct {
	Region    string `env:"AWS_REGION" envDefault:"us-east-1"`
	Endpoint  string `env:"AWS_ENDPOINT"`
	AccessKey string `env:"AWS_ACCESS_KEY"`
	SecretKey string `env:"AWS_SECRET_KEY"`
	Bucket    string `env:"AWS_BUCKET" envDefault:"plugins"`
}

// IsConfigured reports whether plugin sources can be stored.
func (s *StorageConfig) IsConfigured() bool {
	return s.Endpoint != "" || s.AccessKey != ""
}

// Load parses the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.GraphTxTimeout < 0 {
		return nil, fmt.Errorf("GRAPH_TX_TIMEOUT must not be negative")
	}
	return cfg, nil
}
