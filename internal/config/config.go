// Package config centralises configuration parsing for the juno binaries.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config captures runtime configuration values shared by the binaries.
type Config struct {
	HTTPAddress       string `env:"HTTP_ADDRESS"        envDefault:":8080"`
	MetricsAddress    string `env:"METRICS_ADDRESS"     envDefault:":9102"`
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"http://localhost:5173"`

	// PostgresURL selects the Postgres store. Empty keeps logs in memory.
	PostgresURL string `env:"POSTGRES_URL"`

	KafkaBrokers      []string `env:"KAFKA_BROKERS"       envSeparator:"," envDefault:"kafka:9092"`
	SchemaRegistryURL string   `env:"SCHEMA_REGISTRY_URL" envDefault:"http://schema-registry:8081"`

	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE"    envDefault:"25"`

	DLQPollInterval time.Duration `env:"DLQ_POLL_INTERVAL" envDefault:"30s"` // Interval between DLQ polling iterations.
	DLQMaxRetries   int           `env:"DLQ_MAX_RETRIES"   envDefault:"5"`   // Replays before an entry is quarantined.
	DLQBaseDelay    time.Duration `env:"DLQ_BASE_DELAY"    envDefault:"1m"`  // Base delay for exponential backoff.
	DLQBatchSize    int           `env:"DLQ_BATCH_SIZE"    envDefault:"50"`

	ConsumerGroupID string   `env:"CONSUMER_GROUP_ID" envDefault:"juno-profile-projection"`
	ConsumerTopics  []string `env:"CONSUMER_TOPICS"   envSeparator:"," envDefault:"log_events"`

	JWTSecret string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	JWTIssuer string `env:"JWT_ISSUER" envDefault:"juno.identity"`

	// RedisAddress selects the Redis view-state store. Empty keeps it in memory.
	RedisAddress  string `env:"REDIS_ADDRESS"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// ViewStateTTL expires idle expansion state in Redis. Zero keeps it.
	ViewStateTTL time.Duration `env:"VIEW_STATE_TTL" envDefault:"720h"`

	// PhotoBucket enables photo blob deletion on S3-compatible storage.
	PhotoBucket       string `env:"PHOTO_BUCKET"`
	PhotoRegion       string `env:"PHOTO_REGION"        envDefault:"us-east-1"`
	PhotoEndpoint     string `env:"PHOTO_ENDPOINT"`
	PhotoAccessKey    string `env:"PHOTO_ACCESS_KEY"`
	PhotoSecretKey    string `env:"PHOTO_SECRET_KEY"`
	PhotoUsePathStyle bool   `env:"PHOTO_USE_PATH_STYLE" envDefault:"false"`

	Timezone string `env:"JUNO_TIMEZONE" envDefault:"Local"`
	Locale   string `env:"JUNO_LOCALE"   envDefault:"en-US"`
}

// Load reads an optional .env file and then the environment. Variables
// already set in the environment win over the file.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", file, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.KafkaBrokers = splitAndTrim(cfg.KafkaBrokers)
	cfg.ConsumerTopics = splitAndTrim(cfg.ConsumerTopics)
	if _, err := cfg.Location(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Location resolves Timezone. "Local" and "" use the host zone.
func (c Config) Location() (*time.Location, error) {
	switch strings.TrimSpace(c.Timezone) {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(strings.TrimSpace(c.Timezone))
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func splitAndTrim(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
