// Package config loads service settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Store engines
const (
	EngineMemory    = "memory"
	EngineCouchbase = "couchbase"
	EngineDynamoDB  = "dynamodb"
)

// Config holds every environment-supplied setting. None of them change
// protocol behaviour; they select which store, bucket and CDN to use.
type Config struct {
	APIPort          string `envconfig:"API_PORT" default:"8080"`
	LogLevel         string `envconfig:"API_LOG_LEVEL" default:"info"`
	AppName          string `envconfig:"APP_NAME" default:"wardbook"`
	ElasticsearchURL string `envconfig:"ELASTICSEARCH_URL"`

	StoreEngine string `envconfig:"STORE_ENGINE" default:"memory"`
	TableName   string `envconfig:"TABLE_NAME" default:"wardbook"`

	AWSRegion        string `envconfig:"AWS_REGION" default:"us-east-1"`
	DynamoDBEndpoint string `envconfig:"DYNAMODB_ENDPOINT"`

	CouchbaseURL        string `envconfig:"COUCHBASE_URL" default:"couchbase://localhost"`
	CouchbaseUsername   string `envconfig:"COUCHBASE_USERNAME"`
	CouchbasePassword   string `envconfig:"COUCHBASE_PASSWORD"`
	CouchbaseBucket     string `envconfig:"COUCHBASE_BUCKET" default:"wardbook"`
	CouchbaseScope      string `envconfig:"COUCHBASE_SCOPE" default:"_default"`
	CouchbaseCollection string `envconfig:"COUCHBASE_COLLECTION" default:"_default"`

	CDNDomain    string        `envconfig:"CDN_DOMAIN"`
	CursorSecret string        `envconfig:"CURSOR_SECRET"`
	CursorTTL    time.Duration `envconfig:"CURSOR_TTL" default:"24h"`

	DefaultPageSize int `envconfig:"DEFAULT_PAGE_SIZE" default:"50"`
	MaxPageSize     int `envconfig:"MAX_PAGE_SIZE" default:"200"`

	EnableBusinessMetrics bool          `envconfig:"ENABLE_BUSINESS_METRICS" default:"false"`
	EnableSystemMetrics   bool          `envconfig:"ENABLE_SYSTEM_METRICS" default:"false"`
	SystemMetricsInterval time.Duration `envconfig:"SYSTEM_METRICS_INTERVAL" default:"15s"`

	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"0"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" default:"20"`

	ChecklistCacheTTL time.Duration `envconfig:"CHECKLIST_CACHE_TTL" default:"60s"`
	RequireIdentity   bool          `envconfig:"REQUIRE_IDENTITY" default:"false"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	ReconcileInterval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"0"`
	ReconcileWorkers  int           `envconfig:"RECONCILE_WORKERS" default:"8"`
}

// LoadDotEnv loads the first .env file found among paths. Missing files are
// not an error; the process environment always wins.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env", "../.env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err == nil {
			log.Info().Str("path", p).Msg("Loaded .env file")
			return
		}
	}
	log.Info().Msg("No .env file found, assuming environment variables are set")
}

// Load decodes the environment into a Config and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects inconsistent settings
func (c *Config) Validate() error {
	switch c.StoreEngine {
	case EngineMemory, EngineCouchbase, EngineDynamoDB:
	default:
		return fmt.Errorf("unknown STORE_ENGINE %q", c.StoreEngine)
	}
	if c.MaxPageSize <= 0 {
		return fmt.Errorf("MAX_PAGE_SIZE must be positive")
	}
	if c.DefaultPageSize <= 0 || c.DefaultPageSize > c.MaxPageSize {
		return fmt.Errorf("DEFAULT_PAGE_SIZE must be between 1 and MAX_PAGE_SIZE")
	}
	if c.StoreEngine == EngineCouchbase && c.CouchbaseUsername == "" {
		return fmt.Errorf("COUCHBASE_USERNAME is required for the couchbase engine")
	}
	return nil
}
