// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Normalize NormalizeConfig
	Lookup    LookupConfig
	Server    ServerConfig
	Rate      RateLimitConfig
	Security  SecurityConfig
	Logging   LoggingConfig
}

// NormalizeConfig holds per-run normalization settings. CLI flags and web
// form fields override these.
type NormalizeConfig struct {
	// HashEnabled replaces output values with SHA-256 digests (default: false)
	HashEnabled bool `env:"HASH_ENABLED" default:"false"`

	// FormatOnly writes normalized plain values; excludes HashEnabled (default: false)
	FormatOnly bool `env:"FORMAT_ONLY" default:"false"`

	// DefaultRegion is the ISO2 region for phones on rows without a country (default: US)
	DefaultRegion string `env:"DEFAULT_REGION" default:"US"`

	// TranslationsFile is an optional YAML file of extra header spellings
	TranslationsFile string `env:"TRANSLATIONS_FILE"`

	// InferZip fills missing zips from city and state (default: false)
	InferZip bool `env:"INFER_ZIP" default:"false"`

	// EmailCanonical applies provider mailbox rules to emails (default: false)
	EmailCanonical bool `env:"EMAIL_CANONICAL" default:"false"`

	// BatchSize is the number of rows read ahead for concurrent zip lookups (default: 256)
	BatchSize int `env:"NORMALIZE_BATCH_SIZE" default:"256"`
}

// Hash reports whether output should be hashed.
func (c NormalizeConfig) Hash() bool {
	return c.HashEnabled && !c.FormatOnly
}

// Zip lookup backends.
const (
	BackendNone     = "none"
	BackendCSV      = "csv"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// LookupConfig holds zip lookup backend settings.
type LookupConfig struct {
	// Backend selects the zip source: none, csv, sqlite, postgres, redis (default: none)
	Backend string `env:"ZIP_BACKEND" default:"none"`

	// CSVPath is a zip,city,state,country file loaded into memory
	CSVPath string `env:"ZIP_CSV_PATH"`

	// SQLitePath is the SQLite database file (default: zips.db)
	SQLitePath string `env:"ZIP_SQLITE_PATH" default:"zips.db"`

	// DatabaseURL is the PostgreSQL connection string.
	// Supports both ZIP_DATABASE_URL and DATABASE_URL.
	DatabaseURL string `env:"ZIP_DATABASE_URL" envAlt:"DATABASE_URL"`

	// MaxConns is the PostgreSQL pool size (default: 10)
	MaxConns int `env:"ZIP_DB_MAX_CONNS" default:"10"`

	// RedisAddr is the Redis host:port (default: localhost:6379)
	RedisAddr string `env:"ZIP_REDIS_ADDR" default:"localhost:6379"`

	// RedisPassword is the optional Redis password
	RedisPassword string `env:"ZIP_REDIS_PASSWORD"`

	// RedisDB is the Redis database number (default: 0)
	RedisDB int `env:"ZIP_REDIS_DB" default:"0"`

	// Concurrency bounds parallel lookups per run (default: 8)
	Concurrency int `env:"ZIP_LOOKUP_CONCURRENCY" default:"8"`

	// Timeout bounds a single lookup attempt (default: 5s)
	Timeout time.Duration `env:"ZIP_LOOKUP_TIMEOUT" default:"5s"`

	// MaxRetries is the number of attempts per place (default: 3)
	MaxRetries uint `env:"ZIP_LOOKUP_MAX_RETRIES" default:"3"`

	// Seed fixes the tie-break between candidate zips; 0 uses entropy (default: 0)
	Seed uint64 `env:"ZIP_TIEBREAK_SEED" default:"0"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 60s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"60s"`

	// WriteTimeout is the maximum duration for writing response (default: 0, runs stream)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout bounds a single normalization request (default: 10m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"10m"`

	// MaxUploadSize is the maximum accepted file size in bytes (default: 100MB)
	MaxUploadSize int64 `env:"SERVER_MAX_UPLOAD_SIZE" default:"104857600"`

	// MaxConcurrentRuns is the maximum number of parallel runs (default: 5)
	MaxConcurrentRuns int `env:"SERVER_MAX_CONCURRENT_RUNS" default:"5"`

	// MaxWaitTime is how long a request waits for a run slot (default: 30s)
	MaxWaitTime time.Duration `env:"SERVER_MAX_WAIT_TIME" default:"30s"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// RequireAPIKey guards /api routes with the X-API-Key header (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`

	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
