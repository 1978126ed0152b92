package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		// Skip unexported fields
		if !fieldVal.CanSet() {
			continue
		}

		// Recurse into nested structs
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		// Get tags
		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		// Try primary env var, then alternate
		value := os.Getenv(envName)
		if value == "" && envAlt != "" {
			value = os.Getenv(envAlt)
		}

		// Apply default if not set
		if value == "" {
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		// Set the field value
		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		// Handle time.Duration specially
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid unsigned integer: %w", err)
		}
		field.SetUint(u)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			// Split comma-separated values, trim whitespace
			parts := strings.Split(value, ",")
			result := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					result = append(result, p)
				}
			}
			field.Set(reflect.ValueOf(result))
		} else {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Normalize validation
	if c.Normalize.HashEnabled && c.Normalize.FormatOnly {
		errs = append(errs, "HASH_ENABLED and FORMAT_ONLY cannot both be true")
	}
	if len(c.Normalize.DefaultRegion) != 2 {
		errs = append(errs, fmt.Sprintf("DEFAULT_REGION (%q) must be a two-letter region code", c.Normalize.DefaultRegion))
	}
	if c.Normalize.BatchSize <= 0 {
		errs = append(errs, "NORMALIZE_BATCH_SIZE must be positive")
	}

	// Lookup validation
	switch strings.ToLower(c.Lookup.Backend) {
	case BackendNone:
		if c.Normalize.InferZip {
			errs = append(errs, "INFER_ZIP requires ZIP_BACKEND to be set")
		}
	case BackendCSV:
		if c.Lookup.CSVPath == "" {
			errs = append(errs, "ZIP_CSV_PATH is required when ZIP_BACKEND=csv")
		}
	case BackendSQLite:
		if c.Lookup.SQLitePath == "" {
			errs = append(errs, "ZIP_SQLITE_PATH is required when ZIP_BACKEND=sqlite")
		}
	case BackendPostgres:
		if c.Lookup.DatabaseURL == "" {
			errs = append(errs, "ZIP_DATABASE_URL is required when ZIP_BACKEND=postgres")
		}
		if c.Lookup.MaxConns <= 0 {
			errs = append(errs, "ZIP_DB_MAX_CONNS must be positive")
		}
	case BackendRedis:
		if c.Lookup.RedisAddr == "" {
			errs = append(errs, "ZIP_REDIS_ADDR is required when ZIP_BACKEND=redis")
		}
	default:
		errs = append(errs, fmt.Sprintf("ZIP_BACKEND (%q) must be one of: none, csv, sqlite, postgres, redis", c.Lookup.Backend))
	}
	if c.Lookup.Concurrency <= 0 {
		errs = append(errs, "ZIP_LOOKUP_CONCURRENCY must be positive")
	}
	if c.Lookup.Timeout <= 0 {
		errs = append(errs, "ZIP_LOOKUP_TIMEOUT must be positive")
	}
	if c.Lookup.MaxRetries == 0 {
		errs = append(errs, "ZIP_LOOKUP_MAX_RETRIES must be at least 1")
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.MaxUploadSize <= 0 {
		errs = append(errs, "SERVER_MAX_UPLOAD_SIZE must be positive")
	}
	if c.Server.MaxConcurrentRuns <= 0 {
		errs = append(errs, "SERVER_MAX_CONCURRENT_RUNS must be positive")
	}
	if c.Server.MaxWaitTime <= 0 {
		errs = append(errs, "SERVER_MAX_WAIT_TIME must be positive")
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}

	// Security validation
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Connection strings and passwords are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Normalize: {Hash: %v, DefaultRegion: %q, InferZip: %v, BatchSize: %d}, ",
		c.Normalize.Hash(), c.Normalize.DefaultRegion, c.Normalize.InferZip, c.Normalize.BatchSize)
	fmt.Fprintf(&b, "Lookup: {Backend: %q, DatabaseURL: %s, RedisAddr: %q, RedisPassword: %s, Concurrency: %d, Seed: %d}, ",
		c.Lookup.Backend, mask(c.Lookup.DatabaseURL), c.Lookup.RedisAddr, mask(c.Lookup.RedisPassword),
		c.Lookup.Concurrency, c.Lookup.Seed)
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d, MaxUploadSize: %d, MaxConcurrentRuns: %d}, ",
		c.Server.Host, c.Server.Port, c.Server.MaxUploadSize, c.Server.MaxConcurrentRuns)
	fmt.Fprintf(&b, "Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute)
	fmt.Fprintf(&b, "Security: {RequireAPIKey: %v, APIKeys: %d configured}, ",
		c.Security.RequireAPIKey, len(c.Security.APIKeys))
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}

func mask(s string) string {
	if s == "" {
		return `""`
	}
	return "[MASKED]"
}
