// Package config loads and validates application configuration from
// environment variables, with an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/Sternrassler/animal-etl/pkg/client"
)

// Config holds all application configuration.
type Config struct {
	// Upstream API settings.
	BaseURL         string
	HTTPTimeout     time.Duration
	MaxConns        int
	MaxConnsPerHost int

	// Retry settings.
	Retry client.RetryPolicy

	// Pipeline settings.
	BatchSize   int
	Concurrency int
	PerPage     int

	// Operational settings.
	LogLevel    string
	LogPretty   bool
	MetricsAddr string // Empty disables the metrics listener.
}

// Load reads configuration from the environment with sensible defaults,
// loading a .env file first when one is present.
func Load() (Config, error) {
	// Missing .env is not an error; the environment alone is enough.
	_ = godotenv.Load()

	cfg := Config{
		BaseURL:         envStr("BASE_URL", "http://localhost:3123"),
		HTTPTimeout:     envDuration("HTTP_TIMEOUT", 30*time.Second),
		MaxConns:        envInt("MAX_CONNS", 100),
		MaxConnsPerHost: envInt("MAX_CONNS_PER_HOST", 20),
		Retry: client.RetryPolicy{
			MaxAttempts:   envInt("MAX_ATTEMPTS", 5),
			BaseDelay:     envDuration("BASE_DELAY", 1*time.Second),
			MaxDelay:      envDuration("MAX_DELAY", 60*time.Second),
			BackoffFactor: envFloat("BACKOFF_FACTOR", 2.0),
			Jitter:        envBool("JITTER", true),
		},
		BatchSize:   envInt("BATCH_SIZE", 100),
		Concurrency: envInt("CONCURRENCY", 4),
		PerPage:     envInt("PER_PAGE", 50),
		LogLevel:    envStr("LOG_LEVEL", "info"),
		LogPretty:   envBool("LOG_PRETTY", false),
		MetricsAddr: envStr("METRICS_ADDR", ""),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("config: BASE_URL is required")
	}
	if c.BatchSize < 1 || c.BatchSize > client.MaxBatchSize {
		return fmt.Errorf("config: BATCH_SIZE must be in 1..%d (got %d)", client.MaxBatchSize, c.BatchSize)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("config: CONCURRENCY must be >= 1 (got %d)", c.Concurrency)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("config: MAX_ATTEMPTS must be >= 1 (got %d)", c.Retry.MaxAttempts)
	}
	if c.Retry.MaxAttempts > 1 && c.Retry.BackoffFactor <= 1 {
		return fmt.Errorf("config: BACKOFF_FACTOR must be > 1 (got %v)", c.Retry.BackoffFactor)
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

// envDuration accepts Go duration strings ("1500ms") and, for compatibility
// with older deployments, bare numbers meaning seconds ("60").
func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultVal
}
