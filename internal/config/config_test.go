package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.BaseURL != "http://localhost:3123" {
		t.Errorf("BaseURL = %q, want http://localhost:3123", cfg.BaseURL)
	}
	if cfg.BatchSize != 100 {
		t.Errorf("BatchSize = %d, want 100", cfg.BatchSize)
	}
	if cfg.Concurrency != 4 {
		t.Errorf("Concurrency = %d, want 4", cfg.Concurrency)
	}
	if cfg.Retry.MaxAttempts != 5 {
		t.Errorf("Retry.MaxAttempts = %d, want 5", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.BaseDelay != 1*time.Second {
		t.Errorf("Retry.BaseDelay = %v, want 1s", cfg.Retry.BaseDelay)
	}
	if cfg.Retry.MaxDelay != 60*time.Second {
		t.Errorf("Retry.MaxDelay = %v, want 60s", cfg.Retry.MaxDelay)
	}
	if cfg.Retry.BackoffFactor != 2.0 {
		t.Errorf("Retry.BackoffFactor = %v, want 2.0", cfg.Retry.BackoffFactor)
	}
	if !cfg.Retry.Jitter {
		t.Error("Retry.Jitter should default to true")
	}
	if cfg.HTTPTimeout != 30*time.Second {
		t.Errorf("HTTPTimeout = %v, want 30s", cfg.HTTPTimeout)
	}
	if cfg.MetricsAddr != "" {
		t.Errorf("MetricsAddr = %q, want empty", cfg.MetricsAddr)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BASE_URL", "http://animals.example.com")
	t.Setenv("BATCH_SIZE", "25")
	t.Setenv("CONCURRENCY", "8")
	t.Setenv("MAX_ATTEMPTS", "3")
	t.Setenv("BASE_DELAY", "250ms")
	t.Setenv("MAX_DELAY", "10")
	t.Setenv("BACKOFF_FACTOR", "1.5")
	t.Setenv("JITTER", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.BaseURL != "http://animals.example.com" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.BatchSize != 25 {
		t.Errorf("BatchSize = %d, want 25", cfg.BatchSize)
	}
	if cfg.Concurrency != 8 {
		t.Errorf("Concurrency = %d, want 8", cfg.Concurrency)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.BaseDelay != 250*time.Millisecond {
		t.Errorf("BaseDelay = %v, want 250ms", cfg.Retry.BaseDelay)
	}
	// Bare numbers mean seconds.
	if cfg.Retry.MaxDelay != 10*time.Second {
		t.Errorf("MaxDelay = %v, want 10s", cfg.Retry.MaxDelay)
	}
	if cfg.Retry.BackoffFactor != 1.5 {
		t.Errorf("BackoffFactor = %v, want 1.5", cfg.Retry.BackoffFactor)
	}
	if cfg.Retry.Jitter {
		t.Error("Jitter should be false")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "batch size zero", key: "BATCH_SIZE", value: "0"},
		{name: "batch size over limit", key: "BATCH_SIZE", value: "101"},
		{name: "concurrency zero", key: "CONCURRENCY", value: "0"},
		{name: "max attempts zero", key: "MAX_ATTEMPTS", value: "0"},
		{name: "backoff factor one", key: "BACKOFF_FACTOR", value: "1.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%s should fail", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_MalformedNumbersFallBackToDefaults(t *testing.T) {
	t.Setenv("BATCH_SIZE", "lots")
	t.Setenv("BASE_DELAY", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.BatchSize != 100 {
		t.Errorf("BatchSize = %d, want default 100", cfg.BatchSize)
	}
	if cfg.Retry.BaseDelay != 1*time.Second {
		t.Errorf("BaseDelay = %v, want default 1s", cfg.Retry.BaseDelay)
	}
}
