package client

import (
	"testing"
	"time"
)

func TestDefaultRetryPolicy(t *testing.T) {
	policy := DefaultRetryPolicy()

	if policy.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", policy.MaxAttempts)
	}
	if policy.BaseDelay != 1*time.Second {
		t.Errorf("BaseDelay = %v, want 1s", policy.BaseDelay)
	}
	if policy.MaxDelay != 60*time.Second {
		t.Errorf("MaxDelay = %v, want 60s", policy.MaxDelay)
	}
	if policy.BackoffFactor != 2.0 {
		t.Errorf("BackoffFactor = %v, want 2.0", policy.BackoffFactor)
	}
	if !policy.Jitter {
		t.Error("Jitter should default to true")
	}
}

func TestBackoff_ExponentialGrowth(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:   5,
		BaseDelay:     1 * time.Second,
		MaxDelay:      60 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        false,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{attempt: 1, expected: 1 * time.Second},
		{attempt: 2, expected: 2 * time.Second},
		{attempt: 3, expected: 4 * time.Second},
		{attempt: 4, expected: 8 * time.Second},
	}

	for _, tt := range tests {
		if got := policy.Backoff(tt.attempt); got != tt.expected {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
		}
	}
}

func TestBackoff_MaxDelayCap(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:   10,
		BaseDelay:     1 * time.Second,
		MaxDelay:      3 * time.Second,
		BackoffFactor: 10.0,
		Jitter:        false,
	}

	if got := policy.Backoff(5); got != 3*time.Second {
		t.Errorf("Backoff(5) = %v, want cap at %v", got, 3*time.Second)
	}
}

func TestBackoff_JitterBounds(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:   5,
		BaseDelay:     1 * time.Second,
		MaxDelay:      60 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}

	// Jitter multiplies by a uniform factor in [0.5, 1.0), so attempt 2
	// (raw 2s) must land in [1s, 2s).
	allSame := true
	first := policy.Backoff(2)
	for i := 0; i < 50; i++ {
		d := policy.Backoff(2)
		if d < 1*time.Second || d >= 2*time.Second {
			t.Fatalf("jittered Backoff(2) = %v outside [1s, 2s)", d)
		}
		if d != first {
			allSame = false
		}
	}
	if allSame {
		t.Error("50 jittered delays were identical - jitter not applied")
	}
}

func TestBackoff_JitterRangesDoNotOverlap(t *testing.T) {
	// With factor 2 and jitter [0.5, 1.0), consecutive attempts can never
	// produce a decreasing delay: max of attempt n equals min of n+1.
	policy := RetryPolicy{
		MaxAttempts:   5,
		BaseDelay:     1 * time.Second,
		MaxDelay:      60 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}

	for i := 0; i < 50; i++ {
		first := policy.Backoff(1)
		second := policy.Backoff(2)
		if second < first {
			t.Fatalf("delays decreased across attempts: %v then %v", first, second)
		}
	}
}

func TestBackoff_AttemptFloor(t *testing.T) {
	policy := RetryPolicy{
		BaseDelay:     1 * time.Second,
		MaxDelay:      60 * time.Second,
		BackoffFactor: 2.0,
	}

	if got := policy.Backoff(0); got != 1*time.Second {
		t.Errorf("Backoff(0) = %v, want clamp to base delay", got)
	}
}
