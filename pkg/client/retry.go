package client

import (
	"math"
	"math/rand"
	"time"
)

// RetryPolicy holds the retry schedule shared by all client calls. It is
// read-only after construction.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the backoff before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the computed backoff.
	MaxDelay time.Duration

	// BackoffFactor is the exponential growth factor between attempts.
	BackoffFactor float64

	// Jitter randomizes each delay by a uniform factor in [0.5, 1.0) to
	// avoid thundering-herd retries.
	Jitter bool
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   5,
		BaseDelay:     1 * time.Second,
		MaxDelay:      60 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}
}

// Backoff returns the delay to sleep after the given attempt (1-based):
// min(BaseDelay * BackoffFactor^(attempt-1), MaxDelay), jittered when
// enabled.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(p.BaseDelay) * math.Pow(p.BackoffFactor, float64(attempt-1))
	if max := float64(p.MaxDelay); delay > max {
		delay = max
	}

	if p.Jitter {
		delay *= 0.5 + rand.Float64()*0.5
	}

	return time.Duration(delay)
}
