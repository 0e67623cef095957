package engine

import (
	"math/rand/v2"
	"time"
)

// Resubscribe backoff defaults.
const (
	// InitialRetryDelay is the delay before the first resubscribe attempt.
	InitialRetryDelay = 1 * time.Second

	// MaxRetryDelay caps the resubscribe delay.
	MaxRetryDelay = 60 * time.Second

	retryMultiplier = 2.0
	retryJitter     = 0.25
)

// RetryConfig customizes the resubscribe backoff after a subscribe failure.
type RetryConfig struct {
	Initial time.Duration
	Max     time.Duration

	// Disabled leaves a failed session in Failed until the transport
	// reconnects.
	Disabled bool
}

// backoff calculates exponential delays with jitter. It is owned by the
// session loop and not safe for concurrent use.
type backoff struct {
	current  time.Duration
	initial  time.Duration
	max      time.Duration
	attempts int
}

func newBackoff(cfg RetryConfig) *backoff {
	if cfg.Initial <= 0 {
		cfg.Initial = InitialRetryDelay
	}
	if cfg.Max <= 0 {
		cfg.Max = MaxRetryDelay
	}
	if cfg.Max < cfg.Initial {
		cfg.Max = cfg.Initial
	}
	return &backoff{current: cfg.Initial, initial: cfg.Initial, max: cfg.Max}
}

// next returns the next delay (with jitter) and advances the backoff.
func (b *backoff) next() time.Duration {
	delay := b.current + time.Duration(float64(b.current)*retryJitter*rand.Float64())

	b.attempts++
	next := time.Duration(float64(b.current) * retryMultiplier)
	if next > b.max {
		next = b.max
	}
	b.current = next
	return delay
}

// reset returns to the initial delay. Call it once the session is active.
func (b *backoff) reset() {
	b.current = b.initial
	b.attempts = 0
}
