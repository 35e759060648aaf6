package orchestrator

import (
	"math"
	"math/rand"
	"time"
)

// BackoffConfig holds the delay policy applied before a segment fetch is
// retried.
type BackoffConfig struct {
	Initial    time.Duration // delay before the first retry
	Max        time.Duration // cap on the delay
	Multiplier float64       // growth factor per attempt
	JitterPct  float64       // jitter as a fraction of the delay (0.4 = ±20%)
}

// DefaultBackoffConfig returns sensible defaults for segment fetch retries.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    250 * time.Millisecond,
		Max:        5 * time.Second,
		Multiplier: 1.7,
		JitterPct:  0.4,
	}
}

// Backoff computes retry delays with deterministic jitter. One instance is
// created per run so two runs against the same manifest jitter differently
// while a single run stays reproducible under a fixed seed.
type Backoff struct {
	config   BackoffConfig
	attempts int
	rng      *rand.Rand
}

// NewBackoff creates a Backoff seeded for one run.
func NewBackoff(seed int64, cfg BackoffConfig) *Backoff {
	return &Backoff{
		config: cfg,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Next returns the current delay and increments the attempt counter.
func (b *Backoff) Next() time.Duration {
	delay := b.Calculate()
	b.attempts++
	return delay
}

// Calculate returns the current delay without consuming an attempt.
func (b *Backoff) Calculate() time.Duration {
	delay := float64(b.config.Initial) * math.Pow(b.config.Multiplier, float64(b.attempts))
	if delay > float64(b.config.Max) {
		delay = float64(b.config.Max)
	}

	if b.config.JitterPct > 0 {
		jitterRange := delay * b.config.JitterPct
		delay += jitterRange*b.rng.Float64() - jitterRange/2
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Reset clears the attempt counter, called between segments so each
// segment's single retry starts from the initial delay.
func (b *Backoff) Reset() {
	b.attempts = 0
}

// Attempts returns the consumed attempt count.
func (b *Backoff) Attempts() int {
	return b.attempts
}
