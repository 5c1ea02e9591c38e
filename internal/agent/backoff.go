package agent

import (
	"math/rand"
	"time"
)

// Default backoff bounds for failing agents.
const (
	DefaultBackoffBase = 30 * time.Second
	DefaultBackoffMax  = 30 * time.Minute
)

// Backoff computes the delay before a failing agent's next run:
// min(max, base*2^(attempt-1)) plus a jitter uniform in [0, base/5).
// The cap keeps a persistently failing agent from being retried
// forever at full rate; the jitter keeps a batch of failures from
// waking up in lockstep.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		base = DefaultBackoffBase
	}
	if max <= 0 {
		max = DefaultBackoffMax
	}
	if attempt < 1 {
		attempt = 1
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			delay = max
			break
		}
	}
	if delay > max {
		delay = max
	}

	var jitter time.Duration
	if n := int64(base / 5); n > 0 {
		jitter = time.Duration(rand.Int63n(n))
	}
	return delay + jitter
}
