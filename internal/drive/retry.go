package drive

import "time"

// FixedDelayPolicy retries with a constant delay. MaxAttempts <= 0
// means unbounded: backend throttling during an index run is expected
// to last minutes, and the operator intent is to wait it out rather
// than fail a crawl that is tens of minutes in.
type FixedDelayPolicy struct {
	Delay       time.Duration
	MaxAttempts int
}

// ShouldRetry implements atlas.RetryPolicy.
func (p FixedDelayPolicy) ShouldRetry(attempt int) bool {
	return p.MaxAttempts <= 0 || attempt < p.MaxAttempts
}

// Backoff implements atlas.RetryPolicy.
func (p FixedDelayPolicy) Backoff(int) time.Duration {
	return p.Delay
}
