// Package ratelimit implements a token bucket limiter for per-client
// query rate control.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter manages per-client rate limits, keyed by client address.
type Limiter struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
}

// Config holds rate limiter configuration.
type Config struct {
	// PerSecond is the sustained request rate per client; <= 0 means
	// unlimited.
	PerSecond float64
	// Burst is the short-term allowance per client.
	Burst int
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.PerSecond)
	if cfg.PerSecond <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  r,
		defaultBurst: burst,
	}
}

// Allow reports whether the client may issue a request right now.
func (l *Limiter) Allow(client string) bool {
	if client == "" {
		client = "unknown"
	}
	l.mu.Lock()
	limiter, exists := l.limiters[client]
	if !exists {
		limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
		l.limiters[client] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}
