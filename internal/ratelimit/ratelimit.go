// Package ratelimit bounds per-connection operation throughput with a
// fixed-window token bucket. Bursts straddling a window boundary are
// tolerated; the point is abuse containment, not precision.
package ratelimit

import (
	"sync"
	"time"
)

const (
	DefaultLimit  = 10
	DefaultWindow = time.Second
)

type Limiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	tokens int
	start  time.Time
}

// New creates a limiter with a full bucket. Each connection owns one.
func New(limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		limit:  limit,
		window: window,
		tokens: limit,
		start:  time.Now(),
	}
}

// Allow consumes one token, refilling the bucket first if the current
// window has elapsed.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.start) > l.window {
		l.tokens = l.limit
		l.start = now
	}
	if l.tokens > 0 {
		l.tokens--
		return true
	}
	return false
}
