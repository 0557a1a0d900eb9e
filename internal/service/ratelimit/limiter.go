package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a keyed token bucket. Each key refills continuously at its
// own rate, so a cap of N per hour admits a burst of up to N and then
// one more every hour/N.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*tokenBucket
}

type tokenBucket struct {
	level    float64
	refillAt time.Time
}

func New() *Limiter {
	return &Limiter{buckets: make(map[string]*tokenBucket)}
}

// Allow consumes one token for key if available. capacity is the burst
// ceiling and refillPerSec the sustained rate; both apply per key.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	return l.AllowAt(key, capacity, refillPerSec, time.Now())
}

// AllowAt is Allow with an explicit clock.
func (l *Limiter) AllowAt(key string, capacity, refillPerSec float64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &tokenBucket{level: capacity, refillAt: now}
		l.buckets[key] = b
	}
	if d := now.Sub(b.refillAt); d > 0 {
		b.level += d.Seconds() * refillPerSec
		if b.level > capacity {
			b.level = capacity
		}
		b.refillAt = now
	}
	if b.level < 1 {
		return false
	}
	b.level--
	return true
}
