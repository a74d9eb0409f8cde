// Package ratelimit provides a fixed-window per-user rate limiter.
//
// Each logical entry point uses its own bucket, so throttling one
// workflow never blocks another. Allow must be checked before any
// session mutation.
package ratelimit

import (
	"log/slog"
	"sync"
	"time"
)

type key struct {
	userID int64
	bucket string
}

// Limiter tracks event timestamps per (user, bucket) pair.
type Limiter struct {
	mu     sync.Mutex
	events map[key][]time.Time
	now    func() time.Time
}

// NewLimiter creates an empty Limiter.
func NewLimiter() *Limiter {
	return &Limiter{
		events: make(map[key][]time.Time),
		now:    time.Now,
	}
}

// Allow records one event against (userID, bucket) and reports whether it
// fits within maxRequests per window. An over-limit call records nothing.
func (l *Limiter) Allow(userID int64, bucket string, maxRequests int, window time.Duration) bool {
	if userID == 0 {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-window)
	k := key{userID: userID, bucket: bucket}

	kept := l.events[k][:0]
	for _, ts := range l.events[k] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= maxRequests {
		l.events[k] = kept
		slog.Debug("Limiter over limit", "userID", userID, "bucket", bucket, "count", len(kept))
		return false
	}

	l.events[k] = append(kept, now)
	return true
}
