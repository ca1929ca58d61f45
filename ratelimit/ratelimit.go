// Package ratelimit implements sliding-window per-identifier admission
// control for the HTTP edge.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// DefaultWindow is the sliding window length.
const DefaultWindow = 60 * time.Second

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool
	Remaining int

	// RetryAfter is the whole seconds until the oldest request leaves the
	// window. Zero unless the request was denied.
	RetryAfter int
}

// Limiter tracks request timestamps per identifier inside a sliding window.
// It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[string][]time.Time
	now     func() time.Time // test hook
}

// New creates a Limiter. window <= 0 selects the default 60s window.
func New(window time.Duration) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		window:  window,
		entries: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Check atomically admits or denies one request for an identifier:
// expired timestamps are dropped, then the request is admitted iff fewer
// than limit timestamps remain in the window.
func (l *Limiter) Check(id string, limit int) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	seq := l.entries[id]
	kept := seq[:0]
	for _, ts := range seq {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if limit > 0 && len(kept) >= limit {
		l.entries[id] = kept
		retry := int(math.Ceil(kept[0].Add(l.window).Sub(now).Seconds()))
		if retry < 0 {
			retry = 0
		}
		return Decision{Allowed: false, Remaining: 0, RetryAfter: retry}
	}

	l.entries[id] = append(kept, now)
	remaining := limit - len(kept) - 1
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Remaining: remaining}
}

// Cleanup prunes expired timestamps and removes identifiers whose window is
// empty. Intended to run periodically.
func (l *Limiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	for id, seq := range l.entries {
		kept := seq[:0]
		for _, ts := range seq {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		if len(kept) == 0 {
			delete(l.entries, id)
			continue
		}
		l.entries[id] = kept
	}
}

// Len returns the number of tracked identifiers.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// StartSweeper runs Cleanup on the given interval until stop is closed.
func (l *Limiter) StartSweeper(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				l.Cleanup()
			}
		}
	}()
}
