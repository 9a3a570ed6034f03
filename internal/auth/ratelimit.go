// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vysus Group

package auth

import (
	"sync"
	"sync/atomic"
	"time"
)

// Per-endpoint rate-limit policies, keyed by client address. Chosen to blunt
// credential stuffing and enumeration-by-timing without bothering real users.
const (
	RegisterLimit  = 5
	RegisterWindow = time.Hour

	LoginLimit  = 10
	LoginWindow = 15 * time.Minute

	ForgotPasswordLimit  = 3
	ForgotPasswordWindow = time.Hour

	ResetPasswordLimit  = 5
	ResetPasswordWindow = time.Hour
)

// evictEvery is the number of Allow calls between sweeps of stale entries.
const evictEvery = 1024

// Limiter is a sliding-window rate limiter over an arbitrary string key
// (here: client address). State is in-memory and per-process; the limits are
// an abuse brake, not an accounting system. Keys whose attempts have all aged
// out of the window are swept periodically, so memory is bounded by the
// number of distinct keys seen within roughly one window.
type Limiter struct {
	max     int
	window  time.Duration
	entries sync.Map // key -> *limiterEntry
	calls   atomic.Uint64
}

type limiterEntry struct {
	mu       sync.Mutex
	attempts []time.Time
}

// NewLimiter creates a Limiter allowing max attempts per window.
func NewLimiter(max int, window time.Duration) *Limiter {
	return &Limiter{max: max, window: window}
}

// Allow records an attempt for key and reports whether it is within the
// limit. Attempts older than the window are pruned on the way.
func (l *Limiter) Allow(key string) bool {
	return l.allowAt(key, time.Now())
}

func (l *Limiter) allowAt(key string, now time.Time) bool {
	if l.calls.Add(1)%evictEvery == 0 {
		l.evictStale(now)
	}

	cutoff := now.Add(-l.window)

	v, _ := l.entries.LoadOrStore(key, &limiterEntry{})
	entry := v.(*limiterEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	kept := entry.attempts[:0]
	for _, t := range entry.attempts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	entry.attempts = kept

	if len(entry.attempts) >= l.max {
		return false
	}

	entry.attempts = append(entry.attempts, now)
	return true
}

// evictStale drops entries whose newest attempt has aged out of the window.
// An attempt recorded against an entry mid-eviction can go uncounted; the
// limiter is advisory, so that is tolerated.
func (l *Limiter) evictStale(now time.Time) {
	cutoff := now.Add(-l.window)
	l.entries.Range(func(key, v any) bool {
		entry := v.(*limiterEntry)
		entry.mu.Lock()
		stale := len(entry.attempts) == 0 || !entry.attempts[len(entry.attempts)-1].After(cutoff)
		entry.mu.Unlock()
		if stale {
			l.entries.Delete(key)
		}
		return true
	})
}
