// Package ratelimit admits at most N messages per sender in a sliding
// one-minute window.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// Window is the sliding window length.
	Window = time.Minute
	// DefaultMaxKeys bounds how many senders are tracked at once. The
	// least recently seen sender is forgotten first.
	DefaultMaxKeys = 4096
)

// Limiter is a per-key sliding window limiter safe for concurrent use.
type Limiter struct {
	limit   int
	mu      sync.Mutex
	windows *lru.Cache[string, []time.Time]
	now     func() time.Time
}

// New creates a limiter admitting limit events per key per Window,
// tracking up to maxKeys keys. maxKeys <= 0 uses DefaultMaxKeys.
func New(limit, maxKeys int) (*Limiter, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("rate limit must be positive, got %d", limit)
	}
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	windows, err := lru.New[string, []time.Time](maxKeys)
	if err != nil {
		return nil, fmt.Errorf("rate limiter init: %w", err)
	}
	return &Limiter{limit: limit, windows: windows, now: time.Now}, nil
}

// Allow records an event for key and reports whether it is admitted.
// Rejected events are not recorded.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-Window)

	window, _ := l.windows.Get(key)
	expired := 0
	for expired < len(window) && !window[expired].After(cutoff) {
		expired++
	}
	window = window[expired:]

	if len(window) >= l.limit {
		l.windows.Add(key, window)
		return false
	}
	l.windows.Add(key, append(window, now))
	return true
}

// Reset forgets every key.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.windows.Purge()
}

// Limit returns the number of events admitted per key per Window.
func (l *Limiter) Limit() int {
	return l.limit
}
