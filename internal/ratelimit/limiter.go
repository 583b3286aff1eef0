// ABOUTME: Thread-safe TTL-based limiter for failed login attempts.
// ABOUTME: Used by the gateway to throttle credential guessing per username.

package ratelimit

import (
	"container/list"
	"sync"
	"time"
)

// limiterEntry tracks failure count and list element for a keyed entry.
type limiterEntry struct {
	failures  int
	timestamp time.Time
	element   *list.Element
}

// Limiter counts recent failures per key and blocks keys that exceed the
// allowed budget within the window. Entries expire after the window and the
// table is size-limited, with oldest-first eviction via a doubly-linked list.
type Limiter struct {
	mu          sync.RWMutex
	entries     map[string]*limiterEntry
	order       *list.List // keys in insertion order, oldest at front
	window      time.Duration
	maxFailures int
	maxSize     int
	done        chan struct{}
	closed      bool
}

// New creates a limiter allowing maxFailures failures per key within window,
// tracking at most maxSize keys. A background goroutine periodically removes
// expired entries.
func New(window time.Duration, maxFailures, maxSize int) *Limiter {
	l := &Limiter{
		entries:     make(map[string]*limiterEntry),
		order:       list.New(),
		window:      window,
		maxFailures: maxFailures,
		maxSize:     maxSize,
		done:        make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Allow reports whether the key is still under its failure budget.
func (l *Limiter) Allow(key string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, ok := l.entries[key]
	if !ok {
		return true
	}
	if time.Since(entry.timestamp) >= l.window {
		return true
	}
	return entry.failures < l.maxFailures
}

// RecordFailure registers a failed attempt for the key. The window restarts
// from the most recent failure.
func (l *Limiter) RecordFailure(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()

	if entry, exists := l.entries[key]; exists {
		if now.Sub(entry.timestamp) >= l.window {
			entry.failures = 0
		}
		entry.failures++
		entry.timestamp = now
		l.order.MoveToBack(entry.element)
		return
	}

	if len(l.entries) >= l.maxSize {
		l.evictOldest()
	}

	elem := l.order.PushBack(key)
	l.entries[key] = &limiterEntry{
		failures:  1,
		timestamp: now,
		element:   elem,
	}
}

// Reset clears the key's failure history, typically after a successful login.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok {
		return
	}
	l.order.Remove(entry.element)
	delete(l.entries, key)
}

// evictOldest removes the oldest entry. Must be called with mu held.
func (l *Limiter) evictOldest() {
	front := l.order.Front()
	if front == nil {
		return
	}

	key, _ := front.Value.(string)
	l.order.Remove(front)
	delete(l.entries, key)
}

// cleanup runs in a background goroutine, periodically removing expired entries.
func (l *Limiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.runCleanup()
		case <-l.done:
			return
		}
	}
}

// runCleanup removes all expired entries.
func (l *Limiter) runCleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for key, entry := range l.entries {
		if now.Sub(entry.timestamp) > l.window {
			l.order.Remove(entry.element)
			delete(l.entries, key)
		}
	}
}

// Close stops the background cleanup goroutine. Safe to call multiple times.
func (l *Limiter) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.closed {
		close(l.done)
		l.closed = true
	}
}
