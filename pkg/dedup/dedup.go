// Package dedup suppresses repeats of the same event key within a time
// window.
package dedup

import (
	"sync"
	"time"
)

// Window remembers when each key was last allowed through.
type Window struct {
	last    map[string]time.Time
	mu      sync.Mutex
	period  time.Duration
	maxKeys int
}

// New returns a Window allowing each key at most once per period. When more
// than maxKeys keys are tracked, keys older than one period are dropped.
func New(period time.Duration, maxKeys int) *Window {
	return &Window{
		last:    make(map[string]time.Time),
		period:  period,
		maxKeys: maxKeys,
	}
}

// Allow reports whether an event for key at now should go through, and if so
// records it. Safe for concurrent use.
func (w *Window) Allow(key string, now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if last, ok := w.last[key]; ok && now.Sub(last) < w.period {
		return false
	}
	w.last[key] = now

	if len(w.last) > w.maxKeys {
		cutoff := now.Add(-w.period)
		for k, t := range w.last {
			if t.Before(cutoff) {
				delete(w.last, k)
			}
		}
	}
	return true
}

// Forget clears key so its next event is allowed.
func (w *Window) Forget(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.last, key)
}

// Len returns the number of tracked keys.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.last)
}
