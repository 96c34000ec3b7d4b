// Package dedup drops redelivered channel messages inside a fixed window.
package dedup

import (
	"sync"
	"time"
)

// DefaultWindow is how long a message id is remembered.
const DefaultWindow = 5 * time.Minute

// Deduplicator remembers recently seen message ids. It is best-effort and
// in-process: a restart forgets everything, which matches the at-least-once
// delivery contract of the channel.
type Deduplicator struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
	now    func() time.Time
}

// New creates a Deduplicator. A non-positive window falls back to DefaultWindow.
func New(window time.Duration) *Deduplicator {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Deduplicator{
		window: window,
		seen:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// ShouldProcess reports whether id has not been seen within the window and
// records it atomically. Callers must invoke it before any side effect.
func (d *Deduplicator) ShouldProcess(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if exp, ok := d.seen[id]; ok && now.Before(exp) {
		return false
	}
	d.seen[id] = now.Add(d.window)
	return true
}

// Sweep removes expired entries. Scheduled periodically by maintenance.
func (d *Deduplicator) Sweep() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	removed := 0
	for id, exp := range d.seen {
		if !now.Before(exp) {
			delete(d.seen, id)
			removed++
		}
	}
	return removed
}

// Len reports how many ids are currently tracked.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
