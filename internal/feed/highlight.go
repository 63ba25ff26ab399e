package feed

import (
	"sync"
	"time"
)

// highlightTracker maintains the transient "just arrived" marker set. Each
// marked id owns exactly one expiry timer, held in a map so Close can cancel
// every outstanding handle at once.
type highlightTracker struct {
	mu     sync.Mutex
	ttl    time.Duration
	store  *Store
	timers map[string]*time.Timer
	closed bool
}

func newHighlightTracker(store *Store, ttl time.Duration) *highlightTracker {
	return &highlightTracker{
		ttl:    ttl,
		store:  store,
		timers: make(map[string]*time.Timer),
	}
}

// Mark flags id as newly arrived and schedules its removal after the TTL.
// Marking an id that is already highlighted is a no-op: the original expiry
// stands, it is never extended.
func (t *highlightTracker) Mark(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	if _, ok := t.timers[id]; ok {
		return
	}
	t.timers[id] = time.AfterFunc(t.ttl, func() { t.expire(id) })
	t.store.addHighlight(id)
}

func (t *highlightTracker) expire(id string) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	delete(t.timers, id)
	t.mu.Unlock()

	t.store.removeHighlight(id)
}

// Close cancels every pending expiry. Safe to call more than once.
func (t *highlightTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}
