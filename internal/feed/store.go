package feed

import (
	"sort"
	"sync"

	"github.com/triagedesk/pkg/models"
)

// ConnectionStatus tracks the health of the push channel for one feed
// session. Transitions are one-directional: Connecting -> Live on
// acknowledgment, Connecting/Live -> Degraded on failure. Only a fresh Open
// produces Connecting again.
type ConnectionStatus int

const (
	StatusConnecting ConnectionStatus = iota
	StatusLive
	StatusDegraded
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusLive:
		return "live"
	case StatusDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Snapshot is the immutable composite state handed to observers. The slices
// are copies; callers may hold or mutate them freely.
type Snapshot struct {
	Records    []models.CallRecord
	Status     ConnectionStatus
	Highlights []string
}

// Listener receives a fresh Snapshot on every state change.
type Listener func(Snapshot)

// Store is the observable holder of the feed's composite state. All mutation
// flows through the feed run loop (records, status) and the highlight
// tracker (highlights); observers only ever read copies.
type Store struct {
	mu           sync.Mutex
	records      []models.CallRecord
	status       ConnectionStatus
	highlights   map[string]struct{}
	listeners    map[int]Listener
	nextListener int
}

// NewStore creates an empty store in Connecting state.
func NewStore() *Store {
	return &Store{
		status:     StatusConnecting,
		highlights: make(map[string]struct{}),
		listeners:  make(map[int]Listener),
	}
}

// Subscribe registers a listener and immediately delivers the current state.
// The returned function removes the listener.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = l
	snap := s.snapshotLocked()
	s.mu.Unlock()

	l(snap)

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Snapshot returns a copy of the current composite state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Status returns the current connection status.
func (s *Store) Status() ConnectionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Store) setRecords(records []models.CallRecord) {
	s.notify(func() { s.records = records })
}

func (s *Store) setStatus(status ConnectionStatus) {
	s.notify(func() { s.status = status })
}

func (s *Store) addHighlight(id string) {
	s.notify(func() { s.highlights[id] = struct{}{} })
}

func (s *Store) removeHighlight(id string) {
	s.notify(func() { delete(s.highlights, id) })
}

// notify applies a mutation and delivers the resulting snapshot to every
// listener. Listeners run outside the lock so they can call back into the
// store without deadlocking.
func (s *Store) notify(mutate func()) {
	s.mu.Lock()
	mutate()
	snap := s.snapshotLocked()
	targets := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		targets = append(targets, l)
	}
	s.mu.Unlock()

	for _, l := range targets {
		l(snap)
	}
}

func (s *Store) snapshotLocked() Snapshot {
	records := make([]models.CallRecord, len(s.records))
	copy(records, s.records)

	highlights := make([]string, 0, len(s.highlights))
	for id := range s.highlights {
		highlights = append(highlights, id)
	}
	sort.Strings(highlights)

	return Snapshot{
		Records:    records,
		Status:     s.status,
		Highlights: highlights,
	}
}
