package state

import (
	"sort"
	"sync"
	"time"

	"pluginrunner/internal/catalog"
	"pluginrunner/pkg/logging"
)

// RuntimeState is the realized state of a component.
type RuntimeState string

const (
	Stopped RuntimeState = "Stopped"
	Started RuntimeState = "Started"
)

// ChangeEvent is published whenever a component changes state.
type ChangeEvent struct {
	Component catalog.ComponentID
	OldState  RuntimeState
	NewState  RuntimeState
	// Error is the failure that caused the change, if any.
	Error     error
	Timestamp int64
}

// Entry is the recorded state of one component.
type Entry struct {
	State     RuntimeState
	LastError error
	Since     time.Time
}

// Store is the authoritative runtime state. The executor is its only writer;
// reads are safe at any time from any goroutine.
type Store struct {
	mu      sync.RWMutex
	entries map[catalog.ComponentID]Entry
	now     func() time.Time

	// subMu is held for reading while events are sent so Unsubscribe never
	// closes a channel mid-send.
	subMu       sync.RWMutex
	subscribers []chan ChangeEvent
}

// NewStore creates a Store in which every component is Stopped.
func NewStore() *Store {
	return &Store{
		entries: make(map[catalog.ComponentID]Entry),
		now:     time.Now,
	}
}

// Get returns the recorded entry. Unknown components are Stopped.
func (s *Store) Get(id catalog.ComponentID) Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.entries[id]; ok {
		return e
	}
	return Entry{State: Stopped}
}

// IsRunning reports whether the component is Started.
func (s *Store) IsRunning(id catalog.ComponentID) bool {
	return s.Get(id).State == Started
}

// Set records a new state. err is kept as the last error of the component
// (nil clears it). Subscribers are notified only when the state changes.
func (s *Store) Set(id catalog.ComponentID, newState RuntimeState, err error) {
	s.mu.Lock()
	old, known := s.entries[id]
	if !known {
		old = Entry{State: Stopped}
	}
	changed := old.State != newState
	entry := Entry{State: newState, LastError: err, Since: old.Since}
	if changed || !known {
		entry.Since = s.now()
	}
	s.entries[id] = entry
	s.mu.Unlock()

	if !changed {
		return
	}

	event := ChangeEvent{
		Component: id,
		OldState:  old.State,
		NewState:  newState,
		Error:     err,
		Timestamp: entry.Since.Unix(),
	}
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, subscriber := range s.subscribers {
		select {
		case subscriber <- event:
		default:
			// Don't block if subscriber can't receive immediately
			logging.Debug("State", "Subscriber blocked, skipping event for component %s", id)
		}
	}
}

// Forget drops a component that is Stopped and no longer of interest.
func (s *Store) Forget(id catalog.ComponentID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok && e.State == Stopped {
		delete(s.entries, id)
	}
}

// Running returns the Started components, sorted by id for stable output.
func (s *Store) Running() []catalog.ComponentID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	running := make([]catalog.ComponentID, 0, len(s.entries))
	for id, e := range s.entries {
		if e.State == Started {
			running = append(running, id)
		}
	}
	sort.Slice(running, func(i, j int) bool {
		return running[i].String() < running[j].String()
	})
	return running
}

// Snapshot returns a copy of every recorded entry.
func (s *Store) Snapshot() map[catalog.ComponentID]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[catalog.ComponentID]Entry, len(s.entries))
	for id, e := range s.entries {
		snapshot[id] = e
	}
	return snapshot
}

// Subscribe returns a buffered channel receiving every state change until it
// is passed to Unsubscribe. Slow subscribers miss events rather than block
// the writer.
func (s *Store) Subscribe() <-chan ChangeEvent {
	eventChan := make(chan ChangeEvent, 100)
	s.subMu.Lock()
	s.subscribers = append(s.subscribers, eventChan)
	s.subMu.Unlock()
	return eventChan
}

// Unsubscribe stops delivery to a channel returned by Subscribe and closes
// it. Unknown channels are ignored.
func (s *Store) Unsubscribe(ch <-chan ChangeEvent) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for i, subscriber := range s.subscribers {
		if subscriber == ch {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			close(subscriber)
			return
		}
	}
}
