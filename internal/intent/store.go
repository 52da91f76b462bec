package intent

import (
	"errors"
	"fmt"
	"sync"

	"pluginrunner/internal/catalog"
)

// ErrChangeCancelled is returned (wrapped) when a Changing hook vetoes a change.
var ErrChangeCancelled = errors.New("intent change cancelled")

// Change describes a change about to happen, or that happened, in a Store.
// Global changes (Clear) carry the nil component id.
type Change struct {
	Component catalog.ComponentID
	Previous  Intent
	Intent    Intent
}

// IsGlobal reports whether the change affects every component.
func (c Change) IsGlobal() bool {
	return c.Component.IsNil()
}

// ChangingFunc is called before a change. Returning an error cancels it.
type ChangingFunc func(Change) error

// ChangedFunc is called after a change was applied.
type ChangedFunc func(Change)

// Store holds user intents. It is safe for concurrent use; hooks run outside
// the lock so they may read the store.
type Store struct {
	mu       sync.RWMutex
	intents  map[catalog.ComponentID]Intent
	changing []ChangingFunc
	changed  []ChangedFunc
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{intents: make(map[catalog.ComponentID]Intent)}
}

// GetIntent implements Source.
func (s *Store) GetIntent(id catalog.ComponentID) Intent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.intents[id]
}

// Set records the intent for a component. Setting Unset removes it. Hooks
// and listeners run without the store lock held.
func (s *Store) Set(id catalog.ComponentID, i Intent) error {
	if id.IsNil() {
		return fmt.Errorf("cannot set intent for the nil component id")
	}
	if i != Unset && i != Start && i != Stop {
		return fmt.Errorf("invalid intent %d", int(i))
	}

	for {
		s.mu.RLock()
		previous := s.intents[id]
		hooks := append([]ChangingFunc(nil), s.changing...)
		s.mu.RUnlock()

		if previous == i {
			return nil
		}

		change := Change{Component: id, Previous: previous, Intent: i}
		for _, hook := range hooks {
			if err := hook(change); err != nil {
				return fmt.Errorf("%w: %s -> %s for %s: %v", ErrChangeCancelled, previous, i, id, err)
			}
		}

		// The hooks approved a change from previous. If the intent moved
		// while they ran unlocked, ask them again.
		s.mu.Lock()
		if s.intents[id] != previous {
			s.mu.Unlock()
			continue
		}
		if i == Unset {
			delete(s.intents, id)
		} else {
			s.intents[id] = i
		}
		listeners := append([]ChangedFunc(nil), s.changed...)
		s.mu.Unlock()

		for _, l := range listeners {
			l(change)
		}
		return nil
	}
}

// Clear removes every intent.
func (s *Store) Clear() error {
	s.mu.RLock()
	empty := len(s.intents) == 0
	hooks := append([]ChangingFunc(nil), s.changing...)
	s.mu.RUnlock()

	if empty {
		return nil
	}

	change := Change{Component: catalog.NilComponentID}
	for _, hook := range hooks {
		if err := hook(change); err != nil {
			return fmt.Errorf("%w: clear: %v", ErrChangeCancelled, err)
		}
	}

	s.mu.Lock()
	s.intents = make(map[catalog.ComponentID]Intent)
	listeners := append([]ChangedFunc(nil), s.changed...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(change)
	}
	return nil
}

// All returns a copy of the recorded intents.
func (s *Store) All() map[catalog.ComponentID]Intent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make(map[catalog.ComponentID]Intent, len(s.intents))
	for id, i := range s.intents {
		all[id] = i
	}
	return all
}

// OnChanging registers a hook that may veto changes.
func (s *Store) OnChanging(fn ChangingFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changing = append(s.changing, fn)
}

// OnChanged registers a listener notified after each change.
func (s *Store) OnChanged(fn ChangedFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changed = append(s.changed, fn)
}

// SystemConfig holds the system-level status of components.
type SystemConfig struct {
	mu       sync.RWMutex
	statuses map[catalog.ComponentID]Status
}

// NewSystemConfig creates a SystemConfig where every component is manual.
func NewSystemConfig() *SystemConfig {
	return &SystemConfig{statuses: make(map[catalog.ComponentID]Status)}
}

// Status returns the configured status, StatusManual by default.
func (c *SystemConfig) Status(id catalog.ComponentID) Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.statuses[id]
}

// SetStatus configures a component.
func (c *SystemConfig) SetStatus(id catalog.ComponentID, s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s == StatusManual {
		delete(c.statuses, id)
		return
	}
	c.statuses[id] = s
}

// All returns a copy of the non-manual statuses.
func (c *SystemConfig) All() map[catalog.ComponentID]Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	all := make(map[catalog.ComponentID]Status, len(c.statuses))
	for id, s := range c.statuses {
		all[id] = s
	}
	return all
}

// Layered combines system and user configuration into the effective intent:
// a disabled component is always stopped, otherwise the user intent wins, and
// an automatic-start component without user intent is started.
type Layered struct {
	System *SystemConfig
	User   *Store
}

// NewLayered creates a Layered source. Either layer may be nil.
func NewLayered(system *SystemConfig, user *Store) *Layered {
	return &Layered{System: system, User: user}
}

// GetIntent implements Source.
func (l *Layered) GetIntent(id catalog.ComponentID) Intent {
	status := StatusManual
	if l.System != nil {
		status = l.System.Status(id)
	}
	if status == StatusDisabled {
		return Stop
	}
	if l.User != nil {
		if i := l.User.GetIntent(id); i != Unset {
			return i
		}
	}
	if status == StatusAutomaticStart {
		return Start
	}
	return Unset
}
