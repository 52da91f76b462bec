package catalog

import (
	"fmt"
	"strings"
	"sync"
)

// Memory is an ordered, thread-safe Catalog. Components keep the order in
// which they were added.
type Memory struct {
	mu    sync.RWMutex
	order []ComponentID
	byID  map[ComponentID]ComponentDescriptor
}

// NewMemory creates a catalog holding the given descriptors in order.
func NewMemory(descriptors ...ComponentDescriptor) (*Memory, error) {
	m := &Memory{byID: make(map[ComponentID]ComponentDescriptor)}
	for _, d := range descriptors {
		if err := m.Add(d); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Add appends a component to the catalog.
func (m *Memory) Add(d ComponentDescriptor) error {
	if d.ID.IsNil() {
		return fmt.Errorf("component %q has no id", d.Name)
	}
	for _, r := range d.Requirements {
		if r.Service == "" {
			return fmt.Errorf("component %s has a requirement without a service", d.DisplayName())
		}
		if !r.Level.IsValid() {
			return fmt.Errorf("component %s: invalid requirement level %d for service %s", d.DisplayName(), int(r.Level), r.Service)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.byID == nil {
		m.byID = make(map[ComponentID]ComponentDescriptor)
	}
	if _, exists := m.byID[d.ID]; exists {
		return fmt.Errorf("component %s already registered", d.ID)
	}

	m.byID[d.ID] = cloneDescriptor(d)
	m.order = append(m.order, d.ID)
	return nil
}

// Remove deletes a component. It reports whether the component existed.
func (m *Memory) Remove(id ComponentID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byID[id]; !exists {
		return false
	}
	delete(m.byID, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

// Replace swaps the whole content of the catalog, e.g. after rediscovery.
func (m *Memory) Replace(other *Memory) {
	descriptors := other.AllComponents()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.byID = make(map[ComponentID]ComponentDescriptor, len(descriptors))
	m.order = make([]ComponentID, 0, len(descriptors))
	for _, d := range descriptors {
		m.byID[d.ID] = d
		m.order = append(m.order, d.ID)
	}
}

// GetComponent implements Catalog.
func (m *Memory) GetComponent(id ComponentID) (*ComponentDescriptor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.byID[id]
	if !ok {
		return nil, false
	}
	copied := cloneDescriptor(d)
	return &copied, true
}

// AllComponents implements Catalog.
func (m *Memory) AllComponents() []ComponentDescriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]ComponentDescriptor, 0, len(m.order))
	for _, id := range m.order {
		all = append(all, cloneDescriptor(m.byID[id]))
	}
	return all
}

// Len returns the number of components.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// Lookup resolves a key to a component id. The key is either the textual id
// or a component name (case-insensitive, first match in discovery order).
func (m *Memory) Lookup(key string) (ComponentID, bool) {
	if id, err := ParseComponentID(key); err == nil {
		m.mu.RLock()
		_, ok := m.byID[id]
		m.mu.RUnlock()
		return id, ok
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.order {
		if strings.EqualFold(m.byID[id].Name, key) {
			return id, true
		}
	}
	return NilComponentID, false
}

func cloneDescriptor(d ComponentDescriptor) ComponentDescriptor {
	c := d
	if d.Provides != nil {
		c.Provides = append([]ServiceID(nil), d.Provides...)
	}
	if d.Requirements != nil {
		c.Requirements = append([]Requirement(nil), d.Requirements...)
	}
	return c
}
