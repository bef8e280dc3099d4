// Package queue bounds active tasks behind a FIFO wait list with a
// dynamically adjustable cap (component C12).
package queue

import "sync"

// Info is a snapshot of the queue's current state.
type Info struct {
	Cap     int
	Active  int
	Waiting int
	Total   int
}

// Manager enforces a concurrency cap: at most Cap tasks are active at
// once, the rest wait in FIFO order.
type Manager struct {
	mu      sync.RWMutex
	waiting []string
	active  map[string]bool
	cap     int
}

// New returns a Manager with the given initial cap.
func New(cap int) *Manager {
	if cap < 1 {
		cap = 1
	}
	return &Manager{active: make(map[string]bool), cap: cap}
}

// Enqueue adds id to the queue. It returns true if id was admitted to
// the active set immediately (cap was not yet reached), false if it
// was placed on the wait list.
func (m *Manager) Enqueue(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.active) < m.cap {
		m.active[id] = true
		return true
	}
	m.waiting = append(m.waiting, id)
	return false
}

// Complete marks id as no longer active and admits the next waiting
// task, if any, returning its id.
func (m *Manager) Complete(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.active, id)
	return m.admitNextLocked()
}

// Remove drops id from either the active set or the wait list. If id
// was active, the next waiting task (if any) is admitted and
// returned.
func (m *Manager) Remove(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active[id] {
		delete(m.active, id)
		return m.admitNextLocked()
	}

	for i, w := range m.waiting {
		if w == id {
			m.waiting = append(m.waiting[:i], m.waiting[i+1:]...)
			break
		}
	}
	return "", false
}

// SetCap changes the concurrency cap. If the new cap is larger, tasks
// are popped off the front of the wait list up to the new headroom
// and returned for the caller to start. A smaller cap never preempts
// already-running tasks; it only takes effect on the next admission.
func (m *Manager) SetCap(newCap int) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if newCap < 1 {
		newCap = 1
	}
	m.cap = newCap

	var started []string
	for len(m.active) < m.cap && len(m.waiting) > 0 {
		id, ok := m.admitNextLocked()
		if !ok {
			break
		}
		started = append(started, id)
	}
	return started
}

// Info returns a snapshot of the queue's current state.
func (m *Manager) Info() Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Info{
		Cap:     m.cap,
		Active:  len(m.active),
		Waiting: len(m.waiting),
		Total:   len(m.active) + len(m.waiting),
	}
}

// IsActive reports whether id is currently in the active set.
func (m *Manager) IsActive(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active[id]
}

// IsQueued reports whether id is currently waiting.
func (m *Manager) IsQueued(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, w := range m.waiting {
		if w == id {
			return true
		}
	}
	return false
}

// Reorder moves id to position in the wait list (0-indexed from the
// front). A no-op if id is not currently waiting.
func (m *Manager) Reorder(id string, position int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := -1
	for i, w := range m.waiting {
		if w == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return
	}

	m.waiting = append(m.waiting[:idx], m.waiting[idx+1:]...)
	if position < 0 {
		position = 0
	}
	if position > len(m.waiting) {
		position = len(m.waiting)
	}
	m.waiting = append(m.waiting[:position], append([]string{id}, m.waiting[position:]...)...)
}

// GetQueue returns a copy of the current wait list, in order.
func (m *Manager) GetQueue() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.waiting))
	copy(out, m.waiting)
	return out
}

// GetActive returns the current active set as a slice, in no
// particular order.
func (m *Manager) GetActive() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.active))
	for id := range m.active {
		out = append(out, id)
	}
	return out
}

func (m *Manager) admitNextLocked() (string, bool) {
	if len(m.active) >= m.cap || len(m.waiting) == 0 {
		return "", false
	}
	id := m.waiting[0]
	m.waiting = m.waiting[1:]
	m.active[id] = true
	return id, true
}
