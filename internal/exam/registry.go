package exam

import (
	"sync"
	"time"
)

// Store keeps live attempts addressable by id.
type Store interface {
	Put(a *Attempt) error
	Get(id string) (*Attempt, error)
	Remove(id string)
	Len() int
	// Sweep evicts attempts idle since before cutoff and returns the ones it
	// had to abandon on the way out.
	Sweep(cutoff time.Time) []*Attempt
}

type memoryStore struct {
	mu       sync.RWMutex
	attempts map[string]*Attempt
}

func NewInMemoryStore() Store {
	return &memoryStore{attempts: map[string]*Attempt{}}
}

func (m *memoryStore) Put(a *Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[a.ID()] = a
	return nil
}

func (m *memoryStore) Get(id string) (*Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return nil, ErrAttemptNotFound
	}
	return a, nil
}

// Remove drops the attempt and stops its countdown, if any.
func (m *memoryStore) Remove(id string) {
	m.mu.Lock()
	a, ok := m.attempts[id]
	delete(m.attempts, id)
	m.mu.Unlock()
	if ok && a.timer != nil {
		a.timer.Stop()
	}
}

func (m *memoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.attempts)
}

// Sweep drops finished attempts and abandons idle practice attempts. Exam
// attempts still in progress are left to their countdown.
func (m *memoryStore) Sweep(cutoff time.Time) []*Attempt {
	m.mu.RLock()
	all := make([]*Attempt, 0, len(m.attempts))
	for _, a := range m.attempts {
		all = append(all, a)
	}
	m.mu.RUnlock()

	var abandoned []*Attempt
	for _, a := range all {
		if !a.LastActive().Before(cutoff) {
			continue
		}
		if a.State() == StateInProgress {
			if a.timer != nil {
				continue
			}
			if _, err := a.Abandon(); err != nil {
				// submitted meanwhile; it is fresh again
				continue
			}
			abandoned = append(abandoned, a)
		}
		m.Remove(a.ID())
	}
	return abandoned
}
