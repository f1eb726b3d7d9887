package session

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore keeps serialized page states in process memory with a sliding TTL.
type MemoryStore struct {
	ttl     time.Duration
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		entries: make(map[string]*memoryEntry),
	}
}

func (m *MemoryStore) Load(ctx context.Context, id string) (*PageState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(id)
}

func (m *MemoryStore) Update(ctx context.Context, id string, fn func(*PageState) error) (*PageState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, err := m.get(id)
	if err != nil {
		return nil, err
	}
	if err := fn(st); err != nil {
		return nil, err
	}
	st.UpdatedAt = time.Now()

	data, err := encode(st)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't serialize page state")
	}
	m.entries[id] = &memoryEntry{data: data, expiresAt: time.Now().Add(m.ttl)}
	return st, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

// Purge drops expired sessions and returns how many were removed.
func (m *MemoryStore) Purge() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, id)
			removed++
		}
	}
	return removed
}

func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) get(id string) (*PageState, error) {
	e, ok := m.entries[id]
	if !ok {
		return newPageState(id), nil
	}
	if time.Now().After(e.expiresAt) {
		delete(m.entries, id)
		return newPageState(id), nil
	}

	st, err := decode(id, e.data)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't deserialize page state")
	}
	return st, nil
}
