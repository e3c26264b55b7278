package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store, used when CACHE_DRIVER=memory and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[Key]*Entry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[Key]*Entry),
		now:     time.Now,
	}
}

func (m *MemoryStore) Has(_ context.Context, key Key) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[key]
	return ok, nil
}

func (m *MemoryStore) Get(_ context.Context, key Key) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	e.Accessed = m.now()
	return e.Value, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key Key, value string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if e, ok := m.entries[key]; ok {
		e.Value = value
		e.Modified = now
		e.Accessed = now
		return string(key), nil
	}
	m.entries[key] = &Entry{Key: key, Value: value, Created: now, Modified: now, Accessed: now}
	return string(key), nil
}

func (m *MemoryStore) Remove(_ context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryStore) Touch(_ context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		e.Accessed = m.now()
	}
	return nil
}

func (m *MemoryStore) Entry(_ context.Context, key Key) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
