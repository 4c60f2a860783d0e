package blobstore

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string]Blob
	now   func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		blobs: make(map[string]Blob),
		now:   time.Now,
	}
}

// SetClock overrides the write-time source. Tests use it to age entries.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Get returns a copy of the blob stored under key.
func (m *Memory) Get(_ context.Context, key string) (*Blob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	body := make([]byte, len(b.Body))
	copy(body, b.Body)
	return &Blob{Body: body, LastModified: b.LastModified}, nil
}

// Put stores a copy of body under key.
func (m *Memory) Put(_ context.Context, key string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(body))
	copy(stored, body)
	m.blobs[key] = Blob{Body: stored, LastModified: m.now()}
	return nil
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

// Keys returns the stored keys in no particular order.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.blobs))
	for k := range m.blobs {
		keys = append(keys, k)
	}
	return keys
}
