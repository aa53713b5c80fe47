package session

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by [Backend.Get] when no record is stored.
var ErrNotFound = errors.New("session record not found")

// Backend persists a single opaque session record.
//
// Implementations must make Put atomic from a reader's point of view and
// Delete idempotent.
type Backend interface {
	Get(ctx context.Context) ([]byte, error)
	Put(ctx context.Context, data []byte) error
	Delete(ctx context.Context) error
}

// MemoryBackend keeps the record in process memory.
type MemoryBackend struct {
	mu   sync.RWMutex
	data []byte
}

// NewMemoryBackend returns an empty [MemoryBackend].
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (m *MemoryBackend) Get(_ context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.data == nil {
		return nil, ErrNotFound
	}
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out, nil
}

func (m *MemoryBackend) Put(_ context.Context, data []byte) error {
	next := make([]byte, len(data))
	copy(next, data)

	m.mu.Lock()
	m.data = next
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context) error {
	m.mu.Lock()
	m.data = nil
	m.mu.Unlock()
	return nil
}
