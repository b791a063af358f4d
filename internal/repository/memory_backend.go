// internal/repository/memory_backend.go
package repository

import (
	"context"
	"sync"

	"p2p-lending/internal/domain"
	"p2p-lending/internal/util"
)

// MemoryBackend keeps the snapshot in process memory. Used for tests and STORE_DRIVER=memory.
type MemoryBackend struct {
	mu     sync.RWMutex
	snap   *domain.Snapshot
	writes int
}

// NewMemoryBackend creates an empty backend; the first update seeds it.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Read returns a copy of the stored snapshot.
func (m *MemoryBackend) Read(ctx context.Context) (*domain.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snap == nil {
		return nil, util.ErrNotFound
	}
	return m.snap.Clone(), nil
}

// Update applies fn to a copy and swaps it in only when fn succeeds.
func (m *MemoryBackend) Update(ctx context.Context, fn UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := fn(m.snap.Clone())
	if err != nil {
		return err
	}
	m.snap = next.Clone()
	m.writes++
	return nil
}

// Writes reports how many snapshots have been committed.
func (m *MemoryBackend) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// Close is a no-op.
func (m *MemoryBackend) Close() error {
	return nil
}
