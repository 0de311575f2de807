package lock

import (
	"context"
	"fmt"
	"sync"
)

type memoryEntry struct {
	sem  chan struct{}
	refs int
}

// MemoryLocker holds one semaphore per key while anyone is holding or waiting
// on it, so idle keys cost nothing.
type MemoryLocker struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{entries: make(map[string]*memoryEntry)}
}

func (m *MemoryLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &memoryEntry{sem: make(chan struct{}, 1)}
		m.entries[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.sem
				m.release(key, e)
			})
		}, nil
	case <-ctx.Done():
		m.release(key, e)
		return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
	}
}

func (m *MemoryLocker) release(key string, e *memoryEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}

func (m *MemoryLocker) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
