package state

import (
	"context"
	"path"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of Store.
// Suitable for single-node deployments and testing.
type MemoryStore struct {
	items     map[string]*memoryItem
	now       func() time.Time
	interval  time.Duration
	closed    bool
	cleanupCh chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

func (it *memoryItem) expired(now time.Time) bool {
	return !it.expiresAt.IsZero() && now.After(it.expiresAt)
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithCleanupInterval sets how often expired items are swept.
// A non-positive interval disables the sweeper.
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(ms *MemoryStore) {
		ms.interval = d
	}
}

// WithMemoryClock overrides the time source, for tests.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(ms *MemoryStore) {
		ms.now = now
	}
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	ms := &MemoryStore{
		items:     make(map[string]*memoryItem),
		now:       time.Now,
		interval:  time.Minute,
		cleanupCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(ms)
	}

	if ms.interval > 0 {
		ms.wg.Add(1)
		go ms.cleanupLoop()
	}

	return ms
}

// Get retrieves a value.
func (ms *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	if ms.closed {
		return nil, ErrStoreClosed
	}

	item, ok := ms.items[key]
	if !ok || item.expired(ms.now()) {
		return nil, ErrKeyNotFound
	}

	result := make([]byte, len(item.value))
	copy(result, item.value)
	return result, nil
}

// Set stores a value.
func (ms *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.closed {
		return ErrStoreClosed
	}

	item := &memoryItem{value: make([]byte, len(value))}
	copy(item.value, value)
	if ttl > 0 {
		item.expiresAt = ms.now().Add(ttl)
	}

	ms.items[key] = item
	return nil
}

// Delete removes a key.
func (ms *MemoryStore) Delete(ctx context.Context, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.closed {
		return ErrStoreClosed
	}

	delete(ms.items, key)
	return nil
}

// Exists checks if a key exists.
func (ms *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	if ms.closed {
		return false, ErrStoreClosed
	}

	item, ok := ms.items[key]
	return ok && !item.expired(ms.now()), nil
}

// Keys returns keys matching a pattern.
func (ms *MemoryStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	if ms.closed {
		return nil, ErrStoreClosed
	}

	var keys []string
	now := ms.now()
	for key, item := range ms.items {
		if item.expired(now) {
			continue
		}
		if matched, err := path.Match(pattern, key); err == nil && matched {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Close stops the sweeper and rejects further operations.
func (ms *MemoryStore) Close() error {
	ms.mu.Lock()
	if ms.closed {
		ms.mu.Unlock()
		return nil
	}
	ms.closed = true
	close(ms.cleanupCh)
	ms.mu.Unlock()

	ms.wg.Wait()
	return nil
}

func (ms *MemoryStore) cleanupLoop() {
	defer ms.wg.Done()

	ticker := time.NewTicker(ms.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ms.Sweep()
		case <-ms.cleanupCh:
			return
		}
	}
}

// Sweep removes expired items and returns how many were removed.
func (ms *MemoryStore) Sweep() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	removed := 0
	for key, item := range ms.items {
		if item.expired(now) {
			delete(ms.items, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of items in the store, expired ones included.
func (ms *MemoryStore) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.items)
}
