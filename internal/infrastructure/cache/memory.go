package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process cache backend. Entries expire on read and a
// background janitor removes stale ones so abandoned session URLs do not
// accumulate.
type Memory struct {
	mu   sync.RWMutex
	data map[string]memoryEntry

	stop     chan struct{}
	stopOnce sync.Once
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// NewMemory creates a memory cache and starts its cleanup goroutine.
func NewMemory(cleanupInterval time.Duration) *Memory {
	if cleanupInterval == 0 {
		cleanupInterval = time.Minute
	}

	m := &Memory{
		data: make(map[string]memoryEntry),
		stop: make(chan struct{}),
	}

	go m.janitor(cleanupInterval)
	return m
}

// Name returns the backend identifier.
func (m *Memory) Name() string { return "memory" }

// Get retrieves a value, treating expired entries as absent.
func (m *Memory) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	entry, ok := m.data[key]
	m.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return "", ErrNotFound
	}
	return entry.value, nil
}

// Set stores a value with the given TTL.
func (m *Memory) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	m.data[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

// Delete removes a key. Absent keys are not an error.
func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

// Close stops the cleanup goroutine.
func (m *Memory) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Memory) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			m.mu.Lock()
			for key, entry := range m.data {
				if now.After(entry.expiresAt) {
					delete(m.data, key)
				}
			}
			m.mu.Unlock()
		case <-m.stop:
			return
		}
	}
}
