// Package mocks provides in-memory test doubles shared across packages.
package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockCache is an in-memory mock implementation of the Cache interface
// Used for testing without requiring a real Redis instance
type MockCache struct {
	data map[string]string
	mu   sync.RWMutex

	// Optional error injection
	GetErr error
	SetErr error
	DelErr error
}

// NewMockCache creates a new mock cache instance
func NewMockCache() *MockCache {
	return &MockCache{
		data: make(map[string]string),
	}
}

// Get retrieves a value from the mock cache
func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	if m.GetErr != nil {
		return "", m.GetErr
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return empty string for non-existent keys (like Redis)
	return m.data[key], nil
}

// Set stores a value in the mock cache
func (m *MockCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetErr != nil {
		return m.SetErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Note: expiration is ignored in mock (no TTL implementation)
	m.data[key] = fmt.Sprintf("%v", value)
	return nil
}

// Del deletes keys from the mock cache
func (m *MockCache) Del(ctx context.Context, keys ...string) error {
	if m.DelErr != nil {
		return m.DelErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

// Clear resets the mock cache (useful for tests)
func (m *MockCache) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = make(map[string]string)
}
