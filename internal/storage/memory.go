package storage

import (
	"context"
	"sync"
)

// MemoryKV keeps values in process memory. Used by tests and --ephemeral runs.
type MemoryKV struct {
	items sync.Map
}

// NewMemoryKV creates an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{}
}

// GetItem returns the value stored at key.
func (m *MemoryKV) GetItem(ctx context.Context, key string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}
	v, ok := m.items.Load(key)
	if !ok {
		return "", false, nil
	}
	return v.(string), true, nil
}

// SetItem stores value at key.
func (m *MemoryKV) SetItem(ctx context.Context, key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	m.items.Store(key, value)
	return nil
}

// RemoveItem deletes key.
func (m *MemoryKV) RemoveItem(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	m.items.Delete(key)
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryKV) Len() int {
	n := 0
	m.items.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
