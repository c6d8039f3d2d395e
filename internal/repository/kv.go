package repository

import (
	"context"
	"sync"
)

// KV is the whole-value key-value store the diary persists into.
// Get reports found=false for a missing key rather than an error.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// MemoryKV is an in-process KV for tests. It is never selected by
// configuration; the daemon persists through sqlite or redis.
type MemoryKV struct {
	mu     sync.Mutex
	values map[string]string

	// GetErr and SetErr, when set, are returned by every Get or Set.
	GetErr error
	SetErr error
	// Writes counts successful Sets.
	Writes int
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string]string)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return "", false, m.GetErr
	}
	value, ok := m.values[key]
	return value, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	m.values[key] = value
	m.Writes++
	return nil
}
