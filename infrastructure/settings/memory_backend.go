package settings

import (
	"context"
	"maps"
	"sync"
)

// MemoryBackend keeps settings for the lifetime of the process.
type MemoryBackend struct {
	values map[string]any
	mu     sync.Mutex
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: map[string]any{}}
}

func (b *MemoryBackend) Load(_ context.Context) (map[string]any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return maps.Clone(b.values), nil
}

func (b *MemoryBackend) Put(_ context.Context, key string, value any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = value
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.values, key)
	return nil
}
