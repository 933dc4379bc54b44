package ports

import "context"

// SettingsBackend persists settings outside the sandbox. Values are the
// scalar kinds a guest can store: bool, int64, float64, string and []string.
type SettingsBackend interface {
	Load(ctx context.Context) (map[string]any, error)
	Put(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
}
