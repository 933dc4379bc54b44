// Package settings is the persisted key/value adapter. Scalars are stored
// under their key; a string map is stored as two parallel string arrays under
// "<key>.keys" and "<key>.values" and zipped back together on read.
package settings

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/reglet-dev/sourcehost/domain/entities"
	domainerrors "github.com/reglet-dev/sourcehost/domain/errors"
	"github.com/reglet-dev/sourcehost/domain/ports"
)

// Sentinel errors reported by the adapter.
var (
	ErrInvalidKey   = errors.New("settings: invalid key")
	ErrInvalidValue = errors.New("settings: invalid value")
)

const (
	keysSuffix   = ".keys"
	valuesSuffix = ".values"
)

// Store holds the settings of one guest installation. Writes go through to
// the backend before they are visible.
type Store struct {
	values  map[string]any
	backend ports.SettingsBackend
	policy  ports.Policy
	grants  *entities.GrantSet
	logger  *zap.Logger
	mu      sync.RWMutex
}

// Option configures a Store.
type Option func(*Store)

// WithBackend persists the store. The default keeps values in memory only.
func WithBackend(b ports.SettingsBackend) Option {
	return func(s *Store) {
		if b != nil {
			s.backend = b
		}
	}
}

// WithPolicy enforces settings grants. A nil grant set disables the check.
func WithPolicy(p ports.Policy, grants *entities.GrantSet) Option {
	return func(s *Store) { s.policy, s.grants = p, grants }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Open creates a store and loads the backend contents.
func Open(ctx context.Context, opts ...Option) (*Store, error) {
	s := &Store{backend: NewMemoryBackend(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	values, err := s.backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	s.values = make(map[string]any, len(values))
	for k, v := range values {
		norm, err := normalize(v)
		if err != nil {
			s.logger.Warn("dropping unreadable setting", zap.String("key", k), zap.Error(err))
			continue
		}
		s.values[k] = norm
	}
	return s, nil
}

func (s *Store) check(key, op string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if s.policy == nil || s.grants == nil {
		return nil
	}
	if !s.policy.CheckSettings(entities.SettingsRequest{Key: key, Operation: op}, s.grants) {
		return &domainerrors.CapabilityError{Required: "settings", Pattern: key}
	}
	return nil
}

// Get returns the value under key: a scalar, or a map[string]string rebuilt
// from the composite arrays.
func (s *Store) Get(key string) (any, bool, error) {
	if err := s.check(key, entities.SettingsRead); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.values[key]; ok {
		return v, true, nil
	}
	keys, ok1 := s.values[key+keysSuffix].([]string)
	vals, ok2 := s.values[key+valuesSuffix].([]string)
	if !ok1 || !ok2 || len(keys) != len(vals) {
		return nil, false, nil
	}
	m := make(map[string]string, len(keys))
	for i, k := range keys {
		m[k] = vals[i]
	}
	return m, true, nil
}

// Set stores value under key. A map[string]string is decomposed into the
// composite arrays; nil deletes the key and its composite arrays.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	if err := s.check(key, entities.SettingsWrite); err != nil {
		return err
	}

	if m, ok := value.(map[string]string); ok {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		vals := make([]string, len(keys))
		for i, k := range keys {
			vals[i] = m[k]
		}
		return s.apply(ctx, map[string]any{
			key:                nil,
			key + keysSuffix:   keys,
			key + valuesSuffix: vals,
		})
	}
	if value == nil {
		return s.apply(ctx, map[string]any{key: nil, key + keysSuffix: nil, key + valuesSuffix: nil})
	}

	norm, err := normalize(value)
	if err != nil {
		return err
	}
	return s.apply(ctx, map[string]any{key: norm, key + keysSuffix: nil, key + valuesSuffix: nil})
}

// apply writes every change to the backend, then to memory. nil deletes.
// When a backend write fails, the keys already written are restored to their
// previous values.
func (s *Store) apply(ctx context.Context, changes map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var written []string
	for _, k := range slices.Sorted(maps.Keys(changes)) {
		if err := s.persist(ctx, k, changes[k]); err != nil {
			s.rollback(ctx, written)
			return err
		}
		written = append(written, k)
	}
	for _, k := range written {
		if v := changes[k]; v != nil {
			s.values[k] = v
		} else {
			delete(s.values, k)
		}
	}
	return nil
}

func (s *Store) persist(ctx context.Context, key string, v any) error {
	if v == nil {
		if _, ok := s.values[key]; !ok {
			return nil
		}
		if err := s.backend.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to delete setting %q: %w", key, err)
		}
		return nil
	}
	if err := s.backend.Put(ctx, key, v); err != nil {
		return fmt.Errorf("failed to store setting %q: %w", key, err)
	}
	return nil
}

func (s *Store) rollback(ctx context.Context, keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		k := keys[i]
		var err error
		if old, ok := s.values[k]; ok {
			err = s.backend.Put(ctx, k, old)
		} else {
			err = s.backend.Delete(ctx, k)
		}
		if err != nil {
			s.logger.Error("failed to roll back setting", zap.String("key", k), zap.Error(err))
		}
	}
}

// Entry is one stored key with its kind.
type Entry struct {
	Value any
	Key   string
	Kind  entities.SettingKind
}

// List returns every stored key in order. Composite arrays are listed under
// their synthetic keys.
func (s *Store) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, len(s.values))
	for _, k := range slices.Sorted(maps.Keys(s.values)) {
		v := s.values[k]
		out = append(out, Entry{Key: k, Value: v, Kind: KindOf(v)})
	}
	return out
}

// BackendFor returns the backend cfg selects.
func BackendFor(cfg entities.SettingsConfig) ports.SettingsBackend {
	if cfg.Backend == "yaml" {
		return NewFileBackend(WithPath(cfg.Path))
	}
	return NewMemoryBackend()
}
