package settings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/reglet-dev/sourcehost/domain/entities"
	"github.com/reglet-dev/sourcehost/domain/ports"
)

type fileBackendConfig struct {
	path     string
	dirPerm  os.FileMode
	filePerm os.FileMode
}

func defaultFileBackendConfig() fileBackendConfig {
	return fileBackendConfig{
		path:     filepath.Join(os.Getenv("HOME"), ".sourcehost", "settings.yaml"),
		dirPerm:  0o755,
		filePerm: 0o600,
	}
}

// FileBackendOption configures a FileBackend.
type FileBackendOption func(*fileBackendConfig)

// WithPath sets the settings file.
func WithPath(path string) FileBackendOption {
	return func(c *fileBackendConfig) {
		c.path = path
	}
}

// WithFilePermissions sets the mode of the settings file. Default is 0o600.
func WithFilePermissions(perm os.FileMode) FileBackendOption {
	return func(c *fileBackendConfig) {
		c.filePerm = perm
	}
}

// WithDirPermissions sets the mode of created directories. Default is 0o755.
func WithDirPermissions(perm os.FileMode) FileBackendOption {
	return func(c *fileBackendConfig) {
		c.dirPerm = perm
	}
}

// record keeps the kind next to the value so ints survive a YAML round trip
// as ints and floats as floats.
type record struct {
	Value any    `yaml:"value"`
	Kind  string `yaml:"kind"`
}

// FileBackend persists settings as a YAML document keyed by setting name.
// Every write rewrites the file.
type FileBackend struct {
	config fileBackendConfig
	mu     sync.Mutex
}

// NewFileBackend creates a FileBackend with the given options.
func NewFileBackend(opts ...FileBackendOption) ports.SettingsBackend {
	cfg := defaultFileBackendConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &FileBackend{config: cfg}
}

// Path returns the settings file.
func (b *FileBackend) Path() string {
	return b.config.path
}

func (b *FileBackend) read() (map[string]record, error) {
	data, err := os.ReadFile(b.config.path)
	if os.IsNotExist(err) {
		return map[string]record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}
	recs := map[string]record{}
	if err := yaml.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}
	return recs, nil
}

func (b *FileBackend) write(recs map[string]record) error {
	data, err := yaml.Marshal(recs)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(b.config.path), b.config.dirPerm); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := os.WriteFile(b.config.path, data, b.config.filePerm); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}

// Load implements ports.SettingsBackend.
func (b *FileBackend) Load(_ context.Context) (map[string]any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	recs, err := b.read()
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(recs))
	for k, r := range recs {
		v, err := fromRecord(r)
		if err != nil {
			return nil, fmt.Errorf("setting %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// Put implements ports.SettingsBackend.
func (b *FileBackend) Put(_ context.Context, key string, value any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	recs, err := b.read()
	if err != nil {
		return err
	}
	norm, err := normalize(value)
	if err != nil {
		return err
	}
	recs[key] = record{Kind: KindOf(norm).String(), Value: norm}
	return b.write(recs)
}

// Delete implements ports.SettingsBackend.
func (b *FileBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	recs, err := b.read()
	if err != nil {
		return err
	}
	if _, ok := recs[key]; !ok {
		return nil
	}
	delete(recs, key)
	return b.write(recs)
}

func fromRecord(r record) (any, error) {
	var kind entities.SettingKind = -1
	for k := entities.SettingData; k <= entities.SettingNull; k++ {
		if k.String() == r.Kind {
			kind = k
			break
		}
	}
	switch kind {
	case entities.SettingBool, entities.SettingString:
		return Coerce(kind, r.Value)
	case entities.SettingInt:
		switch n := r.Value.(type) {
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		}
	case entities.SettingFloat:
		switch n := r.Value.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		}
	case entities.SettingStringArray:
		if r.Value == nil {
			return []string{}, nil
		}
		return normalize(r.Value)
	}
	return nil, fmt.Errorf("%w: kind %q with %T", ErrInvalidValue, r.Kind, r.Value)
}
