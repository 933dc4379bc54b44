// Package config loads, validates and describes the host configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/reglet-dev/sourcehost/domain/entities"
	domainerrors "github.com/reglet-dev/sourcehost/domain/errors"
)

// validate is shared; validator caches struct metadata per type.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Load reads the YAML file at path over the defaults, applies overrides and
// validates the result. An empty path loads the defaults alone.
func Load(path string, overrides ...entities.HostConfigOption) (entities.HostConfig, error) {
	if path == "" {
		return finish(entities.DefaultHostConfig(), overrides)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return entities.HostConfig{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data, overrides...)
}

// Parse decodes YAML over the defaults. Unknown fields are rejected.
func Parse(data []byte, overrides ...entities.HostConfigOption) (entities.HostConfig, error) {
	cfg := entities.DefaultHostConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return entities.HostConfig{}, &domainerrors.ConfigError{Err: fmt.Errorf("invalid yaml: %w", err)}
	}
	return finish(cfg, overrides)
}

func finish(cfg entities.HostConfig, overrides []entities.HostConfigOption) (entities.HostConfig, error) {
	for _, opt := range overrides {
		opt(&cfg)
	}
	if err := Validate(cfg); err != nil {
		return entities.HostConfig{}, err
	}
	return cfg, nil
}

// Validate checks cfg against its validation tags. Each failing field is
// reported as a *ConfigError named by its YAML path.
func Validate(cfg entities.HostConfig) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &domainerrors.ConfigError{Err: err}
	}

	errs := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs = append(errs, &domainerrors.ConfigError{
			Field: fieldPath(fe.Namespace()),
			Err:   fmt.Errorf("value %v fails %q", fe.Value(), rule(fe)),
		})
	}
	return errors.Join(errs...)
}

// fieldPath drops the root type name from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func rule(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}
