package hostfuncs

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/reglet-dev/sourcehost/domain/entities"
	domainerrors "github.com/reglet-dev/sourcehost/domain/errors"
	"github.com/reglet-dev/sourcehost/infrastructure/settings"
)

// NewDefaultsBundle returns the defaults namespace over the settings store.
func NewDefaultsBundle(s *Session) HostFuncBundle {
	return NewBundle(NamespaceDefaults,
		fn("get", i32x2, i32, s.defaultsGet),
		fn("set", i32x4, i32, s.defaultsSet),
	)
}

func defaultsCode(err error) int32 {
	var capErr *domainerrors.CapabilityError
	switch {
	case errors.As(err, &capErr):
		return DefaultsDenied
	case errors.Is(err, settings.ErrInvalidKey):
		return DefaultsInvalidKey
	case errors.Is(err, settings.ErrInvalidValue):
		return DefaultsInvalidValue
	default:
		return DefaultsFailedEncoding
	}
}

// defaultsGet returns a Buffer handle holding the encoded value; a missing
// key encodes as null.
func (s *Session) defaultsGet(_ context.Context, mem Memory, stack []uint64) {
	key, ok := readString(mem, argI32(stack, 0), argI32(stack, 1))
	if !ok || key == "" {
		retI32(stack, DefaultsInvalidKey)
		return
	}
	v, _, err := s.Settings.Get(key)
	if err != nil {
		retI32(stack, defaultsCode(err))
		return
	}
	retI32(stack, s.storeValue(NamespaceDefaults, settings.ToWire(v), DefaultsFailedEncoding))
}

func (s *Session) defaultsSet(ctx context.Context, mem Memory, stack []uint64) {
	key, ok := readString(mem, argI32(stack, 0), argI32(stack, 1))
	if !ok || key == "" {
		retI32(stack, DefaultsInvalidKey)
		return
	}
	kind := entities.SettingKind(argI32(stack, 2))
	if !kind.Valid() {
		retI32(stack, DefaultsInvalidValue)
		return
	}

	var value any
	if kind != entities.SettingNull {
		raw, err := readValue(mem, argI32(stack, 3))
		if err != nil {
			retI32(stack, DefaultsFailedDecoding)
			return
		}
		if value, err = settings.Coerce(kind, raw); err != nil {
			retI32(stack, DefaultsInvalidValue)
			return
		}
	}

	if err := s.Settings.Set(ctx, key, value); err != nil {
		s.Logger.Warn("failed to store setting", zap.String("key", key), zap.Error(err))
		retI32(stack, defaultsCode(err))
		return
	}
	retI32(stack, 0)
}
