package settings

import (
	"fmt"
	"math"

	"github.com/reglet-dev/sourcehost/domain/entities"
)

// KindOf reports the setting kind of a normalised value.
func KindOf(v any) entities.SettingKind {
	switch v.(type) {
	case bool:
		return entities.SettingBool
	case int64:
		return entities.SettingInt
	case float64:
		return entities.SettingFloat
	case string:
		return entities.SettingString
	case []string:
		return entities.SettingStringArray
	case map[string]string:
		return entities.SettingData
	default:
		return entities.SettingNull
	}
}

// normalize converts a scalar to its canonical type. Arrays always come back
// non-nil, so an empty array survives a reload as an empty array.
func normalize(v any) (any, error) {
	switch x := v.(type) {
	case bool, int64, float64, string:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case float32:
		return float64(x), nil
	case []string:
		out := make([]string, len(x))
		copy(out, x)
		return out, nil
	case []any:
		out := make([]string, len(x))
		for i, item := range x {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: array item %d is %T", ErrInvalidValue, i, item)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrInvalidValue, v)
	}
}

// Coerce converts a decoded wire value to the Go value of kind. Ints are
// accepted where floats are expected, and integral floats where ints are.
func Coerce(kind entities.SettingKind, v any) (any, error) {
	bad := func() (any, error) {
		return nil, fmt.Errorf("%w: %s cannot hold %T", ErrInvalidValue, kind, v)
	}
	switch kind {
	case entities.SettingNull:
		return nil, nil
	case entities.SettingBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case entities.SettingInt:
		switch n := v.(type) {
		case int64:
			return n, nil
		case float64:
			if n == math.Trunc(n) && math.Abs(n) < 1<<63 {
				return int64(n), nil
			}
		}
	case entities.SettingFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int64:
			return float64(n), nil
		}
	case entities.SettingString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case entities.SettingStringArray:
		if arr, ok := v.([]any); ok {
			return normalize(arr)
		}
	case entities.SettingData:
		obj, ok := v.(map[string]any)
		if !ok {
			return bad()
		}
		m := make(map[string]string, len(obj))
		for k, item := range obj {
			s, ok := item.(string)
			if !ok {
				return bad()
			}
			m[k] = s
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrInvalidValue, kind)
	}
	return bad()
}

// ToWire converts a stored value to the form the value codec encodes.
func ToWire(v any) any {
	switch x := v.(type) {
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(x))
		for k, s := range x {
			out[k] = s
		}
		return out
	default:
		return v
	}
}
