package guest

import (
	"fmt"
	"math"
)

// ArgumentError reports an export argument of the wrong type.
type ArgumentError struct {
	Got   any
	Want  string
	Index int
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("argument %d: want %s, got %T", e.Index, e.Want, e.Got)
}

func stringArg(args []any, i int) (string, error) {
	s, ok := args[i].(string)
	if !ok {
		return "", &ArgumentError{Index: i, Want: "string", Got: args[i]}
	}
	return s, nil
}

func optionalString(args []any, i int) (string, error) {
	if args[i] == nil {
		return "", nil
	}
	return stringArg(args, i)
}

func intArg(args []any, i int) (int, error) {
	switch v := args[i].(type) {
	case int64:
		return int(v), nil
	case float64:
		if v == math.Trunc(v) {
			return int(v), nil
		}
	}
	return 0, &ArgumentError{Index: i, Want: "int", Got: args[i]}
}

func boolArg(args []any, i int) (bool, error) {
	b, ok := args[i].(bool)
	if !ok {
		return false, &ArgumentError{Index: i, Want: "bool", Got: args[i]}
	}
	return b, nil
}

func arrayArg(args []any, i int) ([]any, error) {
	switch v := args[i].(type) {
	case nil:
		return nil, nil
	case []any:
		return v, nil
	}
	return nil, &ArgumentError{Index: i, Want: "array", Got: args[i]}
}

func stringMapArg(args []any, i int) (map[string]string, error) {
	obj, ok := args[i].(map[string]any)
	if !ok {
		if args[i] == nil {
			return map[string]string{}, nil
		}
		return nil, &ArgumentError{Index: i, Want: "object", Got: args[i]}
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		s, ok := v.(string)
		if !ok {
			return nil, &ArgumentError{Index: i, Want: "object of strings", Got: v}
		}
		out[k] = s
	}
	return out, nil
}
