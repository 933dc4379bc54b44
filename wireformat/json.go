package wireformat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

const nodeKey = "$node"

// ToJSON renders a value as JSON for display. Dates become RFC 3339 strings
// and nodes become {"$node": handle}.
func ToJSON(v any) ([]byte, error) {
	return json.Marshal(toJSONValue(v))
}

func toJSONValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case Node:
		return map[string]any{nodeKey: int32(x)}
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = toJSONValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = toJSONValue(item)
		}
		return out
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
	}
	return v
}

// FromJSON parses JSON into a value. Integral numbers become int64, other
// numbers float64, and {"$node": n} objects become Node. Strings are never
// reinterpreted as dates.
func FromJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("wireformat: invalid json: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("wireformat: invalid json: trailing data")
	}
	return fromJSONValue(raw)
}

func fromJSONValue(v any) (any, error) {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("wireformat: invalid number %q", x.String())
		}
		return f, nil
	case []any:
		for i, item := range x {
			conv, err := fromJSONValue(item)
			if err != nil {
				return nil, err
			}
			x[i] = conv
		}
		return x, nil
	case map[string]any:
		if n, ok := x[nodeKey]; ok && len(x) == 1 {
			if num, ok := n.(json.Number); ok {
				h, err := num.Int64()
				if err == nil && h >= math.MinInt32 && h <= math.MaxInt32 {
					return Node(h), nil
				}
			}
		}
		for k, item := range x {
			conv, err := fromJSONValue(item)
			if err != nil {
				return nil, err
			}
			x[k] = conv
		}
		return x, nil
	}
	return v, nil
}
