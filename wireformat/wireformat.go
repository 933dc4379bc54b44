// Package wireformat defines the binary value format exchanged between the host
// and the guest. These encodings are the ABI contract: both sides must agree on
// every byte, so changes here must remain backward compatible.
//
// A value travels as an Encoded Buffer:
//
//	[length int32 LE][capacity uint32 LE][payload ...]
//
// length is the payload size in bytes. capacity is the size of the allocation
// that holds the buffer; the guest needs it to release the memory later. A
// length of -1 marks the error branch, whose payload is itself a
// [length][capacity][utf8 message] triple. A zero-length payload is the null
// (unit) value.
package wireformat

import (
	"fmt"
	"sort"
	"time"
)

// Kind identifies the type of a structured value.
type Kind uint8

// Payload tags. The numeric values are part of the wire format.
const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindString
	KindBool
	KindArray
	KindObject
	KindDate
	KindNode
)

var kindNames = [...]string{
	KindNull:   "null",
	KindInt:    "int",
	KindFloat:  "float",
	KindString: "string",
	KindBool:   "bool",
	KindArray:  "array",
	KindObject: "object",
	KindDate:   "date",
	KindNode:   "node",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Node is a structured value that refers to a host DOM resource by handle.
type Node int32

// KindOf reports the wire kind of a Go value. Values that cannot be encoded
// report ok == false.
//
// Canonical decoded types are nil, int64, float64, string, bool, []any,
// map[string]any, time.Time and Node. Other integer and float widths, []string
// and map[string]string are accepted on encode and normalised.
func KindOf(v any) (Kind, bool) {
	switch v.(type) {
	case nil:
		return KindNull, true
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		return KindInt, true
	case float32, float64:
		return KindFloat, true
	case string:
		return KindString, true
	case bool:
		return KindBool, true
	case []any, []string:
		return KindArray, true
	case map[string]any, map[string]string:
		return KindObject, true
	case time.Time:
		return KindDate, true
	case Node:
		return KindNode, true
	}
	return 0, false
}

// sortedKeys returns the keys of m in ascending order so that objects encode
// deterministically.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
