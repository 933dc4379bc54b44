package hostfuncs

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/reglet-dev/sourcehost/resource"
	"github.com/reglet-dev/sourcehost/wireformat"
)

// NewStdBundle returns the std namespace: resource release, buffer read-back,
// dates and structured value access.
func NewStdBundle(s *Session) HostFuncBundle {
	return NewBundle(NamespaceStd,
		fn("destroy", i32, none, s.stdDestroy),
		fn("buffer_len", i32, i32, s.stdBufferLen),
		fn("read_buffer", i32x3, i32, s.stdReadBuffer),
		fn("current_date", none, f64r, s.stdCurrentDate),
		fn("utc_offset", none, i64r, s.stdUTCOffset),
		fn("parse_date", []ValueType{I32, I32, I32, I32, I32, I32, I32, I32}, f64r, s.stdParseDate),
		fn("create_value", i32, i32, s.stdCreateValue),
		fn("typeof", i32, i32, s.stdTypeOf),
		fn("string_len", i32, i32, s.stdStringLen),
		fn("read_string", i32x3, i32, s.stdReadString),
		fn("read_int", i32, i64r, s.stdReadInt),
		fn("read_float", i32, f64r, s.stdReadFloat),
		fn("read_bool", i32, i32, s.stdReadBool),
		fn("read_date", i32, f64r, s.stdReadDate),
		fn("object_len", i32, i32, s.stdObjectLen),
		fn("object_get", i32x3, i32, s.stdObjectGet),
		fn("object_keys", i32, i32, s.stdObjectKeys),
		fn("array_len", i32, i32, s.stdArrayLen),
		fn("array_get", i32x2, i32, s.stdArrayGet),
		fn("encode", i32, i32, s.stdEncode),
	)
}

// value returns the structured value behind a Value or String handle.
func (s *Session) value(h int32) (any, bool) {
	kind, ok := s.Resources.Kind(h)
	if !ok {
		return nil, false
	}
	switch kind {
	case resource.KindValue, resource.KindString:
		return s.Resources.Get(h)
	}
	return nil, false
}

// bytesOf returns what std.read_buffer copies out for h: raw bytes for
// strings and buffers, the encoded envelope for values.
func (s *Session) bytesOf(h int32) ([]byte, bool) {
	kind, ok := s.Resources.Kind(h)
	if !ok {
		return nil, false
	}
	v, _ := s.Resources.Get(h)
	switch kind {
	case resource.KindString:
		str, ok := v.(string)
		return []byte(str), ok
	case resource.KindBuffer:
		b, ok := v.([]byte)
		return b, ok
	case resource.KindValue:
		b, err := wireformat.Encode(v)
		return b, err == nil
	}
	return nil, false
}

// copyOut writes b to the guest buffer (ptr, size) and returns 0 or the
// namespace's size or write failure code.
func copyOut(mem Memory, ptr, size int32, b []byte, tooSmall, failed int32) int32 {
	if size < 0 || len(b) > int(size) {
		return tooSmall
	}
	if !writeBytes(mem, ptr, size, b) {
		return failed
	}
	return 0
}

func (s *Session) stdDestroy(_ context.Context, _ Memory, stack []uint64) {
	s.Resources.Remove(argI32(stack, 0))
}

func (s *Session) stdBufferLen(_ context.Context, _ Memory, stack []uint64) {
	b, ok := s.bytesOf(argI32(stack, 0))
	if !ok {
		retI32(stack, StdInvalidDescriptor)
		return
	}
	retI32(stack, int32(len(b))) //nolint:gosec // G115: buffers are bounded by the codec
}

func (s *Session) stdReadBuffer(_ context.Context, mem Memory, stack []uint64) {
	b, ok := s.bytesOf(argI32(stack, 0))
	if !ok {
		retI32(stack, StdInvalidDescriptor)
		return
	}
	retI32(stack, copyOut(mem, argI32(stack, 1), argI32(stack, 2), b, StdInvalidBufferSize, StdFailedMemoryWrite))
}

func (s *Session) stdCurrentDate(_ context.Context, _ Memory, stack []uint64) {
	retF64(stack, unixSeconds(s.Now()))
}

func (s *Session) stdUTCOffset(_ context.Context, _ Memory, stack []uint64) {
	_, offset := s.Now().Zone()
	retI64(stack, int64(offset))
}

func (s *Session) stdParseDate(_ context.Context, mem Memory, stack []uint64) {
	fail := func() { retF64(stack, float64(StdInvalidDateString)) }

	value, ok := readString(mem, argI32(stack, 0), argI32(stack, 1))
	if !ok {
		fail()
		return
	}
	format, ok := readString(mem, argI32(stack, 2), argI32(stack, 3))
	if !ok {
		fail()
		return
	}
	locale, ok := readOptionalString(mem, argI32(stack, 4), argI32(stack, 5))
	if !ok {
		fail()
		return
	}
	tz, ok := readOptionalString(mem, argI32(stack, 6), argI32(stack, 7))
	if !ok {
		fail()
		return
	}
	t, err := ParseDate(value, format, locale, tz)
	if err != nil {
		fail()
		return
	}
	retF64(stack, unixSeconds(t))
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func (s *Session) stdCreateValue(_ context.Context, mem Memory, stack []uint64) {
	v, err := readValue(mem, argI32(stack, 0))
	if err != nil {
		retI32(stack, StdInvalidValue)
		return
	}
	retI32(stack, s.store(NamespaceStd, resource.KindValue, v))
}

func (s *Session) stdTypeOf(_ context.Context, _ Memory, stack []uint64) {
	v, ok := s.value(argI32(stack, 0))
	if !ok {
		retI32(stack, StdInvalidDescriptor)
		return
	}
	kind, ok := wireformat.KindOf(v)
	if !ok {
		retI32(stack, StdInvalidValue)
		return
	}
	retI32(stack, int32(kind))
}

func (s *Session) stdString(h int32) (string, int32) {
	v, ok := s.value(h)
	if !ok {
		return "", StdInvalidDescriptor
	}
	str, ok := v.(string)
	if !ok {
		return "", StdInvalidString
	}
	return str, 0
}

func (s *Session) stdStringLen(_ context.Context, _ Memory, stack []uint64) {
	str, code := s.stdString(argI32(stack, 0))
	if code != 0 {
		retI32(stack, code)
		return
	}
	retI32(stack, int32(len(str))) //nolint:gosec // G115: strings are bounded by the codec
}

func (s *Session) stdReadString(_ context.Context, mem Memory, stack []uint64) {
	str, code := s.stdString(argI32(stack, 0))
	if code != 0 {
		retI32(stack, code)
		return
	}
	retI32(stack, copyOut(mem, argI32(stack, 1), argI32(stack, 2), []byte(str), StdInvalidBufferSize, StdFailedMemoryWrite))
}

func (s *Session) stdReadInt(_ context.Context, _ Memory, stack []uint64) {
	v, ok := s.value(argI32(stack, 0))
	if !ok {
		retI64(stack, int64(StdInvalidDescriptor))
		return
	}
	switch x := v.(type) {
	case int64:
		retI64(stack, x)
	case float64:
		retI64(stack, int64(x))
	case bool:
		if x {
			retI64(stack, 1)
		} else {
			retI64(stack, 0)
		}
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			retI64(stack, int64(StdInvalidValue))
			return
		}
		retI64(stack, n)
	case time.Time:
		retI64(stack, x.Unix())
	case wireformat.Node:
		retI64(stack, int64(x))
	default:
		retI64(stack, int64(StdInvalidValue))
	}
}

func (s *Session) stdReadFloat(_ context.Context, _ Memory, stack []uint64) {
	v, ok := s.value(argI32(stack, 0))
	if !ok {
		retF64(stack, float64(StdInvalidDescriptor))
		return
	}
	switch x := v.(type) {
	case float64:
		retF64(stack, x)
	case int64:
		retF64(stack, float64(x))
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			retF64(stack, float64(StdInvalidValue))
			return
		}
		retF64(stack, f)
	case time.Time:
		retF64(stack, unixSeconds(x))
	default:
		retF64(stack, float64(StdInvalidValue))
	}
}

func (s *Session) stdReadBool(_ context.Context, _ Memory, stack []uint64) {
	v, ok := s.value(argI32(stack, 0))
	if !ok {
		retI32(stack, StdInvalidDescriptor)
		return
	}
	switch x := v.(type) {
	case bool:
		retBool(stack, x)
	case int64:
		retBool(stack, x != 0)
	default:
		retI32(stack, StdInvalidValue)
	}
}

func (s *Session) stdReadDate(_ context.Context, _ Memory, stack []uint64) {
	v, ok := s.value(argI32(stack, 0))
	if !ok {
		retF64(stack, float64(StdInvalidDescriptor))
		return
	}
	switch x := v.(type) {
	case time.Time:
		retF64(stack, unixSeconds(x))
	case float64:
		retF64(stack, x)
	case int64:
		retF64(stack, float64(x))
	default:
		retF64(stack, float64(StdInvalidValue))
	}
}

func (s *Session) stdObject(h int32) (map[string]any, int32) {
	v, ok := s.value(h)
	if !ok {
		return nil, StdInvalidDescriptor
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, StdInvalidValue
	}
	return obj, 0
}

func (s *Session) stdObjectLen(_ context.Context, _ Memory, stack []uint64) {
	obj, code := s.stdObject(argI32(stack, 0))
	if code != 0 {
		retI32(stack, code)
		return
	}
	retI32(stack, int32(len(obj))) //nolint:gosec // G115: bounded by the codec
}

func (s *Session) stdObjectGet(_ context.Context, mem Memory, stack []uint64) {
	obj, code := s.stdObject(argI32(stack, 0))
	if code != 0 {
		retI32(stack, code)
		return
	}
	key, ok := readString(mem, argI32(stack, 1), argI32(stack, 2))
	if !ok {
		retI32(stack, StdInvalidString)
		return
	}
	v, ok := obj[key]
	if !ok {
		retI32(stack, StdInvalidValue)
		return
	}
	retI32(stack, s.store(NamespaceStd, resource.KindValue, v))
}

func (s *Session) stdObjectKeys(_ context.Context, _ Memory, stack []uint64) {
	obj, code := s.stdObject(argI32(stack, 0))
	if code != 0 {
		retI32(stack, code)
		return
	}
	keys := make([]any, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b any) int { return strings.Compare(a.(string), b.(string)) })
	retI32(stack, s.store(NamespaceStd, resource.KindValue, keys))
}

func (s *Session) stdArray(h int32) ([]any, int32) {
	v, ok := s.value(h)
	if !ok {
		return nil, StdInvalidDescriptor
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, StdInvalidValue
	}
	return arr, 0
}

func (s *Session) stdArrayLen(_ context.Context, _ Memory, stack []uint64) {
	arr, code := s.stdArray(argI32(stack, 0))
	if code != 0 {
		retI32(stack, code)
		return
	}
	retI32(stack, int32(len(arr))) //nolint:gosec // G115: bounded by the codec
}

func (s *Session) stdArrayGet(_ context.Context, _ Memory, stack []uint64) {
	arr, code := s.stdArray(argI32(stack, 0))
	if code != 0 {
		retI32(stack, code)
		return
	}
	idx := argI32(stack, 1)
	if idx < 0 || int(idx) >= len(arr) {
		retI32(stack, StdInvalidValue)
		return
	}
	retI32(stack, s.store(NamespaceStd, resource.KindValue, arr[idx]))
}

func (s *Session) stdEncode(_ context.Context, _ Memory, stack []uint64) {
	v, ok := s.value(argI32(stack, 0))
	if !ok {
		retI32(stack, StdInvalidDescriptor)
		return
	}
	retI32(stack, s.storeValue(NamespaceStd, v, StdInvalidValue))
}

