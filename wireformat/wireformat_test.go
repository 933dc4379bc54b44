package wireformat

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	date := time.Date(2024, time.March, 9, 18, 30, 15, 0, time.UTC)

	tests := []struct {
		name  string
		value any
	}{
		{"null", nil},
		{"zero int", int64(0)},
		{"negative int", int64(-42)},
		{"max int", int64(math.MaxInt64)},
		{"min int", int64(math.MinInt64)},
		{"float", 3.25},
		{"negative float", -0.5},
		{"empty string", ""},
		{"unicode string", "héllo 世界"},
		{"true", true},
		{"false", false},
		{"empty array", []any{}},
		{"mixed array", []any{int64(1), "two", 3.0, false, nil}},
		{"empty object", map[string]any{}},
		{"object", map[string]any{"b": int64(2), "a": "x", "nested": map[string]any{"k": []any{true}}}},
		{"date", date},
		{"node", Node(17)},
		{"negative node", Node(-3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := Encode(tt.value)
			require.NoError(t, err)

			got, err := Decode(buf)
			require.NoError(t, err)

			if want, ok := tt.value.(time.Time); ok {
				gotDate, ok := got.(time.Time)
				require.True(t, ok, "expected time.Time, got %T", got)
				assert.True(t, want.Equal(gotDate))
				return
			}
			assert.Equal(t, tt.value, got)
		})
	}
}

func TestEncode_NormalisesWidths(t *testing.T) {
	buf, err := Encode(map[string]any{
		"i32":  int32(7),
		"u16":  uint16(9),
		"f32":  float32(1.5),
		"strs": []string{"a", "b"},
		"smap": map[string]string{"k": "v"},
	})
	require.NoError(t, err)

	got, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"i32":  int64(7),
		"u16":  int64(9),
		"f32":  1.5,
		"strs": []any{"a", "b"},
		"smap": map[string]any{"k": "v"},
	}, got)
}

func TestEncode_Unsupported(t *testing.T) {
	_, err := Encode(map[string]any{"bad": struct{}{}})
	require.Error(t, err)

	var encErr *ValueError
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, "$.bad", encErr.Path)
}

func TestEncode_InvalidUTF8(t *testing.T) {
	tests := []struct {
		name string
		v    any
		path string
	}{
		{"string", "ok\xff", "$"},
		{"array item", []string{"a", "\xfe"}, "$[1]"},
		{"object key", map[string]any{"\xff": int64(1)}, "$.\xff"},
		{"string map value", map[string]string{"k": "\xc3"}, "$.k"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.v)
			var encErr *ValueError
			require.ErrorAs(t, err, &encErr)
			assert.Equal(t, tt.path, encErr.Path)
			assert.Contains(t, err.Error(), "invalid UTF-8")
		})
	}
}

func TestEncode_ObjectKeysSorted(t *testing.T) {
	a, err := MarshalValue(map[string]any{"z": int64(1), "a": int64(2), "m": int64(3)})
	require.NoError(t, err)
	b, err := MarshalValue(map[string]any{"m": int64(3), "z": int64(1), "a": int64(2)})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	// tag, count, then "a" comes first
	assert.Equal(t, byte(KindObject), a[0])
	assert.Equal(t, byte(3), a[1])
	assert.Equal(t, byte(1), a[2])
	assert.Equal(t, byte('a'), a[3])
}

func TestEncode_Header(t *testing.T) {
	buf, err := Encode("hi")
	require.NoError(t, err)

	h, err := ReadHeader(buf)
	require.NoError(t, err)
	assert.False(t, h.IsError())
	assert.Equal(t, int32(len(buf)-HeaderSize), h.Length)
	assert.Equal(t, uint32(len(buf)), h.Capacity)
	assert.Equal(t, len(buf), h.Total())
}

func TestNullIsNotError(t *testing.T) {
	buf, err := Encode(nil)
	require.NoError(t, err)
	assert.Len(t, buf, HeaderSize)

	h, err := ReadHeader(buf)
	require.NoError(t, err)
	assert.True(t, h.IsNull())
	assert.False(t, h.IsError())

	v, err := Decode(buf)
	require.NoError(t, err)
	assert.Nil(t, v)

	// zero length and zero capacity, as a guest may produce for unit results
	v, err = Decode(make([]byte, HeaderSize))
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestErrorBranch(t *testing.T) {
	buf := EncodeError("source unavailable")

	h, err := ReadHeader(buf)
	require.NoError(t, err)
	assert.True(t, h.IsError())

	span, err := Span(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), span)

	_, err = Decode(buf)
	var guestErr *GuestError
	require.ErrorAs(t, err, &guestErr)
	assert.Equal(t, "source unavailable", guestErr.Message)
}

func TestEncodeResult(t *testing.T) {
	v, err := Decode(EncodeResult("ok", nil))
	require.NoError(t, err)
	assert.Equal(t, "ok", v)

	_, err = Decode(EncodeResult(nil, errors.New("boom")))
	var guestErr *GuestError
	require.ErrorAs(t, err, &guestErr)
	assert.Equal(t, "boom", guestErr.Message)
}

func TestDecode_Malformed(t *testing.T) {
	valid, err := Encode([]any{"abc", int64(5)})
	require.NoError(t, err)

	header := func(length int32, capacity uint32) []byte {
		b := make([]byte, HeaderSize)
		PutHeader(b, Header{Length: length, Capacity: capacity})
		return b
	}
	withPayload := func(payload ...byte) []byte {
		return append(header(int32(len(payload)), uint32(HeaderSize+len(payload))), payload...)
	}

	tests := []struct {
		name string
		buf  []byte
	}{
		{"empty", nil},
		{"short header", []byte{1, 0, 0}},
		{"length below sentinel", header(-2, 0)},
		{"length beyond buffer", valid[:len(valid)-1]},
		{"unknown tag", withPayload(99)},
		{"trailing bytes", withPayload(byte(KindBool), 1, 0)},
		{"bad bool", withPayload(byte(KindBool), 2)},
		{"truncated float", withPayload(byte(KindFloat), 0, 0, 0)},
		{"string count beyond payload", withPayload(byte(KindString), 10, 'a')},
		{"invalid utf8", withPayload(byte(KindString), 2, 0xff, 0xfe)},
		{"array count forged", withPayload(byte(KindArray), 0xff, 0xff, 0xff, 0xff, 0x0f)},
		{"error branch without message", header(-1, 8)},
		{"error branch nested sentinel", append(header(-1, 16), header(-1, 8)...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Decode(tt.buf)
			require.Error(t, err)
			assert.Nil(t, v)

			var decErr *DecodeError
			assert.ErrorAs(t, err, &decErr)
		})
	}
}

func TestDecode_DepthLimit(t *testing.T) {
	payload := make([]byte, 0, 2*(MaxDepth+2))
	for i := 0; i < MaxDepth+2; i++ {
		payload = append(payload, byte(KindArray), 1)
	}
	payload = append(payload, byte(KindNull))

	buf, err := EncodeRaw(payload)
	require.NoError(t, err)

	_, err = Decode(buf)
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Contains(t, decErr.Error(), "nesting")
}

func TestDecode_IgnoresSlack(t *testing.T) {
	buf, err := Encode(int64(12))
	require.NoError(t, err)

	padded := append(buf, 0xAA, 0xBB, 0xCC)
	binary.LittleEndian.PutUint32(padded[4:8], uint32(len(padded)))

	v, err := Decode(padded)
	require.NoError(t, err)
	assert.Equal(t, int64(12), v)
}

func TestKindOf(t *testing.T) {
	k, ok := KindOf(int16(1))
	assert.True(t, ok)
	assert.Equal(t, KindInt, k)

	k, ok = KindOf(Node(1))
	assert.True(t, ok)
	assert.Equal(t, "node", k.String())

	_, ok = KindOf(uint64(1))
	assert.False(t, ok)

	assert.Equal(t, "kind(42)", Kind(42).String())
}

func TestJSON(t *testing.T) {
	v, err := FromJSON([]byte(`{"n": 1, "f": 1.5, "s": "x", "arr": [true, null], "node": {"$node": 4}}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"n":    int64(1),
		"f":    1.5,
		"s":    "x",
		"arr":  []any{true, nil},
		"node": Node(4),
	}, v)

	out, err := ToJSON(map[string]any{
		"when": time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC),
		"node": Node(9),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"when": "2020-01-02T03:04:05Z", "node": {"$node": 9}}`, string(out))

	_, err = FromJSON([]byte(`{} {}`))
	assert.Error(t, err)
}
