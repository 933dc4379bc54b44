package hostfuncs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/sourcehost/resource"
	"github.com/reglet-dev/sourcehost/wireformat"
)

func TestStd_ValueAccess(t *testing.T) {
	h := newHarness(t)
	date := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	rid := h.handle(NamespaceStd, "create_value", h.mem.value(t, map[string]any{
		"title": "One Piece",
		"count": int64(1100),
		"score": 9.5,
		"ok":    true,
		"when":  date,
		"tags":  []any{"action", "pirates"},
	}))
	assert.Equal(t, int32(wireformat.KindObject), h.i32(NamespaceStd, "typeof", i32arg(rid)))
	assert.Equal(t, int32(6), h.i32(NamespaceStd, "object_len", i32arg(rid)))

	get := func(key string) int32 {
		ptr, n := h.mem.str(key)
		return h.handle(NamespaceStd, "object_get", i32arg(rid), ptr, n)
	}

	title := get("title")
	assert.Equal(t, int32(9), h.i32(NamespaceStd, "string_len", i32arg(title)))
	assert.Equal(t, "One Piece", h.readString(title))
	assert.Equal(t, "One Piece", h.decoded(title), "read_buffer yields the envelope of a value")

	assert.Equal(t, int64(1100), int64(h.call(NamespaceStd, "read_int", i32arg(get("count")))))
	assert.InDelta(t, 9.5, h.f64(NamespaceStd, "read_float", i32arg(get("score"))), 1e-9)
	assert.Equal(t, int32(1), h.i32(NamespaceStd, "read_bool", i32arg(get("ok"))))
	assert.InDelta(t, float64(date.Unix()), h.f64(NamespaceStd, "read_date", i32arg(get("when"))), 1e-6)

	tags := get("tags")
	assert.Equal(t, int32(2), h.i32(NamespaceStd, "array_len", i32arg(tags)))
	second := h.handle(NamespaceStd, "array_get", i32arg(tags), i32arg(1))
	assert.Equal(t, "pirates", h.readString(second))
	assert.Equal(t, StdInvalidValue, h.i32(NamespaceStd, "array_get", i32arg(tags), i32arg(2)))

	keys := h.handle(NamespaceStd, "object_keys", i32arg(rid))
	encoded := h.handle(NamespaceStd, "encode", i32arg(keys))
	assert.Equal(t, []any{"count", "ok", "score", "tags", "title", "when"}, h.decoded(encoded))

	missing, n := h.mem.str("missing")
	assert.Equal(t, StdInvalidValue, h.i32(NamespaceStd, "object_get", i32arg(rid), missing, n))
}

func TestStd_Errors(t *testing.T) {
	h := newHarness(t)
	rid := h.handle(NamespaceStd, "create_value", h.mem.value(t, "text"))

	tests := []struct {
		name string
		fn   string
		args []uint64
		want int32
	}{
		{name: "unknown handle", fn: "typeof", args: []uint64{i32arg(999)}, want: StdInvalidDescriptor},
		{name: "negative handle", fn: "buffer_len", args: []uint64{i32arg(-1)}, want: StdInvalidDescriptor},
		{name: "object op on string", fn: "object_len", args: []uint64{i32arg(rid)}, want: StdInvalidValue},
		{name: "array op on string", fn: "array_len", args: []uint64{i32arg(rid)}, want: StdInvalidValue},
		{name: "bool from string", fn: "read_bool", args: []uint64{i32arg(rid)}, want: StdInvalidValue},
		{name: "buffer too small", fn: "read_buffer", args: []uint64{i32arg(rid), i32arg(64), i32arg(2)}, want: StdInvalidBufferSize},
		{name: "write outside memory", fn: "read_string", args: []uint64{i32arg(rid), i32arg(1<<20 - 2), i32arg(16)}, want: StdFailedMemoryWrite},
		{name: "malformed value", fn: "create_value", args: []uint64{i32arg(1<<20 - 4)}, want: StdInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, h.i32(NamespaceStd, tt.fn, tt.args...))
		})
	}

	assert.Equal(t, int64(StdInvalidValue), int64(h.call(NamespaceStd, "read_int", i32arg(rid))))
	assert.Equal(t, float64(StdInvalidDescriptor), h.f64(NamespaceStd, "read_float", i32arg(12345)))
}

func TestStd_DestroyIsIdempotent(t *testing.T) {
	h := newHarness(t)
	rid := h.handle(NamespaceStd, "create_value", h.mem.value(t, int64(7)))

	h.call(NamespaceStd, "destroy", i32arg(rid))
	h.call(NamespaceStd, "destroy", i32arg(rid))
	assert.Equal(t, StdInvalidDescriptor, h.i32(NamespaceStd, "typeof", i32arg(rid)))
	assert.Zero(t, h.s.Resources.Len())
}

func TestStd_BufferReadBack(t *testing.T) {
	h := newHarness(t)

	str, err := h.s.Resources.Insert(resource.KindString, "héllo")
	require.NoError(t, err)
	assert.Equal(t, []byte("héllo"), h.readBack(str))

	val, err := h.s.Resources.Insert(resource.KindValue, []any{int64(1), nil})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), nil}, h.decoded(val))

	doc, err := h.s.Resources.Insert(resource.KindDocument, struct{}{})
	require.NoError(t, err)
	assert.Equal(t, StdInvalidDescriptor, h.i32(NamespaceStd, "buffer_len", i32arg(doc)))
}

func TestStd_Dates(t *testing.T) {
	now := time.Date(2024, 6, 1, 8, 30, 0, 0, time.FixedZone("X", 2*3600))
	h := newHarness(t, WithClock(func() time.Time { return now }))

	assert.InDelta(t, float64(now.Unix()), h.f64(NamespaceStd, "current_date"), 1e-6)
	assert.Equal(t, int64(7200), int64(h.call(NamespaceStd, "utc_offset")))

	parse := func(value, format, tz string) float64 {
		vp, vn := h.mem.str(value)
		fp, fn := h.mem.str(format)
		tp, tn := h.mem.str(tz)
		return h.f64(NamespaceStd, "parse_date", vp, vn, fp, fn, 0, 0, tp, tn)
	}

	want := time.Date(2023, 11, 5, 14, 7, 0, 0, time.UTC)
	assert.InDelta(t, float64(want.Unix()), parse("2023-11-05 14:07", "yyyy-MM-dd HH:mm", "UTC"), 1e-6)
	assert.InDelta(t, float64(want.Unix()), parse("Nov 5, 2023 2:07 PM", "MMM d, yyyy h:mm a", "UTC"), 1e-6)
	assert.Equal(t, float64(StdInvalidDateString), parse("yesterday", "yyyy-MM-dd", "UTC"))
	assert.Equal(t, float64(StdInvalidDateString), parse("2023", "yyyy", "Not/AZone"))
}

func TestLDMLLayout(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
		wantErr bool
	}{
		{pattern: "yyyy-MM-dd", want: "2006-01-02"},
		{pattern: "dd/MM/yy HH:mm:ss", want: "02/01/06 15:04:05"},
		{pattern: "EEEE, MMMM d", want: "Monday, January 2"},
		{pattern: "h:mm a", want: "3:04 PM"},
		{pattern: "ss.SSS", want: "05.000"},
		{pattern: "yyyy-MM-dd'T'HH:mmXXX", want: "2006-01-02T15:04Z07:00"},
		{pattern: "h 'o''clock'", want: "3 o'clock"},
		{pattern: "''", want: "'"},
		{pattern: "QQQ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got, err := ldmlLayout(tt.pattern)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrDateFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
