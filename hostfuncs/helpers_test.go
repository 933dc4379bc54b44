package hostfuncs

import (
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/sourcehost/wireformat"
)

// fakeMemory is a bump-allocated linear memory.
type fakeMemory struct {
	buf  []byte
	next uint32
}

func newFakeMemory(size int) *fakeMemory {
	return &fakeMemory{buf: make([]byte, size), next: 8}
}

func (m *fakeMemory) Size() uint32 { return uint32(len(m.buf)) }

func (m *fakeMemory) Read(offset, n uint32) ([]byte, bool) {
	if uint64(offset)+uint64(n) > uint64(len(m.buf)) {
		return nil, false
	}
	return m.buf[offset : offset+n], true
}

func (m *fakeMemory) Write(offset uint32, v []byte) bool {
	if uint64(offset)+uint64(len(v)) > uint64(len(m.buf)) {
		return false
	}
	copy(m.buf[offset:], v)
	return true
}

func (m *fakeMemory) ReadUint32Le(offset uint32) (uint32, bool) {
	b, ok := m.Read(offset, 4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b), true
}

func (m *fakeMemory) WriteUint32Le(offset, v uint32) bool {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return m.Write(offset, b[:])
}

func (m *fakeMemory) alloc(b []byte) int32 {
	ptr := m.next
	copy(m.buf[ptr:], b)
	m.next += uint32(len(b)+7) &^ 7
	return int32(ptr)
}

// str places s in memory and returns its (ptr, len) arguments.
func (m *fakeMemory) str(s string) (uint64, uint64) {
	return i32arg(m.alloc([]byte(s))), i32arg(int32(len(s)))
}

func (m *fakeMemory) value(t *testing.T, v any) uint64 {
	t.Helper()
	buf, err := wireformat.Encode(v)
	require.NoError(t, err)
	return i32arg(m.alloc(buf))
}

func i32arg(v int32) uint64 { return uint64(uint32(v)) }

func f32arg(v float32) uint64 { return uint64(math.Float32bits(v)) }

type harness struct {
	t   *testing.T
	s   *Session
	reg *HandlerRegistry
	mem *fakeMemory
}

func newHarness(t *testing.T, opts ...SessionOption) *harness {
	t.Helper()
	s, err := NewSession(context.Background(), opts...)
	require.NoError(t, err)
	reg, err := NewRegistry(
		WithMiddleware(PanicRecoveryMiddleware()),
		WithBundle(AllBundles(s)...),
	)
	require.NoError(t, err)
	return &harness{t: t, s: s, reg: reg, mem: newFakeMemory(1 << 20)}
}

// call invokes ns.name and returns the raw result slot.
func (h *harness) call(ns, name string, args ...uint64) uint64 {
	h.t.Helper()
	hf, ok := h.reg.Lookup(ns, name)
	require.True(h.t, ok, "%s.%s not registered", ns, name)
	require.Len(h.t, args, len(hf.Params), "%s.%s arity", ns, name)
	stack := make([]uint64, max(len(hf.Params), len(hf.Results), 1))
	copy(stack, args)
	require.NoError(h.t, h.reg.Invoke(context.Background(), ns, name, h.mem, stack))
	return stack[0]
}

func (h *harness) i32(ns, name string, args ...uint64) int32 {
	h.t.Helper()
	return int32(uint32(h.call(ns, name, args...)))
}

func (h *harness) f64(ns, name string, args ...uint64) float64 {
	h.t.Helper()
	return math.Float64frombits(h.call(ns, name, args...))
}

// handle asserts a non-negative result.
func (h *harness) handle(ns, name string, args ...uint64) int32 {
	h.t.Helper()
	rid := h.i32(ns, name, args...)
	require.GreaterOrEqual(h.t, rid, int32(0), "%s.%s returned %s", ns, name, CodeName(ns, rid))
	return rid
}

// bytes reads a String or Buffer resource back through std.
func (h *harness) readBack(rid int32) []byte {
	h.t.Helper()
	n := h.i32(NamespaceStd, "buffer_len", i32arg(rid))
	require.GreaterOrEqual(h.t, n, int32(0))
	ptr := h.mem.alloc(make([]byte, n))
	require.Equal(h.t, int32(0), h.i32(NamespaceStd, "read_buffer", i32arg(rid), i32arg(ptr), i32arg(n)))
	out, _ := h.mem.Read(uint32(ptr), uint32(n))
	return append([]byte(nil), out...)
}

func (h *harness) readText(rid int32) string {
	h.t.Helper()
	return string(h.readBack(rid))
}

// readString reads the string payload of a String or Value resource.
func (h *harness) readString(rid int32) string {
	h.t.Helper()
	n := h.i32(NamespaceStd, "string_len", i32arg(rid))
	require.GreaterOrEqual(h.t, n, int32(0))
	ptr := h.mem.alloc(make([]byte, n))
	require.Equal(h.t, int32(0), h.i32(NamespaceStd, "read_string", i32arg(rid), i32arg(ptr), i32arg(n)))
	out, _ := h.mem.Read(uint32(ptr), uint32(n))
	return string(out)
}

// decoded reads back a Buffer holding an Encoded Buffer.
func (h *harness) decoded(rid int32) any {
	h.t.Helper()
	v, err := wireformat.Decode(h.readBack(rid))
	require.NoError(h.t, err)
	return v
}
