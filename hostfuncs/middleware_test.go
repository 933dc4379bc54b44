package hostfuncs

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func panicking(context.Context, Memory, []uint64) { panic("test panic") }

func TestPanicRecoveryMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		ns      string
		results []ValueType
		check   func(t *testing.T, slot uint64)
	}{
		{
			name: "i32 result gets the generic code", ns: NamespaceHTML, results: i32,
			check: func(t *testing.T, slot uint64) { assert.Equal(t, HTMLGenericError, int32(uint32(slot))) },
		},
		{
			name: "f64 result", ns: NamespaceStd, results: f64r,
			check: func(t *testing.T, slot uint64) { assert.Equal(t, float64(StdTableFull), math.Float64frombits(slot)) },
		},
		{
			name: "i64 result", ns: NamespaceStd, results: i64r,
			check: func(t *testing.T, slot uint64) { assert.Equal(t, int64(StdTableFull), int64(slot)) },
		},
		{
			name: "no result", ns: NamespaceEnv, results: none,
			check: func(t *testing.T, slot uint64) { assert.Zero(t, slot) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := NewRegistry(
				WithMiddleware(PanicRecoveryMiddleware()),
				WithFunc(tt.ns, fn("boom", none, tt.results, panicking)),
			)
			require.NoError(t, err)

			stack := make([]uint64, 1)
			assert.NotPanics(t, func() {
				require.NoError(t, reg.Invoke(context.Background(), tt.ns, "boom", nil, stack))
			})
			tt.check(t, stack[0])
		})
	}
}

func TestPanicRecoveryMiddleware_AbortPropagates(t *testing.T) {
	reg, err := NewRegistry(
		WithMiddleware(PanicRecoveryMiddleware()),
		WithFunc("env", fn("abort", none, none, func(context.Context, Memory, []uint64) {
			panic(&AbortError{Message: "bad state"})
		})),
	)
	require.NoError(t, err)

	defer func() {
		r := recover()
		abort, ok := r.(*AbortError)
		require.True(t, ok, "expected *AbortError, got %v", r)
		assert.Equal(t, "guest aborted: bad state", abort.Error())
	}()
	_ = reg.Invoke(context.Background(), "env", "abort", nil, make([]uint64, 1))
	t.Fatal("abort did not propagate")
}

func TestMiddlewareOrder_FIFO(t *testing.T) {
	var order []string
	trace := func(name string) Middleware {
		return func(next Func) Func {
			return func(ctx context.Context, mem Memory, stack []uint64) {
				order = append(order, name+"-before")
				next(ctx, mem, stack)
				order = append(order, name+"-after")
			}
		}
	}

	reg, err := NewRegistry(
		WithMiddleware(trace("mw1"), trace("mw2")),
		WithFunc("env", fn("f", none, i32, func(_ context.Context, _ Memory, stack []uint64) {
			order = append(order, "handler")
			retI32(stack, 0)
		})),
	)
	require.NoError(t, err)
	require.NoError(t, reg.Invoke(context.Background(), "env", "f", nil, make([]uint64, 1)))

	assert.Equal(t, []string{"mw1-before", "mw2-before", "handler", "mw2-after", "mw1-after"}, order)
}

func TestErrorLoggingMiddleware(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	reg, err := NewRegistry(
		WithMiddleware(ErrorLoggingMiddleware(zap.New(core)), PanicRecoveryMiddleware()),
		WithFunc(NamespaceNet, fn("send", i32, i32, constFunc(NetDenied))),
		WithFunc(NamespaceNet, fn("get_status_code", i32, i32, constFunc(200))),
		WithFunc(NamespaceHTML, fn("select", none, i32, panicking)),
		WithFunc(NamespaceStd, fn("read_int", none, i64r, func(_ context.Context, _ Memory, stack []uint64) {
			retI64(stack, -1)
		})),
	)
	require.NoError(t, err)

	ctx := context.Background()
	for _, c := range [][2]string{{NamespaceNet, "send"}, {NamespaceNet, "get_status_code"}, {NamespaceHTML, "select"}, {NamespaceStd, "read_int"}} {
		require.NoError(t, reg.Invoke(ctx, c[0], c[1], nil, make([]uint64, 1)))
	}

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)

	assert.Equal(t, "host function returned error code", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "net", fields["namespace"])
	assert.Equal(t, "send", fields["function"])
	assert.Equal(t, int32(NetDenied), fields["code"])
	assert.Equal(t, "Denied", fields["code_name"])

	assert.Equal(t, "host function panicked", entries[1].Message)
	fields = entries[1].ContextMap()
	assert.Equal(t, "GenericError", fields["code_name"])
	assert.Equal(t, "test panic", fields["panic"])

	fields = entries[2].ContextMap()
	assert.Equal(t, "read_int", fields["function"])
	assert.Equal(t, "InvalidDescriptor", fields["code_name"])
}

func TestErrorLoggingMiddleware_WideResults(t *testing.T) {
	tests := []struct {
		name    string
		results []ValueType
		slot    uint64
		logged  bool
	}{
		{name: "f64 code", results: f64r, slot: math.Float64bits(float64(StdInvalidDateString)), logged: true},
		{name: "f32 code", results: []ValueType{F32}, slot: uint64(math.Float32bits(-2)), logged: true},
		{name: "i64 code", results: i64r, slot: uint64(0xFFFFFFFFFFFFFFFD), logged: true},
		{name: "fractional f64", results: f64r, slot: math.Float64bits(-2.5)},
		{name: "positive f64", results: f64r, slot: math.Float64bits(1700000000)},
		{name: "i64 below int32", results: i64r, slot: uint64(1) << 63},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.DebugLevel)
			reg, err := NewRegistry(
				WithMiddleware(ErrorLoggingMiddleware(zap.New(core))),
				WithFunc(NamespaceStd, fn("f", none, tt.results, func(_ context.Context, _ Memory, stack []uint64) {
					stack[0] = tt.slot
				})),
			)
			require.NoError(t, err)
			require.NoError(t, reg.Invoke(context.Background(), NamespaceStd, "f", nil, make([]uint64, 1)))
			if tt.logged {
				assert.Equal(t, 1, logs.Len())
			} else {
				assert.Zero(t, logs.Len())
			}
		})
	}
}

func TestErrorLoggingMiddleware_ParseDate(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	h := newHarness(t)
	reg, err := NewRegistry(
		WithMiddleware(ErrorLoggingMiddleware(zap.New(core)), PanicRecoveryMiddleware()),
		WithBundle(AllBundles(h.s)...),
	)
	require.NoError(t, err)
	h.reg = reg

	vp, vn := h.mem.str("not a date")
	fp, fn := h.mem.str("yyyy-MM-dd")
	got := h.f64(NamespaceStd, "parse_date", vp, vn, fp, fn, 0, 0, 0, 0)
	assert.Equal(t, float64(StdInvalidDateString), got)

	entries := logs.FilterField(zap.String("function", "parse_date")).AllUntimed()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "std", fields["namespace"])
	assert.Equal(t, "InvalidDateString", fields["code_name"])
}
