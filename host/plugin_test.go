package host

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/sourcehost/domain/entities"
	domainerrors "github.com/reglet-dev/sourcehost/domain/errors"
	"github.com/reglet-dev/sourcehost/hostfuncs"
	"github.com/reglet-dev/sourcehost/internal/testutil"
	"github.com/reglet-dev/sourcehost/resource"
	"github.com/reglet-dev/sourcehost/wireformat"
)

const (
	homePtr  = 64
	errorPtr = 256
)

// freeRecorder collects the pointers a guest passes to test.freed from its
// free_result export.
type freeRecorder struct {
	mu   sync.Mutex
	ptrs []int32
}

func (r *freeRecorder) hostFunc() hostfuncs.HostFunc {
	return hostfuncs.HostFunc{
		Name:   "freed",
		Params: []hostfuncs.ValueType{hostfuncs.I32},
		Fn: func(_ context.Context, _ hostfuncs.Memory, stack []uint64) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.ptrs = append(r.ptrs, int32(uint32(stack[0])))
		},
	}
}

func (r *freeRecorder) freed() []int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int32(nil), r.ptrs...)
}

type guestOptions struct {
	mask   *int32
	noFree bool
}

// guestModule builds a guest with a handful of capability exports:
//
//	get_home             returns "home"
//	get_listing          returns the error branch "offline"
//	handle_deep_link     returns -buffer_len(url)
//	handle_notification  calls env.abort
//	get_dynamic_filters  hits unreachable
//	get_dynamic_listings streams "home" as a partial result, then returns it
//	handle_migration     returns a null pointer
func guestModule(t *testing.T, opts guestOptions) []byte {
	t.Helper()

	home, err := wireformat.Encode("home")
	require.NoError(t, err)

	m := testutil.NewModule()
	bufferLen := m.Import("std", "buffer_len", 1, 1)
	abort := m.Import("env", "abort", 0, 0)
	partial := m.Import("env", "send_partial_result", 1, 1)
	freed := m.Import("test", "freed", 1, 0)
	started := m.Global("started")

	m.Data(homePtr, home)
	m.Data(errorPtr, wireformat.EncodeError("offline"))

	m.Func(entities.ExportStart, 0, 0, testutil.Increment(started))
	if !opts.noFree {
		m.Func(entities.ExportFreeResult, 1, 0, testutil.LocalGet(0), testutil.Call(freed))
	}
	if opts.mask != nil {
		m.Func(entities.ExportCapabilities, 0, 1, testutil.I32Const(*opts.mask))
	}

	m.Func("get_home", 0, 1, testutil.I32Const(homePtr))
	m.Func("get_listing", 2, 1, testutil.I32Const(errorPtr))
	m.Func("handle_deep_link", 1, 1,
		testutil.I32Const(0), testutil.LocalGet(0), testutil.Call(bufferLen), testutil.Op(testutil.OpI32Sub))
	m.Func("handle_notification", 1, 1, testutil.Call(abort), testutil.I32Const(0))
	m.Func("get_dynamic_filters", 0, 1, testutil.Op(testutil.OpUnreachable))
	m.Func("get_dynamic_listings", 0, 1,
		testutil.I32Const(homePtr), testutil.Call(partial), testutil.Op(testutil.OpDrop), testutil.I32Const(homePtr))
	m.Func("handle_migration", 2, 1, testutil.I32Const(0))
	return m.Bytes()
}

func loadGuest(t *testing.T, opts guestOptions, execOpts ...Option) (*Plugin, *freeRecorder) {
	t.Helper()
	ctx := context.Background()

	rec := &freeRecorder{}
	e, err := NewExecutor(ctx, append([]Option{WithHostFunc("test", rec.hostFunc())}, execOpts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close(ctx) })

	p, err := e.Load(ctx, guestModule(t, opts))
	require.NoError(t, err)
	return p, rec
}

func TestPlugin_DetectsCapabilities(t *testing.T) {
	p, _ := loadGuest(t, guestOptions{})

	want := entities.NewCapabilitySet(
		entities.CapHome,
		entities.CapListing,
		entities.CapDeepLink,
		entities.CapNotification,
		entities.CapDynamicFilters,
		entities.CapDynamicListings,
		entities.CapMigration,
	)
	assert.Equal(t, want, p.Capabilities())
	assert.Contains(t, p.Exports(), entities.ExportFreeResult)
	assert.Equal(t, int32(1), int32(p.module.ExportedGlobal("started").Get()), "start runs once at load")
}

func TestPlugin_CapabilityMaskNarrows(t *testing.T) {
	mask := int32(entities.CapHome | entities.CapSearch)
	p, rec := loadGuest(t, guestOptions{mask: &mask})

	assert.Equal(t, entities.NewCapabilitySet(entities.CapHome), p.Capabilities(),
		"search is announced but not exported")

	_, err := p.Listing(context.Background(), "popular", 1)
	var capErr *domainerrors.CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "get_listing", capErr.Required)
	assert.Empty(t, rec.freed(), "the guest is not called")
}

func TestPlugin_Home(t *testing.T) {
	p, rec := loadGuest(t, guestOptions{})

	v, err := p.Home(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "home", v)
	assert.Equal(t, []int32{homePtr}, rec.freed())
	assert.Equal(t, 0, p.Leases())
}

func TestPlugin_LeaseReleasedOnce(t *testing.T) {
	ctx := context.Background()
	p, rec := loadGuest(t, guestOptions{})

	lease, err := p.Call(ctx, "get_home")
	require.NoError(t, err)
	require.NotNil(t, lease)
	assert.Equal(t, 1, p.Leases())
	assert.False(t, lease.Released())
	assert.Equal(t, "get_home", lease.Export())

	v, err := lease.Value()
	require.NoError(t, err)
	assert.Equal(t, "home", v)
	assert.Empty(t, rec.freed(), "nothing is freed before release")

	require.NoError(t, lease.Release(ctx))
	require.NoError(t, lease.Release(ctx))
	assert.Equal(t, []int32{homePtr}, rec.freed())
	assert.True(t, lease.Released())
	assert.Equal(t, 0, p.Leases())

	v, err = lease.Value()
	require.NoError(t, err)
	assert.Equal(t, "home", v, "the copy outlives the guest allocation")
}

func TestPlugin_CloseReleasesLeases(t *testing.T) {
	ctx := context.Background()
	p, rec := loadGuest(t, guestOptions{})

	first, err := p.Call(ctx, "get_home")
	require.NoError(t, err)
	second, err := p.Call(ctx, "get_home")
	require.NoError(t, err)

	require.NoError(t, p.Close(ctx))
	assert.Equal(t, []int32{homePtr, homePtr}, rec.freed())
	assert.True(t, first.Released())
	assert.True(t, second.Released())
	assert.NoError(t, first.Release(ctx))

	_, err = p.Call(ctx, "get_home")
	assert.ErrorIs(t, err, ErrPluginClosed)
	assert.NoError(t, p.Close(ctx))
}

func TestPlugin_ErrorBranch(t *testing.T) {
	p, rec := loadGuest(t, guestOptions{})

	_, err := p.Listing(context.Background(), "popular", 2)
	var guestErr *wireformat.GuestError
	require.ErrorAs(t, err, &guestErr)
	assert.Equal(t, "offline", guestErr.Message)
	assert.Equal(t, []int32{errorPtr}, rec.freed(), "error results are freed too")
}

func TestPlugin_ArgumentsAreBuffers(t *testing.T) {
	p, rec := loadGuest(t, guestOptions{})
	url := "https://example.com/content/42"

	want, err := wireformat.Encode(url)
	require.NoError(t, err)

	_, err = p.DeepLink(context.Background(), url)
	var codeErr *domainerrors.GuestCodeError
	require.ErrorAs(t, err, &codeErr)
	assert.Equal(t, "handle_deep_link", codeErr.Export)
	assert.Equal(t, -int32(len(want)), codeErr.Code)

	assert.Equal(t, 0, p.Resources().Len(), "argument buffers are destroyed after the call")
	assert.Empty(t, rec.freed())
}

func TestPlugin_NullResult(t *testing.T) {
	p, rec := loadGuest(t, guestOptions{})

	v, err := p.Migration(context.Background(), "old-id", "")
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.Empty(t, rec.freed())
}

func TestPlugin_Traps(t *testing.T) {
	ctx := context.Background()
	p, _ := loadGuest(t, guestOptions{})

	tests := []struct {
		name   string
		call   func() error
		export string
	}{
		{"unreachable", func() error { _, err := p.DynamicFilters(ctx); return err }, "get_dynamic_filters"},
		{"abort", func() error { _, err := p.Notification(ctx, "update"); return err }, "handle_notification"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.ErrorIs(t, err, domainerrors.ErrTrap)

			var trap *domainerrors.TrapError
			require.ErrorAs(t, err, &trap)
			assert.Equal(t, tt.export, trap.Export)
			assert.Equal(t, 0, p.Resources().Len())
		})
	}

	var abort *hostfuncs.AbortError
	_, err := p.Notification(ctx, "update")
	assert.ErrorAs(t, err, &abort)

	v, err := p.Home(ctx)
	require.NoError(t, err, "a trap fails only its own call")
	assert.Equal(t, "home", v)
}

func TestPlugin_PartialResults(t *testing.T) {
	var (
		mu       sync.Mutex
		partials []any
	)
	sink := func(_ context.Context, v any) {
		mu.Lock()
		defer mu.Unlock()
		partials = append(partials, v)
	}
	p, _ := loadGuest(t, guestOptions{}, WithPartialResultSink(sink))

	v, err := p.DynamicListings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "home", v)
	assert.Equal(t, []any{"home"}, partials)
}

func TestPlugin_CallValidation(t *testing.T) {
	ctx := context.Background()
	p, _ := loadGuest(t, guestOptions{})

	_, err := p.Call(ctx, "get_search_list", "q", 1, nil)
	var capErr *domainerrors.CapabilityError
	require.ErrorAs(t, err, &capErr)

	_, err = p.Call(ctx, "get_listing", "only one")
	assert.ErrorContains(t, err, "takes 2 arguments, got 1")

	_, err = p.Call(ctx, "get_listing", struct{}{}, 1)
	var wireErr *domainerrors.WireFormatError
	require.ErrorAs(t, err, &wireErr)
	assert.Equal(t, 0, p.Resources().Len())
}

func TestPlugin_ImageRequest(t *testing.T) {
	ctx := context.Background()
	const requestPtr = 512

	var exec *Executor
	// test.request creates a request resource and leaves the encoded handle
	// in guest memory, as a guest building its own request would.
	request := hostfuncs.HostFunc{
		Name:    "request",
		Results: []hostfuncs.ValueType{hostfuncs.I32},
		Fn: func(_ context.Context, mem hostfuncs.Memory, stack []uint64) {
			h, err := exec.Session().Resources.Insert(resource.KindRequest, "request")
			if err != nil {
				panic(err)
			}
			enc, err := wireformat.Encode(int64(h))
			if err != nil || !mem.Write(requestPtr, enc) {
				panic("write request handle")
			}
			stack[0] = requestPtr
		},
	}

	rec := &freeRecorder{}
	var err error
	exec, err = NewExecutor(ctx, WithHostFunc("test", rec.hostFunc()), WithHostFunc("test", request))
	require.NoError(t, err)
	t.Cleanup(func() { _ = exec.Close(ctx) })

	m := testutil.NewModule()
	req := m.Import("test", "request", 0, 1)
	freed := m.Import("test", "freed", 1, 0)
	m.Func(entities.ExportFreeResult, 1, 0, testutil.LocalGet(0), testutil.Call(freed))
	m.Func("get_image_request", 2, 1, testutil.Call(req))
	m.Func("get_home", 0, 1, testutil.I32Const(homePtr))
	home, err := wireformat.Encode("not a handle")
	require.NoError(t, err)
	m.Data(homePtr, home)

	p, err := exec.Load(ctx, m.Bytes())
	require.NoError(t, err)

	h, err := p.ImageRequest(ctx, "https://example.com/cover.png", map[string]any{"referer": "https://example.com"})
	require.NoError(t, err)

	v, ok := p.Resources().GetKind(h, resource.KindRequest)
	require.True(t, ok)
	assert.Equal(t, "request", v)
	assert.Equal(t, 1, p.Resources().Len(), "only the request outlives the call")
	assert.Equal(t, []int32{requestPtr}, rec.freed())
}
