package hostfuncs

import (
	"context"
	"encoding/binary"
	"errors"

	"go.uber.org/zap"

	domainerrors "github.com/reglet-dev/sourcehost/domain/errors"
	"github.com/reglet-dev/sourcehost/infrastructure/dom"
	"github.com/reglet-dev/sourcehost/infrastructure/httpclient"
	"github.com/reglet-dev/sourcehost/infrastructure/raster"
	"github.com/reglet-dev/sourcehost/infrastructure/ratelimit"
	"github.com/reglet-dev/sourcehost/resource"
)

// maxBatch bounds the handle array of net.send_all.
const maxBatch = 1 << 16

// NewNetBundle returns the net namespace over the HTTP client.
func NewNetBundle(s *Session) HostFuncBundle {
	return NewBundle(NamespaceNet,
		fn("init", i32, i32, s.netInit),
		fn("set_url", i32x3, i32, s.netSetURL),
		fn("set_header", []ValueType{I32, I32, I32, I32, I32}, i32, s.netSetHeader),
		fn("set_body", i32x3, i32, s.netSetBody),
		fn("set_rate_limit", i32x3, none, s.netSetRateLimit),
		fn("send", i32, i32, s.netSend),
		fn("send_all", i32x2, i32, s.netSendAll),
		fn("data_len", i32, i32, s.netDataLen),
		fn("read_data", i32x3, i32, s.netReadData),
		fn("get_status_code", i32, i32, s.netStatusCode),
		fn("get_header", i32x3, i32, s.netGetHeader),
		fn("get_url", i32, i32, s.netGetURL),
		fn("html", i32, i32, s.netHTML),
		fn("get_image", i32, i32, s.netGetImage),
	)
}

// netCode maps request and client errors onto net codes.
func netCode(err error) int32 {
	var capErr *domainerrors.CapabilityError
	var blocked *httpclient.BlockedError
	switch {
	case errors.Is(err, httpclient.ErrClosed):
		return NetClosed
	case errors.Is(err, httpclient.ErrInvalidURL):
		return NetInvalidURL
	case errors.Is(err, httpclient.ErrMissingURL):
		return NetMissingURL
	case errors.Is(err, httpclient.ErrMissingResponse):
		return NetMissingResponse
	case errors.Is(err, httpclient.ErrInvalidMethod):
		return NetInvalidMethod
	case errors.As(err, &capErr), errors.As(err, &blocked):
		return NetDenied
	default:
		return NetRequestError
	}
}

func (s *Session) request(h int32) (*httpclient.Request, bool) {
	v, ok := s.Resources.GetKind(h, resource.KindRequest)
	if !ok {
		return nil, false
	}
	r, ok := v.(*httpclient.Request)
	return r, ok
}

// response resolves a sent request handle to its response.
func (s *Session) response(h int32) (*httpclient.Request, int32) {
	r, ok := s.request(h)
	if !ok {
		return nil, NetInvalidDescriptor
	}
	if _, err := r.Response(); err != nil {
		return nil, NetMissingResponse
	}
	return r, 0
}

func (s *Session) netInit(_ context.Context, _ Memory, stack []uint64) {
	m, err := httpclient.ParseMethod(argI32(stack, 0))
	if err != nil {
		retI32(stack, NetInvalidMethod)
		return
	}
	retI32(stack, s.store(NamespaceNet, resource.KindRequest, httpclient.NewRequest(m)))
}

func (s *Session) netSetURL(_ context.Context, mem Memory, stack []uint64) {
	r, ok := s.request(argI32(stack, 0))
	if !ok {
		retI32(stack, NetInvalidDescriptor)
		return
	}
	raw, ok := readString(mem, argI32(stack, 1), argI32(stack, 2))
	if !ok {
		retI32(stack, NetInvalidString)
		return
	}
	if err := r.SetURL(raw); err != nil {
		retI32(stack, netCode(err))
		return
	}
	retI32(stack, 0)
}

func (s *Session) netSetHeader(_ context.Context, mem Memory, stack []uint64) {
	r, ok := s.request(argI32(stack, 0))
	if !ok {
		retI32(stack, NetInvalidDescriptor)
		return
	}
	key, ok := readString(mem, argI32(stack, 1), argI32(stack, 2))
	if !ok {
		retI32(stack, NetInvalidString)
		return
	}
	value, ok := readString(mem, argI32(stack, 3), argI32(stack, 4))
	if !ok {
		retI32(stack, NetInvalidString)
		return
	}
	if err := r.SetHeader(key, value); err != nil {
		retI32(stack, netCode(err))
		return
	}
	retI32(stack, 0)
}

func (s *Session) netSetBody(_ context.Context, mem Memory, stack []uint64) {
	r, ok := s.request(argI32(stack, 0))
	if !ok {
		retI32(stack, NetInvalidDescriptor)
		return
	}
	body, ok := readBytes(mem, argI32(stack, 1), argI32(stack, 2))
	if !ok {
		retI32(stack, NetInvalidBufferSize)
		return
	}
	if err := r.SetBody(body); err != nil {
		retI32(stack, netCode(err))
		return
	}
	retI32(stack, 0)
}

func (s *Session) netSetRateLimit(_ context.Context, _ Memory, stack []uint64) {
	permits := argI32(stack, 0)
	window, err := ratelimit.Unit(argI32(stack, 2)).Duration(argI32(stack, 1))
	if err != nil || permits < 0 {
		s.Logger.Warn("ignoring invalid rate limit",
			zap.Int32("permits", permits), zap.Int32("period", argI32(stack, 1)), zap.Int32("unit", argI32(stack, 2)))
		return
	}
	s.HTTP.Limiter().Configure(int(permits), window)
}

func (s *Session) netSend(ctx context.Context, _ Memory, stack []uint64) {
	r, ok := s.request(argI32(stack, 0))
	if !ok {
		retI32(stack, NetInvalidDescriptor)
		return
	}
	if err := s.HTTP.Send(ctx, r); err != nil {
		retI32(stack, netCode(err))
		return
	}
	retI32(stack, 0)
}

// netSendAll sends the requests whose handles fill the i32 array (ptr, n)
// and overwrites each slot with its handle on success or a negative code.
// When the array cannot be written back the whole batch fails and every
// fetched response is dropped.
func (s *Session) netSendAll(ctx context.Context, mem Memory, stack []uint64) {
	ptr, n := argI32(stack, 0), argI32(stack, 1)
	if n < 0 || n > maxBatch {
		retI32(stack, NetInvalidBufferSize)
		return
	}
	raw, ok := readBytes(mem, ptr, n*4)
	if !ok {
		retI32(stack, NetInvalidBufferSize)
		return
	}

	slots := make([]int32, n)
	reqs := make([]*httpclient.Request, 0, n)
	index := make([]int, 0, n)
	var fresh []*httpclient.Request
	for i := range slots {
		h := int32(binary.LittleEndian.Uint32(raw[i*4:])) //nolint:gosec // G115: handles are i32
		r, ok := s.request(h)
		if !ok {
			slots[i] = NetInvalidDescriptor
			continue
		}
		slots[i] = h
		reqs = append(reqs, r)
		index = append(index, i)
		if !r.Sent() {
			fresh = append(fresh, r)
		}
	}

	for j, err := range s.HTTP.SendAll(ctx, reqs) {
		if err != nil {
			slots[index[j]] = netCode(err)
		}
	}

	out := make([]byte, len(raw))
	for i, v := range slots {
		binary.LittleEndian.PutUint32(out[i*4:], uint32(v)) //nolint:gosec // G115: sign-preserving
	}
	if !writeBytes(mem, ptr, n*4, out) {
		// Only this batch's responses are dropped.
		for _, r := range fresh {
			r.Discard()
		}
		retI32(stack, NetFailedMemoryWrite)
		return
	}
	retI32(stack, 0)
}

func (s *Session) netDataLen(_ context.Context, _ Memory, stack []uint64) {
	r, code := s.response(argI32(stack, 0))
	if code != 0 {
		retI32(stack, code)
		return
	}
	resp, _ := r.Response()
	retI32(stack, int32(len(resp.Body))) //nolint:gosec // G115: bounded by the client body cap
}

func (s *Session) netReadData(_ context.Context, mem Memory, stack []uint64) {
	r, code := s.response(argI32(stack, 0))
	if code != 0 {
		retI32(stack, code)
		return
	}
	resp, _ := r.Response()
	if resp.Body == nil {
		retI32(stack, NetMissingData)
		return
	}
	retI32(stack, copyOut(mem, argI32(stack, 1), argI32(stack, 2), resp.Body, NetInvalidBufferSize, NetFailedMemoryWrite))
}

func (s *Session) netStatusCode(_ context.Context, _ Memory, stack []uint64) {
	r, code := s.response(argI32(stack, 0))
	if code != 0 {
		retI32(stack, code)
		return
	}
	resp, _ := r.Response()
	retI32(stack, int32(resp.StatusCode)) //nolint:gosec // G115: HTTP status codes are small
}

func (s *Session) netGetHeader(_ context.Context, mem Memory, stack []uint64) {
	r, code := s.response(argI32(stack, 0))
	if code != 0 {
		retI32(stack, code)
		return
	}
	key, ok := readString(mem, argI32(stack, 1), argI32(stack, 2))
	if !ok {
		retI32(stack, NetInvalidString)
		return
	}
	resp, _ := r.Response()
	v, ok := resp.Header(key)
	if !ok {
		retI32(stack, NetMissingData)
		return
	}
	retI32(stack, s.store(NamespaceNet, resource.KindString, v))
}

func (s *Session) netGetURL(_ context.Context, _ Memory, stack []uint64) {
	r, ok := s.request(argI32(stack, 0))
	if !ok {
		retI32(stack, NetInvalidDescriptor)
		return
	}
	u := r.URL()
	if u == "" {
		retI32(stack, NetMissingURL)
		return
	}
	retI32(stack, s.store(NamespaceNet, resource.KindString, u))
}

func (s *Session) netHTML(_ context.Context, _ Memory, stack []uint64) {
	r, code := s.response(argI32(stack, 0))
	if code != 0 {
		retI32(stack, code)
		return
	}
	resp, _ := r.Response()
	doc, err := dom.Parse(resp.Body, r.URL())
	if err != nil {
		retI32(stack, NetInvalidHTML)
		return
	}
	retI32(stack, s.store(NamespaceNet, resource.KindDocument, doc))
}

func (s *Session) netGetImage(_ context.Context, _ Memory, stack []uint64) {
	r, code := s.response(argI32(stack, 0))
	if code != 0 {
		retI32(stack, code)
		return
	}
	resp, _ := r.Response()
	img, err := raster.DecodeImage(resp.Body)
	if err != nil {
		retI32(stack, NetNotAnImage)
		return
	}
	retI32(stack, s.store(NamespaceNet, resource.KindImage, img))
}
