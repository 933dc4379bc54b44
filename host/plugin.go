package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
	"go.uber.org/zap/zapio"

	"github.com/reglet-dev/sourcehost/domain/entities"
	domainerrors "github.com/reglet-dev/sourcehost/domain/errors"
	"github.com/reglet-dev/sourcehost/hostfuncs"
	"github.com/reglet-dev/sourcehost/resource"
	"github.com/reglet-dev/sourcehost/wireformat"
)

// ErrPluginClosed is returned by calls on a closed plugin.
var ErrPluginClosed = errors.New("plugin closed")

// initializers run once after instantiation, in order.
var initializers = []string{"_initialize", entities.ExportStart}

// Plugin is a loaded guest instance. Its methods are safe for concurrent
// use; guest calls run one at a time.
type Plugin struct {
	executor *Executor
	module   api.Module
	compiled wazero.CompiledModule
	session  *hostfuncs.Session
	logger   *zap.Logger
	outputs  []*zapio.Writer
	leases   map[*Lease]struct{}
	exports  []string
	caps     entities.CapabilitySet
	mu       sync.Mutex
	closed   bool
}

func (p *Plugin) init(ctx context.Context) error {
	for name := range p.compiled.ExportedFunctions() {
		p.exports = append(p.exports, name)
	}
	sort.Strings(p.exports)

	for _, name := range initializers {
		fn := p.module.ExportedFunction(name)
		if fn == nil {
			continue
		}
		if _, err := fn.Call(ctx); err != nil {
			return &domainerrors.TrapError{Export: name, Err: err}
		}
	}

	caps, err := p.detectCapabilities(ctx)
	if err != nil {
		return err
	}
	if caps.Len() > 0 && p.module.ExportedFunction(entities.ExportFreeResult) == nil {
		return ErrNoFreeResult
	}
	p.caps = caps
	return nil
}

// detectCapabilities collects the capability exports the guest provides and
// narrows them by the mask its capabilities export returns, if it has one.
func (p *Plugin) detectCapabilities(ctx context.Context) (entities.CapabilitySet, error) {
	set := capabilitiesFromExports(func(name string) bool {
		fn := p.module.ExportedFunction(name)
		return fn != nil && validExport(fn.Definition())
	})

	fn := p.module.ExportedFunction(entities.ExportCapabilities)
	if fn == nil {
		return set, nil
	}
	res, err := fn.Call(ctx)
	if err != nil {
		return 0, &domainerrors.TrapError{Export: entities.ExportCapabilities, Err: err}
	}
	if len(res) == 0 {
		return set, nil
	}
	mask := entities.CapabilitySet(api.DecodeU32(res[0]))
	if extra := mask &^ set; extra.Len() > 0 {
		p.logger.Warn("guest announces capabilities it does not export", zap.Stringer("capabilities", extra))
	}
	return set.Intersect(mask), nil
}

// Capabilities returns the capabilities detected at load.
func (p *Plugin) Capabilities() entities.CapabilitySet {
	return p.caps
}

// Exports lists every function the guest exports.
func (p *Plugin) Exports() []string {
	return append([]string(nil), p.exports...)
}

// Resources returns the table behind the guest's handles, for reading back
// resources a guest returns by handle.
func (p *Plugin) Resources() *resource.Table {
	return p.session.Resources
}

// Leases returns the number of results not yet handed back to the guest.
func (p *Plugin) Leases() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.leases)
}

// Call invokes export. Each argument is encoded into a Buffer resource whose
// handle is passed to the guest; a nil argument is passed as -1. The
// buffers are destroyed once the call returns.
//
// The returned lease holds a copy of the guest's result and is nil when the
// export returns nothing or a null pointer. A negative result is reported as
// a *GuestCodeError and a trap as a *TrapError.
func (p *Plugin) Call(ctx context.Context, export string, args ...any) (*Lease, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPluginClosed
	}

	fn := p.module.ExportedFunction(export)
	if fn == nil {
		return nil, &domainerrors.CapabilityError{Required: export}
	}
	def := fn.Definition()
	if !validExport(def) {
		return nil, fmt.Errorf("export %s does not take and return i32 values", export)
	}
	if n := len(def.ParamTypes()); n != len(args) {
		return nil, fmt.Errorf("export %s takes %d arguments, got %d", export, n, len(args))
	}

	handles, err := p.storeArgs(args)
	if err != nil {
		return nil, err
	}
	defer p.dropArgs(handles)

	params := make([]uint64, len(handles))
	for i, h := range handles {
		params[i] = api.EncodeI32(h)
	}

	results, err := fn.Call(ctx, params...)
	if err != nil {
		p.logger.Warn("guest call trapped", zap.String("export", export), zap.Error(err))
		return nil, &domainerrors.TrapError{Export: export, Err: err}
	}
	if len(results) == 0 {
		return nil, nil
	}

	ptr := api.DecodeI32(results[0])
	switch {
	case ptr < 0:
		return nil, &domainerrors.GuestCodeError{Export: export, Code: ptr}
	case ptr == 0:
		return nil, nil
	}
	return p.lease(export, uint32(ptr))
}

func (p *Plugin) storeArgs(args []any) ([]resource.Handle, error) {
	handles := make([]resource.Handle, 0, len(args))
	for i, arg := range args {
		if arg == nil {
			handles = append(handles, -1)
			continue
		}
		buf, err := wireformat.Encode(arg)
		if err != nil {
			p.dropArgs(handles)
			return nil, &domainerrors.WireFormatError{Operation: "encode", Type: fmt.Sprintf("argument %d", i), Err: err}
		}
		h, err := p.session.Resources.Insert(resource.KindBuffer, buf)
		if err != nil {
			p.dropArgs(handles)
			return nil, fmt.Errorf("failed to store argument %d: %w", i, err)
		}
		handles = append(handles, h)
	}
	return handles, nil
}

func (p *Plugin) dropArgs(handles []resource.Handle) {
	for _, h := range handles {
		if h >= 0 {
			p.session.Resources.Remove(h)
		}
	}
}

// lease copies the envelope at ptr out of guest memory. The caller holds
// the lock.
func (p *Plugin) lease(export string, ptr uint32) (*Lease, error) {
	data, err := readEnvelope(p.module.Memory(), ptr)
	if err != nil {
		// The guest cannot reconstruct a malformed allocation, so the
		// pointer is not handed back.
		return nil, &domainerrors.WireFormatError{Operation: "read", Type: export + " result", Err: err}
	}
	l := &Lease{plugin: p, export: export, ptr: ptr, data: data}
	p.leases[l] = struct{}{}
	return l, nil
}

var errOutOfRange = errors.New("envelope outside guest memory")

func readEnvelope(mem api.Memory, ptr uint32) ([]byte, error) {
	if mem == nil {
		return nil, errOutOfRange
	}
	prefix, ok := mem.Read(ptr, wireformat.HeaderSize)
	if !ok {
		return nil, errOutOfRange
	}
	h, err := wireformat.ReadHeader(prefix)
	if err != nil {
		return nil, err
	}
	if h.IsError() {
		if prefix, ok = mem.Read(ptr, 2*wireformat.HeaderSize); !ok {
			return nil, errOutOfRange
		}
	}
	n, err := wireformat.Span(prefix)
	if err != nil {
		return nil, err
	}
	body, ok := mem.Read(ptr, uint32(n)) //nolint:gosec // G115: Span is bounded by int32 lengths
	if !ok {
		return nil, errOutOfRange
	}
	return bytes.Clone(body), nil
}

// release hands l back to the guest. The caller holds the lock.
func (p *Plugin) release(ctx context.Context, l *Lease) error {
	if l.released {
		return nil
	}
	l.released = true
	delete(p.leases, l)

	if p.closed {
		return nil
	}
	free := p.module.ExportedFunction(entities.ExportFreeResult)
	if free == nil {
		return ErrNoFreeResult
	}
	if _, err := free.Call(ctx, api.EncodeU32(l.ptr)); err != nil {
		return &domainerrors.TrapError{Export: entities.ExportFreeResult, Err: err}
	}
	return nil
}

// Close releases outstanding leases, destroys every resource the guest
// still holds and closes the module. Closing twice is a no-op.
func (p *Plugin) Close(ctx context.Context) error {
	err := p.shutdown(ctx)
	p.executor.detach(p)
	return err
}

func (p *Plugin) shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	var errs []error
	for l := range p.leases {
		if err := p.release(ctx, l); err != nil {
			errs = append(errs, err)
		}
	}
	p.closed = true
	p.session.Resources.Clear()
	errs = append(errs, p.module.Close(ctx), p.compiled.Close(ctx))
	for _, w := range p.outputs {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}
