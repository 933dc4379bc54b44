package host

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
	"go.uber.org/zap/zapio"

	"github.com/reglet-dev/sourcehost/domain/entities"
	"github.com/reglet-dev/sourcehost/hostfuncs"
	wazeroadapter "github.com/reglet-dev/sourcehost/infrastructure/wazero"
)

// wasiModule is the import namespace of WASI preview 1.
const wasiModule = wasi_snapshot_preview1.ModuleName

var (
	// ErrPluginLoaded is returned by Load while another guest is running.
	ErrPluginLoaded = errors.New("executor already runs a plugin")

	// ErrExecutorClosed is returned by Load after Close.
	ErrExecutorClosed = errors.New("executor closed")

	// ErrNoFreeResult is returned by Load for a guest that exports
	// capabilities but no free_result.
	ErrNoFreeResult = errors.New("guest exports capabilities but no free_result")
)

// Executor owns the runtime and the host session of one guest.
type Executor struct {
	runtime  wazero.Runtime
	registry *hostfuncs.HandlerRegistry
	session  *hostfuncs.Session
	logger   *zap.Logger
	plugin   *Plugin
	config   executorConfig
	mu       sync.Mutex
	closed   bool
}

// NewExecutor creates a runtime with WASI and every import namespace bound
// to a fresh session.
func NewExecutor(ctx context.Context, opts ...Option) (*Executor, error) {
	cfg := defaultExecutorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	session, err := newSession(ctx, cfg)
	if err != nil {
		return nil, err
	}

	middleware := append([]hostfuncs.Middleware{
		hostfuncs.PanicRecoveryMiddleware(),
		hostfuncs.ErrorLoggingMiddleware(session.Logger),
	}, cfg.middleware...)

	regOpts := []hostfuncs.RegistryOption{
		hostfuncs.WithMiddleware(middleware...),
		hostfuncs.WithBundle(hostfuncs.AllBundles(session)...),
	}
	for _, extra := range cfg.extraFuncs {
		regOpts = append(regOpts, hostfuncs.WithFunc(extra.namespace, extra.fn))
	}
	registry, err := hostfuncs.NewRegistry(regOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if pages := cfg.config.Limits.MaxMemoryPages; pages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(pages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate wasi: %w", err)
	}
	if err := wazeroadapter.RegisterWithRuntime(ctx, rt, registry); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to register host functions: %w", err)
	}

	return &Executor{
		runtime:  rt,
		registry: registry,
		session:  session,
		logger:   session.Logger,
		config:   cfg,
	}, nil
}

// Session returns the host state shared with the guest.
func (e *Executor) Session() *hostfuncs.Session {
	return e.session
}

// Registry returns the host functions the guest can import.
func (e *Executor) Registry() *hostfuncs.HandlerRegistry {
	return e.registry
}

// Load instantiates wasm, runs its initializers and detects its
// capabilities. Only one plugin may be loaded at a time.
func (e *Executor) Load(ctx context.Context, wasm []byte) (*Plugin, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrExecutorClosed
	}
	if e.plugin != nil {
		return nil, ErrPluginLoaded
	}

	compiled, err := e.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, fmt.Errorf("failed to compile module: %w", err)
	}

	stdout := &zapio.Writer{Log: e.logger.With(zap.String("stream", "stdout")), Level: zap.InfoLevel}
	stderr := &zapio.Writer{Log: e.logger.With(zap.String("stream", "stderr")), Level: zap.WarnLevel}
	modConfig := wazero.NewModuleConfig().
		WithName(e.config.pluginName).
		WithStartFunctions().
		WithStdout(stdout).
		WithStderr(stderr).
		WithSysWalltime().
		WithSysNanotime().
		WithRandSource(rand.Reader)

	mod, err := e.runtime.InstantiateModule(ctx, compiled, modConfig)
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate module: %w", err)
	}

	p := &Plugin{
		executor: e,
		module:   mod,
		compiled: compiled,
		session:  e.session,
		logger:   e.logger,
		outputs:  []*zapio.Writer{stdout, stderr},
		leases:   make(map[*Lease]struct{}),
	}
	if err := p.init(ctx); err != nil {
		_ = p.shutdown(ctx)
		return nil, err
	}

	e.logger.Info("plugin loaded",
		zap.Stringer("capabilities", p.caps),
		zap.Int("exports", len(p.exports)))
	e.plugin = p
	return p, nil
}

// detach forgets p once it is closed so another guest can be loaded.
func (e *Executor) detach(p *Plugin) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.plugin == p {
		e.plugin = nil
	}
}

// Plugin returns the loaded guest, or nil.
func (e *Executor) Plugin() *Plugin {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.plugin
}

// Close closes the loaded plugin, if any, and the runtime.
func (e *Executor) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	p := e.plugin
	e.mu.Unlock()

	var errs []error
	if p != nil {
		errs = append(errs, p.Close(ctx))
	}
	errs = append(errs, e.runtime.Close(ctx))
	return errors.Join(errs...)
}

// Report describes a guest module without running it.
type Report struct {
	// Exports lists every exported function.
	Exports []string `json:"exports"`
	// Imports lists imported functions as "namespace.name".
	Imports []string `json:"imports"`
	// Unresolved lists imports neither the registry nor WASI provides.
	Unresolved []string `json:"unresolved,omitempty"`
	// Capabilities is the set detected from export names alone. The
	// guest's capabilities export can only narrow it at load time.
	Capabilities entities.CapabilitySet `json:"-"`
	// CapabilityNames lists Capabilities by name.
	CapabilityNames []string `json:"capabilities"`
	FreeResult      bool     `json:"free_result"`
}

// Inspect compiles wasm and reports its exports, imports and capabilities.
func (e *Executor) Inspect(ctx context.Context, wasm []byte) (*Report, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, fmt.Errorf("failed to compile module: %w", err)
	}
	defer func() { _ = compiled.Close(ctx) }()

	r := &Report{}
	exports := compiled.ExportedFunctions()
	for name := range exports {
		r.Exports = append(r.Exports, name)
	}
	sort.Strings(r.Exports)

	for _, def := range compiled.ImportedFunctions() {
		ns, name, _ := def.Import()
		r.Imports = append(r.Imports, ns+"."+name)
		if ns != wasiModule && !e.registry.Has(ns, name) {
			r.Unresolved = append(r.Unresolved, ns+"."+name)
		}
	}

	r.Capabilities = capabilitiesFromExports(func(name string) bool {
		def, ok := exports[name]
		return ok && validExport(def)
	})
	for _, c := range r.Capabilities.List() {
		r.CapabilityNames = append(r.CapabilityNames, c.String())
	}
	_, r.FreeResult = exports[entities.ExportFreeResult]
	return r, nil
}

func capabilitiesFromExports(has func(name string) bool) entities.CapabilitySet {
	var set entities.CapabilitySet
	for _, c := range entities.AllCapabilities() {
		if has(c.Export()) {
			set = set.With(c)
		}
	}
	return set
}

// validExport reports whether def follows the export convention: i32
// handles in and at most one i32 result out.
func validExport(def api.FunctionDefinition) bool {
	for _, t := range def.ParamTypes() {
		if t != api.ValueTypeI32 {
			return false
		}
	}
	results := def.ResultTypes()
	return len(results) == 0 || (len(results) == 1 && results[0] == api.ValueTypeI32)
}
