package wazero

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/reglet-dev/sourcehost/hostfuncs"
)

// AdapterConfig holds configuration for the wazero adapter.
type AdapterConfig struct {
	// Namespaces restricts which registry namespaces become host modules.
	// Empty means all of them.
	Namespaces []string

	// CustomHandlers are raw wazero functions added to their namespace's host
	// module next to the registry functions.
	CustomHandlers []CustomHandler
}

// CustomHandler is a wazero function that bypasses the registry and its
// middleware.
type CustomHandler struct {
	Handler     api.GoModuleFunc
	Namespace   string
	Name        string
	ParamTypes  []api.ValueType
	ResultTypes []api.ValueType
}

// AdapterOption configures the adapter.
type AdapterOption func(*AdapterConfig)

// WithNamespaces limits registration to the given namespaces.
func WithNamespaces(ns ...string) AdapterOption {
	return func(c *AdapterConfig) {
		c.Namespaces = append(c.Namespaces, ns...)
	}
}

// WithCustomHandler adds a custom wazero handler.
func WithCustomHandler(h CustomHandler) AdapterOption {
	return func(c *AdapterConfig) {
		c.CustomHandlers = append(c.CustomHandlers, h)
	}
}

func defaultAdapterConfig() AdapterConfig {
	return AdapterConfig{}
}

// RegisterWithRuntime instantiates one host module per registry namespace,
// exporting every function under its own name, so a guest importing
// ("net", "send") reaches the registry's net.send.
//
// Example:
//
//	registry, _ := hostfuncs.NewRegistry(
//	    hostfuncs.WithBundle(hostfuncs.AllBundles(session)...),
//	)
//	err := wazero.RegisterWithRuntime(ctx, runtime, registry)
func RegisterWithRuntime(ctx context.Context, runtime wazero.Runtime, registry *hostfuncs.HandlerRegistry, opts ...AdapterOption) error {
	cfg := defaultAdapterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	namespaces := cfg.Namespaces
	if len(namespaces) == 0 {
		namespaces = registry.Namespaces()
	}
	custom := make(map[string][]CustomHandler)
	for _, ch := range cfg.CustomHandlers {
		custom[ch.Namespace] = append(custom[ch.Namespace], ch)
		if !contains(namespaces, ch.Namespace) {
			namespaces = append(namespaces, ch.Namespace)
		}
	}

	for _, ns := range namespaces {
		builder := runtime.NewHostModuleBuilder(ns)
		for _, hf := range registry.Funcs(ns) {
			builder.NewFunctionBuilder().
				WithGoModuleFunction(bind(hf.Fn), hf.Params, hf.Results).
				WithName(hf.Name).
				Export(hf.Name)
		}
		for _, ch := range custom[ns] {
			builder.NewFunctionBuilder().
				WithGoModuleFunction(ch.Handler, ch.ParamTypes, ch.ResultTypes).
				WithName(ch.Name).
				Export(ch.Name)
		}
		if _, err := builder.Instantiate(ctx); err != nil {
			return fmt.Errorf("failed to instantiate host module %q: %w", ns, err)
		}
	}
	return nil
}

// bind forwards a wazero call to a registry function with the caller's
// memory.
func bind(fn hostfuncs.Func) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		var mem hostfuncs.Memory = noMemory{}
		if m := mod.Memory(); m != nil {
			mem = m
		}
		fn(ctx, mem, stack)
	}
}

// noMemory stands in for guests that define no memory. Every access fails,
// so pointer arguments decode to the namespace's error code.
type noMemory struct{}

func (noMemory) Size() uint32 { return 0 }
func (noMemory) Read(uint32, uint32) ([]byte, bool) { return nil, false }
func (noMemory) Write(uint32, []byte) bool { return false }
func (noMemory) ReadUint32Le(uint32) (uint32, bool) { return 0, false }
func (noMemory) WriteUint32Le(uint32, uint32) bool { return false }

var _ hostfuncs.Memory = (api.Memory)(nil)

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
