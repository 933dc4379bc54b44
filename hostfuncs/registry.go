package hostfuncs

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownFunction is returned by Invoke for a name that is not registered.
var ErrUnknownFunction = errors.New("unknown host function")

// HandlerRegistry is an immutable collection of host functions grouped by
// import namespace. Once created via NewRegistry, functions cannot be added
// or removed, so lookups need no locking.
type HandlerRegistry struct {
	funcs      map[string]map[string]HostFunc
	namespaces []string
	names      map[string][]string
}

type registryBuilder struct {
	funcs      map[string]map[string]HostFunc
	middleware []Middleware
	errors     []error
}

// NewRegistry creates an immutable HandlerRegistry with the given options.
// Returns an error if any namespace.name pair is registered twice.
//
// Example usage:
//
//	registry, err := NewRegistry(
//	    WithMiddleware(PanicRecoveryMiddleware(), ErrorLoggingMiddleware(logger)),
//	    WithBundle(NewStdBundle(session)),
//	    WithFunc("env", custom),
//	)
func NewRegistry(opts ...RegistryOption) (*HandlerRegistry, error) {
	b := &registryBuilder{funcs: make(map[string]map[string]HostFunc)}

	for _, opt := range opts {
		opt(b)
	}

	if len(b.errors) > 0 {
		return nil, b.errors[0]
	}

	r := &HandlerRegistry{
		funcs: make(map[string]map[string]HostFunc, len(b.funcs)),
		names: make(map[string][]string, len(b.funcs)),
	}
	for ns, funcs := range b.funcs {
		r.namespaces = append(r.namespaces, ns)
		wrapped := make(map[string]HostFunc, len(funcs))
		names := make([]string, 0, len(funcs))
		for name, hf := range funcs {
			hf.Fn = b.wrap(ns, hf)
			wrapped[name] = hf
			names = append(names, name)
		}
		sort.Strings(names)
		r.funcs[ns] = wrapped
		r.names[ns] = names
	}
	sort.Strings(r.namespaces)
	return r, nil
}

// wrap applies the middleware chain (first added is outermost) and installs
// the HostContext every middleware relies on.
func (b *registryBuilder) wrap(ns string, hf HostFunc) Func {
	chain := hf.Fn
	for i := len(b.middleware) - 1; i >= 0; i-- {
		chain = b.middleware[i](chain)
	}
	name, results := hf.Name, hf.Results
	return func(ctx context.Context, mem Memory, stack []uint64) {
		chain(NewHostContext(ctx, ns, name, results), mem, stack)
	}
}

// Invoke calls a registered function directly. It is mostly useful in tests
// and for runtimes that dispatch by name.
func (r *HandlerRegistry) Invoke(ctx context.Context, ns, name string, mem Memory, stack []uint64) error {
	hf, ok := r.Lookup(ns, name)
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownFunction, ns, name)
	}
	need := max(len(hf.Params), len(hf.Results))
	if len(stack) < need {
		return fmt.Errorf("%s.%s: stack holds %d values, need %d", ns, name, len(stack), need)
	}
	hf.Fn(ctx, mem, stack)
	return nil
}

// Lookup returns the wrapped function registered under ns.name.
func (r *HandlerRegistry) Lookup(ns, name string) (HostFunc, bool) {
	hf, ok := r.funcs[ns][name]
	return hf, ok
}

// Has returns true if a function with the given name is registered in ns.
func (r *HandlerRegistry) Has(ns, name string) bool {
	_, ok := r.funcs[ns][name]
	return ok
}

// Namespaces returns the sorted list of registered namespaces.
func (r *HandlerRegistry) Namespaces() []string {
	result := make([]string, len(r.namespaces))
	copy(result, r.namespaces)
	return result
}

// Funcs returns the functions of ns sorted by name.
func (r *HandlerRegistry) Funcs(ns string) []HostFunc {
	names := r.names[ns]
	result := make([]HostFunc, 0, len(names))
	for _, name := range names {
		result = append(result, r.funcs[ns][name])
	}
	return result
}

func (b *registryBuilder) addFunc(ns string, hf HostFunc) error {
	if ns == "" {
		return errors.New("namespace cannot be empty")
	}
	if hf.Name == "" {
		return fmt.Errorf("%s: function name cannot be empty", ns)
	}
	if hf.Fn == nil {
		return fmt.Errorf("%s.%s: function body cannot be nil", ns, hf.Name)
	}
	funcs, ok := b.funcs[ns]
	if !ok {
		funcs = make(map[string]HostFunc)
		b.funcs[ns] = funcs
	}
	if _, exists := funcs[hf.Name]; exists {
		return fmt.Errorf("duplicate host function: %q", ns+"."+hf.Name)
	}
	funcs[hf.Name] = hf
	return nil
}

// WithFunc registers a single function in ns.
func WithFunc(ns string, hf HostFunc) RegistryOption {
	return func(b *registryBuilder) {
		if err := b.addFunc(ns, hf); err != nil {
			b.errors = append(b.errors, err)
		}
	}
}

// WithMiddleware adds middleware to the registry.
// Middleware executes in FIFO order (first added wraps first).
func WithMiddleware(mw ...Middleware) RegistryOption {
	return func(b *registryBuilder) {
		b.middleware = append(b.middleware, mw...)
	}
}
