package hostfuncs

import (
	"context"
)

// HostContext wraps a standard context.Context with host function-specific helpers.
// It identifies the invoked function and allows middleware to store
// call-scoped values without polluting the standard context.
type HostContext interface {
	context.Context

	// Namespace returns the import namespace of the invoked function.
	Namespace() string

	// FunctionName returns the name of the host function being invoked.
	FunctionName() string

	// Results returns the result types of the invoked function.
	Results() []ValueType

	// SetValue stores a call-scoped value. Unlike context.WithValue,
	// this mutates the existing HostContext.
	SetValue(key, value any)

	// GetValue retrieves a call-scoped value set by SetValue.
	GetValue(key any) (value any, ok bool)
}

type hostContext struct {
	context.Context
	values    map[any]any
	namespace string
	funcName  string
	results   []ValueType
}

// NewHostContext creates a new HostContext wrapping the given context.
func NewHostContext(ctx context.Context, namespace, funcName string, results []ValueType) HostContext {
	return &hostContext{
		Context:   ctx,
		namespace: namespace,
		funcName:  funcName,
		results:   results,
	}
}

func (c *hostContext) Namespace() string { return c.namespace }

func (c *hostContext) FunctionName() string { return c.funcName }

func (c *hostContext) Results() []ValueType { return c.results }

func (c *hostContext) SetValue(key, value any) {
	if c.values == nil {
		c.values = make(map[any]any)
	}
	c.values[key] = value
}

func (c *hostContext) GetValue(key any) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// HostContextFrom extracts a HostContext from a context.Context.
// If the context is already a HostContext, it is returned directly.
// Otherwise an anonymous HostContext is created wrapping the given context.
func HostContextFrom(ctx context.Context) HostContext {
	if hc, ok := ctx.(HostContext); ok {
		return hc
	}
	return NewHostContext(ctx, "", "unknown", nil)
}
