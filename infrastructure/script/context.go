// Package script is the script adapter: independent JavaScript contexts on
// goja that evaluate guest supplied source and read back global bindings as
// strings.
package script

import (
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"
)

// Sentinel errors reported by the adapter.
var (
	ErrMissingResult = errors.New("script: missing result")
	ErrEvaluation    = errors.New("script: evaluation failed")
	ErrTimeout       = errors.New("script: execution timed out")
)

// Option configures a Context.
type Option func(*Context)

// WithTimeout bounds a single Eval. Zero disables the limit.
func WithTimeout(d time.Duration) Option {
	return func(c *Context) {
		if d >= 0 {
			c.timeout = d
		}
	}
}

type stopper interface {
	Stop() bool
}

func afterFunc(d time.Duration, f func()) stopper { return time.AfterFunc(d, f) }

// Context is one isolated JavaScript global environment. It is not safe for
// concurrent use.
type Context struct {
	vm        *goja.Runtime
	afterFunc func(time.Duration, func()) stopper
	timeout   time.Duration
}

// NewContext creates an empty context.
func NewContext(opts ...Option) *Context {
	c := &Context{vm: goja.New(), afterFunc: afterFunc, timeout: 5 * time.Second}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Eval runs src and returns its completion value converted to a string.
func (c *Context) Eval(src string) (string, error) {
	var timer stopper
	fired := make(chan struct{})
	if c.timeout > 0 {
		timer = c.afterFunc(c.timeout, func() {
			c.vm.Interrupt(ErrTimeout)
			close(fired)
		})
	}
	v, err := c.vm.RunString(src)
	if timer != nil && !timer.Stop() {
		// The interrupt is already on its way; it must land before the clear.
		<-fired
	}
	c.vm.ClearInterrupt()
	if err != nil {
		return "", classify(err)
	}
	return stringify(v)
}

// Get returns the global binding name converted to a string.
func (c *Context) Get(name string) (string, error) {
	return stringify(c.vm.Get(name))
}

// Drop interrupts anything still running so the runtime can be collected.
func (c *Context) Drop() {
	c.vm.Interrupt(ErrTimeout)
}

func stringify(v goja.Value) (string, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return "", ErrMissingResult
	}
	return v.String(), nil
}

func classify(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok && errors.Is(cause, ErrTimeout) {
			return ErrTimeout
		}
		return fmt.Errorf("%w: %s", ErrEvaluation, interrupted.String())
	}
	var exc *goja.Exception
	if errors.As(err, &exc) {
		return fmt.Errorf("%w: %s", ErrEvaluation, exc.Error())
	}
	return fmt.Errorf("%w: %v", ErrEvaluation, err)
}
