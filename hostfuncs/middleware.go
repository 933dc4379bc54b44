package hostfuncs

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
)

// Middleware wraps a Func to add cross-cutting behavior.
// Middleware executes in FIFO order (first registered wraps first, onion model).
type Middleware func(next Func) Func

// RegistryOption is a functional option for configuring a HandlerRegistry.
type RegistryOption func(*registryBuilder)

type panicKey struct{}

// AbortError is raised by env.abort. It is the one panic that is allowed to
// reach the runtime, where it traps the guest.
type AbortError struct {
	Message string
}

func (e *AbortError) Error() string {
	if e.Message == "" {
		return "guest aborted"
	}
	return "guest aborted: " + e.Message
}

// PanicRecoveryMiddleware catches panics raised by a host function and
// returns the namespace's generic failure code instead of unwinding into the
// guest. The recovered value is kept on the HostContext for later middleware.
func PanicRecoveryMiddleware() Middleware {
	return func(next Func) Func {
		return func(ctx context.Context, mem Memory, stack []uint64) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if abort, ok := r.(*AbortError); ok {
					panic(abort)
				}
				hc := HostContextFrom(ctx)
				hc.SetValue(panicKey{}, r)
				writeCode(stack, hc.Results(), GenericCode(hc.Namespace()))
			}()
			next(ctx, mem, stack)
		}
	}
}

// ErrorLoggingMiddleware logs every negative result code with the namespace,
// function and code name. i64 and float results carry codes as whole
// negative numbers in the int32 range.
func ErrorLoggingMiddleware(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next Func) Func {
		return func(ctx context.Context, mem Memory, stack []uint64) {
			next(ctx, mem, stack)

			hc := HostContextFrom(ctx)
			results := hc.Results()
			code, ok := readCode(stack, results)
			if !ok {
				return
			}
			fields := []zap.Field{
				zap.String("namespace", hc.Namespace()),
				zap.String("function", hc.FunctionName()),
				zap.Int32("code", code),
				zap.String("code_name", CodeName(hc.Namespace(), code)),
			}
			if p, ok := hc.GetValue(panicKey{}); ok {
				fields = append(fields, zap.String("panic", fmt.Sprint(p)))
				logger.Error("host function panicked", fields...)
				return
			}
			logger.Warn("host function returned error code", fields...)
		}
	}
}

func writeCode(stack []uint64, results []ValueType, code int32) {
	if len(results) == 0 || len(stack) == 0 {
		return
	}
	switch results[0] {
	case I64:
		retI64(stack, int64(code))
	case F64:
		retF64(stack, float64(code))
	case F32:
		stack[0] = uint64(math.Float32bits(float32(code)))
	default:
		retI32(stack, code)
	}
}

// readCode is the inverse of writeCode. It reports false when the result slot
// does not hold a negative code.
func readCode(stack []uint64, results []ValueType) (int32, bool) {
	if len(results) != 1 || len(stack) == 0 {
		return 0, false
	}
	var v float64
	switch results[0] {
	case I32:
		code := argI32(stack, 0)
		return code, code < 0
	case I64:
		v = float64(argI64(stack, 0))
	case F64:
		v = argF64(stack, 0)
	case F32:
		v = float64(argF32(stack, 0))
	default:
		return 0, false
	}
	if v >= 0 || v < math.MinInt32 || v != math.Trunc(v) {
		return 0, false
	}
	return int32(v), true
}
