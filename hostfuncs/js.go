package hostfuncs

import (
	"context"
	"errors"

	"github.com/reglet-dev/sourcehost/infrastructure/script"
	"github.com/reglet-dev/sourcehost/resource"
)

// NewJSBundle returns the js namespace over isolated script contexts.
func NewJSBundle(s *Session) HostFuncBundle {
	return NewBundle(NamespaceJS,
		fn("context_create", none, i32, s.jsContextCreate),
		fn("context_eval", i32x3, i32, s.jsRun((*script.Context).Eval)),
		fn("context_get", i32x3, i32, s.jsRun((*script.Context).Get)),
	)
}

func jsCode(err error) int32 {
	if errors.Is(err, script.ErrMissingResult) {
		return JSMissingResult
	}
	return JSEvaluationFailed
}

func (s *Session) jsContextCreate(_ context.Context, _ Memory, stack []uint64) {
	retI32(stack, s.store(NamespaceJS, resource.KindScriptContext, script.NewContext(s.ScriptOptions...)))
}

func (s *Session) jsRun(run func(*script.Context, string) (string, error)) Func {
	return func(_ context.Context, mem Memory, stack []uint64) {
		v, ok := s.Resources.GetKind(argI32(stack, 0), resource.KindScriptContext)
		if !ok {
			retI32(stack, JSInvalidContext)
			return
		}
		src, ok := readString(mem, argI32(stack, 1), argI32(stack, 2))
		if !ok {
			retI32(stack, JSInvalidString)
			return
		}
		out, err := run(v.(*script.Context), src)
		if err != nil {
			retI32(stack, jsCode(err))
			return
		}
		retI32(stack, s.store(NamespaceJS, resource.KindString, out))
	}
}
