package hostfuncs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// NewEnvBundle returns the env namespace: guest output, abort, sleep and
// partial results.
func NewEnvBundle(s *Session) HostFuncBundle {
	return NewBundle(NamespaceEnv,
		fn("print", i32x2, none, s.envPrint),
		fn("abort", none, none, s.envAbort),
		fn("sleep", i32, none, s.envSleep),
		fn("send_partial_result", i32, i32, s.envSendPartialResult),
	)
}

func (s *Session) envPrint(_ context.Context, mem Memory, stack []uint64) {
	msg, ok := readString(mem, argI32(stack, 0), argI32(stack, 1))
	if !ok {
		s.Logger.Warn("guest printed an invalid string", zap.String("plugin", s.Plugin))
		return
	}
	s.Logger.Info(msg, zap.String("plugin", s.Plugin))
}

func (s *Session) envAbort(_ context.Context, _ Memory, _ []uint64) {
	s.Logger.Error("guest aborted", zap.String("plugin", s.Plugin))
	panic(&AbortError{})
}

func (s *Session) envSleep(ctx context.Context, _ Memory, stack []uint64) {
	secs := argI32(stack, 0)
	if secs <= 0 {
		return
	}
	s.Sleep(ctx, time.Duration(secs)*time.Second)
}

func (s *Session) envSendPartialResult(ctx context.Context, mem Memory, stack []uint64) {
	v, err := readValue(mem, argI32(stack, 0))
	if err != nil {
		retI32(stack, EnvInvalidString)
		return
	}
	if s.Partial != nil {
		s.Partial(ctx, v)
	}
	retI32(stack, 0)
}
