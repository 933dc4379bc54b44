package policy

import (
	"github.com/reglet-dev/sourcehost/domain/ports"
	"go.uber.org/zap"
)

var (
	_ ports.DenialHandler = (*LogDenialHandler)(nil)
	_ ports.DenialHandler = (*NopDenialHandler)(nil)
)

// LogDenialHandler logs denials at warn level.
type LogDenialHandler struct {
	Logger *zap.Logger
}

func (h *LogDenialHandler) OnDenial(kind string, request any, reason string) {
	if h.Logger == nil {
		return
	}
	h.Logger.Warn("permission denied",
		zap.String("kind", kind),
		zap.Any("request", request),
		zap.String("reason", reason),
	)
}

// NopDenialHandler does nothing.
type NopDenialHandler struct{}

func (h *NopDenialHandler) OnDenial(kind string, request any, reason string) {}
