// Package log builds the zap loggers used across the host.
package log

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type loggerConfig struct {
	outputs     []string
	development bool
}

func defaultLoggerConfig() loggerConfig {
	return loggerConfig{
		outputs: []string{"stderr"},
	}
}

// Option configures New.
type Option func(*loggerConfig)

// WithDevelopment switches to the console encoder with colored levels.
func WithDevelopment(enabled bool) Option {
	return func(c *loggerConfig) {
		c.development = enabled
	}
}

// WithOutputPaths sets where log lines are written (zap sink URLs).
func WithOutputPaths(paths ...string) Option {
	return func(c *loggerConfig) {
		if len(paths) > 0 {
			c.outputs = paths
		}
	}
}

// ParseLevel maps a config level name to a zap level. The empty string is info.
func ParseLevel(level string) (zapcore.Level, error) {
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return l, nil
}

// New builds a logger at level. Production loggers emit JSON, development
// loggers emit console lines.
func New(level string, opts ...Option) (*zap.Logger, error) {
	cfg := defaultLoggerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var zc zap.Config
	if cfg.development {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "ts"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = cfg.outputs
	zc.ErrorOutputPaths = cfg.outputs
	zc.DisableStacktrace = !cfg.development

	return zc.Build()
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
