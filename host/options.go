package host

import (
	"go.uber.org/zap"

	"github.com/reglet-dev/sourcehost/domain/entities"
	"github.com/reglet-dev/sourcehost/hostfuncs"
)

// executorConfig holds configuration for the Executor.
type executorConfig struct {
	logger      *zap.Logger
	partial     hostfuncs.PartialResultSink
	pluginName  string
	sessionOpts []hostfuncs.SessionOption
	extraFuncs  []extraFunc
	middleware  []hostfuncs.Middleware
	config      entities.HostConfig
}

type extraFunc struct {
	namespace string
	fn        hostfuncs.HostFunc
}

func defaultExecutorConfig() executorConfig {
	return executorConfig{
		config:     entities.DefaultHostConfig(),
		logger:     zap.NewNop(),
		pluginName: "plugin",
	}
}

// Option configures an Executor.
type Option func(*executorConfig)

// WithConfig replaces the default host configuration.
func WithConfig(cfg entities.HostConfig) Option {
	return func(c *executorConfig) {
		c.config = cfg
	}
}

// WithLogger sets the logger shared by the executor, its session and the
// guest's output streams.
func WithLogger(l *zap.Logger) Option {
	return func(c *executorConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPluginName names the guest module in logs.
func WithPluginName(name string) Option {
	return func(c *executorConfig) {
		if name != "" {
			c.pluginName = name
		}
	}
}

// WithPartialResultSink receives values the guest streams with
// env.send_partial_result while a call is running.
func WithPartialResultSink(fn hostfuncs.PartialResultSink) Option {
	return func(c *executorConfig) {
		c.partial = fn
	}
}

// WithSessionOptions applies opts after the session is built from the
// configuration, so they take precedence.
func WithSessionOptions(opts ...hostfuncs.SessionOption) Option {
	return func(c *executorConfig) {
		c.sessionOpts = append(c.sessionOpts, opts...)
	}
}

// WithHostFunc exports an additional host function under namespace ns.
func WithHostFunc(ns string, hf hostfuncs.HostFunc) Option {
	return func(c *executorConfig) {
		c.extraFuncs = append(c.extraFuncs, extraFunc{namespace: ns, fn: hf})
	}
}

// WithMiddleware adds middleware inside the built-in panic recovery and
// error logging layers.
func WithMiddleware(mw ...hostfuncs.Middleware) Option {
	return func(c *executorConfig) {
		c.middleware = append(c.middleware, mw...)
	}
}
