package entities

import (
	"time"
)

// HostConfig controls a sourcehost session. Durations are carried as
// milliseconds so that the YAML file and the generated schema stay flat.
type HostConfig struct {
	// LogLevel is the logging verbosity ("debug", "info", "warn", "error").
	LogLevel string `json:"log_level" yaml:"log_level" validate:"omitempty,oneof=debug info warn error" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`

	Network   NetworkConfig   `json:"network" yaml:"network"`
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
	Script    ScriptConfig    `json:"script" yaml:"script"`
	Settings  SettingsConfig  `json:"settings" yaml:"settings"`
	Limits    LimitsConfig    `json:"limits" yaml:"limits"`

	// Grants restricts network hosts and settings keys. Nil grants nothing
	// extra and enforces nothing.
	Grants *GrantSet `json:"grants,omitempty" yaml:"grants,omitempty"`
}

// NetworkConfig configures the outbound HTTP client.
type NetworkConfig struct {
	TimeoutMs    int    `json:"timeout_ms" yaml:"timeout_ms" validate:"gte=0"`
	MaxRedirects int    `json:"max_redirects" yaml:"max_redirects" validate:"gte=0,lte=20"`
	MaxBodyBytes int64  `json:"max_body_bytes" yaml:"max_body_bytes" validate:"gte=0"`
	UserAgent    string `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
	// AllowPrivate disables the SSRF filter for loopback and private ranges.
	AllowPrivate bool `json:"allow_private,omitempty" yaml:"allow_private,omitempty"`
	// Concurrency bounds the requests send_all keeps in flight.
	Concurrency int `json:"concurrency" yaml:"concurrency" validate:"gte=1,lte=64"`
}

// Timeout returns the per-request timeout.
func (c NetworkConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// RateLimitConfig is the initial global request budget. Zero permits means
// unlimited until the guest calls net.set_rate_limit.
type RateLimitConfig struct {
	Permits  int `json:"permits" yaml:"permits" validate:"gte=0"`
	PeriodMs int `json:"period_ms" yaml:"period_ms" validate:"gte=0"`
}

// Period returns the replenish window.
func (c RateLimitConfig) Period() time.Duration {
	return time.Duration(c.PeriodMs) * time.Millisecond
}

// ScriptConfig configures script contexts.
type ScriptConfig struct {
	TimeoutMs int `json:"timeout_ms" yaml:"timeout_ms" validate:"gte=0"`
}

// Timeout returns the evaluation timeout. Zero disables it.
func (c ScriptConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// SettingsConfig selects where settings persist.
type SettingsConfig struct {
	Backend string `json:"backend" yaml:"backend" validate:"oneof=memory yaml" jsonschema:"enum=memory,enum=yaml"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty" validate:"required_if=Backend yaml"`
}

// LimitsConfig bounds guest resource usage.
type LimitsConfig struct {
	MaxResources   int    `json:"max_resources" yaml:"max_resources" validate:"gte=0,lte=4194304"`
	MaxMemoryPages uint32 `json:"max_memory_pages" yaml:"max_memory_pages" validate:"lte=65536"`
}

// DefaultHostConfig returns the configuration used when no file is given.
func DefaultHostConfig() HostConfig {
	return HostConfig{
		LogLevel: "info",
		Network: NetworkConfig{
			TimeoutMs:    30000,
			MaxRedirects: 10,
			MaxBodyBytes: 32 << 20,
			UserAgent:    "sourcehost/1.0",
			Concurrency:  8,
		},
		Script:   ScriptConfig{TimeoutMs: 5000},
		Settings: SettingsConfig{Backend: "memory"},
	}
}

// HostConfigOption is a functional option for HostConfig.
type HostConfigOption func(*HostConfig)

// WithLogLevel sets the logging verbosity level.
func WithLogLevel(level string) HostConfigOption {
	return func(c *HostConfig) {
		c.LogLevel = level
	}
}

// WithNetworkTimeout sets the per-request timeout.
func WithNetworkTimeout(d time.Duration) HostConfigOption {
	return func(c *HostConfig) {
		if d > 0 {
			c.Network.TimeoutMs = int(d / time.Millisecond)
		}
	}
}

// WithAllowPrivateNetwork disables the SSRF filter. Use only for tests.
func WithAllowPrivateNetwork(allow bool) HostConfigOption {
	return func(c *HostConfig) {
		c.Network.AllowPrivate = allow
	}
}

// WithConcurrency sets how many requests send_all runs at once.
func WithConcurrency(n int) HostConfigOption {
	return func(c *HostConfig) {
		if n > 0 {
			c.Network.Concurrency = n
		}
	}
}

// WithRateLimit sets the initial request budget.
func WithRateLimit(permits int, period time.Duration) HostConfigOption {
	return func(c *HostConfig) {
		c.RateLimit = RateLimitConfig{Permits: permits, PeriodMs: int(period / time.Millisecond)}
	}
}

// WithSettingsFile persists settings to a YAML file at path.
func WithSettingsFile(path string) HostConfigOption {
	return func(c *HostConfig) {
		c.Settings = SettingsConfig{Backend: "yaml", Path: path}
	}
}

// WithGrants sets the grant set enforced on network and settings access.
func WithGrants(g *GrantSet) HostConfigOption {
	return func(c *HostConfig) {
		c.Grants = g
	}
}

// WithMaxResources caps the number of live handles.
func WithMaxResources(n int) HostConfigOption {
	return func(c *HostConfig) {
		if n >= 0 {
			c.Limits.MaxResources = n
		}
	}
}

// NewHostConfig creates a HostConfig from the defaults and opts.
func NewHostConfig(opts ...HostConfigOption) HostConfig {
	cfg := DefaultHostConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
