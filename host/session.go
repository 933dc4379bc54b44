package host

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/reglet-dev/sourcehost/domain/policy"
	"github.com/reglet-dev/sourcehost/hostfuncs"
	"github.com/reglet-dev/sourcehost/infrastructure/httpclient"
	"github.com/reglet-dev/sourcehost/infrastructure/ratelimit"
	"github.com/reglet-dev/sourcehost/infrastructure/script"
	"github.com/reglet-dev/sourcehost/infrastructure/settings"
	"github.com/reglet-dev/sourcehost/resource"
)

// newSession builds the host state behind the import namespaces from cfg.
// Grants are enforced only when cfg carries a grant set.
func newSession(ctx context.Context, c executorConfig) (*hostfuncs.Session, error) {
	cfg := c.config
	logger := c.logger.With(zap.String("plugin", c.pluginName))

	var pol *policy.Policy
	if cfg.Grants != nil {
		pol = policy.NewPolicy(policy.WithDenialHandler(&policy.LogDenialHandler{Logger: logger}))
	}

	httpOpts := []httpclient.Option{
		httpclient.WithLogger(logger),
		httpclient.WithTimeout(cfg.Network.Timeout()),
		httpclient.WithMaxRedirects(cfg.Network.MaxRedirects),
		httpclient.WithMaxBodySize(cfg.Network.MaxBodyBytes),
		httpclient.WithUserAgent(cfg.Network.UserAgent),
		httpclient.WithConcurrency(cfg.Network.Concurrency),
		httpclient.WithLimiter(ratelimit.New(cfg.RateLimit.Permits, cfg.RateLimit.Period())),
		httpclient.WithFilter(httpclient.WithAllowPrivate(cfg.Network.AllowPrivate)),
	}

	settingsOpts := []settings.Option{
		settings.WithLogger(logger),
		settings.WithBackend(settings.BackendFor(cfg.Settings)),
	}

	if pol != nil {
		httpOpts = append(httpOpts, httpclient.WithPolicy(pol, cfg.Grants))
		settingsOpts = append(settingsOpts, settings.WithPolicy(pol, cfg.Grants))
	}

	store, err := settings.Open(ctx, settingsOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings: %w", err)
	}

	opts := []hostfuncs.SessionOption{
		hostfuncs.WithLogger(logger),
		hostfuncs.WithPluginName(c.pluginName),
		hostfuncs.WithResources(resource.NewTable(resource.WithLimit(cfg.Limits.MaxResources))),
		hostfuncs.WithHTTPClient(httpclient.New(httpOpts...)),
		hostfuncs.WithSettings(store),
		hostfuncs.WithScriptOptions(script.WithTimeout(cfg.Script.Timeout())),
	}
	if c.partial != nil {
		opts = append(opts, hostfuncs.WithPartialResultSink(c.partial))
	}
	return hostfuncs.NewSession(ctx, append(opts, c.sessionOpts...)...)
}
