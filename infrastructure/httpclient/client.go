// Package httpclient is the network adapter: guest requests, the outbound
// HTTP client with SSRF protection and grant checks, and batched sends.
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/reglet-dev/sourcehost/domain/entities"
	domainerrors "github.com/reglet-dev/sourcehost/domain/errors"
	"github.com/reglet-dev/sourcehost/domain/ports"
	"github.com/reglet-dev/sourcehost/infrastructure/ratelimit"
)

// Client performs outbound requests for guests.
type Client struct {
	http    *http.Client
	limiter *ratelimit.Limiter
	policy  ports.Policy
	grants  *entities.GrantSet
	logger  *zap.Logger
	cfg     clientConfig
}

type clientConfig struct {
	transport    http.RoundTripper
	filterOpts   []FilterOption
	userAgent    string
	timeout      time.Duration
	maxBodySize  int64
	maxRedirects int
	concurrency  int
}

func defaultClientConfig() clientConfig {
	return clientConfig{
		userAgent:    "sourcehost/1.0",
		timeout:      30 * time.Second,
		maxBodySize:  32 * 1024 * 1024,
		maxRedirects: 10,
		concurrency:  8,
	}
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.cfg.timeout = d
		}
	}
}

// WithMaxRedirects sets the maximum number of redirects to follow.
func WithMaxRedirects(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.cfg.maxRedirects = n
		}
	}
}

// WithMaxBodySize caps the bytes kept from a response body.
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.cfg.maxBodySize = n
		}
	}
}

// WithUserAgent sets the User-Agent used when the guest sets none.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.cfg.userAgent = ua
		}
	}
}

// WithConcurrency bounds the requests of one batch that are in flight.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.cfg.concurrency = n
		}
	}
}

// WithFilter configures the SSRF address filter.
func WithFilter(opts ...FilterOption) Option {
	return func(c *Client) { c.cfg.filterOpts = append(c.cfg.filterOpts, opts...) }
}

// WithTransport replaces the transport, bypassing the address filter.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.cfg.transport = rt }
}

// WithLimiter gates every send through l.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithPolicy enforces network grants. A nil grant set disables the check.
func WithPolicy(p ports.Policy, grants *entities.GrantSet) Option {
	return func(c *Client) { c.policy, c.grants = p, grants }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client.
func New(opts ...Option) *Client {
	c := &Client{cfg: defaultClientConfig(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	if c.limiter == nil {
		c.limiter = &ratelimit.Limiter{}
	}

	rt := c.cfg.transport
	if rt == nil {
		rt = newTransport(NewFilter(c.cfg.filterOpts...))
	}
	maxRedirects := c.cfg.maxRedirects
	c.http = &http.Client{
		Timeout:   c.cfg.timeout,
		Transport: rt,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return c.checkGrant(req.URL)
		},
	}
	return c
}

// Limiter returns the rate limiter gating this client.
func (c *Client) Limiter() *ratelimit.Limiter { return c.limiter }

func (c *Client) checkGrant(u *url.URL) error {
	if c.policy == nil || c.grants == nil {
		return nil
	}
	port, _ := strconv.Atoi(u.Port())
	if port == 0 {
		port = 80
		if u.Scheme == "https" {
			port = 443
		}
	}
	req := entities.NetworkRequest{Host: u.Hostname(), Port: port}
	if !c.policy.CheckNetwork(req, c.grants) {
		return &domainerrors.CapabilityError{Required: "network", Pattern: net.JoinHostPort(req.Host, strconv.Itoa(port))}
	}
	return nil
}

// Do performs one request and reads its body. Non-2xx statuses are not errors.
func (c *Client) Do(ctx context.Context, req ports.HTTPRequest) (*ports.HTTPResponse, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, &domainerrors.HTTPError{Method: req.Method, URL: req.URL, Err: err}
	}
	if err := c.checkGrant(u); err != nil {
		return nil, err
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, &domainerrors.HTTPError{Method: req.Method, URL: req.URL, Err: err}
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.cfg.userAgent)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, c.classify(ctx, req, err)
	}
	defer func() { _ = resp.Body.Close() }()

	buf := &boundedBuffer{limit: c.cfg.maxBodySize}
	if _, err := io.Copy(buf, resp.Body); err != nil {
		return nil, c.classify(ctx, req, err)
	}
	if buf.truncated {
		c.logger.Warn("response body truncated",
			zap.String("url", req.URL), zap.Int64("limit", c.cfg.maxBodySize))
	}
	c.logger.Debug("http request completed",
		zap.String("method", req.Method),
		zap.String("url", req.URL),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	return &ports.HTTPResponse{
		Headers:    resp.Header,
		URL:        resp.Request.URL.String(),
		Proto:      resp.Proto,
		Body:       buf.Bytes(),
		StatusCode: resp.StatusCode,
	}, nil
}

func (c *Client) classify(ctx context.Context, req ports.HTTPRequest, err error) error {
	var capErr *domainerrors.CapabilityError
	if errors.As(err, &capErr) {
		return capErr
	}
	var netErr net.Error
	var opErr *net.OpError
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()):
		err = &domainerrors.TimeoutError{Operation: "http", Target: req.URL, Duration: c.cfg.timeout}
	case errors.As(err, &opErr):
		err = &domainerrors.NetworkError{Operation: opErr.Op, Target: req.URL, Err: opErr}
	}
	return &domainerrors.HTTPError{Method: req.Method, URL: req.URL, Err: err}
}

// Send performs r after taking a permit from the limiter. Sending a request
// that was already sent is a no-op.
func (c *Client) Send(ctx context.Context, r *Request) error {
	req, pending, err := r.build()
	if err != nil || !pending {
		return err
	}
	if err := c.limiter.Acquire(ctx); err != nil {
		return err
	}
	resp, err := c.Do(ctx, req)
	r.complete(resp, err)
	return err
}

// SendAll sends every request with up to the configured concurrency. Permits
// are taken in slice order. The returned errors are in input order; a nil
// entry is a success. A request listed twice is sent once.
func (c *Client) SendAll(ctx context.Context, reqs []*Request) []error {
	errs := make([]error, len(reqs))
	first := make(map[*Request]int, len(reqs))
	var dups []int

	g := new(errgroup.Group)
	g.SetLimit(c.cfg.concurrency)
	for i, r := range reqs {
		if j, seen := first[r]; seen && j != i {
			dups = append(dups, i)
			continue
		}
		first[r] = i

		req, pending, err := r.build()
		if err != nil || !pending {
			errs[i] = err
			continue
		}
		if err := c.limiter.Acquire(ctx); err != nil {
			errs[i] = err
			continue
		}
		g.Go(func() error {
			resp, err := c.Do(ctx, req)
			r.complete(resp, err)
			errs[i] = err
			return nil
		})
	}
	_ = g.Wait()

	for _, i := range dups {
		errs[i] = errs[first[reqs[i]]]
	}
	return errs
}
