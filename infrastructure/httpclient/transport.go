package httpclient

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

// pinningDialer checks every destination with the filter and connects to the
// address the filter resolved, never to a fresh lookup of the name. TLS
// verification still uses the request host.
type pinningDialer struct {
	filter *Filter
	dialer *net.Dialer
}

// BlockedError reports a refusal from the address filter.
type BlockedError struct {
	Host   string
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("SSRF protection: %s: %s", e.Host, e.Reason)
}

func (d *pinningDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	verdict := d.filter.Check(ctx, host)
	if !verdict.Allowed {
		return nil, &BlockedError{Host: host, Reason: verdict.Reason}
	}
	return d.dialer.DialContext(ctx, network, net.JoinHostPort(verdict.ResolvedIP, port))
}

func newTransport(filter *Filter) *http.Transport {
	dialer := &pinningDialer{
		filter: filter,
		dialer: &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second},
	}
	return &http.Transport{
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
