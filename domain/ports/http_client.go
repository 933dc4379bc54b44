package ports

import (
	"context"
	"strings"
)

// HTTPClient performs one outbound request for the network adapter.
type HTTPClient interface {
	Do(ctx context.Context, req HTTPRequest) (*HTTPResponse, error)
}

// HTTPRequest is a fully built request.
type HTTPRequest struct {
	Headers map[string]string
	Method  string
	URL     string
	Body    []byte
}

// HTTPResponse is a fully read response.
type HTTPResponse struct {
	Headers map[string][]string
	// URL is the final URL after redirects.
	URL        string
	Proto      string
	Body       []byte
	StatusCode int
}

// Header returns the first value of the named header, matching
// case-insensitively as net/http does.
func (r *HTTPResponse) Header(name string) (string, bool) {
	if r == nil {
		return "", false
	}
	for k, v := range r.Headers {
		if len(v) > 0 && strings.EqualFold(k, name) {
			return v[0], true
		}
	}
	return "", false
}
