package httpclient

import (
	"errors"
	"net/url"
	"sync"

	"github.com/reglet-dev/sourcehost/domain/ports"
)

// Request state errors.
var (
	ErrClosed          = errors.New("httpclient: request already sent")
	ErrInvalidMethod   = errors.New("httpclient: invalid method")
	ErrInvalidURL      = errors.New("httpclient: invalid url")
	ErrMissingURL      = errors.New("httpclient: url not set")
	ErrMissingResponse = errors.New("httpclient: no response")
)

// Method is the guest facing method code.
type Method int32

const (
	MethodGet Method = iota
	MethodPost
	MethodHead
	MethodPut
	MethodDelete
	MethodPatch
)

var methodNames = [...]string{"GET", "POST", "HEAD", "PUT", "DELETE", "PATCH"}

// ParseMethod validates a method code.
func ParseMethod(code int32) (Method, error) {
	if code < 0 || int(code) >= len(methodNames) {
		return 0, ErrInvalidMethod
	}
	return Method(code), nil
}

func (m Method) String() string {
	if m < 0 || int(m) >= len(methodNames) {
		return "UNKNOWN"
	}
	return methodNames[m]
}

// Request is a guest built request. It can be mutated until it is sent;
// after that only the response accessors are meaningful.
type Request struct {
	headers map[string]string
	resp    *ports.HTTPResponse
	err     error
	url     string
	body    []byte
	method  Method
	sent    bool
	mu      sync.Mutex
}

// NewRequest creates an unsent request.
func NewRequest(m Method) *Request {
	return &Request{method: m, headers: make(map[string]string)}
}

// Method returns the request method.
func (r *Request) Method() Method { return r.method }

// SetURL sets the target. Only absolute http and https URLs are accepted.
func (r *Request) SetURL(raw string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent {
		return ErrClosed
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidURL
	}
	r.url = u.String()
	return nil
}

// SetHeader sets one header, replacing an earlier value.
func (r *Request) SetHeader(key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent {
		return ErrClosed
	}
	r.headers[key] = value
	return nil
}

// SetBody sets the request body.
func (r *Request) SetBody(body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent {
		return ErrClosed
	}
	r.body = body
	return nil
}

// Sent reports whether the request has been sent.
func (r *Request) Sent() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent
}

// Err returns the error of the send, if any.
func (r *Request) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Response returns the response of a successful send.
func (r *Request) Response() (*ports.HTTPResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.sent || r.resp == nil {
		return nil, ErrMissingResponse
	}
	return r.resp, nil
}

// URL returns the final URL once sent, the configured one before.
func (r *Request) URL() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resp != nil && r.resp.URL != "" {
		return r.resp.URL
	}
	return r.url
}

// build snapshots the request for the client. It reports false when the
// request needs no sending.
func (r *Request) build() (ports.HTTPRequest, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent {
		return ports.HTTPRequest{}, false, nil
	}
	if r.url == "" {
		return ports.HTTPRequest{}, false, ErrMissingURL
	}
	headers := make(map[string]string, len(r.headers))
	for k, v := range r.headers {
		headers[k] = v
	}
	return ports.HTTPRequest{
		Method:  r.method.String(),
		URL:     r.url,
		Headers: headers,
		Body:    r.body,
	}, true, nil
}

func (r *Request) complete(resp *ports.HTTPResponse, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent, r.resp, r.err = true, resp, err
}

// Discard drops the response of a sent request. Accessors report
// ErrMissingResponse afterwards; the request stays closed.
func (r *Request) Discard() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent {
		r.resp = nil
	}
}
