package httpclient

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/sourcehost/domain/entities"
	domainerrors "github.com/reglet-dev/sourcehost/domain/errors"
	"github.com/reglet-dev/sourcehost/domain/policy"
	"github.com/reglet-dev/sourcehost/domain/ports"
	"github.com/reglet-dev/sourcehost/infrastructure/ratelimit"
)

func newLocalClient(opts ...Option) *Client {
	return New(append([]Option{WithFilter(WithAllowPrivate(true))}, opts...)...)
}

func newRequest(t *testing.T, m Method, url string) *Request {
	t.Helper()
	r := NewRequest(m)
	require.NoError(t, r.SetURL(url))
	return r
}

func TestParseMethod(t *testing.T) {
	for code, want := range []string{"GET", "POST", "HEAD", "PUT", "DELETE", "PATCH"} {
		m, err := ParseMethod(int32(code))
		require.NoError(t, err)
		assert.Equal(t, want, m.String())
	}
	_, err := ParseMethod(6)
	assert.ErrorIs(t, err, ErrInvalidMethod)
	_, err = ParseMethod(-1)
	assert.ErrorIs(t, err, ErrInvalidMethod)
}

func TestRequest_StateMachine(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()
	client := newLocalClient()

	r := NewRequest(MethodGet)
	assert.ErrorIs(t, r.SetURL("not a url"), ErrInvalidURL)
	assert.ErrorIs(t, r.SetURL("ftp://example.com/x"), ErrInvalidURL)
	assert.ErrorIs(t, client.Send(context.Background(), r), ErrMissingURL)
	assert.False(t, r.Sent())

	_, err := r.Response()
	assert.ErrorIs(t, err, ErrMissingResponse)

	require.NoError(t, r.SetURL(srv.URL))
	require.NoError(t, client.Send(context.Background(), r))
	require.NoError(t, client.Send(context.Background(), r), "second send is a no-op")
	assert.Equal(t, int32(1), hits.Load())

	assert.ErrorIs(t, r.SetURL(srv.URL), ErrClosed)
	assert.ErrorIs(t, r.SetHeader("a", "b"), ErrClosed)
	assert.ErrorIs(t, r.SetBody([]byte("x")), ErrClosed)

	resp, err := r.Response()
	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.Body))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestClient_Do(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/new", http.StatusFound)
			return
		}
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Echo", r.Header.Get("X-Test"))
		w.Header().Set("X-UA", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	client := newLocalClient(WithUserAgent("test-agent"))
	resp, err := client.Do(context.Background(), ports.HTTPRequest{
		Method:  "POST",
		URL:     srv.URL + "/old",
		Headers: map[string]string{"X-Test": "v"},
		Body:    []byte("payload"),
	})
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/new", resp.URL)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	ua, ok := resp.Header("x-ua")
	assert.True(t, ok)
	assert.Equal(t, "test-agent", ua)
}

func TestClient_BodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "0123456789")
	}))
	defer srv.Close()

	client := newLocalClient(WithMaxBodySize(4))
	resp, err := client.Do(context.Background(), ports.HTTPRequest{Method: "GET", URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "0123", string(resp.Body))
}

func TestClient_BlocksLoopbackByDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	err := New().Send(context.Background(), newRequest(t, MethodGet, srv.URL))
	require.Error(t, err)

	var blocked *BlockedError
	assert.True(t, errors.As(err, &blocked))
	var httpErr *domainerrors.HTTPError
	assert.True(t, errors.As(err, &httpErr))
}

func TestClient_GrantPolicy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	grants := &entities.GrantSet{Network: &entities.NetworkCapability{
		Rules: []entities.NetworkRule{{Hosts: []string{"*.example.com"}, Ports: []string{"443"}}},
	}}
	client := newLocalClient(WithPolicy(policy.NewPolicy(), grants))

	r := newRequest(t, MethodGet, srv.URL)
	err := client.Send(context.Background(), r)

	var capErr *domainerrors.CapabilityError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, "network", capErr.Required)
	assert.True(t, r.Sent())
	assert.ErrorIs(t, r.Err(), err)
}

func TestClient_SendAllOrderAndPartialFailure(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		_, _ = io.WriteString(w, "slow")
	}))
	defer slow.Close()
	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "fast")
	}))
	defer fast.Close()

	dead, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadURL := "http://" + dead.Addr().String()
	require.NoError(t, dead.Close())

	reqs := []*Request{
		newRequest(t, MethodGet, slow.URL),
		newRequest(t, MethodGet, deadURL),
		newRequest(t, MethodGet, fast.URL),
	}
	errs := newLocalClient().SendAll(context.Background(), reqs)
	require.Len(t, errs, 3)

	assert.NoError(t, errs[0])
	assert.Error(t, errs[1])
	assert.NoError(t, errs[2])

	resp, err := reqs[0].Response()
	require.NoError(t, err)
	assert.Equal(t, "slow", string(resp.Body))
	resp, err = reqs[2].Response()
	require.NoError(t, err)
	assert.Equal(t, "fast", string(resp.Body))
	_, err = reqs[1].Response()
	assert.ErrorIs(t, err, ErrMissingResponse)
}

func TestClient_SendAllDuplicatesAndUnsendable(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	r := newRequest(t, MethodGet, srv.URL)
	noURL := NewRequest(MethodGet)
	errs := newLocalClient().SendAll(context.Background(), []*Request{r, noURL, r})

	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], ErrMissingURL)
	assert.NoError(t, errs[2])
	assert.Equal(t, int32(1), hits.Load())
}

func TestClient_SendAllIsRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	const window = 150 * time.Millisecond
	client := newLocalClient(WithLimiter(ratelimit.New(2, window)))
	reqs := []*Request{
		newRequest(t, MethodGet, srv.URL),
		newRequest(t, MethodGet, srv.URL),
		newRequest(t, MethodGet, srv.URL),
	}

	start := time.Now()
	for _, err := range client.SendAll(context.Background(), reqs) {
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), window)
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := newLocalClient(WithTimeout(20 * time.Millisecond))
	err := client.Send(context.Background(), newRequest(t, MethodGet, srv.URL))

	var timeout *domainerrors.TimeoutError
	assert.True(t, errors.As(err, &timeout))
}

func TestClient_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := newLocalClient().Send(context.Background(), newRequest(t, MethodGet, url))

	var netErr *domainerrors.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, "dial", netErr.Operation)
	assert.Equal(t, "network", domainerrors.ToErrorDetail(netErr).Type)
}
