package ports

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockHTTPClient is a mock implementation of HTTPClient for testing.
type MockHTTPClient struct {
	DoFunc func(ctx context.Context, req HTTPRequest) (*HTTPResponse, error)
}

func (m *MockHTTPClient) Do(ctx context.Context, req HTTPRequest) (*HTTPResponse, error) {
	if m.DoFunc != nil {
		return m.DoFunc(ctx, req)
	}
	return &HTTPResponse{StatusCode: 200, URL: req.URL}, nil
}

var _ HTTPClient = (*MockHTTPClient)(nil)

func TestMockHTTPClient_Do(t *testing.T) {
	ctx := context.Background()

	resp, err := (&MockHTTPClient{}).Do(ctx, HTTPRequest{Method: "GET", URL: "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "https://example.com", resp.URL)

	failing := &MockHTTPClient{
		DoFunc: func(ctx context.Context, req HTTPRequest) (*HTTPResponse, error) {
			return nil, errors.New("connection refused")
		},
	}
	_, err = failing.Do(ctx, HTTPRequest{})
	assert.EqualError(t, err, "connection refused")
}

func TestHTTPResponse_Header(t *testing.T) {
	resp := &HTTPResponse{Headers: map[string][]string{
		"Content-Type": {"text/html", "ignored"},
		"X-Empty":      {},
	}}

	v, ok := resp.Header("content-type")
	assert.True(t, ok)
	assert.Equal(t, "text/html", v)

	_, ok = resp.Header("X-Empty")
	assert.False(t, ok)

	_, ok = (*HTTPResponse)(nil).Header("Content-Type")
	assert.False(t, ok)
}
