// Package httpx wraps outbound HTTP calls with a hard per-request deadline.
// A request that exceeds its deadline fails with the errors.ErrTimeout
// sentinel instead of hanging, and the deadline timer is always released
// when the call settles.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pathcheck/enclient/internal/errors"
)

// DefaultTimeout bounds a single request/response exchange.
const DefaultTimeout = 5 * time.Second

// Response carries the settled result of a request. The body is fully read
// before the deadline timer is released, so callers never touch a stream
// tied to an expired context.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the response carried a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client issues JSON requests with a fixed timeout.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient creates a client with the given per-request timeout. A zero or
// negative timeout falls back to DefaultTimeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{},
		timeout:    timeout,
	}
}

// PostJSON marshals payload, posts it to url with the given headers, and
// returns the settled response. Transport failures are classified onto the
// sentinel taxonomy: deadline expiry yields errors.ErrTimeout, anything else
// errors.ErrNetworkConnection. Server-reported statuses are never errors
// here; callers interpret them.
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, payload interface{}) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.ClassifyNetworkError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.ClassifyNetworkError(err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}

// DecodeJSON unmarshals the response body into out. An empty body is left
// as the zero value rather than treated as an error.
func (r *Response) DecodeJSON(out interface{}) error {
	if len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}
