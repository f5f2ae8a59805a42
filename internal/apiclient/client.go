// Package apiclient dispatches requests to the blog backend. Credentials come
// from an injected TokenSource and are attached to every outgoing request at
// dispatch time; responses are handed back to the caller uninterpreted.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/me/blogfront/internal/logging"
)

// RequestIDHeader carries a per-request id for log correlation.
const RequestIDHeader = "X-Request-ID"

// TokenSource supplies the bearer token for the next request.
// An empty token means the request goes out unauthenticated.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

// StaticToken is a fixed TokenSource.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

// Client is an HTTP client for the blog API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

type options struct {
	httpClient *http.Client
	timeout    time.Duration
	wrap       []func(http.RoundTripper) http.RoundTripper
}

// Option configures a Client.
type Option func(*options)

// WithHTTPClient uses hc as the base client. Its Transport is wrapped, not
// replaced.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithTimeout sets an overall per-request timeout. Zero keeps the transport
// defaults.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithTransport wraps the underlying transport, e.g. for tracing.
func WithTransport(wrap func(http.RoundTripper) http.RoundTripper) Option {
	return func(o *options) {
		if wrap != nil {
			o.wrap = append(o.wrap, wrap)
		}
	}
}

// NewClient creates a blog API client. tokens is consulted on every request;
// it may be nil for a client that never authenticates.
func NewClient(baseURL string, tokens TokenSource, logger *slog.Logger, opts ...Option) *Client {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	hc := &http.Client{}
	if o.httpClient != nil {
		copied := *o.httpClient
		hc = &copied
	}
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	for _, wrap := range o.wrap {
		base = wrap(base)
	}
	if tokens == nil {
		tokens = StaticToken("")
	}
	hc.Transport = &bearerTransport{base: base, tokens: tokens}
	if o.timeout > 0 {
		hc.Timeout = o.timeout
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: hc,
		logger:     logging.OrDiscard(logger).With("component", "apiclient"),
	}
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Response is a successful (2xx) backend response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("parse response (status %d): %w", r.StatusCode, err)
	}
	return nil
}

// Do sends a request to path (relative to the base URL, query included).
// Non-2xx statuses are returned as *HTTPError with the body untouched.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader, contentType string) (*Response, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	reqID := "req_" + uuid.New().String()[:8]
	req.Header.Set(RequestIDHeader, reqID)

	logger := c.logger.With("method", method, "path", path, "request_id", reqID)
	logger.Debug("HTTP request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Debug("HTTP request failed", "error", err)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	logger.Debug("HTTP response", "status", resp.StatusCode, "bytes", len(respBody), "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newHTTPError(method, path, resp.StatusCode, respBody)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: respBody}, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil, "")
}

// PostJSON performs a POST request with a JSON body.
func (c *Client) PostJSON(ctx context.Context, path string, body any) (*Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return c.Do(ctx, http.MethodPost, path, bytes.NewReader(data), "application/json")
}

// SendForm performs a request with a multipart/form-data body.
func (c *Client) SendForm(ctx context.Context, method, path string, form *Form) (*Response, error) {
	body, contentType, err := form.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode form: %w", err)
	}
	return c.Do(ctx, method, path, body, contentType)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, "")
}

// bearerTransport attaches "Authorization: Bearer <token>" when the token
// source holds a token at dispatch time. It never blocks a request.
type bearerTransport struct {
	base   http.RoundTripper
	tokens TokenSource
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token := t.tokens.Token()
	if token == "" {
		return t.base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(r)
}
