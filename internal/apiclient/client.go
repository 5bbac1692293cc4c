package apiclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the photo API root.
const DefaultBaseURL = "https://api.unsplash.com"

// Request describes one call against the photo API.
type Request struct {
	Method string
	// Path is resolved against the base URL. Dynamic segments must be escaped by the caller.
	Path  string
	Query url.Values
	// Token authorizes the request as "Authorization: Bearer <token>". Empty sends no credentials.
	Token string
}

// Response holds the status code and the fully read body.
type Response struct {
	StatusCode int
	Body       []byte
}

// Option configures a Client.
type Option func(*clientConfig)

// clientConfig holds configuration for New.
type clientConfig struct {
	baseURL   string
	transport http.RoundTripper
	timeout   time.Duration
	limiter   *rate.Limiter
}

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(baseURL string) Option {
	return func(c *clientConfig) {
		c.baseURL = baseURL
	}
}

// WithTransport sets the base transport. If not provided, http.DefaultTransport is used.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *clientConfig) {
		c.transport = transport
	}
}

// WithTimeout bounds each request including reading the body. Zero disables the timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithRateLimit throttles outbound requests to r per second with the given burst.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *clientConfig) {
		c.limiter = rate.NewLimiter(r, burst)
	}
}

// Client sends requests to the photo API.
type Client struct {
	base      *url.URL
	transport http.RoundTripper
	timeout   time.Duration
}

// New creates a Client.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		baseURL:   DefaultBaseURL,
		transport: http.DefaultTransport,
		timeout:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	base, err := url.Parse(cfg.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host required", cfg.baseURL)
	}

	transport := cfg.transport
	if cfg.limiter != nil {
		transport = &rateLimitTransport{limiter: cfg.limiter, base: transport}
	}

	return &Client{
		base:      base,
		transport: transport,
		timeout:   cfg.timeout,
	}, nil
}

// Do sends req and returns the status code and body. Non-2xx statuses are not
// treated as errors here; use CheckStatus.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	target := c.base.JoinPath(req.Path)
	if len(req.Query) > 0 {
		target.RawQuery = req.Query.Encode()
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	httpReq.Header.Set("Accept", "application/json")

	client := &http.Client{
		Timeout:   c.timeout,
		Transport: c.transport,
	}
	if req.Token != "" {
		// oauth2.Transport sets "Authorization: Bearer <token>" on a cloned request
		client.Transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: req.Token}),
			Base:   c.transport,
		}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, req.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s %s response: %w", ErrTransport, method, req.Path, err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}
