// Package transport implements the dual-path HTTP client used against the
// campus network: one client that honors the system proxy and one that
// bypasses it, sharing a single cookie jar so session state is consistent no
// matter which path a response arrived on.
package transport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"lectern/internal/logging"
)

const (
	// A failed request is retried this many times on top of the initial
	// attempt, alternating between the proxied and direct paths.
	extraAttempts = 5
	// Delay before the first retry; it doubles between attempts
	// (100, 200, 400, 800, 1600 ms).
	initialRetryDelay = 100 * time.Millisecond

	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:88.0) Gecko/20100101 Firefox/88.0"
)

// Client issues requests over two alternative network paths.
type Client struct {
	mu         sync.Mutex
	jar        http.CookieJar
	proxied    *http.Client
	direct     *http.Client
	proxyFirst bool

	userAgent string
	sleeper   func(context.Context, time.Duration) error
	logger    *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithUserAgent overrides the default user agent.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if strings.TrimSpace(ua) != "" {
			c.userAgent = ua
		}
	}
}

// WithHTTPClients injects the underlying clients. Used by tests to supply
// fake round trippers; both clients are re-pointed at the shared jar.
func WithHTTPClients(proxied, direct *http.Client) Option {
	return func(c *Client) {
		if proxied != nil {
			c.proxied = proxied
		}
		if direct != nil {
			c.direct = direct
		}
	}
}

// WithSleeper overrides how retry delays are waited out (useful for tests).
func WithSleeper(sleeper func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if sleeper != nil {
			c.sleeper = sleeper
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New builds a dual-path client around the given cookie jar.
func New(jar http.CookieJar, opts ...Option) *Client {
	c := &Client{
		jar:        jar,
		proxyFirst: true,
		userAgent:  defaultUserAgent,
		sleeper:    sleepContext,
		logger:     logging.NopLogger(),
	}
	c.proxied = &http.Client{
		Transport: &http.Transport{Proxy: http.ProxyFromEnvironment},
	}
	c.direct = &http.Client{
		Transport: &http.Transport{Proxy: nil},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.proxied.Jar = jar
	c.direct.Jar = jar
	return c
}

// SetJar swaps the shared cookie jar on both paths. Called by the session
// manager on logout so no stale cookies survive.
func (c *Client) SetJar(jar http.CookieJar) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jar = jar
	c.proxied.Jar = jar
	c.direct.Jar = jar
}

// Jar returns the shared cookie jar.
func (c *Client) Jar() http.CookieJar {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jar
}

// PreferProxy commits the preferred path for the rest of the session.
func (c *Client) PreferProxy(proxyFirst bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.proxyFirst = proxyFirst
}

// ProxyFirst reports the committed path preference.
func (c *Client) ProxyFirst() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.proxyFirst
}

// Request describes one logical call. Each attempt rebuilds the HTTP request
// from this description, so a failed attempt never poisons the next one.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Form   url.Values
}

// Get is shorthand for a GET request.
func Get(url string) *Request {
	return &Request{Method: http.MethodGet, URL: url}
}

// PostForm is shorthand for a form-encoded POST request.
func PostForm(url string, form url.Values) *Request {
	return &Request{Method: http.MethodPost, URL: url, Form: form}
}

// WithHeader returns the request with the header set, for chaining.
func (r *Request) WithHeader(key, value string) *Request {
	if r.Header == nil {
		r.Header = http.Header{}
	}
	r.Header.Set(key, value)
	return r
}

// Do sends the request over the preferred path and fails over to the other
// path with exponential backoff on transport errors. HTTP error statuses are
// not retried; they are returned for the caller to interpret. Errors that are
// not transport failures, such as a request that cannot be built or a
// canceled context, are returned immediately. After the initial attempt up to
// five retries are made with delays of 100, 200, 400, 800, and 1600 ms,
// alternating paths starting from the non-preferred one.
func (c *Client) Do(ctx context.Context, req *Request) (*http.Response, error) {
	first, second := c.pathClients()

	resp, err := c.attempt(ctx, first, req)
	if err == nil {
		return resp, nil
	}
	if !IsTransportError(err) {
		return nil, err
	}

	delay := initialRetryDelay
	for retry := 0; retry < extraAttempts; retry++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if sleepErr := c.sleeper(ctx, delay); sleepErr != nil {
			return nil, sleepErr
		}
		delay *= 2

		client := second
		if retry%2 == 1 {
			client = first
		}
		resp, err = c.attempt(ctx, client, req)
		if err == nil {
			return resp, nil
		}
		if !IsTransportError(err) {
			return nil, err
		}
	}
	return nil, err
}

func (c *Client) pathClients() (first, second *http.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.proxyFirst {
		return c.proxied, c.direct
	}
	return c.direct, c.proxied
}

func (c *Client) attempt(ctx context.Context, client *http.Client, req *Request) (*http.Response, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("http request", "method", httpReq.Method, "url", httpReq.URL.String())
	return client.Do(httpReq)
}

func (c *Client) buildRequest(ctx context.Context, req *Request) (*http.Request, error) {
	var body *strings.Reader
	if req.Form != nil {
		body = strings.NewReader(req.Form.Encode())
	} else {
		body = strings.NewReader("")
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	if req.Form != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	// Custom headers merge over the defaults.
	for key, values := range req.Header {
		httpReq.Header.Del(key)
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	return httpReq, nil
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsTransportError reports whether an error came from the network layer
// rather than from request construction or context cancellation. Only
// network errors are worth retrying on the other path.
func IsTransportError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return false
	}
	// URL parse failures also surface as *url.Error, with Op "parse".
	return urlErr.Op != "parse"
}
