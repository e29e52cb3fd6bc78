// Package portal implements the read side of the university services: the
// courses portal, the classroom lecture service, and the academic records
// system. All calls go through the session's dual-path transport.
package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"lectern/internal/config"
	"lectern/internal/logging"
	"lectern/internal/services"
	"lectern/internal/session"
	"lectern/internal/transport"
)

// Client queries the portal services on behalf of an established session.
type Client struct {
	sess   *session.Manager
	portal config.Portal
	logger *slog.Logger

	sleep  func(context.Context, time.Duration) error
	now    func() time.Time
	random func() float64
}

// Option customizes the portal client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSleeper overrides retry waits, for tests.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithClock overrides the time source used for request signing, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRandom overrides the cache-busting random source, for tests.
func WithRandom(random func() float64) Option {
	return func(c *Client) {
		if random != nil {
			c.random = random
		}
	}
}

// NewClient builds a portal client over the session.
func NewClient(sess *session.Manager, portal config.Portal, opts ...Option) *Client {
	c := &Client{
		sess:   sess,
		portal: portal,
		logger: logging.NopLogger(),
		sleep:  sleepContext,
		now:    time.Now,
		random: rand.Float64,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) requireLogin(operation string) error {
	if !c.sess.IsLoggedIn() {
		return services.Wrap(services.ErrNotLoggedIn, operation, "", nil)
	}
	return nil
}

// fetchJSON issues the request and decodes the body into target. A body that
// is not JSON, typically a login page served to an expired session, yields
// ErrFormat.
func (c *Client) fetchJSON(ctx context.Context, req *transport.Request, operation string, target any) error {
	body, status, err := c.fetchBody(ctx, req)
	if err != nil {
		return services.Wrap(services.ErrTransient, operation, "request failed", err)
	}
	if status >= http.StatusBadRequest {
		return services.Wrap(services.ErrTransient, operation, fmt.Sprintf("status %d", status), nil)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return services.Wrap(services.ErrFormat, operation, "unexpected response body", err)
	}
	return nil
}

func (c *Client) fetchBody(ctx context.Context, req *transport.Request) ([]byte, int, error) {
	resp, err := c.sess.Client().Do(ctx, req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

// bearerRequest attaches the classroom bearer token to the request.
func (c *Client) bearerRequest(req *transport.Request) (*transport.Request, error) {
	token, err := c.sess.BearerToken()
	if err != nil {
		return nil, err
	}
	return req.WithHeader("Authorization", "Bearer "+token), nil
}

func (c *Client) classroomUser(ctx context.Context) (userInfo, error) {
	req, err := c.bearerRequest(transport.Get(c.portal.ClassroomBaseURL + "/userapi/v1/infosimple"))
	if err != nil {
		return userInfo{}, err
	}
	var payload struct {
		Params userInfo `json:"params"`
	}
	if err := c.fetchJSON(ctx, req, "classroom user", &payload); err != nil {
		return userInfo{}, err
	}
	return payload.Params, nil
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
