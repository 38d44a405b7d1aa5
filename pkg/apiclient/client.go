// Package apiclient is the HTTP client for the referral server API. Every
// call runs with a per-attempt timeout and is retried with linear backoff.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultTimeout    = 30 * time.Second
	DefaultAttempts   = 3
	DefaultRetryDelay = time.Second
)

// TokenSource supplies the bearer token for each request. An empty token
// sends no Authorization header.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a fixed bearer token.
type StaticToken string

func (t StaticToken) Token() (string, error) { return string(t), nil }

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds each attempt, not the whole call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithRetry sets the attempt count and the base delay; attempt n waits
// delay*n before the next one.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Client) {
		if attempts < 1 {
			attempts = 1
		}
		c.attempts = attempts
		c.retryDelay = delay
	}
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	timeout    time.Duration
	attempts   int
	retryDelay time.Duration
	logger     zerolog.Logger
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		attempts:   DefaultAttempts,
		retryDelay: DefaultRetryDelay,
		logger:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetTokenSource replaces the token source, e.g. after login.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.tokens = ts
}

// buildURL substitutes {name} placeholders in path with escaped values.
func (c *Client) buildURL(path string, pathParams map[string]string) string {
	for k, v := range pathParams {
		path = strings.ReplaceAll(path, "{"+k+"}", url.PathEscape(v))
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// Do sends the request and decodes a 2xx JSON body into out when out is
// non-nil. Failures are retried up to the configured attempts, except client
// errors and cancellation of ctx; the last error is returned.
func (c *Client) Do(ctx context.Context, method, path string, pathParams map[string]string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = b
	}
	target := c.buildURL(path, pathParams)

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		lastErr = c.once(ctx, method, target, payload, out)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil || !retryable(lastErr) {
			return lastErr
		}

		c.logger.Warn().Err(lastErr).
			Str("method", method).
			Str("url", target).
			Int("attempt", attempt).
			Msg("api request failed")

		if attempt == c.attempts {
			break
		}
		t := time.NewTimer(c.retryDelay * time.Duration(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return lastErr
		case <-t.C:
		}
	}
	return lastErr
}

func (c *Client) once(ctx context.Context, method, target string, payload []byte, out interface{}) error {
	actx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(actx, method, target, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		tok, err := c.tokens.Token()
		if err != nil {
			return fmt.Errorf("token: %w", err)
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return &NetworkTimeoutError{Method: method, URL: target, Timeout: c.timeout, Err: err}
		}
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return &NetworkTimeoutError{Method: method, URL: target, Timeout: c.timeout, Err: err}
		}
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		he := &HTTPError{Status: resp.StatusCode, Body: data}
		var env struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &env) == nil {
			he.Message = env.Message
		}
		return he
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
