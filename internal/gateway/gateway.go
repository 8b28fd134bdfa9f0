package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Client talks to the enrichment/verification service. One instance is shared
// by every call site so the minimum inter-call spacing holds globally; the
// upstream ceiling is 60 requests/minute regardless of endpoint.
//
// The token is owned by the client alone. Callers never see it.
type Client struct {
	hc       *http.Client
	limiter  *rate.Limiter
	baseURL  string
	clientID string
	secret   string

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

type Option func(*Client)

// WithHTTPClient overrides the underlying transport (used by tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithMinInterval overrides the spacing derived from requestsPerMin.
func WithMinInterval(d time.Duration) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Every(d), 1) }
}

// New builds a gateway client. requestsPerMin is the documented upstream
// ceiling; spacing is derived as 60s/requestsPerMin with a 10% safety margin,
// so 60 req/min becomes one call per ~1.1s.
func New(baseURL, clientID, clientSecret string, requestsPerMin int, opts ...Option) *Client {
	if requestsPerMin <= 0 {
		requestsPerMin = 60
	}
	interval := time.Duration(float64(time.Minute) / float64(requestsPerMin) * 1.1)

	c := &Client{
		hc:       &http.Client{Timeout: 30 * time.Second},
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		baseURL:  strings.TrimRight(baseURL, "/"),
		clientID: clientID,
		secret:   clientSecret,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// token returns a bearer token, exchanging credentials if the cached one is
// absent or within a minute of expiry.
func (c *Client) bearer(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.expiresAt.Add(-time.Minute)) {
		return c.token, nil
	}
	return c.exchangeLocked(ctx)
}

// invalidateAndReacquire drops the cached token and performs one fresh
// exchange. Used after a 401; never loops.
func (c *Client) invalidateAndReacquire(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	return c.exchangeLocked(ctx)
}

func (c *Client) exchangeLocked(ctx context.Context) (string, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.clientID},
		"client_secret": {c.secret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/oauth/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d", ErrAuthFailed, resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: decode token response: %v", ErrAuthFailed, err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access_token", ErrAuthFailed)
	}
	if payload.ExpiresIn <= 0 {
		payload.ExpiresIn = 3600
	}

	c.token = payload.AccessToken
	c.expiresAt = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	return c.token, nil
}

// Get issues a rate-limited GET with query params.
func (c *Client) Get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	return c.call(ctx, http.MethodGet, path, params, nil)
}

// Post issues a rate-limited POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.call(ctx, http.MethodPost, path, nil, body)
}

// call enforces spacing, attaches the bearer token, and classifies failures.
// A 401 triggers exactly one re-exchange and retry of the same request; the
// retry does not wait a second spacing slot beyond the limiter's normal gate.
func (c *Client) call(ctx context.Context, method, path string, params url.Values, body any) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	tok, err := c.bearer(ctx)
	if err != nil {
		return nil, err
	}

	raw, status, err := c.do(ctx, method, path, params, body, tok)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		tok, err = c.invalidateAndReacquire(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		raw, status, err = c.do(ctx, method, path, params, body, tok)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: token rejected after refresh", ErrAuthFailed)
		}
	}

	return raw, nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body any, tok string) (json.RawMessage, int, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, 0, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, 0, &NetworkError{Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, resp.StatusCode, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, resp.StatusCode, &RateLimitError{RetryAfter: resp.Header.Get("Retry-After")}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, resp.StatusCode, &UpstreamError{Status: resp.StatusCode, Body: truncate(string(raw), 300)}
	}

	return raw, resp.StatusCode, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
