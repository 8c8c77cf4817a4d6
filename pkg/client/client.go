// Package client is a typed HTTP wrapper over the school directory API.
// Identical concurrent queries share one request, and successful query
// responses are memoized for a freshness window.
package client

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

	"golang.org/x/sync/singleflight"

	"schooldir/pkg/cache"
)

const (
	DefaultBaseURL         = "http://localhost:8080"
	DefaultTimeout         = 30 * time.Second
	DefaultQueryRetries    = 2
	DefaultMutationRetries = 1
	DefaultFreshness       = 5 * time.Minute
	DefaultRetryBackoff    = time.Second
	maxRetryBackoff        = 30 * time.Second

	// cache entries may hold a full school list
	cacheItemLimit = 8 << 20
	cacheSizeMB    = 32

	keySchools = "schools:"
)

// ErrUnreachable is returned when no response was received at all.
var ErrUnreachable = errors.New("unable to connect to server, please check your connection")

// APIError is a failure envelope returned by the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

type Client struct {
	baseURL string
	http    *http.Client

	queryRetries    int
	mutationRetries int
	retryBackoff    time.Duration
	freshness       time.Duration
	cacheEnabled    bool
	coalesce        bool

	cache *cache.MemoryCache
	group singleflight.Group
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithRetries sets how many times failed queries and mutations are
// retried. Client errors (4xx) are never retried.
func WithRetries(query, mutation int) Option {
	return func(c *Client) {
		c.queryRetries = query
		c.mutationRetries = mutation
	}
}

// WithRetryBackoff sets the first retry delay; it doubles per attempt.
func WithRetryBackoff(d time.Duration) Option {
	return func(c *Client) { c.retryBackoff = d }
}

// WithFreshness sets how long a memoized query stays valid. Zero
// disables memoization.
func WithFreshness(d time.Duration) Option {
	return func(c *Client) {
		c.freshness = d
		c.cacheEnabled = d > 0
	}
}

// WithCoalescing controls whether identical in-flight requests share one
// round trip. On by default.
func WithCoalescing(on bool) Option {
	return func(c *Client) { c.coalesce = on }
}

func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		http:            &http.Client{Timeout: DefaultTimeout},
		queryRetries:    DefaultQueryRetries,
		mutationRetries: DefaultMutationRetries,
		retryBackoff:    DefaultRetryBackoff,
		freshness:       DefaultFreshness,
		cacheEnabled:    true,
		coalesce:        true,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cache = cache.New(cache.Options{
		Enabled:     c.cacheEnabled,
		MaxSizeMB:   cacheSizeMB,
		MaxItemSize: cacheItemLimit,
		TTL:         c.freshness,
	})
	return c
}

// Close releases the memo cache worker.
func (c *Client) Close() {
	c.cache.Close()
}

func (c *Client) BaseURL() string { return c.baseURL }

// Invalidate drops every memoized school query.
func (c *Client) Invalidate() {
	c.cache.DeletePrefix(keySchools)
}

type response struct {
	status int
	header http.Header
	body   []byte
}

type request struct {
	method      string
	path        string
	body        []byte
	contentType string
	retries     int
}

// do sends req, retrying transport failures and 5xx responses with
// exponential backoff.
func (c *Client) do(ctx context.Context, req request) (*response, error) {
	backoff := c.retryBackoff
	var lastErr error

	for attempt := 0; attempt <= req.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, errors.Join(lastErr, ctx.Err())
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxRetryBackoff)
		}

		resp, err := c.send(ctx, req)
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", ErrUnreachable, err)
			if ctx.Err() != nil {
				return nil, lastErr
			}
			continue
		}

		switch {
		case resp.status >= 500:
			lastErr = decodeAPIError(resp)
		case resp.status >= 400:
			return nil, decodeAPIError(resp)
		default:
			return resp, nil
		}
	}
	return nil, lastErr
}

func (c *Client) send(ctx context.Context, req request) (*response, error) {
	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return nil, err
	}
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &response{status: resp.StatusCode, header: resp.Header, body: data}, nil
}

// query performs a memoized, coalesced GET and returns the raw body.
func (c *Client) query(ctx context.Context, key, path string) ([]byte, error) {
	if data, ok := c.cache.Get(key); ok {
		return data, nil
	}

	v, err := c.shared(ctx, key, func(ctx context.Context) (interface{}, error) {
		resp, err := c.do(ctx, request{method: http.MethodGet, path: path, retries: c.queryRetries})
		if err != nil {
			return nil, err
		}
		c.cache.Set(key, resp.body)
		return resp.body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// shared runs fn once per key for all concurrent callers. The shared call
// is detached from any single caller's cancellation and is bounded by the
// HTTP client timeout; each caller still stops waiting when its own ctx
// ends.
func (c *Client) shared(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	if !c.coalesce {
		return fn(ctx)
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Message string `json:"message"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func decodeData[T any](body []byte, status int) (T, string, error) {
	var env envelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		var zero T
		return zero, "", fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		var zero T
		msg := env.Error
		if msg == "" {
			msg = "Request failed"
		}
		return zero, "", &APIError{Status: status, Code: env.Code, Message: msg}
	}
	return env.Data, env.Message, nil
}

func decodeAPIError(resp *response) *APIError {
	apiErr := &APIError{Status: resp.status}

	var env envelope[json.RawMessage]
	if err := json.Unmarshal(resp.body, &env); err == nil {
		apiErr.Code = env.Code
		apiErr.Message = env.Error
		if apiErr.Message == "" {
			apiErr.Message = env.Message
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.status)
		if apiErr.Message == "" {
			apiErr.Message = "Server error occurred"
		}
	}
	return apiErr
}

func escapePath(segment string) string {
	return url.PathEscape(segment)
}
