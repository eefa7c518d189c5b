package api

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

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-vehicle-market/internal/errors"
	"github.com/jrsteele09/go-vehicle-market/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

const (
	// RequestIDHeader carries a per-call id so client and server logs can be joined.
	RequestIDHeader = "X-Request-ID"

	maxResponseBody = 10 << 20
	maxErrorBody    = 1 << 20
	defaultTimeout  = 30 * time.Second
)

// Client performs JSON calls against the marketplace REST API. It is safe for
// concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	logger     zerolog.Logger
	metrics    *metrics.Collectors
	breakerCfg *BreakerConfig
}

type Option func(*Client)

// WithHTTPClient replaces the default client (30s timeout, default transport).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Collectors) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithRateLimit throttles outgoing calls to rps requests per second. A
// non-positive rps leaves calls unthrottled.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithBreaker guards every call with a circuit breaker. While the breaker is
// open calls fail fast with ErrNetworkUnavailable.
func WithBreaker(cfg BreakerConfig) Option {
	return func(c *Client) {
		c.breakerCfg = &cfg
	}
}

// New creates a client rooted at baseURL, e.g. "https://market.example.com/api".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breakerCfg != nil {
		c.breaker = c.newBreaker(*c.breakerCfg)
	}
	return c, nil
}

// HTTPClient returns the client used for calls that do not supply their own.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Request describes one REST call. Path is relative to the base URL and keeps
// the API's trailing slash, e.g. "/token/refresh/".
type Request struct {
	Method string
	Path   string
	Query  url.Values

	// Body is JSON encoded when set. Raw is sent verbatim with ContentType and
	// takes precedence over Body.
	Body        any
	Raw         io.Reader
	ContentType string

	// Bearer sets an explicit Authorization header. HTTPClient overrides the
	// default client, typically with one that injects and renews the token.
	Bearer     string
	HTTPClient *http.Client
}

// Do performs the call and decodes a 2xx JSON response into out, which may be nil.
func (c *Client) Do(ctx context.Context, r Request, out any) error {
	body, err := c.Send(ctx, r)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", r.Method, r.Path, err)
	}
	return nil
}

// Send performs the call and returns the raw body of a 2xx response. Non-2xx
// responses are returned as *StatusError, transport failures wrap
// ErrNetworkUnavailable.
func (c *Client) Send(ctx context.Context, r Request) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s %s: rate limit: %w", r.Method, r.Path, err)
		}
	}

	req, err := c.newRequest(ctx, r)
	if err != nil {
		return nil, err
	}
	hc := r.HTTPClient
	if hc == nil {
		hc = c.httpClient
	}

	start := time.Now()
	resp, err := c.execute(hc, req)
	if err != nil {
		var statusErr *StatusError
		status := 0
		if errors.As(err, &statusErr) {
			status = statusErr.Status
		}
		c.metrics.ObserveRequest(r.Method, status, time.Since(start))
		c.logger.Debug().Err(err).
			Str("method", r.Method).
			Str("path", r.Path).
			Str("request_id", req.Header.Get(RequestIDHeader)).
			Msg("API call failed")
		return nil, err
	}
	defer resp.Body.Close()
	c.metrics.ObserveRequest(r.Method, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, readStatusError(req, resp)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: read response: %w", ErrNetworkUnavailable, r.Method, r.Path, err)
	}
	c.logger.Debug().
		Str("method", r.Method).
		Str("path", r.Path).
		Int("status", resp.StatusCode).
		Str("request_id", req.Header.Get(RequestIDHeader)).
		Msg("API call")
	return payload, nil
}

func (c *Client) newRequest(ctx context.Context, r Request) (*http.Request, error) {
	target := c.baseURL + r.Path
	if len(r.Query) > 0 {
		target += "?" + r.Query.Encode()
	}

	var body io.Reader
	contentType := r.ContentType
	switch {
	case r.Raw != nil:
		// Buffered so the request can be replayed after a token renewal.
		data, err := io.ReadAll(r.Raw)
		if err != nil {
			return nil, fmt.Errorf("%s %s: read request body: %w", r.Method, r.Path, err)
		}
		body = bytes.NewReader(data)
	case r.Body != nil:
		data, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("%s %s: encode request body: %w", r.Method, r.Path, err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: create request: %w", r.Method, r.Path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if r.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+r.Bearer)
	}
	return req, nil
}

func (c *Client) execute(hc *http.Client, req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return roundTrip(hc, req)
	}
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		return roundTrip(hc, req)
	})
	if isBreakerRejection(err) {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrNetworkUnavailable, req.Method, req.URL.Path, err)
	}
	return resp, err
}

// roundTrip turns 5xx responses into errors so the breaker counts them.
func roundTrip(hc *http.Client, req *http.Request) (*http.Response, error) {
	resp, err := hc.Do(req)
	if err != nil {
		return nil, classifyTransportError(req, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		defer resp.Body.Close()
		return nil, readStatusError(req, resp)
	}
	return resp, nil
}

// classifyTransportError leaves caller cancellation and deadlines unwrapped so
// they never count as an outage. A client timeout is still an outage.
func classifyTransportError(req *http.Request, err error) error {
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded) && req.Context().Err() != nil,
		errors.Is(err, apperrors.ErrSessionExpired),
		errors.Is(err, apperrors.ErrSessionChanged),
		errors.Is(err, apperrors.ErrNotAuthenticated):
		return err
	}
	return fmt.Errorf("%w: %s %s: %w", ErrNetworkUnavailable, req.Method, req.URL.Path, err)
}

func readStatusError(req *http.Request, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Method: req.Method,
		Path:   req.URL.Path,
		Status: resp.StatusCode,
		Body:   body,
	}
}
