// Package client wraps the backend's HTTP contract. Every call goes through
// one interceptor pipeline: request interceptors (bearer token, request id,
// user agent) on the way out, and a single response classifier on the way
// back. A 401 from any call clears the session and emits a login intent
// before the caller sees the error.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jmcleod/sessiongate/credential"
	"github.com/jmcleod/sessiongate/nav"
	"github.com/jmcleod/sessiongate/session"
)

const (
	pathSignup       = "/signup"
	pathLogin        = "/login"
	pathProtected    = "/protected"
	pathDatabaseInfo = "/database-info"

	opRegister     = "register"
	opLogin        = "login"
	opProtected    = "fetch_protected"
	opDatabaseInfo = "fetch_database_info"

	defaultUserAgent = "sessiongate/1.0"
	maxResponseBody  = 1 << 20
)

// API is the set of backend calls the flow controller depends on.
type API interface {
	Register(ctx context.Context, creds credential.Credentials) (*RegisterResponse, error)
	Login(ctx context.Context, creds credential.Credentials) (*LoginResponse, error)
	FetchProtected(ctx context.Context) (json.RawMessage, error)
	FetchDatabaseInfo(ctx context.Context) (*DatabaseInfo, error)
}

// Client talks to the backend on behalf of the current session.
type Client struct {
	baseURL      string
	http         *http.Client
	store        session.Store
	nav          nav.Navigator
	logger       *slog.Logger
	metrics      *Metrics
	userAgent    string
	interceptors []RequestInterceptor
}

var _ API = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the transport. The default is an http.Client with no
// timeout, so a hung request is only abandoned through its context.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithNavigator sets where forced-logout intents are sent.
func WithNavigator(n nav.Navigator) Option {
	return func(c *Client) {
		c.nav = n
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithRequestInterceptor appends an interceptor that runs after the built-in ones.
func WithRequestInterceptor(ri RequestInterceptor) Option {
	return func(c *Client) {
		c.interceptors = append(c.interceptors, ri)
	}
}

// New creates a Client for the backend at baseURL. A base URL without a
// scheme is treated as http.
func New(baseURL string, store session.Store, opts ...Option) (*Client, error) {
	normalized, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:   normalized,
		http:      &http.Client{},
		store:     store,
		nav:       nav.Discard,
		logger:    slog.Default(),
		userAgent: defaultUserAgent,
	}
	var extra []RequestInterceptor
	for _, opt := range opts {
		opt(c)
	}
	extra, c.interceptors = c.interceptors, nil
	c.interceptors = append([]RequestInterceptor{
		BearerToken(store),
		RequestID(),
		UserAgent(c.userAgent),
	}, extra...)
	c.logger = c.logger.With("component", "client")
	return c, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("base URL is required")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("base URL %q has no host", raw)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

// BaseURL returns the normalized backend URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Register creates an account. It is a pre-authentication call.
func (c *Client) Register(ctx context.Context, creds credential.Credentials) (*RegisterResponse, error) {
	var out RegisterResponse
	if err := c.do(ctx, opRegister, http.MethodPost, pathSignup, AuthRequest(creds), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for a token. The session is stored only when
// the response actually carries a token; a success without one leaves the
// store untouched.
func (c *Client) Login(ctx context.Context, creds credential.Credentials) (*LoginResponse, error) {
	var out LoginResponse
	if err := c.do(ctx, opLogin, http.MethodPost, pathLogin, AuthRequest(creds), &out); err != nil {
		return nil, err
	}
	tok := out.Token()
	if tok == "" {
		c.logger.Info("login succeeded without an access token", "username", creds.Username)
		return &out, nil
	}
	if err := c.store.Set(tok, creds.Username); err != nil {
		return &out, fmt.Errorf("storing session: %w", err)
	}
	return &out, nil
}

// FetchProtected calls the token-checking endpoint and returns its raw payload.
func (c *Client) FetchProtected(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, opProtected, http.MethodGet, pathProtected, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchDatabaseInfo returns the backend's informational statistics.
func (c *Client) FetchDatabaseInfo(ctx context.Context) (*DatabaseInfo, error) {
	var out DatabaseInfo
	if err := c.do(ctx, opDatabaseInfo, http.MethodGet, pathDatabaseInfo, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do runs one call through the pipeline and decodes a success body into out.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) (err error) {
	start := time.Now()
	status := 0
	defer func() {
		elapsed := time.Since(start)
		c.metrics.observe(op, err, elapsed)
		attrs := []any{"op", op, "method", method, "path", path, "status", status, "duration", elapsed}
		if err != nil {
			c.logger.Warn("backend call failed", append(attrs, "kind", KindOf(err).String(), "error", err)...)
			return
		}
		c.logger.Debug("backend call", attrs...)
	}()

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return &Error{Op: op, Kind: KindNetwork, Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Op: op, Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return &Error{Op: op, Kind: KindNetwork, Status: status, Err: fmt.Errorf("reading response: %w", err)}
	}

	if cerr := classify(op, status, data); cerr != nil {
		if cerr.Kind == KindAuthRejected {
			c.forceLogout(op)
		}
		return cerr
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return &Error{Op: op, Kind: KindServer, Status: status, Detail: "invalid response from server", Err: err}
		}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, ri := range c.interceptors {
		if err := ri(req); err != nil {
			return nil, fmt.Errorf("request interceptor: %w", err)
		}
	}
	return req, nil
}

// classify maps a response status to an outcome. It is the only place
// status codes are interpreted.
func classify(op string, status int, body []byte) *Error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return &Error{Op: op, Kind: KindAuthRejected, Status: status, Detail: detailFrom(body)}
	default:
		detail := detailFrom(body)
		if detail == "" {
			detail = statusMessage(status)
		}
		return &Error{Op: op, Kind: KindServer, Status: status, Detail: detail}
	}
}

// forceLogout wipes the session and sends the user to the login view. It
// runs for every 401 regardless of which call received it.
func (c *Client) forceLogout(op string) {
	if err := c.store.Clear(); err != nil {
		c.logger.Error("clearing session after 401 failed", "op", op, "error", err)
	}
	c.metrics.forcedLogout()
	c.logger.Info("session cleared after authentication rejection", "op", op)
	c.nav.Navigate(nav.Intent{Route: nav.RouteLogin})
}
