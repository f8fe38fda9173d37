// Package api is the HTTP client for the portal endpoints the stores read
// from and write to.
//
//	GET    /api/user            current user profile
//	GET    /api/auth/user       signed-in session user (200 or 401)
//	GET    /api/user/apps       apps owned by the current user
//	POST   /api/user/apps       register an app
//	DELETE /api/user/apps/{id}  delete an app
//	DELETE /api/user            delete the account
//	GET    /api/auth/verify     verify a new account
//	GET    /api/auth/providers  sign-in providers
//
// The portal authenticates with its session cookie, supplied through
// WithSessionCookie. Every request is sent as JSON so the portal answers an
// unauthenticated call with 401 instead of redirecting to its sign-out page;
// redirects are not followed and count as not signed in.
//
// Every request is traced with OpenTelemetry and reported to an optional
// Observer.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/vango-dev/appstate/internal/errors"
)

// Endpoint paths.
const (
	PathUser        = "/api/user"
	PathSessionUser = "/api/auth/user"
	PathApps        = "/api/user/apps"
	PathVerify      = "/api/auth/verify"
	PathProviders   = "/api/auth/providers"
)

// DefaultSessionCookie is the portal's session cookie name.
const DefaultSessionCookie = "session"

// DefaultTimeout is the request timeout of the default HTTP client.
const DefaultTimeout = 30 * time.Second

// DefaultTracerName is the tracer used when none is configured.
const DefaultTracerName = "appstate.api"

// Observer receives one event per completed request. status is 0 when no
// response was received.
type Observer interface {
	Request(endpoint string, status int, elapsed time.Duration)
}

// Client talks to the portal.
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	timeout  time.Duration
	cookie   *http.Cookie
	tracer   trace.Tracer
	logger   *slog.Logger
	observer Observer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client. Its redirect policy is
// left as is.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithTimeout sets the request timeout of the default HTTP client.
// Default: DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		cl.timeout = d
	}
}

// WithSessionCookie sends the portal session cookie with every request. An
// empty name means DefaultSessionCookie; an empty value is ignored.
func WithSessionCookie(name, value string) Option {
	return func(cl *Client) {
		if value == "" {
			return
		}
		if name == "" {
			name = DefaultSessionCookie
		}
		cl.cookie = &http.Cookie{Name: name, Value: value}
	}
}

// NewHTTPClient returns an HTTP client that does not follow redirects.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// WithTracer sets the tracer. Default: the global provider's
// DefaultTracerName tracer.
func WithTracer(t trace.Tracer) Option {
	return func(cl *Client) {
		cl.tracer = t
	}
}

// WithLogger sets the logger. If nil, slog.Default() is used.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = l
	}
}

// WithObserver sets an instrumentation hook.
func WithObserver(o Observer) Option {
	return func(cl *Client) {
		cl.observer = o
	}
}

// New creates a client for the portal at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, apperrors.New("E201").WithDetail("portal base URL: " + err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, apperrors.New("E201").WithDetail(fmt.Sprintf("portal base URL %q must be http or https", baseURL))
	}

	c := &Client{
		baseURL: u,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = NewHTTPClient(c.timeout)
	}
	if c.cookie != nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, apperrors.New("E201").Wrap(err)
		}
		jar.SetCookies(u, []*http.Cookie{c.cookie})
		hc := *c.http
		hc.Jar = jar
		c.http = &hc
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(DefaultTracerName)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// BaseURL returns the portal base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// do sends a request and returns the response. The caller closes the body.
// endpoint is the route template used for span names and metrics.
func (c *Client) do(ctx context.Context, method, endpoint, path string, body any) (*http.Response, error) {
	ctx, span := c.tracer.Start(ctx, method+" "+endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", endpoint),
		),
	)
	defer span.End()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		c.report(endpoint, 0, elapsed)
		c.logger.Debug("api: request failed", "method", method, "path", path, "error", err)
		return nil, apperrors.New("E101").WithDetail(method + " " + path).Wrap(err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= 500 {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}
	c.report(endpoint, resp.StatusCode, elapsed)
	c.logger.Debug("api: request done",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"elapsed", elapsed,
	)
	return resp, nil
}

func (c *Client) report(endpoint string, status int, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.Request(endpoint, status, elapsed)
	}
}

// decode reads a JSON body into v.
func decode(resp *http.Response, v any) error {
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return apperrors.New("E102").
			WithDetail(resp.Request.Method + " " + resp.Request.URL.Path).
			Wrap(err)
	}
	return nil
}

// statusError builds the error for a response with an unexpected status.
func statusError(resp *http.Response) error {
	code := "E103"
	if resp.StatusCode == http.StatusUnauthorized || isRedirect(resp.StatusCode) {
		code = "E104"
	}
	return apperrors.New(code).
		WithStatus(resp.StatusCode).
		WithDetail(resp.Request.Method + " " + resp.Request.URL.Path)
}

func isRedirect(status int) bool {
	return status >= 300 && status < 400
}

// drain discards the rest of the body so the connection can be reused.
func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
