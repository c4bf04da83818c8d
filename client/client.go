// Package client implements the authenticated API client for the property
// management service. It owns the session-integrity protocol: CSRF token
// caching and rotation, proactive JWT refresh, bounded retry of protected
// requests on 401/403, and teardown of the local session when recovery is
// exhausted.
package client

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
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/younoch/property-manegment-frontend-sub000/session"
)

const (
	csrfHeaderName = "X-CSRF-Token"
	csrfCookieName = "csrf_token"

	// maxBodySize bounds how much of a response body is read into memory.
	maxBodySize = 1 << 20
)

// Client is the authenticated API client. It is constructed once per
// session and shared; all methods are safe for concurrent use. Close must
// be called when the client is discarded to stop the refresh loops.
type Client struct {
	baseURL  string
	http     *http.Client
	store    session.Store
	logger   *slog.Logger
	metrics  *Metrics
	creds    *credentialStore
	disabled bool
	now      func() time.Time

	// navigate sends the user to the login surface after a terminal auth
	// failure. hardReload is the fallback when navigate itself fails.
	navigate   func() error
	hardReload func()

	requestTimeout   time.Duration
	healthTimeout    time.Duration
	authBackoff      time.Duration
	transientBackoff time.Duration
	jwtCheckEvery    time.Duration
	jwtRefreshAfter  time.Duration
	csrfRotateAfter  time.Duration
	csrfHardEvery    time.Duration
	principalMaxAge  time.Duration

	csrfCacheDuration time.Duration

	csrfMu     sync.Mutex
	csrfFlight *csrfFlight

	jwtMu         sync.Mutex
	jwtRefreshing bool
	jwtWaiters    []chan bool

	principalMu sync.RWMutex
	principal   *Principal

	loopMu sync.Mutex
	stopCh chan struct{}
}

// Option configures the Client.
type Option func(*Client)

// WithLogger sets the structured logger. If not set, a default JSON logger
// writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient replaces the underlying HTTP client. The client must carry
// a cookie jar, since the JWT pair is transported in HTTP-only cookies.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithNavigation sets the login-surface navigation callback and the
// hard-reload fallback used when navigation fails.
func WithNavigation(navigate func() error, hardReload func()) Option {
	return func(c *Client) {
		c.navigate = navigate
		c.hardReload = hardReload
	}
}

// WithMetrics registers Prometheus counters for credential activity.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.metrics = NewMetrics(reg)
	}
}

// WithCSRFCacheDuration sets how long a fetched CSRF token is trusted
// without re-validation.
func WithCSRFCacheDuration(d time.Duration) Option {
	return func(c *Client) {
		c.csrfCacheDuration = d
	}
}

// WithRequestTimeout bounds every individual API call, including the
// credential refresh calls inside the retry chain.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.requestTimeout = d
	}
}

// WithDisabled returns a client whose credential machinery is inert:
// GetToken always yields an empty token and no refresh loops run. Used by
// contexts that render without a live session.
func WithDisabled() Option {
	return func(c *Client) {
		c.disabled = true
	}
}

// New creates a Client for the API at baseURL. The store persists the
// principal across restarts; a previously persisted principal newer than
// the staleness ceiling is restored immediately.
func New(baseURL string, store session.Store, opts ...Option) (*Client, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	c := &Client{
		baseURL:           baseURL,
		store:             store,
		now:               time.Now,
		requestTimeout:    15 * time.Second,
		healthTimeout:     5 * time.Second,
		authBackoff:       60 * time.Second,
		transientBackoff:  10 * time.Second,
		jwtCheckEvery:     5 * time.Minute,
		jwtRefreshAfter:   12 * time.Minute,
		csrfRotateAfter:   20 * time.Minute,
		csrfHardEvery:     23 * time.Hour,
		principalMaxAge:   24 * time.Hour,
		csrfCacheDuration: 15 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	if c.http == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("creating cookie jar: %w", err)
		}
		c.http = &http.Client{Jar: jar}
	}
	c.creds = newCredentialStore(c.csrfCacheDuration, func() time.Time { return c.now() })

	if err := c.loadPrincipal(); err != nil {
		c.logger.Warn("failed to load persisted principal", "error", err)
	}
	if c.IsLoggedIn() && !c.disabled {
		c.startAutoRefresh()
	}
	return c, nil
}

// Close stops the proactive refresh loops. It does not sign the user out.
func (c *Client) Close() error {
	c.stopAutoRefresh()
	return nil
}

// handleAuthFailure tears down the session after credential recovery is
// exhausted. Every step is best-effort: a failure in one step must not
// prevent the next. Calling it with already-empty state is harmless.
func (c *Client) handleAuthFailure() {
	c.metrics.incAuthFailures()
	c.logger.Warn("auth recovery exhausted, signing out")
	c.creds.clearAll()
	c.stopAutoRefresh()
	if err := c.clearPrincipal(); err != nil {
		c.logger.Warn("failed to clear persisted principal", "error", err)
	}
	c.redirectToLogin()
}

// redirectToLogin invokes the navigation callback, falling back to a hard
// reload if navigation returns an error or panics. The user must never be
// left on a surface that silently keeps failing protected calls.
func (c *Client) redirectToLogin() {
	if c.navigate == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("login navigation panicked", "panic", r)
			if c.hardReload != nil {
				c.hardReload()
			}
		}
	}()
	if err := c.navigate(); err != nil {
		c.logger.Error("login navigation failed", "error", err)
		if c.hardReload != nil {
			c.hardReload()
		}
	}
}

// sendWith issues one HTTP request with the given CSRF header value (empty
// means no header) and classifies the response. A non-nil *APIError means
// the API answered with a non-2xx status; a non-nil error means the call
// never produced a usable response.
func (c *Client) sendWith(ctx context.Context, method, path string, body any, csrfToken string) ([]byte, *APIError, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// GET requests carry no anti-forgery header.
	if method != http.MethodGet && csrfToken != "" {
		req.Header.Set(csrfHeaderName, csrfToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s %s: %s", method, path, errorMessage(nil, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, nil, fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil, nil
	}
	return nil, &APIError{Status: resp.StatusCode, Message: errorMessage(data, nil)}, nil
}

// sendRaw issues a request attaching only the currently held CSRF token.
// The credential endpoints go through here: they must never re-enter the
// token fetch path, or a refresh triggered from inside a fetch would wait
// on its own single-flight slot.
func (c *Client) sendRaw(ctx context.Context, method, path string, body any) ([]byte, *APIError, error) {
	return c.sendWith(ctx, method, path, body, c.creds.Token())
}

func readAllLimited(r io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxBodySize))
}

// Ping checks API reachability, used as a best-effort wake call when the
// application regains focus. Failures are logged and swallowed.
func (c *Client) Ping(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(pingCtx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("health ping failed", "error", err)
		return
	}
	resp.Body.Close()
}
