package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"
)

// csrfFlight is the shared future for a single in-flight token fetch.
// Concurrent GetToken callers wait on done and observe the exact outcome
// of the one network call instead of polling a snapshot.
type csrfFlight struct {
	done  chan struct{}
	token string
}

// GetToken returns the current CSRF token, fetching one from the API when
// no fresh token is cached. An empty result is a valid, non-exceptional
// outcome: anonymous sessions, active backoff windows and failed fetches
// all yield "" rather than an error. The returned error is non-nil only
// when ctx is cancelled while waiting.
//
// force bypasses both the cache window and the backoff window.
func (c *Client) GetToken(ctx context.Context, force bool) (string, error) {
	if c.disabled {
		return "", nil
	}
	// Never fetch on behalf of an anonymous session; return whatever is
	// held, which is normally nothing.
	if !c.IsLoggedIn() {
		return c.creds.Token(), nil
	}

	c.csrfMu.Lock()
	if !force && c.creds.inBackoff() {
		c.csrfMu.Unlock()
		return "", nil
	}
	if !force {
		if token, ok := c.creds.freshToken(); ok {
			c.csrfMu.Unlock()
			c.metrics.incCacheHits()
			return token, nil
		}
	}
	if f := c.csrfFlight; f != nil {
		c.csrfMu.Unlock()
		select {
		case <-f.done:
			return f.token, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f := &csrfFlight{done: make(chan struct{})}
	c.csrfFlight = f
	c.csrfMu.Unlock()

	// The flight must be resolved on every exit path.
	token := c.fetchToken(ctx)

	c.csrfMu.Lock()
	f.token = token
	c.csrfFlight = nil
	c.csrfMu.Unlock()
	close(f.done)
	return token, nil
}

// fetchToken acquires a token: first from the cheap cookie-resident value,
// then from the token endpoint. A 401/403 gets exactly one session refresh
// and one retry before falling through to the auth-failure handler.
func (c *Client) fetchToken(ctx context.Context) string {
	if token := c.residentToken(); token != "" {
		c.creds.setToken(token)
		return token
	}

	token, apiErr, err := c.requestToken(ctx)
	if err == nil && apiErr == nil {
		c.creds.setToken(token)
		return token
	}
	if apiErr != nil && apiErr.isAuthStatus() {
		if c.RefreshJWT(ctx) {
			token, apiErr, err = c.requestToken(ctx)
			if err == nil && apiErr == nil {
				c.creds.setToken(token)
				return token
			}
		}
		c.logger.Warn("csrf token fetch unauthorized after session refresh")
		// Teardown first: the failure handler resets all credential state,
		// and the backoff window must survive it to suppress refetch churn
		// from still-mounted callers.
		c.handleAuthFailure()
		c.creds.setBackoff(c.authBackoff)
		return ""
	}
	if apiErr != nil {
		c.logger.Warn("csrf token fetch failed", "status", apiErr.Status, "message", apiErr.Message)
	} else {
		c.logger.Warn("csrf token fetch failed", "error", err)
	}
	c.creds.setBackoff(c.transientBackoff)
	return ""
}

// residentToken reads a token the server may already have planted as a
// non-HTTP-only cookie, avoiding a network round trip.
func (c *Client) residentToken() string {
	if c.http.Jar == nil {
		return ""
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return ""
	}
	for _, cookie := range c.http.Jar.Cookies(base) {
		if cookie.Name == csrfCookieName && cookie.Value != "" {
			return cookie.Value
		}
	}
	return ""
}

// requestToken calls the token endpoint. The server is permissive about
// the field name it uses, so all known spellings are accepted.
func (c *Client) requestToken(ctx context.Context) (string, *APIError, error) {
	c.metrics.incTokenFetches()
	data, apiErr, err := c.sendRaw(ctx, http.MethodGet, "/csrf/token", nil)
	if err != nil || apiErr != nil {
		return "", apiErr, err
	}
	var payload struct {
		Token     string `json:"token"`
		CSRFSnake string `json:"csrf_token"`
		CSRFCamel string `json:"csrfToken"`
		Value     string `json:"value"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", nil, err
	}
	for _, candidate := range []string{payload.Token, payload.CSRFSnake, payload.CSRFCamel, payload.Value} {
		if candidate != "" {
			return candidate, nil, nil
		}
	}
	return "", &APIError{Status: http.StatusOK, Message: "token endpoint returned no token"}, nil
}

// RefreshCSRF forces a rotation through the dedicated refresh endpoint.
// It refuses while a backoff window is active. The new token may arrive in
// the X-CSRF-Token response header or in the body. A 401 means the session
// no longer recognizes the held token: it is cleared, a backoff is set and
// a clean re-acquisition is attempted through GetToken.
func (c *Client) RefreshCSRF(ctx context.Context) (string, error) {
	if c.disabled {
		return "", nil
	}
	if c.creds.inBackoff() {
		return "", nil
	}
	c.metrics.incCSRFRefreshes()

	token, apiErr, err := c.requestRefresh(ctx)
	if err == nil && apiErr == nil && token != "" {
		c.creds.setToken(token)
		return token, nil
	}
	if apiErr != nil && apiErr.Status == http.StatusUnauthorized {
		c.creds.clearToken()
		c.creds.setBackoff(c.authBackoff)
		return c.GetToken(ctx, false)
	}
	if apiErr != nil {
		c.logger.Warn("csrf refresh failed", "status", apiErr.Status, "message", apiErr.Message)
	} else if err != nil {
		c.logger.Warn("csrf refresh failed", "error", err)
	}
	c.creds.setBackoff(c.transientBackoff)
	return "", nil
}

func (c *Client) requestRefresh(ctx context.Context) (string, *APIError, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/csrf/refresh", nil)
	if err != nil {
		return "", nil, err
	}
	if held := c.creds.Token(); held != "" {
		req.Header.Set(csrfHeaderName, held)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	body, err := readAllLimited(resp.Body)
	if err != nil {
		return "", nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{Status: resp.StatusCode, Message: errorMessage(body, nil)}, nil
	}
	if header := resp.Header.Get(csrfHeaderName); header != "" {
		return header, nil, nil
	}
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Token != "" {
		return payload.Token, nil, nil
	}
	return "", &APIError{Status: resp.StatusCode, Message: "refresh endpoint returned no token"}, nil
}

// ClearCSRF resets all held CSRF state, used on sign-out.
func (c *Client) ClearCSRF() {
	c.creds.clearToken()
}

// backoffRemaining is a test hook reporting how long the current backoff
// window still has to run.
func (c *Client) backoffRemaining() time.Duration {
	c.creds.mu.Lock()
	defer c.creds.mu.Unlock()
	if c.creds.csrf.backoffUntil.IsZero() {
		return 0
	}
	remaining := c.creds.csrf.backoffUntil.Sub(c.creds.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}
