package client

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// RefreshJWT refreshes the access token through the refresh endpoint.
// Concurrent callers share a single in-flight call: late arrivals are
// queued and resolved with the outcome of the call already running.
//
// A 401 from the refresh endpoint means the refresh token itself has
// expired; all credentials are cleared and the user is sent to the login
// surface. Any other failure returns false and leaves state untouched so
// the caller can decide the next step.
func (c *Client) RefreshJWT(ctx context.Context) bool {
	if c.disabled {
		return false
	}

	c.jwtMu.Lock()
	if c.jwtRefreshing {
		waiter := make(chan bool, 1)
		c.jwtWaiters = append(c.jwtWaiters, waiter)
		c.jwtMu.Unlock()
		select {
		case ok := <-waiter:
			return ok
		case <-ctx.Done():
			return false
		}
	}
	c.jwtRefreshing = true
	c.jwtMu.Unlock()

	ok := c.doRefreshJWT(ctx)

	c.jwtMu.Lock()
	c.jwtRefreshing = false
	waiters := c.jwtWaiters
	c.jwtWaiters = nil
	c.jwtMu.Unlock()
	for _, waiter := range waiters {
		waiter <- ok
	}
	return ok
}

func (c *Client) doRefreshJWT(ctx context.Context) bool {
	c.metrics.incJWTRefreshes()
	data, apiErr, err := c.sendRaw(ctx, http.MethodPost, "/auth/refresh", nil)
	if err != nil {
		c.logger.Warn("jwt refresh failed", "error", err)
		return false
	}
	if apiErr != nil {
		if apiErr.Status == http.StatusUnauthorized {
			// The refresh token is gone; nothing left to recover with.
			c.logger.Warn("refresh token expired")
			c.handleAuthFailure()
			return false
		}
		c.logger.Warn("jwt refresh failed", "status", apiErr.Status, "message", apiErr.Message)
		return false
	}

	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.Message == "" {
		return false
	}
	c.creds.stampJWTRefresh()
	return true
}

// SessionValidation is the outcome of a ValidateSession call.
type SessionValidation struct {
	Valid   bool
	User    *Principal
	Message string
}

// ValidateSession asks the API who the current session belongs to. A 403
// here usually indicates a stale anti-forgery token rather than an invalid
// session, so the CSRF token is rotated as a side effect — but the call
// still reports invalid either way, and the caller is expected to retry
// its original flow rather than this call.
func (c *Client) ValidateSession(ctx context.Context) SessionValidation {
	data, apiErr, err := c.sendRaw(ctx, http.MethodGet, "/auth/whoami", nil)
	if err != nil {
		return SessionValidation{Message: err.Error()}
	}
	if apiErr != nil {
		if apiErr.Status == http.StatusForbidden {
			if _, refreshErr := c.RefreshCSRF(ctx); refreshErr != nil {
				c.logger.Debug("csrf refresh after 403 failed", "error", refreshErr)
			}
		}
		return SessionValidation{Message: apiErr.Message}
	}

	var payload struct {
		User *Principal `json:"user"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.User == nil {
		return SessionValidation{Message: errorMessage(data, err)}
	}
	c.setPrincipal(*payload.User)
	return SessionValidation{Valid: true, User: payload.User}
}

// startAutoRefresh launches the proactive refresh loop. The loop carries
// two independent cadences: a short check interval for JWT staleness and a
// long-cycle hard CSRF rotation used as a safety net. Focus-driven CSRF
// rotation is a third, event-driven cadence handled by Wake.
func (c *Client) startAutoRefresh() {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	if c.stopCh != nil {
		return
	}
	c.stopCh = make(chan struct{})
	go c.refreshLoop(c.stopCh)
}

func (c *Client) stopAutoRefresh() {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	if c.stopCh != nil {
		close(c.stopCh)
		c.stopCh = nil
	}
}

func (c *Client) refreshLoop(stop <-chan struct{}) {
	check := time.NewTicker(c.jwtCheckEvery)
	defer check.Stop()
	hard := time.NewTicker(c.csrfHardEvery)
	defer hard.Stop()

	for {
		select {
		case <-stop:
			return
		case <-check.C:
			if !c.IsLoggedIn() {
				continue
			}
			if c.jwtRefreshDue() {
				ctx, cancel := context.WithTimeout(context.Background(), c.requestTimeout)
				c.RefreshJWT(ctx)
				cancel()
			}
		case <-hard.C:
			if !c.IsLoggedIn() {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), c.requestTimeout)
			if _, err := c.RefreshCSRF(ctx); err != nil {
				c.logger.Debug("hard csrf refresh failed", "error", err)
			}
			cancel()
		}
	}
}

// Wake should be called whenever the application regains focus or
// visibility. It pings the health endpoint (best-effort) and rotates the
// CSRF token when it has gone unrefreshed past the rotation threshold.
func (c *Client) Wake(ctx context.Context) {
	if c.disabled {
		return
	}
	c.Ping(ctx)
	if !c.IsLoggedIn() {
		return
	}
	if c.csrfRotationDue() {
		if _, err := c.RefreshCSRF(ctx); err != nil {
			c.logger.Debug("wake csrf refresh failed", "error", err)
		}
	}
}

// jwtRefreshDue reports whether the access token has gone unrefreshed past
// the proactive threshold.
func (c *Client) jwtRefreshDue() bool {
	return c.now().Sub(c.creds.jwtRefreshedAt()) >= c.jwtRefreshAfter
}

// csrfRotationDue reports whether the CSRF token is old enough to rotate
// on a focus event.
func (c *Client) csrfRotationDue() bool {
	fetchedAt := c.creds.csrfFetchedAt()
	return fetchedAt.IsZero() || c.now().Sub(fetchedAt) >= c.csrfRotateAfter
}
