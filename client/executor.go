package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// failureClass is the executor's reading of which credential a 401/403
// implicates.
type failureClass int

const (
	classGeneric failureClass = iota
	classJWT
	classCSRF
)

// classifyAuthFailure decides the recovery path from the server's error
// message. The server does not always disambiguate which credential is
// stale, so this is a message-sniffing heuristic: "csrf" is checked before
// "token" because messages like "csrf token invalid" name both, and an
// unmarked 401/403 defaults to the JWT recovery path.
func classifyAuthFailure(message string) failureClass {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "csrf"):
		return classCSRF
	case strings.Contains(lower, "token"):
		return classJWT
	default:
		return classGeneric
	}
}

// Do executes a protected API request, transparently recovering from stale
// credentials. Non-GET requests carry the current CSRF token as a header,
// and every retry re-attaches the freshly held token.
//
// Recovery is bounded: at most two resubmissions of the original request,
// and exactly one recovery sequence per call. When recovery is exhausted
// the auth-failure handler runs once and ErrSessionExpired is returned.
func (c *Client) Do(ctx context.Context, method, path string, body any) ([]byte, error) {
	data, apiErr, err := c.send(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if apiErr == nil {
		return data, nil
	}
	if !apiErr.isAuthStatus() {
		return nil, apiErr
	}

	switch classifyAuthFailure(apiErr.Message) {
	case classCSRF:
		return c.recoverCSRF(ctx, method, path, body, apiErr)
	default:
		return c.recoverJWT(ctx, method, path, body, apiErr)
	}
}

// recoverCSRF handles a CSRF-class failure: rotate the token, retry once.
func (c *Client) recoverCSRF(ctx context.Context, method, path string, body any, cause *APIError) ([]byte, error) {
	token, err := c.RefreshCSRF(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		c.handleAuthFailure()
		return nil, fmt.Errorf("%w: %s", ErrSessionExpired, cause.Message)
	}

	c.metrics.incRetries()
	data, apiErr, err := c.send(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if apiErr == nil {
		return data, nil
	}
	if apiErr.isAuthStatus() {
		c.handleAuthFailure()
		return nil, fmt.Errorf("%w: %s", ErrSessionExpired, apiErr.Message)
	}
	return nil, apiErr
}

// recoverJWT handles a JWT-class or generic failure: refresh the JWT and
// retry once; if that retry still fails on auth, rotate the CSRF token as
// a second-chance recovery and retry one final time. Refreshing one
// credential often reveals the other was also stale.
func (c *Client) recoverJWT(ctx context.Context, method, path string, body any, cause *APIError) ([]byte, error) {
	if !c.RefreshJWT(ctx) {
		c.handleAuthFailure()
		return nil, fmt.Errorf("%w: %s", ErrSessionExpired, cause.Message)
	}

	c.metrics.incRetries()
	data, apiErr, err := c.send(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if apiErr == nil {
		return data, nil
	}
	if !apiErr.isAuthStatus() {
		return nil, apiErr
	}

	if token, refreshErr := c.RefreshCSRF(ctx); refreshErr == nil && token != "" {
		c.metrics.incRetries()
		data, apiErr, err = c.send(ctx, method, path, body)
		if err != nil {
			return nil, err
		}
		if apiErr == nil {
			return data, nil
		}
		if !apiErr.isAuthStatus() {
			return nil, apiErr
		}
	}
	c.handleAuthFailure()
	return nil, fmt.Errorf("%w: %s", ErrSessionExpired, apiErr.Message)
}

// send issues one attempt of a protected request, resolving the CSRF
// header through the coordinator (cache, backoff and single-flight
// included) for non-GET methods.
func (c *Client) send(ctx context.Context, method, path string, body any) ([]byte, *APIError, error) {
	var token string
	if method != http.MethodGet {
		var err error
		token, err = c.GetToken(ctx, false)
		if err != nil {
			return nil, nil, err
		}
	}
	return c.sendWith(ctx, method, path, body, token)
}

// Get issues a protected GET request.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post issues a protected POST request.
func (c *Client) Post(ctx context.Context, path string, body any) ([]byte, error) {
	return c.Do(ctx, http.MethodPost, path, body)
}
