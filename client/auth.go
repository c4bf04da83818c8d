package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// SignInRequest is the JSON body for POST /auth/signin.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUpRequest is the JSON body for POST /auth/signup.
type SignUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignIn establishes a session. On success the principal is recorded and
// persisted, the proactive refresh loops are started, and a CSRF token is
// fetched so the first mutating call does not pay for it.
func (c *Client) SignIn(ctx context.Context, email, password string) (Principal, error) {
	return c.establishSession(ctx, "/auth/signin", SignInRequest{Email: email, Password: password})
}

// SignUp registers a new account and establishes a session.
func (c *Client) SignUp(ctx context.Context, name, email, password string) (Principal, error) {
	return c.establishSession(ctx, "/auth/signup", SignUpRequest{Name: name, Email: email, Password: password})
}

func (c *Client) establishSession(ctx context.Context, path string, body any) (Principal, error) {
	data, apiErr, err := c.sendRaw(ctx, http.MethodPost, path, body)
	if err != nil {
		return Principal{}, err
	}
	if apiErr != nil {
		return Principal{}, apiErr
	}

	var payload struct {
		User *Principal `json:"user"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.User == nil {
		return Principal{}, fmt.Errorf("sign-in response missing user: %s", errorMessage(data, err))
	}

	c.setPrincipal(*payload.User)
	c.creds.stampJWTRefresh()
	if !c.disabled {
		c.startAutoRefresh()
		if _, err := c.GetToken(ctx, false); err != nil {
			c.logger.Debug("initial csrf fetch cancelled", "error", err)
		}
	}
	return *payload.User, nil
}

// SignOut ends the session. The network call is best-effort and never
// blocks local cleanup: credentials, the principal and its durable mirror
// are always cleared.
func (c *Client) SignOut(ctx context.Context) {
	if _, apiErr, err := c.sendRaw(ctx, http.MethodPost, "/auth/signout", nil); err != nil {
		c.logger.Warn("sign-out call failed", "error", err)
	} else if apiErr != nil {
		c.logger.Warn("sign-out call failed", "status", apiErr.Status, "message", apiErr.Message)
	}
	c.creds.clearAll()
	c.stopAutoRefresh()
	if err := c.clearPrincipal(); err != nil {
		c.logger.Warn("failed to clear persisted principal", "error", err)
	}
}

// WhoAmI validates the session against the API and returns the refreshed
// principal.
func (c *Client) WhoAmI(ctx context.Context) (Principal, error) {
	result := c.ValidateSession(ctx)
	if !result.Valid {
		if result.Message != "" {
			return Principal{}, fmt.Errorf("session invalid: %s", result.Message)
		}
		return Principal{}, fmt.Errorf("session invalid")
	}
	return *result.User, nil
}
