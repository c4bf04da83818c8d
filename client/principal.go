package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/younoch/property-manegment-frontend-sub000/session"
)

// principalStoreKey is the fixed key the principal record is mirrored
// under in durable storage.
const principalStoreKey = "propman_auth_user"

// Principal is the authenticated user's identity record.
type Principal struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// storedPrincipal is the durable mirror of the principal, stamped with the
// last activity time so stale records can be discarded at load.
type storedPrincipal struct {
	User         Principal `json:"user"`
	LastActivity time.Time `json:"last_activity"`
}

// IsLoggedIn reports whether a principal is present. The credential
// subsystems are only maintained while this is true.
func (c *Client) IsLoggedIn() bool {
	c.principalMu.RLock()
	defer c.principalMu.RUnlock()
	return c.principal != nil
}

// CurrentUser returns the current principal, if any.
func (c *Client) CurrentUser() (Principal, bool) {
	c.principalMu.RLock()
	defer c.principalMu.RUnlock()
	if c.principal == nil {
		return Principal{}, false
	}
	return *c.principal, true
}

// setPrincipal records the principal and writes it through to durable
// storage. Storage failures are logged, not fatal: the in-memory state is
// authoritative for the rest of the session.
func (c *Client) setPrincipal(p Principal) {
	c.principalMu.Lock()
	c.principal = &p
	c.principalMu.Unlock()

	record := storedPrincipal{User: p, LastActivity: c.now()}
	data, err := json.Marshal(record)
	if err != nil {
		c.logger.Warn("failed to encode principal", "error", err)
		return
	}
	if err := c.store.Put(principalStoreKey, data); err != nil {
		c.logger.Warn("failed to persist principal", "error", err)
	}
}

// clearPrincipal drops the in-memory principal and its durable mirror.
func (c *Client) clearPrincipal() error {
	c.principalMu.Lock()
	c.principal = nil
	c.principalMu.Unlock()
	if err := c.store.Delete(principalStoreKey); err != nil && !errors.Is(err, session.ErrNotFound) {
		return fmt.Errorf("deleting persisted principal: %w", err)
	}
	return nil
}

// loadPrincipal restores a previously persisted principal at construction.
// Records older than the staleness ceiling are discarded, forcing a fresh
// validation against the API.
func (c *Client) loadPrincipal() error {
	data, err := c.store.Get(principalStoreKey)
	if errors.Is(err, session.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading persisted principal: %w", err)
	}

	var record storedPrincipal
	if err := json.Unmarshal(data, &record); err != nil {
		// Corrupt record — drop it rather than failing construction.
		_ = c.store.Delete(principalStoreKey)
		return fmt.Errorf("decoding persisted principal: %w", err)
	}
	if record.LastActivity.IsZero() || c.now().Sub(record.LastActivity) > c.principalMaxAge {
		_ = c.store.Delete(principalStoreKey)
		return nil
	}

	c.principalMu.Lock()
	c.principal = &record.User
	c.principalMu.Unlock()
	return nil
}
