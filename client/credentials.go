package client

import (
	"sync"
	"time"
)

// csrfState holds the current anti-forgery token and its bookkeeping.
// An empty token is a valid state: the session may still be carried by
// HTTP-only cookies alone.
type csrfState struct {
	token         string
	lastFetchedAt time.Time
	backoffUntil  time.Time
}

// jwtState tracks proactive access-token refresh bookkeeping. The JWT pair
// itself lives in HTTP-only cookies and is never visible to this code.
type jwtState struct {
	lastRefreshedAt time.Time
}

// credentialStore is the single owner of mutable credential state. All
// mutation goes through the coordinator and manager methods on Client;
// everything else reads through the accessors below.
type credentialStore struct {
	mu            sync.Mutex
	csrf          csrfState
	jwt           jwtState
	cacheDuration time.Duration
	now           func() time.Time
}

func newCredentialStore(cacheDuration time.Duration, now func() time.Time) *credentialStore {
	return &credentialStore{cacheDuration: cacheDuration, now: now}
}

// Token returns the currently held CSRF token, which may be empty.
func (s *credentialStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.csrf.token
}

// freshToken returns the held token if it is still inside the cache window.
func (s *credentialStore) freshToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.csrf.token == "" || s.csrf.lastFetchedAt.IsZero() {
		return "", false
	}
	if s.now().Sub(s.csrf.lastFetchedAt) >= s.cacheDuration {
		return "", false
	}
	return s.csrf.token, true
}

// inBackoff reports whether a prior fetch failure still suppresses attempts.
func (s *credentialStore) inBackoff() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.csrf.backoffUntil.IsZero() && s.now().Before(s.csrf.backoffUntil)
}

// setToken stores a confirmed token, stamps the fetch time and clears any
// backoff window.
func (s *credentialStore) setToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.csrf.token = token
	s.csrf.lastFetchedAt = s.now()
	s.csrf.backoffUntil = time.Time{}
}

// setBackoff suppresses further fetch attempts for the given duration.
func (s *credentialStore) setBackoff(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.csrf.backoffUntil = s.now().Add(d)
}

// clearToken resets all CSRF state, used on sign-out and on a 401 from the
// refresh endpoint.
func (s *credentialStore) clearToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.csrf = csrfState{}
}

// clearAll resets both credential types.
func (s *credentialStore) clearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.csrf = csrfState{}
	s.jwt = jwtState{}
}

func (s *credentialStore) stampJWTRefresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jwt.lastRefreshedAt = s.now()
}

func (s *credentialStore) jwtRefreshedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jwt.lastRefreshedAt
}

func (s *credentialStore) csrfFetchedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.csrf.lastFetchedAt
}
