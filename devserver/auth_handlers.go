package devserver

import (
	"context"
	"encoding/json"
	"net/http"
)

type contextKey int

const claimsKey contextKey = iota

const maxAuthBodySize = 1 << 16

func decodeJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAuthBodySize)).Decode(&v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return v, false
	}
	return v, true
}

// AuthMiddleware authenticates the access-token cookie and stores its
// claims on the request context.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(accessCookieName)
		if err != nil || cookie.Value == "" {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		claims, err := s.signer.verify(cookie.Value, tokenTypeAccess)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "access token expired")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFromContext(ctx context.Context) *sessionClaims {
	claims, _ := ctx.Value(claimsKey).(*sessionClaims)
	return claims
}

// SignUp handles POST /auth/signup.
func (s *Server) SignUp(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[SignUpRequest](w, r)
	if !ok {
		return
	}
	acct, err := s.accounts.create(req.Name, req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.establishSession(w, acct) {
		return
	}
	writeJSON(w, http.StatusCreated, SessionResponse{User: acct.user()})
}

// SignIn handles POST /auth/signin.
func (s *Server) SignIn(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[SignInRequest](w, r)
	if !ok {
		return
	}
	acct, ok := s.accounts.authenticate(req.Email, req.Password)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !s.establishSession(w, acct) {
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{User: acct.user()})
}

// establishSession mints the cookie token pair and a CSRF token. It
// reports false after writing an error response.
func (s *Server) establishSession(w http.ResponseWriter, acct *account) bool {
	access, err := s.signer.mint(acct, tokenTypeAccess, s.accessTTL)
	if err != nil {
		s.logger.Error("minting access token", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to establish session")
		return false
	}
	refresh, err := s.signer.mint(acct, tokenTypeRefresh, s.refreshTTL)
	if err != nil {
		s.logger.Error("minting refresh token", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to establish session")
		return false
	}
	s.writeAuthCookie(w, accessCookieName, access, s.accessTTL)
	s.writeAuthCookie(w, refreshCookieName, refresh, s.refreshTTL)
	s.writeCSRFCookie(w, s.csrf.issue(acct.ID))
	return true
}

// RefreshToken handles POST /auth/refresh. A valid refresh cookie mints a
// new access cookie; an invalid one is a terminal 401 for the client.
func (s *Server) RefreshToken(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusUnauthorized, "refresh token missing")
		return
	}
	claims, err := s.signer.verify(cookie.Value, tokenTypeRefresh)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "refresh token expired")
		return
	}
	acct, ok := s.accounts.byID(claims.UserID)
	if !ok {
		writeError(w, http.StatusUnauthorized, "account no longer exists")
		return
	}
	access, err := s.signer.mint(acct, tokenTypeAccess, s.accessTTL)
	if err != nil {
		s.logger.Error("minting access token", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to refresh session")
		return
	}
	s.writeAuthCookie(w, accessCookieName, access, s.accessTTL)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "token refreshed"})
}

// WhoAmI handles GET /auth/whoami.
func (s *Server) WhoAmI(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	acct, ok := s.accounts.byID(claims.UserID)
	if !ok {
		writeError(w, http.StatusUnauthorized, "account no longer exists")
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{User: acct.user()})
}

// SignOut handles POST /auth/signout and /auth/logout. Any response is
// treated as success by the client, so this only does local cleanup.
func (s *Server) SignOut(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(accessCookieName); err == nil && cookie.Value != "" {
		if claims, verifyErr := s.signer.verify(cookie.Value, tokenTypeAccess); verifyErr == nil {
			s.csrf.revoke(claims.UserID)
		}
	}
	s.clearCookie(w, accessCookieName, true)
	s.clearCookie(w, refreshCookieName, true)
	s.clearCookie(w, csrfCookieName, false)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "signed out"})
}
