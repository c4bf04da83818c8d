package devserver

import (
	"crypto/subtle"
	"net/http"
	"sync"

	"github.com/google/uuid"
)

// csrfIssuer tracks the anti-forgery token issued to each user.
type csrfIssuer struct {
	mu     sync.RWMutex
	byUser map[int64]string
}

func newCSRFIssuer() *csrfIssuer {
	return &csrfIssuer{byUser: make(map[int64]string)}
}

func (c *csrfIssuer) issue(userID int64) string {
	token := uuid.NewString()
	c.mu.Lock()
	c.byUser[userID] = token
	c.mu.Unlock()
	return token
}

func (c *csrfIssuer) valid(userID int64, token string) bool {
	c.mu.RLock()
	issued, ok := c.byUser[userID]
	c.mu.RUnlock()
	if !ok || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(issued), []byte(token)) == 1
}

func (c *csrfIssuer) revoke(userID int64) {
	c.mu.Lock()
	delete(c.byUser, userID)
	c.mu.Unlock()
}

// CSRFMiddleware enforces the anti-forgery token on mutating requests.
// Safe methods are exempt.
func (s *Server) CSRFMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		claims := claimsFromContext(r.Context())
		if claims == nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !s.csrf.valid(claims.UserID, r.Header.Get(csrfHeaderName)) {
			writeError(w, http.StatusForbidden, "csrf token invalid")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IssueCSRFToken handles GET /csrf/token.
func (s *Server) IssueCSRFToken(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	token := s.csrf.issue(claims.UserID)
	s.writeCSRFCookie(w, token)
	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}

// RotateCSRFToken handles POST /csrf/refresh. The fresh token is delivered
// both as a response header and in the body; clients accept either.
func (s *Server) RotateCSRFToken(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	token := s.csrf.issue(claims.UserID)
	s.writeCSRFCookie(w, token)
	w.Header().Set(csrfHeaderName, token)
	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}
