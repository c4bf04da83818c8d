package devserver

import (
	"net/http"
	"time"
)

const (
	accessCookieName  = "access_token"
	refreshCookieName = "refresh_token"
	csrfCookieName    = "csrf_token"
	csrfHeaderName    = "X-CSRF-Token"
)

// CookiePolicy captures the cookie attributes that vary by deployment
// topology. Same-origin deployments can use Lax; cross-origin deployments
// need None, which browsers only accept together with Secure.
type CookiePolicy struct {
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

// SameOriginCookies is the policy for same-port dev and same-domain prod.
func SameOriginCookies() CookiePolicy {
	return CookiePolicy{SameSite: http.SameSiteLaxMode}
}

// CrossOriginCookies is the policy for cross-port dev and cross-domain
// prod deployments.
func CrossOriginCookies(domain string) CookiePolicy {
	return CookiePolicy{Domain: domain, Secure: true, SameSite: http.SameSiteNoneMode}
}

// writeAuthCookie sets an HTTP-only credential cookie.
func (s *Server) writeAuthCookie(w http.ResponseWriter, name, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   s.cookies.Domain,
		HttpOnly: true,
		Secure:   s.cookies.Secure,
		SameSite: s.cookies.SameSite,
		Expires:  time.Now().Add(ttl),
	})
}

// writeCSRFCookie sets the CSRF cookie. It is intentionally NOT HttpOnly
// so the client can read it and echo it as a request header on mutating
// requests.
func (s *Server) writeCSRFCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Domain:   s.cookies.Domain,
		HttpOnly: false,
		Secure:   s.cookies.Secure,
		SameSite: s.cookies.SameSite,
	})
}

func (s *Server) clearCookie(w http.ResponseWriter, name string, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   s.cookies.Domain,
		HttpOnly: httpOnly,
		Secure:   s.cookies.Secure,
		SameSite: s.cookies.SameSite,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}
