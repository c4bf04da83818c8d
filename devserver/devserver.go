// Package devserver is a development stand-in for the property management
// REST API. The production API is an external collaborator; this stub
// implements the same auth, CSRF and resource endpoints so the client SDK
// can be exercised locally and in integration tests.
package devserver

import (
	_ "embed"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"
)

// Server holds the dependencies needed by the stub handlers.
type Server struct {
	accounts *accountStore
	leases   *leaseStore
	csrf     *csrfIssuer
	signer   *tokenSigner
	cookies  CookiePolicy
	logger   *slog.Logger

	accessTTL  time.Duration
	refreshTTL time.Duration
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the Server instance.
type Option func(*Server)

// WithLogger sets the structured logger.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithCookiePolicy sets cookie attributes for the deployment topology.
func WithCookiePolicy(policy CookiePolicy) Option {
	return func(s *Server) {
		s.cookies = policy
	}
}

// WithAccessTTL sets the access-token lifetime. Integration tests shrink
// this to force the refresh path.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.accessTTL = ttl
	}
}

// New creates a Server with a fresh in-memory state and a random signing
// key held in a memguard enclave.
func New(opts ...Option) (*Server, error) {
	signer, err := newTokenSigner()
	if err != nil {
		return nil, err
	}
	s := &Server{
		accounts:   newAccountStore(),
		leases:     newLeaseStore(),
		csrf:       newCSRFIssuer(),
		signer:     signer,
		cookies:    SameOriginCookies(),
		accessTTL:  15 * time.Minute,
		refreshTTL: 7 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return s, nil
}

// Router returns a chi.Router with all stub routes mounted.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/openapi.yaml",
		Path:    "docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/openapi.yaml",
		Path:    "redoc",
	}, nil))

	r.Post("/auth/signin", s.SignIn)
	r.Post("/auth/signup", s.SignUp)
	r.Post("/auth/signout", s.SignOut)
	r.Post("/auth/logout", s.SignOut)
	r.Post("/auth/refresh", s.RefreshToken)
	r.With(s.AuthMiddleware).Get("/auth/whoami", s.WhoAmI)

	r.With(s.AuthMiddleware).Get("/csrf/token", s.IssueCSRFToken)
	r.With(s.AuthMiddleware).Post("/csrf/refresh", s.RotateCSRFToken)

	r.Route("/leases", func(r chi.Router) {
		r.Use(s.AuthMiddleware)
		r.Use(s.CSRFMiddleware)
		r.Get("/{leaseID}", s.GetLease)
		r.Post("/{leaseID}/activate", s.ActivateLease)
	})
	r.Route("/invoices", func(r chi.Router) {
		r.Use(s.AuthMiddleware)
		r.Use(s.CSRFMiddleware)
		r.Post("/", s.CreateInvoice)
		r.Post("/{invoiceID}/payments", s.RecordPayment)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Message: msg})
}
