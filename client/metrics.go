package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes Prometheus counters for credential and retry activity.
// All methods are safe to call on a nil receiver, so instrumentation is
// strictly optional.
type Metrics struct {
	tokenFetches  prometheus.Counter
	cacheHits     prometheus.Counter
	jwtRefreshes  prometheus.Counter
	csrfRefreshes prometheus.Counter
	retries       prometheus.Counter
	authFailures  prometheus.Counter
}

// NewMetrics registers the client metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		tokenFetches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "propman",
			Subsystem: "client",
			Name:      "csrf_token_fetches_total",
			Help:      "Number of CSRF token fetches issued to the API.",
		}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "propman",
			Subsystem: "client",
			Name:      "csrf_cache_hits_total",
			Help:      "Number of CSRF token requests served from cache.",
		}),
		jwtRefreshes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "propman",
			Subsystem: "client",
			Name:      "jwt_refreshes_total",
			Help:      "Number of JWT refresh calls issued to the API.",
		}),
		csrfRefreshes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "propman",
			Subsystem: "client",
			Name:      "csrf_refreshes_total",
			Help:      "Number of CSRF rotation calls issued to the API.",
		}),
		retries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "propman",
			Subsystem: "client",
			Name:      "request_retries_total",
			Help:      "Number of protected requests resubmitted after credential recovery.",
		}),
		authFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "propman",
			Subsystem: "client",
			Name:      "auth_failures_total",
			Help:      "Number of terminal auth failures that forced a sign-out.",
		}),
	}
}

func (m *Metrics) incTokenFetches() {
	if m != nil {
		m.tokenFetches.Inc()
	}
}

func (m *Metrics) incCacheHits() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

func (m *Metrics) incJWTRefreshes() {
	if m != nil {
		m.jwtRefreshes.Inc()
	}
}

func (m *Metrics) incCSRFRefreshes() {
	if m != nil {
		m.csrfRefreshes.Inc()
	}
}

func (m *Metrics) incRetries() {
	if m != nil {
		m.retries.Inc()
	}
}

func (m *Metrics) incAuthFailures() {
	if m != nil {
		m.authFailures.Inc()
	}
}
