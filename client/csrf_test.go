package client

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/younoch/property-manegment-frontend-sub000/session/memory"
)

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) (*Client, *atomic.Int64) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	var navigations atomic.Int64
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithNavigation(func() error {
			navigations.Add(1)
			return nil
		}, nil),
	}
	c, err := New(srv.URL, memory.NewStore(), append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, &navigations
}

func asLoggedIn(c *Client) {
	c.setPrincipal(Principal{ID: 1, Email: "ada@example.com", Name: "Ada", Role: "manager"})
}

func TestGetTokenAnonymousNeverFetches(t *testing.T) {
	var tokenCalls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/csrf/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		w.Write([]byte(`{"token":"abc"}`))
	})
	c, _ := newTestClient(t, mux)

	token, err := c.GetToken(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.Zero(t, tokenCalls.Load())
}

func TestGetTokenFetchesStoresAndCaches(t *testing.T) {
	var tokenCalls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/csrf/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		w.Write([]byte(`{"token":"abc123"}`))
	})
	c, _ := newTestClient(t, mux)
	asLoggedIn(c)

	token, err := c.GetToken(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)
	assert.EqualValues(t, 1, tokenCalls.Load())

	// Within the cache window the held token is returned with no network.
	token, err = c.GetToken(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)
	assert.EqualValues(t, 1, tokenCalls.Load())
}

func TestGetTokenAcceptsAlternateFieldNames(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/csrf/token", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"csrf_token":"snake"}`))
	})
	c, _ := newTestClient(t, mux)
	asLoggedIn(c)

	token, err := c.GetToken(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "snake", token)
}

func TestGetTokenSingleFlight(t *testing.T) {
	var tokenCalls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/csrf/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		time.Sleep(100 * time.Millisecond)
		w.Write([]byte(`{"token":"shared"}`))
	})
	c, _ := newTestClient(t, mux)
	asLoggedIn(c)

	const callers = 8
	results := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := c.GetToken(context.Background(), false)
			assert.NoError(t, err)
			results[i] = token
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, tokenCalls.Load())
	for _, token := range results {
		assert.Equal(t, "shared", token)
	}
}

func TestGetTokenBackoffAfterUnauthorized(t *testing.T) {
	var tokenCalls atomic.Int64
	var recovered atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/csrf/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		if recovered.Load() {
			w.Write([]byte(`{"token":"fresh"}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"unauthorized"}`))
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	c, navigations := newTestClient(t, mux)
	asLoggedIn(c)

	token, err := c.GetToken(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.EqualValues(t, 1, tokenCalls.Load())
	assert.EqualValues(t, 1, navigations.Load(), "recovery exhaustion forces sign-out")

	remaining := c.backoffRemaining()
	assert.Greater(t, remaining, 50*time.Second)
	assert.LessOrEqual(t, remaining, 60*time.Second)

	// The failure handler cleared the principal; restore it to observe the
	// backoff behavior for an authenticated session.
	asLoggedIn(c)

	token, err = c.GetToken(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.EqualValues(t, 1, tokenCalls.Load(), "backoff suppresses the fetch")

	// force bypasses the window; a successful fetch clears it.
	recovered.Store(true)
	token, err = c.GetToken(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "fresh", token)
	assert.EqualValues(t, 2, tokenCalls.Load())
	assert.Zero(t, c.backoffRemaining())
}

func TestGetTokenTransientFailureShortBackoff(t *testing.T) {
	var tokenCalls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/csrf/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	c, navigations := newTestClient(t, mux)
	asLoggedIn(c)

	token, err := c.GetToken(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.Zero(t, navigations.Load(), "non-auth failures do not sign out")

	remaining := c.backoffRemaining()
	assert.Greater(t, remaining, 5*time.Second)
	assert.LessOrEqual(t, remaining, 10*time.Second)

	_, err = c.GetToken(context.Background(), false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, tokenCalls.Load())
}

func TestGetTokenRecoversViaSessionRefresh(t *testing.T) {
	var tokenCalls, refreshCalls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/csrf/token", func(w http.ResponseWriter, r *http.Request) {
		if tokenCalls.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"access token expired"}`))
			return
		}
		w.Write([]byte(`{"token":"recovered"}`))
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		w.Write([]byte(`{"message":"token refreshed"}`))
	})
	c, navigations := newTestClient(t, mux)
	asLoggedIn(c)

	token, err := c.GetToken(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "recovered", token)
	assert.EqualValues(t, 2, tokenCalls.Load())
	assert.EqualValues(t, 1, refreshCalls.Load())
	assert.Zero(t, navigations.Load())
}

func TestRefreshCSRFHeaderDelivery(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/csrf/refresh", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(csrfHeaderName, "xyz789")
		w.Write([]byte(`{}`))
	})
	c, _ := newTestClient(t, mux)
	asLoggedIn(c)

	token, err := c.RefreshCSRF(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "xyz789", token)
	assert.Equal(t, "xyz789", c.creds.Token())
}

func TestRefreshCSRFUnauthorizedClearsAndBacksOff(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/csrf/refresh", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"unauthorized"}`))
	})
	var tokenCalls atomic.Int64
	mux.HandleFunc("/csrf/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		w.Write([]byte(`{"token":"new"}`))
	})
	c, _ := newTestClient(t, mux)
	asLoggedIn(c)
	c.creds.setToken("stale")

	token, err := c.RefreshCSRF(context.Background())
	require.NoError(t, err)
	// The re-acquisition through GetToken is suppressed by the fresh
	// backoff window, so the rotate yields nothing.
	assert.Empty(t, token)
	assert.Zero(t, tokenCalls.Load())
	assert.Greater(t, c.backoffRemaining(), 50*time.Second)
}

func TestRefreshCSRFRefusesDuringBackoff(t *testing.T) {
	var refreshCalls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/csrf/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		w.Header().Set(csrfHeaderName, "ignored")
		w.Write([]byte(`{}`))
	})
	c, _ := newTestClient(t, mux)
	asLoggedIn(c)
	c.creds.setBackoff(time.Minute)

	token, err := c.RefreshCSRF(context.Background())
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.Zero(t, refreshCalls.Load())
}

func TestClearCSRFResetsState(t *testing.T) {
	c, _ := newTestClient(t, http.NewServeMux())
	c.creds.setToken("held")
	c.creds.setBackoff(time.Minute)

	c.ClearCSRF()

	assert.Empty(t, c.creds.Token())
	assert.Zero(t, c.backoffRemaining())
	assert.True(t, c.creds.csrfFetchedAt().IsZero())
}

func TestDisabledClientIsInert(t *testing.T) {
	var calls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})
	c, _ := newTestClient(t, mux, WithDisabled())
	asLoggedIn(c)

	token, err := c.GetToken(context.Background(), true)
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.False(t, c.RefreshJWT(context.Background()))
	assert.Zero(t, calls.Load())
}
