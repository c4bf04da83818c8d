package devserver_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/younoch/property-manegment-frontend-sub000/client"
	"github.com/younoch/property-manegment-frontend-sub000/devserver"
	"github.com/younoch/property-manegment-frontend-sub000/session/memory"
)

func startStub(t *testing.T, opts ...devserver.Option) *httptest.Server {
	t.Helper()
	opts = append([]devserver.Option{
		devserver.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	s, err := devserver.New(opts...)
	require.NoError(t, err)
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return srv
}

func newSDK(t *testing.T, baseURL string) (*client.Client, *atomic.Int64) {
	t.Helper()
	var navigations atomic.Int64
	c, err := client.New(baseURL, memory.NewStore(),
		client.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		client.WithNavigation(func() error {
			navigations.Add(1)
			return nil
		}, nil),
	)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, &navigations
}

func TestEndToEndLeaseLifecycle(t *testing.T) {
	srv := startStub(t)
	c, navigations := newSDK(t, srv.URL)

	user, err := c.SignUp(context.Background(), "Ada", "ada@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "manager", user.Role)
	require.True(t, c.IsLoggedIn())

	lease, err := c.GetLease(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "draft", lease.Status)

	lease, err = c.ActivateLease(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "active", lease.Status)

	invoice, err := c.CreateInvoice(context.Background(), client.CreateInvoiceRequest{
		LeaseID:     1,
		AmountCents: 125000,
		DueDate:     "2026-10-01",
	})
	require.NoError(t, err)
	assert.Equal(t, "open", invoice.Status)

	payment, err := c.RecordPayment(context.Background(), invoice.ID, client.RecordPaymentRequest{
		AmountCents: 125000,
		Method:      "bank_transfer",
	})
	require.NoError(t, err)
	assert.Equal(t, invoice.ID, payment.InvoiceID)

	who, err := c.WhoAmI(context.Background())
	require.NoError(t, err)
	assert.Equal(t, user.ID, who.ID)

	assert.Zero(t, navigations.Load())
}

// The access cookie expires mid-session; the next protected call must
// recover through the refresh endpoint without surfacing an error.
func TestEndToEndAccessTokenExpiryRecovery(t *testing.T) {
	srv := startStub(t, devserver.WithAccessTTL(time.Second))
	c, navigations := newSDK(t, srv.URL)

	_, err := c.SignUp(context.Background(), "Ada", "ada@example.com", "hunter22")
	require.NoError(t, err)

	time.Sleep(1200 * time.Millisecond)

	lease, err := c.ActivateLease(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "active", lease.Status)
	assert.Zero(t, navigations.Load())
	assert.True(t, c.IsLoggedIn())
}

// A concurrent sign-in from another device rotates the server-side CSRF
// token, invalidating the one this client holds. The next mutating call
// must recover transparently.
func TestEndToEndStaleCSRFRecovery(t *testing.T) {
	srv := startStub(t)
	c, navigations := newSDK(t, srv.URL)

	_, err := c.SignUp(context.Background(), "Ada", "ada@example.com", "hunter22")
	require.NoError(t, err)

	// Second device signs in, taking over the CSRF slot for this user.
	other := &http.Client{}
	resp, err := other.Post(srv.URL+"/auth/signin", "application/json",
		strings.NewReader(`{"email":"ada@example.com","password":"hunter22"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	lease, err := c.ActivateLease(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "active", lease.Status)
	assert.Zero(t, navigations.Load())
}

func TestEndToEndSignOut(t *testing.T) {
	srv := startStub(t)
	c, _ := newSDK(t, srv.URL)

	_, err := c.SignUp(context.Background(), "Ada", "ada@example.com", "hunter22")
	require.NoError(t, err)

	c.SignOut(context.Background())
	assert.False(t, c.IsLoggedIn())

	_, err = c.WhoAmI(context.Background())
	assert.Error(t, err)
}
