package paypal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccpq/academy-service/internal/config"
)

type fakePayPal struct {
	server       *httptest.Server
	tokenCalls   atomic.Int32
	orderCalls   atomic.Int32
	captureCalls atomic.Int32

	lastOrder     CreateOrderRequest
	lastRequestID string

	orderStatuses []int
	tokenStatus   int
	captureBody   string
}

func newFakePayPal(t *testing.T) *fakePayPal {
	t.Helper()
	f := &fakePayPal{tokenStatus: http.StatusOK}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "secret" || f.tokenStatus != http.StatusOK {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"token-123","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		n := int(f.orderCalls.Add(1))
		f.lastRequestID = r.Header.Get("PayPal-Request-Id")
		_ = json.NewDecoder(r.Body).Decode(&f.lastOrder)

		status := http.StatusCreated
		if n <= len(f.orderStatuses) {
			status = f.orderStatuses[n-1]
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status >= 400 {
			_, _ = w.Write([]byte(`{"name":"INVALID_REQUEST"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"ORDER-1","status":"PAYER_ACTION_REQUIRED","links":[
			{"href":"https://api/v2/checkout/orders/ORDER-1","rel":"self"},
			{"href":"https://paypal.test/checkoutnow?token=ORDER-1","rel":"payer-action"}]}`))
	})
	mux.HandleFunc("/v2/checkout/orders/ORDER-1/capture", func(w http.ResponseWriter, r *http.Request) {
		f.captureCalls.Add(1)
		f.lastRequestID = r.Header.Get("PayPal-Request-Id")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(f.captureBody))
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func testConfig(base string) config.PayPalConfig {
	return config.PayPalConfig{
		ClientID:         "client-id",
		Secret:           "secret",
		APIBase:          base,
		BrandName:        "CCPQ Academy",
		Locale:           "en-ZA",
		DefaultReturnURL: "https://ccpq.co.za/payment-success",
		DefaultCancelURL: "https://ccpq.co.za/courses",
		Timeout:          5 * time.Second,
		MaxRetries:       2,
		RetryWait:        time.Millisecond,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateOrderPayload(t *testing.T) {
	fake := newFakePayPal(t)
	client := NewClient(testConfig(fake.server.URL), testLogger())

	order, err := client.CreateOrder(context.Background(), OrderParams{
		CourseID:    "C1",
		Description: "Payroll Administration",
		AmountCents: 49900,
		RequestID:   "idem-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "ORDER-1", order.ID)
	assert.Equal(t, "https://paypal.test/checkoutnow?token=ORDER-1", order.ApprovalURL())
	assert.NotEmpty(t, order.Raw)

	require.Len(t, fake.lastOrder.PurchaseUnits, 1)
	unit := fake.lastOrder.PurchaseUnits[0]
	assert.Equal(t, "C1", unit.ReferenceID)
	assert.Equal(t, "499.00", unit.Amount.Value)
	assert.Equal(t, "ZAR", unit.Amount.CurrencyCode)
	assert.Equal(t, IntentCapture, fake.lastOrder.Intent)

	experience := fake.lastOrder.PaymentSource.PayPal.ExperienceContext
	assert.Equal(t, "en-ZA", experience.Locale)
	assert.Equal(t, "PAY_NOW", experience.UserAction)
	assert.Equal(t, "https://ccpq.co.za/payment-success", experience.ReturnURL)
	assert.Equal(t, "idem-1", fake.lastRequestID)
}

func TestCreateOrderRetriesServerErrors(t *testing.T) {
	fake := newFakePayPal(t)
	fake.orderStatuses = []int{http.StatusServiceUnavailable, http.StatusTooManyRequests}
	client := NewClient(testConfig(fake.server.URL), testLogger())

	order, err := client.CreateOrder(context.Background(), OrderParams{CourseID: "C1", AmountCents: 100})
	require.NoError(t, err)
	assert.Equal(t, "ORDER-1", order.ID)
	assert.Equal(t, int32(3), fake.orderCalls.Load())
}

func TestCreateOrderDoesNotRetryClientErrors(t *testing.T) {
	fake := newFakePayPal(t)
	fake.orderStatuses = []int{http.StatusUnprocessableEntity}
	client := NewClient(testConfig(fake.server.URL), testLogger())

	_, err := client.CreateOrder(context.Background(), OrderParams{CourseID: "C1", AmountCents: 100})

	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, http.StatusUnprocessableEntity, providerErr.StatusCode)
	assert.Contains(t, providerErr.Body, "INVALID_REQUEST")
	assert.Equal(t, int32(1), fake.orderCalls.Load())
}

func TestMissingCredentials(t *testing.T) {
	fake := newFakePayPal(t)
	cfg := testConfig(fake.server.URL)
	cfg.Secret = ""
	client := NewClient(cfg, testLogger())

	_, err := client.CreateOrder(context.Background(), OrderParams{CourseID: "C1", AmountCents: 100})

	var cfgErr *config.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "PayPal credentials not configured", err.Error())
	assert.Equal(t, int32(0), fake.tokenCalls.Load())
}

func TestAuthenticationFailure(t *testing.T) {
	fake := newFakePayPal(t)
	fake.tokenStatus = http.StatusUnauthorized
	client := NewClient(testConfig(fake.server.URL), testLogger())

	_, err := client.CreateOrder(context.Background(), OrderParams{CourseID: "C1", AmountCents: 100})
	assert.True(t, errors.Is(err, ErrAuthentication))
	assert.True(t, errors.Is(err, ErrProviderUnavailable))
	assert.Equal(t, int32(0), fake.orderCalls.Load())
}

func TestCaptureOrder(t *testing.T) {
	fake := newFakePayPal(t)
	fake.captureBody = `{"id":"ORDER-1","status":"COMPLETED",
		"payer":{"email_address":"buyer@example.com"},
		"purchase_units":[{"reference_id":"C1","payments":{"captures":[
			{"id":"CAP-1","status":"COMPLETED","amount":{"currency_code":"ZAR","value":"499.00"}}]}}]}`
	client := NewClient(testConfig(fake.server.URL), testLogger())

	order, err := client.CaptureOrder(context.Background(), "ORDER-1")
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, order.Status)
	assert.Equal(t, "C1", order.ReferenceID())
	assert.Equal(t, "buyer@example.com", order.PayerEmail())
	require.NotNil(t, order.FirstCapture())
	assert.Equal(t, "CAP-1", order.FirstCapture().ID)
	assert.Equal(t, "capture-ORDER-1", fake.lastRequestID)
}

func TestApprovalURLFallback(t *testing.T) {
	order := &Order{Links: []Link{{Rel: "self", Href: "a"}, {Rel: "approve", Href: "b"}}}
	assert.Equal(t, "b", order.ApprovalURL())

	assert.Empty(t, (&Order{}).ApprovalURL())
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{49900, "499.00"},
		{5, "0.05"},
		{123456, "1234.56"},
		{0, "0.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatAmount(tt.cents))
	}
}
