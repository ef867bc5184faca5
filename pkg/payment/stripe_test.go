package payment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/storefront/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStripeTestProvider(t *testing.T, handler http.HandlerFunc) *StripeProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewStripeProvider(&config.PaymentConfig{
		BaseURL:       server.URL,
		TestSecretKey: "sk_test_123",
		Timeout:       5 * time.Second,
	})
}

func TestStripeCreateIntentRequest(t *testing.T) {
	var captured *http.Request
	var form map[string][]string
	provider := newStripeTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		captured = r
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "pi_123",
			"client_secret": "pi_123_secret_abc",
			"status": "requires_confirmation",
			"amount": 1800,
			"currency": "usd"
		}`))
	})

	intent, err := provider.CreateIntent(context.Background(), CreateIntentParams{
		Amount:         1800,
		Currency:       "usd",
		CustomerID:     "cus_1",
		MethodID:       "pm_1",
		Confirm:        false,
		Description:    "order abc",
		IdempotencyKey: "payment_intent_order_abc",
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, captured.Method)
	assert.Equal(t, "/v1/payment_intents", captured.URL.Path)
	assert.Equal(t, "Bearer sk_test_123", captured.Header.Get("Authorization"))
	assert.Equal(t, "application/x-www-form-urlencoded", captured.Header.Get("Content-Type"))
	assert.Equal(t, "payment_intent_order_abc", captured.Header.Get("Idempotency-Key"))

	assert.Equal(t, []string{"1800"}, form["amount"])
	assert.Equal(t, []string{"usd"}, form["currency"])
	assert.Equal(t, []string{"cus_1"}, form["customer"])
	assert.Equal(t, []string{"pm_1"}, form["payment_method"])
	assert.Equal(t, []string{"false"}, form["confirm"])
	assert.Equal(t, []string{"order abc"}, form["description"])

	assert.Equal(t, "pi_123", intent.ID)
	assert.Equal(t, "pi_123_secret_abc", intent.ClientSecret)
	assert.Equal(t, "requires_confirmation", intent.Status)
}

func TestStripeErrorDecoding(t *testing.T) {
	provider := newStripeTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{
			"error": {
				"type": "card_error",
				"code": "card_declined",
				"decline_code": "insufficient_funds",
				"message": "Your card has insufficient funds."
			}
		}`))
	})

	_, err := provider.CreateIntent(context.Background(), CreateIntentParams{Amount: 100, Currency: "usd"})
	require.Error(t, err)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "card_error", perr.Type)
	assert.Equal(t, "card_declined", perr.Code)
	assert.Equal(t, "insufficient_funds", perr.DeclineCode)
	assert.Equal(t, http.StatusPaymentRequired, perr.StatusCode)
	assert.False(t, perr.NotFound())
}

func TestStripeNotFoundError(t *testing.T) {
	provider := newStripeTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": {"type": "invalid_request_error", "code": "resource_missing", "message": "No such customer"}}`))
	})

	_, err := provider.RetrieveCustomer(context.Background(), "cus_gone")
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.True(t, perr.NotFound())
}

func TestStripeCancelIntentPath(t *testing.T) {
	var path string
	provider := newStripeTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "pi_9", "status": "canceled"}`))
	})

	intent, err := provider.CancelIntent(context.Background(), "pi_9")
	require.NoError(t, err)
	assert.Equal(t, "/v1/payment_intents/pi_9/cancel", path)
	assert.Equal(t, "canceled", intent.Status)
}

func TestStripeListMethodsQuery(t *testing.T) {
	var query string
	provider := newStripeTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"data": [
				{"id": "pm_1", "customer": "cus_1", "type": "card", "card": {"brand": "visa", "last4": "4242"}}
			]
		}`))
	})

	methods, err := provider.ListMethods(context.Background(), "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "customer=cus_1&type=card", query)
	require.Len(t, methods, 1)
	assert.Equal(t, "pm_1", methods[0].ID)
	assert.Equal(t, "visa", methods[0].Card.Brand)
}

func TestStripeMalformedErrorBody(t *testing.T) {
	provider := newStripeTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream error"))
	})

	_, err := provider.RetrieveMethod(context.Background(), "pm_1")
	require.Error(t, err)
	var perr *ProviderError
	assert.False(t, errors.As(err, &perr), "undecodable body must not yield a ProviderError")
	assert.Contains(t, err.Error(), "502")
}
