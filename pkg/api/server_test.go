package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/storefront/pkg/cart"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/inventory"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/orders"
	"github.com/example/storefront/pkg/payment"
	"github.com/example/storefront/pkg/repository"
	"github.com/example/storefront/pkg/webhook"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type providerStub struct {
	customers map[string]payment.Customer
	methods   map[string]payment.Method
	intents   map[string]*payment.Intent
	byKey     map[string]string
	seq       int
}

func newProviderStub() *providerStub {
	return &providerStub{
		customers: make(map[string]payment.Customer),
		methods:   make(map[string]payment.Method),
		intents:   make(map[string]*payment.Intent),
		byKey:     make(map[string]string),
	}
}

func stubMissing() *payment.ProviderError {
	return &payment.ProviderError{Type: "invalid_request_error", Code: "resource_missing", StatusCode: 404}
}

func (p *providerStub) CreateIntent(ctx context.Context, params payment.CreateIntentParams) (*payment.Intent, error) {
	if id, ok := p.byKey[params.IdempotencyKey]; ok {
		return p.intents[id], nil
	}
	p.seq++
	intent := &payment.Intent{
		ID:           fmt.Sprintf("pi_%d", p.seq),
		ClientSecret: fmt.Sprintf("pi_%d_secret", p.seq),
		Status:       "requires_confirmation",
		Amount:       params.Amount,
		Currency:     params.Currency,
	}
	p.intents[intent.ID] = intent
	p.byKey[params.IdempotencyKey] = intent.ID
	return intent, nil
}

func (p *providerStub) CancelIntent(ctx context.Context, intentID string) (*payment.Intent, error) {
	intent, ok := p.intents[intentID]
	if !ok {
		return nil, stubMissing()
	}
	intent.Status = "canceled"
	return intent, nil
}

func (p *providerStub) CreateCustomer(ctx context.Context, name, email string) (*payment.Customer, error) {
	p.seq++
	customer := payment.Customer{ID: fmt.Sprintf("cus_%d", p.seq), Name: name, Email: email}
	p.customers[customer.ID] = customer
	return &customer, nil
}

func (p *providerStub) RetrieveCustomer(ctx context.Context, customerID string) (*payment.Customer, error) {
	customer, ok := p.customers[customerID]
	if !ok {
		return nil, stubMissing()
	}
	return &customer, nil
}

func (p *providerStub) RetrieveMethod(ctx context.Context, methodID string) (*payment.Method, error) {
	method, ok := p.methods[methodID]
	if !ok {
		return nil, stubMissing()
	}
	return &method, nil
}

func (p *providerStub) AttachMethod(ctx context.Context, methodID, customerID string) (*payment.Method, error) {
	method := p.methods[methodID]
	method.ID = methodID
	method.CustomerID = customerID
	p.methods[methodID] = method
	return &method, nil
}

func (p *providerStub) DetachMethod(ctx context.Context, methodID string) (*payment.Method, error) {
	method, ok := p.methods[methodID]
	if !ok {
		return nil, stubMissing()
	}
	method.CustomerID = ""
	p.methods[methodID] = method
	return &method, nil
}

func (p *providerStub) ListMethods(ctx context.Context, customerID string) ([]payment.Method, error) {
	if _, ok := p.customers[customerID]; !ok {
		return nil, stubMissing()
	}
	var out []payment.Method
	for _, m := range p.methods {
		if m.CustomerID == customerID {
			out = append(out, m)
		}
	}
	return out, nil
}

type nullCache struct{}

func (nullCache) Get(ctx context.Context, userID uint) ([]payment.Method, bool)  { return nil, false }
func (nullCache) Set(ctx context.Context, userID uint, methods []payment.Method) {}
func (nullCache) Invalidate(ctx context.Context, userID uint)                    {}

type apiEnv struct {
	store    *repository.MemoryStore
	provider *providerStub
	router   *gin.Engine
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	store := repository.NewMemoryStore()
	provider := newProviderStub()
	logger := zap.NewNop()
	orchestrator := payment.NewOrchestrator(provider, store, nullCache{}, "stripe", "usd", logger)
	carts := cart.NewService(store, logger)
	orderSvc := orders.NewService(store, carts, inventory.NewLedger(), orchestrator, nil, "stripe", logger)
	reconciler := webhook.NewReconciler(store, orderSvc, nil, "stripe", logger)

	cfg := &config.Config{}
	cfg.Payment.WebhookSecret = "whsec_test"

	srv := NewServer(cfg, logger, nil, carts, orderSvc, orchestrator, reconciler)
	srv.SetupRoutes()
	return &apiEnv{store: store, provider: provider, router: srv.Router()}
}

func (e *apiEnv) linkUser(t *testing.T, userID uint) string {
	t.Helper()
	customerID := fmt.Sprintf("cus_u%d", userID)
	methodID := fmt.Sprintf("pm_u%d", userID)
	e.provider.customers[customerID] = payment.Customer{ID: customerID}
	e.provider.methods[methodID] = payment.Method{ID: methodID, CustomerID: customerID, Type: "card"}
	require.NoError(t, e.store.SavePaymentDetails(context.Background(), &models.PaymentDetails{
		UserID:     userID,
		CustomerID: customerID,
		Provider:   "stripe",
	}))
	return methodID
}

func (e *apiEnv) seedProduct(t *testing.T, price int64, stock int, discount *models.Discount) uint {
	t.Helper()
	p := &models.Product{Name: "widget", Price: price, Stock: stock, Discount: discount}
	require.NoError(t, e.store.SaveProduct(context.Background(), p))
	return p.ID
}

func (e *apiEnv) do(t *testing.T, method, path string, userID uint, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set("X-User-ID", fmt.Sprintf("%d", userID))
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestAuthRequired(t *testing.T) {
	e := newAPIEnv(t)

	w := e.do(t, http.MethodGet, "/api/v1/cart", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("X-User-ID", "not-a-number")
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealthAndMetricsUnauthenticated(t *testing.T) {
	e := newAPIEnv(t)

	w := e.do(t, http.MethodGet, "/health", 0, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodGet, "/metrics", 0, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOrderMutationMethodsNotAllowed(t *testing.T) {
	e := newAPIEnv(t)

	for _, method := range []string{http.MethodPut, http.MethodPatch, http.MethodDelete} {
		w := e.do(t, method, "/api/v1/orders/1", 1, gin.H{})
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, method)
	}
}

func TestCreateOrderEndpoint(t *testing.T) {
	e := newAPIEnv(t)
	methodID := e.linkUser(t, 1)
	productID := e.seedProduct(t, 1000, 5, &models.Discount{Percent: 10, Active: true})

	w := e.do(t, http.MethodPut, "/api/v1/cart", 1, gin.H{"product_id": productID, "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPost, "/api/v1/orders", 1, gin.H{"payment_method_id": methodID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decodeBody(t, w)
	order := body["order"].(map[string]interface{})
	assert.Equal(t, float64(1800), order["total"])
	assert.Equal(t, "pending", order["state"])
	assert.NotEmpty(t, body["client_secret"])
	assert.Equal(t, "unconfirmed", body["payment_state"])

	items := order["items"].([]interface{})
	require.Len(t, items, 1)
	line := items[0].(map[string]interface{})
	assert.Equal(t, float64(900), line["unit_price"])
	assert.Equal(t, float64(2), line["quantity"])

	// The cart is consumed by the order.
	w = e.do(t, http.MethodGet, "/api/v1/cart", 1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeBody(t, w)["items"])
}

func TestCreateOrderValidation(t *testing.T) {
	e := newAPIEnv(t)
	e.linkUser(t, 1)

	w := e.do(t, http.MethodPost, "/api/v1/orders", 1, gin.H{})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody(t, w)
	assert.Contains(t, body, "payment_method_id")

	w = e.do(t, http.MethodPost, "/api/v1/orders", 1, gin.H{"payment_method_id": "pm_u1"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body = decodeBody(t, w)
	assert.Equal(t, []interface{}{"Your cart is empty"}, body["non_field_errors"])
}

func TestGetOrderScopedToOwner(t *testing.T) {
	e := newAPIEnv(t)
	methodID := e.linkUser(t, 1)
	productID := e.seedProduct(t, 500, 5, nil)
	e.do(t, http.MethodPut, "/api/v1/cart", 1, gin.H{"product_id": productID, "quantity": 1})
	w := e.do(t, http.MethodPost, "/api/v1/orders", 1, gin.H{"payment_method_id": methodID})
	require.Equal(t, http.StatusCreated, w.Code)
	orderID := decodeBody(t, w)["order"].(map[string]interface{})["id"].(float64)

	w = e.do(t, http.MethodGet, fmt.Sprintf("/api/v1/orders/%0.f", orderID), 1, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Another user sees 404, not 403.
	w = e.do(t, http.MethodGet, fmt.Sprintf("/api/v1/orders/%0.f", orderID), 2, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodGet, "/api/v1/orders/99999", 1, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodGet, "/api/v1/orders/abc", 1, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelOrderEndpoint(t *testing.T) {
	e := newAPIEnv(t)
	methodID := e.linkUser(t, 1)
	productID := e.seedProduct(t, 500, 5, nil)
	e.do(t, http.MethodPut, "/api/v1/cart", 1, gin.H{"product_id": productID, "quantity": 2})
	w := e.do(t, http.MethodPost, "/api/v1/orders", 1, gin.H{"payment_method_id": methodID})
	require.Equal(t, http.StatusCreated, w.Code)
	orderID := decodeBody(t, w)["order"].(map[string]interface{})["id"].(float64)

	w = e.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/orders/%0.f/cancel", orderID), 1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	order := decodeBody(t, w)["order"].(map[string]interface{})
	assert.Equal(t, "cancelled", order["state"])

	// A second cancel is rejected; only pending orders move.
	w = e.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/orders/%0.f/cancel", orderID), 1, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, []interface{}{"Only pending orders can be cancelled."}, body["non_field_errors"])
}

func TestWebhookEndpoint(t *testing.T) {
	e := newAPIEnv(t)
	methodID := e.linkUser(t, 1)
	productID := e.seedProduct(t, 500, 5, nil)
	e.do(t, http.MethodPut, "/api/v1/cart", 1, gin.H{"product_id": productID, "quantity": 1})
	w := e.do(t, http.MethodPost, "/api/v1/orders", 1, gin.H{"payment_method_id": methodID})
	require.Equal(t, http.StatusCreated, w.Code)
	orderID := uint(decodeBody(t, w)["order"].(map[string]interface{})["id"].(float64))

	payload := []byte(`{
		"id": "evt_1",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_1", "amount": 500, "currency": "usd", "payment_method": "pm_u1", "status": "succeeded"}}
	}`)

	// Unsigned and tampered deliveries never touch state.
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", webhook.Sign([]byte("other payload"), "whsec_test", time.Now()))
	rec = httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	order, err := e.store.OrderByOwner(context.Background(), 1, orderID)
	require.NoError(t, err)
	require.Equal(t, models.OrderPending, order.State)

	// Properly signed delivery marks the order paid.
	req = httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", webhook.Sign(payload, "whsec_test", time.Now()))
	rec = httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, decodeBody(t, rec)["received"])

	order, err = e.store.OrderByOwner(context.Background(), 1, orderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, order.State)
}

func TestCartEndpoints(t *testing.T) {
	e := newAPIEnv(t)
	productID := e.seedProduct(t, 250, 4, nil)

	w := e.do(t, http.MethodPut, "/api/v1/cart", 1, gin.H{"product_id": productID, "quantity": 3})
	require.Equal(t, http.StatusOK, w.Code)

	// Requesting more than stock is a 400 up front.
	w = e.do(t, http.MethodPut, "/api/v1/cart", 1, gin.H{"product_id": productID, "quantity": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodGet, "/api/v1/cart", 1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := decodeBody(t, w)["items"].([]interface{})
	require.Len(t, items, 1)
	item := items[0].(map[string]interface{})
	assert.Equal(t, float64(3), item["quantity"])

	// Another user's cart is empty.
	w = e.do(t, http.MethodGet, "/api/v1/cart", 2, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeBody(t, w)["items"])

	w = e.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/cart/%d", productID), 1, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/cart/%d", productID), 1, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaymentMethodEndpoints(t *testing.T) {
	e := newAPIEnv(t)
	methodID := e.linkUser(t, 1)

	w := e.do(t, http.MethodGet, "/api/v1/payment/methods", 1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	methods := decodeBody(t, w)["methods"].([]interface{})
	require.Len(t, methods, 1)

	// Foreign method detach is a 403.
	otherMethod := e.linkUser(t, 2)
	w = e.do(t, http.MethodDelete, "/api/v1/payment/methods/"+otherMethod, 1, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, http.MethodDelete, "/api/v1/payment/methods/"+methodID, 1, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodGet, "/api/v1/payment/methods", 1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeBody(t, w)["methods"])

	// Attaching an unknown provider method is a validation failure.
	w = e.do(t, http.MethodPost, "/api/v1/payment/methods", 1, gin.H{"payment_method_id": "pm_missing"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody(t, w), "payment_method_id")
}
