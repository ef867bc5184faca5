package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/storefront/pkg/config"
)

// StripeProvider talks to the Stripe REST API with form-encoded requests.
type StripeProvider struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewStripeProvider(cfg *config.PaymentConfig) *StripeProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &StripeProvider{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		secretKey: cfg.SecretKey(),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (p *StripeProvider) CreateIntent(ctx context.Context, params CreateIntentParams) (*Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(params.Amount, 10))
	form.Set("currency", params.Currency)
	form.Set("customer", params.CustomerID)
	form.Set("payment_method", params.MethodID)
	form.Set("confirm", strconv.FormatBool(params.Confirm))
	if params.Description != "" {
		form.Set("description", params.Description)
	}

	var intent Intent
	err := p.do(ctx, http.MethodPost, "/v1/payment_intents", form, params.IdempotencyKey, &intent)
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (p *StripeProvider) CancelIntent(ctx context.Context, intentID string) (*Intent, error) {
	var intent Intent
	path := fmt.Sprintf("/v1/payment_intents/%s/cancel", url.PathEscape(intentID))
	if err := p.do(ctx, http.MethodPost, path, url.Values{}, "", &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

func (p *StripeProvider) CreateCustomer(ctx context.Context, name, email string) (*Customer, error) {
	form := url.Values{}
	form.Set("name", name)
	if email != "" {
		form.Set("email", email)
	}

	var customer Customer
	if err := p.do(ctx, http.MethodPost, "/v1/customers", form, "", &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

func (p *StripeProvider) RetrieveCustomer(ctx context.Context, customerID string) (*Customer, error) {
	var customer Customer
	path := "/v1/customers/" + url.PathEscape(customerID)
	if err := p.do(ctx, http.MethodGet, path, nil, "", &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

func (p *StripeProvider) RetrieveMethod(ctx context.Context, methodID string) (*Method, error) {
	var method Method
	path := "/v1/payment_methods/" + url.PathEscape(methodID)
	if err := p.do(ctx, http.MethodGet, path, nil, "", &method); err != nil {
		return nil, err
	}
	return &method, nil
}

func (p *StripeProvider) AttachMethod(ctx context.Context, methodID, customerID string) (*Method, error) {
	form := url.Values{}
	form.Set("customer", customerID)

	var method Method
	path := fmt.Sprintf("/v1/payment_methods/%s/attach", url.PathEscape(methodID))
	if err := p.do(ctx, http.MethodPost, path, form, "", &method); err != nil {
		return nil, err
	}
	return &method, nil
}

func (p *StripeProvider) DetachMethod(ctx context.Context, methodID string) (*Method, error) {
	var method Method
	path := fmt.Sprintf("/v1/payment_methods/%s/detach", url.PathEscape(methodID))
	if err := p.do(ctx, http.MethodPost, path, url.Values{}, "", &method); err != nil {
		return nil, err
	}
	return &method, nil
}

func (p *StripeProvider) ListMethods(ctx context.Context, customerID string) ([]Method, error) {
	query := url.Values{}
	query.Set("customer", customerID)
	query.Set("type", "card")

	var list struct {
		Data []Method `json:"data"`
	}
	path := "/v1/payment_methods?" + query.Encode()
	if err := p.do(ctx, http.MethodGet, path, nil, "", &list); err != nil {
		return nil, err
	}
	return list.Data, nil
}

// do performs one API call. Non-2xx responses are decoded into a
// ProviderError; idempotencyKey, when set, makes retried calls safe.
func (p *StripeProvider) do(ctx context.Context, method, path string, form url.Values, idempotencyKey string, dest interface{}) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build provider request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read provider response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error ProviderError `json:"error"`
		}
		if err := json.Unmarshal(data, &apiErr); err != nil {
			return fmt.Errorf("provider returned status %d", resp.StatusCode)
		}
		apiErr.Error.StatusCode = resp.StatusCode
		return &apiErr.Error
	}

	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode provider response: %w", err)
	}
	return nil
}
