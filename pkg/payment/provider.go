package payment

import (
	"context"
	"fmt"
)

// State is the lifecycle of one payment attempt as seen by this system,
// mapped from provider intent statuses.
type State string

const (
	StateProcessing           State = "processing"
	StateSucceeded            State = "succeeded"
	StateActionRequired       State = "action_required"
	StateConfirmationRequired State = "confirmation_required"
	StateFailed               State = "failed"
	StateCancelled            State = "cancelled"
)

func stateFromIntentStatus(status string) State {
	switch status {
	case "processing":
		return StateProcessing
	case "requires_confirmation":
		return StateConfirmationRequired
	case "succeeded":
		return StateSucceeded
	case "requires_action":
		return StateActionRequired
	case "requires_payment_method", "canceled":
		return StateFailed
	default:
		return StateProcessing
	}
}

// Intent is a provider-side charge attempt with its own lifecycle.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Card struct {
	Brand       string `json:"brand"`
	Last4       string `json:"last4"`
	ExpMonth    int    `json:"exp_month"`
	ExpYear     int    `json:"exp_year"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

type Method struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer,omitempty"`
	Type       string `json:"type"`
	Card       Card   `json:"card"`
}

type CreateIntentParams struct {
	Amount         int64
	Currency       string
	CustomerID     string
	MethodID       string
	Confirm        bool
	Description    string
	IdempotencyKey string
}

// Provider is the external payment-provider surface the orchestrator needs.
// One production implementation (StripeProvider); tests inject a double.
type Provider interface {
	CreateIntent(ctx context.Context, params CreateIntentParams) (*Intent, error)
	CancelIntent(ctx context.Context, intentID string) (*Intent, error)
	CreateCustomer(ctx context.Context, name, email string) (*Customer, error)
	RetrieveCustomer(ctx context.Context, customerID string) (*Customer, error)
	RetrieveMethod(ctx context.Context, methodID string) (*Method, error)
	AttachMethod(ctx context.Context, methodID, customerID string) (*Method, error)
	DetachMethod(ctx context.Context, methodID string) (*Method, error)
	ListMethods(ctx context.Context, customerID string) ([]Method, error)
}

// ProviderError is a decoded provider API error response.
type ProviderError struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	DeclineCode string `json:"decline_code"`
	Message     string `json:"message"`
	StatusCode  int    `json:"-"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error: %s/%s: %s", e.Type, e.Code, e.Message)
}

// NotFound reports a missing provider-side resource (stale customer or
// method reference).
func (e *ProviderError) NotFound() bool {
	return e.Code == "resource_missing" || e.StatusCode == 404
}
