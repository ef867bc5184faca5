package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
	"go.uber.org/zap"
)

// IntentResult is what order creation hands back to the client: the mapped
// attempt state plus the provider handshake references stored on the order.
type IntentResult struct {
	State        State
	IntentID     string
	ClientSecret string
}

// Orchestrator owns all interaction with the payment provider: intent
// create/cancel with a stable idempotency key, customer resolution,
// method attach/detach and the cached method listing.
type Orchestrator struct {
	provider Provider
	store    repository.Store
	cache    MethodCache
	logger   *zap.Logger

	providerName string
	currency     string
}

func NewOrchestrator(provider Provider, store repository.Store, cache MethodCache, providerName, currency string, logger *zap.Logger) *Orchestrator {
	if providerName == "" {
		providerName = "stripe"
	}
	if currency == "" {
		currency = "usd"
	}
	return &Orchestrator{
		provider:     provider,
		store:        store,
		cache:        cache,
		logger:       logger,
		providerName: providerName,
		currency:     currency,
	}
}

// IdempotencyKey derives the stable provider idempotency key from the
// order's correlation id, so client retries of the same order can never
// produce two provider-side charges.
func IdempotencyKey(order *models.Order) string {
	return "payment_intent_order_" + order.CorrelationID
}

// CreatePaymentIntent verifies method ownership, creates the provider intent
// under the order's idempotency key and records an unconfirmed Payment row
// through the surrounding transaction. Card declines record a failed Payment
// row outside the transaction so the audit survives the order rollback.
func (o *Orchestrator) CreatePaymentIntent(ctx context.Context, tx repository.Tx, order *models.Order, methodID string, confirm bool) (*IntentResult, error) {
	details, err := o.ensureCustomer(ctx, order.OwnerID)
	if err != nil {
		return nil, err
	}

	method, err := o.provider.RetrieveMethod(ctx, methodID)
	if err != nil {
		var perr *ProviderError
		if errors.As(err, &perr) {
			return nil, ErrMethodInvalid
		}
		return nil, fmt.Errorf("failed to retrieve payment method: %w", err)
	}
	if method.CustomerID != details.CustomerID {
		return nil, ErrPermissionDenied
	}

	intent, err := o.provider.CreateIntent(ctx, CreateIntentParams{
		Amount:         order.Total,
		Currency:       o.currency,
		CustomerID:     details.CustomerID,
		MethodID:       methodID,
		Confirm:        confirm,
		Description:    "order " + order.CorrelationID,
		IdempotencyKey: IdempotencyKey(order),
	})
	if err != nil {
		return nil, o.translateIntentError(ctx, order, methodID, err)
	}

	record := &models.Payment{
		OrderID:         &order.ID,
		PaymentMethodID: methodID,
		Amount:          order.Total,
		Currency:        o.currency,
		Status:          models.PaymentUnconfirmed,
		Provider:        o.providerName,
	}
	if err := tx.CreatePayment(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to record payment attempt: %w", err)
	}

	return &IntentResult{
		State:        stateFromIntentStatus(intent.Status),
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
	}, nil
}

// translateIntentError maps a provider failure to the error taxonomy,
// persisting the decline detail as a failed Payment row.
func (o *Orchestrator) translateIntentError(ctx context.Context, order *models.Order, methodID string, err error) error {
	var perr *ProviderError
	if !errors.As(err, &perr) {
		return fmt.Errorf("payment intent creation failed: %w", err)
	}

	switch perr.Type {
	case "card_error":
		reason := perr.Code
		if perr.DeclineCode != "" {
			reason = perr.DeclineCode
		}
		// Outside the order transaction on purpose: the failed attempt must
		// stay on record after the rollback.
		failure := &models.Payment{
			OrderID:         &order.ID,
			PaymentMethodID: methodID,
			Amount:          order.Total,
			Currency:        o.currency,
			Status:          models.PaymentFailed,
			FailureReason:   reason,
			Provider:        o.providerName,
		}
		if recErr := o.store.CreatePayment(ctx, failure); recErr != nil {
			o.logger.Error("Failed to record declined payment",
				zap.String("correlation_id", order.CorrelationID),
				zap.Error(recErr))
		}
		return &CardError{DeclineCode: perr.DeclineCode, Reason: perr.Message}
	case "idempotency_error":
		return ErrDuplicatedPayment
	case "invalid_request_error":
		return ErrMethodInvalid
	default:
		o.logger.Error("Provider rejected payment intent",
			zap.String("correlation_id", order.CorrelationID),
			zap.String("error_type", perr.Type),
			zap.String("error_code", perr.Code))
		return ErrPaymentFailed
	}
}

// CancelPaymentIntent voids the provider-side intent. Called inside the
// order-cancellation transaction; a provider failure here must abort the
// whole cancellation.
func (o *Orchestrator) CancelPaymentIntent(ctx context.Context, intentID string) error {
	if _, err := o.provider.CancelIntent(ctx, intentID); err != nil {
		return fmt.Errorf("failed to cancel payment intent: %w", err)
	}
	return nil
}

// AttachPaymentMethod attaches a provider method to the user's customer
// record, creating the customer lazily, and invalidates the cached list.
func (o *Orchestrator) AttachPaymentMethod(ctx context.Context, userID uint, methodID string) error {
	if _, err := o.provider.RetrieveMethod(ctx, methodID); err != nil {
		var perr *ProviderError
		if errors.As(err, &perr) {
			return ErrMethodInvalid
		}
		return fmt.Errorf("failed to retrieve payment method: %w", err)
	}

	details, err := o.ensureCustomer(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := o.provider.AttachMethod(ctx, methodID, details.CustomerID); err != nil {
		var perr *ProviderError
		if errors.As(err, &perr) {
			return ErrMethodInvalid
		}
		return fmt.Errorf("failed to attach payment method: %w", err)
	}

	o.cache.Invalidate(ctx, userID)
	return nil
}

// DetachPaymentMethod verifies ownership, detaches the method provider-side
// and invalidates the cached list.
func (o *Orchestrator) DetachPaymentMethod(ctx context.Context, userID uint, methodID string) error {
	details, err := o.store.PaymentDetailsByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPermissionDenied
		}
		return err
	}

	method, err := o.provider.RetrieveMethod(ctx, methodID)
	if err != nil {
		var perr *ProviderError
		if errors.As(err, &perr) {
			return ErrMethodInvalid
		}
		return fmt.Errorf("failed to retrieve payment method: %w", err)
	}
	if method.CustomerID != details.CustomerID {
		return ErrPermissionDenied
	}

	if _, err := o.provider.DetachMethod(ctx, methodID); err != nil {
		return fmt.Errorf("failed to detach payment method: %w", err)
	}

	o.cache.Invalidate(ctx, userID)
	return nil
}

// PaymentMethods returns the user's methods, served from cache when fresh.
// Card fingerprints are stripped before anything leaves this package.
func (o *Orchestrator) PaymentMethods(ctx context.Context, userID uint) ([]Method, error) {
	if methods, ok := o.cache.Get(ctx, userID); ok {
		return methods, nil
	}

	details, err := o.store.PaymentDetailsByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// No payment interaction yet; nothing to list.
			return []Method{}, nil
		}
		return nil, err
	}

	methods, err := o.provider.ListMethods(ctx, details.CustomerID)
	if err != nil {
		var perr *ProviderError
		if errors.As(err, &perr) && perr.NotFound() {
			// Stale customer mapping; re-link and report an empty list.
			if _, healErr := o.ensureCustomer(ctx, userID); healErr != nil {
				o.logger.Warn("Failed to heal stale customer mapping",
					zap.Uint("user_id", userID), zap.Error(healErr))
			}
			return []Method{}, nil
		}
		return nil, fmt.Errorf("failed to list payment methods: %w", err)
	}

	for i := range methods {
		methods[i].Card.Fingerprint = ""
	}
	o.cache.Set(ctx, userID, methods)
	return methods, nil
}

// ensureCustomer resolves the user's provider customer, creating it on first
// use. A stale stored customer id (deleted provider-side) is recreated and
// re-linked rather than surfaced.
func (o *Orchestrator) ensureCustomer(ctx context.Context, userID uint) (*models.PaymentDetails, error) {
	details, err := o.store.PaymentDetailsByUser(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if details != nil {
		if _, err := o.provider.RetrieveCustomer(ctx, details.CustomerID); err == nil {
			return details, nil
		} else {
			var perr *ProviderError
			if !errors.As(err, &perr) || !perr.NotFound() {
				return nil, fmt.Errorf("failed to retrieve customer: %w", err)
			}
			o.logger.Warn("Stale provider customer, recreating",
				zap.Uint("user_id", userID),
				zap.String("customer_id", details.CustomerID))
		}
	}

	customer, err := o.provider.CreateCustomer(ctx, fmt.Sprintf("user-%d", userID), "")
	if err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}

	if details == nil {
		details = &models.PaymentDetails{
			UserID:   userID,
			Provider: o.providerName,
		}
	}
	details.CustomerID = customer.ID
	if err := o.store.SavePaymentDetails(ctx, details); err != nil {
		return nil, fmt.Errorf("failed to save payment details: %w", err)
	}
	return details, nil
}
