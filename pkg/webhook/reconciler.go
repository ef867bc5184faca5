package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/orders"
	"github.com/example/storefront/pkg/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
	EventIntentCanceled  = "payment_intent.canceled"
)

// Event is a provider callback. Data.Object carries the payment intent the
// event is about.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object IntentObject `json:"object"`
	} `json:"data"`
}

type IntentObject struct {
	ID               string `json:"id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	PaymentMethod    string `json:"payment_method"`
	Status           string `json:"status"`
	LastPaymentError *struct {
		Code        string `json:"code"`
		DeclineCode string `json:"decline_code"`
		Message     string `json:"message"`
	} `json:"last_payment_error"`
}

func ParseEvent(payload []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("webhook: malformed event payload: %w", err)
	}
	return &ev, nil
}

// Reconciler applies asynchronous provider events to order and payment
// state. It runs out-of-band from the request path and holds none of its
// locks: every transition re-reads the order under a fresh row lock and
// checks current state, which also makes duplicate deliveries no-ops.
type Reconciler struct {
	store    repository.Store
	orders   *orders.Service
	auditor  orders.Auditor
	logger   *zap.Logger
	provider string
}

func NewReconciler(store repository.Store, orderSvc *orders.Service, auditor orders.Auditor, provider string, logger *zap.Logger) *Reconciler {
	if provider == "" {
		provider = "stripe"
	}
	return &Reconciler{
		store:    store,
		orders:   orderSvc,
		auditor:  auditor,
		logger:   logger,
		provider: provider,
	}
}

// Process applies one verified event. Unknown event types and events for
// unknown intents are acknowledged without any state change.
func (r *Reconciler) Process(ctx context.Context, ev *Event) error {
	switch ev.Type {
	case EventIntentSucceeded, EventIntentFailed, EventIntentCanceled:
	default:
		r.logger.Debug("Ignoring unhandled webhook event", zap.String("type", ev.Type))
		return nil
	}

	order, err := r.store.OrderByIntentID(ctx, ev.Data.Object.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.logger.Warn("Webhook for unknown payment intent",
				zap.String("event_id", ev.ID),
				zap.String("intent_id", ev.Data.Object.ID))
			return nil
		}
		return err
	}

	switch ev.Type {
	case EventIntentSucceeded:
		err = r.applySucceeded(ctx, order.ID, &ev.Data.Object)
	case EventIntentFailed:
		err = r.applyFailed(ctx, order.ID, &ev.Data.Object)
	case EventIntentCanceled:
		err = r.applyCanceled(ctx, order.ID)
	}
	if err != nil {
		return err
	}

	r.audit(ev, order.ID)
	return nil
}

// applySucceeded transitions a pending order to paid and records the
// successful Payment row. Replayed deliveries find the order already paid
// (or the success row already written) and change nothing.
func (r *Reconciler) applySucceeded(ctx context.Context, orderID uint, intent *IntentObject) error {
	return r.store.Transact(ctx, func(tx repository.Tx) error {
		order, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.State != models.OrderPending {
			r.logger.Info("Duplicate success delivery, order already transitioned",
				zap.Uint("order_id", orderID),
				zap.String("state", string(order.State)))
			return nil
		}
		recorded, err := r.store.HasSuccessfulPayment(ctx, orderID)
		if err != nil {
			return err
		}

		if err := tx.UpdateOrderState(ctx, orderID, models.OrderPaid); err != nil {
			return fmt.Errorf("failed to mark order paid: %w", err)
		}
		if recorded {
			return nil
		}
		return tx.CreatePayment(ctx, &models.Payment{
			OrderID:         &order.ID,
			PaymentMethodID: intent.PaymentMethod,
			Amount:          intent.Amount,
			Currency:        intent.Currency,
			Status:          models.PaymentSuccess,
			Provider:        r.provider,
		})
	})
}

// applyFailed records the failed attempt; the order stays pending so the
// buyer can retry with another method.
func (r *Reconciler) applyFailed(ctx context.Context, orderID uint, intent *IntentObject) error {
	reason := ""
	if intent.LastPaymentError != nil {
		reason = intent.LastPaymentError.Code
		if intent.LastPaymentError.DeclineCode != "" {
			reason = intent.LastPaymentError.DeclineCode
		}
	}
	return r.store.CreatePayment(ctx, &models.Payment{
		OrderID:         &orderID,
		PaymentMethodID: intent.PaymentMethod,
		Amount:          intent.Amount,
		Currency:        intent.Currency,
		Status:          models.PaymentFailed,
		FailureReason:   reason,
		Provider:        r.provider,
	})
}

// applyCanceled cancels a still-pending order and restocks its items, same
// as the synchronous cancel path. Orders past pending are left alone.
func (r *Reconciler) applyCanceled(ctx context.Context, orderID uint) error {
	return r.store.Transact(ctx, func(tx repository.Tx) error {
		order, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.State != models.OrderPending {
			return nil
		}
		items, err := tx.OrderItems(ctx, orderID)
		if err != nil {
			return err
		}
		if err := r.orders.Restock(ctx, tx, items); err != nil {
			return err
		}
		return tx.UpdateOrderState(ctx, orderID, models.OrderCancelled)
	})
}

func (r *Reconciler) audit(ev *Event, orderID uint) {
	if r.auditor == nil {
		return
	}
	go func() {
		err := r.auditor.AuditOrderEvent(context.Background(), "webhook_"+ev.Type, orderID, bson.M{
			"event_id":  ev.ID,
			"intent_id": ev.Data.Object.ID,
		})
		if err != nil {
			r.logger.Warn("Audit write failed", zap.String("event_id", ev.ID), zap.Error(err))
		}
	}()
}
