package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/storefront/pkg/cart"
	"github.com/example/storefront/pkg/inventory"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/payment"
	"github.com/example/storefront/pkg/repository"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

var (
	ErrNotFound       = errors.New("orders: order not found")
	ErrNotCancellable = errors.New("orders: order can only be cancelled while pending")
)

// Auditor records order lifecycle events out-of-band. Satisfied by
// repository.MongoRepository; nil-able for tests.
type Auditor interface {
	AuditOrderEvent(ctx context.Context, action string, orderID uint, data bson.M) error
}

// Result is the order-creation outcome returned to the API layer.
type Result struct {
	Order        *models.Order
	Items        []models.OrderItem
	ClientSecret string
	PaymentState payment.State
}

// Service assembles orders from validated cart drafts and owns the
// cancellation path. Totals and states are only ever written here and by the
// webhook reconciler, never by request handlers.
type Service struct {
	store        repository.Store
	cart         *cart.Service
	ledger       *inventory.Ledger
	orchestrator *payment.Orchestrator
	auditor      Auditor
	logger       *zap.Logger
	provider     string
}

func NewService(store repository.Store, cartSvc *cart.Service, ledger *inventory.Ledger, orchestrator *payment.Orchestrator, auditor Auditor, provider string, logger *zap.Logger) *Service {
	if provider == "" {
		provider = "stripe"
	}
	return &Service{
		store:        store,
		cart:         cartSvc,
		ledger:       ledger,
		orchestrator: orchestrator,
		auditor:      auditor,
		logger:       logger,
		provider:     provider,
	}
}

// Create builds an order from the user's cart inside one transaction: lock
// products in ascending-id order, re-check stock against the locked rows,
// insert the order and its frozen line items, decrement stock, then create
// the provider payment intent while the locks are still held. Any failure
// rolls the whole transaction back; the cart is cleared only after commit.
func (s *Service) Create(ctx context.Context, userID uint, methodID string) (*Result, error) {
	draft, err := s.cart.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	err = s.store.Transact(ctx, func(tx repository.Tx) error {
		ids := make([]uint, 0, len(draft.Lines))
		for _, line := range draft.Lines {
			ids = append(ids, line.ProductID)
		}
		locked, err := tx.LockProducts(ctx, ids)
		if err != nil {
			return fmt.Errorf("failed to lock products: %w", err)
		}

		// Authoritative stock check and price freeze, post-lock. The
		// snapshot's numbers may be stale by now.
		var total int64
		items := make([]models.OrderItem, 0, len(draft.Lines))
		for _, line := range draft.Lines {
			product, ok := locked[line.ProductID]
			if !ok {
				return &inventory.OutOfStockError{ProductID: line.ProductID, Requested: line.Quantity}
			}
			if err := s.ledger.Reserve(ctx, tx, product, line.Quantity); err != nil {
				return err
			}
			price := product.DiscountedPrice()
			productID := product.ID
			items = append(items, models.OrderItem{
				ProductID: &productID,
				Quantity:  line.Quantity,
				UnitPrice: price,
			})
			total += int64(line.Quantity) * price
		}

		order := &models.Order{
			OwnerID:       userID,
			Total:         total,
			State:         models.OrderPending,
			CorrelationID: uuid.NewString(),
			Provider:      s.provider,
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := tx.CreateOrderItems(ctx, items); err != nil {
			return fmt.Errorf("failed to create order items: %w", err)
		}

		// Stock just moved; drop cart rows (any user's) that no longer fit.
		if pruned, err := tx.PruneCartItems(ctx); err != nil {
			s.logger.Warn("Cart pruning failed", zap.Error(err))
		} else if pruned > 0 {
			s.logger.Info("Pruned stale cart rows", zap.Int64("count", pruned))
		}

		intent, err := s.orchestrator.CreatePaymentIntent(ctx, tx, order, methodID, false)
		if err != nil {
			return err
		}
		if err := tx.SetOrderPaymentRef(ctx, order.ID, intent.IntentID, intent.ClientSecret); err != nil {
			return fmt.Errorf("failed to store payment reference: %w", err)
		}
		order.PaymentIntentID = intent.IntentID
		order.ClientSecret = intent.ClientSecret

		result.Order = order
		result.Items = items
		result.ClientSecret = intent.ClientSecret
		result.PaymentState = intent.State
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Committed; clear the buyer's cart and leave an audit trail.
	if err := s.store.Transact(ctx, func(tx repository.Tx) error {
		return tx.ClearCart(ctx, userID)
	}); err != nil {
		s.logger.Warn("Failed to clear cart after order creation",
			zap.Uint("user_id", userID), zap.Error(err))
	}
	s.audit("order_created", result.Order, bson.M{
		"owner_id": userID,
		"total":    result.Order.Total,
	})

	return result, nil
}

// Cancel voids a pending order: restock every line item, transition to
// cancelled and void the provider intent, all in one transaction. If the
// provider call fails the restock rolls back with everything else.
func (s *Service) Cancel(ctx context.Context, userID, orderID uint) (*models.Order, error) {
	var cancelled *models.Order
	err := s.store.Transact(ctx, func(tx repository.Tx) error {
		order, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		// Foreign orders read as absent; existence is not disclosed.
		if order.OwnerID != userID {
			return ErrNotFound
		}
		if !order.Cancellable() {
			return ErrNotCancellable
		}

		items, err := tx.OrderItems(ctx, orderID)
		if err != nil {
			return fmt.Errorf("failed to read order items: %w", err)
		}
		if err := s.restock(ctx, tx, items); err != nil {
			return err
		}

		if err := tx.UpdateOrderState(ctx, orderID, models.OrderCancelled); err != nil {
			return fmt.Errorf("failed to update order state: %w", err)
		}

		if order.PaymentIntentID != "" {
			if err := s.orchestrator.CancelPaymentIntent(ctx, order.PaymentIntentID); err != nil {
				return err
			}
		}

		order.State = models.OrderCancelled
		cancelled = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit("order_cancelled", cancelled, bson.M{"owner_id": userID})
	return cancelled, nil
}

// Restock returns every line item's quantity to its product under fresh row
// locks. Shared by Cancel and the webhook reconciler's cancelled-intent path.
func (s *Service) Restock(ctx context.Context, tx repository.Tx, items []models.OrderItem) error {
	return s.restock(ctx, tx, items)
}

func (s *Service) restock(ctx context.Context, tx repository.Tx, items []models.OrderItem) error {
	ids := make([]uint, 0, len(items))
	for _, item := range items {
		if item.ProductID != nil {
			ids = append(ids, *item.ProductID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	locked, err := tx.LockProducts(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to lock products: %w", err)
	}
	for _, item := range items {
		if item.ProductID == nil {
			continue
		}
		product, ok := locked[*item.ProductID]
		if !ok {
			// Product deleted since purchase; nothing to restock.
			continue
		}
		if err := s.ledger.Restock(ctx, tx, product, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// Get returns an owner-scoped order with its items.
func (s *Service) Get(ctx context.Context, userID, orderID uint) (*models.Order, []models.OrderItem, error) {
	order, err := s.store.OrderByOwner(ctx, userID, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	items, err := s.store.OrderItems(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	return order, items, nil
}

// List returns a page of the owner's orders, newest first.
func (s *Service) List(ctx context.Context, userID uint, page, pageSize int) ([]models.Order, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}
	return s.store.OrdersByOwner(ctx, userID, (page-1)*pageSize, pageSize)
}

func (s *Service) audit(action string, order *models.Order, data bson.M) {
	if s.auditor == nil || order == nil {
		return
	}
	go func() {
		if err := s.auditor.AuditOrderEvent(context.Background(), action, order.ID, data); err != nil {
			s.logger.Warn("Audit write failed", zap.String("action", action), zap.Error(err))
		}
	}()
}
