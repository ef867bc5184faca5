package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
	"go.uber.org/zap"
)

var (
	ErrEmptyCart       = errors.New("cart: cart is empty")
	ErrInvalidQuantity = errors.New("cart: quantity must be between 1 and 1000")
	ErrProductNotFound = errors.New("cart: product not found")
)

// InsufficientStockError reports a cart line whose quantity exceeds the
// product's live stock.
type InsufficientStockError struct {
	ProductID uint
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("cart: product %d has insufficient stock (requested %d, available %d)",
		e.ProductID, e.Requested, e.Available)
}

// Line is one validated cart line inside a Draft. UnitPrice is the
// discounted price at snapshot time, advisory until re-read under lock.
type Line struct {
	ProductID uint
	Quantity  int
	UnitPrice int64
}

// Draft is a point-in-time read of a user's cart validated against live
// stock, the input to order assembly.
type Draft struct {
	OwnerID uint
	Lines   []Line
	Total   int64
}

type Service struct {
	store  repository.Store
	logger *zap.Logger
}

func NewService(store repository.Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Snapshot reads the user's cart, re-fetches each product's live price and
// stock, and returns a validated draft. Pure read; mutates nothing.
func (s *Service) Snapshot(ctx context.Context, userID uint) (*Draft, error) {
	items, err := s.store.CartItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	draft := &Draft{OwnerID: userID}
	for _, item := range items {
		product, err := s.store.ProductByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				// Product removed since the row was added; treat as gone.
				return nil, &InsufficientStockError{ProductID: item.ProductID, Requested: item.Quantity}
			}
			return nil, fmt.Errorf("failed to read product %d: %w", item.ProductID, err)
		}
		if item.Quantity > product.Stock {
			return nil, &InsufficientStockError{
				ProductID: product.ID,
				Requested: item.Quantity,
				Available: product.Stock,
			}
		}
		price := product.DiscountedPrice()
		draft.Lines = append(draft.Lines, Line{
			ProductID: product.ID,
			Quantity:  item.Quantity,
			UnitPrice: price,
		})
		draft.Total += int64(item.Quantity) * price
	}
	return draft, nil
}

// Put upserts a cart line for the user, rejecting quantities outside 1..1000
// or beyond the product's current stock.
func (s *Service) Put(ctx context.Context, userID, productID uint, quantity int) error {
	if quantity < 1 || quantity > models.MaxQuantity {
		return ErrInvalidQuantity
	}
	product, err := s.store.ProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProductNotFound
		}
		return err
	}
	if quantity > product.Stock {
		return &InsufficientStockError{
			ProductID: productID,
			Requested: quantity,
			Available: product.Stock,
		}
	}
	return s.store.PutCartItem(ctx, userID, productID, quantity)
}

func (s *Service) Remove(ctx context.Context, userID, productID uint) error {
	if err := s.store.RemoveCartItem(ctx, userID, productID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProductNotFound
		}
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, userID uint) ([]models.CartItem, error) {
	return s.store.CartItems(ctx, userID)
}
