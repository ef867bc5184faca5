package repository

import (
	"context"
	"errors"

	"github.com/example/storefront/pkg/models"
)

var ErrNotFound = errors.New("repository: not found")

// Tx is the set of operations available inside one database transaction.
// Order creation and cancellation run entirely through a Tx so that stock
// movements, order rows and payment records commit or roll back together.
type Tx interface {
	// LockProducts loads the given product rows under an exclusive row lock,
	// always in ascending id order so concurrent transactions touching
	// overlapping product sets cannot deadlock.
	LockProducts(ctx context.Context, ids []uint) (map[uint]*models.Product, error)
	SaveProductStock(ctx context.Context, productID uint, stock int) error

	CreateOrder(ctx context.Context, o *models.Order) error
	CreateOrderItems(ctx context.Context, items []models.OrderItem) error
	SetOrderPaymentRef(ctx context.Context, orderID uint, intentID, clientSecret string) error
	UpdateOrderState(ctx context.Context, orderID uint, state models.OrderState) error
	// OrderForUpdate loads an order row under an exclusive lock, serializing
	// concurrent cancellation and reconciliation of the same order.
	OrderForUpdate(ctx context.Context, id uint) (*models.Order, error)
	OrderItems(ctx context.Context, orderID uint) ([]models.OrderItem, error)

	CreatePayment(ctx context.Context, p *models.Payment) error

	ClearCart(ctx context.Context, userID uint) error
	// PruneCartItems deletes cart rows across all users whose quantity now
	// exceeds the product's available stock. Best-effort consistency repair.
	PruneCartItems(ctx context.Context) (int64, error)
}

// Store is the persistence port shared by the cart, order, payment and
// webhook services. Backed by MySQL in production and by MemoryStore in tests.
type Store interface {
	Transact(ctx context.Context, fn func(Tx) error) error

	ProductByID(ctx context.Context, id uint) (*models.Product, error)
	SaveProduct(ctx context.Context, p *models.Product) error

	CartItems(ctx context.Context, userID uint) ([]models.CartItem, error)
	PutCartItem(ctx context.Context, userID, productID uint, quantity int) error
	RemoveCartItem(ctx context.Context, userID, productID uint) error

	OrderByOwner(ctx context.Context, ownerID, orderID uint) (*models.Order, error)
	OrdersByOwner(ctx context.Context, ownerID uint, offset, limit int) ([]models.Order, int64, error)
	OrderItems(ctx context.Context, orderID uint) ([]models.OrderItem, error)
	OrderByIntentID(ctx context.Context, intentID string) (*models.Order, error)

	HasSuccessfulPayment(ctx context.Context, orderID uint) (bool, error)
	CreatePayment(ctx context.Context, p *models.Payment) error
	PaymentDetailsByUser(ctx context.Context, userID uint) (*models.PaymentDetails, error)
	SavePaymentDetails(ctx context.Context, d *models.PaymentDetails) error
}
