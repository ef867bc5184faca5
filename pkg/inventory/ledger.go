package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
)

var ErrOutOfStock = errors.New("inventory: out of stock")

// OutOfStockError carries which product fell short and by how much. Unwraps
// to ErrOutOfStock.
type OutOfStockError struct {
	ProductID uint
	Requested int
	Available int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("inventory: product %d out of stock (requested %d, available %d)",
		e.ProductID, e.Requested, e.Available)
}

func (e *OutOfStockError) Unwrap() error {
	return ErrOutOfStock
}

// Ledger provides the stock reservation and restock primitives. All calls
// operate on product rows already locked by the surrounding transaction; the
// ledger itself never acquires locks.
type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Reserve decrements a locked product's stock by qty. The check against the
// locked row is the authoritative oversell guard; any earlier cart-side check
// is advisory only.
func (l *Ledger) Reserve(ctx context.Context, tx repository.Tx, product *models.Product, qty int) error {
	if qty <= 0 || qty > models.MaxQuantity {
		return fmt.Errorf("inventory: invalid quantity %d", qty)
	}
	if qty > product.Stock {
		return &OutOfStockError{ProductID: product.ID, Requested: qty, Available: product.Stock}
	}
	product.Stock -= qty
	return tx.SaveProductStock(ctx, product.ID, product.Stock)
}

// Restock returns qty units to a locked product, capped at the stock ceiling.
// Used by the cancellation paths.
func (l *Ledger) Restock(ctx context.Context, tx repository.Tx, product *models.Product, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("inventory: invalid quantity %d", qty)
	}
	product.Stock += qty
	if product.Stock > models.MaxStock {
		product.Stock = models.MaxStock
	}
	return tx.SaveProductStock(ctx, product.ID, product.Stock)
}
