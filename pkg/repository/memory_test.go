package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/example/storefront/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactRollbackRestoresEverything(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	product := &models.Product{Name: "widget", Price: 100, Stock: 5}
	require.NoError(t, store.SaveProduct(ctx, product))
	require.NoError(t, store.PutCartItem(ctx, 1, product.ID, 2))

	boom := errors.New("boom")
	err := store.Transact(ctx, func(tx Tx) error {
		if err := tx.SaveProductStock(ctx, product.ID, 3); err != nil {
			return err
		}
		order := &models.Order{OwnerID: 1, Total: 200, State: models.OrderPending, CorrelationID: "c-1"}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}
		pid := product.ID
		if err := tx.CreateOrderItems(ctx, []models.OrderItem{
			{OrderID: order.ID, ProductID: &pid, Quantity: 2, UnitPrice: 100},
		}); err != nil {
			return err
		}
		if err := tx.SetOrderPaymentRef(ctx, order.ID, "pi_1", "secret"); err != nil {
			return err
		}
		if err := tx.ClearCart(ctx, 1); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	p, err := store.ProductByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)

	_, total, err := store.OrdersByOwner(ctx, 1, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)

	_, err = store.OrderByIntentID(ctx, "pi_1")
	assert.ErrorIs(t, err, ErrNotFound)

	items, err := store.CartItems(ctx, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestNonTransactionalPaymentSurvivesRollback(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.Transact(ctx, func(tx Tx) error {
		order := &models.Order{OwnerID: 1, Total: 100, State: models.OrderPending, CorrelationID: "c-1"}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}
		// Written through the store, not the tx, like a decline audit row.
		if err := store.CreatePayment(ctx, &models.Payment{
			OrderID:       &order.ID,
			Amount:        100,
			Currency:      "usd",
			Status:        models.PaymentFailed,
			FailureReason: "insufficient_funds",
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	payments := store.AllPayments()
	require.Len(t, payments, 1)
	assert.Equal(t, models.PaymentFailed, payments[0].Status)
}

func TestTransactionalPaymentRollsBack(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.Transact(ctx, func(tx Tx) error {
		order := &models.Order{OwnerID: 1, Total: 100, State: models.OrderPending, CorrelationID: "c-1"}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}
		if err := tx.CreatePayment(ctx, &models.Payment{
			OrderID:  &order.ID,
			Amount:   100,
			Currency: "usd",
			Status:   models.PaymentUnconfirmed,
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, store.AllPayments())
}

func TestPruneCartItemsDropsOversizedRows(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	scarce := &models.Product{Name: "scarce", Price: 100, Stock: 1}
	plenty := &models.Product{Name: "plenty", Price: 100, Stock: 10}
	require.NoError(t, store.SaveProduct(ctx, scarce))
	require.NoError(t, store.SaveProduct(ctx, plenty))

	require.NoError(t, store.PutCartItem(ctx, 1, scarce.ID, 3))
	require.NoError(t, store.PutCartItem(ctx, 1, plenty.ID, 3))
	require.NoError(t, store.PutCartItem(ctx, 2, scarce.ID, 1))

	var pruned int64
	require.NoError(t, store.Transact(ctx, func(tx Tx) error {
		var err error
		pruned, err = tx.PruneCartItems(ctx)
		return err
	}))
	assert.Equal(t, int64(1), pruned)

	items, err := store.CartItems(ctx, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, plenty.ID, items[0].ProductID)

	items, err = store.CartItems(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, items, 1, "rows that still fit stay put")
}

func TestOrdersByOwnerPagination(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Transact(ctx, func(tx Tx) error {
		for i := 0; i < 5; i++ {
			order := &models.Order{OwnerID: 1, Total: int64(i), State: models.OrderPending,
				CorrelationID: string(rune('a' + i))}
			if err := tx.CreateOrder(ctx, order); err != nil {
				return err
			}
		}
		return tx.CreateOrder(ctx, &models.Order{OwnerID: 2, Total: 99, State: models.OrderPending, CorrelationID: "z"})
	}))

	orders, total, err := store.OrdersByOwner(ctx, 1, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, orders, 2)
	assert.Greater(t, orders[0].ID, orders[1].ID, "newest first")

	orders, total, err = store.OrdersByOwner(ctx, 1, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, orders, 1)

	orders, _, err = store.OrdersByOwner(ctx, 1, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, orders)
}
