package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/example/storefront/pkg/models"
)

// MemoryStore is a mutex-serialized Store implementation. Transactions are
// exclusive (one at a time, mirroring the row-lock discipline of the MySQL
// backend) and roll back through an undo journal, so the transactional
// services behave the same against it as against GormStore.
type MemoryStore struct {
	txMu sync.Mutex // serializes transactions
	mu   sync.Mutex // guards the maps

	products       map[uint]*models.Product
	cartItems      map[uint]*models.CartItem
	orders         map[uint]*models.Order
	orderItems     map[uint]*models.OrderItem
	payments       map[uint]*models.Payment
	paymentDetails map[uint]*models.PaymentDetails
	nextID         uint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:       make(map[uint]*models.Product),
		cartItems:      make(map[uint]*models.CartItem),
		orders:         make(map[uint]*models.Order),
		orderItems:     make(map[uint]*models.OrderItem),
		payments:       make(map[uint]*models.Payment),
		paymentDetails: make(map[uint]*models.PaymentDetails),
	}
}

func (s *MemoryStore) nextPK() uint {
	s.nextID++
	return s.nextID
}

func cloneProduct(p *models.Product) *models.Product {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Discount != nil {
		d := *p.Discount
		clone.Discount = &d
	}
	return &clone
}

func cloneOrder(o *models.Order) *models.Order {
	if o == nil {
		return nil
	}
	clone := *o
	return &clone
}

func cloneOrderItem(i *models.OrderItem) *models.OrderItem {
	clone := *i
	if i.ProductID != nil {
		id := *i.ProductID
		clone.ProductID = &id
	}
	clone.Product = nil
	return &clone
}

func (s *MemoryStore) Transact(ctx context.Context, fn func(Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memTx{s: s}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *MemoryStore) ProductByID(ctx context.Context, id uint) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneProduct(p), nil
}

func (s *MemoryStore) SaveProduct(ctx context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == 0 {
		p.ID = s.nextPK()
	}
	s.products[p.ID] = cloneProduct(p)
	return nil
}

func (s *MemoryStore) CartItems(ctx context.Context, userID uint) ([]models.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var items []models.CartItem
	for _, ci := range s.cartItems {
		if ci.UserID != userID {
			continue
		}
		item := *ci
		item.Product = cloneProduct(s.products[ci.ProductID])
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
	return items, nil
}

func (s *MemoryStore) PutCartItem(ctx context.Context, userID, productID uint, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ci := range s.cartItems {
		if ci.UserID == userID && ci.ProductID == productID {
			ci.Quantity = quantity
			return nil
		}
	}
	id := s.nextPK()
	s.cartItems[id] = &models.CartItem{ID: id, UserID: userID, ProductID: productID, Quantity: quantity}
	return nil
}

func (s *MemoryStore) RemoveCartItem(ctx context.Context, userID, productID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, ci := range s.cartItems {
		if ci.UserID == userID && ci.ProductID == productID {
			delete(s.cartItems, id)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) OrderByOwner(ctx context.Context, ownerID, orderID uint) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok || o.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return cloneOrder(o), nil
}

func (s *MemoryStore) OrdersByOwner(ctx context.Context, ownerID uint, offset, limit int) ([]models.Order, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var orders []models.Order
	for _, o := range s.orders {
		if o.OwnerID == ownerID {
			orders = append(orders, *cloneOrder(o))
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID > orders[j].ID })
	total := int64(len(orders))

	if offset >= len(orders) {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(orders) {
		end = len(orders)
	}
	return orders[offset:end], total, nil
}

func (s *MemoryStore) OrderItems(ctx context.Context, orderID uint) ([]models.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.orderItemsLocked(orderID), nil
}

func (s *MemoryStore) orderItemsLocked(orderID uint) []models.OrderItem {
	var items []models.OrderItem
	for _, oi := range s.orderItems {
		if oi.OrderID == orderID {
			item := *cloneOrderItem(oi)
			if item.ProductID != nil {
				item.Product = cloneProduct(s.products[*item.ProductID])
			}
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func (s *MemoryStore) OrderByIntentID(ctx context.Context, intentID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.orders {
		if o.PaymentIntentID == intentID && intentID != "" {
			return cloneOrder(o), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) HasSuccessfulPayment(ctx context.Context, orderID uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.payments {
		if p.OrderID != nil && *p.OrderID == orderID && p.Status == models.PaymentSuccess {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.insertPaymentLocked(p)
	return nil
}

func (s *MemoryStore) insertPaymentLocked(p *models.Payment) {
	if p.ID == 0 {
		p.ID = s.nextPK()
	}
	clone := *p
	if p.OrderID != nil {
		id := *p.OrderID
		clone.OrderID = &id
	}
	s.payments[p.ID] = &clone
}

// Payments returns all recorded payment attempts for an order, oldest first.
// Test helper mirroring the audit-log reading the MySQL backend gets via SQL.
func (s *MemoryStore) Payments(orderID uint) []models.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Payment
	for _, p := range s.payments {
		if p.OrderID != nil && *p.OrderID == orderID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AllPayments returns every payment row, oldest first. Test helper.
func (s *MemoryStore) AllPayments() []models.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Payment
	for _, p := range s.payments {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemoryStore) PaymentDetailsByUser(ctx context.Context, userID uint) (*models.PaymentDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.paymentDetails {
		if d.UserID == userID {
			clone := *d
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) SavePaymentDetails(ctx context.Context, d *models.PaymentDetails) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.ID == 0 {
		for _, existing := range s.paymentDetails {
			if existing.UserID == d.UserID {
				d.ID = existing.ID
				break
			}
		}
	}
	if d.ID == 0 {
		d.ID = s.nextPK()
	}
	clone := *d
	s.paymentDetails[d.ID] = &clone
	return nil
}

// memTx applies mutations directly and keeps an undo journal for rollback.
type memTx struct {
	s    *MemoryStore
	undo []func()
}

func (t *memTx) record(fn func()) {
	t.undo = append(t.undo, fn)
}

func (t *memTx) rollback() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memTx) LockProducts(ctx context.Context, ids []uint) (map[uint]*models.Product, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	locked := make(map[uint]*models.Product, len(ids))
	for _, id := range ids {
		if p, ok := t.s.products[id]; ok {
			locked[id] = cloneProduct(p)
		}
	}
	return locked, nil
}

func (t *memTx) SaveProductStock(ctx context.Context, productID uint, stock int) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	p, ok := t.s.products[productID]
	if !ok {
		return ErrNotFound
	}
	prev := p.Stock
	p.Stock = stock
	t.record(func() { p.Stock = prev })
	return nil
}

func (t *memTx) CreateOrder(ctx context.Context, o *models.Order) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	if o.ID == 0 {
		o.ID = t.s.nextPK()
	}
	id := o.ID
	t.s.orders[id] = cloneOrder(o)
	t.record(func() { delete(t.s.orders, id) })
	return nil
}

func (t *memTx) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for i := range items {
		if items[i].ID == 0 {
			items[i].ID = t.s.nextPK()
		}
		id := items[i].ID
		t.s.orderItems[id] = cloneOrderItem(&items[i])
		t.record(func() { delete(t.s.orderItems, id) })
	}
	return nil
}

func (t *memTx) SetOrderPaymentRef(ctx context.Context, orderID uint, intentID, clientSecret string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	o, ok := t.s.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	prevIntent, prevSecret := o.PaymentIntentID, o.ClientSecret
	o.PaymentIntentID = intentID
	o.ClientSecret = clientSecret
	t.record(func() {
		o.PaymentIntentID = prevIntent
		o.ClientSecret = prevSecret
	})
	return nil
}

func (t *memTx) UpdateOrderState(ctx context.Context, orderID uint, state models.OrderState) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	o, ok := t.s.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	prev := o.State
	o.State = state
	t.record(func() { o.State = prev })
	return nil
}

func (t *memTx) OrderForUpdate(ctx context.Context, id uint) (*models.Order, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	o, ok := t.s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneOrder(o), nil
}

func (t *memTx) OrderItems(ctx context.Context, orderID uint) ([]models.OrderItem, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	return t.s.orderItemsLocked(orderID), nil
}

func (t *memTx) CreatePayment(ctx context.Context, p *models.Payment) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	t.s.insertPaymentLocked(p)
	id := p.ID
	t.record(func() { delete(t.s.payments, id) })
	return nil
}

func (t *memTx) ClearCart(ctx context.Context, userID uint) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for id, ci := range t.s.cartItems {
		if ci.UserID == userID {
			removed := ci
			removedID := id
			delete(t.s.cartItems, id)
			t.record(func() { t.s.cartItems[removedID] = removed })
		}
	}
	return nil
}

func (t *memTx) PruneCartItems(ctx context.Context) (int64, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	var pruned int64
	for id, ci := range t.s.cartItems {
		p, ok := t.s.products[ci.ProductID]
		if ok && ci.Quantity <= p.Stock {
			continue
		}
		removed := ci
		removedID := id
		delete(t.s.cartItems, id)
		t.record(func() { t.s.cartItems[removedID] = removed })
		pruned++
	}
	return pruned, nil
}
