package models

import (
	"time"
)

// OrderState is the order lifecycle state. The happy path runs
// pending → paid → processing → shipping → completed; cancellation is only
// reachable from pending, refunds from any paid-or-later pre-completion state.
type OrderState string

const (
	OrderPending           OrderState = "pending"
	OrderPaid              OrderState = "paid"
	OrderProcessing        OrderState = "processing"
	OrderShipping          OrderState = "shipping"
	OrderCompleted         OrderState = "completed"
	OrderCancelled         OrderState = "cancelled"
	OrderRefunded          OrderState = "refunded"
	OrderPartiallyRefunded OrderState = "partial_refund"
)

var orderTransitions = map[OrderState][]OrderState{
	OrderPending:    {OrderPaid, OrderCancelled},
	OrderPaid:       {OrderProcessing, OrderRefunded, OrderPartiallyRefunded},
	OrderProcessing: {OrderShipping, OrderRefunded, OrderPartiallyRefunded},
	OrderShipping:   {OrderCompleted, OrderRefunded, OrderPartiallyRefunded},
}

// CanTransitionTo reports whether moving from s to target is a legal
// lifecycle transition.
func (s OrderState) CanTransitionTo(target OrderState) bool {
	for _, next := range orderTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

type Order struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	OwnerID         uint       `gorm:"not null;index" json:"owner_id"`
	Total           int64      `gorm:"not null" json:"total"`
	State           OrderState `gorm:"type:varchar(20);not null;default:'pending';index" json:"state"`
	CorrelationID   string     `gorm:"type:varchar(36);uniqueIndex;not null" json:"correlation_id"`
	PaymentIntentID string     `gorm:"type:varchar(254);index" json:"-"`
	ClientSecret    string     `gorm:"type:varchar(254)" json:"-"`
	Provider        string     `gorm:"type:varchar(50);not null;default:'stripe'" json:"provider"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

// Cancellable reports whether the order may still be cancelled by its owner.
func (o *Order) Cancellable() bool {
	return o.State == OrderPending
}

// OrderItem is a frozen record of a purchased line. Quantity and UnitPrice
// are never mutated after creation; ProductID is nulled if the product is
// later deleted so history survives catalog churn.
type OrderItem struct {
	ID        uint     `gorm:"primaryKey" json:"id"`
	OrderID   uint     `gorm:"not null;uniqueIndex:idx_order_product" json:"order_id"`
	ProductID *uint    `gorm:"uniqueIndex:idx_order_product" json:"product_id,omitempty"`
	Product   *Product `gorm:"constraint:OnDelete:SET NULL" json:"product,omitempty"`
	Quantity  int      `gorm:"not null" json:"quantity"`
	UnitPrice int64    `gorm:"not null" json:"unit_price"`
	CreatedAt time.Time `json:"created_at"`
}

func (OrderItem) TableName() string {
	return "order_items"
}
