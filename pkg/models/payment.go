package models

import (
	"time"
)

type PaymentStatus string

const (
	PaymentProcessing  PaymentStatus = "processing"
	PaymentFailed      PaymentStatus = "failed"
	PaymentSuccess     PaymentStatus = "success"
	PaymentRefunded    PaymentStatus = "refunded"
	PaymentUnconfirmed PaymentStatus = "unconfirmed"
)

// Payment is an append-only record of a single charge attempt. An order may
// accumulate several rows across retries; the order's current status lives on
// Order.State, these rows are the audit trail.
type Payment struct {
	ID              uint          `gorm:"primaryKey" json:"id"`
	OrderID         *uint         `gorm:"index" json:"order_id,omitempty"`
	PaymentMethodID string        `gorm:"type:varchar(254);not null" json:"payment_method_id"`
	Amount          int64         `gorm:"not null" json:"amount"`
	Currency        string        `gorm:"type:varchar(3);not null" json:"currency"`
	Description     string        `gorm:"type:text" json:"description,omitempty"`
	FailureReason   string        `gorm:"type:varchar(1023)" json:"failure_reason,omitempty"`
	Status          PaymentStatus `gorm:"type:varchar(50);not null" json:"status"`
	Provider        string        `gorm:"type:varchar(50);not null;default:'stripe'" json:"provider"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

// PaymentDetails maps a user to their provider-side customer record. Created
// lazily on the first payment interaction.
type PaymentDetails struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	CustomerID string    `gorm:"type:varchar(254);uniqueIndex;not null" json:"customer_id"`
	Provider   string    `gorm:"type:varchar(50);not null;default:'stripe'" json:"provider"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (PaymentDetails) TableName() string {
	return "payment_details"
}
