package models

import (
	"time"
)

type CartItem struct {
	ID        uint     `gorm:"primaryKey" json:"id"`
	UserID    uint     `gorm:"not null;uniqueIndex:idx_cart_user_product" json:"user_id"`
	ProductID uint     `gorm:"not null;uniqueIndex:idx_cart_user_product" json:"product_id"`
	Product   *Product `gorm:"constraint:OnDelete:CASCADE" json:"product,omitempty"`
	Quantity  int      `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CartItem) TableName() string {
	return "cart_items"
}
