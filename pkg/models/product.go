package models

import (
	"errors"
	"time"
)

const (
	MaxPrice    = 1000000
	MaxStock    = 10000
	MaxQuantity = 1000
)

var (
	ErrNegativeStock   = errors.New("product: stock cannot be negative")
	ErrStockCap        = errors.New("product: stock exceeds cap")
	ErrPriceCap        = errors.New("product: price exceeds cap")
	ErrPriceBelowFloor = errors.New("product: discounted price below minimum")
	ErrInvalidDiscount = errors.New("product: discount percent must be between 0 and 100")
)

type Discount struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Name      string `gorm:"type:varchar(50);not null" json:"name"`
	Percent   int    `gorm:"not null;default:0" json:"percent"`
	Active    bool   `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Discount) TableName() string {
	return "discounts"
}

type Product struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CategoryID  uint      `gorm:"index" json:"category_id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Slug        string    `gorm:"type:varchar(255);index" json:"slug"`
	Description string    `gorm:"type:varchar(2047)" json:"description,omitempty"`
	StripeID    string    `gorm:"type:varchar(255)" json:"-"`
	Price       int64     `gorm:"not null" json:"price"`
	Stock       int       `gorm:"not null" json:"stock"`
	DiscountID  *uint     `gorm:"index" json:"discount_id,omitempty"`
	Discount    *Discount `gorm:"constraint:OnDelete:SET NULL" json:"discount,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

// DiscountedPrice returns the price in minor units after an active discount,
// floored to an integer.
func (p *Product) DiscountedPrice() int64 {
	if p.Discount == nil || !p.Discount.Active {
		return p.Price
	}
	return p.Price * int64(100-p.Discount.Percent) / 100
}

func (p *Product) InStock() bool {
	return p.Stock > 0
}

// Validate enforces write-time invariants: non-negative capped stock, capped
// price, discount percent range, and the post-discount price floor.
func (p *Product) Validate(minPrice int64) error {
	if p.Stock < 0 {
		return ErrNegativeStock
	}
	if p.Stock > MaxStock {
		return ErrStockCap
	}
	if p.Price > MaxPrice {
		return ErrPriceCap
	}
	if p.Discount != nil && (p.Discount.Percent < 0 || p.Discount.Percent > 100) {
		return ErrInvalidDiscount
	}
	if p.DiscountedPrice() < minPrice {
		return ErrPriceBelowFloor
	}
	return nil
}
