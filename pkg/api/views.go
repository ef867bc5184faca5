package api

import (
	"time"

	"github.com/example/storefront/pkg/models"
)

// OrderSummaryView is the list-endpoint shape: the order row without items.
type OrderSummaryView struct {
	ID            uint   `json:"id"`
	CorrelationID string `json:"correlation_id"`
	Total         int64  `json:"total"`
	State         string `json:"state"`
	Provider      string `json:"provider"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// OrderDetailView adds the frozen line items for detail and creation
// responses.
type OrderDetailView struct {
	OrderSummaryView
	Items []OrderItemView `json:"items"`
}

type OrderItemView struct {
	ProductID *uint  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Subtotal  int64  `json:"subtotal"`
}

type CartItemView struct {
	ProductID uint  `json:"product_id"`
	Quantity  int   `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
	Subtotal  int64 `json:"subtotal"`
	InStock   bool  `json:"in_stock"`
}

func summaryView(o *models.Order) OrderSummaryView {
	return OrderSummaryView{
		ID:            o.ID,
		CorrelationID: o.CorrelationID,
		Total:         o.Total,
		State:         string(o.State),
		Provider:      o.Provider,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func detailView(o *models.Order, items []models.OrderItem) OrderDetailView {
	view := OrderDetailView{
		OrderSummaryView: summaryView(o),
		Items:            make([]OrderItemView, 0, len(items)),
	}
	for _, item := range items {
		view.Items = append(view.Items, OrderItemView{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Subtotal:  int64(item.Quantity) * item.UnitPrice,
		})
	}
	return view
}

func cartView(items []models.CartItem) []CartItemView {
	views := make([]CartItemView, 0, len(items))
	for _, item := range items {
		view := CartItemView{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
		if item.Product != nil {
			view.UnitPrice = item.Product.DiscountedPrice()
			view.Subtotal = int64(item.Quantity) * view.UnitPrice
			view.InStock = item.Product.InStock()
		}
		views = append(views, view)
	}
	return views
}
