package api

import (
	"errors"
	"net/http"

	"github.com/example/storefront/pkg/cart"
	"github.com/example/storefront/pkg/inventory"
	"github.com/example/storefront/pkg/orders"
	"github.com/example/storefront/pkg/payment"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// renderError translates service failures into the structured error bodies
// the API contract promises: validation failures keyed by field or
// non_field_errors, ownership failures as 403/404, everything else as an
// opaque 500. Provider error text never passes through.
func (s *Server) renderError(c *gin.Context, err error) {
	var stockErr *cart.InsufficientStockError
	var oosErr *inventory.OutOfStockError
	var cardErr *payment.CardError

	switch {
	case errors.Is(err, cart.ErrEmptyCart):
		nonFieldError(c, "Your cart is empty")
	case errors.As(err, &stockErr), errors.As(err, &oosErr), errors.Is(err, inventory.ErrOutOfStock):
		nonFieldError(c, "your cart contains out of stock product or too much quantity of a certain product")
	case errors.Is(err, cart.ErrInvalidQuantity):
		fieldError(c, "quantity", "Quantity must be between 1 and 1000.")
	case errors.Is(err, cart.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
	case errors.Is(err, payment.ErrMethodInvalid):
		fieldError(c, "payment_method_id", "Invalid Payment Method. Try a different one.")
	case errors.As(err, &cardErr):
		nonFieldError(c, unwrappedMessage(cardErr))
	case errors.Is(err, payment.ErrInsufficientFunds),
		errors.Is(err, payment.ErrCardDeclined),
		errors.Is(err, payment.ErrDuplicatedPayment),
		errors.Is(err, payment.ErrPaymentFailed):
		nonFieldError(c, userMessage(err))
	case errors.Is(err, payment.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"detail": "You do not have permission to perform this action."})
	case errors.Is(err, orders.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
	case errors.Is(err, orders.ErrNotCancellable):
		nonFieldError(c, "Only pending orders can be cancelled.")
	default:
		s.logger.Error("Unhandled request error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error."})
	}
}

func nonFieldError(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"non_field_errors": []string{message}})
}

func fieldError(c *gin.Context, field, message string) {
	c.JSON(http.StatusBadRequest, gin.H{field: []string{message}})
}

func unwrappedMessage(err *payment.CardError) string {
	return userMessage(err.Unwrap())
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, payment.ErrInsufficientFunds):
		return "Insufficient Funds."
	case errors.Is(err, payment.ErrCardDeclined):
		return "Card Payment Failed. Try Again or use a different method."
	case errors.Is(err, payment.ErrDuplicatedPayment):
		return "Duplicated payment."
	default:
		return "Payment failed. Try Again or use a different method."
	}
}
