package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type attachMethodRequest struct {
	PaymentMethodID string `json:"payment_method_id"`
}

func (s *Server) attachPaymentMethod(c *gin.Context) {
	var req attachMethodRequest
	if err := c.BindJSON(&req); err != nil {
		return
	}
	if req.PaymentMethodID == "" {
		fieldError(c, "payment_method_id", "This field is required.")
		return
	}

	if err := s.orchestrator.AttachPaymentMethod(c.Request.Context(), currentUser(c), req.PaymentMethodID); err != nil {
		s.renderError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) listPaymentMethods(c *gin.Context) {
	methods, err := s.orchestrator.PaymentMethods(c.Request.Context(), currentUser(c))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"methods": methods})
}

func (s *Server) detachPaymentMethod(c *gin.Context) {
	methodID := c.Param("id")
	if methodID == "" {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return
	}

	if err := s.orchestrator.DetachPaymentMethod(c.Request.Context(), currentUser(c), methodID); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
