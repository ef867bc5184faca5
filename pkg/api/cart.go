package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type putCartItemRequest struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

func (s *Server) getCart(c *gin.Context) {
	items, err := s.carts.List(c.Request.Context(), currentUser(c))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": cartView(items)})
}

func (s *Server) putCartItem(c *gin.Context) {
	var req putCartItemRequest
	if err := c.BindJSON(&req); err != nil {
		return
	}
	if req.ProductID == 0 {
		fieldError(c, "product_id", "This field is required.")
		return
	}

	if err := s.carts.Put(c.Request.Context(), currentUser(c), req.ProductID, req.Quantity); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product_id": req.ProductID, "quantity": req.Quantity})
}

func (s *Server) removeCartItem(c *gin.Context) {
	productID, ok := pathID(c, "product_id")
	if !ok {
		return
	}
	if err := s.carts.Remove(c.Request.Context(), currentUser(c), productID); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
