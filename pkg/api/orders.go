package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type createOrderRequest struct {
	PaymentMethodID string `json:"payment_method_id"`
}

func (s *Server) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.BindJSON(&req); err != nil {
		return
	}
	if req.PaymentMethodID == "" {
		fieldError(c, "payment_method_id", "This field is required.")
		return
	}

	result, err := s.orders.Create(c.Request.Context(), currentUser(c), req.PaymentMethodID)
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"order":         detailView(result.Order, result.Items),
		"client_secret": result.ClientSecret,
		"payment_state": "unconfirmed",
	})
}

func (s *Server) cancelOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	order, err := s.orders.Cancel(c.Request.Context(), currentUser(c), orderID)
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": summaryView(order)})
}

func (s *Server) listOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	orderList, total, err := s.orders.List(c.Request.Context(), currentUser(c), page, pageSize)
	if err != nil {
		s.renderError(c, err)
		return
	}

	views := make([]OrderSummaryView, 0, len(orderList))
	for i := range orderList {
		views = append(views, summaryView(&orderList[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"orders":    views,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func (s *Server) getOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	order, items, err := s.orders.Get(c.Request.Context(), currentUser(c), orderID)
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": detailView(order, items)})
}

func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return 0, false
	}
	return uint(id), true
}
