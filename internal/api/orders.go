package api

import (
	"net/http"

	"comanda/internal/faults"
	"comanda/internal/orders"

	"github.com/gin-gonic/gin"
)

// Order lifecycle handlers

// CreateOrder registers a new order without touching stock; the order
// stays in CREATED until confirmed.
func (s *Server) CreateOrder(c *gin.Context) {
	var req orders.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &faults.ValidationError{Message: err.Error()})
		return
	}

	order, err := s.orders.Create(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// PlaceIntegratedOrder creates the order and reserves stock in one
// step, then notifies the kitchen. A kitchen failure is reported as a
// warning on the successful response.
func (s *Server) PlaceIntegratedOrder(c *gin.Context) {
	var req orders.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &faults.ValidationError{Message: err.Error()})
		return
	}

	order, warning, err := s.orders.PlaceOrder(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, withWarning(gin.H{"order": order}, warning))
}

// ListOrders returns orders newest first, optionally filtered with
// ?state=.
func (s *Server) ListOrders(c *gin.Context) {
	list, err := s.orders.List(c.Request.Context(), c.Query("state"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GetOrder returns one order by id.
func (s *Server) GetOrder(c *gin.Context) {
	order, err := s.orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// ConfirmOrder moves the order into preparation, reserving stock.
func (s *Server) ConfirmOrder(c *gin.Context) {
	order, warning, err := s.orders.Confirm(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, withWarning(gin.H{"order": order}, warning))
}

// ReadyOrder marks the order ready for pickup.
func (s *Server) ReadyOrder(c *gin.Context) {
	order, err := s.orders.MarkReady(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// DeliverOrder hands the order to the customer.
func (s *Server) DeliverOrder(c *gin.Context) {
	order, err := s.orders.Deliver(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// CloseOrder settles a delivered order.
func (s *Server) CloseOrder(c *gin.Context) {
	order, err := s.orders.Close(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// CancelOrder voids the order and releases any held stock.
func (s *Server) CancelOrder(c *gin.Context) {
	order, warning, err := s.orders.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, withWarning(gin.H{"order": order}, warning))
}
