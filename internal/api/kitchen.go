package api

import (
	"net/http"
	"strconv"

	"comanda/internal/faults"
	"comanda/internal/kitchen"

	"github.com/gin-gonic/gin"
)

// Kitchen queue handlers

func kitchenID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, &faults.ValidationError{Field: "id", Message: "must be a numeric kitchen order id"}
	}
	return uint(id), nil
}

// ListKitchenOrders returns the active queue, oldest first.
func (s *Server) ListKitchenOrders(c *gin.Context) {
	list, err := s.kitchen.ListActive(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// IngestKitchenOrder upserts a ticket by external order id. Repeating
// the same id updates the ticket instead of duplicating it.
func (s *Server) IngestKitchenOrder(c *gin.Context) {
	var req kitchen.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &faults.ValidationError{Message: err.Error()})
		return
	}

	order, created, err := s.kitchen.Ingest(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"created": created, "order": order})
}

// KitchenStats returns preparation-time statistics.
func (s *Server) KitchenStats(c *gin.Context) {
	stats, err := s.kitchen.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// UrgentKitchenOrder escalates a freshly created ticket.
func (s *Server) UrgentKitchenOrder(c *gin.Context) {
	id, err := kitchenID(c)
	if err != nil {
		writeError(c, err)
		return
	}
	order, err := s.kitchen.MarkUrgent(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// StartKitchenOrder begins preparation and propagates the start to the
// primary order.
func (s *Server) StartKitchenOrder(c *gin.Context) {
	id, err := kitchenID(c)
	if err != nil {
		writeError(c, err)
		return
	}
	order, warning, err := s.kitchen.Start(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, withWarning(gin.H{"order": order}, warning))
}

// ReadyKitchenOrder marks the ticket finished.
func (s *Server) ReadyKitchenOrder(c *gin.Context) {
	id, err := kitchenID(c)
	if err != nil {
		writeError(c, err)
		return
	}
	order, warning, err := s.kitchen.Ready(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, withWarning(gin.H{"order": order}, warning))
}

// DeliverKitchenOrder hands the ticket off and retires it.
func (s *Server) DeliverKitchenOrder(c *gin.Context) {
	id, err := kitchenID(c)
	if err != nil {
		writeError(c, err)
		return
	}
	order, warning, err := s.kitchen.Deliver(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, withWarning(gin.H{"order": order}, warning))
}

// CancelKitchenOrder removes a ticket and propagates the cancellation.
func (s *Server) CancelKitchenOrder(c *gin.Context) {
	id, err := kitchenID(c)
	if err != nil {
		writeError(c, err)
		return
	}
	warning, err := s.kitchen.Cancel(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, withWarning(gin.H{"message": "kitchen order cancelled"}, warning))
}
