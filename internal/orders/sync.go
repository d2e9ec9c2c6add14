package orders

import (
	"context"
	"strconv"

	"comanda/internal/database"
	"comanda/internal/models"

	"github.com/jinzhu/gorm"
)

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// Kitchen-driven propagation. These methods satisfy the kitchen
// package's OrderNotifier interface and always go through the guarded
// transition methods; kitchen sync never writes state fields directly.

// OrderStarted propagates the kitchen starting preparation. Orders not
// in CREATED are left alone: the kitchen may legitimately trail or
// lead the primary state.
func (s *Service) OrderStarted(ctx context.Context, orderID string) error {
	return database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var order models.Order
		if err := s.lockOrder(tx, orderID, &order); err != nil {
			return err
		}
		if order.State != models.OrderCreated {
			return nil
		}
		if err := order.Confirm(); err != nil {
			return err
		}
		if err := tx.Save(&order).Error; err != nil {
			return err
		}
		s.metrics.OrderTransitions.WithLabelValues("confirm").Inc()
		return nil
	})
}

// OrderReady propagates the kitchen finishing an order.
func (s *Service) OrderReady(ctx context.Context, orderID string) error {
	return s.propagate(ctx, orderID, "ready", models.OrderReady,
		func(o *models.Order) error { return o.MarkReady() })
}

// OrderDelivered propagates a kitchen-side delivery.
func (s *Service) OrderDelivered(ctx context.Context, orderID string) error {
	return s.propagate(ctx, orderID, "deliver", models.OrderDelivered,
		func(o *models.Order) error { return o.Deliver() })
}

// OrderCancelled propagates a kitchen-side cancellation, releasing any
// stock the order still holds.
func (s *Service) OrderCancelled(ctx context.Context, orderID string) error {
	_, _, err := s.Cancel(ctx, orderID)
	return err
}

func (s *Service) propagate(ctx context.Context, orderID, event string, target models.OrderState, apply func(*models.Order) error) error {
	return database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var order models.Order
		if err := s.lockOrder(tx, orderID, &order); err != nil {
			return err
		}
		if order.State == target {
			return nil
		}
		if err := apply(&order); err != nil {
			return err
		}
		if err := tx.Save(&order).Error; err != nil {
			return err
		}
		s.metrics.OrderTransitions.WithLabelValues(event).Inc()
		return nil
	})
}
