package orders

import (
	"context"
	"strings"

	"comanda/internal/database"
	"comanda/internal/faults"
	"comanda/internal/metrics"
	"comanda/internal/models"
	"comanda/internal/stock"

	"github.com/jinzhu/gorm"
	"github.com/rs/zerolog"
)

// KitchenNotifier is the optional collaborator that mirrors primary
// order changes into the kitchen queue. Notification failures are
// reported as warnings, never errors: the kitchen mirror is
// best-effort and tolerates transient divergence.
type KitchenNotifier interface {
	OrderConfirmed(ctx context.Context, order *models.Order) error
	OrderCancelled(ctx context.Context, orderID string) error
}

// NoopKitchenNotifier is wired when kitchen sync is disabled.
type NoopKitchenNotifier struct{}

func (NoopKitchenNotifier) OrderConfirmed(context.Context, *models.Order) error { return nil }
func (NoopKitchenNotifier) OrderCancelled(context.Context, string) error        { return nil }

// Service owns the order lifecycle: guarded state transitions, the one
// active order per table rule, and the coordination with the stock
// reservation engine on confirm and cancel.
type Service struct {
	db      *gorm.DB
	stock   *stock.Service
	kitchen KitchenNotifier
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewService creates an order service. Kitchen sync starts disabled;
// call AttachKitchen to enable it.
func NewService(db *gorm.DB, stockSvc *stock.Service, log zerolog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		db:      db,
		stock:   stockSvc,
		kitchen: NoopKitchenNotifier{},
		log:     log.With().Str("component", "orders").Logger(),
		metrics: m,
	}
}

// AttachKitchen wires the kitchen mirror notifier.
func (s *Service) AttachKitchen(n KitchenNotifier) {
	if n != nil {
		s.kitchen = n
	}
}

// CreateRequest carries the fields for a plain order creation.
type CreateRequest struct {
	MenuItemID uint   `json:"menu_item_id" binding:"required"`
	Table      string `json:"table" binding:"required"`
	Customer   string `json:"customer"`
	Quantity   int    `json:"quantity"`
}

func (r *CreateRequest) normalize() error {
	r.Table = strings.TrimSpace(r.Table)
	if r.Table == "" {
		return &faults.ValidationError{Field: "table", Message: "is required"}
	}
	if r.Quantity == 0 {
		r.Quantity = 1
	}
	if r.Quantity < 0 {
		return &faults.ValidationError{Field: "quantity", Message: "must be greater than 0"}
	}
	return nil
}

// Create registers a new order in CREATED state without touching
// stock. The table occupancy rule is checked inside the same
// transaction that inserts the row.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Order, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}
	var order *models.Order
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		o, err := s.createTx(tx, req)
		if err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.OrdersCreated.Inc()
	s.log.Info().Str("order_id", order.ID).Str("table", order.Table).Msg("order created")
	return order, nil
}

func (s *Service) createTx(tx *gorm.DB, req CreateRequest) (*models.Order, error) {
	var item models.MenuItem
	if err := tx.Where("id = ? AND active = ?", req.MenuItemID, true).First(&item).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, &faults.NotFoundError{Resource: "menu item", ID: itoa(req.MenuItemID)}
		}
		return nil, err
	}

	// Lock any active order rows for this table so two concurrent
	// requests cannot both pass the occupancy check.
	var active []models.Order
	if err := database.ForUpdate(tx).
		Where("table_ref = ? AND state NOT IN (?)", req.Table, []models.OrderState{models.OrderClosed, models.OrderCancelled}).
		Find(&active).Error; err != nil {
		return nil, err
	}
	if len(active) > 0 {
		return nil, &faults.TableOccupiedError{Table: req.Table}
	}

	order := &models.Order{
		Table:      req.Table,
		Customer:   req.Customer,
		Item:       item.Name,
		MenuItemID: item.ID,
		Quantity:   req.Quantity,
		State:      models.OrderCreated,
	}
	if err := tx.Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

// PlaceOrder is the integrated entry point: it resolves the menu item,
// creates the order, and reserves stock in one transaction, then
// notifies the kitchen best-effort. A kitchen failure comes back as a
// warning on an otherwise successful response.
func (s *Service) PlaceOrder(ctx context.Context, req CreateRequest) (*models.Order, string, error) {
	if err := req.normalize(); err != nil {
		return nil, "", err
	}
	var order *models.Order
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		o, err := s.createTx(tx, req)
		if err != nil {
			return err
		}
		if _, err := s.stock.ReserveTx(tx, req.MenuItemID, req.Quantity, o.ID); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	s.metrics.OrdersCreated.Inc()
	s.log.Info().Str("order_id", order.ID).Str("table", order.Table).Msg("integrated order placed")

	warning := s.notifyKitchenConfirmed(ctx, order)
	return order, warning, nil
}

// Get loads one order by id.
func (s *Service) Get(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := s.db.Where("id = ?", id).First(&order).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, &faults.NotFoundError{Resource: "order", ID: id}
		}
		return nil, err
	}
	return &order, nil
}

// List returns orders newest first, optionally filtered by state.
func (s *Service) List(ctx context.Context, state string) ([]models.Order, error) {
	query := s.db.Order("created_at desc")
	if state != "" {
		st := models.OrderState(strings.ToUpper(state))
		if !st.Valid() {
			return nil, &faults.ValidationError{Field: "state", Message: "unknown state " + state}
		}
		query = query.Where("state = ?", st)
	}
	var list []models.Order
	if err := query.Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// ListActive returns every non-terminal order, oldest first, for the
// kitchen pull feed.
func (s *Service) ListActive(ctx context.Context) ([]models.Order, error) {
	var list []models.Order
	err := s.db.
		Where("state NOT IN (?)", []models.OrderState{models.OrderClosed, models.OrderCancelled}).
		Order("created_at asc").
		Find(&list).Error
	return list, err
}

// Confirm moves a CREATED order into preparation, reserving stock in
// the same transaction. An order that already holds an active
// reservation (integrated creation) is not charged twice. The kitchen
// is notified best-effort after commit.
func (s *Service) Confirm(ctx context.Context, id string) (*models.Order, string, error) {
	var order models.Order
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := s.lockOrder(tx, id, &order); err != nil {
			return err
		}
		if err := order.Confirm(); err != nil {
			return err
		}
		held, err := s.hasActiveReservation(tx, order.ID)
		if err != nil {
			return err
		}
		if !held {
			if _, err := s.stock.ReserveTx(tx, order.MenuItemID, order.Quantity, order.ID); err != nil {
				return err
			}
		}
		return tx.Save(&order).Error
	})
	if err != nil {
		return nil, "", err
	}
	s.metrics.OrderTransitions.WithLabelValues("confirm").Inc()
	s.log.Info().Str("order_id", order.ID).Msg("order confirmed")

	warning := s.notifyKitchenConfirmed(ctx, &order)
	return &order, warning, nil
}

// MarkReady records that the order finished preparation.
func (s *Service) MarkReady(ctx context.Context, id string) (*models.Order, error) {
	return s.applyTransition(ctx, id, "ready", func(o *models.Order) error { return o.MarkReady() })
}

// Deliver hands the order to the customer.
func (s *Service) Deliver(ctx context.Context, id string) (*models.Order, error) {
	return s.applyTransition(ctx, id, "deliver", func(o *models.Order) error { return o.Deliver() })
}

// Close settles a delivered order.
func (s *Service) Close(ctx context.Context, id string) (*models.Order, error) {
	return s.applyTransition(ctx, id, "close", func(o *models.Order) error { return o.Close() })
}

// Cancel voids the order and releases any stock it still holds, in one
// transaction. Cancelling an already-cancelled order is a no-op, so a
// retried cancel never releases stock twice. The kitchen is notified
// best-effort after commit.
func (s *Service) Cancel(ctx context.Context, id string) (*models.Order, string, error) {
	var order models.Order
	alreadyCancelled := false
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := s.lockOrder(tx, id, &order); err != nil {
			return err
		}
		if order.State == models.OrderCancelled {
			alreadyCancelled = true
			return nil
		}
		if err := order.Cancel(); err != nil {
			return err
		}
		if _, err := s.stock.ReleaseByOrderTx(tx, order.ID); err != nil {
			return err
		}
		return tx.Save(&order).Error
	})
	if err != nil {
		return nil, "", err
	}
	if alreadyCancelled {
		return &order, "", nil
	}
	s.metrics.OrderTransitions.WithLabelValues("cancel").Inc()
	s.log.Info().Str("order_id", order.ID).Msg("order cancelled")

	warning := ""
	if err := s.kitchen.OrderCancelled(ctx, order.ID); err != nil {
		warning = "order cancelled but kitchen could not be notified: " + err.Error()
		s.metrics.SyncWarnings.Inc()
		s.log.Warn().Str("order_id", order.ID).Err(err).Msg("kitchen cancel notification failed")
	}
	return &order, warning, nil
}

func (s *Service) applyTransition(ctx context.Context, id, event string, apply func(*models.Order) error) (*models.Order, error) {
	var order models.Order
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := s.lockOrder(tx, id, &order); err != nil {
			return err
		}
		if err := apply(&order); err != nil {
			return err
		}
		return tx.Save(&order).Error
	})
	if err != nil {
		return nil, err
	}
	s.metrics.OrderTransitions.WithLabelValues(event).Inc()
	s.log.Info().Str("order_id", order.ID).Str("event", event).Msg("order transition")
	return &order, nil
}

func (s *Service) lockOrder(tx *gorm.DB, id string, out *models.Order) error {
	if err := database.ForUpdate(tx).Where("id = ?", id).First(out).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return &faults.NotFoundError{Resource: "order", ID: id}
		}
		return err
	}
	return nil
}

func (s *Service) hasActiveReservation(tx *gorm.DB, orderID string) (bool, error) {
	var count int
	err := tx.Model(&models.StockReservation{}).
		Where("order_id = ? AND state <> ?", orderID, models.ReservationReleased).
		Count(&count).Error
	return count > 0, err
}

func (s *Service) notifyKitchenConfirmed(ctx context.Context, order *models.Order) string {
	if err := s.kitchen.OrderConfirmed(ctx, order); err != nil {
		s.metrics.SyncWarnings.Inc()
		s.log.Warn().Str("order_id", order.ID).Err(err).Msg("kitchen notification failed")
		return "order accepted but kitchen could not be notified: " + err.Error()
	}
	return ""
}
