package kitchen

import (
	"context"
	"strconv"
	"strings"

	"comanda/internal/database"
	"comanda/internal/faults"
	"comanda/internal/metrics"
	"comanda/internal/models"

	"github.com/jinzhu/gorm"
	"github.com/rs/zerolog"
)

// OrderNotifier propagates kitchen-side state changes back to the
// primary order. Propagation is best-effort: a failure is reported as
// a warning on the kitchen response and never rolls the kitchen
// change back.
type OrderNotifier interface {
	OrderStarted(ctx context.Context, orderID string) error
	OrderReady(ctx context.Context, orderID string) error
	OrderDelivered(ctx context.Context, orderID string) error
	OrderCancelled(ctx context.Context, orderID string) error
}

// NoopOrderNotifier is wired when kitchen sync is disabled.
type NoopOrderNotifier struct{}

func (NoopOrderNotifier) OrderStarted(context.Context, string) error   { return nil }
func (NoopOrderNotifier) OrderReady(context.Context, string) error     { return nil }
func (NoopOrderNotifier) OrderDelivered(context.Context, string) error { return nil }
func (NoopOrderNotifier) OrderCancelled(context.Context, string) error { return nil }

// Broadcaster pushes kitchen queue changes to live monitor clients.
type Broadcaster interface {
	Broadcast(event string, order *models.KitchenOrder)
}

type noopBroadcaster struct{}

func (noopBroadcaster) Broadcast(string, *models.KitchenOrder) {}

// Service manages the kitchen order queue: the mirror records the
// kitchen staff drive independently of the primary order lifecycle.
type Service struct {
	db      *gorm.DB
	orders  OrderNotifier
	feed    Broadcaster
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewService creates a kitchen service. Order sync and the live feed
// start disabled; use AttachOrders and AttachFeed to enable them.
func NewService(db *gorm.DB, log zerolog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		db:      db,
		orders:  NoopOrderNotifier{},
		feed:    noopBroadcaster{},
		log:     log.With().Str("component", "kitchen").Logger(),
		metrics: m,
	}
}

// AttachOrders wires back-propagation to the primary order service.
func (s *Service) AttachOrders(n OrderNotifier) {
	if n != nil {
		s.orders = n
	}
}

// AttachFeed wires the live monitor broadcaster.
func (s *Service) AttachFeed(b Broadcaster) {
	if b != nil {
		s.feed = b
	}
}

// IngestRequest is the payload the order subsystem (or an external
// till) submits to place an order on the kitchen queue.
type IngestRequest struct {
	OrderID     string `json:"order_id" binding:"required"`
	Table       int    `json:"table"`
	Customer    string `json:"customer"`
	Description string `json:"description"`
}

// Ingest upserts a kitchen order by external order id. Re-submitting
// the same id updates table, customer and description instead of
// duplicating the ticket. Returns the record and whether it was
// created.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*models.KitchenOrder, bool, error) {
	req.OrderID = strings.TrimSpace(req.OrderID)
	if req.OrderID == "" {
		return nil, false, &faults.ValidationError{Field: "order_id", Message: "is required"}
	}
	if req.Table <= 0 {
		req.Table = 1
	}

	var order models.KitchenOrder
	created := false
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		err := tx.Where("order_id = ?", req.OrderID).First(&order).Error
		switch {
		case gorm.IsRecordNotFoundError(err):
			order = models.KitchenOrder{
				OrderID:     &req.OrderID,
				Table:       req.Table,
				Customer:    req.Customer,
				Description: req.Description,
				State:       models.KitchenCreated,
			}
			created = true
			return tx.Create(&order).Error
		case err != nil:
			return err
		default:
			order.Table = req.Table
			order.Customer = req.Customer
			order.Description = req.Description
			return tx.Save(&order).Error
		}
	})
	if err != nil {
		return nil, false, err
	}

	s.updateActiveGauge()
	if created {
		s.feed.Broadcast("created", &order)
		s.log.Info().Str("order_id", req.OrderID).Msg("kitchen order created")
	} else {
		s.feed.Broadcast("updated", &order)
	}
	return &order, created, nil
}

// OrderConfirmed mirrors a confirmed primary order onto the kitchen
// queue. It satisfies the order package's KitchenNotifier interface.
func (s *Service) OrderConfirmed(ctx context.Context, order *models.Order) error {
	table := 1
	if n, err := strconv.Atoi(order.Table); err == nil && n > 0 {
		table = n
	}
	description := order.Item
	if order.Quantity > 1 {
		description = order.Item + " x" + strconv.Itoa(order.Quantity)
	}
	_, _, err := s.Ingest(ctx, IngestRequest{
		OrderID:     order.ID,
		Table:       table,
		Customer:    order.Customer,
		Description: description,
	})
	return err
}

// OrderCancelled removes the mirror for a cancelled primary order.
// A missing mirror is a no-op so repeated cancellations stay quiet.
func (s *Service) OrderCancelled(ctx context.Context, orderID string) error {
	var order models.KitchenOrder
	err := s.db.Where("order_id = ?", orderID).First(&order).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.db.Delete(&order).Error; err != nil {
		return err
	}
	s.updateActiveGauge()
	s.feed.Broadcast("removed", &order)
	return nil
}

// Get loads one kitchen order by id.
func (s *Service) Get(ctx context.Context, id uint) (*models.KitchenOrder, error) {
	var order models.KitchenOrder
	if err := s.db.Where("id = ?", id).First(&order).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, &faults.NotFoundError{Resource: "kitchen order", ID: strconv.FormatUint(uint64(id), 10)}
		}
		return nil, err
	}
	return &order, nil
}

// ListActive returns every kitchen order still in the queue, oldest
// first so the kitchen works in arrival order.
func (s *Service) ListActive(ctx context.Context) ([]models.KitchenOrder, error) {
	var list []models.KitchenOrder
	err := s.db.Where("state <> ?", models.KitchenDelivered).
		Order("created_at asc").
		Find(&list).Error
	return list, err
}

// MarkUrgent escalates a freshly created ticket.
func (s *Service) MarkUrgent(ctx context.Context, id uint) (*models.KitchenOrder, error) {
	order, err := s.transition(ctx, id, models.KitchenUrgent)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Start moves a ticket into preparation and propagates the start to
// the primary order when one is linked.
func (s *Service) Start(ctx context.Context, id uint) (*models.KitchenOrder, string, error) {
	order, err := s.transition(ctx, id, models.KitchenInPreparation)
	if err != nil {
		return nil, "", err
	}
	warning := s.propagate(ctx, order, "started", s.orders.OrderStarted)
	return order, warning, nil
}

// Ready marks a ticket finished, capturing ReadyAt on the first pass
// only, and propagates readiness to the primary order.
func (s *Service) Ready(ctx context.Context, id uint) (*models.KitchenOrder, string, error) {
	order, err := s.transition(ctx, id, models.KitchenReady)
	if err != nil {
		return nil, "", err
	}
	warning := s.propagate(ctx, order, "ready", s.orders.OrderReady)
	return order, warning, nil
}

// Deliver hands the ticket off, propagates delivery to the primary
// order, and retires the kitchen record.
func (s *Service) Deliver(ctx context.Context, id uint) (*models.KitchenOrder, string, error) {
	order, err := s.transition(ctx, id, models.KitchenDelivered)
	if err != nil {
		return nil, "", err
	}
	warning := s.propagate(ctx, order, "delivered", s.orders.OrderDelivered)

	if err := s.db.Delete(&models.KitchenOrder{}, "id = ?", order.ID).Error; err != nil {
		s.log.Warn().Uint("kitchen_order_id", order.ID).Err(err).Msg("could not retire delivered kitchen order")
	}
	s.updateActiveGauge()
	s.feed.Broadcast("removed", order)
	return order, warning, nil
}

// Cancel removes a ticket that never reached delivery. Ingredients are
// not involved on the kitchen side; the primary order's cancellation
// releases its own reservation.
func (s *Service) Cancel(ctx context.Context, id uint) (string, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if !order.Active() {
		return "", &faults.IllegalTransitionError{Entity: "kitchen order", From: string(order.State), Attempted: "cancel"}
	}
	if err := s.db.Delete(order).Error; err != nil {
		return "", err
	}
	s.updateActiveGauge()
	s.feed.Broadcast("removed", order)
	s.log.Info().Uint("kitchen_order_id", order.ID).Msg("kitchen order cancelled")

	warning := s.propagate(ctx, order, "cancelled", s.orders.OrderCancelled)
	return warning, nil
}

// PrepStats summarizes preparation times over tickets that reached
// READY.
type PrepStats struct {
	AverageMinutes float64 `json:"average_minutes"`
	MinMinutes     float64 `json:"min_minutes"`
	MaxMinutes     float64 `json:"max_minutes"`
	Count          int     `json:"count"`
}

// Stats computes preparation time statistics from creation to READY.
func (s *Service) Stats(ctx context.Context) (*PrepStats, error) {
	var finished []models.KitchenOrder
	if err := s.db.Where("ready_at IS NOT NULL").Find(&finished).Error; err != nil {
		return nil, err
	}
	stats := &PrepStats{Count: len(finished)}
	if len(finished) == 0 {
		return stats, nil
	}
	var total float64
	for i, order := range finished {
		minutes := order.ReadyAt.Sub(order.CreatedAt).Minutes()
		total += minutes
		if i == 0 || minutes < stats.MinMinutes {
			stats.MinMinutes = minutes
		}
		if minutes > stats.MaxMinutes {
			stats.MaxMinutes = minutes
		}
	}
	stats.AverageMinutes = total / float64(len(finished))
	return stats, nil
}

func (s *Service) transition(ctx context.Context, id uint, to models.KitchenState) (*models.KitchenOrder, error) {
	var order models.KitchenOrder
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := database.ForUpdate(tx).Where("id = ?", id).First(&order).Error; err != nil {
			if gorm.IsRecordNotFoundError(err) {
				return &faults.NotFoundError{Resource: "kitchen order", ID: strconv.FormatUint(uint64(id), 10)}
			}
			return err
		}
		if err := order.Transition(to); err != nil {
			return err
		}
		return tx.Save(&order).Error
	})
	if err != nil {
		return nil, err
	}
	s.updateActiveGauge()
	s.feed.Broadcast("updated", &order)
	s.log.Info().Uint("kitchen_order_id", order.ID).Str("state", string(order.State)).Msg("kitchen transition")
	return &order, nil
}

// propagate pushes a kitchen event to the linked primary order,
// downgrading any failure to a warning.
func (s *Service) propagate(ctx context.Context, order *models.KitchenOrder, event string, notify func(context.Context, string) error) string {
	if order.OrderID == nil || *order.OrderID == "" {
		return ""
	}
	if err := notify(ctx, *order.OrderID); err != nil {
		s.metrics.SyncWarnings.Inc()
		s.log.Warn().Str("order_id", *order.OrderID).Str("event", event).Err(err).
			Msg("primary order propagation failed")
		return "kitchen order " + event + " but primary order could not be updated: " + err.Error()
	}
	return ""
}

func (s *Service) updateActiveGauge() {
	var count int
	if err := s.db.Model(&models.KitchenOrder{}).Where("state <> ?", models.KitchenDelivered).
		Count(&count).Error; err == nil {
		s.metrics.KitchenActive.Set(float64(count))
	}
}
