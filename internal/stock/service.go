package stock

import (
	"context"
	"strconv"

	"comanda/internal/database"
	"comanda/internal/faults"
	"comanda/internal/metrics"
	"comanda/internal/models"

	"github.com/jinzhu/gorm"
	"github.com/rs/zerolog"
)

// Service is the stock reservation engine. It validates sufficiency
// across every recipe line of a menu item and commits the ledger
// decrement all-or-nothing: a concurrent reservation never observes a
// partial decrement and the ledger never goes negative.
type Service struct {
	db      *gorm.DB
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewService creates a stock service on top of the shared database.
func NewService(db *gorm.DB, log zerolog.Logger, m *metrics.Metrics) *Service {
	return &Service{db: db, log: log.With().Str("component", "stock").Logger(), metrics: m}
}

// Check performs a read-only sufficiency check for quantity portions of
// the menu item. It returns the resolved item and the list of deficient
// ingredients; an empty list means the reservation would succeed right
// now. Nothing is mutated.
func (s *Service) Check(ctx context.Context, menuItemID uint, quantity int) (*models.MenuItem, []faults.Deficiency, error) {
	if quantity <= 0 {
		return nil, nil, &faults.ValidationError{Field: "quantity", Message: "must be greater than 0"}
	}
	item, lines, err := s.resolveItem(s.db, menuItemID)
	if err != nil {
		return nil, nil, err
	}
	deficiencies, err := s.findDeficiencies(s.db, lines, quantity)
	if err != nil {
		return nil, nil, err
	}
	return item, deficiencies, nil
}

// Reserve validates and commits a reservation for quantity portions of
// the menu item on behalf of orderID, inside its own transaction.
func (s *Service) Reserve(ctx context.Context, menuItemID uint, quantity int, orderID string) (*models.StockReservation, error) {
	var reservation *models.StockReservation
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		r, err := s.ReserveTx(tx, menuItemID, quantity, orderID)
		if err != nil {
			return err
		}
		reservation = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reservation, nil
}

// ReserveTx runs the reservation inside the caller's transaction so an
// order creation or confirmation can commit atomically with its stock
// decrement. The decrement itself is guarded: each ledger row is only
// updated when it still covers the required quantity, and a row that
// lost the race aborts the whole transaction.
func (s *Service) ReserveTx(tx *gorm.DB, menuItemID uint, quantity int, orderID string) (*models.StockReservation, error) {
	if quantity <= 0 {
		return nil, &faults.ValidationError{Field: "quantity", Message: "must be greater than 0"}
	}

	item, lines, err := s.resolveItem(tx, menuItemID)
	if err != nil {
		return nil, err
	}

	deficiencies, err := s.findDeficiencies(tx, lines, quantity)
	if err != nil {
		return nil, err
	}
	if len(deficiencies) > 0 {
		s.metrics.StockRejections.Inc()
		return nil, &faults.InsufficientStockError{Item: item.Name, Deficiencies: deficiencies}
	}

	reservation := &models.StockReservation{
		MenuItemID: item.ID,
		Quantity:   quantity,
		State:      models.ReservationReserved,
		OrderID:    orderID,
	}
	if err := tx.Create(reservation).Error; err != nil {
		return nil, err
	}

	for _, line := range lines {
		needed := line.Quantity * float64(quantity)
		res := tx.Model(&models.StockEntry{}).
			Where("ingredient_id = ? AND available >= ?", line.IngredientID, needed).
			Update("available", gorm.Expr("available - ?", needed))
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			// A concurrent reservation won the row since the
			// sufficiency pass; abort so nothing stays decremented.
			var entry models.StockEntry
			available := 0.0
			if err := tx.Where("ingredient_id = ?", line.IngredientID).First(&entry).Error; err == nil {
				available = entry.Available
			}
			s.metrics.StockRejections.Inc()
			return nil, &faults.InsufficientStockError{
				Item: item.Name,
				Deficiencies: []faults.Deficiency{{
					Ingredient: line.Ingredient.Name,
					Required:   needed,
					Available:  available,
				}},
			}
		}
	}

	s.metrics.Reservations.Inc()
	s.log.Info().Str("order_id", orderID).Uint("menu_item_id", item.ID).Int("quantity", quantity).
		Msg("stock reserved")
	return reservation, nil
}

// Release restores the ingredients held by a reservation back to the
// ledger and marks it released. Releasing an already-released
// reservation is a no-op.
func (s *Service) Release(ctx context.Context, reservationID uint) (*models.StockReservation, error) {
	var reservation models.StockReservation
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", reservationID).First(&reservation).Error; err != nil {
			if gorm.IsRecordNotFoundError(err) {
				return &faults.NotFoundError{Resource: "stock reservation", ID: itoa(reservationID)}
			}
			return err
		}
		return s.releaseTx(tx, &reservation)
	})
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// ReleaseByOrderTx releases every active reservation held by an order,
// inside the caller's transaction. It reports whether anything was
// released; an order without active reservations is a no-op.
func (s *Service) ReleaseByOrderTx(tx *gorm.DB, orderID string) (bool, error) {
	var reservations []models.StockReservation
	if err := tx.Where("order_id = ? AND state <> ?", orderID, models.ReservationReleased).
		Find(&reservations).Error; err != nil {
		return false, err
	}
	for i := range reservations {
		if err := s.releaseTx(tx, &reservations[i]); err != nil {
			return false, err
		}
	}
	return len(reservations) > 0, nil
}

// LowStock lists ledger entries at or below their ingredient's
// configured minimum.
func (s *Service) LowStock(ctx context.Context) ([]models.StockEntry, error) {
	var entries []models.StockEntry
	err := s.db.
		Joins("JOIN ingredients ON ingredients.id = stock_entries.ingredient_id").
		Where("stock_entries.available <= ingredients.min_stock").
		Preload("Ingredient").
		Find(&entries).Error
	return entries, err
}

func (s *Service) releaseTx(tx *gorm.DB, reservation *models.StockReservation) error {
	if reservation.State == models.ReservationReleased {
		return nil
	}
	var lines []models.RecipeLine
	if err := tx.Preload("Ingredient").Where("menu_item_id = ?", reservation.MenuItemID).
		Find(&lines).Error; err != nil {
		return err
	}
	for _, line := range lines {
		restored := line.Quantity * float64(reservation.Quantity)
		res := tx.Model(&models.StockEntry{}).
			Where("ingredient_id = ?", line.IngredientID).
			Update("available", gorm.Expr("available + ?", restored))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &faults.IngredientConfigError{Ingredient: line.Ingredient.Name}
		}
	}
	reservation.State = models.ReservationReleased
	if err := tx.Model(reservation).Update("state", models.ReservationReleased).Error; err != nil {
		return err
	}
	s.metrics.Releases.Inc()
	s.log.Info().Str("order_id", reservation.OrderID).Uint("reservation_id", reservation.ID).
		Msg("stock reservation released")
	return nil
}

func (s *Service) resolveItem(tx *gorm.DB, menuItemID uint) (*models.MenuItem, []models.RecipeLine, error) {
	var item models.MenuItem
	if err := tx.Where("id = ? AND active = ?", menuItemID, true).First(&item).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, nil, &faults.NotFoundError{Resource: "menu item", ID: itoa(menuItemID)}
		}
		return nil, nil, err
	}
	var lines []models.RecipeLine
	if err := tx.Preload("Ingredient").Where("menu_item_id = ?", item.ID).Find(&lines).Error; err != nil {
		return nil, nil, err
	}
	return &item, lines, nil
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func (s *Service) findDeficiencies(tx *gorm.DB, lines []models.RecipeLine, quantity int) ([]faults.Deficiency, error) {
	var deficiencies []faults.Deficiency
	for _, line := range lines {
		var entry models.StockEntry
		if err := tx.Where("ingredient_id = ?", line.IngredientID).First(&entry).Error; err != nil {
			if gorm.IsRecordNotFoundError(err) {
				return nil, &faults.IngredientConfigError{Ingredient: line.Ingredient.Name}
			}
			return nil, err
		}
		needed := line.Quantity * float64(quantity)
		if entry.Available < needed {
			deficiencies = append(deficiencies, faults.Deficiency{
				Ingredient: line.Ingredient.Name,
				Required:   needed,
				Available:  entry.Available,
			})
		}
	}
	return deficiencies, nil
}
