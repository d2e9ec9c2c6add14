package models

import "time"

// StockEntry is the current available quantity of one ingredient.
// Available never goes negative; every mutation happens inside a
// transaction together with the sufficiency check.
type StockEntry struct {
	ID           uint       `gorm:"primary_key" json:"id"`
	IngredientID uint       `gorm:"unique_index;not null" json:"ingredient_id"`
	Ingredient   Ingredient `json:"ingredient"`
	Available    float64    `gorm:"not null;default:0" json:"available"`
}

// ReservationState represents the lifecycle of a stock reservation
type ReservationState string

const (
	ReservationReserved  ReservationState = "reserved"
	ReservationConfirmed ReservationState = "confirmed"
	ReservationReleased  ReservationState = "released"
)

// StockReservation records ingredients committed against one order.
// Immutable once created except for State.
type StockReservation struct {
	ID         uint             `gorm:"primary_key" json:"id"`
	MenuItemID uint             `gorm:"not null" json:"menu_item_id"`
	MenuItem   MenuItem         `json:"-"`
	Quantity   int              `gorm:"not null" json:"quantity"`
	State      ReservationState `gorm:"size:20;not null;default:'reserved'" json:"state"`
	OrderID    string           `gorm:"size:100;index" json:"order_id"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Active reports whether the reservation still holds stock.
func (r *StockReservation) Active() bool {
	return r.State != ReservationReleased
}
