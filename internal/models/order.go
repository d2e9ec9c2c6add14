package models

import (
	"time"

	"comanda/internal/faults"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
)

// OrderState represents the possible states of an order
type OrderState string

const (
	OrderCreated       OrderState = "CREATED"
	OrderInPreparation OrderState = "IN_PREPARATION"
	OrderReady         OrderState = "READY"
	OrderDelivered     OrderState = "DELIVERED"
	OrderClosed        OrderState = "CLOSED"
	OrderCancelled     OrderState = "CANCELLED"
)

// Terminal reports whether the state admits no further transitions.
func (s OrderState) Terminal() bool {
	return s == OrderClosed || s == OrderCancelled
}

// Valid reports whether s is a known order state.
func (s OrderState) Valid() bool {
	switch s {
	case OrderCreated, OrderInPreparation, OrderReady, OrderDelivered, OrderClosed, OrderCancelled:
		return true
	}
	return false
}

// Order is a customer's placed request for a menu item at a table.
// State only moves through the guarded transition methods; at most one
// non-terminal order exists per table at a time.
type Order struct {
	ID          string     `gorm:"primary_key;size:36" json:"id"`
	Table       string     `gorm:"column:table_ref;size:20;index" json:"table"`
	Customer    string     `gorm:"size:100" json:"customer"`
	Item        string     `gorm:"size:100" json:"item"`
	MenuItemID  uint       `json:"menu_item_id"`
	Quantity    int        `gorm:"default:1" json:"quantity"`
	State       OrderState `gorm:"size:20;index" json:"state"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// BeforeCreate assigns the order identifier. Identifiers are never reused.
func (o *Order) BeforeCreate(scope *gorm.Scope) error {
	if o.ID == "" {
		return scope.SetColumn("ID", uuid.NewString())
	}
	return nil
}

func (o *Order) transition(to OrderState, allowedFrom ...OrderState) error {
	for _, from := range allowedFrom {
		if o.State == from {
			o.State = to
			o.UpdatedAt = time.Now()
			return nil
		}
	}
	return &faults.IllegalTransitionError{Entity: "order", From: string(o.State), Attempted: string(to)}
}

// Confirm moves a freshly created order into preparation. The caller is
// responsible for reserving stock alongside this transition.
func (o *Order) Confirm() error {
	return o.transition(OrderInPreparation, OrderCreated)
}

// MarkReady records that the kitchen finished the order.
func (o *Order) MarkReady() error {
	return o.transition(OrderReady, OrderInPreparation)
}

// Deliver hands the order to the customer. DeliveredAt is captured on
// the first delivery only.
func (o *Order) Deliver() error {
	if err := o.transition(OrderDelivered, OrderReady); err != nil {
		return err
	}
	if o.DeliveredAt == nil {
		now := time.Now()
		o.DeliveredAt = &now
	}
	return nil
}

// Close settles a delivered order.
func (o *Order) Close() error {
	return o.transition(OrderClosed, OrderDelivered)
}

// Cancel voids the order from any state that is not already terminal.
// Releasing any held stock reservation is the caller's responsibility.
func (o *Order) Cancel() error {
	if o.State.Terminal() {
		return &faults.IllegalTransitionError{Entity: "order", From: string(o.State), Attempted: string(OrderCancelled)}
	}
	o.State = OrderCancelled
	o.UpdatedAt = time.Now()
	return nil
}
