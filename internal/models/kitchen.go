package models

import (
	"time"

	"comanda/internal/faults"
)

// KitchenState represents the possible states of a kitchen order
type KitchenState string

const (
	KitchenUrgent        KitchenState = "URGENT"
	KitchenCreated       KitchenState = "CREATED"
	KitchenInPreparation KitchenState = "IN_PREPARATION"
	KitchenReady         KitchenState = "READY"
	KitchenDelivered     KitchenState = "DELIVERED"
)

// kitchenTransitions lists the allowed target states per source state.
var kitchenTransitions = map[KitchenState][]KitchenState{
	KitchenUrgent:        {KitchenInPreparation},
	KitchenCreated:       {KitchenUrgent, KitchenInPreparation},
	KitchenInPreparation: {KitchenReady},
	KitchenReady:         {KitchenDelivered},
	KitchenDelivered:     {},
}

// KitchenOrder mirrors a primary order's preparation status for the
// kitchen staff. It lives in its own identity space and links back to
// the primary order through OrderID when one exists.
type KitchenOrder struct {
	ID          uint         `gorm:"primary_key" json:"id"`
	OrderID     *string      `gorm:"size:100;unique_index" json:"order_id,omitempty"`
	Table       int          `gorm:"column:table_no;default:1" json:"table"`
	Customer    string       `gorm:"size:100" json:"customer"`
	Description string       `json:"description"`
	State       KitchenState `gorm:"size:20;index" json:"state"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	ReadyAt     *time.Time   `json:"ready_at,omitempty"`
}

// Active reports whether the kitchen order still needs attention.
func (k *KitchenOrder) Active() bool {
	return k.State != KitchenDelivered
}

// Transition moves the kitchen order to the target state if the
// transition table allows it. ReadyAt is captured on the first pass
// into READY only.
func (k *KitchenOrder) Transition(to KitchenState) error {
	for _, allowed := range kitchenTransitions[k.State] {
		if allowed == to {
			k.State = to
			k.UpdatedAt = time.Now()
			if to == KitchenReady && k.ReadyAt == nil {
				now := time.Now()
				k.ReadyAt = &now
			}
			return nil
		}
	}
	return &faults.IllegalTransitionError{Entity: "kitchen order", From: string(k.State), Attempted: string(to)}
}
