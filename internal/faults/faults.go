package faults

import (
	"errors"
	"fmt"
)

// Code identifies a business-rule violation in API responses.
type Code string

const (
	CodeNotFound          Code = "NOT_FOUND"
	CodeIllegalTransition Code = "ILLEGAL_TRANSITION"
	CodeInsufficientStock Code = "INSUFFICIENT_STOCK"
	CodeTableOccupied     Code = "TABLE_OCCUPIED"
	CodeIngredientConfig  Code = "INGREDIENT_CONFIGURATION"
	CodeValidation        Code = "VALIDATION"
	CodeInternal          Code = "INTERNAL"
)

var (
	ErrDBConn = errors.New("db connection failure")
)

// NotFoundError reports an unresolvable entity id.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// IllegalTransitionError reports a state-guard violation. The entity is
// left unmodified by the failed transition.
type IllegalTransitionError struct {
	Entity    string
	From      string
	Attempted string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %s to %s", e.Entity, e.From, e.Attempted)
}

// Deficiency names one ingredient that cannot cover a reservation.
type Deficiency struct {
	Ingredient string  `json:"ingredient"`
	Required   float64 `json:"required"`
	Available  float64 `json:"available"`
}

// InsufficientStockError itemizes every deficient ingredient for a
// failed reservation attempt.
type InsufficientStockError struct {
	Item         string
	Deficiencies []Deficiency
}

func (e *InsufficientStockError) Error() string {
	if len(e.Deficiencies) == 0 {
		return fmt.Sprintf("insufficient stock for %s", e.Item)
	}
	d := e.Deficiencies[0]
	msg := fmt.Sprintf("insufficient stock for %s: %s requires %.2f, available %.2f",
		e.Item, d.Ingredient, d.Required, d.Available)
	if len(e.Deficiencies) > 1 {
		msg = fmt.Sprintf("%s (and %d more)", msg, len(e.Deficiencies)-1)
	}
	return msg
}

// TableOccupiedError reports that a table already holds a non-terminal order.
type TableOccupiedError struct {
	Table string
}

func (e *TableOccupiedError) Error() string {
	return fmt.Sprintf("table %s already has an active order", e.Table)
}

// IngredientConfigError reports a recipe line whose ingredient has no
// stock row, a data integrity gap.
type IngredientConfigError struct {
	Ingredient string
}

func (e *IngredientConfigError) Error() string {
	return fmt.Sprintf("no stock entry configured for ingredient %s", e.Ingredient)
}

// ValidationError reports a malformed or missing input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CodeOf maps an error to its wire code. Unknown errors map to CodeInternal.
func CodeOf(err error) Code {
	var (
		nf *NotFoundError
		it *IllegalTransitionError
		is *InsufficientStockError
		to *TableOccupiedError
		ic *IngredientConfigError
		ve *ValidationError
	)
	switch {
	case errors.As(err, &nf):
		return CodeNotFound
	case errors.As(err, &it):
		return CodeIllegalTransition
	case errors.As(err, &is):
		return CodeInsufficientStock
	case errors.As(err, &to):
		return CodeTableOccupied
	case errors.As(err, &ic):
		return CodeIngredientConfig
	case errors.As(err, &ve):
		return CodeValidation
	default:
		return CodeInternal
	}
}
