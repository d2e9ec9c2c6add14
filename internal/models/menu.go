package models

import "fmt"

// Category groups menu items on the card.
type Category struct {
	ID          uint   `gorm:"primary_key" json:"id"`
	Name        string `gorm:"size:100;not null" json:"name"`
	Description string `json:"description"`
}

// Ingredient is a raw material tracked by the stock ledger.
type Ingredient struct {
	ID       uint    `gorm:"primary_key" json:"id"`
	Name     string  `gorm:"size:100;not null" json:"name"`
	Unit     string  `gorm:"size:10" json:"unit"`
	MinStock float64 `json:"min_stock"`
}

// IngredientUnit represents the unit of measurement for an ingredient
type IngredientUnit string

const (
	UnitGram  IngredientUnit = "g"
	UnitKilo  IngredientUnit = "kg"
	UnitPiece IngredientUnit = "un"
	UnitLiter IngredientUnit = "lt"
)

// MenuItem is a sellable dish. Items are never destroyed, only
// deactivated, so historical orders keep a valid reference.
type MenuItem struct {
	ID          uint         `gorm:"primary_key" json:"id"`
	Name        string       `gorm:"size:100;not null" json:"name"`
	Description string       `json:"description"`
	Price       float64      `json:"price"`
	CategoryID  uint         `json:"category_id"`
	Category    Category     `json:"-"`
	Active      bool         `gorm:"default:true" json:"active"`
	Recipe      []RecipeLine `gorm:"foreignkey:MenuItemID" json:"recipe,omitempty"`
}

// RecipeLine is the required quantity of one ingredient for one menu
// item. Unique per (item, ingredient) pair.
type RecipeLine struct {
	ID           uint       `gorm:"primary_key" json:"id"`
	MenuItemID   uint       `gorm:"unique_index:idx_recipe_item_ingredient;not null" json:"menu_item_id"`
	IngredientID uint       `gorm:"unique_index:idx_recipe_item_ingredient;not null" json:"ingredient_id"`
	Ingredient   Ingredient `json:"ingredient"`
	Quantity     float64    `gorm:"not null" json:"quantity"`
}

// ValidateMenuItem validates a menu item before it is persisted.
func ValidateMenuItem(item *MenuItem) error {
	if item.Name == "" {
		return fmt.Errorf("menu item name is required")
	}
	if item.Price <= 0 {
		return fmt.Errorf("menu item price must be greater than 0")
	}
	for _, line := range item.Recipe {
		if line.Quantity <= 0 {
			return fmt.Errorf("recipe quantity must be greater than 0")
		}
	}
	return nil
}
