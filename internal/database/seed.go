package database

import (
	"comanda/internal/models"

	"github.com/jinzhu/gorm"
)

// Seed loads a small demo dataset: a short menu with recipes and
// enough stock to place a few orders. Intended for local development
// only; it does nothing when menu items already exist.
func Seed(db *gorm.DB) error {
	var count int
	if err := db.Model(&models.MenuItem{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	mains := models.Category{Name: "Mains", Description: "Main dishes"}
	if err := db.Create(&mains).Error; err != nil {
		return err
	}

	tomato := models.Ingredient{Name: "Tomato", Unit: string(models.UnitPiece), MinStock: 5}
	cheese := models.Ingredient{Name: "Cheese", Unit: string(models.UnitGram), MinStock: 100}
	flour := models.Ingredient{Name: "Flour", Unit: string(models.UnitGram), MinStock: 500}
	for _, ing := range []*models.Ingredient{&tomato, &cheese, &flour} {
		if err := db.Create(ing).Error; err != nil {
			return err
		}
	}

	pizza := models.MenuItem{
		Name:        "Pizza Margarita",
		Description: "Tomato and cheese pizza",
		Price:       12.99,
		CategoryID:  mains.ID,
		Active:      true,
	}
	if err := db.Create(&pizza).Error; err != nil {
		return err
	}

	lines := []models.RecipeLine{
		{MenuItemID: pizza.ID, IngredientID: tomato.ID, Quantity: 2},
		{MenuItemID: pizza.ID, IngredientID: cheese.ID, Quantity: 200},
		{MenuItemID: pizza.ID, IngredientID: flour.ID, Quantity: 300},
	}
	for i := range lines {
		if err := db.Create(&lines[i]).Error; err != nil {
			return err
		}
	}

	stock := []models.StockEntry{
		{IngredientID: tomato.ID, Available: 10},
		{IngredientID: cheese.ID, Available: 500},
		{IngredientID: flour.ID, Available: 2000},
	}
	for i := range stock {
		if err := db.Create(&stock[i]).Error; err != nil {
			return err
		}
	}
	return nil
}
