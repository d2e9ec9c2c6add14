package api

import (
	"net/http"
	"strconv"

	"comanda/internal/faults"
	"comanda/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
)

// Catalog handlers: plain CRUD over the menu, ingredients and the
// stock ledger. The order core only ever reads these.

func (s *Server) ListCategories(c *gin.Context) {
	var categories []models.Category
	if err := s.db.Find(&categories).Error; err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (s *Server) CreateCategory(c *gin.Context) {
	var category models.Category
	if err := c.ShouldBindJSON(&category); err != nil {
		writeError(c, &faults.ValidationError{Message: err.Error()})
		return
	}
	if category.Name == "" {
		writeError(c, &faults.ValidationError{Field: "name", Message: "is required"})
		return
	}
	if err := s.db.Create(&category).Error; err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

func (s *Server) ListIngredients(c *gin.Context) {
	var ingredients []models.Ingredient
	if err := s.db.Find(&ingredients).Error; err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ingredients)
}

func (s *Server) CreateIngredient(c *gin.Context) {
	var ingredient models.Ingredient
	if err := c.ShouldBindJSON(&ingredient); err != nil {
		writeError(c, &faults.ValidationError{Message: err.Error()})
		return
	}
	if ingredient.Name == "" {
		writeError(c, &faults.ValidationError{Field: "name", Message: "is required"})
		return
	}
	if err := s.db.Create(&ingredient).Error; err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ingredient)
}

// ListMenuItems returns active menu items with their recipes.
func (s *Server) ListMenuItems(c *gin.Context) {
	var items []models.MenuItem
	if err := s.db.Where("active = ?", true).
		Preload("Recipe").Preload("Recipe.Ingredient").
		Find(&items).Error; err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) GetMenuItem(c *gin.Context) {
	var item models.MenuItem
	err := s.db.Where("id = ? AND active = ?", c.Param("id"), true).
		Preload("Recipe").Preload("Recipe.Ingredient").
		First(&item).Error
	if gorm.IsRecordNotFoundError(err) {
		writeError(c, &faults.NotFoundError{Resource: "menu item", ID: c.Param("id")})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) CreateMenuItem(c *gin.Context) {
	var item models.MenuItem
	if err := c.ShouldBindJSON(&item); err != nil {
		writeError(c, &faults.ValidationError{Message: err.Error()})
		return
	}
	if err := models.ValidateMenuItem(&item); err != nil {
		writeError(c, &faults.ValidationError{Message: err.Error()})
		return
	}
	item.Active = true
	if err := s.db.Create(&item).Error; err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (s *Server) UpdateMenuItem(c *gin.Context) {
	var item models.MenuItem
	err := s.db.Where("id = ? AND active = ?", c.Param("id"), true).First(&item).Error
	if gorm.IsRecordNotFoundError(err) {
		writeError(c, &faults.NotFoundError{Resource: "menu item", ID: c.Param("id")})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}

	var update models.MenuItem
	if err := c.ShouldBindJSON(&update); err != nil {
		writeError(c, &faults.ValidationError{Message: err.Error()})
		return
	}
	item.Name = update.Name
	item.Description = update.Description
	item.Price = update.Price
	if update.CategoryID != 0 {
		item.CategoryID = update.CategoryID
	}
	if err := models.ValidateMenuItem(&item); err != nil {
		writeError(c, &faults.ValidationError{Message: err.Error()})
		return
	}
	if err := s.db.Save(&item).Error; err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// DeactivateMenuItem soft-deletes: the item disappears from the card
// but stays referenced by historical orders.
func (s *Server) DeactivateMenuItem(c *gin.Context) {
	var item models.MenuItem
	err := s.db.Where("id = ?", c.Param("id")).First(&item).Error
	if gorm.IsRecordNotFoundError(err) {
		writeError(c, &faults.NotFoundError{Resource: "menu item", ID: c.Param("id")})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	if err := s.db.Model(&item).Update("active", false).Error; err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "menu item deactivated"})
}

func (s *Server) ListStock(c *gin.Context) {
	var entries []models.StockEntry
	if err := s.db.Preload("Ingredient").Find(&entries).Error; err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// ListLowStock returns entries at or below their ingredient minimum.
func (s *Server) ListLowStock(c *gin.Context) {
	entries, err := s.stock.LowStock(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// SetStock creates or replaces the ledger entry for one ingredient.
func (s *Server) SetStock(c *gin.Context) {
	ingredientID, err := strconv.ParseUint(c.Param("ingredientID"), 10, 32)
	if err != nil {
		writeError(c, &faults.ValidationError{Field: "ingredientID", Message: "must be numeric"})
		return
	}
	var body struct {
		Available float64 `json:"available"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, &faults.ValidationError{Message: err.Error()})
		return
	}
	if body.Available < 0 {
		writeError(c, &faults.ValidationError{Field: "available", Message: "must not be negative"})
		return
	}

	var ingredient models.Ingredient
	if gorm.IsRecordNotFoundError(s.db.Where("id = ?", ingredientID).First(&ingredient).Error) {
		writeError(c, &faults.NotFoundError{Resource: "ingredient", ID: c.Param("ingredientID")})
		return
	}

	var entry models.StockEntry
	err = s.db.Where("ingredient_id = ?", ingredientID).First(&entry).Error
	switch {
	case gorm.IsRecordNotFoundError(err):
		entry = models.StockEntry{IngredientID: uint(ingredientID), Available: body.Available}
		err = s.db.Create(&entry).Error
	case err == nil:
		err = s.db.Model(&entry).Update("available", body.Available).Error
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// ValidateStock runs a read-only sufficiency check for a menu item and
// quantity, listing any deficient ingredients.
func (s *Server) ValidateStock(c *gin.Context) {
	var req struct {
		MenuItemID uint `json:"menu_item_id" binding:"required"`
		Quantity   int  `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &faults.ValidationError{Message: err.Error()})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	item, deficiencies, err := s.stock.Check(c.Request.Context(), req.MenuItemID, req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"item":         item.Name,
		"quantity":     req.Quantity,
		"sufficient":   len(deficiencies) == 0,
		"deficiencies": deficiencies,
	})
}
