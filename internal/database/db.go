package database

import (
	"fmt"

	"comanda/internal/faults"
	"comanda/internal/models"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	_ "github.com/jinzhu/gorm/dialects/sqlite" // SQLite driver
)

// Open connects to the configured database. Supported drivers are
// "sqlite3" for local development and tests, and "postgres" for
// production deployments.
func Open(driver, dsn string) (*gorm.DB, error) {
	switch driver {
	case "sqlite3", "postgres":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := gorm.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", faults.ErrDBConn, err)
	}
	return db, nil
}

// Migrate creates or updates the schema for every entity.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Category{},
		&models.Ingredient{},
		&models.MenuItem{},
		&models.RecipeLine{},
		&models.StockEntry{},
		&models.StockReservation{},
		&models.Order{},
		&models.KitchenOrder{},
	).Error
}

// ForUpdate adds SELECT ... FOR UPDATE semantics on dialects that
// support row locks. SQLite serializes writers on its own, so the
// query option is only applied on Postgres.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialect().GetName() == "postgres" {
		return tx.Set("gorm:query_option", "FOR UPDATE")
	}
	return tx
}

// WithTransaction runs fn inside a database transaction. The
// transaction commits when fn returns nil and rolls back on error or
// panic, so multi-row mutations are never partially visible.
func WithTransaction(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}
