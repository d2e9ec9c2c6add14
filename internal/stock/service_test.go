package stock

import (
	"context"
	"sync"
	"testing"

	"comanda/internal/database"
	"comanda/internal/faults"
	"comanda/internal/metrics"
	"comanda/internal/models"

	"github.com/jinzhu/gorm"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.DB().SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { db.Close() })
	return db
}

// fixture creates the pizza from the menu demo: 2 tomatoes (stock 10)
// and 200g cheese (stock 500) per portion.
type fixture struct {
	item   models.MenuItem
	tomato models.Ingredient
	cheese models.Ingredient
}

func newFixture(t *testing.T, db *gorm.DB) fixture {
	t.Helper()
	f := fixture{
		tomato: models.Ingredient{Name: "Tomato", Unit: "un", MinStock: 5},
		cheese: models.Ingredient{Name: "Cheese", Unit: "g", MinStock: 100},
	}
	require.NoError(t, db.Create(&f.tomato).Error)
	require.NoError(t, db.Create(&f.cheese).Error)

	f.item = models.MenuItem{Name: "Pizza Margarita", Price: 12.99, Active: true}
	require.NoError(t, db.Create(&f.item).Error)

	require.NoError(t, db.Create(&models.RecipeLine{
		MenuItemID: f.item.ID, IngredientID: f.tomato.ID, Quantity: 2,
	}).Error)
	require.NoError(t, db.Create(&models.RecipeLine{
		MenuItemID: f.item.ID, IngredientID: f.cheese.ID, Quantity: 200,
	}).Error)

	require.NoError(t, db.Create(&models.StockEntry{IngredientID: f.tomato.ID, Available: 10}).Error)
	require.NoError(t, db.Create(&models.StockEntry{IngredientID: f.cheese.ID, Available: 500}).Error)
	return f
}

func available(t *testing.T, db *gorm.DB, ingredientID uint) float64 {
	t.Helper()
	var entry models.StockEntry
	require.NoError(t, db.Where("ingredient_id = ?", ingredientID).First(&entry).Error)
	return entry.Available
}

func newService(db *gorm.DB) *Service {
	return NewService(db, zerolog.Nop(), metrics.New())
}

func TestReserveDecrementsEveryIngredient(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	svc := newService(db)

	reservation, err := svc.Reserve(context.Background(), f.item.ID, 2, "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReservationReserved, reservation.State)
	assert.Equal(t, 2, reservation.Quantity)
	assert.Equal(t, "ORDER-1", reservation.OrderID)

	assert.Equal(t, 6.0, available(t, db, f.tomato.ID))   // 10 - 2*2
	assert.Equal(t, 100.0, available(t, db, f.cheese.ID)) // 500 - 200*2
}

func TestReserveInsufficientStockListsDeficiencies(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	svc := newService(db)

	_, err := svc.Reserve(context.Background(), f.item.ID, 10, "ORDER-1")

	var insufficient *faults.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "Pizza Margarita", insufficient.Item)
	require.Len(t, insufficient.Deficiencies, 2)
	assert.Equal(t, "Tomato", insufficient.Deficiencies[0].Ingredient)
	assert.Equal(t, 20.0, insufficient.Deficiencies[0].Required)
	assert.Equal(t, 10.0, insufficient.Deficiencies[0].Available)

	// all-or-nothing: a failed reservation mutates nothing
	assert.Equal(t, 10.0, available(t, db, f.tomato.ID))
	assert.Equal(t, 500.0, available(t, db, f.cheese.ID))
}

func TestReservePartialDeficiencyMutatesNothing(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	svc := newService(db)

	// 2 portions leave enough tomato but not enough cheese.
	require.NoError(t, db.Model(&models.StockEntry{}).
		Where("ingredient_id = ?", f.cheese.ID).
		Update("available", 300).Error)

	_, err := svc.Reserve(context.Background(), f.item.ID, 2, "ORDER-1")

	var insufficient *faults.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Len(t, insufficient.Deficiencies, 1)
	assert.Equal(t, "Cheese", insufficient.Deficiencies[0].Ingredient)

	assert.Equal(t, 10.0, available(t, db, f.tomato.ID))
	assert.Equal(t, 300.0, available(t, db, f.cheese.ID))
}

func TestReserveUnknownOrInactiveItem(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	svc := newService(db)

	_, err := svc.Reserve(context.Background(), 999, 1, "ORDER-1")
	var notFound *faults.NotFoundError
	require.ErrorAs(t, err, &notFound)

	require.NoError(t, db.Model(&f.item).Update("active", false).Error)
	_, err = svc.Reserve(context.Background(), f.item.ID, 1, "ORDER-2")
	require.ErrorAs(t, err, &notFound)
}

func TestReserveMissingStockEntry(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	svc := newService(db)

	require.NoError(t, db.Where("ingredient_id = ?", f.cheese.ID).
		Delete(&models.StockEntry{}).Error)

	_, err := svc.Reserve(context.Background(), f.item.ID, 1, "ORDER-1")

	var config *faults.IngredientConfigError
	require.ErrorAs(t, err, &config)
	assert.Equal(t, "Cheese", config.Ingredient)
}

func TestReserveRejectsNonPositiveQuantity(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	svc := newService(db)

	for _, qty := range []int{0, -1} {
		_, err := svc.Reserve(context.Background(), f.item.ID, qty, "ORDER-1")
		var validation *faults.ValidationError
		require.ErrorAs(t, err, &validation)
	}
}

func TestReleaseRestoresExactly(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	svc := newService(db)

	reservation, err := svc.Reserve(context.Background(), f.item.ID, 3, "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, 4.0, available(t, db, f.tomato.ID))

	released, err := svc.Release(context.Background(), reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationReleased, released.State)

	// round-trip identity
	assert.Equal(t, 10.0, available(t, db, f.tomato.ID))
	assert.Equal(t, 500.0, available(t, db, f.cheese.ID))
}

func TestReleaseIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	svc := newService(db)

	reservation, err := svc.Reserve(context.Background(), f.item.ID, 1, "ORDER-1")
	require.NoError(t, err)

	_, err = svc.Release(context.Background(), reservation.ID)
	require.NoError(t, err)
	_, err = svc.Release(context.Background(), reservation.ID)
	require.NoError(t, err)

	// the second release must not restore twice
	assert.Equal(t, 10.0, available(t, db, f.tomato.ID))
	assert.Equal(t, 500.0, available(t, db, f.cheese.ID))
}

func TestReleaseByOrder(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	svc := newService(db)

	_, err := svc.Reserve(context.Background(), f.item.ID, 2, "ORDER-1")
	require.NoError(t, err)

	var released bool
	require.NoError(t, database.WithTransaction(db, func(tx *gorm.DB) error {
		var err error
		released, err = svc.ReleaseByOrderTx(tx, "ORDER-1")
		return err
	}))
	assert.True(t, released)
	assert.Equal(t, 10.0, available(t, db, f.tomato.ID))

	// no active reservation left: a repeat is a quiet no-op
	require.NoError(t, database.WithTransaction(db, func(tx *gorm.DB) error {
		var err error
		released, err = svc.ReleaseByOrderTx(tx, "ORDER-1")
		return err
	}))
	assert.False(t, released)
	assert.Equal(t, 10.0, available(t, db, f.tomato.ID))
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	svc := newService(db)

	// Each attempt needs 6 tomatoes; stock covers exactly one of them.
	results := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.Reserve(context.Background(), f.item.ID, 3, "ORDER-A")
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
			continue
		}
		var insufficient *faults.InsufficientStockError
		require.ErrorAs(t, err, &insufficient)
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 4.0, available(t, db, f.tomato.ID))
}

func TestCheckIsReadOnly(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	svc := newService(db)

	item, deficiencies, err := svc.Check(context.Background(), f.item.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, "Pizza Margarita", item.Name)
	assert.Empty(t, deficiencies)

	_, deficiencies, err = svc.Check(context.Background(), f.item.ID, 6)
	require.NoError(t, err)
	require.Len(t, deficiencies, 1)
	assert.Equal(t, "Tomato", deficiencies[0].Ingredient)

	assert.Equal(t, 10.0, available(t, db, f.tomato.ID))
}

func TestLowStock(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	svc := newService(db)

	entries, err := svc.LowStock(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, db.Model(&models.StockEntry{}).
		Where("ingredient_id = ?", f.tomato.ID).
		Update("available", 5).Error)

	entries, err = svc.LowStock(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, f.tomato.ID, entries[0].IngredientID)
}
