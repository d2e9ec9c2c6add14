package orders

import (
	"context"
	"errors"
	"testing"

	"comanda/internal/database"
	"comanda/internal/faults"
	"comanda/internal/metrics"
	"comanda/internal/models"
	"comanda/internal/stock"

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

type fixture struct {
	db     *gorm.DB
	svc    *Service
	item   models.MenuItem
	tomato models.Ingredient
}

// newFixture seeds one menu item whose recipe takes 2 tomatoes and
// 200g cheese per portion, with stock for 5 portions on tomatoes.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	f := &fixture{db: db}

	f.tomato = models.Ingredient{Name: "Tomato", Unit: "un", MinStock: 2}
	cheese := models.Ingredient{Name: "Cheese", Unit: "g", MinStock: 100}
	require.NoError(t, db.Create(&f.tomato).Error)
	require.NoError(t, db.Create(&cheese).Error)

	f.item = models.MenuItem{Name: "Pizza Margarita", Price: 12.99, Active: true}
	require.NoError(t, db.Create(&f.item).Error)
	require.NoError(t, db.Create(&models.RecipeLine{MenuItemID: f.item.ID, IngredientID: f.tomato.ID, Quantity: 2}).Error)
	require.NoError(t, db.Create(&models.RecipeLine{MenuItemID: f.item.ID, IngredientID: cheese.ID, Quantity: 200}).Error)
	require.NoError(t, db.Create(&models.StockEntry{IngredientID: f.tomato.ID, Available: 10}).Error)
	require.NoError(t, db.Create(&models.StockEntry{IngredientID: cheese.ID, Available: 1000}).Error)

	m := metrics.New()
	stockSvc := stock.NewService(db, zerolog.Nop(), m)
	f.svc = NewService(db, stockSvc, zerolog.Nop(), m)
	return f
}

func (f *fixture) tomatoStock(t *testing.T) float64 {
	t.Helper()
	var entry models.StockEntry
	require.NoError(t, f.db.Where("ingredient_id = ?", f.tomato.ID).First(&entry).Error)
	return entry.Available
}

func (f *fixture) request(table string) CreateRequest {
	return CreateRequest{MenuItemID: f.item.ID, Table: table, Customer: "Ana", Quantity: 1}
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)

	order, err := f.svc.Create(context.Background(), f.request("5"))
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, models.OrderCreated, order.State)
	assert.Equal(t, "Pizza Margarita", order.Item)

	// creation alone does not touch the ledger
	assert.Equal(t, 10.0, f.tomatoStock(t))
}

func TestCreateDefaultsQuantity(t *testing.T) {
	f := newFixture(t)

	order, err := f.svc.Create(context.Background(), CreateRequest{MenuItemID: f.item.ID, Table: "2"})
	require.NoError(t, err)
	assert.Equal(t, 1, order.Quantity)
}

func TestCreateUnknownItem(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), CreateRequest{MenuItemID: 999, Table: "5"})
	var notFound *faults.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestCreateRejectsOccupiedTable(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), f.request("5"))
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), f.request("5"))
	var occupied *faults.TableOccupiedError
	require.ErrorAs(t, err, &occupied)
	assert.Equal(t, "5", occupied.Table)

	// a different table is unaffected
	_, err = f.svc.Create(context.Background(), f.request("6"))
	require.NoError(t, err)
}

func TestCancelFreesTable(t *testing.T) {
	f := newFixture(t)

	order, err := f.svc.Create(context.Background(), f.request("5"))
	require.NoError(t, err)

	_, _, err = f.svc.Cancel(context.Background(), order.ID)
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), f.request("5"))
	require.NoError(t, err)
}

func TestCloseFreesTable(t *testing.T) {
	f := newFixture(t)

	order, err := f.svc.Create(context.Background(), f.request("5"))
	require.NoError(t, err)
	_, _, err = f.svc.Confirm(context.Background(), order.ID)
	require.NoError(t, err)
	_, err = f.svc.MarkReady(context.Background(), order.ID)
	require.NoError(t, err)
	_, err = f.svc.Deliver(context.Background(), order.ID)
	require.NoError(t, err)
	_, err = f.svc.Close(context.Background(), order.ID)
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), f.request("5"))
	require.NoError(t, err)
}

func TestConfirmReservesStock(t *testing.T) {
	f := newFixture(t)

	order, err := f.svc.Create(context.Background(), f.request("5"))
	require.NoError(t, err)

	confirmed, warning, err := f.svc.Confirm(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Empty(t, warning)
	assert.Equal(t, models.OrderInPreparation, confirmed.State)
	assert.Equal(t, 8.0, f.tomatoStock(t))
}

func TestConfirmInsufficientStockKeepsOrderCreated(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.db.Model(&models.StockEntry{}).
		Where("ingredient_id = ?", f.tomato.ID).
		Update("available", 1).Error)

	order, err := f.svc.Create(context.Background(), f.request("5"))
	require.NoError(t, err)

	_, _, err = f.svc.Confirm(context.Background(), order.ID)
	var insufficient *faults.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)

	reloaded, err := f.svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCreated, reloaded.State)
}

func TestConfirmTwiceFails(t *testing.T) {
	f := newFixture(t)

	order, err := f.svc.Create(context.Background(), f.request("5"))
	require.NoError(t, err)
	_, _, err = f.svc.Confirm(context.Background(), order.ID)
	require.NoError(t, err)

	_, _, err = f.svc.Confirm(context.Background(), order.ID)
	var illegal *faults.IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, 8.0, f.tomatoStock(t))
}

func TestCancelReleasesStockExactlyOnce(t *testing.T) {
	f := newFixture(t)

	order, err := f.svc.Create(context.Background(), f.request("5"))
	require.NoError(t, err)
	_, _, err = f.svc.Confirm(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, 8.0, f.tomatoStock(t))

	cancelled, _, err := f.svc.Cancel(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, cancelled.State)
	assert.Equal(t, 10.0, f.tomatoStock(t))

	// a retried cancel is a quiet no-op and must not restore again
	again, _, err := f.svc.Cancel(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, again.State)
	assert.Equal(t, 10.0, f.tomatoStock(t))
}

func TestCancelClosedOrderFails(t *testing.T) {
	f := newFixture(t)

	order, err := f.svc.Create(context.Background(), f.request("5"))
	require.NoError(t, err)
	_, _, err = f.svc.Confirm(context.Background(), order.ID)
	require.NoError(t, err)
	_, err = f.svc.MarkReady(context.Background(), order.ID)
	require.NoError(t, err)
	_, err = f.svc.Deliver(context.Background(), order.ID)
	require.NoError(t, err)
	_, err = f.svc.Close(context.Background(), order.ID)
	require.NoError(t, err)

	_, _, err = f.svc.Cancel(context.Background(), order.ID)
	var illegal *faults.IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
}

func TestPlaceOrderReservesAtCreation(t *testing.T) {
	f := newFixture(t)

	order, warning, err := f.svc.PlaceOrder(context.Background(), f.request("5"))
	require.NoError(t, err)
	assert.Empty(t, warning)
	assert.Equal(t, models.OrderCreated, order.State)
	assert.Equal(t, 8.0, f.tomatoStock(t))

	// a later confirm must not charge the ledger a second time
	_, _, err = f.svc.Confirm(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, 8.0, f.tomatoStock(t))
}

func TestPlaceOrderInsufficientStockPersistsNothing(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.PlaceOrder(context.Background(), CreateRequest{
		MenuItemID: f.item.ID, Table: "5", Quantity: 50,
	})
	var insufficient *faults.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)

	var count int
	require.NoError(t, f.db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Equal(t, 10.0, f.tomatoStock(t))
}

type failingNotifier struct{}

func (failingNotifier) OrderConfirmed(context.Context, *models.Order) error {
	return errors.New("kitchen unreachable")
}
func (failingNotifier) OrderCancelled(context.Context, string) error {
	return errors.New("kitchen unreachable")
}

func TestKitchenFailuresAreWarningsNotErrors(t *testing.T) {
	f := newFixture(t)
	f.svc.AttachKitchen(failingNotifier{})

	order, warning, err := f.svc.PlaceOrder(context.Background(), f.request("5"))
	require.NoError(t, err)
	assert.Contains(t, warning, "kitchen")
	assert.Equal(t, 8.0, f.tomatoStock(t))

	_, warning, err = f.svc.Cancel(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Contains(t, warning, "kitchen")
	assert.Equal(t, 10.0, f.tomatoStock(t))
}

func TestListFiltersByState(t *testing.T) {
	f := newFixture(t)

	first, err := f.svc.Create(context.Background(), f.request("1"))
	require.NoError(t, err)
	_, err = f.svc.Create(context.Background(), f.request("2"))
	require.NoError(t, err)
	_, _, err = f.svc.Confirm(context.Background(), first.ID)
	require.NoError(t, err)

	list, err := f.svc.List(context.Background(), "IN_PREPARATION")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, first.ID, list[0].ID)

	all, err := f.svc.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.svc.List(context.Background(), "BOGUS")
	var validation *faults.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestListActiveExcludesTerminalStates(t *testing.T) {
	f := newFixture(t)

	open, err := f.svc.Create(context.Background(), f.request("1"))
	require.NoError(t, err)
	gone, err := f.svc.Create(context.Background(), f.request("2"))
	require.NoError(t, err)
	_, _, err = f.svc.Cancel(context.Background(), gone.ID)
	require.NoError(t, err)

	active, err := f.svc.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, open.ID, active[0].ID)
}
