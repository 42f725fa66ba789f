package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

type fakeDashStore struct {
	orders   []*models.Order
	products map[primitive.ObjectID]*models.Product
}

func newFakeDashStore() *fakeDashStore {
	return &fakeDashStore{products: map[primitive.ObjectID]*models.Product{}}
}

func (s *fakeDashStore) OrdersBetween(_ context.Context, from, to time.Time) ([]*models.Order, error) {
	var out []*models.Order
	for _, o := range s.orders {
		if !o.OrderDate.Before(from) && o.OrderDate.Before(to) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *fakeDashStore) ProductsByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.Product, error) {
	out := map[primitive.ObjectID]*models.Product{}
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *fakeDashStore) FilterProducts(context.Context, models.ProductFilter) ([]*models.Product, error) {
	out := make([]*models.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	return out, nil
}

func (s *fakeDashStore) addProduct(category string, stock int) primitive.ObjectID {
	id := primitive.NewObjectID()
	s.products[id] = &models.Product{ID: id, Name: "P-" + id.Hex()[:6], Category: category, Stock: stock}
	return id
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func day(d int) time.Time {
	return time.Date(2026, time.March, d, 12, 0, 0, 0, time.UTC)
}

var window = struct{ from, to time.Time }{
	from: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
	to:   time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC),
}

func TestReportEmptyWindow(t *testing.T) {
	a := New(newFakeDashStore())

	r, err := a.Report(context.Background(), window.from, window.to, Daily)
	require.NoError(t, err)

	assert.True(t, r.TotalRevenue.IsZero())
	assert.Zero(t, r.TotalOrders)
	assert.True(t, r.AverageOrderValue.IsZero())
	assert.Zero(t, r.ConversionRate)
	assert.Empty(t, r.Series)
	assert.Empty(t, r.Categories)
	assert.Equal(t, CategorySlice{Name: "N/A", Percent: 0.0}, r.TopCategory)
	for _, slice := range r.ReturnPie {
		assert.Zero(t, slice.Count)
		assert.Zero(t, slice.Percent)
	}
}

func TestReportMixedOrders(t *testing.T) {
	store := newFakeDashStore()
	shoes := store.addProduct("Shoes", 10)
	bags := store.addProduct("Bags", 10)

	store.orders = []*models.Order{
		{
			OrderDate: day(3), Status: models.StatusCompleted, PaymentStatus: models.PaymentPaid,
			TotalAmount: dec("100"), Province: "Hanoi",
			Lines: []models.OrderLine{{ProductID: shoes, Price: dec("50"), Quantity: 2}},
		},
		{
			OrderDate: day(5), Status: models.StatusDelivered, PaymentStatus: models.PaymentPaid,
			TotalAmount: dec("50"), Province: "Hanoi",
			Lines: []models.OrderLine{{ProductID: shoes, Price: dec("50"), Quantity: 1}},
		},
		{
			OrderDate: day(7), Status: models.StatusCancelled, PaymentStatus: models.PaymentUnpaid,
			TotalAmount: dec("30"), Province: "Da Nang",
			Lines: []models.OrderLine{{ProductID: bags, Price: dec("30"), Quantity: 1}},
		},
	}

	r, err := New(store).Report(context.Background(), window.from, window.to, Daily)
	require.NoError(t, err)

	assert.True(t, r.TotalRevenue.Equal(dec("150")), "revenue was %s", r.TotalRevenue)
	assert.Equal(t, 2, r.TotalOrders)
	assert.True(t, r.AverageOrderValue.Equal(dec("75")))
	assert.Equal(t, 66.7, r.ConversionRate)
	assert.Equal(t, 1, r.Cancelled)

	// cancelled orders contribute neither series points nor breakdowns
	require.Len(t, r.Series, 2)
	assert.Equal(t, "2026-03-03", r.Series[0].Date)
	assert.True(t, r.Series[0].Amount.Equal(dec("100")))
	assert.Equal(t, "2026-03-05", r.Series[1].Date)

	require.Len(t, r.Categories, 1)
	assert.Equal(t, CategorySlice{Name: "Shoes", Percent: 100.0}, r.Categories[0])
	assert.Equal(t, r.Categories[0], r.TopCategory)

	require.Len(t, r.Regions, 1)
	assert.Equal(t, "Hanoi", r.Regions[0].Name)
	assert.Equal(t, 100.0, r.Regions[0].Percent)
	assert.True(t, r.Regions[0].Amount.Equal(dec("150")))
}

func TestReportRefundedOrdersExcluded(t *testing.T) {
	store := newFakeDashStore()
	store.orders = []*models.Order{
		{OrderDate: day(3), Status: models.StatusCompleted, PaymentStatus: models.PaymentPaid, TotalAmount: dec("100")},
		{OrderDate: day(4), Status: models.StatusReturned, PaymentStatus: models.PaymentRefunded, TotalAmount: dec("40")},
	}

	r, err := New(store).Report(context.Background(), window.from, window.to, Daily)
	require.NoError(t, err)

	assert.True(t, r.TotalRevenue.Equal(dec("100")))
	assert.Equal(t, 1, r.TotalOrders)
	assert.Equal(t, 1, r.Returned)
	assert.True(t, r.RefundedAmount.Equal(dec("40")))
}

func TestReportMonthlySeries(t *testing.T) {
	store := newFakeDashStore()
	store.orders = []*models.Order{
		{OrderDate: time.Date(2026, time.February, 20, 0, 0, 0, 0, time.UTC), Status: models.StatusCompleted, PaymentStatus: models.PaymentPaid, TotalAmount: dec("10")},
		{OrderDate: day(3), Status: models.StatusCompleted, PaymentStatus: models.PaymentPaid, TotalAmount: dec("20")},
		{OrderDate: day(28), Status: models.StatusCompleted, PaymentStatus: models.PaymentPaid, TotalAmount: dec("5")},
	}

	from := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	r, err := New(store).Report(context.Background(), from, window.to, Monthly)
	require.NoError(t, err)

	require.Len(t, r.Series, 2)
	assert.Equal(t, "2026-02-01", r.Series[0].Date)
	assert.True(t, r.Series[0].Amount.Equal(dec("10")))
	assert.Equal(t, "2026-03-01", r.Series[1].Date)
	assert.True(t, r.Series[1].Amount.Equal(dec("25")))
}

func TestReportUncategorizedAndUnknownFallbacks(t *testing.T) {
	store := newFakeDashStore()
	deleted := primitive.NewObjectID()
	store.orders = []*models.Order{
		{
			OrderDate: day(3), Status: models.StatusCompleted, PaymentStatus: models.PaymentPaid,
			TotalAmount: dec("60"),
			Lines:       []models.OrderLine{{ProductID: deleted, Price: dec("60"), Quantity: 1}},
		},
	}

	r, err := New(store).Report(context.Background(), window.from, window.to, Daily)
	require.NoError(t, err)

	require.Len(t, r.Categories, 1)
	assert.Equal(t, "Uncategorized", r.Categories[0].Name)
	require.Len(t, r.Regions, 1)
	assert.Equal(t, "Unknown", r.Regions[0].Name)
}

func TestReturnPie(t *testing.T) {
	store := newFakeDashStore()
	store.orders = []*models.Order{
		{OrderDate: day(1), Status: models.StatusCompleted, PaymentStatus: models.PaymentPaid, TotalAmount: dec("10")},
		{OrderDate: day(2), Status: models.StatusCompleted, PaymentStatus: models.PaymentPaid, TotalAmount: dec("10")},
		{OrderDate: day(3), Status: models.StatusReturned, PaymentStatus: models.PaymentRefunded, TotalAmount: dec("10")},
		{OrderDate: day(4), Status: models.StatusCancelled, PaymentStatus: models.PaymentUnpaid, TotalAmount: dec("10")},
	}

	r, err := New(store).Report(context.Background(), window.from, window.to, Daily)
	require.NoError(t, err)

	require.Len(t, r.ReturnPie, 4)
	assert.Equal(t, PieSlice{Name: "Returned", Percent: 25.0, Count: 1}, r.ReturnPie[0])
	assert.Equal(t, PieSlice{Name: "Return Requested", Percent: 0.0, Count: 0}, r.ReturnPie[1])
	assert.Equal(t, PieSlice{Name: "Cancelled", Percent: 25.0, Count: 1}, r.ReturnPie[2])
	assert.Equal(t, PieSlice{Name: "Completed", Percent: 50.0, Count: 2}, r.ReturnPie[3])
}

func TestInventorySummary(t *testing.T) {
	store := newFakeDashStore()
	store.addProduct("Shoes", 0)
	store.addProduct("Shoes", 3)
	store.addProduct("Bags", 5)
	store.addProduct("Bags", 50)

	inv, err := New(store).InventorySummary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, inv.TotalSkus)
	assert.Equal(t, 58, inv.TotalStockUnits)
	assert.Equal(t, 1, inv.OutOfStock)
	assert.Equal(t, 2, inv.LowStock)
	require.Len(t, inv.LowStockItems, 2)
	assert.Equal(t, 3, inv.LowStockItems[0].Stock)
	assert.Equal(t, 5, inv.LowStockItems[1].Stock)
}
