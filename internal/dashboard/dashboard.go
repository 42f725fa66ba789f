// Package dashboard derives seller-facing revenue, conversion, return,
// category and region metrics from the order ledger.
package dashboard

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

type Granularity string

const (
	Daily   Granularity = "daily"
	Monthly Granularity = "monthly"
)

type Store interface {
	OrdersBetween(ctx context.Context, from, to time.Time) ([]*models.Order, error)
	ProductsByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.Product, error)
	FilterProducts(ctx context.Context, f models.ProductFilter) ([]*models.Product, error)
}

type Aggregator struct {
	store Store
	now   func() time.Time
}

func New(store Store) *Aggregator {
	return &Aggregator{store: store, now: time.Now}
}

type SeriesPoint struct {
	Date   string          `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}

type CategorySlice struct {
	Name    string  `json:"name"`
	Percent float64 `json:"percent"`
}

type RegionSlice struct {
	Name    string          `json:"name"`
	Percent float64         `json:"percent"`
	Amount  decimal.Decimal `json:"amount"`
}

type PieSlice struct {
	Name    string  `json:"name"`
	Percent float64 `json:"percent"`
	Count   int     `json:"count"`
}

type Report struct {
	TotalRevenue      decimal.Decimal `json:"totalRevenue"`
	TotalOrders       int             `json:"totalOrders"`
	AverageOrderValue decimal.Decimal `json:"averageOrderValue"`
	Cancelled         int             `json:"cancelled"`
	ReturnRequested   int             `json:"returnRequested"`
	Returned          int             `json:"returned"`
	RefundedAmount    decimal.Decimal `json:"refundedAmount"`
	ConversionRate    float64         `json:"conversionRate"`
	Series            []SeriesPoint   `json:"series"`
	Categories        []CategorySlice `json:"categories"`
	TopCategory       CategorySlice   `json:"topCategory"`
	ReturnPie         []PieSlice      `json:"returnPie"`
	Regions           []RegionSlice   `json:"regions"`
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

// pct is the share of part in total as a 1-decimal percentage, 0 when the
// total is zero.
func pct(part, total decimal.Decimal) float64 {
	if total.IsZero() {
		return 0.0
	}
	return round1(part.Div(total).InexactFloat64() * 100)
}

func isCompleted(o *models.Order) bool {
	converted := o.Status == models.StatusCompleted || o.Status == models.StatusDelivered
	return converted && o.PaymentStatus != models.PaymentRefunded
}

// Report aggregates the order ledger over the half-open window [from, to).
// Zero times default to today, a one-day window.
func (a *Aggregator) Report(ctx context.Context, from, to time.Time, g Granularity) (*Report, error) {
	if from.IsZero() {
		now := a.now()
		from = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	}
	if to.IsZero() {
		to = from.AddDate(0, 0, 1)
	}

	orders, err := a.store.OrdersBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	r := &Report{
		TotalRevenue:      decimal.Zero,
		AverageOrderValue: decimal.Zero,
		RefundedAmount:    decimal.Zero,
		TopCategory:       CategorySlice{Name: "N/A", Percent: 0.0},
	}

	var completed []*models.Order
	converted := 0
	for _, o := range orders {
		if o.Status == models.StatusCompleted || o.Status == models.StatusDelivered {
			converted++
		}
		if isCompleted(o) {
			completed = append(completed, o)
			r.TotalRevenue = r.TotalRevenue.Add(o.TotalAmount)
		}
		switch o.Status {
		case models.StatusCancelled:
			r.Cancelled++
		case models.StatusReturnRequested:
			r.ReturnRequested++
		case models.StatusReturned:
			r.Returned++
		}
		if o.PaymentStatus == models.PaymentRefunded {
			r.RefundedAmount = r.RefundedAmount.Add(o.TotalAmount)
		}
	}

	r.TotalOrders = len(completed)
	if r.TotalOrders > 0 {
		r.AverageOrderValue = r.TotalRevenue.Div(decimal.NewFromInt(int64(r.TotalOrders))).Round(2)
	}
	if len(orders) > 0 {
		r.ConversionRate = round1(float64(converted) * 100.0 / float64(len(orders)))
	}

	r.Series = series(completed, g)

	categories, err := a.categoryBreakdown(ctx, completed)
	if err != nil {
		return nil, err
	}
	r.Categories = categories
	if len(categories) > 0 {
		r.TopCategory = categories[0]
	}

	r.Regions = regionBreakdown(completed)
	r.ReturnPie = returnPie(len(completed), r.Returned, r.ReturnRequested, r.Cancelled)

	return r, nil
}

// series groups completed-set revenue by calendar day or by first-of-month,
// ordered chronologically by the group key.
func series(completed []*models.Order, g Granularity) []SeriesPoint {
	buckets := map[string]decimal.Decimal{}
	for _, o := range completed {
		var key string
		if g == Monthly {
			key = time.Date(o.OrderDate.Year(), o.OrderDate.Month(), 1, 0, 0, 0, 0, o.OrderDate.Location()).Format("2006-01-02")
		} else {
			key = o.OrderDate.Format("2006-01-02")
		}
		buckets[key] = buckets[key].Add(o.TotalAmount)
	}
	points := make([]SeriesPoint, 0, len(buckets))
	for key, amount := range buckets {
		points = append(points, SeriesPoint{Date: key, Amount: amount})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points
}

// categoryBreakdown sums line revenue per product category, classified at
// read time against the current product records.
func (a *Aggregator) categoryBreakdown(ctx context.Context, completed []*models.Order) ([]CategorySlice, error) {
	var ids []primitive.ObjectID
	seen := map[primitive.ObjectID]bool{}
	for _, o := range completed {
		for _, l := range o.Lines {
			if !seen[l.ProductID] {
				seen[l.ProductID] = true
				ids = append(ids, l.ProductID)
			}
		}
	}
	products, err := a.store.ProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	amounts := map[string]decimal.Decimal{}
	total := decimal.Zero
	for _, o := range completed {
		for _, l := range o.Lines {
			name := "Uncategorized"
			if p, ok := products[l.ProductID]; ok && p.Category != "" {
				name = p.Category
			}
			amount := l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
			amounts[name] = amounts[name].Add(amount)
			total = total.Add(amount)
		}
	}

	type bucket struct {
		name   string
		amount decimal.Decimal
	}
	buckets := make([]bucket, 0, len(amounts))
	for name, amount := range amounts {
		buckets = append(buckets, bucket{name, amount})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if !buckets[i].amount.Equal(buckets[j].amount) {
			return buckets[i].amount.GreaterThan(buckets[j].amount)
		}
		return buckets[i].name < buckets[j].name
	})

	slices := make([]CategorySlice, len(buckets))
	for i, b := range buckets {
		slices[i] = CategorySlice{Name: b.name, Percent: pct(b.amount, total)}
	}
	return slices, nil
}

func regionBreakdown(completed []*models.Order) []RegionSlice {
	amounts := map[string]decimal.Decimal{}
	total := decimal.Zero
	for _, o := range completed {
		name := o.Province
		if name == "" {
			name = "Unknown"
		}
		amounts[name] = amounts[name].Add(o.TotalAmount)
		total = total.Add(o.TotalAmount)
	}
	regions := make([]RegionSlice, 0, len(amounts))
	for name, amount := range amounts {
		regions = append(regions, RegionSlice{Name: name, Amount: amount})
	}
	sort.Slice(regions, func(i, j int) bool {
		if !regions[i].Amount.Equal(regions[j].Amount) {
			return regions[i].Amount.GreaterThan(regions[j].Amount)
		}
		return regions[i].Name < regions[j].Name
	})
	for i := range regions {
		regions[i].Percent = pct(regions[i].Amount, total)
	}
	return regions
}

func returnPie(completedCount, returned, returnRequested, cancelled int) []PieSlice {
	total := completedCount + returned + returnRequested + cancelled
	share := func(n int) float64 {
		if total == 0 {
			return 0.0
		}
		return round1(float64(n) * 100.0 / float64(total))
	}
	return []PieSlice{
		{Name: "Returned", Percent: share(returned), Count: returned},
		{Name: "Return Requested", Percent: share(returnRequested), Count: returnRequested},
		{Name: "Cancelled", Percent: share(cancelled), Count: cancelled},
		{Name: "Completed", Percent: share(completedCount), Count: completedCount},
	}
}

// Inventory is the stock summary shown alongside the ranged report.
type Inventory struct {
	TotalSkus       int               `json:"totalSkus"`
	TotalStockUnits int               `json:"totalStockUnits"`
	OutOfStock      int               `json:"outOfStock"`
	LowStock        int               `json:"lowStock"`
	LowStockItems   []*models.Product `json:"lowStockItems"`
}

const lowStockThreshold = 5

func (a *Aggregator) InventorySummary(ctx context.Context) (*Inventory, error) {
	products, err := a.store.FilterProducts(ctx, models.ProductFilter{})
	if err != nil {
		return nil, err
	}
	inv := &Inventory{TotalSkus: len(products)}
	for _, p := range products {
		inv.TotalStockUnits += p.Stock
		switch {
		case p.Stock <= 0:
			inv.OutOfStock++
		case p.Stock <= lowStockThreshold:
			inv.LowStock++
			inv.LowStockItems = append(inv.LowStockItems, p)
		}
	}
	sort.Slice(inv.LowStockItems, func(i, j int) bool {
		return inv.LowStockItems[i].Stock < inv.LowStockItems[j].Stock
	})
	if len(inv.LowStockItems) > 10 {
		inv.LowStockItems = inv.LowStockItems[:10]
	}
	return inv, nil
}
