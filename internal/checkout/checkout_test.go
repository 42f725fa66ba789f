package checkout

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/cart"
	"storefront/internal/models"
)

type memorySource struct {
	lines   []cart.Line
	cleared bool
}

func (s *memorySource) Items(context.Context) ([]cart.Line, error) { return s.lines, nil }

func (s *memorySource) Add(context.Context, primitive.ObjectID, int) error { return nil }

func (s *memorySource) Remove(context.Context, primitive.ObjectID) error { return nil }

func (s *memorySource) SetQuantity(context.Context, primitive.ObjectID, int) error { return nil }

func (s *memorySource) Clear(context.Context) error {
	s.lines = nil
	s.cleared = true
	return nil
}

type recordingStore struct {
	orders     []*models.Order
	decrements map[primitive.ObjectID]int
}

func newRecordingStore() *recordingStore {
	return &recordingStore{decrements: map[primitive.ObjectID]int{}}
}

func (s *recordingStore) InsertOrder(_ context.Context, o *models.Order) error {
	o.ID = primitive.NewObjectID()
	s.orders = append(s.orders, o)
	return nil
}

func (s *recordingStore) DecrementStock(_ context.Context, id primitive.ObjectID, qty int) error {
	s.decrements[id] += qty
	return nil
}

type passthroughTx struct{}

func (passthroughTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func validInfo() ShippingInfo {
	return ShippingInfo{
		Email:           "buyer@example.com",
		FullName:        "A Buyer",
		Phone:           "0123456789",
		Province:        "Hanoi",
		District:        "Ba Dinh",
		Ward:            "Cong Vi",
		SpecificAddress: "12 Doi Can",
	}
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestCheckoutCreatesOrderFromCart(t *testing.T) {
	store := newRecordingStore()
	engine := New(store, passthroughTx{})

	shoes := primitive.NewObjectID()
	hat := primitive.NewObjectID()
	src := &memorySource{lines: []cart.Line{
		{ProductID: shoes, Name: "Shoes", Price: dec("50"), Quantity: 2},
		{ProductID: hat, Name: "Hat", Price: dec("12.50"), Quantity: 1},
	}}

	orderID, err := engine.Checkout(context.Background(), src, validInfo())
	require.NoError(t, err)
	assert.NotEqual(t, primitive.NilObjectID, orderID)

	require.Len(t, store.orders, 1)
	o := store.orders[0]
	assert.Equal(t, models.StatusPending, o.Status)
	assert.Equal(t, models.PaymentUnpaid, o.PaymentStatus)
	assert.Equal(t, "buyer@example.com", o.Email)
	assert.Equal(t, "Hanoi", o.Province)
	assert.True(t, o.TotalAmount.Equal(dec("112.50")), "total was %s", o.TotalAmount)

	require.Len(t, o.Lines, 2)
	assert.Equal(t, "Shoes", o.Lines[0].ProductName)
	assert.True(t, o.Lines[0].Price.Equal(dec("50")))
	assert.Equal(t, 2, o.Lines[0].Quantity)

	assert.Equal(t, 2, store.decrements[shoes])
	assert.Equal(t, 1, store.decrements[hat])
	assert.True(t, src.cleared, "cart must be cleared on success")
}

func TestCheckoutDefaultsPaymentMethod(t *testing.T) {
	store := newRecordingStore()
	engine := New(store, passthroughTx{})
	src := &memorySource{lines: []cart.Line{
		{ProductID: primitive.NewObjectID(), Name: "Shoes", Price: dec("50"), Quantity: 1},
	}}

	_, err := engine.Checkout(context.Background(), src, validInfo())
	require.NoError(t, err)
	assert.Equal(t, "Credit Card", store.orders[0].PaymentMethod)

	src = &memorySource{lines: []cart.Line{
		{ProductID: primitive.NewObjectID(), Name: "Shoes", Price: dec("50"), Quantity: 1},
	}}
	info := validInfo()
	info.PaymentMethod = "COD"
	_, err = engine.Checkout(context.Background(), src, info)
	require.NoError(t, err)
	assert.Equal(t, "COD", store.orders[1].PaymentMethod)
}

func TestCheckoutEmptyCart(t *testing.T) {
	store := newRecordingStore()
	engine := New(store, passthroughTx{})

	_, err := engine.Checkout(context.Background(), &memorySource{}, validInfo())
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Empty(t, store.orders)
}

func TestCheckoutValidation(t *testing.T) {
	store := newRecordingStore()
	engine := New(store, passthroughTx{})
	src := &memorySource{lines: []cart.Line{
		{ProductID: primitive.NewObjectID(), Name: "Shoes", Price: dec("50"), Quantity: 1},
	}}

	info := validInfo()
	info.Email = "not-an-address"
	info.Province = "  "

	_, err := engine.Checkout(context.Background(), src, info)
	var fe models.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "invalid email address", fe["email"])
	assert.Equal(t, "this field is required", fe["province"])

	assert.Empty(t, store.orders, "no write may happen while validation fails")
	assert.Empty(t, store.decrements)
	assert.False(t, src.cleared)
}

func TestCheckoutAllowsOversell(t *testing.T) {
	store := newRecordingStore()
	engine := New(store, passthroughTx{})
	shoes := primitive.NewObjectID()
	src := &memorySource{lines: []cart.Line{
		{ProductID: shoes, Name: "Shoes", Price: dec("50"), Quantity: 100},
	}}

	_, err := engine.Checkout(context.Background(), src, validInfo())
	require.NoError(t, err)
	assert.Equal(t, 100, store.decrements[shoes], "stock decrements are unconditional")
}
