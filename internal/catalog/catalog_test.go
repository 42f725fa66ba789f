package catalog

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

type fakeCatalogStore struct {
	products map[primitive.ObjectID]*models.Product
	promos   map[primitive.ObjectID]*models.Promotion
	reviews  []*models.Review
}

func newFakeCatalogStore() *fakeCatalogStore {
	return &fakeCatalogStore{
		products: map[primitive.ObjectID]*models.Product{},
		promos:   map[primitive.ObjectID]*models.Promotion{},
	}
}

func (s *fakeCatalogStore) GetProduct(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return p, nil
}

func (s *fakeCatalogStore) GetPromotion(_ context.Context, id primitive.ObjectID) (*models.Promotion, error) {
	p, ok := s.promos[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return p, nil
}

func (s *fakeCatalogStore) FilterProducts(context.Context, models.ProductFilter) ([]*models.Product, error) {
	out := make([]*models.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	return out, nil
}

func (s *fakeCatalogStore) UpsertReview(_ context.Context, r *models.Review) error {
	for i, existing := range s.reviews {
		if existing.ProductID == r.ProductID && existing.UserName == r.UserName {
			s.reviews[i] = r
			return nil
		}
	}
	s.reviews = append(s.reviews, r)
	return nil
}

func (s *fakeCatalogStore) GetReviews(_ context.Context, productID primitive.ObjectID) ([]*models.Review, error) {
	var out []*models.Review
	for _, r := range s.reviews {
		if r.ProductID == productID {
			out = append(out, r)
		}
	}
	return out, nil
}

func fixedAccessor(store Store, now time.Time) *Accessor {
	a := New(store)
	a.now = func() time.Time { return now }
	return a
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestPricedAppliesActivePromotion(t *testing.T) {
	store := newFakeCatalogStore()
	now := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)

	promoID := primitive.NewObjectID()
	store.promos[promoID] = &models.Promotion{
		ID:              promoID,
		DiscountPercent: 20,
		StartDate:       now.AddDate(0, 0, -5),
		EndDate:         now.AddDate(0, 0, 5),
		IsActive:        true,
	}
	id := primitive.NewObjectID()
	store.products[id] = &models.Product{ID: id, Name: "Shoes", Price: dec("50"), PromotionID: &promoID}

	p, err := fixedAccessor(store, now).Priced(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, p.Current.Equal(dec("40")), "price was %s", p.Current)
}

func TestPricedIgnoresInapplicablePromotions(t *testing.T) {
	now := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)
	cases := map[string]models.Promotion{
		"inactive": {DiscountPercent: 20, StartDate: now.AddDate(0, 0, -5), EndDate: now.AddDate(0, 0, 5), IsActive: false},
		"expired":  {DiscountPercent: 20, StartDate: now.AddDate(0, -2, 0), EndDate: now.AddDate(0, -1, 0), IsActive: true},
		"upcoming": {DiscountPercent: 20, StartDate: now.AddDate(0, 1, 0), EndDate: now.AddDate(0, 2, 0), IsActive: true},
	}
	for name, promo := range cases {
		t.Run(name, func(t *testing.T) {
			store := newFakeCatalogStore()
			promoID := primitive.NewObjectID()
			promo.ID = promoID
			store.promos[promoID] = &promo
			id := primitive.NewObjectID()
			store.products[id] = &models.Product{ID: id, Price: dec("50"), PromotionID: &promoID}

			p, err := fixedAccessor(store, now).Priced(context.Background(), id)
			require.NoError(t, err)
			assert.True(t, p.Current.Equal(dec("50")))
		})
	}
}

func TestPricedDanglingPromotionFallsBack(t *testing.T) {
	store := newFakeCatalogStore()
	missing := primitive.NewObjectID()
	id := primitive.NewObjectID()
	store.products[id] = &models.Product{ID: id, Price: dec("50"), PromotionID: &missing}

	p, err := New(store).Priced(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, p.Current.Equal(dec("50")))
}

func TestPricedUnknownProduct(t *testing.T) {
	_, err := New(newFakeCatalogStore()).Priced(context.Background(), primitive.NewObjectID())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestListAppliesPromotions(t *testing.T) {
	store := newFakeCatalogStore()
	now := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)

	promoID := primitive.NewObjectID()
	store.promos[promoID] = &models.Promotion{
		ID:              promoID,
		DiscountPercent: 50,
		StartDate:       now.AddDate(0, 0, -1),
		EndDate:         now.AddDate(0, 0, 1),
		IsActive:        true,
	}
	discounted := primitive.NewObjectID()
	store.products[discounted] = &models.Product{ID: discounted, Price: dec("100"), PromotionID: &promoID}
	plain := primitive.NewObjectID()
	store.products[plain] = &models.Product{ID: plain, Price: dec("30")}

	priced, err := fixedAccessor(store, now).List(context.Background(), models.ProductFilter{})
	require.NoError(t, err)
	require.Len(t, priced, 2)

	byID := map[primitive.ObjectID]decimal.Decimal{}
	for _, p := range priced {
		byID[p.ID] = p.Current
	}
	assert.True(t, byID[discounted].Equal(dec("50")))
	assert.True(t, byID[plain].Equal(dec("30")))
}

func TestAddReviewValidation(t *testing.T) {
	store := newFakeCatalogStore()
	id := primitive.NewObjectID()
	store.products[id] = &models.Product{ID: id, Price: dec("10")}
	a := New(store)

	err := a.AddReview(context.Background(), id, "  ", 0, "bad")
	var fe models.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe, "userName")
	assert.Contains(t, fe, "rating")
	assert.Empty(t, store.reviews)

	err = a.AddReview(context.Background(), primitive.NewObjectID(), "ann", 5, "fine")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAddReviewReplacesEarlierOne(t *testing.T) {
	store := newFakeCatalogStore()
	id := primitive.NewObjectID()
	store.products[id] = &models.Product{ID: id, Price: dec("10")}
	a := New(store)
	ctx := context.Background()

	require.NoError(t, a.AddReview(ctx, id, "ann", 2, "meh"))
	require.NoError(t, a.AddReview(ctx, id, "ann", 5, "  grew on me  "))
	require.NoError(t, a.AddReview(ctx, id, "bob", 4, "solid"))

	reviews, err := a.Reviews(ctx, id)
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.Equal(t, 5, reviews[0].Rating)
	assert.Equal(t, "grew on me", reviews[0].Comment)
}
