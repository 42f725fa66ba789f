// Package catalog provides read access to products, current promotion
// pricing, and product reviews.
package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

type Store interface {
	GetProduct(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	GetPromotion(ctx context.Context, id primitive.ObjectID) (*models.Promotion, error)
	FilterProducts(ctx context.Context, f models.ProductFilter) ([]*models.Product, error)
	UpsertReview(ctx context.Context, r *models.Review) error
	GetReviews(ctx context.Context, productID primitive.ObjectID) ([]*models.Review, error)
}

type Accessor struct {
	store Store
	now   func() time.Time
}

func New(store Store) *Accessor {
	return &Accessor{store: store, now: time.Now}
}

// PricedProduct pairs a product with the price it currently sells for.
type PricedProduct struct {
	*models.Product
	Current decimal.Decimal
}

// Priced loads the product and computes its discounted price. A dangling
// promotion reference falls back to the list price.
func (a *Accessor) Priced(ctx context.Context, id primitive.ObjectID) (*PricedProduct, error) {
	p, err := a.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	var promo *models.Promotion
	if p.PromotionID != nil {
		promo, err = a.store.GetPromotion(ctx, *p.PromotionID)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
	}
	return &PricedProduct{Product: p, Current: p.DiscountedPrice(promo, a.now())}, nil
}

// List returns the filtered catalog with current prices applied.
func (a *Accessor) List(ctx context.Context, f models.ProductFilter) ([]*PricedProduct, error) {
	products, err := a.store.FilterProducts(ctx, f)
	if err != nil {
		return nil, err
	}
	now := a.now()
	priced := make([]*PricedProduct, 0, len(products))
	promos := map[primitive.ObjectID]*models.Promotion{}
	for _, p := range products {
		var promo *models.Promotion
		if p.PromotionID != nil {
			var ok bool
			if promo, ok = promos[*p.PromotionID]; !ok {
				promo, err = a.store.GetPromotion(ctx, *p.PromotionID)
				if err != nil && !errors.Is(err, models.ErrNotFound) {
					return nil, err
				}
				promos[*p.PromotionID] = promo
			}
		}
		priced = append(priced, &PricedProduct{Product: p, Current: p.DiscountedPrice(promo, now)})
	}
	return priced, nil
}

// AddReview stores the user's review, replacing any earlier one by the same
// user for the same product.
func (a *Accessor) AddReview(ctx context.Context, productID primitive.ObjectID, userName string, rating int, comment string) error {
	if _, err := a.store.GetProduct(ctx, productID); err != nil {
		return err
	}
	fe := models.FieldErrors{}
	if strings.TrimSpace(userName) == "" {
		fe["userName"] = "user name is required"
	}
	if rating < 1 || rating > 5 {
		fe["rating"] = "rating must be between 1 and 5"
	}
	if len(fe) > 0 {
		return fe
	}
	return a.store.UpsertReview(ctx, &models.Review{
		ProductID: productID,
		UserName:  userName,
		Rating:    rating,
		Comment:   strings.TrimSpace(comment),
	})
}

func (a *Accessor) Reviews(ctx context.Context, productID primitive.ObjectID) ([]*models.Review, error) {
	return a.store.GetReviews(ctx, productID)
}
