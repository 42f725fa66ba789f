// Package promotion manages which products a promotion applies to.
package promotion

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

type Store interface {
	GetPromotion(ctx context.Context, id primitive.ObjectID) (*models.Promotion, error)
	DeletePromotion(ctx context.Context, id primitive.ObjectID) error
	GetProduct(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	ProductsByPromotion(ctx context.Context, promoID primitive.ObjectID) ([]*models.Product, error)
	SetProductPromotion(ctx context.Context, productID, promoID primitive.ObjectID) error
	ClearProductPromotion(ctx context.Context, productID primitive.ObjectID) error
	ClearPromotionLinks(ctx context.Context, promoID primitive.ObjectID) error
}

type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Assigner struct {
	store Store
	tx    TxRunner
	now   func() time.Time
}

func NewAssigner(store Store, tx TxRunner) *Assigner {
	return &Assigner{store: store, tx: tx, now: time.Now}
}

// Assign reconciles the promotion's product set against productIDs: links in
// the new set are added, links missing from it are cleared, and products
// already attached to a different promotion that has not yet ended are left
// alone. Re-running with the same set changes nothing.
func (a *Assigner) Assign(ctx context.Context, promoID primitive.ObjectID, productIDs []primitive.ObjectID) error {
	if _, err := a.store.GetPromotion(ctx, promoID); err != nil {
		return err
	}

	want := make(map[primitive.ObjectID]bool, len(productIDs))
	for _, id := range productIDs {
		want[id] = true
	}

	return a.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		linked, err := a.store.ProductsByPromotion(txCtx, promoID)
		if err != nil {
			return err
		}
		for _, p := range linked {
			if !want[p.ID] {
				if err := a.store.ClearProductPromotion(txCtx, p.ID); err != nil {
					return err
				}
			}
		}

		now := a.now()
		for _, id := range productIDs {
			p, err := a.store.GetProduct(txCtx, id)
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if p.PromotionID != nil {
				if *p.PromotionID == promoID {
					continue
				}
				other, err := a.store.GetPromotion(txCtx, *p.PromotionID)
				if err != nil && !errors.Is(err, models.ErrNotFound) {
					return err
				}
				// do not steal a product from a promotion that is
				// still running
				if other != nil && !other.EndDate.Before(now) {
					continue
				}
			}
			if err := a.store.SetProductPromotion(txCtx, id, promoID); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete clears the promotion link from every associated product before
// removing the promotion itself, as one atomic unit.
func (a *Assigner) Delete(ctx context.Context, promoID primitive.ObjectID) error {
	if _, err := a.store.GetPromotion(ctx, promoID); err != nil {
		return err
	}
	return a.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := a.store.ClearPromotionLinks(txCtx, promoID); err != nil {
			return err
		}
		return a.store.DeletePromotion(txCtx, promoID)
	})
}
