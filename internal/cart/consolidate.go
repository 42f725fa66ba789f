package cart

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

// Consolidator folds a guest cart into the user's persisted cart at sign-in.
type Consolidator struct {
	store Store
}

func NewConsolidator(store Store) *Consolidator {
	return &Consolidator{store: store}
}

// Consolidate adds every guest line to the persisted cart, summing
// quantities for products present in both, then discards the guest cart
// unconditionally. An empty guest cart is an idempotent no-op.
func (c *Consolidator) Consolidate(ctx context.Context, guest Source, userID primitive.ObjectID) error {
	lines, err := guest.Items(ctx)
	if err != nil {
		return err
	}
	if len(lines) > 0 {
		stored, err := c.store.GetCartByUser(ctx, userID)
		if errors.Is(err, models.ErrNotFound) {
			stored = &models.Cart{UserID: userID, CreatedAt: time.Now()}
		} else if err != nil {
			return err
		}

	merge:
		for _, gl := range lines {
			for i := range stored.Lines {
				if stored.Lines[i].ProductID == gl.ProductID {
					stored.Lines[i].Quantity += gl.Quantity
					continue merge
				}
			}
			stored.Lines = append(stored.Lines, models.CartLine{
				ProductID: gl.ProductID,
				Quantity:  gl.Quantity,
			})
		}

		if err := c.store.PutCart(ctx, stored); err != nil {
			return err
		}
	}
	return guest.Clear(ctx)
}
