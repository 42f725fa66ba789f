package models

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GetCartByUser returns the user's persisted cart, or ErrNotFound when the
// user has never added anything.
func (s *Store) GetCartByUser(ctx context.Context, userID primitive.ObjectID) (*Cart, error) {
	var c Cart
	if err := s.Carts.FindOne(ctx, bson.M{"user_id": userID}).Decode(&c); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// PutCart writes the whole cart document, creating it on first add.
func (s *Store) PutCart(ctx context.Context, c *Cart) error {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	_, err := s.Carts.ReplaceOne(ctx, bson.M{"user_id": c.UserID}, c,
		options.Replace().SetUpsert(true))
	return err
}

// DeleteCart removes the cart row entirely; clearing is not a lazy prune.
func (s *Store) DeleteCart(ctx context.Context, userID primitive.ObjectID) error {
	_, err := s.Carts.DeleteOne(ctx, bson.M{"user_id": userID})
	return err
}
