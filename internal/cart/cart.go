// Package cart implements the dual-mode shopping cart: an ephemeral guest
// cart living in the visitor's session and a persisted cart owned by a
// signed-in user. Both satisfy the same Source contract; the consolidator is
// the only code that crosses the two.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/catalog"
	"storefront/internal/models"
)

const sessionKey = "cart"

// Line is the normalized cart view handed to callers regardless of which
// variant is active.
type Line struct {
	ProductID primitive.ObjectID
	Name      string
	Price     decimal.Decimal
	Quantity  int
	ImageURL  string
}

// Source is the unified read/update contract over both cart variants.
type Source interface {
	Items(ctx context.Context) ([]Line, error)
	Add(ctx context.Context, productID primitive.ObjectID, quantity int) error
	Remove(ctx context.Context, productID primitive.ObjectID) error
	// SetQuantity with quantity <= 0 removes the line.
	SetQuantity(ctx context.Context, productID primitive.ObjectID, quantity int) error
	Clear(ctx context.Context) error
}

type Pricer interface {
	Priced(ctx context.Context, id primitive.ObjectID) (*catalog.PricedProduct, error)
}

type Store interface {
	GetCartByUser(ctx context.Context, userID primitive.ObjectID) (*models.Cart, error)
	PutCart(ctx context.Context, c *models.Cart) error
	DeleteCart(ctx context.Context, userID primitive.ObjectID) error
}

// --- Guest cart ---

// sessionLine is the denormalized snapshot stored in the session blob.
type sessionLine struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	Quantity  int    `json:"quantity"`
	ImageURL  string `json:"image_url,omitempty"`
}

// SessionCart keeps the guest cart as a JSON blob in the scs session. The
// session handle travels in ctx; no ambient lookup happens here.
type SessionCart struct {
	sessions *scs.SessionManager
	pricer   Pricer
}

func ForGuest(sessions *scs.SessionManager, pricer Pricer) *SessionCart {
	return &SessionCart{sessions: sessions, pricer: pricer}
}

func (c *SessionCart) load(ctx context.Context) []sessionLine {
	raw := c.sessions.GetString(ctx, sessionKey)
	if raw == "" {
		return nil
	}
	var lines []sessionLine
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		return nil
	}
	return lines
}

func (c *SessionCart) save(ctx context.Context, lines []sessionLine) error {
	data, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	c.sessions.Put(ctx, sessionKey, string(data))
	return nil
}

func (c *SessionCart) Items(ctx context.Context) ([]Line, error) {
	stored := c.load(ctx)
	lines := make([]Line, 0, len(stored))
	for _, sl := range stored {
		id, err := primitive.ObjectIDFromHex(sl.ProductID)
		if err != nil {
			continue
		}
		price, err := decimal.NewFromString(sl.Price)
		if err != nil {
			price = decimal.Zero
		}
		lines = append(lines, Line{
			ProductID: id,
			Name:      sl.Name,
			Price:     price,
			Quantity:  sl.Quantity,
			ImageURL:  sl.ImageURL,
		})
	}
	return lines, nil
}

func (c *SessionCart) Add(ctx context.Context, productID primitive.ObjectID, quantity int) error {
	p, err := c.pricer.Priced(ctx, productID)
	if err != nil {
		return err
	}
	lines := c.load(ctx)
	for i := range lines {
		if lines[i].ProductID == productID.Hex() {
			lines[i].Quantity += quantity
			// refresh the snapshot price on repeat adds
			lines[i].Price = p.Current.String()
			return c.save(ctx, lines)
		}
	}
	lines = append(lines, sessionLine{
		ProductID: productID.Hex(),
		Name:      p.Name,
		Price:     p.Current.String(),
		Quantity:  quantity,
		ImageURL:  p.ImageURL,
	})
	return c.save(ctx, lines)
}

func (c *SessionCart) Remove(ctx context.Context, productID primitive.ObjectID) error {
	lines := c.load(ctx)
	for i := range lines {
		if lines[i].ProductID == productID.Hex() {
			return c.save(ctx, append(lines[:i], lines[i+1:]...))
		}
	}
	return nil
}

func (c *SessionCart) SetQuantity(ctx context.Context, productID primitive.ObjectID, quantity int) error {
	if quantity <= 0 {
		return c.Remove(ctx, productID)
	}
	lines := c.load(ctx)
	for i := range lines {
		if lines[i].ProductID == productID.Hex() {
			lines[i].Quantity = quantity
			return c.save(ctx, lines)
		}
	}
	return nil
}

func (c *SessionCart) Clear(ctx context.Context) error {
	c.sessions.Remove(ctx, sessionKey)
	return nil
}

// --- Persisted cart ---

// PersistedCart is backed by the user's cart document. Prices are not
// snapshotted; every read recomputes the current discounted price.
type PersistedCart struct {
	store  Store
	pricer Pricer
	userID primitive.ObjectID
}

func ForUser(store Store, pricer Pricer, userID primitive.ObjectID) *PersistedCart {
	return &PersistedCart{store: store, pricer: pricer, userID: userID}
}

func (c *PersistedCart) cart(ctx context.Context) (*models.Cart, error) {
	stored, err := c.store.GetCartByUser(ctx, c.userID)
	if errors.Is(err, models.ErrNotFound) {
		return &models.Cart{UserID: c.userID, CreatedAt: time.Now()}, nil
	}
	return stored, err
}

func (c *PersistedCart) Items(ctx context.Context) ([]Line, error) {
	stored, err := c.store.GetCartByUser(ctx, c.userID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	lines := make([]Line, 0, len(stored.Lines))
	for _, cl := range stored.Lines {
		p, err := c.pricer.Priced(ctx, cl.ProductID)
		if errors.Is(err, models.ErrNotFound) {
			// product deleted since it was added
			continue
		}
		if err != nil {
			return nil, err
		}
		lines = append(lines, Line{
			ProductID: cl.ProductID,
			Name:      p.Name,
			Price:     p.Current,
			Quantity:  cl.Quantity,
			ImageURL:  p.ImageURL,
		})
	}
	return lines, nil
}

func (c *PersistedCart) Add(ctx context.Context, productID primitive.ObjectID, quantity int) error {
	if _, err := c.pricer.Priced(ctx, productID); err != nil {
		return err
	}
	stored, err := c.cart(ctx)
	if err != nil {
		return err
	}
	for i := range stored.Lines {
		if stored.Lines[i].ProductID == productID {
			stored.Lines[i].Quantity += quantity
			return c.store.PutCart(ctx, stored)
		}
	}
	stored.Lines = append(stored.Lines, models.CartLine{ProductID: productID, Quantity: quantity})
	return c.store.PutCart(ctx, stored)
}

func (c *PersistedCart) Remove(ctx context.Context, productID primitive.ObjectID) error {
	stored, err := c.store.GetCartByUser(ctx, c.userID)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	for i := range stored.Lines {
		if stored.Lines[i].ProductID == productID {
			stored.Lines = append(stored.Lines[:i], stored.Lines[i+1:]...)
			return c.store.PutCart(ctx, stored)
		}
	}
	return nil
}

func (c *PersistedCart) SetQuantity(ctx context.Context, productID primitive.ObjectID, quantity int) error {
	if quantity <= 0 {
		return c.Remove(ctx, productID)
	}
	stored, err := c.store.GetCartByUser(ctx, c.userID)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	for i := range stored.Lines {
		if stored.Lines[i].ProductID == productID {
			stored.Lines[i].Quantity = quantity
			return c.store.PutCart(ctx, stored)
		}
	}
	return nil
}

func (c *PersistedCart) Clear(ctx context.Context) error {
	return c.store.DeleteCart(ctx, c.userID)
}
