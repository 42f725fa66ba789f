// Package checkout converts a resolved cart into an immutable order.
package checkout

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/cart"
	"storefront/internal/models"
)

// ErrEmptyCart signals the caller to send the shopper back to the cart view;
// it is not a failure.
var ErrEmptyCart = errors.New("checkout: cart is empty")

type ShippingInfo struct {
	Email           string
	FullName        string
	Phone           string
	Province        string
	District        string
	Ward            string
	SpecificAddress string
	PaymentMethod   string
}

func (si ShippingInfo) validate() models.FieldErrors {
	fe := models.FieldErrors{}
	required := map[string]string{
		"email":           si.Email,
		"fullName":        si.FullName,
		"phone":           si.Phone,
		"province":        si.Province,
		"district":        si.District,
		"ward":            si.Ward,
		"specificAddress": si.SpecificAddress,
	}
	for field, value := range required {
		if strings.TrimSpace(value) == "" {
			fe[field] = "this field is required"
		}
	}
	if _, ok := fe["email"]; !ok {
		if _, err := mail.ParseAddress(si.Email); err != nil {
			fe["email"] = "invalid email address"
		}
	}
	if len(fe) == 0 {
		return nil
	}
	return fe
}

type Store interface {
	InsertOrder(ctx context.Context, o *models.Order) error
	DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) error
}

type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Engine struct {
	store Store
	tx    TxRunner
	now   func() time.Time
}

func New(store Store, tx TxRunner) *Engine {
	return &Engine{store: store, tx: tx, now: time.Now}
}

// Checkout creates the order with its line snapshots, decrements stock per
// line, and clears the source cart, all inside one transaction. Stock is not
// reserved beforehand and may go negative when oversold.
func (e *Engine) Checkout(ctx context.Context, src cart.Source, info ShippingInfo) (primitive.ObjectID, error) {
	lines, err := src.Items(ctx)
	if err != nil {
		return primitive.NilObjectID, err
	}
	if len(lines) == 0 {
		return primitive.NilObjectID, ErrEmptyCart
	}
	if fe := info.validate(); fe != nil {
		return primitive.NilObjectID, fe
	}

	method := info.PaymentMethod
	if method == "" {
		method = "Credit Card"
	}

	total := decimal.Zero
	order := &models.Order{
		Email:           info.Email,
		FullName:        info.FullName,
		Phone:           info.Phone,
		Province:        info.Province,
		District:        info.District,
		Ward:            info.Ward,
		SpecificAddress: info.SpecificAddress,
		OrderDate:       e.now(),
		Status:          models.StatusPending,
		PaymentMethod:   method,
		PaymentStatus:   models.PaymentUnpaid,
	}
	for _, l := range lines {
		total = total.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
		order.Lines = append(order.Lines, models.OrderLine{
			ProductID:   l.ProductID,
			ProductName: l.Name,
			Price:       l.Price,
			Quantity:    l.Quantity,
		})
	}
	order.TotalAmount = total

	err = e.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.store.InsertOrder(txCtx, order); err != nil {
			return err
		}
		for _, l := range lines {
			if err := e.store.DecrementStock(txCtx, l.ProductID, l.Quantity); err != nil {
				return err
			}
		}
		return src.Clear(txCtx)
	})
	if err != nil {
		return primitive.NilObjectID, err
	}
	return order.ID, nil
}
