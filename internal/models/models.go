package models

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrNotFound is returned when a referenced document does not exist.
var ErrNotFound = errors.New("models: not found")

// FieldErrors carries per-field validation messages back to the caller.
// No write happens while validation fails.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	names := make([]string, 0, len(fe))
	for f := range fe {
		names = append(names, f)
	}
	sort.Strings(names)
	return "invalid fields: " + strings.Join(names, ", ")
}

// WriteResult reports the outcome of a conditional write. Callers branch on
// it instead of inspecting driver errors.
type WriteResult int

const (
	WriteOK WriteResult = iota
	// WriteConflict means the document exists but the precondition no
	// longer held at write time.
	WriteConflict
	WriteNotFound
)

type OrderStatus string

const (
	StatusPending         OrderStatus = "Pending"
	StatusProcessing      OrderStatus = "Processing"
	StatusCompleted       OrderStatus = "Completed"
	StatusDelivered       OrderStatus = "Delivered"
	StatusCancelled       OrderStatus = "Cancelled"
	StatusReturnRequested OrderStatus = "ReturnRequested"
	StatusReturned        OrderStatus = "Returned"
)

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "Unpaid"
	PaymentPaid     PaymentStatus = "Paid"
	PaymentRefunded PaymentStatus = "Refunded"
)

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password_hash"`
	Role         string             `bson:"role"`
	CreatedAt    time.Time          `bson:"created_at"`
}

type Product struct {
	ID          primitive.ObjectID
	Name        string
	Description string
	Price       decimal.Decimal
	ImageURL    string
	Category    string
	Brand       string
	Stock       int
	PromotionID *primitive.ObjectID
	CreatedAt   time.Time
}

// DiscountedPrice returns the price adjusted by promo, or the list price when
// promo is nil, inactive, or now falls outside its window.
func (p *Product) DiscountedPrice(promo *Promotion, now time.Time) decimal.Decimal {
	if promo == nil || !promo.IsActive || now.Before(promo.StartDate) || now.After(promo.EndDate) {
		return p.Price
	}
	factor := decimal.NewFromInt(int64(100 - promo.DiscountPercent)).Div(decimal.NewFromInt(100))
	return p.Price.Mul(factor)
}

type Promotion struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	Name            string             `bson:"name"`
	Description     string             `bson:"description,omitempty"`
	DiscountPercent int                `bson:"discount_percent"`
	StartDate       time.Time          `bson:"start_date"`
	EndDate         time.Time          `bson:"end_date"`
	IsActive        bool               `bson:"is_active"`
}

type Order struct {
	ID              primitive.ObjectID
	Email           string
	FullName        string
	Phone           string
	Province        string
	District        string
	Ward            string
	SpecificAddress string
	OrderDate       time.Time
	TotalAmount     decimal.Decimal
	Status          OrderStatus
	PaymentMethod   string
	PaymentStatus   PaymentStatus
	// TransactionID doubles as the buyer's free-text return reason.
	TransactionID string
	Lines         []OrderLine
}

// OrderLine is an immutable snapshot of the product at purchase time.
type OrderLine struct {
	ProductID   primitive.ObjectID
	ProductName string
	Price       decimal.Decimal
	Quantity    int
}

// OrderPatch describes the fields a status transition may set. Zero values
// leave the corresponding field unchanged.
type OrderPatch struct {
	Status        OrderStatus
	PaymentStatus PaymentStatus
	TransactionID *string
}

// Cart is the persisted cart, owned 1:1 by a user.
type Cart struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    primitive.ObjectID `bson:"user_id"`
	CreatedAt time.Time          `bson:"created_at"`
	Lines     []CartLine         `bson:"lines"`
}

// CartLine holds no price snapshot; prices are recomputed from the product
// at read time.
type CartLine struct {
	ProductID primitive.ObjectID `bson:"product_id"`
	Quantity  int                `bson:"quantity"`
}

type Review struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	ProductID primitive.ObjectID `bson:"product_id"`
	UserName  string             `bson:"user_name"`
	Rating    int                `bson:"rating"`
	Comment   string             `bson:"comment,omitempty"`
	CreatedAt time.Time          `bson:"created_at"`
}
