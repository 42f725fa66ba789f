package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDiscountedPriceBoundaries(t *testing.T) {
	start := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC)
	promo := &Promotion{DiscountPercent: 25, StartDate: start, EndDate: end, IsActive: true}
	p := &Product{Price: decimal.NewFromInt(100)}

	// the window is inclusive on both ends
	assert.True(t, p.DiscountedPrice(promo, start).Equal(decimal.NewFromInt(75)))
	assert.True(t, p.DiscountedPrice(promo, end).Equal(decimal.NewFromInt(75)))
	assert.True(t, p.DiscountedPrice(promo, start.Add(-time.Second)).Equal(decimal.NewFromInt(100)))
	assert.True(t, p.DiscountedPrice(promo, end.Add(time.Second)).Equal(decimal.NewFromInt(100)))
	assert.True(t, p.DiscountedPrice(nil, start).Equal(decimal.NewFromInt(100)))
}

func TestFieldErrorsMessage(t *testing.T) {
	fe := FieldErrors{"email": "required", "phone": "required"}
	assert.Equal(t, "invalid fields: email, phone", fe.Error())
}
