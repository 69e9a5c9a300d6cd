package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/comanda/internal/models"
	"github.com/example/comanda/internal/pricing"
	"github.com/example/comanda/internal/store"
)

// CouponAuthority decides whether a code applies and how much it takes
// off. Its verdict is taken as is; callers only clamp the amount.
type CouponAuthority interface {
	Validate(ctx context.Context, restaurantID uuid.UUID, code string, subtotal decimal.Decimal) (pricing.CouponResult, error)
	Redeem(ctx context.Context, couponID uuid.UUID) error
}

// StoreCouponAuthority validates coupons against the coupons table.
type StoreCouponAuthority struct {
	store store.Store
	now   func() time.Time
}

func NewStoreCouponAuthority(s store.Store) *StoreCouponAuthority {
	return &StoreCouponAuthority{store: s, now: time.Now}
}

func rejected(code, reason string) pricing.CouponResult {
	return pricing.CouponResult{Valid: false, Code: code, Discount: decimal.Zero, Reason: reason}
}

func (a *StoreCouponAuthority) Validate(ctx context.Context, restaurantID uuid.UUID, code string, subtotal decimal.Decimal) (pricing.CouponResult, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return rejected(code, "coupon code is empty"), nil
	}

	c, err := a.store.FindCoupon(ctx, restaurantID, code)
	if errors.Is(err, store.ErrNotFound) {
		return rejected(code, "coupon not found"), nil
	}
	if err != nil {
		return pricing.CouponResult{}, err
	}

	now := a.now()
	switch {
	case !c.IsActive:
		return rejected(code, "coupon is inactive"), nil
	case c.ValidFrom != nil && now.Before(*c.ValidFrom):
		return rejected(code, "coupon is not valid yet"), nil
	case c.ExpiresAt != nil && now.After(*c.ExpiresAt):
		return rejected(code, "coupon has expired"), nil
	case c.MaxUses > 0 && c.UsedCount >= c.MaxUses:
		return rejected(code, "coupon usage limit reached"), nil
	case subtotal.LessThan(c.MinOrderValue):
		return rejected(code, "minimum order value for this coupon is "+c.MinOrderValue.StringFixed(2)), nil
	}

	var discount decimal.Decimal
	switch c.DiscountType {
	case models.DiscountPercentage:
		discount = pricing.Round2(subtotal.Mul(c.DiscountValue).Div(decimal.NewFromInt(100)))
	case models.DiscountFixed:
		discount = c.DiscountValue
	default:
		return rejected(code, "coupon has an unknown discount type"), nil
	}

	id := c.ID
	return pricing.CouponResult{
		Valid:         true,
		CouponID:      &id,
		Code:          code,
		DiscountType:  c.DiscountType,
		DiscountValue: c.DiscountValue,
		Discount:      discount,
	}, nil
}

// Redeem counts one use. It fails when the usage limit was reached in the
// meantime.
func (a *StoreCouponAuthority) Redeem(ctx context.Context, couponID uuid.UUID) error {
	return a.store.IncrementCouponUsage(ctx, couponID)
}
