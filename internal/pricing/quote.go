package pricing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/comanda/internal/models"
)

// CouponResult is the verdict of the coupon authority. It is taken as is;
// only the resulting discount is clamped.
type CouponResult struct {
	Valid         bool                `json:"valid"`
	CouponID      *uuid.UUID          `json:"coupon_id,omitempty"`
	Code          string              `json:"code"`
	DiscountType  models.DiscountType `json:"discount_type,omitempty"`
	DiscountValue decimal.Decimal     `json:"discount_value"`
	Discount      decimal.Decimal     `json:"discount"`
	Reason        string              `json:"reason,omitempty"`
}

// ClampDiscount keeps subtotal + fee - discount from going below zero.
func ClampDiscount(discount, subtotal, fee decimal.Decimal) decimal.Decimal {
	if discount.IsNegative() {
		return decimal.Zero
	}
	ceiling := subtotal.Add(fee)
	if discount.GreaterThan(ceiling) {
		return ceiling
	}
	return Round2(discount)
}

// FinalTotal is max(0, subtotal + fee - discount).
func FinalTotal(subtotal, fee, discount decimal.Decimal) decimal.Decimal {
	total := subtotal.Add(fee).Sub(discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return Round2(total)
}

// Quote is the priced view of a cart. Once an order is submitted its
// amounts are copied onto the order and never recomputed.
type Quote struct {
	Lines            []PricedLine        `json:"lines"`
	Subtotal         decimal.Decimal     `json:"subtotal"`
	DeliveryFee      decimal.Decimal     `json:"delivery_fee"`
	FeePending       bool                `json:"fee_pending"`
	FeeEstimatedTime string              `json:"fee_estimated_time,omitempty"`
	Coupon           *CouponResult       `json:"coupon,omitempty"`
	Discount         decimal.Decimal     `json:"discount"`
	Total            decimal.Decimal     `json:"total"`
	MinOrderValue    decimal.NullDecimal `json:"min_order_value"`
	BelowMinimum     bool                `json:"below_minimum"`
	Notices          []string            `json:"notices,omitempty"`
}

// NewQuote combines priced lines with an optional fee resolution and an
// optional coupon verdict. Pass a nil fee for orders that are not delivered.
func NewQuote(lines []PricedLine, fee *FeeResolution, coupon *CouponResult) Quote {
	q := Quote{
		Lines:       lines,
		Subtotal:    Subtotal(lines),
		DeliveryFee: decimal.Zero,
		Discount:    decimal.Zero,
	}

	if fee != nil {
		q.DeliveryFee = fee.Fee
		q.FeePending = fee.Pending()
		q.FeeEstimatedTime = fee.EstimatedTime
		q.MinOrderValue = fee.MinOrderValue
		if fee.Notice != "" {
			q.Notices = append(q.Notices, fee.Notice)
		}
		if fee.MinOrderValue.Valid && q.Subtotal.LessThan(fee.MinOrderValue.Decimal) {
			q.BelowMinimum = true
		}
	}

	if coupon != nil {
		q.Coupon = coupon
		if coupon.Valid {
			q.Discount = ClampDiscount(coupon.Discount, q.Subtotal, q.DeliveryFee)
		} else if coupon.Reason != "" {
			q.Notices = append(q.Notices, coupon.Reason)
		}
	}

	q.Total = FinalTotal(q.Subtotal, q.DeliveryFee, q.Discount)
	return q
}
