package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Size string

const (
	SizeNone   Size = ""
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
)

// Label is the short tag printed next to a sized product name.
func (s Size) Label() string {
	switch s {
	case SizeSmall:
		return "P"
	case SizeMedium:
		return "M"
	case SizeLarge:
		return "G"
	}
	return ""
}

// Product is the catalog entry cart lines are priced from. Catalog editing
// lives outside this service; orders only snapshot name and price.
type Product struct {
	BaseModel
	RestaurantID uuid.UUID           `gorm:"type:uuid;index" json:"restaurant_id"`
	Name         string              `json:"name"`
	Price        decimal.Decimal     `gorm:"type:numeric(12,2)" json:"price"`
	HasSizes     bool                `json:"has_sizes"`
	PriceSmall   decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"price_small"`
	PriceMedium  decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"price_medium"`
	PriceLarge   decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"price_large"`
	IsAvailable  bool                `json:"is_available"`
}

type DeliveryFee struct {
	BaseModel
	RestaurantID  uuid.UUID           `gorm:"type:uuid;index" json:"restaurant_id"`
	Neighborhood  string              `json:"neighborhood"`
	City          string              `json:"city"`
	Fee           decimal.Decimal     `gorm:"type:numeric(12,2)" json:"fee"`
	EstimatedTime string              `json:"estimated_time"`
	MinOrderValue decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"min_order_value"`
	IsActive      bool                `json:"is_active"`
}

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type Coupon struct {
	BaseModel
	RestaurantID  uuid.UUID       `gorm:"type:uuid;uniqueIndex:idx_coupons_restaurant_code" json:"restaurant_id"`
	Code          string          `gorm:"uniqueIndex:idx_coupons_restaurant_code" json:"code"`
	DiscountType  DiscountType    `gorm:"size:16" json:"discount_type"`
	DiscountValue decimal.Decimal `gorm:"type:numeric(12,2)" json:"discount_value"`
	MinOrderValue decimal.Decimal `gorm:"type:numeric(12,2)" json:"min_order_value"`
	MaxUses       int             `json:"max_uses"`
	UsedCount     int             `json:"used_count"`
	ValidFrom     *time.Time      `json:"valid_from"`
	ExpiresAt     *time.Time      `json:"expires_at"`
	IsActive      bool            `json:"is_active"`
}
