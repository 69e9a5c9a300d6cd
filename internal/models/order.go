package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusReady, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Next is the single forward step from s, or "" when s has none.
func (s OrderStatus) Next() OrderStatus {
	switch s {
	case StatusPending:
		return StatusPreparing
	case StatusPreparing:
		return StatusReady
	case StatusReady:
		return StatusDelivered
	}
	return ""
}

// CanTransition reports whether from -> to is an edge of the order
// lifecycle: one step forward, or cancellation of an open order.
func CanTransition(from, to OrderStatus) bool {
	if from.Terminal() || !from.Valid() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	return from.Next() == to
}

// OpenStatuses are the statuses that keep a table or tab occupied.
var OpenStatuses = []OrderStatus{StatusPending, StatusPreparing, StatusReady}

type OrderType string

const (
	TypeCounter     OrderType = "counter"
	TypeTable       OrderType = "table"
	TypeTab         OrderType = "tab"
	TypeTakeaway    OrderType = "takeaway"
	TypeDelivery    OrderType = "delivery"
	TypeDigitalMenu OrderType = "digital_menu"
)

func (t OrderType) Valid() bool {
	switch t {
	case TypeCounter, TypeTable, TypeTab, TypeTakeaway, TypeDelivery, TypeDigitalMenu:
		return true
	}
	return false
}

// Order is the committed record of a customer order. Money fields are frozen
// at submission and never recomputed from the catalog.
type Order struct {
	BaseModel
	RestaurantID       uuid.UUID       `gorm:"type:uuid;index:idx_orders_restaurant_status" json:"restaurant_id"`
	OrderNumber        int64           `gorm:"index" json:"order_number"`
	BusinessDate       string          `gorm:"size:10;index" json:"business_date"`
	Status             OrderStatus     `gorm:"size:16;index:idx_orders_restaurant_status" json:"status"`
	OrderType          OrderType       `gorm:"size:16" json:"order_type"`
	Subtotal           decimal.Decimal `gorm:"type:numeric(12,2)" json:"subtotal"`
	DeliveryFee        decimal.Decimal `gorm:"type:numeric(12,2)" json:"delivery_fee"`
	DeliveryFeePending bool            `json:"delivery_fee_pending"`
	CouponID           *uuid.UUID      `gorm:"type:uuid" json:"coupon_id"`
	CouponDiscount     decimal.Decimal `gorm:"type:numeric(12,2)" json:"coupon_discount"`
	Total              decimal.Decimal `gorm:"type:numeric(12,2)" json:"total"`
	TableID            *uuid.UUID      `gorm:"type:uuid;index" json:"table_id"`
	TabID              *uuid.UUID      `gorm:"type:uuid;index" json:"tab_id"`
	CustomerID         *uuid.UUID      `gorm:"type:uuid;index" json:"customer_id"`
	CustomerName       string          `json:"customer_name"`
	DeliveryPhone      string          `json:"delivery_phone"`
	DeliveryAddress    string          `json:"delivery_address"`
	Neighborhood       string          `json:"neighborhood"`
	PaymentMethod      string          `gorm:"size:16" json:"payment_method"`
	ChangeFor          decimal.Decimal `gorm:"type:numeric(12,2)" json:"change_for"`
	Notes              string          `json:"notes"`
	ItemsIncomplete    bool            `gorm:"index" json:"items_incomplete"`
	InconsistencyNote  string          `json:"inconsistency_note,omitempty"`
	StatusChangedAt    *time.Time      `json:"status_changed_at"`
	ReadyAt            *time.Time      `json:"ready_at"`
	DeliveredAt        *time.Time      `json:"delivered_at"`
	CancelledAt        *time.Time      `json:"cancelled_at"`
	Items              []OrderItem     `json:"items,omitempty"`
}

// IsOpen reports whether the order still holds its table or tab.
func (o *Order) IsOpen() bool {
	return !o.Status.Terminal()
}

// OrderItem is a snapshot of a cart line taken when the order was created.
type OrderItem struct {
	BaseModel
	OrderID     uuid.UUID       `gorm:"type:uuid;index" json:"order_id"`
	ProductID   *uuid.UUID      `gorm:"type:uuid" json:"product_id"`
	ProductName string          `json:"product_name"`
	Size        Size            `gorm:"size:8" json:"size,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2)" json:"unit_price"`
	LineTotal   decimal.Decimal `gorm:"type:numeric(12,2)" json:"line_total"`
	Notes       string          `json:"notes,omitempty"`
}

// OrderCounter is the single per-restaurant record behind order numbering.
type OrderCounter struct {
	RestaurantID uuid.UUID  `gorm:"type:uuid;primaryKey" json:"restaurant_id"`
	LastNumber   int64      `json:"last_number"`
	ResetAt      *time.Time `json:"reset_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
