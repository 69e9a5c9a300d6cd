// Package store is the backing store boundary of the order pipeline. Both
// implementations offer per-row conditional updates for status transitions
// and a single atomic increment for order numbering.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/example/comanda/internal/models"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrCouponExhausted = errors.New("coupon usage limit reached")
)

// OrderFilter narrows ListOrders. Zero values mean "no filter".
type OrderFilter struct {
	RestaurantID uuid.UUID
	Statuses     []models.OrderStatus
	Inconsistent bool
	Limit        int
	Offset       int
}

// StatusUpdate moves one order from From to To only if it is still in From.
type StatusUpdate struct {
	RestaurantID uuid.UUID
	OrderID      uuid.UUID
	From         models.OrderStatus
	To           models.OrderStatus
	At           time.Time
}

type Store interface {
	ListProducts(ctx context.Context, restaurantID uuid.UUID, ids []uuid.UUID) ([]models.Product, error)
	ListDeliveryFees(ctx context.Context, restaurantID uuid.UUID) ([]models.DeliveryFee, error)
	FindCoupon(ctx context.Context, restaurantID uuid.UUID, code string) (*models.Coupon, error)
	IncrementCouponUsage(ctx context.Context, couponID uuid.UUID) error

	UpsertCustomer(ctx context.Context, customer *models.Customer) error

	// IncrementCounter atomically bumps and returns the restaurant counter,
	// creating it at 1 on first use.
	IncrementCounter(ctx context.Context, restaurantID uuid.UUID) (int64, error)
	ResetCounter(ctx context.Context, restaurantID uuid.UUID) error

	// CreateOrder inserts the order row only; it is the commit point.
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderItems(ctx context.Context, items []models.OrderItem) error
	FlagOrderInconsistent(ctx context.Context, orderID uuid.UUID, note string) error
	GetOrder(ctx context.Context, restaurantID, orderID uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error)
	// UpdateOrderStatus reports false when the order was no longer in From.
	UpdateOrderStatus(ctx context.Context, update StatusUpdate) (bool, error)

	ListTables(ctx context.Context, restaurantID uuid.UUID) ([]models.Table, error)
	ListTabs(ctx context.Context, restaurantID uuid.UUID) ([]models.Tab, error)
	GetSeatStatus(ctx context.Context, restaurantID uuid.UUID, ref models.SeatRef) (models.SeatStatus, error)
	SetSeatStatus(ctx context.Context, restaurantID uuid.UUID, ref models.SeatRef, status models.SeatStatus) error
	CountOpenOrders(ctx context.Context, restaurantID uuid.UUID, ref models.SeatRef) (int64, error)
}
