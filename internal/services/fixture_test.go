package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/comanda/internal/config"
	"github.com/example/comanda/internal/models"
	"github.com/example/comanda/internal/pricing"
	"github.com/example/comanda/internal/realtime"
	"github.com/example/comanda/internal/store"
)

type staticPolicy config.RestaurantPolicy

type recordingHandoff struct {
	mu       sync.Mutex
	messages []OrderMessage
}

func (h *recordingHandoff) Send(_ context.Context, msg OrderMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msg)
	return nil
}

// failingItemsStore commits orders but never their items.
type failingItemsStore struct {
	*store.MemoryStore
}

func (s failingItemsStore) CreateOrderItems(context.Context, []models.OrderItem) error {
	return errors.New("connection reset")
}

// failingCounterStore cannot allocate order numbers.
type failingCounterStore struct {
	*store.MemoryStore
}

func (s failingCounterStore) IncrementCounter(context.Context, uuid.UUID) (int64, error) {
	return 0, errors.New("counter unavailable")
}

type fixture struct {
	store   *store.MemoryStore
	bus     *realtime.MemoryBus
	handoff *recordingHandoff
	svc     *OrderService
	rid     uuid.UUID
	plain   models.Product
	sized   models.Product
	table   models.Table
	tab     models.Tab
	policy  staticPolicy
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decimalNull(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(s))
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, func(s *store.MemoryStore) store.Store { return s })
}

func newFixtureWith(t *testing.T, wrap func(*store.MemoryStore) store.Store) *fixture {
	t.Helper()
	f := &fixture{
		store:   store.NewMemoryStore(),
		bus:     realtime.NewMemoryBus(),
		handoff: &recordingHandoff{},
		rid:     uuid.New(),
		policy:  staticPolicy{Name: "Pizzaria Bella", Phone: "(11) 98765-4321", IsOpen: true},
	}
	t.Cleanup(func() { f.bus.Close() })

	f.plain = f.store.AddProduct(models.Product{RestaurantID: f.rid, Name: "Refrigerante", Price: dec("10.00"), IsAvailable: true})
	f.sized = f.store.AddProduct(models.Product{
		RestaurantID: f.rid,
		Name:         "Pizza Calabresa",
		Price:        dec("12.00"),
		HasSizes:     true,
		PriceMedium:  decimal.NewNullDecimal(dec("15.50")),
		IsAvailable:  true,
	})
	f.store.AddDeliveryFee(models.DeliveryFee{RestaurantID: f.rid, Neighborhood: "Centro", Fee: dec("5.00"), EstimatedTime: "30-40 min", IsActive: true})
	f.store.AddCoupon(models.Coupon{
		RestaurantID:  f.rid,
		Code:          "DESC10",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: dec("10"),
		MinOrderValue: dec("30.00"),
		IsActive:      true,
	})
	f.table = f.store.AddTable(models.Table{RestaurantID: f.rid, Number: 7})
	f.tab = f.store.AddTab(models.Tab{RestaurantID: f.rid, Number: 12, CustomerName: "João"})

	s := wrap(f.store)
	f.svc = NewOrderService(OrderDeps{
		Store:    s,
		Bus:      f.bus,
		Handoff:  f.handoff,
		Policies: &f.policy,
	})
	return f
}

// Policy lets tests flip flags after the service is built.
func (p *staticPolicy) Policy(uuid.UUID) config.RestaurantPolicy {
	return config.RestaurantPolicy(*p)
}

func (f *fixture) cart() pricing.Cart {
	var c pricing.Cart
	c.Add(f.plain.ID, models.SizeNone, 2, "")
	c.Add(f.sized.ID, models.SizeMedium, 1, "sem cebola")
	return c
}

func (f *fixture) counterOrder(t *testing.T) *models.Order {
	t.Helper()
	res, err := f.svc.CreateOrder(context.Background(), f.rid, CreateOrderRequest{OrderType: models.TypeCounter, Cart: f.cart()})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return res.Order
}

func (f *fixture) seatStatus(t *testing.T, ref models.SeatRef) models.SeatStatus {
	t.Helper()
	status, err := f.store.GetSeatStatus(context.Background(), f.rid, ref)
	if err != nil {
		t.Fatalf("seat status: %v", err)
	}
	return status
}
