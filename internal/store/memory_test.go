package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/comanda/internal/models"
)

func TestMemoryIncrementCounterConcurrent(t *testing.T) {
	s := NewMemoryStore()
	rid := uuid.New()
	const n = 200

	var wg sync.WaitGroup
	results := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.IncrementCounter(context.Background(), rid)
			if err != nil {
				t.Errorf("increment: %v", err)
				return
			}
			results <- v
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool, n)
	for v := range results {
		if seen[v] {
			t.Fatalf("number %d allocated twice", v)
		}
		seen[v] = true
	}
	for i := int64(1); i <= n; i++ {
		if !seen[i] {
			t.Fatalf("number %d missing", i)
		}
	}
}

func TestMemoryResetCounter(t *testing.T) {
	s := NewMemoryStore()
	rid := uuid.New()
	ctx := context.Background()

	s.IncrementCounter(ctx, rid)
	s.IncrementCounter(ctx, rid)
	if err := s.ResetCounter(ctx, rid); err != nil {
		t.Fatalf("reset: %v", err)
	}
	v, _ := s.IncrementCounter(ctx, rid)
	if v != 1 {
		t.Fatalf("after reset got %d, want 1", v)
	}
}

func TestMemoryUpdateOrderStatusIsConditional(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	rid := uuid.New()
	order := &models.Order{RestaurantID: rid, Status: models.StatusPending, Total: decimal.NewFromInt(10)}
	if err := s.CreateOrder(ctx, order); err != nil {
		t.Fatalf("create: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.UpdateOrderStatus(ctx, StatusUpdate{
				RestaurantID: rid,
				OrderID:      order.ID,
				From:         models.StatusPending,
				To:           models.StatusPreparing,
				At:           time.Now(),
			})
			if err != nil {
				t.Errorf("update: %v", err)
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("wins = %d, want exactly 1", wins)
	}
	got, _ := s.GetOrder(ctx, rid, order.ID)
	if got.Status != models.StatusPreparing || got.StatusChangedAt == nil {
		t.Fatalf("order = %+v", got)
	}
}

func TestMemoryUpdateOrderStatusWrongRestaurant(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	order := &models.Order{RestaurantID: uuid.New(), Status: models.StatusPending}
	s.CreateOrder(ctx, order)

	ok, err := s.UpdateOrderStatus(ctx, StatusUpdate{
		RestaurantID: uuid.New(),
		OrderID:      order.ID,
		From:         models.StatusPending,
		To:           models.StatusPreparing,
		At:           time.Now(),
	})
	if err != nil || ok {
		t.Fatalf("ok=%v err=%v, want no update", ok, err)
	}
	if _, err := s.GetOrder(ctx, uuid.New(), order.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetOrder across restaurants err = %v", err)
	}
}

func TestMemoryCouponUsageLimit(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	c := s.AddCoupon(models.Coupon{RestaurantID: uuid.New(), Code: "PROMO10", MaxUses: 2, IsActive: true})

	for i := 0; i < 2; i++ {
		if err := s.IncrementCouponUsage(ctx, c.ID); err != nil {
			t.Fatalf("use %d: %v", i, err)
		}
	}
	if err := s.IncrementCouponUsage(ctx, c.ID); !errors.Is(err, ErrCouponExhausted) {
		t.Fatalf("third use err = %v, want ErrCouponExhausted", err)
	}

	found, err := s.FindCoupon(ctx, c.RestaurantID, " promo10 ")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.UsedCount != 2 {
		t.Fatalf("used = %d", found.UsedCount)
	}
}

func TestMemoryUpsertCustomerKeepsIdentity(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	rid := uuid.New()

	first := &models.Customer{RestaurantID: rid, Phone: "11987654321", Name: "Ana"}
	if err := s.UpsertCustomer(ctx, first); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	second := &models.Customer{RestaurantID: rid, Phone: "11987654321", Name: "Ana Souza"}
	if err := s.UpsertCustomer(ctx, second); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("customer duplicated: %s vs %s", first.ID, second.ID)
	}
	if second.Name != "Ana Souza" {
		t.Fatalf("name = %q", second.Name)
	}

	anon := &models.Customer{RestaurantID: rid, Phone: "11987654321"}
	s.UpsertCustomer(ctx, anon)
	if anon.Name != "Ana Souza" {
		t.Fatalf("empty name overwrote existing: %q", anon.Name)
	}
}

func TestMemoryCountOpenOrders(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	rid := uuid.New()
	table := s.AddTable(models.Table{RestaurantID: rid, Number: 4})
	ref := models.SeatRef{Kind: models.KindTable, ID: table.ID}

	for _, st := range []models.OrderStatus{models.StatusPending, models.StatusReady, models.StatusDelivered, models.StatusCancelled} {
		s.CreateOrder(ctx, &models.Order{RestaurantID: rid, Status: st, TableID: &table.ID})
	}
	s.CreateOrder(ctx, &models.Order{RestaurantID: rid, Status: models.StatusPending})

	n, err := s.CountOpenOrders(ctx, rid, ref)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("open = %d, want 2", n)
	}
}

func TestMemoryCreateOrderItemsRequiresOrder(t *testing.T) {
	s := NewMemoryStore()
	err := s.CreateOrderItems(context.Background(), []models.OrderItem{{OrderID: uuid.New(), Quantity: 1}})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryListOrdersFilters(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	rid := uuid.New()

	base := time.Now().Add(-time.Hour)
	for i, st := range []models.OrderStatus{models.StatusPending, models.StatusReady, models.StatusReady} {
		o := &models.Order{RestaurantID: rid, OrderNumber: int64(i + 1), Status: st}
		o.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		s.CreateOrder(ctx, o)
	}
	flagged := &models.Order{RestaurantID: rid, OrderNumber: 4, Status: models.StatusPending}
	s.CreateOrder(ctx, flagged)
	s.FlagOrderInconsistent(ctx, flagged.ID, "items missing")

	ready, total, err := s.ListOrders(ctx, OrderFilter{RestaurantID: rid, Statuses: []models.OrderStatus{models.StatusReady}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(ready) != 2 || ready[0].OrderNumber != 3 {
		t.Fatalf("ready = %+v total=%d", ready, total)
	}

	inconsistent, _, _ := s.ListOrders(ctx, OrderFilter{RestaurantID: rid, Inconsistent: true})
	if len(inconsistent) != 1 || inconsistent[0].ID != flagged.ID {
		t.Fatalf("inconsistent = %+v", inconsistent)
	}

	page, total, _ := s.ListOrders(ctx, OrderFilter{RestaurantID: rid, Limit: 2, Offset: 2})
	if total != 4 || len(page) != 2 {
		t.Fatalf("page len=%d total=%d", len(page), total)
	}
}
