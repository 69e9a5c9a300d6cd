package store

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/comanda/internal/models"
)

// openTestDB connects to TEST_DATABASE_URL, skipping when it is unset.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.AutoMigrate(&models.OrderCounter{}, &models.Order{}, &models.OrderItem{}, &models.Table{}, &models.Tab{}, &models.Coupon{}, &models.Customer{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestGormIncrementCounterConcurrent(t *testing.T) {
	s := NewGormStore(openTestDB(t))
	rid := uuid.New()
	const n = 50

	var mu sync.Mutex
	seen := make(map[int64]bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.IncrementCounter(context.Background(), rid)
			if err != nil {
				t.Errorf("increment: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[v] {
				t.Errorf("number %d allocated twice", v)
			}
			seen[v] = true
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Fatalf("allocated %d distinct numbers, want %d", len(seen), n)
	}
}

func TestGormConditionalStatusUpdate(t *testing.T) {
	s := NewGormStore(openTestDB(t))
	ctx := context.Background()
	rid := uuid.New()

	order := &models.Order{RestaurantID: rid, OrderNumber: 1, Status: models.StatusPending, OrderType: models.TypeCounter}
	if err := s.CreateOrder(ctx, order); err != nil {
		t.Fatalf("create: %v", err)
	}

	update := StatusUpdate{RestaurantID: rid, OrderID: order.ID, From: models.StatusPending, To: models.StatusPreparing, At: time.Now()}
	ok, err := s.UpdateOrderStatus(ctx, update)
	if err != nil || !ok {
		t.Fatalf("first update ok=%v err=%v", ok, err)
	}
	ok, err = s.UpdateOrderStatus(ctx, update)
	if err != nil || ok {
		t.Fatalf("stale update ok=%v err=%v, want no-op", ok, err)
	}

	ready := StatusUpdate{RestaurantID: rid, OrderID: order.ID, From: models.StatusPreparing, To: models.StatusReady, At: time.Now()}
	if ok, err := s.UpdateOrderStatus(ctx, ready); err != nil || !ok {
		t.Fatalf("ready update ok=%v err=%v", ok, err)
	}
	stored, err := s.GetOrder(ctx, rid, order.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.ReadyAt == nil {
		t.Fatal("ready_at not recorded")
	}
}
