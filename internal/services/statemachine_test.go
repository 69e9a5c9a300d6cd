package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/example/comanda/internal/models"
)

func TestCanTransition(t *testing.T) {
	all := []models.OrderStatus{models.StatusPending, models.StatusPreparing, models.StatusReady, models.StatusDelivered, models.StatusCancelled}
	legal := map[[2]models.OrderStatus]bool{
		{models.StatusPending, models.StatusPreparing}:   true,
		{models.StatusPreparing, models.StatusReady}:     true,
		{models.StatusReady, models.StatusDelivered}:     true,
		{models.StatusPending, models.StatusCancelled}:   true,
		{models.StatusPreparing, models.StatusCancelled}: true,
		{models.StatusReady, models.StatusCancelled}:     true,
	}

	for _, from := range all {
		for _, to := range all {
			want := legal[[2]models.OrderStatus{from, to}]
			if got := models.CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestAdvanceWalksLifecycle(t *testing.T) {
	f := newFixture(t)
	o := f.counterOrder(t)
	ctx := context.Background()

	observed := o.Status
	for _, want := range []models.OrderStatus{models.StatusPreparing, models.StatusReady, models.StatusDelivered} {
		got, err := f.svc.Advance(ctx, f.rid, o.ID, observed)
		if err != nil {
			t.Fatalf("advance from %s: %v", observed, err)
		}
		if got.Status != want {
			t.Fatalf("status = %s, want %s", got.Status, want)
		}
		if want == models.StatusReady && got.ReadyAt == nil {
			t.Fatal("ready_at not set on the returned order")
		}
		observed = got.Status
	}

	stored, _ := f.svc.GetOrder(ctx, f.rid, o.ID)
	if stored.DeliveredAt == nil || stored.StatusChangedAt == nil {
		t.Fatal("delivery timestamps not recorded")
	}
	// Delivery overwrites status_changed_at; ready_at keeps the end of
	// preparation for kitchen timers.
	if stored.ReadyAt == nil || stored.ReadyAt.After(*stored.DeliveredAt) {
		t.Fatalf("ready_at = %v, delivered_at = %v", stored.ReadyAt, stored.DeliveredAt)
	}

	if _, err := f.svc.Advance(ctx, f.rid, o.ID, models.StatusDelivered); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("advance delivered err = %v", err)
	}
}

func TestAdvanceStaleObservationConflicts(t *testing.T) {
	f := newFixture(t)
	o := f.counterOrder(t)
	ctx := context.Background()

	if _, err := f.svc.Advance(ctx, f.rid, o.ID, models.StatusPending); err != nil {
		t.Fatalf("advance: %v", err)
	}

	current, err := f.svc.Advance(ctx, f.rid, o.ID, models.StatusPending)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
	status, ok := IsConflict(err)
	if !ok || status != models.StatusPreparing {
		t.Fatalf("conflict current = %s", status)
	}
	if current == nil || current.Status != models.StatusPreparing {
		t.Fatal("conflict should return the current order")
	}
}

func TestTwoTerminalsAdvanceSamePendingOrder(t *testing.T) {
	for round := 0; round < 20; round++ {
		f := newFixture(t)
		o := f.counterOrder(t)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = f.svc.Advance(context.Background(), f.rid, o.ID, models.StatusPending)
			}(i)
		}
		wg.Wait()

		wins, conflicts := 0, 0
		for _, err := range errs {
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if wins != 1 || conflicts != 1 {
			t.Fatalf("round %d: wins=%d conflicts=%d", round, wins, conflicts)
		}

		stored, _ := f.svc.GetOrder(context.Background(), f.rid, o.ID)
		if stored.Status != models.StatusPreparing {
			t.Fatalf("status = %s", stored.Status)
		}
	}
}

func TestCancelAndFinalize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := f.counterOrder(t)
	got, err := f.svc.Cancel(ctx, f.rid, o.ID, models.StatusPending)
	if err != nil || got.Status != models.StatusCancelled || got.CancelledAt == nil {
		t.Fatalf("cancel: %+v %v", got, err)
	}
	if _, err := f.svc.Cancel(ctx, f.rid, o.ID, models.StatusCancelled); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("cancel cancelled err = %v", err)
	}

	o2 := f.counterOrder(t)
	if _, err := f.svc.Finalize(ctx, f.rid, o2.ID, models.StatusPending); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("finalize pending err = %v", err)
	}
}

func TestTransitionUnknownOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Advance(context.Background(), f.rid, uuid.New(), models.StatusPending)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestFinalizeAllReady(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ready []uuid.UUID
	for i := 0; i < 5; i++ {
		o := f.counterOrder(t)
		f.svc.Advance(ctx, f.rid, o.ID, models.StatusPending)
		f.svc.Advance(ctx, f.rid, o.ID, models.StatusPreparing)
		ready = append(ready, o.ID)
	}
	pending := f.counterOrder(t)

	results, err := f.svc.FinalizeAllReady(ctx, f.rid)
	if err != nil {
		t.Fatalf("finalize all: %v", err)
	}
	if len(results) != len(ready) {
		t.Fatalf("results = %d, want %d", len(results), len(ready))
	}
	for _, r := range results {
		if !r.Finalized {
			t.Fatalf("order %s not finalized: %s", r.OrderID, r.Error)
		}
	}
	for _, id := range ready {
		o, _ := f.svc.GetOrder(ctx, f.rid, id)
		if o.Status != models.StatusDelivered {
			t.Fatalf("order %s = %s", id, o.Status)
		}
	}
	if o, _ := f.svc.GetOrder(ctx, f.rid, pending.ID); o.Status != models.StatusPending {
		t.Fatal("pending order must be untouched")
	}

	again, err := f.svc.FinalizeAllReady(ctx, f.rid)
	if err != nil || len(again) != 0 {
		t.Fatalf("second run = %v, %v", again, err)
	}
}
