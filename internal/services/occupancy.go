package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/example/comanda/internal/models"
	"github.com/example/comanda/internal/realtime"
	"github.com/example/comanda/internal/store"
)

// Occupancy derives table and tab status from their open orders. It is the
// only writer of seat status.
type Occupancy struct {
	store store.Store
	bus   realtime.Bus

	// Serializes count-then-write per seat within this process.
	locks sync.Map
}

func NewOccupancy(s store.Store, bus realtime.Bus) *Occupancy {
	return &Occupancy{store: s, bus: bus}
}

// ReconcileReport summarizes a restaurant-wide reconcile.
type ReconcileReport struct {
	Checked int              `json:"checked"`
	Changed []models.SeatRef `json:"changed"`
}

func (o *Occupancy) lock(ref models.SeatRef) func() {
	v, _ := o.locks.LoadOrStore(ref, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (o *Occupancy) status(ctx context.Context, restaurantID uuid.UUID, ref models.SeatRef) (models.SeatStatus, error) {
	status, err := o.store.GetSeatStatus(ctx, restaurantID, ref)
	if errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("%s %s: %w", ref.Kind, ref.ID, ErrNotFound)
	}
	return status, err
}

func (o *Occupancy) set(ctx context.Context, restaurantID uuid.UUID, ref models.SeatRef, status models.SeatStatus) error {
	if err := o.store.SetSeatStatus(ctx, restaurantID, ref, status); err != nil {
		return err
	}
	publish(ctx, o.bus, realtime.NewEvent(restaurantID, seatCollection(ref), realtime.OpUpdate, ref.ID))
	return nil
}

func seatCollection(ref models.SeatRef) realtime.Collection {
	if ref.Kind == models.KindTab {
		return realtime.CollectionTabs
	}
	return realtime.CollectionTables
}

// Occupy marks a seat occupied when an order is placed on it. A seat that
// is already closing stays closing.
func (o *Occupancy) Occupy(ctx context.Context, restaurantID uuid.UUID, ref models.SeatRef) error {
	defer o.lock(ref)()

	status, err := o.status(ctx, restaurantID, ref)
	if err != nil {
		return err
	}
	if status != models.SeatAvailable {
		return nil
	}
	return o.set(ctx, restaurantID, ref, models.SeatOccupied)
}

// Release runs after an order on the seat was delivered or cancelled. The
// seat becomes available only when no open order remains on it.
func (o *Occupancy) Release(ctx context.Context, restaurantID uuid.UUID, ref models.SeatRef) error {
	defer o.lock(ref)()

	open, err := o.store.CountOpenOrders(ctx, restaurantID, ref)
	if err != nil {
		return err
	}
	if open > 0 {
		return nil
	}

	status, err := o.status(ctx, restaurantID, ref)
	if err != nil {
		return err
	}
	if status == models.SeatAvailable {
		return nil
	}
	return o.set(ctx, restaurantID, ref, models.SeatAvailable)
}

// RequestClose moves an occupied seat to closing (bill requested).
func (o *Occupancy) RequestClose(ctx context.Context, restaurantID uuid.UUID, ref models.SeatRef) error {
	defer o.lock(ref)()

	status, err := o.status(ctx, restaurantID, ref)
	if err != nil {
		return err
	}
	switch status {
	case models.SeatClosing:
		return nil
	case models.SeatAvailable:
		return fmt.Errorf("%w: %s has no open orders", ErrInvalidTransition, ref.Kind)
	}
	return o.set(ctx, restaurantID, ref, models.SeatClosing)
}

// Reconcile recomputes one seat from its open-order count and reports
// whether the stored status had drifted.
func (o *Occupancy) Reconcile(ctx context.Context, restaurantID uuid.UUID, ref models.SeatRef) (bool, error) {
	defer o.lock(ref)()

	open, err := o.store.CountOpenOrders(ctx, restaurantID, ref)
	if err != nil {
		return false, err
	}
	status, err := o.status(ctx, restaurantID, ref)
	if err != nil {
		return false, err
	}

	switch {
	case open == 0 && status != models.SeatAvailable:
		return true, o.set(ctx, restaurantID, ref, models.SeatAvailable)
	case open > 0 && status == models.SeatAvailable:
		return true, o.set(ctx, restaurantID, ref, models.SeatOccupied)
	}
	return false, nil
}

// ReconcileRestaurant reconciles every table and tab of a restaurant. Used
// to recover from missed cascades.
func (o *Occupancy) ReconcileRestaurant(ctx context.Context, restaurantID uuid.UUID) (ReconcileReport, error) {
	report := ReconcileReport{Changed: []models.SeatRef{}}

	tables, err := o.store.ListTables(ctx, restaurantID)
	if err != nil {
		return report, err
	}
	tabs, err := o.store.ListTabs(ctx, restaurantID)
	if err != nil {
		return report, err
	}

	refs := make([]models.SeatRef, 0, len(tables)+len(tabs))
	for _, t := range tables {
		refs = append(refs, models.SeatRef{Kind: models.KindTable, ID: t.ID})
	}
	for _, t := range tabs {
		refs = append(refs, models.SeatRef{Kind: models.KindTab, ID: t.ID})
	}

	for _, ref := range refs {
		changed, err := o.Reconcile(ctx, restaurantID, ref)
		if err != nil {
			return report, err
		}
		report.Checked++
		if changed {
			report.Changed = append(report.Changed, ref)
		}
	}

	if len(report.Changed) > 0 {
		log.Printf("[Occupancy] reconciled %d of %d seats for restaurant %s", len(report.Changed), report.Checked, restaurantID)
	}
	return report, nil
}

// publish never fails the caller: the mutation already happened and
// terminals poll as a fallback.
func publish(ctx context.Context, bus realtime.Bus, event realtime.Event) {
	if bus == nil {
		return
	}
	if err := bus.Publish(ctx, event); err != nil {
		log.Printf("[Realtime] publish %s/%s failed: %v", event.Collection, event.ID, err)
	}
}
