package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/example/comanda/internal/models"
)

// Advancer is the part of the order service the auto-accept loop needs.
type Advancer interface {
	Advance(ctx context.Context, restaurantID, orderID uuid.UUID, observed models.OrderStatus) (*models.Order, error)
}

type AcceptReport struct {
	Scanned        int `json:"scanned"`
	Accepted       int `json:"accepted"`
	AlreadyHandled int `json:"already_handled"`
	Failed         int `json:"failed"`
}

// AutoAccepter moves pending orders to preparing whenever it is handed a
// fresh snapshot. Several terminals may run it at once; the conditional
// transition makes sure each order is accepted exactly once, and losing
// the race counts as already handled.
type AutoAccepter struct {
	advancer Advancer
	enabled  atomic.Bool

	mu        sync.Mutex
	processed map[uuid.UUID]struct{}
}

func NewAutoAccepter(advancer Advancer, enabled bool) *AutoAccepter {
	a := &AutoAccepter{advancer: advancer, processed: make(map[uuid.UUID]struct{})}
	a.enabled.Store(enabled)
	return a
}

func (a *AutoAccepter) SetEnabled(enabled bool) {
	a.enabled.Store(enabled)
}

func (a *AutoAccepter) Enabled() bool {
	return a.enabled.Load()
}

// Run accepts every pending order of the snapshot. Overlapping calls are
// serialized, and an order already accepted by an earlier run is skipped.
func (a *AutoAccepter) Run(ctx context.Context, snapshot []models.Order) AcceptReport {
	var report AcceptReport
	if !a.Enabled() {
		return report
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	pending := make(map[uuid.UUID]struct{})
	for _, order := range snapshot {
		if order.Status != models.StatusPending {
			continue
		}
		pending[order.ID] = struct{}{}
		report.Scanned++

		if _, done := a.processed[order.ID]; done {
			report.AlreadyHandled++
			continue
		}
		if ctx.Err() != nil {
			break
		}

		_, err := a.advancer.Advance(ctx, order.RestaurantID, order.ID, models.StatusPending)
		switch {
		case err == nil:
			report.Accepted++
			a.processed[order.ID] = struct{}{}
		case errors.Is(err, ErrConflict), errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrNotFound):
			report.AlreadyHandled++
			a.processed[order.ID] = struct{}{}
		default:
			report.Failed++
			log.Printf("[AutoAccept] order #%d: %v", order.OrderNumber, err)
		}
	}

	// Forget orders that are no longer pending in the snapshot.
	for id := range a.processed {
		if _, ok := pending[id]; !ok {
			delete(a.processed, id)
		}
	}

	if report.Accepted > 0 {
		log.Printf("[AutoAccept] accepted %d of %d pending orders", report.Accepted, report.Scanned)
	}
	return report
}
