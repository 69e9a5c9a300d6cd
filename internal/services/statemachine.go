package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/example/comanda/internal/models"
	"github.com/example/comanda/internal/realtime"
	"github.com/example/comanda/internal/store"
)

// finalizeConcurrency bounds FinalizeAllReady's parallel updates.
const finalizeConcurrency = 4

// TransitionRequest moves an order from the status the caller last saw to
// a new one.
type TransitionRequest struct {
	RestaurantID uuid.UUID
	OrderID      uuid.UUID
	From         models.OrderStatus
	To           models.OrderStatus
}

// Transition is the only path that changes an order's status. The write is
// conditional on the order still being in From, so of two terminals acting
// on the same observation exactly one wins and the other gets a
// *ConflictError carrying the current status.
func (s *OrderService) Transition(ctx context.Context, req TransitionRequest) (*models.Order, error) {
	if !models.CanTransition(req.From, req.To) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, req.From, req.To)
	}

	order, err := s.GetOrder(ctx, req.RestaurantID, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != req.From {
		return order, &ConflictError{OrderID: order.ID, Observed: req.From, Current: order.Status}
	}

	at := s.now().UTC()
	ok, err := s.store.UpdateOrderStatus(ctx, store.StatusUpdate{
		RestaurantID: req.RestaurantID,
		OrderID:      req.OrderID,
		From:         req.From,
		To:           req.To,
		At:           at,
	})
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	if !ok {
		current, err := s.GetOrder(ctx, req.RestaurantID, req.OrderID)
		if err != nil {
			return nil, err
		}
		return current, &ConflictError{OrderID: current.ID, Observed: req.From, Current: current.Status}
	}

	order.Status = req.To
	order.StatusChangedAt = &at
	order.UpdatedAt = at
	switch req.To {
	case models.StatusReady:
		order.ReadyAt = &at
	case models.StatusDelivered:
		order.DeliveredAt = &at
	case models.StatusCancelled:
		order.CancelledAt = &at
	}

	publish(ctx, s.bus, realtime.NewEvent(order.RestaurantID, realtime.CollectionOrders, realtime.OpUpdate, order.ID))

	if req.To.Terminal() {
		if ref, ok := models.SeatOf(order); ok {
			if err := s.occupancy.Release(ctx, order.RestaurantID, ref); err != nil {
				log.Printf("[Orders] release %s %s after order #%d: %v", ref.Kind, ref.ID, order.OrderNumber, err)
			}
		}
	}

	return order, nil
}

// Advance moves an order one step forward from the status the caller saw.
func (s *OrderService) Advance(ctx context.Context, restaurantID, orderID uuid.UUID, observed models.OrderStatus) (*models.Order, error) {
	next := observed.Next()
	if next == "" {
		return nil, fmt.Errorf("%w: %s has no next status", ErrInvalidTransition, observed)
	}
	return s.Transition(ctx, TransitionRequest{RestaurantID: restaurantID, OrderID: orderID, From: observed, To: next})
}

// Cancel cancels an open order and frees its table or tab when it was the
// last open order there.
func (s *OrderService) Cancel(ctx context.Context, restaurantID, orderID uuid.UUID, observed models.OrderStatus) (*models.Order, error) {
	return s.Transition(ctx, TransitionRequest{RestaurantID: restaurantID, OrderID: orderID, From: observed, To: models.StatusCancelled})
}

// Finalize marks a ready order delivered.
func (s *OrderService) Finalize(ctx context.Context, restaurantID, orderID uuid.UUID, observed models.OrderStatus) (*models.Order, error) {
	if observed != models.StatusReady {
		return nil, fmt.Errorf("%w: only ready orders can be finalized", ErrInvalidTransition)
	}
	return s.Transition(ctx, TransitionRequest{RestaurantID: restaurantID, OrderID: orderID, From: models.StatusReady, To: models.StatusDelivered})
}

type FinalizeResult struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber int64     `json:"order_number"`
	Finalized   bool      `json:"finalized"`
	Error       string    `json:"error,omitempty"`
}

// FinalizeAllReady finalizes every ready order of a restaurant. Each order
// is its own unit of work: a failure is reported in its result and does
// not undo the others.
func (s *OrderService) FinalizeAllReady(ctx context.Context, restaurantID uuid.UUID) ([]FinalizeResult, error) {
	ready, _, err := s.store.ListOrders(ctx, store.OrderFilter{
		RestaurantID: restaurantID,
		Statuses:     []models.OrderStatus{models.StatusReady},
	})
	if err != nil {
		return nil, err
	}

	results := make([]FinalizeResult, len(ready))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(finalizeConcurrency)

	for i := range ready {
		order := ready[i]
		g.Go(func() error {
			res := FinalizeResult{OrderID: order.ID, OrderNumber: order.OrderNumber}
			if _, err := s.Finalize(gctx, restaurantID, order.ID, models.StatusReady); err != nil {
				res.Error = err.Error()
			} else {
				res.Finalized = true
			}
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	finalized := 0
	for _, r := range results {
		if r.Finalized {
			finalized++
		}
	}
	if len(results) > 0 {
		log.Printf("[Orders] finalized %d of %d ready orders for restaurant %s", finalized, len(results), restaurantID)
	}
	return results, nil
}

// IsConflict reports whether err is a lost transition race and returns the
// current status when it is.
func IsConflict(err error) (models.OrderStatus, bool) {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict.Current, true
	}
	return "", false
}
