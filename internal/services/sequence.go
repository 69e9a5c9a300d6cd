package services

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/example/comanda/internal/store"
)

// Sequencer hands out per-restaurant order numbers. Every number comes
// from one atomic increment in the store, so concurrent terminals never
// receive the same number.
type Sequencer struct {
	store store.Store
}

func NewSequencer(s store.Store) *Sequencer {
	return &Sequencer{store: s}
}

// NextOrderNumber never falls back to a client-side guess: on failure the
// caller must abort order creation.
func (s *Sequencer) NextOrderNumber(ctx context.Context, restaurantID uuid.UUID) (int64, error) {
	n, err := s.store.IncrementCounter(ctx, restaurantID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrAllocation, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: counter returned %d", ErrAllocation, n)
	}
	return n, nil
}

// ResetCounter starts numbering over at 1. It is an administrative action,
// typically run once per business day.
func (s *Sequencer) ResetCounter(ctx context.Context, restaurantID uuid.UUID) error {
	if err := s.store.ResetCounter(ctx, restaurantID); err != nil {
		return err
	}
	log.Printf("[Sequence] counter reset for restaurant %s", restaurantID)
	return nil
}
