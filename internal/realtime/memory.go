package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const subscriberBuffer = 16

type subscriber struct {
	ch chan Event
}

// MemoryBus fans events out inside one process. Sends never block: a
// subscriber whose buffer is full misses the event, which is harmless
// because the next event triggers the same full refresh.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]map[*subscriber]struct{}
	closed bool
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[uuid.UUID]map[*subscriber]struct{})}
}

func (b *MemoryBus) Publish(_ context.Context, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil
	}
	for sub := range b.subs[event.RestaurantID] {
		select {
		case sub.ch <- event:
		default:
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(restaurantID uuid.UUID) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	if b.subs[restaurantID] == nil {
		b.subs[restaurantID] = make(map[*subscriber]struct{})
	}
	b.subs[restaurantID][sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[restaurantID][sub]; !ok {
				return
			}
			delete(b.subs[restaurantID], sub)
			if len(b.subs[restaurantID]) == 0 {
				delete(b.subs, restaurantID)
			}
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Resync tells every subscriber to re-fetch everything.
func (b *MemoryBus) Resync() {
	b.mu.RLock()
	defer b.mu.RUnlock()

	now := time.Now().UTC()
	for rid, subs := range b.subs {
		event := Event{RestaurantID: rid, Op: OpResync, At: now}
		for sub := range subs {
			select {
			case sub.ch <- event:
			default:
			}
		}
	}
}

// Subscribers reports how many subscriptions a restaurant has.
func (b *MemoryBus) Subscribers(restaurantID uuid.UUID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[restaurantID])
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for rid, subs := range b.subs {
		for sub := range subs {
			close(sub.ch)
		}
		delete(b.subs, rid)
	}
	return nil
}
