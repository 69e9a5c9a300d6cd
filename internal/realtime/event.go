// Package realtime carries "something changed" notifications from the
// order pipeline to connected terminals. Events never carry diffs; a
// terminal that receives one re-fetches the collection it names.
package realtime

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Collection string

const (
	CollectionOrders Collection = "orders"
	CollectionTables Collection = "tables"
	CollectionTabs   Collection = "tabs"
)

type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	// OpResync invalidates every collection; sent when events may have
	// been lost.
	OpResync Op = "resync"
)

type Event struct {
	RestaurantID uuid.UUID  `json:"restaurant_id"`
	Collection   Collection `json:"collection"`
	Op           Op         `json:"op"`
	ID           uuid.UUID  `json:"id"`
	At           time.Time  `json:"at"`
}

// NewEvent stamps an event with the current time.
func NewEvent(restaurantID uuid.UUID, collection Collection, op Op, id uuid.UUID) Event {
	return Event{
		RestaurantID: restaurantID,
		Collection:   collection,
		Op:           op,
		ID:           id,
		At:           time.Now().UTC(),
	}
}

// Bus is the change-notification channel, keyed by restaurant.
type Bus interface {
	Publish(ctx context.Context, event Event) error
	// Subscribe returns a channel of events for one restaurant and a func
	// that ends the subscription and closes the channel.
	Subscribe(restaurantID uuid.UUID) (<-chan Event, func())
	Close() error
}
