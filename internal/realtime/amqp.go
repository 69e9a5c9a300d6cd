package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/example/comanda/internal/broker"
)

// RoutingKey is the topic key an event is published under.
func RoutingKey(event Event) string {
	return fmt.Sprintf("restaurant.%s.%s", event.RestaurantID, event.Collection)
}

// AMQPBus shares change events through a RabbitMQ topic exchange. Each
// process consumes a private queue bound to every restaurant.
type AMQPBus struct {
	rmq    *broker.RabbitMQ
	local  *MemoryBus
	cancel func()
	done   chan struct{}
}

func NewAMQPBus(rmq *broker.RabbitMQ) (*AMQPBus, error) {
	deliveries, cancel, err := rmq.ConsumeTopic(broker.ChangesExchange, "restaurant.#")
	if err != nil {
		return nil, err
	}

	b := &AMQPBus{
		rmq:    rmq,
		local:  NewMemoryBus(),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(b.done)
		for d := range deliveries {
			var event Event
			if err := json.Unmarshal(d.Body, &event); err != nil {
				log.Printf("[Realtime] dropping malformed delivery: %v", err)
				continue
			}
			b.local.Publish(context.Background(), event)
		}
	}()
	return b, nil
}

func (b *AMQPBus) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.rmq.Publish(ctx, broker.ChangesExchange, RoutingKey(event), body, false)
}

func (b *AMQPBus) Subscribe(restaurantID uuid.UUID) (<-chan Event, func()) {
	return b.local.Subscribe(restaurantID)
}

func (b *AMQPBus) Close() error {
	b.cancel()
	<-b.done
	return b.local.Close()
}
