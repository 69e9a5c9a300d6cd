package broker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// ChangesExchange carries realtime change events, routed by
	// restaurant.<id>.<collection>.
	ChangesExchange = "comanda.changes"
	// HandoffExchange carries order message payloads for the messaging
	// channel worker.
	HandoffExchange = "comanda.handoff"
	HandoffQueue    = "comanda.handoff"
)

type RabbitMQ struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel

	mu sync.Mutex
}

// Connect dials the broker and declares the exchanges and queues the
// pipeline publishes to.
func Connect(url string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		ChangesExchange, // name
		"topic",         // type
		true,            // durable
		false,           // auto-deleted
		false,           // internal
		false,           // no-wait
		nil,             // arguments
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare %s: %w", ChangesExchange, err)
	}

	err = channel.ExchangeDeclare(
		HandoffExchange, // name
		"direct",        // type
		true,            // durable
		false,           // auto-deleted
		false,           // internal
		false,           // no-wait
		nil,             // arguments
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare %s: %w", HandoffExchange, err)
	}

	_, err = channel.QueueDeclare(
		HandoffQueue, // name
		true,         // durable
		false,        // delete when unused
		false,        // exclusive
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare %s queue: %w", HandoffQueue, err)
	}

	err = channel.QueueBind(
		HandoffQueue,    // queue name
		HandoffQueue,    // routing key
		HandoffExchange, // exchange
		false,           // no-wait
		nil,             // arguments
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("bind %s queue: %w", HandoffQueue, err)
	}

	log.Printf("[Broker] connected to RabbitMQ")
	return &RabbitMQ{Conn: conn, Channel: channel}, nil
}

func (r *RabbitMQ) Close() {
	if r.Channel != nil {
		r.Channel.Close()
	}
	if r.Conn != nil {
		r.Conn.Close()
	}
}

// Publish sends a JSON body. persistent selects durable delivery.
func (r *RabbitMQ) Publish(ctx context.Context, exchange, routingKey string, body []byte, persistent bool) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	mode := amqp.Transient
	if persistent {
		mode = amqp.Persistent
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Channel.PublishWithContext(ctx,
		exchange,   // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			DeliveryMode: mode,
			ContentType:  "application/json",
			Timestamp:    time.Now(),
			Body:         body,
		})
}

// ConsumeTopic binds a private, auto-deleted queue to exchange with the
// given pattern and returns its deliveries on a dedicated channel.
func (r *RabbitMQ) ConsumeTopic(exchange, pattern string) (<-chan amqp.Delivery, func(), error) {
	ch, err := r.Conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("open consumer channel: %w", err)
	}

	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("declare consumer queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, pattern, exchange, false, nil); err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("bind consumer queue: %w", err)
	}

	deliveries, err := ch.Consume(
		q.Name, // queue
		"",     // consumer
		true,   // auto-ack
		true,   // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("consume: %w", err)
	}

	return deliveries, func() { ch.Close() }, nil
}
