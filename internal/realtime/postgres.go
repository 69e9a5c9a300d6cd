package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// NotifyChannel is the PostgreSQL LISTEN/NOTIFY channel for change events.
const NotifyChannel = "comanda_changes"

// PostgresBus shares change events between server processes through
// LISTEN/NOTIFY. Events are published with pg_notify and come back through
// the listener, so local subscribers see their own process's events too.
type PostgresBus struct {
	db       *gorm.DB
	listener *pq.Listener
	local    *MemoryBus
	done     chan struct{}
	wg       sync.WaitGroup
}

func NewPostgresBus(dsn string, db *gorm.DB) (*PostgresBus, error) {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Printf("[Realtime] listener event %d: %v", ev, err)
		}
	}

	listener := pq.NewListener(dsn, 2*time.Second, time.Minute, reportProblem)
	if err := listener.Listen(NotifyChannel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("listen %s: %w", NotifyChannel, err)
	}

	b := &PostgresBus{
		db:       db,
		listener: listener,
		local:    NewMemoryBus(),
		done:     make(chan struct{}),
	}
	b.wg.Add(1)
	go b.loop()
	return b, nil
}

func (b *PostgresBus) loop() {
	defer b.wg.Done()
	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-b.done:
			return
		case n, ok := <-b.listener.Notify:
			if !ok {
				return
			}
			if n == nil {
				// Reconnected: anything sent meanwhile is lost.
				b.local.Resync()
				continue
			}
			var event Event
			if err := json.Unmarshal([]byte(n.Extra), &event); err != nil {
				log.Printf("[Realtime] dropping malformed notification: %v", err)
				continue
			}
			b.local.Publish(context.Background(), event)
		case <-ping.C:
			go func() {
				if err := b.listener.Ping(); err != nil {
					log.Printf("[Realtime] listener ping failed: %v", err)
				}
			}()
		}
	}
}

func (b *PostgresBus) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.db.WithContext(ctx).Exec("SELECT pg_notify(?, ?)", NotifyChannel, string(payload)).Error
}

func (b *PostgresBus) Subscribe(restaurantID uuid.UUID) (<-chan Event, func()) {
	return b.local.Subscribe(restaurantID)
}

func (b *PostgresBus) Close() error {
	close(b.done)
	err := b.listener.Close()
	b.wg.Wait()
	b.local.Close()
	return err
}
