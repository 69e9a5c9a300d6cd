package terminal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/example/comanda/internal/models"
	"github.com/example/comanda/internal/realtime"
)

const (
	DefaultPollInterval = 5 * time.Second
	minPollInterval     = time.Second
	maxPollInterval     = time.Minute
	maxFeedBackoff      = 30 * time.Second
)

// API is the server surface a session reads and writes through.
type API interface {
	ListOpenOrders(ctx context.Context) ([]models.Order, error)
	ListTables(ctx context.Context) ([]models.Table, error)
	ListTabs(ctx context.Context) ([]models.Tab, error)
	Advance(ctx context.Context, restaurantID, orderID uuid.UUID, observed models.OrderStatus) (*models.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID, observed models.OrderStatus) (*models.Order, error)
	Finalize(ctx context.Context, orderID uuid.UUID, observed models.OrderStatus) (*models.Order, error)
}

// Feed delivers change events until the connection fails.
type Feed interface {
	Listen(ctx context.Context, fn func(realtime.Event)) error
}

// Snapshot is the last state fetched from the server.
type Snapshot struct {
	Orders      []models.Order
	Board       *Board
	Tables      []models.Table
	Tabs        []models.Tab
	RefreshedAt time.Time
	Live        bool
}

type Options struct {
	// PollInterval is used while the feed is down. It is clamped to
	// [1s, 1m] and defaults to 5s.
	PollInterval time.Duration
}

// Session keeps a terminal's snapshot current. Every change event causes
// a full re-fetch; refresh requests arriving while one is in flight are
// merged into a single follow-up.
type Session struct {
	api          API
	feed         Feed
	pollInterval time.Duration

	mu   sync.RWMutex
	snap Snapshot

	pending chan struct{}
	live    atomic.Bool

	hooksMu sync.Mutex
	hooks   []func(context.Context, Snapshot)
}

func NewSession(api API, feed Feed, opts Options) *Session {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	interval = max(minPollInterval, min(interval, maxPollInterval))

	return &Session{
		api:          api,
		feed:         feed,
		pollInterval: interval,
		snap:         Snapshot{Board: NewBoard(nil)},
		pending:      make(chan struct{}, 1),
	}
}

// OnRefresh registers a hook that runs after each successful refresh.
func (s *Session) OnRefresh(fn func(context.Context, Snapshot)) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Snapshot returns the last known state without touching the network.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.snap
	snap.Live = s.live.Load()
	return snap
}

func (s *Session) Live() bool {
	return s.live.Load()
}

// RequestRefresh schedules a refresh. It never blocks; a request made
// while one is already queued is absorbed by it.
func (s *Session) RequestRefresh() {
	select {
	case s.pending <- struct{}{}:
	default:
	}
}

// Run drives the session until ctx ends.
func (s *Session) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.refreshLoop(gctx) })
	g.Go(func() error { return s.pollLoop(gctx) })
	if s.feed != nil {
		g.Go(func() error { return s.feedLoop(gctx) })
	}

	s.RequestRefresh()
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Session) refreshLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.pending:
			if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				log.Printf("[Terminal] refresh failed: %v", err)
			}
		}
	}
}

// pollLoop refreshes on a timer while the feed is down.
func (s *Session) pollLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !s.live.Load() {
				s.RequestRefresh()
			}
		}
	}
}

func (s *Session) feedLoop(ctx context.Context) error {
	backoff := time.Second
	for {
		connected := time.Now()
		err := s.feed.Listen(ctx, func(realtime.Event) {
			if !s.live.Swap(true) {
				log.Printf("[Terminal] live feed connected")
			}
			s.RequestRefresh()
		})
		if ctx.Err() != nil {
			return nil
		}
		if s.live.Swap(false) {
			log.Printf("[Terminal] live feed lost, polling every %s: %v", s.pollInterval, err)
		}
		// Anything may have changed while disconnected.
		s.RequestRefresh()

		if time.Since(connected) > maxFeedBackoff {
			backoff = time.Second
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxFeedBackoff)
	}
}

// Refresh re-fetches orders, tables and tabs and replaces the snapshot.
func (s *Session) Refresh(ctx context.Context) error {
	var (
		orders []models.Order
		tables []models.Table
		tabs   []models.Tab
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		orders, err = s.api.ListOpenOrders(gctx)
		return err
	})
	g.Go(func() (err error) {
		tables, err = s.api.ListTables(gctx)
		return err
	})
	g.Go(func() (err error) {
		tabs, err = s.api.ListTabs(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	snap := Snapshot{
		Orders:      orders,
		Board:       NewBoard(orders),
		Tables:      tables,
		Tabs:        tabs,
		RefreshedAt: time.Now(),
		Live:        s.live.Load(),
	}
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	s.hooksMu.Lock()
	hooks := append([]func(context.Context, Snapshot){}, s.hooks...)
	s.hooksMu.Unlock()
	for _, fn := range hooks {
		fn(ctx, snap)
	}
	return nil
}

// Move asks the server to take an order to target, using the status in
// the snapshot as the observed one. On a conflict the session refreshes
// and retries once, and only if target is still one legal step away.
func (s *Session) Move(ctx context.Context, orderID uuid.UUID, target models.OrderStatus) (*models.Order, error) {
	order, ok := s.Snapshot().Board.Find(orderID)
	if !ok {
		return nil, fmt.Errorf("order %s is not on the board", orderID)
	}

	updated, err := s.move(ctx, order, target)
	if !errors.Is(err, ErrConflict) {
		if err == nil {
			s.RequestRefresh()
		}
		return updated, err
	}

	if rerr := s.Refresh(ctx); rerr != nil {
		return nil, err
	}
	current, ok := s.Snapshot().Board.Find(orderID)
	if !ok || !models.CanTransition(current.Status, target) {
		return nil, err
	}
	updated, err = s.move(ctx, current, target)
	s.RequestRefresh()
	return updated, err
}

func (s *Session) move(ctx context.Context, order models.Order, target models.OrderStatus) (*models.Order, error) {
	switch {
	case target == models.StatusCancelled:
		return s.api.Cancel(ctx, order.ID, order.Status)
	case target == models.StatusDelivered && order.Status == models.StatusReady:
		return s.api.Finalize(ctx, order.ID, order.Status)
	case order.Status.Next() == target:
		return s.api.Advance(ctx, order.RestaurantID, order.ID, order.Status)
	}
	return nil, fmt.Errorf("cannot move order from %s to %s", order.Status, target)
}
