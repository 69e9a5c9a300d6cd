package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/example/comanda/internal/broker"
	"github.com/example/comanda/internal/config"
	"github.com/example/comanda/internal/database"
	"github.com/example/comanda/internal/handlers"
	"github.com/example/comanda/internal/models"
	"github.com/example/comanda/internal/realtime"
	"github.com/example/comanda/internal/routes"
	"github.com/example/comanda/internal/services"
	"github.com/example/comanda/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		db        *gorm.DB
		dataStore store.Store
	)
	switch cfg.StoreDriver {
	case "memory":
		log.Printf("[Server] using in-memory store, data is lost on restart")
		dataStore = store.NewMemoryStore()
	default:
		conn, err := database.Connect(cfg.DatabaseURL, cfg.DatabaseDebug)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		db = conn
		dataStore = store.NewGormStore(conn)
	}

	var rmq *broker.RabbitMQ
	if cfg.RealtimeBackend == "rabbitmq" {
		conn, err := broker.Connect(cfg.RabbitMQURL)
		if err != nil {
			log.Fatalf("rabbitmq: %v", err)
		}
		rmq = conn
		defer rmq.Close()
	}

	bus, err := newBus(cfg, db, rmq)
	if err != nil {
		log.Fatalf("realtime: %v", err)
	}
	defer bus.Close()

	orders := services.NewOrderService(services.OrderDeps{
		Store:    dataStore,
		Bus:      bus,
		Handoff:  newHandoff(cfg, rmq),
		Policies: cfg,
	})

	app := fiber.New(fiber.Config{
		AppName:      "Comanda",
		ErrorHandler: handlers.ErrorHandler,
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	routes.Register(app, cfg, orders, services.NewViaCEP(cfg.PostalBaseURL))

	hub := realtime.NewHub(bus, cfg.JWTSecret)
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	feed := &http.Server{
		Addr:              ":" + cfg.RealtimePort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("Starting API on :%s", cfg.AppPort)
		return app.Listen(":" + cfg.AppPort)
	})

	g.Go(func() error {
		log.Printf("Starting change feed on :%s/ws (%s backend)", cfg.RealtimePort, cfg.RealtimeBackend)
		if err := feed.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.AutoAccept {
		for restaurantID, accepter := range acceptersFor(orders, cfg.Restaurants) {
			g.Go(func() error {
				runAutoAccept(gctx, bus, orders, accepter, restaurantID)
				return nil
			})
		}
		if len(cfg.Restaurants) == 0 {
			log.Printf("[AutoAccept] enabled but CONFIG_FILE lists no restaurants, nothing to watch")
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Printf("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := feed.Shutdown(shutdownCtx); err != nil {
			log.Printf("feed shutdown: %v", err)
		}
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("server error: %v", err)
	}
}

func newBus(cfg *config.Config, db *gorm.DB, rmq *broker.RabbitMQ) (realtime.Bus, error) {
	switch cfg.RealtimeBackend {
	case "postgres":
		if db == nil {
			return nil, errors.New("REALTIME_BACKEND=postgres needs STORE_DRIVER=postgres")
		}
		return realtime.NewPostgresBus(cfg.DatabaseURL, db)
	case "rabbitmq":
		return realtime.NewAMQPBus(rmq)
	default:
		return realtime.NewMemoryBus(), nil
	}
}

func newHandoff(cfg *config.Config, rmq *broker.RabbitMQ) services.Handoff {
	switch {
	case cfg.HandoffWebhook != "":
		return services.NewWebhookHandoff(cfg.HandoffWebhook)
	case rmq != nil:
		return services.NewBrokerHandoff(rmq, broker.HandoffExchange, broker.HandoffQueue)
	default:
		return services.LogHandoff{}
	}
}

// acceptersFor builds one accepter per restaurant. Run prunes an
// accepter's memo to the snapshot it is given, so accepters are never
// shared between restaurants.
func acceptersFor(advancer services.Advancer, restaurants map[uuid.UUID]config.RestaurantPolicy) map[uuid.UUID]*services.AutoAccepter {
	accepters := make(map[uuid.UUID]*services.AutoAccepter, len(restaurants))
	for restaurantID := range restaurants {
		accepters[restaurantID] = services.NewAutoAccepter(advancer, true)
	}
	return accepters
}

// runAutoAccept accepts pending orders of one restaurant whenever its
// orders change, and on a slow timer in case a notification was missed.
func runAutoAccept(ctx context.Context, bus realtime.Bus, orders *services.OrderService, accepter *services.AutoAccepter, restaurantID uuid.UUID) {
	events, cancel := bus.Subscribe(restaurantID)
	defer cancel()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	scan := func() {
		pending, err := orders.ListOrdersByStatus(ctx, restaurantID, []models.OrderStatus{models.StatusPending})
		if err != nil {
			log.Printf("[AutoAccept] list pending for %s: %v", restaurantID, err)
			return
		}
		accepter.Run(ctx, pending)
	}

	log.Printf("[AutoAccept] watching restaurant %s", restaurantID)
	scan()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if event.Collection == realtime.CollectionOrders || event.Op == realtime.OpResync {
				scan()
			}
		case <-ticker.C:
			scan()
		}
	}
}
