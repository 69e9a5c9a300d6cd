package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/comanda/internal/config"
	"github.com/example/comanda/internal/handlers"
	"github.com/example/comanda/internal/middleware"
	"github.com/example/comanda/internal/models"
	"github.com/example/comanda/internal/services"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, cfg *config.Config, orders *services.OrderService, postal services.PostalLookup) {
	orderHandler := handlers.NewOrderHandler(orders)
	seatingHandler := handlers.NewSeatingHandler(orders)
	lookupHandler := handlers.NewLookupHandler(orders, postal)
	adminHandler := handlers.NewAdminHandler(orders)

	api := app.Group("/api")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true})
	})

	// Digital menu, restaurant in the path
	public := api.Group("/public")
	public.Post("/:restaurant/orders", orderHandler.PublicOrder)

	// Terminal routes
	protected := api.Group("", middleware.AuthMiddleware(cfg.JWTSecret))

	protected.Post("/cart/quote", orderHandler.Quote)

	orderRoutes := protected.Group("/orders")
	orderRoutes.Post("/", orderHandler.CreateOrder)
	orderRoutes.Get("/", orderHandler.ListOrders)
	orderRoutes.Get("/inconsistent", orderHandler.ListInconsistent)
	orderRoutes.Post("/finalize-ready", orderHandler.FinalizeReady)
	orderRoutes.Get("/:id", orderHandler.GetOrder)
	orderRoutes.Post("/:id/advance", orderHandler.Advance)
	orderRoutes.Post("/:id/cancel", orderHandler.Cancel)
	orderRoutes.Post("/:id/finalize", orderHandler.Finalize)

	tables := protected.Group("/tables")
	tables.Get("/", seatingHandler.ListTables)
	tables.Post("/:id/request-close", seatingHandler.RequestClose(models.KindTable))
	tables.Post("/:id/reconcile", seatingHandler.Reconcile(models.KindTable))

	tabs := protected.Group("/tabs")
	tabs.Get("/", seatingHandler.ListTabs)
	tabs.Post("/:id/request-close", seatingHandler.RequestClose(models.KindTab))
	tabs.Post("/:id/reconcile", seatingHandler.Reconcile(models.KindTab))

	protected.Post("/occupancy/reconcile", seatingHandler.ReconcileAll)

	protected.Get("/delivery-fees/resolve", lookupHandler.DeliveryFee)
	protected.Get("/postal/:cep", lookupHandler.PostalCode)

	protected.Post("/admin/counters/reset", adminHandler.ResetCounter)
}
