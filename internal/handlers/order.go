package handlers

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/comanda/internal/middleware"
	"github.com/example/comanda/internal/models"
	"github.com/example/comanda/internal/services"
	"github.com/example/comanda/internal/store"
	"github.com/example/comanda/internal/utils"
)

// OrderHandler manages cart quotes, order creation and status changes.
type OrderHandler struct {
	orders *services.OrderService
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(orders *services.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

func restaurantID(c *fiber.Ctx) (uuid.UUID, error) {
	id, ok := middleware.RestaurantID(c)
	if !ok {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	return id, nil
}

func paramID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// Quote prices a cart without saving anything.
func (h *OrderHandler) Quote(c *fiber.Ctx) error {
	rid, err := restaurantID(c)
	if err != nil {
		return err
	}

	var req services.QuoteRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	quote, err := h.orders.Quote(c.UserContext(), rid, req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": quote})
}

// CreateOrder places an order from a staff terminal.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	rid, err := restaurantID(c)
	if err != nil {
		return err
	}
	return h.create(c, rid, "")
}

// create places an order. A non-empty forced type overrides whatever the
// client sent.
func (h *OrderHandler) create(c *fiber.Ctx, rid uuid.UUID, forced models.OrderType) error {
	var req services.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if forced != "" {
		req.OrderType = forced
	}

	result, err := h.orders.CreateOrder(c.UserContext(), rid, req)
	var partial *services.PartialCommitError
	if errors.As(err, &partial) {
		// The order exists and holds its number; staff must re-enter the items.
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success":      true,
			"inconsistent": true,
			"warning":      "order saved but its items were not, check the order before preparing it",
			"data":         result,
		})
	}
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": result})
}

// ListOrders supports ?status=a,b, ?open=true and page/limit.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	rid, err := restaurantID(c)
	if err != nil {
		return err
	}

	filter := store.OrderFilter{RestaurantID: rid}
	if c.QueryBool("open") {
		filter.Statuses = models.OpenStatuses
	}
	if raw := c.Query("status"); raw != "" {
		filter.Statuses = nil
		for _, s := range strings.Split(raw, ",") {
			status := models.OrderStatus(strings.TrimSpace(s))
			if !status.Valid() {
				return fiber.NewError(fiber.StatusBadRequest, "unknown status "+string(status))
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}

	pagination := utils.ParsePagination(c)
	filter.Limit = pagination.Limit
	filter.Offset = pagination.Offset

	orders, total, err := h.orders.ListOrders(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": orders, "meta": pagination.Meta(total)})
}

// ListInconsistent returns orders whose items failed to save.
func (h *OrderHandler) ListInconsistent(c *fiber.Ctx) error {
	rid, err := restaurantID(c)
	if err != nil {
		return err
	}
	orders, err := h.orders.ListInconsistent(c.UserContext(), rid)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": orders})
}

func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	rid, err := restaurantID(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	order, err := h.orders.GetOrder(c.UserContext(), rid, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": order})
}

type transitionRequest struct {
	ObservedStatus models.OrderStatus `json:"observed_status" validate:"required,oneof=pending preparing ready delivered cancelled"`
}

type transitionFunc func(c *fiber.Ctx, rid, orderID uuid.UUID, observed models.OrderStatus) (*models.Order, error)

// transition parses the observed status every state change is
// conditioned on and runs fn.
func (h *OrderHandler) transition(fn transitionFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid, err := restaurantID(c)
		if err != nil {
			return err
		}
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}

		var req transitionRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := services.ValidateStruct(&req); err != nil {
			return err
		}

		order, err := fn(c, rid, id, req.ObservedStatus)
		if err != nil {
			if current, ok := services.IsConflict(err); ok {
				identity, _ := middleware.GetIdentity(c)
				log.Printf("[Orders] terminal %s lost a race on order %s (saw %s, now %s)", identity.TerminalID, id, req.ObservedStatus, current)
			}
			return err
		}
		return c.JSON(fiber.Map{"success": true, "data": order})
	}
}

// Advance moves an order one step forward.
func (h *OrderHandler) Advance(c *fiber.Ctx) error {
	return h.transition(func(c *fiber.Ctx, rid, id uuid.UUID, observed models.OrderStatus) (*models.Order, error) {
		return h.orders.Advance(c.UserContext(), rid, id, observed)
	})(c)
}

func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	return h.transition(func(c *fiber.Ctx, rid, id uuid.UUID, observed models.OrderStatus) (*models.Order, error) {
		return h.orders.Cancel(c.UserContext(), rid, id, observed)
	})(c)
}

// Finalize delivers a ready order.
func (h *OrderHandler) Finalize(c *fiber.Ctx) error {
	return h.transition(func(c *fiber.Ctx, rid, id uuid.UUID, observed models.OrderStatus) (*models.Order, error) {
		return h.orders.Finalize(c.UserContext(), rid, id, observed)
	})(c)
}

// FinalizeReady delivers every ready order; per-order failures are
// reported in the result list.
func (h *OrderHandler) FinalizeReady(c *fiber.Ctx) error {
	rid, err := restaurantID(c)
	if err != nil {
		return err
	}
	results, err := h.orders.FinalizeAllReady(c.UserContext(), rid)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": results})
}
