package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/comanda/internal/models"
	"github.com/example/comanda/internal/services"
)

// SeatingHandler exposes tables and tabs. Seat status is derived from
// open orders, so there is no endpoint that sets it directly.
type SeatingHandler struct {
	orders    *services.OrderService
	occupancy *services.Occupancy
}

func NewSeatingHandler(orders *services.OrderService) *SeatingHandler {
	return &SeatingHandler{orders: orders, occupancy: orders.Occupancy()}
}

func (h *SeatingHandler) ListTables(c *fiber.Ctx) error {
	rid, err := restaurantID(c)
	if err != nil {
		return err
	}
	tables, err := h.orders.ListTables(c.UserContext(), rid)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": tables})
}

func (h *SeatingHandler) ListTabs(c *fiber.Ctx) error {
	rid, err := restaurantID(c)
	if err != nil {
		return err
	}
	tabs, err := h.orders.ListTabs(c.UserContext(), rid)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": tabs})
}

func seatRef(c *fiber.Ctx, kind models.SeatKind) (models.SeatRef, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return models.SeatRef{}, err
	}
	return models.SeatRef{Kind: kind, ID: id}, nil
}

// RequestClose marks a seat as waiting for the bill.
func (h *SeatingHandler) RequestClose(kind models.SeatKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid, err := restaurantID(c)
		if err != nil {
			return err
		}
		ref, err := seatRef(c, kind)
		if err != nil {
			return err
		}
		if err := h.occupancy.RequestClose(c.UserContext(), rid, ref); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"id": ref.ID, "status": models.SeatClosing}})
	}
}

// Reconcile recomputes one seat's status from its open orders.
func (h *SeatingHandler) Reconcile(kind models.SeatKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid, err := restaurantID(c)
		if err != nil {
			return err
		}
		ref, err := seatRef(c, kind)
		if err != nil {
			return err
		}
		changed, err := h.occupancy.Reconcile(c.UserContext(), rid, ref)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"id": ref.ID, "changed": changed}})
	}
}

// ReconcileAll recomputes every table and tab of the restaurant.
func (h *SeatingHandler) ReconcileAll(c *fiber.Ctx) error {
	rid, err := restaurantID(c)
	if err != nil {
		return err
	}
	report, err := h.occupancy.ReconcileRestaurant(c.UserContext(), rid)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": report})
}
