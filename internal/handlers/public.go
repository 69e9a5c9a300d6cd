package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/comanda/internal/models"
)

// PublicOrder is the digital menu entry point. The restaurant comes from
// the path and the order is always a digital menu order, so the
// closed-store and minimum-order rules apply and the handoff payload is
// returned.
func (h *OrderHandler) PublicOrder(c *fiber.Ctx) error {
	rid, err := uuid.Parse(c.Params("restaurant"))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "restaurant not found")
	}
	return h.create(c, rid, models.TypeDigitalMenu)
}
