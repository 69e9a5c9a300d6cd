package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/example/comanda/internal/middleware"
	"github.com/example/comanda/internal/services"
)

// AdminHandler exposes restaurant maintenance actions.
type AdminHandler struct {
	sequencer *services.Sequencer
}

func NewAdminHandler(orders *services.OrderService) *AdminHandler {
	return &AdminHandler{sequencer: orders.Sequencer()}
}

// ResetCounter restarts order numbering at 1 for the next order.
func (h *AdminHandler) ResetCounter(c *fiber.Ctx) error {
	rid, err := restaurantID(c)
	if err != nil {
		return err
	}
	if err := h.sequencer.ResetCounter(c.UserContext(), rid); err != nil {
		return err
	}
	identity, _ := middleware.GetIdentity(c)
	log.Printf("[Admin] terminal %s reset the order counter", identity.TerminalID)
	return c.JSON(fiber.Map{"success": true, "message": "order counter reset"})
}
