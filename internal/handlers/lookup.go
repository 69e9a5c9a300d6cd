package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/example/comanda/internal/services"
)

// LookupHandler serves the checkout helpers: delivery fee and postal code.
type LookupHandler struct {
	orders *services.OrderService
	postal services.PostalLookup
}

func NewLookupHandler(orders *services.OrderService, postal services.PostalLookup) *LookupHandler {
	return &LookupHandler{orders: orders, postal: postal}
}

// DeliveryFee resolves ?neighborhood= against the restaurant's fee table.
// An unknown neighborhood is not an error; the fee is deferred.
func (h *LookupHandler) DeliveryFee(c *fiber.Ctx) error {
	rid, err := restaurantID(c)
	if err != nil {
		return err
	}
	resolution := h.orders.ResolveDeliveryFee(c.UserContext(), rid, c.Query("neighborhood"))
	return c.JSON(fiber.Map{"success": true, "data": resolution})
}

func (h *LookupHandler) PostalCode(c *fiber.Ctx) error {
	if h.postal == nil {
		return fiber.NewError(fiber.StatusNotFound, "postal lookup is not configured")
	}

	address, err := h.postal.Lookup(c.UserContext(), c.Params("cep"))
	switch {
	case errors.Is(err, services.ErrInvalidPostalCode):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrPostalNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case err != nil:
		log.Printf("[Postal] lookup %s failed: %v", c.Params("cep"), err)
		return fiber.NewError(fiber.StatusBadGateway, "postal lookup unavailable, fill in the address manually")
	}
	return c.JSON(fiber.Map{"success": true, "data": address})
}
