package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/example/comanda/internal/services"
)

// ErrorHandler turns service errors into the JSON envelope terminals
// expect. Conflicts carry the order's current status so the terminal can
// refresh its board without another round trip.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var (
		fe       *fiber.Error
		conflict *services.ConflictError
		verr     *services.ValidationError
	)

	switch {
	case errors.As(err, &fe):
		return c.Status(fe.Code).JSON(fiber.Map{"success": false, "error": fe.Message})
	case errors.As(err, &conflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success":        false,
			"error":          "order changed on another terminal, refresh and retry",
			"current_status": conflict.Current,
		})
	case errors.As(err, &verr):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"success": false,
			"error":   verr.Error(),
			"fields":  verr.Fields,
		})
	case errors.Is(err, services.ErrInvalidTransition):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": err.Error()})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": err.Error()})
	case errors.Is(err, services.ErrStoreClosed):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"success": false, "error": "the restaurant is not taking orders right now"})
	case errors.Is(err, services.ErrBelowMinimum):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"success": false, "error": err.Error()})
	case errors.Is(err, services.ErrAllocation):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success": false,
			"error":   "could not assign an order number, nothing was saved; try again",
		})
	}

	log.Printf("[HTTP] %s %s: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "internal server error"})
}
