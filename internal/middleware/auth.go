package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/comanda/internal/utils"
)

const identityContextKey = "terminalIdentity"

// AuthMiddleware validates terminal tokens and loads the terminal identity
// into context. Every protected route is scoped to the token's restaurant.
func AuthMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header")
		}

		identity, err := utils.ParseTerminalToken(secret, parts[1])
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		c.Locals(identityContextKey, identity)
		return c.Next()
	}
}

// GetIdentity extracts the authenticated terminal from context.
func GetIdentity(c *fiber.Ctx) (utils.TerminalIdentity, bool) {
	identity, ok := c.Locals(identityContextKey).(utils.TerminalIdentity)
	return identity, ok
}

// RestaurantID is the restaurant the current request is scoped to.
func RestaurantID(c *fiber.Ctx) (uuid.UUID, bool) {
	identity, ok := GetIdentity(c)
	if !ok || identity.RestaurantID == uuid.Nil {
		return uuid.Nil, false
	}
	return identity.RestaurantID, true
}
