// middleware/auth.go
package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware extracts the user identity forwarded by the
// Gateway. Session issuance and verification live in the account service;
// this core only consumes the resulting headers.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-ID")
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID — request must come through gateway with auth context",
			})
		}

		c.Locals("user_id", userID)
		c.Locals("username", c.Get("X-User-Name"))
		return c.Next()
	}
}

// OptionalUserContextMiddleware attaches the user identity when present but
// lets anonymous reads through.
func OptionalUserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if userID := c.Get("X-User-ID"); userID != "" {
			c.Locals("user_id", userID)
			c.Locals("username", c.Get("X-User-Name"))
		}
		return c.Next()
	}
}
