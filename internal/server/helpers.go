package server

import (
	"github.com/gofiber/fiber/v2"

	"veristat/internal/middleware"
	"veristat/internal/models"
)

// requesterID returns the opaque identity string set by the identity
// middleware.
func requesterID(c *fiber.Ctx) string {
	id, _ := c.Locals("userID").(string)
	return id
}

// AdminRequired restricts the group to requesters carrying the privileged
// role from the identity provider.
func (s *Server) AdminRequired(c *fiber.Ctx) error {
	if !middleware.IsPrivileged(c) {
		return models.RespondWithAppError(c,
			models.NewForbiddenError("Privileged role required"))
	}
	return c.Next()
}

// paramUint parses a numeric path parameter.
func paramUint(c *fiber.Ctx, name string) (uint, error) {
	v, err := c.ParamsInt(name)
	if err != nil || v < 0 {
		return 0, models.NewValidationError("Invalid " + name)
	}
	return uint(v), nil
}
