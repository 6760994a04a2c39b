package server

import (
	"veristat/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ReconcileUser handles POST /api/admin/reconcile/:userId
func (s *Server) ReconcileUser(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Params("userId")
	if userID == "" {
		return models.RespondWithAppError(c, models.NewValidationError("Invalid user ID"))
	}

	stats, err := s.reconciler.Recalculate(ctx, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(stats)
}

// ReconcileAll handles POST /api/admin/reconcile
func (s *Server) ReconcileAll(c *fiber.Ctx) error {
	ctx := c.UserContext()

	processed, err := s.reconciler.RecalculateAll(ctx)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(fiber.Map{"processed": processed})
}

// DrainPendingScans handles POST /api/admin/reconcile/drain
func (s *Server) DrainPendingScans(c *fiber.Ctx) error {
	ctx := c.UserContext()

	replayed, err := s.reconciler.DrainPendingScans(ctx)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(fiber.Map{"replayed": replayed})
}
