package server

import (
	"veristat/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetUserStats handles GET /api/users/:id/stats. Always succeeds for a
// well-formed ID; a user with no activity gets zero-valued counters.
func (s *Server) GetUserStats(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Params("id")
	if userID == "" {
		return models.RespondWithAppError(c, models.NewValidationError("Invalid user ID"))
	}

	stats, err := s.engagement.GetUserStats(ctx, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(stats)
}
