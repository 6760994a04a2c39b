package server

import (
	"veristat/internal/models"
	"veristat/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SubmitScan handles POST /api/scans. The response is always a success
// acknowledgement once validation passes; "recorded": false means the
// tracking write was deferred to reconciliation, not that the analysis
// failed.
func (s *Server) SubmitScan(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req struct {
		Result    string `json:"result"`
		MediaKind string `json:"media_kind"`
		RiskScore int    `json:"risk_score"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithAppError(c, models.NewValidationError("Invalid request body"))
	}

	ack, err := s.engagement.SubmitScan(ctx, service.SubmitScanInput{
		UserID:    requesterID(c),
		Result:    req.Result,
		MediaKind: req.MediaKind,
		RiskScore: req.RiskScore,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	status := fiber.StatusCreated
	if !ack.Recorded {
		status = fiber.StatusAccepted
	}
	return c.Status(status).JSON(ack)
}

// GetMyScans handles GET /api/scans
func (s *Server) GetMyScans(c *fiber.Ctx) error {
	ctx := c.UserContext()
	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)

	scans, err := s.engagement.ListScans(ctx, requesterID(c), limit, offset)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(scans)
}
