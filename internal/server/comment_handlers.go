package server

import (
	"veristat/internal/middleware"
	"veristat/internal/models"
	"veristat/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateComment creates a comment on a post (protected)
func (s *Server) CreateComment(c *fiber.Ctx) error {
	ctx := c.UserContext()
	postID, err := paramUint(c, "id")
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithAppError(c, models.NewValidationError("Invalid request body"))
	}

	comment, err := s.engagement.CreateComment(ctx, service.CreateCommentInput{
		PostID:   postID,
		AuthorID: requesterID(c),
		Content:  req.Content,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(comment)
}

// GetComments returns all comments for a post (public)
func (s *Server) GetComments(c *fiber.Ctx) error {
	ctx := c.UserContext()
	postID, err := paramUint(c, "id")
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	comments, err := s.engagement.ListComments(ctx, postID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(comments)
}

// DeleteComment deletes a comment (author or privileged)
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	ctx := c.UserContext()
	commentID, err := paramUint(c, "commentId")
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	if err := s.engagement.DeleteComment(ctx, service.DeleteCommentInput{
		CommentID:   commentID,
		RequesterID: requesterID(c),
		Privileged:  middleware.IsPrivileged(c),
	}); err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
