package server

import (
	"veristat/internal/middleware"
	"veristat/internal/models"
	"veristat/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreatePost handles POST /api/posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req struct {
		Content  string `json:"content"`
		ImageRef string `json:"image_ref,omitempty"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithAppError(c,
			models.NewValidationError("Invalid request body"))
	}

	post, err := s.engagement.CreatePost(ctx, service.CreatePostInput{
		AuthorID: requesterID(c),
		Content:  req.Content,
		ImageRef: req.ImageRef,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetPosts handles GET /api/posts
func (s *Server) GetPosts(c *fiber.Ctx) error {
	ctx := c.UserContext()
	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)

	posts, err := s.engagement.ListPosts(ctx, limit, offset)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	ctx := c.UserContext()
	id, err := paramUint(c, "id")
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	post, err := s.engagement.GetPost(ctx, id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(post)
}

// GetUserPosts handles GET /api/users/:id/posts
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	ctx := c.UserContext()
	authorID := c.Params("id")
	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)

	posts, err := s.engagement.ListPostsByAuthor(ctx, authorID, limit, offset)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(posts)
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	ctx := c.UserContext()
	postID, err := paramUint(c, "id")
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	if err := s.engagement.DeletePost(ctx, service.DeletePostInput{
		PostID:      postID,
		RequesterID: requesterID(c),
		Privileged:  middleware.IsPrivileged(c),
	}); err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ToggleLike handles POST /api/posts/:id/like. The endpoint toggles
// membership: liking when absent, unliking when present. A client retrying
// the same request may pass X-Request-Token (UUID) to have the original
// outcome replayed instead of toggling twice.
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	ctx := c.UserContext()
	postID, err := paramUint(c, "id")
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	result, err := s.engagement.ToggleLike(ctx, service.ToggleLikeInput{
		PostID:       postID,
		UserID:       requesterID(c),
		RequestToken: c.Get("X-Request-Token"),
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(result)
}
