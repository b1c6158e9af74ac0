package server

import (
	"newsdesk/internal/models"
	"newsdesk/internal/service"

	"github.com/gofiber/fiber/v2"
)

type moderationDecisionRequest struct {
	Notes string `json:"notes"`
	// AdminID is accepted for compatibility with older clients that sent the
	// actor in the body. When present it must match the authenticated user.
	AdminID uint `json:"admin_id"`
}

func checkBodyActor(c *fiber.Ctx, bodyID uint) error {
	if bodyID != 0 && bodyID != currentUserID(c) {
		return models.NewValidationError("admin_id does not match the authenticated user")
	}
	return nil
}

// GetModerationQueue returns one page of the review queue plus status counts.
func (s *Server) GetModerationQueue(c *fiber.Ctx) error {
	p := parsePagination(c, 20)

	result, err := s.moderationService.ListQueue(c.Context(), service.QueueInput{
		AdminID:  currentUserID(c),
		Status:   models.CommentStatus(c.Query("status")),
		Query:    c.Query("q"),
		Category: c.Query("category"),
		Sort:     c.Query("sort"),
		Page:     p.Page,
		Limit:    p.Limit,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(result)
}

// ApproveComment publishes a comment. 409 when it is already approved or the
// transition was lost to a concurrent moderator.
func (s *Server) ApproveComment(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req moderationDecisionRequest
	_ = c.BodyParser(&req) // notes are optional
	if err := checkBodyActor(c, req.AdminID); err != nil {
		return models.RespondWithAppError(c, err)
	}

	comment, err := s.moderationService.Approve(c.Context(), commentID, currentUserID(c), req.Notes)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(comment)
}

// RejectComment rejects a comment. The author is notified they may appeal.
func (s *Server) RejectComment(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req moderationDecisionRequest
	_ = c.BodyParser(&req)
	if err := checkBodyActor(c, req.AdminID); err != nil {
		return models.RespondWithAppError(c, err)
	}

	comment, err := s.moderationService.Reject(c.Context(), commentID, currentUserID(c), req.Notes)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(comment)
}

// GetModerationStats returns status counts and the recent category
// distribution for the admin dashboard.
func (s *Server) GetModerationStats(c *fiber.Ctx) error {
	stats, err := s.moderationService.GetStats(c.Context(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(stats)
}
