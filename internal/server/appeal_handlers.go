package server

import (
	"newsdesk/internal/models"

	"github.com/gofiber/fiber/v2"
)

type submitAppealRequest struct {
	Reason string `json:"reason"`
}

type resolveAppealRequest struct {
	AdminNotes string `json:"admin_notes"`
	// Notes is a legacy alias for admin_notes kept for older clients.
	Notes   string `json:"notes"`
	AdminID uint   `json:"admin_id"`
}

func (r resolveAppealRequest) notes() string {
	if r.AdminNotes != "" {
		return r.AdminNotes
	}
	return r.Notes
}

// SubmitAppeal files an appeal against the caller's rejected comment.
func (s *Server) SubmitAppeal(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req submitAppealRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	appeal, err := s.appealService.Submit(c.Context(), commentID, currentUserID(c), req.Reason)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(appeal)
}

// GetAppeal returns the caller's appeal for a comment.
func (s *Server) GetAppeal(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	appeal, err := s.appealService.Get(c.Context(), commentID, currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(appeal)
}

// GetPendingAppeals returns the admin appeal queue, oldest first.
func (s *Server) GetPendingAppeals(c *fiber.Ctx) error {
	p := parsePagination(c, 20)

	appeals, total, err := s.appealService.ListPending(c.Context(), currentUserID(c), p.Page, p.Limit)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(fiber.Map{
		"appeals": appeals,
		"total":   total,
		"page":    p.Page,
		"limit":   p.Limit,
	})
}

// AcceptAppeal resolves an appeal in the appellant's favor and restores the
// comment.
func (s *Server) AcceptAppeal(c *fiber.Ctx) error {
	appealID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req resolveAppealRequest
	_ = c.BodyParser(&req)
	if err := checkBodyActor(c, req.AdminID); err != nil {
		return models.RespondWithAppError(c, err)
	}

	appeal, err := s.appealService.Accept(c.Context(), appealID, currentUserID(c), req.notes())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(fiber.Map{
		"appeal":  appeal,
		"message": "Appeal accepted and comment restored",
	})
}

// RejectAppeal resolves an appeal against the appellant. The comment stays
// rejected.
func (s *Server) RejectAppeal(c *fiber.Ctx) error {
	appealID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req resolveAppealRequest
	_ = c.BodyParser(&req)
	if err := checkBodyActor(c, req.AdminID); err != nil {
		return models.RespondWithAppError(c, err)
	}

	appeal, err := s.appealService.Reject(c.Context(), appealID, currentUserID(c), req.notes())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(fiber.Map{
		"appeal":  appeal,
		"message": "Appeal rejected",
	})
}
