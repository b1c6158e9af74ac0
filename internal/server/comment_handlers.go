package server

import (
	"newsdesk/internal/models"
	"newsdesk/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createCommentRequest struct {
	Content  string `json:"content"`
	ParentID *uint  `json:"parent_id"`
}

type updateCommentRequest struct {
	Content string `json:"content"`
}

type reportCommentRequest struct {
	Reason      string `json:"reason"`
	Description string `json:"description"`
}

// GetArticleComments returns the approved comments for an article, paginated.
// Public.
func (s *Server) GetArticleComments(c *fiber.Ctx) error {
	articleID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	p := parsePagination(c, 20)
	comments, total, err := s.commentService.ListApproved(c.Context(), articleID, p.Page, p.Limit)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(fiber.Map{
		"comments": comments,
		"total":    total,
		"page":     p.Page,
		"limit":    p.Limit,
	})
}

// CreateComment submits a comment on an article. The response carries the
// comment in whatever state automatic moderation left it.
func (s *Server) CreateComment(c *fiber.Ctx) error {
	articleID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req createCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	comment, err := s.commentService.Submit(c.Context(), service.SubmitCommentInput{
		ArticleID: articleID,
		UserID:    currentUserID(c),
		ParentID:  req.ParentID,
		Content:   req.Content,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(comment)
}

// UpdateComment lets the author rewrite a comment inside the edit window.
// The edited text is re-moderated.
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req updateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	comment, err := s.commentService.Edit(c.Context(), service.EditCommentInput{
		CommentID: commentID,
		UserID:    currentUserID(c),
		Content:   req.Content,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(comment)
}

// DeleteComment removes the author's comment, archiving instead when approved
// replies hang off it.
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.commentService.Delete(c.Context(), commentID, currentUserID(c)); err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Comment deleted"})
}

// ReportComment files a third-party flag. The comment's visibility is not
// affected.
func (s *Server) ReportComment(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req reportCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	report, err := s.commentService.Report(c.Context(), service.ReportCommentInput{
		CommentID:   commentID,
		UserID:      currentUserID(c),
		Reason:      req.Reason,
		Description: req.Description,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(report)
}
