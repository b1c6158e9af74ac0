package server

import (
	"newsdesk/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetNotifications returns the caller's notifications, newest first.
// ?unread=true filters to unread.
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	p := parsePagination(c, 20)
	unreadOnly := c.QueryBool("unread", false)

	list, total, err := s.notificationService.List(c.Context(), currentUserID(c), unreadOnly, p.Page, p.Limit)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(fiber.Map{
		"notifications": list,
		"total":         total,
		"page":          p.Page,
		"limit":         p.Limit,
	})
}

// MarkNotificationRead marks one of the caller's notifications read.
func (s *Server) MarkNotificationRead(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.notificationService.MarkRead(c.Context(), id, currentUserID(c)); err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Notification marked as read"})
}

// DeleteNotification removes one of the caller's notifications.
func (s *Server) DeleteNotification(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.notificationService.Delete(c.Context(), id, currentUserID(c)); err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Notification deleted"})
}
