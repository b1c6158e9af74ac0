package service

import (
	"context"

	"newsdesk/internal/models"
	"newsdesk/internal/repository"
)

// NotificationService exposes the recipient-facing notification operations.
type NotificationService struct {
	notificationRepo repository.NotificationRepository
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(notificationRepo repository.NotificationRepository) *NotificationService {
	return &NotificationService{notificationRepo: notificationRepo}
}

// List returns the recipient's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID uint, unreadOnly bool, page, limit int) ([]*models.Notification, int64, error) {
	return s.notificationRepo.ListByUser(ctx, userID, unreadOnly, page, limit)
}

// MarkRead marks the recipient's notification read.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID uint) error {
	ok, err := s.notificationRepo.MarkRead(ctx, id, userID)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewNotFoundError("Notification", id)
	}
	return nil
}

// Delete removes the recipient's notification.
func (s *NotificationService) Delete(ctx context.Context, id, userID uint) error {
	ok, err := s.notificationRepo.Delete(ctx, id, userID)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewNotFoundError("Notification", id)
	}
	return nil
}
