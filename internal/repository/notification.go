package repository

import (
	"context"
	"time"

	"newsdesk/internal/models"
	"newsdesk/internal/observability"

	"gorm.io/gorm"
)

// NotificationRepository defines notification persistence operations.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID uint, unreadOnly bool, page, limit int) ([]*models.Notification, int64, error)

	// MarkRead marks the notification read if it belongs to userID.
	// Returns false when no such row exists.
	MarkRead(ctx context.Context, id, userID uint) (bool, error)
	Delete(ctx context.Context, id, userID uint) (bool, error)

	// DeleteExpired removes rows whose expires_at has passed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// AdminIDs returns the IDs of all admin users, for admin fan-out.
	AdminIDs(ctx context.Context) ([]uint, error)
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	defer observability.TrackQuery("create", "notifications")()
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uint, unreadOnly bool, page, limit int) ([]*models.Notification, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("read = ?", false)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit = normalizePage(page, limit)
	var list []*models.Notification
	err := q.Order("created_at desc").
		Offset((page - 1) * limit).Limit(limit).
		Find(&list).Error
	return list, total, err
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, userID uint) (bool, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{"read": true, "read_at": &now})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *notificationRepository) Delete(ctx context.Context, id, userID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Notification{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *notificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	defer observability.TrackQuery("delete_expired", "notifications")()
	res := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}

func (r *notificationRepository) AdminIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("is_admin = ?", true).
		Pluck("id", &ids).Error
	return ids, err
}
