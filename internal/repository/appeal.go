package repository

import (
	"context"
	"errors"
	"time"

	"newsdesk/internal/models"
	"newsdesk/internal/observability"

	"gorm.io/gorm"
)

// ErrDuplicateAppeal is returned when an appeal already exists for the
// (comment, user) pair. A rejected appeal is terminal, so any prior appeal
// blocks a new one.
var ErrDuplicateAppeal = errors.New("appeal already exists for this comment")

// AppealRepository defines appeal persistence operations.
type AppealRepository interface {
	// Create inserts the appeal after re-checking, inside the transaction,
	// that no appeal already exists for the (comment, user) pair. Returns
	// ErrDuplicateAppeal on conflict.
	Create(ctx context.Context, appeal *models.Appeal) error
	GetByID(ctx context.Context, id uint) (*models.Appeal, error)
	GetByCommentAndUser(ctx context.Context, commentID, userID uint) (*models.Appeal, error)

	// Resolve is a compare-and-transition from pending to a terminal status.
	// Returns false when the appeal was no longer pending.
	Resolve(ctx context.Context, id uint, to models.AppealStatus, reviewerID uint, notes string) (bool, error)

	ListPending(ctx context.Context, page, limit int) ([]*models.Appeal, int64, error)
}

type appealRepository struct {
	db *gorm.DB
}

// NewAppealRepository creates a new AppealRepository
func NewAppealRepository(db *gorm.DB) AppealRepository {
	return &appealRepository{db: db}
}

func (r *appealRepository) Create(ctx context.Context, appeal *models.Appeal) error {
	defer observability.TrackQuery("create", "appeals")()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		err := tx.Model(&models.Appeal{}).
			Where("comment_id = ? AND user_id = ?", appeal.CommentID, appeal.UserID).
			Count(&n).Error
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrDuplicateAppeal
		}
		return tx.Create(appeal).Error
	})
}

func (r *appealRepository) GetByID(ctx context.Context, id uint) (*models.Appeal, error) {
	var appeal models.Appeal
	if err := r.db.WithContext(ctx).Preload("Comment").Preload("User").First(&appeal, id).Error; err != nil {
		return nil, err
	}
	return &appeal, nil
}

func (r *appealRepository) GetByCommentAndUser(ctx context.Context, commentID, userID uint) (*models.Appeal, error) {
	var appeal models.Appeal
	err := r.db.WithContext(ctx).
		Where("comment_id = ? AND user_id = ?", commentID, userID).
		Order("created_at desc").
		First(&appeal).Error
	if err != nil {
		return nil, err
	}
	return &appeal, nil
}

func (r *appealRepository) Resolve(ctx context.Context, id uint, to models.AppealStatus, reviewerID uint, notes string) (bool, error) {
	defer observability.TrackQuery("resolve", "appeals")()

	now := time.Now()
	res := r.db.WithContext(ctx).Model(&models.Appeal{}).
		Where("id = ? AND status = ?", id, models.AppealStatusPending).
		Updates(map[string]any{
			"status":         to,
			"reviewed_by_id": reviewerID,
			"reviewed_at":    &now,
			"admin_notes":    notes,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *appealRepository) ListPending(ctx context.Context, page, limit int) ([]*models.Appeal, int64, error) {
	defer observability.TrackQuery("list_pending", "appeals")()

	q := r.db.WithContext(ctx).Model(&models.Appeal{}).
		Where("status = ?", models.AppealStatusPending)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit = normalizePage(page, limit)
	var appeals []*models.Appeal
	err := q.Preload("Comment").Preload("User").
		Order("created_at asc").
		Offset((page - 1) * limit).Limit(limit).
		Find(&appeals).Error
	return appeals, total, err
}
