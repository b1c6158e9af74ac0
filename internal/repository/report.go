package repository

import (
	"context"

	"newsdesk/internal/models"
	"newsdesk/internal/observability"

	"gorm.io/gorm"
)

// ReportRepository defines third-party report persistence operations.
type ReportRepository interface {
	// File inserts the report and bumps the comment's report counter in one
	// transaction. Reports never transition the comment itself.
	File(ctx context.Context, report *models.Report) error
	HasReported(ctx context.Context, commentID, userID uint) (bool, error)
}

type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository creates a new ReportRepository
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) File(ctx context.Context, report *models.Report) error {
	defer observability.TrackQuery("file", "reports")()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(report).Error; err != nil {
			return err
		}
		return tx.Model(&models.Comment{}).Where("id = ?", report.CommentID).
			Update("report_count", gorm.Expr("report_count + 1")).Error
	})
}

func (r *reportRepository) HasReported(ctx context.Context, commentID, userID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Report{}).
		Where("comment_id = ? AND user_id = ?", commentID, userID).
		Count(&n).Error
	return n > 0, err
}
