// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"time"

	"newsdesk/internal/models"
	"newsdesk/internal/observability"

	"gorm.io/gorm"
)

// Review carries the reviewer metadata written during a transition. A zero
// ReviewerID marks an automatic (classifier-driven) transition.
type Review struct {
	ReviewerID uint
	Notes      string
	ReviewedAt time.Time
}

// AIReview carries the classifier verdict stamped onto a comment. Status is
// not part of it: status moves only through Transition / the decision
// transactions.
type AIReview struct {
	Category   string
	RiskScore  float64
	Confidence float64
	Reasons    []string
}

// ModerationFilter selects and orders comments for the moderation queue.
type ModerationFilter struct {
	Status   models.CommentStatus // empty = all
	Query    string               // substring match on content
	Category string               // ai_category filter
	Sort     string               // newest | oldest | risk_score | confidence
	Page     int
	Limit    int
}

// CommentRepository defines comment persistence operations.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	Update(ctx context.Context, comment *models.Comment) error
	UpdateAIReview(ctx context.Context, id uint, review AIReview) error

	// Transition is a compare-and-transition: a single UPDATE whose guard
	// excludes the target status and the terminal archived status. Returns
	// false when the guard rejected the write (lost race or archived).
	Transition(ctx context.Context, id uint, to models.CommentStatus, review Review) (bool, error)

	// ApproveTx runs the approval transaction: the guarded transition, the
	// article/parent counter increments, and the decision row, all in one
	// database transaction. Returns false without error when the comment
	// was already approved.
	ApproveTx(ctx context.Context, comment *models.Comment, review Review, decision *models.ModerationDecision) (bool, error)

	// RejectTx runs the rejection transaction: guarded transition plus
	// decision row. No counters move on rejection.
	RejectTx(ctx context.Context, comment *models.Comment, review Review, decision *models.ModerationDecision) (bool, error)

	ListModeration(ctx context.Context, f ModerationFilter) ([]*models.Comment, int64, error)
	ListApprovedByArticle(ctx context.Context, articleID uint, page, limit int) ([]*models.Comment, int64, error)
	StatusCounts(ctx context.Context) (map[models.CommentStatus]int64, error)
	CategoryDistribution(ctx context.Context, since time.Time) (map[string]int64, error)
	CountApprovedChildren(ctx context.Context, parentID uint) (int64, error)

	// Archive redacts the comment body and moves it to the archived state.
	Archive(ctx context.Context, id uint) error
	Delete(ctx context.Context, id uint) error
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	defer observability.TrackQuery("create", "comments")()
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).Preload("User").Preload("Article").First(&comment, id).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *commentRepository) Update(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Save(comment).Error
}

func (r *commentRepository) UpdateAIReview(ctx context.Context, id uint, review AIReview) error {
	now := time.Now()
	// Struct update so the JSON serializer applies to ai_reasons.
	return r.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).
		Select("ai_category", "ai_risk_score", "ai_confidence", "ai_reasons", "ai_processed", "ai_processed_at").
		Updates(&models.Comment{
			AICategory:    review.Category,
			AIRiskScore:   review.RiskScore,
			AIConfidence:  review.Confidence,
			AIReasons:     review.Reasons,
			AIProcessed:   true,
			AIProcessedAt: &now,
		}).Error
}

// transition performs the guarded status UPDATE on the given handle (which
// may be inside a transaction).
func transition(db *gorm.DB, id uint, to models.CommentStatus, review Review) (bool, error) {
	reviewedAt := review.ReviewedAt
	if reviewedAt.IsZero() {
		reviewedAt = time.Now()
	}
	var reviewerID any
	if review.ReviewerID != 0 {
		reviewerID = review.ReviewerID
	}
	// The guard excludes the target (lost-race detection) and the archived
	// state, which is terminal and must never be flipped back.
	res := db.Model(&models.Comment{}).
		Where("id = ? AND status NOT IN (?, ?)", id, to, models.CommentStatusArchived).
		Updates(map[string]any{
			"status":         to,
			"reviewed_by_id": reviewerID,
			"reviewed_at":    &reviewedAt,
			"review_notes":   review.Notes,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *commentRepository) Transition(ctx context.Context, id uint, to models.CommentStatus, review Review) (bool, error) {
	defer observability.TrackQuery("transition", "comments")()
	return transition(r.db.WithContext(ctx), id, to, review)
}

func (r *commentRepository) ApproveTx(ctx context.Context, comment *models.Comment, review Review, decision *models.ModerationDecision) (bool, error) {
	defer observability.TrackQuery("approve_tx", "comments")()

	transitioned := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := transition(tx, comment.ID, models.CommentStatusApproved, review)
		if err != nil {
			return err
		}
		if !ok {
			// Already approved; roll nothing forward.
			return nil
		}
		transitioned = true

		now := time.Now()
		if err := tx.Model(&models.Article{}).Where("id = ?", comment.ArticleID).
			Updates(map[string]any{
				"comment_count":    gorm.Expr("comment_count + 1"),
				"last_activity_at": &now,
			}).Error; err != nil {
			return err
		}

		if comment.ParentID != nil {
			if err := tx.Model(&models.Comment{}).Where("id = ?", *comment.ParentID).
				Update("reply_count", gorm.Expr("reply_count + 1")).Error; err != nil {
				return err
			}
		}

		if decision != nil {
			if err := tx.Create(decision).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return transitioned, err
}

func (r *commentRepository) RejectTx(ctx context.Context, comment *models.Comment, review Review, decision *models.ModerationDecision) (bool, error) {
	defer observability.TrackQuery("reject_tx", "comments")()

	transitioned := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := transition(tx, comment.ID, models.CommentStatusRejected, review)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		transitioned = true

		if decision != nil {
			if err := tx.Create(decision).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return transitioned, err
}

func (r *commentRepository) ListModeration(ctx context.Context, f ModerationFilter) ([]*models.Comment, int64, error) {
	defer observability.TrackQuery("list_moderation", "comments")()

	q := r.db.WithContext(ctx).Model(&models.Comment{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Query != "" {
		q = q.Where("content LIKE ?", "%"+f.Query+"%")
	}
	if f.Category != "" {
		q = q.Where("ai_category = ?", f.Category)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	switch f.Sort {
	case "oldest":
		q = q.Order("created_at asc")
	case "risk_score":
		q = q.Order("ai_risk_score desc")
	case "confidence":
		q = q.Order("ai_confidence desc")
	default: // newest
		q = q.Order("created_at desc")
	}

	page, limit := normalizePage(f.Page, f.Limit)
	var comments []*models.Comment
	err := q.Preload("User").Preload("Article").
		Offset((page - 1) * limit).Limit(limit).
		Find(&comments).Error
	return comments, total, err
}

func (r *commentRepository) ListApprovedByArticle(ctx context.Context, articleID uint, page, limit int) ([]*models.Comment, int64, error) {
	defer observability.TrackQuery("list_approved", "comments")()

	q := r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("article_id = ? AND status = ?", articleID, models.CommentStatusApproved)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit = normalizePage(page, limit)
	var comments []*models.Comment
	err := q.Preload("User").Order("created_at desc").
		Offset((page - 1) * limit).Limit(limit).
		Find(&comments).Error
	return comments, total, err
}

func (r *commentRepository) StatusCounts(ctx context.Context) (map[models.CommentStatus]int64, error) {
	type row struct {
		Status models.CommentStatus
		N      int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Select("status, count(*) as n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[models.CommentStatus]int64, len(rows))
	for _, rw := range rows {
		counts[rw.Status] = rw.N
	}
	return counts, nil
}

func (r *commentRepository) CategoryDistribution(ctx context.Context, since time.Time) (map[string]int64, error) {
	type row struct {
		Category string
		N        int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Select("ai_category as category, count(*) as n").
		Where("created_at >= ? AND ai_category <> ''", since).
		Group("ai_category").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	dist := make(map[string]int64, len(rows))
	for _, rw := range rows {
		dist[rw.Category] = rw.N
	}
	return dist, nil
}

func (r *commentRepository) CountApprovedChildren(ctx context.Context, parentID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("parent_id = ? AND status = ?", parentID, models.CommentStatusApproved).
		Count(&n).Error
	return n, err
}

func (r *commentRepository) Archive(ctx context.Context, id uint) error {
	defer observability.TrackQuery("archive", "comments")()
	return r.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).
		Updates(map[string]any{
			"status":  models.CommentStatusArchived,
			"content": models.ArchivedContent,
		}).Error
}

func (r *commentRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Comment{}, id).Error
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
