package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"newsdesk/internal/classifier"
	"newsdesk/internal/models"
	"newsdesk/internal/observability"
	"newsdesk/internal/repository"
	"newsdesk/internal/sideeffects"

	"gorm.io/gorm"
)

// ModerationService implements the admin decision path: approve or reject a
// comment, atomically with its counters and training row, then fan out side
// effects after commit.
type ModerationService struct {
	commentRepo repository.CommentRepository
	notifier    Notifier
	dispatcher  Dispatcher
	loyalty     *LoyaltyService
	trainer     classifier.TrainingReporter
	authorize   Authorizer
}

// QueueInput selects and pages the moderation queue.
type QueueInput struct {
	AdminID  uint
	Status   models.CommentStatus
	Query    string
	Category string
	Sort     string
	Page     int
	Limit    int
}

// QueueResult is one page of the moderation queue plus its aggregate stats.
type QueueResult struct {
	Comments []*models.Comment              `json:"comments"`
	Total    int64                          `json:"total"`
	Page     int                            `json:"page"`
	Limit    int                            `json:"limit"`
	Stats    map[models.CommentStatus]int64 `json:"stats"`
}

// Stats aggregates moderation activity for the admin dashboard.
type Stats struct {
	StatusCounts         map[models.CommentStatus]int64 `json:"status_counts"`
	CategoryDistribution map[string]int64               `json:"category_distribution"`
	Since                time.Time                      `json:"since"`
}

// NewModerationService creates a new ModerationService
func NewModerationService(
	commentRepo repository.CommentRepository,
	notifier Notifier,
	dispatcher Dispatcher,
	loyalty *LoyaltyService,
	trainer classifier.TrainingReporter,
	authorize Authorizer,
) *ModerationService {
	return &ModerationService{
		commentRepo: commentRepo,
		notifier:    notifier,
		dispatcher:  dispatcher,
		loyalty:     loyalty,
		trainer:     trainer,
		authorize:   authorize,
	}
}

func (s *ModerationService) checkModerator(ctx context.Context, adminID uint) error {
	if s.authorize == nil {
		return models.NewUnauthorizedError("Moderator capability required")
	}
	ok, err := s.authorize(ctx, adminID)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewUnauthorizedError("Moderator capability required")
	}
	return nil
}

func (s *ModerationService) getComment(ctx context.Context, id uint) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Comment", id)
		}
		return nil, err
	}
	return comment, nil
}

// decisionFor builds the training row for a human decision. The comment's
// status before the transition stands in for the classifier's prediction
// when no human has touched it yet.
func decisionFor(comment *models.Comment, human models.CommentStatus, adminID uint) *models.ModerationDecision {
	feedback := models.FeedbackCorrection
	if comment.Status == human {
		feedback = models.FeedbackConfirmation
	}
	return &models.ModerationDecision{
		CommentID:     comment.ID,
		Content:       comment.Content,
		AIPrediction:  comment.Status,
		AICategory:    comment.AICategory,
		AIConfidence:  comment.AIConfidence,
		HumanDecision: human,
		FeedbackType:  feedback,
		AdminID:       adminID,
	}
}

// Approve moves the comment to approved. Conflict when it already is. Side
// effects (loyalty, notifications, training report) run after commit and
// only when this call won the transition.
func (s *ModerationService) Approve(ctx context.Context, commentID, adminID uint, notes string) (*models.Comment, error) {
	if err := s.checkModerator(ctx, adminID); err != nil {
		return nil, err
	}

	comment, err := s.getComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.Status == models.CommentStatusApproved {
		return nil, models.NewConflictError("Comment is already approved")
	}
	if comment.Status == models.CommentStatusArchived {
		return nil, models.NewConflictError("Archived comments cannot be moderated")
	}

	decision := decisionFor(comment, models.CommentStatusApproved, adminID)
	ok, err := s.commentRepo.ApproveTx(ctx, comment, repository.Review{ReviewerID: adminID, Notes: notes}, decision)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the race against a concurrent approval.
		return nil, models.NewConflictError("Comment is already approved")
	}

	observability.RecordDecision(string(models.CommentStatusApproved), "admin")
	s.enqueueApprovalEffects(comment, decision)

	return s.getComment(ctx, commentID)
}

// Reject moves the comment to rejected. The author is told they can appeal.
func (s *ModerationService) Reject(ctx context.Context, commentID, adminID uint, notes string) (*models.Comment, error) {
	if err := s.checkModerator(ctx, adminID); err != nil {
		return nil, err
	}

	comment, err := s.getComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.Status == models.CommentStatusRejected {
		return nil, models.NewConflictError("Comment is already rejected")
	}
	if comment.Status == models.CommentStatusArchived {
		return nil, models.NewConflictError("Archived comments cannot be moderated")
	}

	decision := decisionFor(comment, models.CommentStatusRejected, adminID)
	ok, err := s.commentRepo.RejectTx(ctx, comment, repository.Review{ReviewerID: adminID, Notes: notes}, decision)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewConflictError("Comment is already rejected")
	}

	observability.RecordDecision(string(models.CommentStatusRejected), "admin")
	s.enqueueRejectionEffects(comment, decision)

	return s.getComment(ctx, commentID)
}

// enqueueApprovalEffects schedules the post-commit work for one won approval:
// loyalty points for the author, a notice to the author, a notice to the
// article author when distinct, and the training report.
func (s *ModerationService) enqueueApprovalEffects(comment *models.Comment, decision *models.ModerationDecision) {
	authorID := comment.UserID

	s.dispatcher.Enqueue(sideeffects.Task{Kind: "loyalty_award", Run: func(ctx context.Context) error {
		return s.loyalty.AwardCommentPoints(ctx, comment)
	}})

	s.dispatcher.Enqueue(sideeffects.Task{Kind: "notify_author", Run: func(ctx context.Context) error {
		return s.notifier.NotifyUser(ctx, authorID, Notice{
			Type:    "comment_approved",
			Title:   "Comment approved",
			Message: "Your comment has been approved and is now visible.",
			Link:    fmt.Sprintf("/articles/%d", comment.ArticleID),
			Data:    map[string]any{"comment_id": comment.ID, "article_id": comment.ArticleID},
		})
	}})

	if comment.Article != nil && comment.Article.AuthorID != authorID {
		articleAuthor := comment.Article.AuthorID
		s.dispatcher.Enqueue(sideeffects.Task{Kind: "notify_article_author", Run: func(ctx context.Context) error {
			return s.notifier.NotifyUser(ctx, articleAuthor, Notice{
				SenderID: &authorID,
				Type:     "new_comment",
				Title:    "New comment on your article",
				Message:  "A new comment was published on your article.",
				Link:     fmt.Sprintf("/articles/%d", comment.ArticleID),
				Data:     map[string]any{"comment_id": comment.ID, "article_id": comment.ArticleID},
			})
		}})
	}

	s.enqueueTrainingReport(decision)
}

func (s *ModerationService) enqueueRejectionEffects(comment *models.Comment, decision *models.ModerationDecision) {
	authorID := comment.UserID

	s.dispatcher.Enqueue(sideeffects.Task{Kind: "notify_author", Run: func(ctx context.Context) error {
		return s.notifier.NotifyUser(ctx, authorID, Notice{
			Type:    "comment_rejected",
			Title:   "Comment not approved",
			Message: "Your comment was not approved. You may appeal this decision.",
			Link:    fmt.Sprintf("/comments/%d/appeal", comment.ID),
			Data:    map[string]any{"comment_id": comment.ID, "can_appeal": true},
		})
	}})

	s.enqueueTrainingReport(decision)
}

func (s *ModerationService) enqueueTrainingReport(decision *models.ModerationDecision) {
	if s.trainer == nil || decision == nil {
		return
	}
	s.dispatcher.Enqueue(sideeffects.Task{Kind: "training_report", Run: func(ctx context.Context) error {
		return s.trainer.Report(ctx, decision)
	}})
}

// ListQueue returns one page of the moderation queue with status counts.
// Admin only.
func (s *ModerationService) ListQueue(ctx context.Context, in QueueInput) (*QueueResult, error) {
	if err := s.checkModerator(ctx, in.AdminID); err != nil {
		return nil, err
	}
	if in.Status != "" && !models.ValidStatus(in.Status) {
		return nil, models.NewValidationError("Invalid status filter")
	}

	status := in.Status
	if status == "" {
		status = models.CommentStatusPending
	}

	comments, total, err := s.commentRepo.ListModeration(ctx, repository.ModerationFilter{
		Status:   status,
		Query:    in.Query,
		Category: in.Category,
		Sort:     in.Sort,
		Page:     in.Page,
		Limit:    in.Limit,
	})
	if err != nil {
		return nil, err
	}

	stats, err := s.commentRepo.StatusCounts(ctx)
	if err != nil {
		return nil, err
	}

	page := in.Page
	if page < 1 {
		page = 1
	}
	limit := in.Limit
	if limit < 1 || limit > 100 {
		limit = 20
	}

	return &QueueResult{
		Comments: comments,
		Total:    total,
		Page:     page,
		Limit:    limit,
		Stats:    stats,
	}, nil
}

// GetStats returns aggregate counts plus the 7-day category distribution.
func (s *ModerationService) GetStats(ctx context.Context, adminID uint) (*Stats, error) {
	if err := s.checkModerator(ctx, adminID); err != nil {
		return nil, err
	}

	counts, err := s.commentRepo.StatusCounts(ctx)
	if err != nil {
		return nil, err
	}

	since := time.Now().Add(-7 * 24 * time.Hour)
	dist, err := s.commentRepo.CategoryDistribution(ctx, since)
	if err != nil {
		return nil, err
	}

	return &Stats{
		StatusCounts:         counts,
		CategoryDistribution: dist,
		Since:                since,
	}, nil
}
