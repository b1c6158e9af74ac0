package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"newsdesk/internal/classifier"
	"newsdesk/internal/featureflags"
	"newsdesk/internal/middleware"
	"newsdesk/internal/models"
	"newsdesk/internal/observability"
	"newsdesk/internal/repository"
	"newsdesk/internal/sideeffects"
	"newsdesk/internal/validation"

	"gorm.io/gorm"
)

const (
	maxCommentLen = 2000

	// EditWindow is how long an author may edit a comment after posting.
	// Edits re-run moderation.
	EditWindow = 30 * time.Minute
)

// CommentService handles the reader-facing comment lifecycle: submission with
// automatic moderation, listing, the edit window, deletion, and third-party
// reports.
type CommentService struct {
	commentRepo repository.CommentRepository
	articleRepo repository.ArticleRepository
	userRepo    repository.UserRepository
	reportRepo  repository.ReportRepository
	classifier  classifier.Client
	notifier    Notifier
	dispatcher  Dispatcher
	loyalty     *LoyaltyService
	flags       *featureflags.Manager
}

// SubmitCommentInput carries a new comment submission.
type SubmitCommentInput struct {
	ArticleID uint
	UserID    uint
	ParentID  *uint
	Content   string
}

// EditCommentInput carries an author edit.
type EditCommentInput struct {
	CommentID uint
	UserID    uint
	Content   string
}

// ReportCommentInput carries a third-party flag.
type ReportCommentInput struct {
	CommentID   uint
	UserID      uint
	Reason      string
	Description string
}

// NewCommentService creates a new CommentService
func NewCommentService(
	commentRepo repository.CommentRepository,
	articleRepo repository.ArticleRepository,
	userRepo repository.UserRepository,
	reportRepo repository.ReportRepository,
	clf classifier.Client,
	notifier Notifier,
	dispatcher Dispatcher,
	loyalty *LoyaltyService,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		articleRepo: articleRepo,
		userRepo:    userRepo,
		reportRepo:  reportRepo,
		classifier:  clf,
		notifier:    notifier,
		dispatcher:  dispatcher,
		loyalty:     loyalty,
	}
}

// SetFlags attaches a feature-flag manager. A nil manager evaluates every
// flag as disabled.
func (s *CommentService) SetFlags(flags *featureflags.Manager) {
	s.flags = flags
}

// Submit validates and persists a comment, classifies it, and routes it per
// the classifier's suggestion. Classifier failures are fail-safe: the comment
// lands in the review queue, never auto-approved.
func (s *CommentService) Submit(ctx context.Context, in SubmitCommentInput) (*models.Comment, error) {
	if in.Content == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if len(in.Content) > maxCommentLen {
		return nil, models.NewValidationError(fmt.Sprintf("Comment too long (max %d characters)", maxCommentLen))
	}

	article, err := s.articleRepo.GetByID(ctx, in.ArticleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Article", in.ArticleID)
		}
		return nil, err
	}

	author, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", in.UserID)
		}
		return nil, err
	}
	if author.IsBanned {
		return nil, models.NewUnauthorizedError("Banned users cannot comment")
	}

	var parent *models.Comment
	if in.ParentID != nil {
		parent, err = s.commentRepo.GetByID(ctx, *in.ParentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, models.NewNotFoundError("Parent comment", *in.ParentID)
			}
			return nil, err
		}
		if parent.ArticleID != in.ArticleID {
			return nil, models.NewValidationError("Parent comment belongs to a different article")
		}
		if parent.Status != models.CommentStatusApproved {
			return nil, models.NewValidationError("Cannot reply to an unpublished comment")
		}
	}

	comment := &models.Comment{
		ArticleID: in.ArticleID,
		UserID:    in.UserID,
		ParentID:  in.ParentID,
		Content:   in.Content,
		Status:    models.CommentStatusPending,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	s.moderate(ctx, comment, article, parent, false)

	return s.commentRepo.GetByID(ctx, comment.ID)
}

// moderate classifies the comment and applies the suggested transition plus
// its side effects. isEdit suppresses the duplicate reply notification when
// an edited comment is re-approved.
func (s *CommentService) moderate(ctx context.Context, comment *models.Comment, article *models.Article, parent *models.Comment, isEdit bool) {
	result, err := s.classifier.Classify(ctx, comment.Content)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "classification failed, comment held for review",
			slog.Uint64("comment_id", uint64(comment.ID)),
			slog.String("error", err.Error()),
		)
		result = classifier.FallbackResult()
	}

	if err := s.commentRepo.UpdateAIReview(ctx, comment.ID, repository.AIReview{
		Category:   result.Category,
		RiskScore:  result.RiskScore,
		Confidence: result.Confidence,
		Reasons:    result.Reasons,
	}); err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to stamp classifier verdict",
			slog.Uint64("comment_id", uint64(comment.ID)),
			slog.String("error", err.Error()),
		)
	}
	comment.AICategory = result.Category
	comment.AIRiskScore = result.RiskScore
	comment.AIConfidence = result.Confidence

	// Staged-rollout kill switch: hold auto-approvals for flagged users.
	if result.SuggestedStatus == models.CommentStatusApproved &&
		s.flags.Enabled("manual_review_only", comment.UserID) {
		result.SuggestedStatus = models.CommentStatusPending
	}

	switch result.SuggestedStatus {
	case models.CommentStatusApproved:
		ok, err := s.commentRepo.ApproveTx(ctx, comment, repository.Review{Notes: "auto-approved"}, nil)
		if err != nil {
			middleware.Logger.ErrorContext(ctx, "auto-approval failed",
				slog.Uint64("comment_id", uint64(comment.ID)),
				slog.String("error", err.Error()),
			)
			return
		}
		if ok {
			observability.RecordDecision(string(models.CommentStatusApproved), "ai")
			s.enqueueAutoApprovalEffects(comment, article, parent, isEdit)
		}

	case models.CommentStatusRejected:
		ok, err := s.commentRepo.RejectTx(ctx, comment, repository.Review{
			Notes: fmt.Sprintf("auto-rejected: %s", result.Category),
		}, nil)
		if err != nil {
			middleware.Logger.ErrorContext(ctx, "auto-rejection failed",
				slog.Uint64("comment_id", uint64(comment.ID)),
				slog.String("error", err.Error()),
			)
			return
		}
		if ok {
			observability.RecordDecision(string(models.CommentStatusRejected), "ai")
			s.enqueueAutoRejectionEffects(comment)
		}

	default: // pending review
		if comment.Status != models.CommentStatusPending {
			// An edited comment goes back to the queue until re-reviewed.
			if _, err := s.commentRepo.Transition(ctx, comment.ID, models.CommentStatusPending, repository.Review{}); err != nil {
				middleware.Logger.ErrorContext(ctx, "failed to requeue comment for review",
					slog.Uint64("comment_id", uint64(comment.ID)),
					slog.String("error", err.Error()),
				)
			}
		}
		observability.RecordDecision(string(models.CommentStatusPending), "ai")
		s.enqueuePendingEffects(comment, result)
	}
}

func (s *CommentService) enqueueAutoApprovalEffects(comment *models.Comment, article *models.Article, parent *models.Comment, isEdit bool) {
	authorID := comment.UserID

	s.dispatcher.Enqueue(sideeffects.Task{Kind: "loyalty_award", Run: func(ctx context.Context) error {
		return s.loyalty.AwardCommentPoints(ctx, comment)
	}})

	if article != nil && article.AuthorID != authorID && !isEdit {
		articleAuthor := article.AuthorID
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

	if parent != nil && parent.UserID != authorID && !isEdit {
		parentAuthor := parent.UserID
		s.dispatcher.Enqueue(sideeffects.Task{Kind: "notify_parent_author", Run: func(ctx context.Context) error {
			return s.notifier.NotifyUser(ctx, parentAuthor, Notice{
				SenderID: &authorID,
				Type:     "comment_reply",
				Title:    "New reply to your comment",
				Message:  "Someone replied to your comment.",
				Link:     fmt.Sprintf("/articles/%d", comment.ArticleID),
				Data:     map[string]any{"comment_id": comment.ID, "parent_id": parent.ID},
			})
		}})
	}
}

func (s *CommentService) enqueuePendingEffects(comment *models.Comment, result *classifier.Result) {
	authorID := comment.UserID
	commentID := comment.ID

	s.dispatcher.Enqueue(sideeffects.Task{Kind: "notify_admins", Run: func(ctx context.Context) error {
		return s.notifier.NotifyAdmins(ctx, Notice{
			SenderID: &authorID,
			Type:     "comment_pending",
			Title:    "Comment awaiting review",
			Message:  "A new comment needs human review.",
			Link:     "/admin/moderation/comments",
			Data: map[string]any{
				"comment_id":    commentID,
				"ai_category":   result.Category,
				"ai_risk_score": result.RiskScore,
				"ai_confidence": result.Confidence,
			},
		})
	}})

	s.dispatcher.Enqueue(sideeffects.Task{Kind: "notify_author", Run: func(ctx context.Context) error {
		return s.notifier.NotifyUser(ctx, authorID, Notice{
			Type:    "comment_under_review",
			Title:   "Comment under review",
			Message: "Your comment is being reviewed and will appear once approved.",
			Data:    map[string]any{"comment_id": commentID},
		})
	}})
}

func (s *CommentService) enqueueAutoRejectionEffects(comment *models.Comment) {
	authorID := comment.UserID
	commentID := comment.ID

	s.dispatcher.Enqueue(sideeffects.Task{Kind: "notify_author", Run: func(ctx context.Context) error {
		return s.notifier.NotifyUser(ctx, authorID, Notice{
			Type:    "comment_rejected",
			Title:   "Comment not approved",
			Message: "Your comment was not approved. You may appeal this decision.",
			Link:    fmt.Sprintf("/comments/%d/appeal", commentID),
			Data:    map[string]any{"comment_id": commentID, "can_appeal": true},
		})
	}})
}

// ListApproved returns the public comment page for an article.
func (s *CommentService) ListApproved(ctx context.Context, articleID uint, page, limit int) ([]*models.Comment, int64, error) {
	if _, err := s.articleRepo.GetByID(ctx, articleID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, models.NewNotFoundError("Article", articleID)
		}
		return nil, 0, err
	}
	return s.commentRepo.ListApprovedByArticle(ctx, articleID, page, limit)
}

// Get returns a single comment.
func (s *CommentService) Get(ctx context.Context, id uint) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Comment", id)
		}
		return nil, err
	}
	return comment, nil
}

// Edit lets the author rewrite a comment within the edit window. The edited
// text goes through moderation again.
func (s *CommentService) Edit(ctx context.Context, in EditCommentInput) (*models.Comment, error) {
	comment, err := s.Get(ctx, in.CommentID)
	if err != nil {
		return nil, err
	}

	if comment.UserID != in.UserID {
		return nil, models.NewUnauthorizedError("You can only edit your own comments")
	}
	if comment.Status == models.CommentStatusArchived {
		return nil, models.NewConflictError("Archived comments cannot be edited")
	}
	if time.Since(comment.CreatedAt) > EditWindow {
		return nil, models.NewValidationError("Edit window has expired")
	}
	if in.Content == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if len(in.Content) > maxCommentLen {
		return nil, models.NewValidationError(fmt.Sprintf("Comment too long (max %d characters)", maxCommentLen))
	}

	now := time.Now()
	comment.Content = in.Content
	comment.IsEdited = true
	comment.EditedAt = &now
	if err := s.commentRepo.Update(ctx, comment); err != nil {
		return nil, err
	}

	var parent *models.Comment
	if comment.ParentID != nil {
		if p, err := s.commentRepo.GetByID(ctx, *comment.ParentID); err == nil {
			parent = p
		}
	}
	s.moderate(ctx, comment, nil, parent, true)

	return s.commentRepo.GetByID(ctx, comment.ID)
}

// Delete removes the author's comment. When approved replies exist the
// comment is archived with redacted content to keep the thread intact;
// otherwise it is deleted outright. Admins may delete any comment.
func (s *CommentService) Delete(ctx context.Context, commentID, userID uint) error {
	comment, err := s.Get(ctx, commentID)
	if err != nil {
		return err
	}

	if comment.UserID != userID {
		user, err := s.userRepo.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if !user.IsAdmin {
			return models.NewUnauthorizedError("You can only delete your own comments")
		}
	}

	children, err := s.commentRepo.CountApprovedChildren(ctx, commentID)
	if err != nil {
		return err
	}
	if children > 0 {
		return s.commentRepo.Archive(ctx, commentID)
	}
	return s.commentRepo.Delete(ctx, commentID)
}

// Report files a third-party flag against a comment. Reports are a separate
// track: they alert admins and bump the counter but never transition the
// comment.
func (s *CommentService) Report(ctx context.Context, in ReportCommentInput) (*models.Report, error) {
	comment, err := s.Get(ctx, in.CommentID)
	if err != nil {
		return nil, err
	}

	if err := validation.ValidateReportReason(in.Reason); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateReportDescription(in.Description); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if comment.UserID == in.UserID {
		return nil, models.NewValidationError("You cannot report your own comment")
	}

	reported, err := s.reportRepo.HasReported(ctx, in.CommentID, in.UserID)
	if err != nil {
		return nil, err
	}
	if reported {
		return nil, models.NewConflictError("You have already reported this comment")
	}

	report := &models.Report{
		CommentID:   in.CommentID,
		UserID:      in.UserID,
		Reason:      validation.NormalizeReportReason(in.Reason),
		Description: in.Description,
	}
	if err := s.reportRepo.File(ctx, report); err != nil {
		return nil, err
	}

	reporterID := in.UserID
	s.dispatcher.Enqueue(sideeffects.Task{Kind: "notify_admins", Run: func(ctx context.Context) error {
		return s.notifier.NotifyAdmins(ctx, Notice{
			SenderID: &reporterID,
			Type:     "comment_reported",
			Title:    "Comment reported",
			Message:  fmt.Sprintf("A comment was reported for %s.", report.Reason),
			Link:     "/admin/moderation/comments",
			Data:     map[string]any{"comment_id": in.CommentID, "report_id": report.ID, "reason": report.Reason},
		})
	}})

	return report, nil
}
