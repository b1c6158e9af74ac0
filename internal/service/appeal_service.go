package service

import (
	"context"
	"errors"
	"fmt"

	"newsdesk/internal/models"
	"newsdesk/internal/repository"
	"newsdesk/internal/sideeffects"

	"gorm.io/gorm"
)

const maxAppealReasonLen = 2000

// AppealService lets authors contest rejected comments and admins resolve
// those appeals. An accepted appeal re-approves the comment through the same
// transaction and side effects as a direct approval.
type AppealService struct {
	appealRepo  repository.AppealRepository
	commentRepo repository.CommentRepository
	moderation  *ModerationService
	notifier    Notifier
	dispatcher  Dispatcher
	authorize   Authorizer
}

// NewAppealService creates a new AppealService
func NewAppealService(
	appealRepo repository.AppealRepository,
	commentRepo repository.CommentRepository,
	moderation *ModerationService,
	notifier Notifier,
	dispatcher Dispatcher,
	authorize Authorizer,
) *AppealService {
	return &AppealService{
		appealRepo:  appealRepo,
		commentRepo: commentRepo,
		moderation:  moderation,
		notifier:    notifier,
		dispatcher:  dispatcher,
		authorize:   authorize,
	}
}

// Submit files an appeal against a rejected comment. Author only; one appeal
// per (comment, user), and a resolved appeal is terminal.
func (s *AppealService) Submit(ctx context.Context, commentID, userID uint, reason string) (*models.Appeal, error) {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Comment", commentID)
		}
		return nil, err
	}

	if comment.UserID != userID {
		return nil, models.NewUnauthorizedError("Only the comment author can appeal")
	}
	if comment.Status != models.CommentStatusRejected {
		return nil, models.NewConflictError("Only rejected comments can be appealed")
	}
	// The reason is optional; an empty one reads as "no reason specified".
	if len(reason) > maxAppealReasonLen {
		return nil, models.NewValidationError("Appeal reason too long (max 2000 characters)")
	}

	appeal := &models.Appeal{
		CommentID: commentID,
		UserID:    userID,
		Reason:    reason,
	}
	if err := s.appealRepo.Create(ctx, appeal); err != nil {
		if errors.Is(err, repository.ErrDuplicateAppeal) {
			return nil, models.NewConflictError("You have already appealed this comment")
		}
		return nil, err
	}

	// Admins see the stored classifier verdict next to the appeal.
	appealID := appeal.ID
	s.dispatcher.Enqueue(sideeffects.Task{Kind: "notify_admins", Run: func(ctx context.Context) error {
		return s.notifier.NotifyAdmins(ctx, Notice{
			SenderID: &userID,
			Type:     "appeal_submitted",
			Title:    "New comment appeal",
			Message:  "A rejected comment has been appealed.",
			Link:     fmt.Sprintf("/admin/moderation/appeals/%d", appealID),
			Data: map[string]any{
				"appeal_id":     appealID,
				"comment_id":    commentID,
				"ai_category":   comment.AICategory,
				"ai_risk_score": comment.AIRiskScore,
				"ai_confidence": comment.AIConfidence,
			},
		})
	}})

	return appeal, nil
}

// Get returns the author's appeal for a comment.
func (s *AppealService) Get(ctx context.Context, commentID, userID uint) (*models.Appeal, error) {
	appeal, err := s.appealRepo.GetByCommentAndUser(ctx, commentID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Appeal for comment", commentID)
		}
		return nil, err
	}
	return appeal, nil
}

// ListPending returns the admin review queue, oldest first.
func (s *AppealService) ListPending(ctx context.Context, adminID uint, page, limit int) ([]*models.Appeal, int64, error) {
	if err := s.checkModerator(ctx, adminID); err != nil {
		return nil, 0, err
	}
	return s.appealRepo.ListPending(ctx, page, limit)
}

// Accept resolves the appeal in the appellant's favor and re-approves the
// comment. The appeal CAS guarantees the approval path runs at most once per
// appeal; the comment CAS guards it globally.
func (s *AppealService) Accept(ctx context.Context, appealID, adminID uint, notes string) (*models.Appeal, error) {
	if err := s.checkModerator(ctx, adminID); err != nil {
		return nil, err
	}

	appeal, err := s.getAppeal(ctx, appealID)
	if err != nil {
		return nil, err
	}

	ok, err := s.appealRepo.Resolve(ctx, appealID, models.AppealStatusAccepted, adminID, notes)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewConflictError("Appeal is already resolved")
	}

	if _, err := s.moderation.Approve(ctx, appeal.CommentID, adminID, fmt.Sprintf("appeal %d accepted", appealID)); err != nil {
		var appErr *models.AppError
		if !errors.As(err, &appErr) || appErr.Code != "CONFLICT" {
			return nil, err
		}
		// Already approved: the side effects fired with that approval.
	}

	appellant := appeal.UserID
	commentID := appeal.CommentID
	s.dispatcher.Enqueue(sideeffects.Task{Kind: "notify_author", Run: func(ctx context.Context) error {
		return s.notifier.NotifyUser(ctx, appellant, Notice{
			Type:    "appeal_accepted",
			Title:   "Appeal accepted",
			Message: "Your appeal was accepted and your comment has been restored.",
			Data:    map[string]any{"appeal_id": appealID, "comment_id": commentID},
		})
	}})

	return s.getAppeal(ctx, appealID)
}

// Reject resolves the appeal against the appellant. The comment stays
// rejected; only the appellant is notified.
func (s *AppealService) Reject(ctx context.Context, appealID, adminID uint, notes string) (*models.Appeal, error) {
	if err := s.checkModerator(ctx, adminID); err != nil {
		return nil, err
	}

	appeal, err := s.getAppeal(ctx, appealID)
	if err != nil {
		return nil, err
	}

	ok, err := s.appealRepo.Resolve(ctx, appealID, models.AppealStatusRejected, adminID, notes)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewConflictError("Appeal is already resolved")
	}

	appellant := appeal.UserID
	commentID := appeal.CommentID
	s.dispatcher.Enqueue(sideeffects.Task{Kind: "notify_author", Run: func(ctx context.Context) error {
		return s.notifier.NotifyUser(ctx, appellant, Notice{
			Type:    "appeal_rejected",
			Title:   "Appeal denied",
			Message: "Your appeal was reviewed and the original decision stands.",
			Data:    map[string]any{"appeal_id": appealID, "comment_id": commentID},
		})
	}})

	return s.getAppeal(ctx, appealID)
}

func (s *AppealService) checkModerator(ctx context.Context, adminID uint) error {
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

func (s *AppealService) getAppeal(ctx context.Context, id uint) (*models.Appeal, error) {
	appeal, err := s.appealRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Appeal", id)
		}
		return nil, err
	}
	return appeal, nil
}
