package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"newsdesk/internal/classifier"
	"newsdesk/internal/featureflags"
	"newsdesk/internal/models"
	"newsdesk/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newCommentService(
	commentRepo *commentRepoStub,
	clf classifier.Client,
	notifier *recordingNotifier,
	disp *recordingDispatcher,
) (*CommentService, *loyaltyRepoStub) {
	loyaltyRepo := &loyaltyRepoStub{}
	svc := NewCommentService(
		commentRepo,
		noopArticleRepo(),
		noopUserRepo(),
		noopReportRepo(),
		clf,
		notifier,
		disp,
		NewLoyaltyService(loyaltyRepo),
	)
	return svc, loyaltyRepo
}

func suggest(status models.CommentStatus, category string, risk float64) *classifierStub {
	return &classifierStub{result: &classifier.Result{
		Category:        category,
		RiskScore:       risk,
		Confidence:      0.9,
		SuggestedStatus: status,
	}}
}

func TestSubmitValidation(t *testing.T) {
	t.Parallel()
	svc, _ := newCommentService(noopCommentRepo(), suggest(models.CommentStatusApproved, "safe", 0.1), newRecordingNotifier(), &recordingDispatcher{})
	ctx := context.Background()

	t.Run("empty content", func(t *testing.T) {
		t.Parallel()
		_, err := svc.Submit(ctx, SubmitCommentInput{ArticleID: 1, UserID: 1})
		assertAppErrorCode(t, err, "VALIDATION_ERROR")
	})

	t.Run("content too long", func(t *testing.T) {
		t.Parallel()
		_, err := svc.Submit(ctx, SubmitCommentInput{
			ArticleID: 1,
			UserID:    1,
			Content:   strings.Repeat("x", maxCommentLen+1),
		})
		assertAppErrorCode(t, err, "VALIDATION_ERROR")
	})
}

func TestSubmitArticleNotFound(t *testing.T) {
	t.Parallel()
	commentRepo := noopCommentRepo()
	svc := NewCommentService(
		commentRepo,
		&articleRepoStub{getByIDFn: func(_ context.Context, _ uint) (*models.Article, error) {
			return nil, gorm.ErrRecordNotFound
		}},
		noopUserRepo(),
		noopReportRepo(),
		suggest(models.CommentStatusApproved, "safe", 0.1),
		newRecordingNotifier(),
		&recordingDispatcher{},
		NewLoyaltyService(&loyaltyRepoStub{}),
	)

	_, err := svc.Submit(context.Background(), SubmitCommentInput{ArticleID: 404, UserID: 1, Content: "hi"})
	assertAppErrorCode(t, err, "NOT_FOUND")
}

func TestSubmitBannedUser(t *testing.T) {
	t.Parallel()
	svc := NewCommentService(
		noopCommentRepo(),
		noopArticleRepo(),
		&userRepoStub{getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id, IsBanned: true}, nil
		}},
		noopReportRepo(),
		suggest(models.CommentStatusApproved, "safe", 0.1),
		newRecordingNotifier(),
		&recordingDispatcher{},
		NewLoyaltyService(&loyaltyRepoStub{}),
	)

	_, err := svc.Submit(context.Background(), SubmitCommentInput{ArticleID: 1, UserID: 1, Content: "hi"})
	assertAppErrorCode(t, err, "UNAUTHORIZED")
}

func TestSubmitLowRiskAutoApproves(t *testing.T) {
	t.Parallel()
	commentRepo := noopCommentRepo()
	var stamped repository.AIReview
	commentRepo.updateAIFn = func(_ context.Context, _ uint, r repository.AIReview) error {
		stamped = r
		return nil
	}
	approvals := 0
	commentRepo.approveTxFn = func(_ context.Context, _ *models.Comment, r repository.Review, d *models.ModerationDecision) (bool, error) {
		approvals++
		assert.Nil(t, d, "auto-approval writes no training row")
		assert.Zero(t, r.ReviewerID)
		return true, nil
	}
	disp := &recordingDispatcher{run: true}
	svc, loyaltyRepo := newCommentService(commentRepo, suggest(models.CommentStatusApproved, "safe", 0.05), newRecordingNotifier(), disp)

	_, err := svc.Submit(context.Background(), SubmitCommentInput{ArticleID: 1, UserID: 3, Content: "nice piece"})
	require.NoError(t, err)

	assert.Equal(t, 1, approvals)
	assert.Equal(t, "safe", stamped.Category)
	assert.Equal(t, 1, disp.count("loyalty_award"))
	require.Len(t, loyaltyRepo.awards, 1)
	assert.Equal(t, models.PointsComment, loyaltyRepo.awards[0].Points)
}

func TestSubmitAutoApprovalNotifiesArticleAuthor(t *testing.T) {
	t.Parallel()
	notifier := newRecordingNotifier()
	disp := &recordingDispatcher{run: true}
	// noopArticleRepo's article author is user 50, distinct from commenter 3.
	svc, _ := newCommentService(noopCommentRepo(), suggest(models.CommentStatusApproved, "safe", 0.05), notifier, disp)

	_, err := svc.Submit(context.Background(), SubmitCommentInput{ArticleID: 7, UserID: 3, Content: "great reporting"})
	require.NoError(t, err)

	require.Len(t, notifier.users[50], 1)
	notice := notifier.users[50][0]
	assert.Equal(t, "new_comment", notice.Type)
	assert.EqualValues(t, 7, notice.Data["article_id"])
}

func TestSubmitAutoApprovalByArticleAuthorSkipsSelfNotice(t *testing.T) {
	t.Parallel()
	notifier := newRecordingNotifier()
	disp := &recordingDispatcher{run: true}
	svc, _ := newCommentService(noopCommentRepo(), suggest(models.CommentStatusApproved, "safe", 0.05), notifier, disp)

	_, err := svc.Submit(context.Background(), SubmitCommentInput{ArticleID: 7, UserID: 50, Content: "author's own note"})
	require.NoError(t, err)
	assert.Empty(t, notifier.users[50])
}

func TestSubmitManualReviewFlagHoldsAutoApproval(t *testing.T) {
	t.Parallel()
	commentRepo := noopCommentRepo()
	commentRepo.approveTxFn = func(_ context.Context, _ *models.Comment, _ repository.Review, _ *models.ModerationDecision) (bool, error) {
		t.Fatal("auto-approval must not run when manual_review_only is on")
		return false, nil
	}
	svc, _ := newCommentService(commentRepo, suggest(models.CommentStatusApproved, "safe", 0.05), newRecordingNotifier(), &recordingDispatcher{})
	svc.SetFlags(featureflags.NewManager("manual_review_only=on"))

	created, err := svc.Submit(context.Background(), SubmitCommentInput{ArticleID: 1, UserID: 3, Content: "nice piece"})
	require.NoError(t, err)
	assert.Equal(t, models.CommentStatusPending, created.Status)
}

func TestSubmitReplyNotifiesParentAuthor(t *testing.T) {
	t.Parallel()
	parentID := uint(10)
	commentRepo := noopCommentRepo()
	commentRepo.getByIDFn = func(_ context.Context, id uint) (*models.Comment, error) {
		if id == parentID {
			return &models.Comment{ID: id, ArticleID: 1, UserID: 7, Status: models.CommentStatusApproved}, nil
		}
		return &models.Comment{ID: id, ArticleID: 1, UserID: 3, ParentID: &parentID, Status: models.CommentStatusPending}, nil
	}
	notifier := newRecordingNotifier()
	disp := &recordingDispatcher{run: true}
	svc, loyaltyRepo := newCommentService(commentRepo, suggest(models.CommentStatusApproved, "safe", 0.1), notifier, disp)

	_, err := svc.Submit(context.Background(), SubmitCommentInput{
		ArticleID: 1, UserID: 3, ParentID: &parentID, Content: "agreed",
	})
	require.NoError(t, err)

	require.Len(t, notifier.users[7], 1)
	assert.Equal(t, "comment_reply", notifier.users[7][0].Type)
	require.Len(t, loyaltyRepo.awards, 1)
	assert.Equal(t, models.PointsReply, loyaltyRepo.awards[0].Points, "replies earn reply points")
}

func TestSubmitReplyToUnpublishedParent(t *testing.T) {
	t.Parallel()
	parentID := uint(10)
	commentRepo := noopCommentRepo()
	commentRepo.getByIDFn = func(_ context.Context, id uint) (*models.Comment, error) {
		return &models.Comment{ID: id, ArticleID: 1, UserID: 7, Status: models.CommentStatusPending}, nil
	}
	svc, _ := newCommentService(commentRepo, suggest(models.CommentStatusApproved, "safe", 0.1), newRecordingNotifier(), &recordingDispatcher{})

	_, err := svc.Submit(context.Background(), SubmitCommentInput{
		ArticleID: 1, UserID: 3, ParentID: &parentID, Content: "reply",
	})
	assertAppErrorCode(t, err, "VALIDATION_ERROR")
}

func TestSubmitMidBandGoesToReview(t *testing.T) {
	t.Parallel()
	commentRepo := noopCommentRepo()
	approvals := 0
	commentRepo.approveTxFn = func(_ context.Context, _ *models.Comment, _ repository.Review, _ *models.ModerationDecision) (bool, error) {
		approvals++
		return true, nil
	}
	notifier := newRecordingNotifier()
	disp := &recordingDispatcher{run: true}
	svc, _ := newCommentService(commentRepo, suggest(models.CommentStatusPending, "politics", 0.5), notifier, disp)

	_, err := svc.Submit(context.Background(), SubmitCommentInput{ArticleID: 1, UserID: 3, Content: "hot take"})
	require.NoError(t, err)

	assert.Zero(t, approvals)
	require.Len(t, notifier.admins, 1)
	assert.Equal(t, "comment_pending", notifier.admins[0].Type)
	require.Len(t, notifier.users[3], 1)
	assert.Equal(t, "comment_under_review", notifier.users[3][0].Type)
}

func TestSubmitHighRiskAutoRejects(t *testing.T) {
	t.Parallel()
	commentRepo := noopCommentRepo()
	rejections := 0
	commentRepo.rejectTxFn = func(_ context.Context, _ *models.Comment, r repository.Review, d *models.ModerationDecision) (bool, error) {
		rejections++
		assert.Nil(t, d)
		assert.Contains(t, r.Notes, "auto-rejected")
		return true, nil
	}
	notifier := newRecordingNotifier()
	disp := &recordingDispatcher{run: true}
	svc, loyaltyRepo := newCommentService(commentRepo, suggest(models.CommentStatusRejected, "harassment", 0.93), notifier, disp)

	_, err := svc.Submit(context.Background(), SubmitCommentInput{ArticleID: 1, UserID: 3, Content: "hostile"})
	require.NoError(t, err)

	assert.Equal(t, 1, rejections)
	assert.Empty(t, loyaltyRepo.awards)
	require.Len(t, notifier.users[3], 1)
	assert.Equal(t, "comment_rejected", notifier.users[3][0].Type)
	assert.Equal(t, true, notifier.users[3][0].Data["can_appeal"])
}

func TestSubmitClassifierFailureHoldsForReview(t *testing.T) {
	t.Parallel()
	commentRepo := noopCommentRepo()
	var stamped repository.AIReview
	commentRepo.updateAIFn = func(_ context.Context, _ uint, r repository.AIReview) error {
		stamped = r
		return nil
	}
	approvals := 0
	commentRepo.approveTxFn = func(_ context.Context, _ *models.Comment, _ repository.Review, _ *models.ModerationDecision) (bool, error) {
		approvals++
		return true, nil
	}
	notifier := newRecordingNotifier()
	disp := &recordingDispatcher{run: true}
	clf := &classifierStub{err: errors.New("connection refused")}
	svc, _ := newCommentService(commentRepo, clf, notifier, disp)

	_, err := svc.Submit(context.Background(), SubmitCommentInput{ArticleID: 1, UserID: 3, Content: "anything"})
	require.NoError(t, err, "classifier failure must not fail the submission")

	assert.Zero(t, approvals, "unscorable content is never auto-approved")
	assert.Equal(t, "ai_error", stamped.Category)
	require.Len(t, notifier.admins, 1)
	assert.Equal(t, "comment_pending", notifier.admins[0].Type)
}

func TestEditWithinWindowReModerates(t *testing.T) {
	t.Parallel()
	commentRepo := noopCommentRepo()
	commentRepo.getByIDFn = func(_ context.Context, id uint) (*models.Comment, error) {
		return &models.Comment{
			ID:        id,
			UserID:    3,
			ArticleID: 1,
			Status:    models.CommentStatusApproved,
			Content:   "original",
			CreatedAt: time.Now().Add(-5 * time.Minute),
		}, nil
	}
	var updated *models.Comment
	commentRepo.updateFn = func(_ context.Context, c *models.Comment) error {
		updated = c
		return nil
	}
	classified := 0
	clf := &classifierStub{result: &classifier.Result{
		Category: "safe", RiskScore: 0.1, SuggestedStatus: models.CommentStatusApproved,
	}}
	svc, _ := newCommentService(commentRepo, countingClassifier(clf, &classified), newRecordingNotifier(), &recordingDispatcher{run: true})

	_, err := svc.Edit(context.Background(), EditCommentInput{CommentID: 1, UserID: 3, Content: "revised"})
	require.NoError(t, err)

	require.NotNil(t, updated)
	assert.Equal(t, "revised", updated.Content)
	assert.True(t, updated.IsEdited)
	assert.NotNil(t, updated.EditedAt)
	assert.Equal(t, 1, classified, "edits go through moderation again")
}

func TestEditWindowExpired(t *testing.T) {
	t.Parallel()
	commentRepo := noopCommentRepo()
	commentRepo.getByIDFn = func(_ context.Context, id uint) (*models.Comment, error) {
		return &models.Comment{
			ID:        id,
			UserID:    3,
			Status:    models.CommentStatusApproved,
			CreatedAt: time.Now().Add(-EditWindow - time.Minute),
		}, nil
	}
	svc, _ := newCommentService(commentRepo, suggest(models.CommentStatusApproved, "safe", 0.1), newRecordingNotifier(), &recordingDispatcher{})

	_, err := svc.Edit(context.Background(), EditCommentInput{CommentID: 1, UserID: 3, Content: "too late"})
	assertAppErrorCode(t, err, "VALIDATION_ERROR")
}

func TestEditAuthorOnly(t *testing.T) {
	t.Parallel()
	commentRepo := noopCommentRepo()
	commentRepo.getByIDFn = func(_ context.Context, id uint) (*models.Comment, error) {
		return &models.Comment{ID: id, UserID: 3, CreatedAt: time.Now()}, nil
	}
	svc, _ := newCommentService(commentRepo, suggest(models.CommentStatusApproved, "safe", 0.1), newRecordingNotifier(), &recordingDispatcher{})

	_, err := svc.Edit(context.Background(), EditCommentInput{CommentID: 1, UserID: 99, Content: "mine now"})
	assertAppErrorCode(t, err, "UNAUTHORIZED")
}

func TestDeleteArchivesWhenRepliesExist(t *testing.T) {
	t.Parallel()
	commentRepo := noopCommentRepo()
	commentRepo.getByIDFn = func(_ context.Context, id uint) (*models.Comment, error) {
		return &models.Comment{ID: id, UserID: 3, Status: models.CommentStatusApproved}, nil
	}
	commentRepo.countChildrenFn = func(_ context.Context, _ uint) (int64, error) { return 2, nil }
	archived, deleted := 0, 0
	commentRepo.archiveFn = func(_ context.Context, _ uint) error { archived++; return nil }
	commentRepo.deleteFn = func(_ context.Context, _ uint) error { deleted++; return nil }
	svc, _ := newCommentService(commentRepo, suggest(models.CommentStatusApproved, "safe", 0.1), newRecordingNotifier(), &recordingDispatcher{})

	require.NoError(t, svc.Delete(context.Background(), 1, 3))
	assert.Equal(t, 1, archived)
	assert.Zero(t, deleted)
}

func TestDeleteHardDeletesWithoutReplies(t *testing.T) {
	t.Parallel()
	commentRepo := noopCommentRepo()
	commentRepo.getByIDFn = func(_ context.Context, id uint) (*models.Comment, error) {
		return &models.Comment{ID: id, UserID: 3, Status: models.CommentStatusApproved}, nil
	}
	archived, deleted := 0, 0
	commentRepo.archiveFn = func(_ context.Context, _ uint) error { archived++; return nil }
	commentRepo.deleteFn = func(_ context.Context, _ uint) error { deleted++; return nil }
	svc, _ := newCommentService(commentRepo, suggest(models.CommentStatusApproved, "safe", 0.1), newRecordingNotifier(), &recordingDispatcher{})

	require.NoError(t, svc.Delete(context.Background(), 1, 3))
	assert.Zero(t, archived)
	assert.Equal(t, 1, deleted)
}

func TestDeleteForbiddenForStrangers(t *testing.T) {
	t.Parallel()
	commentRepo := noopCommentRepo()
	commentRepo.getByIDFn = func(_ context.Context, id uint) (*models.Comment, error) {
		return &models.Comment{ID: id, UserID: 3}, nil
	}
	svc, _ := newCommentService(commentRepo, suggest(models.CommentStatusApproved, "safe", 0.1), newRecordingNotifier(), &recordingDispatcher{})

	err := svc.Delete(context.Background(), 1, 99)
	assertAppErrorCode(t, err, "UNAUTHORIZED")
}

func TestDeleteAllowedForAdmins(t *testing.T) {
	t.Parallel()
	commentRepo := noopCommentRepo()
	commentRepo.getByIDFn = func(_ context.Context, id uint) (*models.Comment, error) {
		return &models.Comment{ID: id, UserID: 3}, nil
	}
	deleted := 0
	commentRepo.deleteFn = func(_ context.Context, _ uint) error { deleted++; return nil }
	svc := NewCommentService(
		commentRepo,
		noopArticleRepo(),
		&userRepoStub{getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id, IsAdmin: true}, nil
		}},
		noopReportRepo(),
		suggest(models.CommentStatusApproved, "safe", 0.1),
		newRecordingNotifier(),
		&recordingDispatcher{},
		NewLoyaltyService(&loyaltyRepoStub{}),
	)

	require.NoError(t, svc.Delete(context.Background(), 1, 99))
	assert.Equal(t, 1, deleted)
}

func TestReportSeparateTrack(t *testing.T) {
	t.Parallel()
	commentRepo := noopCommentRepo()
	commentRepo.getByIDFn = func(_ context.Context, id uint) (*models.Comment, error) {
		return &models.Comment{ID: id, UserID: 3, Status: models.CommentStatusApproved}, nil
	}
	transitions := 0
	commentRepo.transitionFn = func(_ context.Context, _ uint, _ models.CommentStatus, _ repository.Review) (bool, error) {
		transitions++
		return true, nil
	}
	notifier := newRecordingNotifier()
	disp := &recordingDispatcher{run: true}
	svc, _ := newCommentService(commentRepo, suggest(models.CommentStatusApproved, "safe", 0.1), notifier, disp)

	report, err := svc.Report(context.Background(), ReportCommentInput{
		CommentID: 1, UserID: 5, Reason: "spam", Description: "link farm",
	})
	require.NoError(t, err)
	assert.Equal(t, "spam", report.Reason)

	assert.Zero(t, transitions, "reports never transition the comment")
	require.Len(t, notifier.admins, 1)
	assert.Equal(t, "comment_reported", notifier.admins[0].Type)
}

func TestReportOwnCommentRejected(t *testing.T) {
	t.Parallel()
	commentRepo := noopCommentRepo()
	commentRepo.getByIDFn = func(_ context.Context, id uint) (*models.Comment, error) {
		return &models.Comment{ID: id, UserID: 5}, nil
	}
	svc, _ := newCommentService(commentRepo, suggest(models.CommentStatusApproved, "safe", 0.1), newRecordingNotifier(), &recordingDispatcher{})

	_, err := svc.Report(context.Background(), ReportCommentInput{CommentID: 1, UserID: 5, Reason: "spam"})
	assertAppErrorCode(t, err, "VALIDATION_ERROR")
}

func TestReportDuplicateConflicts(t *testing.T) {
	t.Parallel()
	commentRepo := noopCommentRepo()
	commentRepo.getByIDFn = func(_ context.Context, id uint) (*models.Comment, error) {
		return &models.Comment{ID: id, UserID: 3}, nil
	}
	svc := NewCommentService(
		commentRepo,
		noopArticleRepo(),
		noopUserRepo(),
		&reportRepoStub{
			fileFn:        func(_ context.Context, _ *models.Report) error { return nil },
			hasReportedFn: func(_ context.Context, _, _ uint) (bool, error) { return true, nil },
		},
		suggest(models.CommentStatusApproved, "safe", 0.1),
		newRecordingNotifier(),
		&recordingDispatcher{},
		NewLoyaltyService(&loyaltyRepoStub{}),
	)

	_, err := svc.Report(context.Background(), ReportCommentInput{CommentID: 1, UserID: 5, Reason: "spam"})
	assertAppErrorCode(t, err, "CONFLICT")
}

// countingClassifier wraps a classifier and counts calls.
type countingCls struct {
	inner classifier.Client
	n     *int
}

func countingClassifier(inner classifier.Client, n *int) classifier.Client {
	return &countingCls{inner: inner, n: n}
}

func (c *countingCls) Classify(ctx context.Context, content string) (*classifier.Result, error) {
	*c.n++
	return c.inner.Classify(ctx, content)
}
