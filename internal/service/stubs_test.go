package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"newsdesk/internal/classifier"
	"newsdesk/internal/models"
	"newsdesk/internal/repository"
	"newsdesk/internal/sideeffects"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	createFn        func(context.Context, *models.Comment) error
	getByIDFn       func(context.Context, uint) (*models.Comment, error)
	updateFn        func(context.Context, *models.Comment) error
	updateAIFn      func(context.Context, uint, repository.AIReview) error
	transitionFn    func(context.Context, uint, models.CommentStatus, repository.Review) (bool, error)
	approveTxFn     func(context.Context, *models.Comment, repository.Review, *models.ModerationDecision) (bool, error)
	rejectTxFn      func(context.Context, *models.Comment, repository.Review, *models.ModerationDecision) (bool, error)
	listModFn       func(context.Context, repository.ModerationFilter) ([]*models.Comment, int64, error)
	listApprovedFn  func(context.Context, uint, int, int) ([]*models.Comment, int64, error)
	statusCountsFn  func(context.Context) (map[models.CommentStatus]int64, error)
	categoryDistFn  func(context.Context, time.Time) (map[string]int64, error)
	countChildrenFn func(context.Context, uint) (int64, error)
	archiveFn       func(context.Context, uint) error
	deleteFn        func(context.Context, uint) error
}

func (s *commentRepoStub) Create(ctx context.Context, c *models.Comment) error {
	return s.createFn(ctx, c)
}
func (s *commentRepoStub) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	return s.getByIDFn(ctx, id)
}
func (s *commentRepoStub) Update(ctx context.Context, c *models.Comment) error {
	return s.updateFn(ctx, c)
}
func (s *commentRepoStub) UpdateAIReview(ctx context.Context, id uint, r repository.AIReview) error {
	return s.updateAIFn(ctx, id, r)
}
func (s *commentRepoStub) Transition(ctx context.Context, id uint, to models.CommentStatus, r repository.Review) (bool, error) {
	return s.transitionFn(ctx, id, to, r)
}
func (s *commentRepoStub) ApproveTx(ctx context.Context, c *models.Comment, r repository.Review, d *models.ModerationDecision) (bool, error) {
	return s.approveTxFn(ctx, c, r, d)
}
func (s *commentRepoStub) RejectTx(ctx context.Context, c *models.Comment, r repository.Review, d *models.ModerationDecision) (bool, error) {
	return s.rejectTxFn(ctx, c, r, d)
}
func (s *commentRepoStub) ListModeration(ctx context.Context, f repository.ModerationFilter) ([]*models.Comment, int64, error) {
	return s.listModFn(ctx, f)
}
func (s *commentRepoStub) ListApprovedByArticle(ctx context.Context, articleID uint, page, limit int) ([]*models.Comment, int64, error) {
	return s.listApprovedFn(ctx, articleID, page, limit)
}
func (s *commentRepoStub) StatusCounts(ctx context.Context) (map[models.CommentStatus]int64, error) {
	return s.statusCountsFn(ctx)
}
func (s *commentRepoStub) CategoryDistribution(ctx context.Context, since time.Time) (map[string]int64, error) {
	return s.categoryDistFn(ctx, since)
}
func (s *commentRepoStub) CountApprovedChildren(ctx context.Context, parentID uint) (int64, error) {
	return s.countChildrenFn(ctx, parentID)
}
func (s *commentRepoStub) Archive(ctx context.Context, id uint) error { return s.archiveFn(ctx, id) }
func (s *commentRepoStub) Delete(ctx context.Context, id uint) error  { return s.deleteFn(ctx, id) }

func noopCommentRepo() *commentRepoStub {
	return &commentRepoStub{
		createFn: func(_ context.Context, c *models.Comment) error {
			c.ID = 1
			return nil
		},
		getByIDFn: func(_ context.Context, id uint) (*models.Comment, error) {
			return &models.Comment{ID: id, Status: models.CommentStatusPending}, nil
		},
		updateFn:   func(_ context.Context, _ *models.Comment) error { return nil },
		updateAIFn: func(_ context.Context, _ uint, _ repository.AIReview) error { return nil },
		transitionFn: func(_ context.Context, _ uint, _ models.CommentStatus, _ repository.Review) (bool, error) {
			return true, nil
		},
		approveTxFn: func(_ context.Context, _ *models.Comment, _ repository.Review, _ *models.ModerationDecision) (bool, error) {
			return true, nil
		},
		rejectTxFn: func(_ context.Context, _ *models.Comment, _ repository.Review, _ *models.ModerationDecision) (bool, error) {
			return true, nil
		},
		listModFn: func(_ context.Context, _ repository.ModerationFilter) ([]*models.Comment, int64, error) {
			return nil, 0, nil
		},
		listApprovedFn: func(_ context.Context, _ uint, _, _ int) ([]*models.Comment, int64, error) {
			return nil, 0, nil
		},
		statusCountsFn: func(_ context.Context) (map[models.CommentStatus]int64, error) {
			return map[models.CommentStatus]int64{}, nil
		},
		categoryDistFn: func(_ context.Context, _ time.Time) (map[string]int64, error) {
			return map[string]int64{}, nil
		},
		countChildrenFn: func(_ context.Context, _ uint) (int64, error) { return 0, nil },
		archiveFn:       func(_ context.Context, _ uint) error { return nil },
		deleteFn:        func(_ context.Context, _ uint) error { return nil },
	}
}

// appealRepoStub is a stub for repository.AppealRepository.
type appealRepoStub struct {
	createFn      func(context.Context, *models.Appeal) error
	getByIDFn     func(context.Context, uint) (*models.Appeal, error)
	getByPairFn   func(context.Context, uint, uint) (*models.Appeal, error)
	resolveFn     func(context.Context, uint, models.AppealStatus, uint, string) (bool, error)
	listPendingFn func(context.Context, int, int) ([]*models.Appeal, int64, error)
}

func (s *appealRepoStub) Create(ctx context.Context, a *models.Appeal) error {
	return s.createFn(ctx, a)
}
func (s *appealRepoStub) GetByID(ctx context.Context, id uint) (*models.Appeal, error) {
	return s.getByIDFn(ctx, id)
}
func (s *appealRepoStub) GetByCommentAndUser(ctx context.Context, commentID, userID uint) (*models.Appeal, error) {
	return s.getByPairFn(ctx, commentID, userID)
}
func (s *appealRepoStub) Resolve(ctx context.Context, id uint, to models.AppealStatus, reviewerID uint, notes string) (bool, error) {
	return s.resolveFn(ctx, id, to, reviewerID, notes)
}
func (s *appealRepoStub) ListPending(ctx context.Context, page, limit int) ([]*models.Appeal, int64, error) {
	return s.listPendingFn(ctx, page, limit)
}

func noopAppealRepo() *appealRepoStub {
	return &appealRepoStub{
		createFn: func(_ context.Context, a *models.Appeal) error {
			a.ID = 1
			// Mirror the appeals table default the real repository backfills.
			a.Status = models.AppealStatusPending
			return nil
		},
		getByIDFn: func(_ context.Context, id uint) (*models.Appeal, error) {
			return &models.Appeal{ID: id, CommentID: 1, UserID: 3, Status: models.AppealStatusPending}, nil
		},
		getByPairFn: func(_ context.Context, _, _ uint) (*models.Appeal, error) {
			return nil, gorm.ErrRecordNotFound
		},
		resolveFn: func(_ context.Context, _ uint, _ models.AppealStatus, _ uint, _ string) (bool, error) {
			return true, nil
		},
		listPendingFn: func(_ context.Context, _, _ int) ([]*models.Appeal, int64, error) {
			return nil, 0, nil
		},
	}
}

// loyaltyRepoStub is a stub for repository.LoyaltyRepository.
type loyaltyRepoStub struct {
	mu      sync.Mutex
	awards  []*models.LoyaltyPoint
	awardFn func(context.Context, *models.LoyaltyPoint) (bool, error)
}

func (s *loyaltyRepoStub) Award(ctx context.Context, e *models.LoyaltyPoint) (bool, error) {
	s.mu.Lock()
	s.awards = append(s.awards, e)
	s.mu.Unlock()
	if s.awardFn != nil {
		return s.awardFn(ctx, e)
	}
	return true, nil
}
func (s *loyaltyRepoStub) Balance(_ context.Context, _ uint) (int, error) { return 0, nil }

// reportRepoStub is a stub for repository.ReportRepository.
type reportRepoStub struct {
	fileFn        func(context.Context, *models.Report) error
	hasReportedFn func(context.Context, uint, uint) (bool, error)
}

func (s *reportRepoStub) File(ctx context.Context, r *models.Report) error { return s.fileFn(ctx, r) }
func (s *reportRepoStub) HasReported(ctx context.Context, commentID, userID uint) (bool, error) {
	return s.hasReportedFn(ctx, commentID, userID)
}

func noopReportRepo() *reportRepoStub {
	return &reportRepoStub{
		fileFn: func(_ context.Context, r *models.Report) error {
			r.ID = 1
			return nil
		},
		hasReportedFn: func(_ context.Context, _, _ uint) (bool, error) { return false, nil },
	}
}

// articleRepoStub is a stub for repository.ArticleRepository.
type articleRepoStub struct {
	getByIDFn func(context.Context, uint) (*models.Article, error)
}

func (s *articleRepoStub) Create(_ context.Context, _ *models.Article) error { return nil }
func (s *articleRepoStub) GetByID(ctx context.Context, id uint) (*models.Article, error) {
	return s.getByIDFn(ctx, id)
}

func noopArticleRepo() *articleRepoStub {
	return &articleRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.Article, error) {
			return &models.Article{ID: id, AuthorID: 50}, nil
		},
	}
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn func(context.Context, uint) (*models.User, error)
}

func (s *userRepoStub) Create(_ context.Context, _ *models.User) error { return nil }
func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByUsername(_ context.Context, _ string) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}
func (s *userRepoStub) IsAdmin(ctx context.Context, id uint) (bool, error) {
	u, err := s.getByIDFn(ctx, id)
	if err != nil {
		return false, err
	}
	return u.IsAdmin, nil
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id}, nil
		},
	}
}

// recordingDispatcher runs tasks synchronously and records their kinds.
type recordingDispatcher struct {
	mu    sync.Mutex
	kinds []string
	run   bool // when true, tasks execute inline
}

func (d *recordingDispatcher) Enqueue(t sideeffects.Task) bool {
	d.mu.Lock()
	d.kinds = append(d.kinds, t.Kind)
	d.mu.Unlock()
	if d.run {
		_ = t.Run(context.Background())
	}
	return true
}

func (d *recordingDispatcher) count(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, k := range d.kinds {
		if k == kind {
			n++
		}
	}
	return n
}

// recordingNotifier records every notice.
type recordingNotifier struct {
	mu     sync.Mutex
	users  map[uint][]Notice
	admins []Notice
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{users: make(map[uint][]Notice)}
}

func (n *recordingNotifier) NotifyUser(_ context.Context, userID uint, notice Notice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.users[userID] = append(n.users[userID], notice)
	return nil
}

func (n *recordingNotifier) NotifyAdmins(_ context.Context, notice Notice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.admins = append(n.admins, notice)
	return nil
}

// classifierStub returns a fixed result.
type classifierStub struct {
	result *classifier.Result
	err    error
}

func (c *classifierStub) Classify(_ context.Context, _ string) (*classifier.Result, error) {
	if c.err != nil {
		return classifier.FallbackResult(), c.err
	}
	return c.result, nil
}

func adminOnly(adminID uint) Authorizer {
	return func(_ context.Context, userID uint) (bool, error) {
		return userID == adminID, nil
	}
}

func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
}
