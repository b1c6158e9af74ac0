package repository

// These tests pin the SQL shape of the moderation write path: the status
// transition must be a single guarded UPDATE, and counters must move via
// in-database increments rather than read-modify-write.

import (
	"context"
	"testing"

	"newsdesk/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestTransitionSQLCarriesStatusGuard(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "comments" SET .+ WHERE id = \$\d+ AND status NOT IN \(\$\d+, ?\$\d+\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ok, err := repo.Transition(ctx, 7, models.CommentStatusApproved, Review{ReviewerID: 1})
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionSQLReportsLostRace(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "comments" SET .+ WHERE id = \$\d+ AND status NOT IN \(\$\d+, ?\$\d+\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ok, err := repo.Transition(ctx, 7, models.CommentStatusApproved, Review{ReviewerID: 1})
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveTxUsesInDatabaseIncrements(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	parentID := uint(3)
	comment := &models.Comment{ID: 7, ArticleID: 2, UserID: 4, ParentID: &parentID, Content: "reply"}
	decision := &models.ModerationDecision{
		CommentID:     7,
		Content:       "reply",
		HumanDecision: models.CommentStatusApproved,
		FeedbackType:  models.FeedbackConfirmation,
		AdminID:       1,
	}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "comments" SET .+ WHERE id = \$\d+ AND status NOT IN \(\$\d+, ?\$\d+\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "articles" SET .*comment_count \+ 1.+`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "comments" SET .*reply_count \+ 1.+`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "moderation_decisions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	ok, err := repo.ApproveTx(ctx, comment, Review{ReviewerID: 1}, decision)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveTxSkipsWritesWhenAlreadyApproved(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	comment := &models.Comment{ID: 7, ArticleID: 2, UserID: 4, Content: "take"}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "comments" SET .+ WHERE id = \$\d+ AND status NOT IN \(\$\d+, ?\$\d+\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ok, err := repo.ApproveTx(ctx, comment, Review{ReviewerID: 1}, &models.ModerationDecision{})
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
