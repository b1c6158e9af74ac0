package repository

import (
	"testing"

	"newsdesk/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Article{},
		&models.Comment{},
		&models.Appeal{},
		&models.Report{},
		&models.Notification{},
		&models.LoyaltyPoint{},
		&models.ModerationDecision{},
	); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}

	return db
}

func seedUserArticleComment(t *testing.T, db *gorm.DB, status models.CommentStatus) (*models.User, *models.Article, *models.Comment) {
	t.Helper()

	user := &models.User{Username: "reader", Email: "reader@example.com", Password: "pw"}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	article := &models.Article{Title: "Budget vote passes", Slug: "budget-vote-passes", AuthorID: user.ID}
	if err := db.Create(article).Error; err != nil {
		t.Fatalf("seed article: %v", err)
	}
	comment := &models.Comment{
		ArticleID: article.ID,
		UserID:    user.ID,
		Content:   "first take",
		Status:    status,
	}
	if err := db.Create(comment).Error; err != nil {
		t.Fatalf("seed comment: %v", err)
	}
	return user, article, comment
}
