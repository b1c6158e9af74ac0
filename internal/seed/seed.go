// Package seed populates the database with development and demo data:
// a newsroom of authors and readers, published articles, and comments in
// every moderation state so the queue and appeal screens have content.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"newsdesk/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options configures a seeding run.
type Options struct {
	NumUsers    int
	NumArticles int
	NumComments int
	ShouldClean bool
	// SkipBcrypt stores plaintext passwords. Dev-only speed knob.
	SkipBcrypt bool
}

var sections = []string{
	"Politics", "Business", "Technology", "Science", "Health",
	"Sports", "Culture", "Opinion", "World", "Climate",
}

var rejectionCategories = []string{
	"toxicity", "spam", "harassment", "off_topic",
}

// Seeder creates demo data against a Gorm DB.
type Seeder struct {
	db   *gorm.DB
	opts Options
	rng  *rand.Rand
}

// NewSeeder creates a Seeder bound to the provided database.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{
		db:   db,
		opts: opts,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run executes the full seeding pipeline.
func (s *Seeder) Run() error {
	if s.opts.ShouldClean {
		if err := s.ClearAll(); err != nil {
			return fmt.Errorf("failed to clear existing data: %w", err)
		}
	}

	users, err := s.seedUsers(s.opts.NumUsers)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}
	log.Printf("✓ %d users created", len(users))

	articles, err := s.seedArticles(users, s.opts.NumArticles)
	if err != nil {
		return fmt.Errorf("failed to seed articles: %w", err)
	}
	log.Printf("✓ %d articles created", len(articles))

	comments, err := s.seedComments(users, articles, s.opts.NumComments)
	if err != nil {
		return fmt.Errorf("failed to seed comments: %w", err)
	}
	log.Printf("✓ %d comments created", len(comments))

	appeals, err := s.seedAppeals(comments)
	if err != nil {
		return fmt.Errorf("failed to seed appeals: %w", err)
	}
	log.Printf("✓ %d appeals created", appeals)

	reports, err := s.seedReports(users, comments)
	if err != nil {
		return fmt.Errorf("failed to seed reports: %w", err)
	}
	log.Printf("✓ %d reports created", reports)

	return nil
}

// ClearAll truncates seeded tables in dependency order.
func (s *Seeder) ClearAll() error {
	tables := []any{
		&models.LoyaltyPoint{},
		&models.Notification{},
		&models.ModerationDecision{},
		&models.Report{},
		&models.Appeal{},
		&models.Comment{},
		&models.Article{},
		&models.User{},
	}
	for _, table := range tables {
		if err := s.db.Unscoped().Where("1 = 1").Delete(table).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) hashPassword(plain string) string {
	if s.opts.SkipBcrypt {
		return plain
	}
	hashed, _ := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	return string(hashed)
}

// seedUsers creates n accounts. The first two are moderators.
func (s *Seeder) seedUsers(n int) ([]*models.User, error) {
	if n < 3 {
		n = 3
	}
	password := s.hashPassword("password123")

	users := make([]*models.User, 0, n)
	for i := 0; i < n; i++ {
		user := &models.User{
			Username:    fmt.Sprintf("%s%d", strings.ToLower(gofakeit.Username()), gofakeit.Number(100, 999)),
			Email:       gofakeit.Email(),
			Password:    password,
			DisplayName: gofakeit.Name(),
			AvatarURL:   fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
			IsAdmin:     i < 2,
		}
		if i == 0 {
			user.Username = "moderator"
			user.Email = "moderator@newsdesk.test"
		}
		users = append(users, user)
	}
	if err := s.db.Create(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Seeder) seedArticles(users []*models.User, n int) ([]*models.Article, error) {
	if n <= 0 {
		n = 20
	}
	articles := make([]*models.Article, 0, n)
	for i := 0; i < n; i++ {
		author := users[s.rng.Intn(len(users))]
		title := fmt.Sprintf("%s: %s", sections[s.rng.Intn(len(sections))], gofakeit.Sentence(6))
		publishedAt := time.Now().Add(-time.Duration(s.rng.Intn(60*24)) * time.Hour)
		articles = append(articles, &models.Article{
			Title:     strings.TrimSuffix(title, "."),
			Slug:      fmt.Sprintf("%s-%d", gofakeit.UUID()[:8], i),
			AuthorID:  author.ID,
			CreatedAt: publishedAt,
		})
	}
	if err := s.db.Create(&articles).Error; err != nil {
		return nil, err
	}
	return articles, nil
}

// seedComments spreads comments over the moderation lifecycle: most are
// approved, a band stays pending for the queue, the rest are rejected
// with a classifier verdict attached.
func (s *Seeder) seedComments(users []*models.User, articles []*models.Article, n int) ([]*models.Comment, error) {
	if n <= 0 {
		n = 200
	}

	comments := make([]*models.Comment, 0, n)
	approvedPerArticle := make(map[uint]int)

	for i := 0; i < n; i++ {
		author := users[s.rng.Intn(len(users))]
		article := articles[s.rng.Intn(len(articles))]

		comment := &models.Comment{
			ArticleID: article.ID,
			UserID:    author.ID,
			Content:   gofakeit.Paragraph(1, 2, 8, " "),
			CreatedAt: article.CreatedAt.Add(time.Duration(s.rng.Intn(72)) * time.Hour),
		}

		switch roll := s.rng.Float64(); {
		case roll < 0.65:
			comment.Status = models.CommentStatusApproved
			comment.AIRiskScore = s.rng.Float64() * 0.3
			approvedPerArticle[article.ID]++
		case roll < 0.85:
			comment.Status = models.CommentStatusPending
			comment.AIRiskScore = 0.3 + s.rng.Float64()*0.4
		default:
			comment.Status = models.CommentStatusRejected
			comment.AIRiskScore = 0.7 + s.rng.Float64()*0.3
			comment.AICategory = rejectionCategories[s.rng.Intn(len(rejectionCategories))]
		}
		comment.AIConfidence = 0.5 + s.rng.Float64()*0.5
		comment.AIProcessed = true
		processedAt := comment.CreatedAt.Add(time.Second)
		comment.AIProcessedAt = &processedAt

		comments = append(comments, comment)
	}

	if err := s.db.Create(&comments).Error; err != nil {
		return nil, err
	}

	// Keep the denormalized counters honest.
	for articleID, count := range approvedPerArticle {
		if err := s.db.Model(&models.Article{}).Where("id = ?", articleID).
			Update("comment_count", count).Error; err != nil {
			return nil, err
		}
	}
	return comments, nil
}

// seedAppeals files an appeal on roughly a third of the rejected comments.
func (s *Seeder) seedAppeals(comments []*models.Comment) (int, error) {
	created := 0
	for _, c := range comments {
		if c.Status != models.CommentStatusRejected || s.rng.Float64() > 0.35 {
			continue
		}
		appeal := &models.Appeal{
			CommentID: c.ID,
			UserID:    c.UserID,
			Reason:    gofakeit.Sentence(12),
		}
		if err := s.db.Create(appeal).Error; err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

// seedReports flags a handful of approved comments from other readers.
func (s *Seeder) seedReports(users []*models.User, comments []*models.Comment) (int, error) {
	reasons := []string{"spam", "harassment", "misinformation", "off_topic"}
	created := 0
	for _, c := range comments {
		if c.Status != models.CommentStatusApproved || s.rng.Float64() > 0.05 {
			continue
		}
		reporter := users[s.rng.Intn(len(users))]
		if reporter.ID == c.UserID {
			continue
		}
		report := &models.Report{
			CommentID:   c.ID,
			UserID:      reporter.ID,
			Reason:      reasons[s.rng.Intn(len(reasons))],
			Description: gofakeit.Sentence(10),
		}
		if err := s.db.Create(report).Error; err != nil {
			return created, err
		}
		if err := s.db.Model(&models.Comment{}).Where("id = ?", c.ID).
			UpdateColumn("report_count", gorm.Expr("report_count + 1")).Error; err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
