package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"newsdesk/internal/config"
	"newsdesk/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testJWTSecret = "test-secret"

func setupTestServer(t *testing.T) (*Server, *fiber.App, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Article{},
		&models.Comment{},
		&models.Appeal{},
		&models.Report{},
		&models.Notification{},
		&models.LoyaltyPoint{},
		&models.ModerationDecision{},
	))

	cfg := &config.Config{
		JWTSecret:          testJWTSecret,
		Env:                "test",
		AITimeout:          time.Second,
		AIThresholdApprove: 0.3,
		AIThresholdReject:  0.7,
	}

	s, err := NewServerWithDeps(cfg, db, nil)
	require.NoError(t, err)

	app := fiber.New()
	s.SetupRoutes(app)
	return s, app, db
}

func uitoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// authToken mints a JWT the way the login flow would.
func authToken(t *testing.T, userID uint) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"iss": "newsdesk-api",
		"aud": "newsdesk-client",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

func jsonRequest(t *testing.T, method, path string, body any, userID uint) *http.Request {
	t.Helper()
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != 0 {
		req.Header.Set("Authorization", "Bearer "+authToken(t, userID))
	}
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func seedUser(t *testing.T, db *gorm.DB, username string, admin bool) *models.User {
	t.Helper()
	u := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "pw",
		IsAdmin:  admin,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedArticle(t *testing.T, db *gorm.DB, authorID uint) *models.Article {
	t.Helper()
	a := &models.Article{
		Title:    "Council approves transit plan",
		Slug:     "council-approves-transit-plan-" + strconv.FormatInt(time.Now().UnixNano(), 36),
		AuthorID: authorID,
	}
	require.NoError(t, db.Create(a).Error)
	return a
}

func seedComment(t *testing.T, db *gorm.DB, articleID, userID uint, status models.CommentStatus) *models.Comment {
	t.Helper()
	c := &models.Comment{
		ArticleID: articleID,
		UserID:    userID,
		Content:   "a considered take",
		Status:    status,
	}
	require.NoError(t, db.Create(c).Error)
	return c
}
