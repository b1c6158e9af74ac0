// Package server contains HTTP and WebSocket handlers for the moderation API.
package server

import (
	"context"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"newsdesk/internal/bootstrap"
	"newsdesk/internal/classifier"
	"newsdesk/internal/config"
	"newsdesk/internal/featureflags"
	"newsdesk/internal/middleware"
	"newsdesk/internal/models"
	"newsdesk/internal/notifications"
	"newsdesk/internal/repository"
	"newsdesk/internal/service"
	"newsdesk/internal/sideeffects"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// consumedTicketEntry caches a websocket ticket consumed from Redis so the
// multi-pass upgrade handshake can re-validate it in-process.
type consumedTicketEntry struct {
	userID    uint
	consumeAt time.Time
}

// Server holds all dependencies and provides handlers
type Server struct {
	config      *config.Config
	db          *gorm.DB
	redis       *redis.Client
	app         *fiber.App
	shutdownCtx context.Context
	shutdownFn  context.CancelFunc

	userRepo         repository.UserRepository
	articleRepo      repository.ArticleRepository
	commentRepo      repository.CommentRepository
	appealRepo       repository.AppealRepository
	reportRepo       repository.ReportRepository
	notificationRepo repository.NotificationRepository
	loyaltyRepo      repository.LoyaltyRepository

	notifier   *notifications.Notifier
	hub        *notifications.Hub
	fanout     *notifications.Fanout
	dispatcher *sideeffects.Dispatcher

	commentService      *service.CommentService
	moderationService   *service.ModerationService
	appealService       *service.AppealService
	notificationService *service.NotificationService
	loyaltyService      *service.LoyaltyService

	consumedTicketsMu sync.Mutex
	consumedTickets   map[string]consumedTicketEntry
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, redisClient, err := bootstrap.InitRuntime(cfg)
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	server := &Server{
		config:          cfg,
		db:              db,
		redis:           redisClient,
		consumedTickets: make(map[string]consumedTicketEntry),
	}

	server.userRepo = repository.NewUserRepository(db)
	server.articleRepo = repository.NewArticleRepository(db)
	server.commentRepo = repository.NewCommentRepository(db)
	server.appealRepo = repository.NewAppealRepository(db)
	server.reportRepo = repository.NewReportRepository(db)
	server.notificationRepo = repository.NewNotificationRepository(db)
	server.loyaltyRepo = repository.NewLoyaltyRepository(db)

	// Live push channel; persistence works without Redis.
	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
		server.hub = notifications.NewHub()
	}
	server.fanout = notifications.NewFanout(server.notificationRepo, server.notifier)

	server.dispatcher = sideeffects.NewDispatcher(0, 0, 0, 0)

	var clf classifier.Client = classifier.Disabled{}
	if cfg.AIModerationURL != "" {
		clf = classifier.NewHTTPClient(cfg.AIModerationURL, cfg.AIAPIKey, cfg.AITimeout, classifier.Thresholds{
			Approve: cfg.AIThresholdApprove,
			Reject:  cfg.AIThresholdReject,
		})
	}
	var trainer classifier.TrainingReporter = classifier.NoopTrainingReporter{}
	if cfg.AITrainingURL != "" {
		trainer = classifier.NewHTTPTrainingReporter(cfg.AITrainingURL, cfg.AIAPIKey, cfg.AITimeout)
	}

	server.loyaltyService = service.NewLoyaltyService(server.loyaltyRepo)
	server.moderationService = service.NewModerationService(
		server.commentRepo, server.fanout, server.dispatcher,
		server.loyaltyService, trainer, server.isAdminByUserID)
	server.appealService = service.NewAppealService(
		server.appealRepo, server.commentRepo, server.moderationService,
		server.fanout, server.dispatcher, server.isAdminByUserID)
	server.commentService = service.NewCommentService(
		server.commentRepo, server.articleRepo, server.userRepo, server.reportRepo,
		clf, server.fanout, server.dispatcher, server.loyaltyService)
	if cfg.FeatureFlags != "" {
		server.commentService.SetFlags(featureflags.NewManager(cfg.FeatureFlags))
	}
	server.notificationService = service.NewNotificationService(server.notificationRepo)

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus metrics and the /metrics scrape endpoint
	middleware.InitMetrics(app)
	app.Use(middleware.MetricsMiddleware())

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// CORS must run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they are handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Public article comment listing
	api.Get("/articles/:id/comments", s.GetArticleComments)

	// Comment submission goes through AI moderation
	api.Post("/articles/:id/comments", s.AuthRequired(), middleware.RateLimit(
		s.redis, 5, time.Minute, "create_comment"), s.CreateComment)

	protected := api.Group("", s.AuthRequired())

	// Author comment lifecycle
	comments := protected.Group("/comments")
	comments.Put("/:id", s.UpdateComment)
	comments.Delete("/:id", s.DeleteComment)
	comments.Post("/:id/appeal", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "submit_appeal"), s.SubmitAppeal)
	comments.Get("/:id/appeal", s.GetAppeal)
	comments.Post("/:id/report", middleware.RateLimit(
		s.redis, 10, time.Minute, "report_comment"), s.ReportComment)

	// Recipient notifications
	inbox := protected.Group("/notifications")
	inbox.Get("/", s.GetNotifications)
	inbox.Post("/:id/read", s.MarkNotificationRead)
	inbox.Delete("/:id", s.DeleteNotification)

	// WebSocket ticket issuance and push channel
	api.Post("/ws/ticket", s.AuthRequired(), s.IssueWSTicket)
	ws := api.Group("/ws", s.AuthRequired())
	ws.Get("/", s.WebsocketHandler())

	// Admin moderation surface
	admin := protected.Group("/admin", s.AdminRequired())
	moderation := admin.Group("/moderation")
	moderation.Get("/comments", s.GetModerationQueue)
	moderation.Post("/comments/:id/approve", s.ApproveComment)
	moderation.Post("/comments/:id/reject", s.RejectComment)
	moderation.Get("/stats", s.GetModerationStats)
	moderation.Get("/appeals", s.GetPendingAppeals)
	moderation.Post("/appeals/:id/accept", s.AcceptAppeal)
	moderation.Post("/appeals/:id/reject", s.RejectAppeal)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		// Live push is degraded without Redis but the API still serves.
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(uint)

		admin, err := s.isAdminByUserID(c.Context(), userID)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError, err)
		}
		if !admin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewUnauthorizedError("Admin access required"))
		}

		return c.Next()
	}
}

// AuthRequired returns the authentication middleware
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		isWSPath := strings.HasPrefix(path, "/api/ws")

		// 1. Try WebSocket ticket first (short-lived, single-use)
		ticket := c.Query("ticket")
		if ticket != "" {
			if userID, ok := s.redeemWSTicket(c.Context(), ticket); ok {
				c.Locals("userID", userID)
				c.Locals("wsTicket", ticket)
				ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, userID)
				c.SetUserContext(ctx)
				return c.Next()
			}
			// A provided but invalid ticket fails hard on WS paths.
			if isWSPath {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
		}

		// 2. Fall back to JWT (Bearer token)
		authHeader := c.Get("Authorization")
		tokenString := ""
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}

		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
			}
			return []byte(s.config.JWTSecret), nil
		})

		if err != nil || !token.Valid {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid token claims"))
		}

		if issuer, issuerOk := claims["iss"].(string); !issuerOk || issuer != "newsdesk-api" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid token issuer"))
		}
		if audience, audienceOk := claims["aud"].(string); !audienceOk || audience != "newsdesk-client" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid token audience"))
		}

		sub, ok := claims["sub"].(string)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid subject claim"))
		}

		userID, err := strconv.ParseUint(sub, 10, 32)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid user ID in token"))
		}

		// Check JTI for revocation
		if jti, exists := claims["jti"].(string); exists && jti != "" {
			if s.redis != nil {
				isBlacklisted, err := s.redis.Exists(c.Context(), "blacklist:"+jti).Result()
				if err == nil && isBlacklisted > 0 {
					return models.RespondWithError(c, fiber.StatusUnauthorized,
						models.NewUnauthorizedError("Token has been revoked"))
				}
			}
		}

		c.Locals("userID", uint(userID))
		ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, uint(userID))
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := fiber.New(fiber.Config{
		AppName: "Newsdesk Moderation API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	s.dispatcher.Start()
	s.fanout.StartJanitor(s.shutdownCtx)

	if s.notifier != nil && s.hub != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				log.Printf("failed to start notification wiring: %v", err)
			}
		}()
	}

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server. In-flight side effects are
// drained before connections close.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if err := s.dispatcher.Shutdown(ctx); err != nil {
		log.Printf("error draining side effects: %v", err)
	}

	if s.hub != nil {
		s.hub.Shutdown()
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
