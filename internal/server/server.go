// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "snapgrid/docs" // swagger docs
	"snapgrid/internal/cache"
	"snapgrid/internal/config"
	"snapgrid/internal/database"
	"snapgrid/internal/featureflags"
	"snapgrid/internal/middleware"
	"snapgrid/internal/models"
	"snapgrid/internal/notifications"
	"snapgrid/internal/pagination"
	"snapgrid/internal/repository"
	"snapgrid/internal/service"
	"snapgrid/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo     repository.UserRepository
	featureFlags *featureflags.Manager
	rateLimiter  *middleware.RateLimiter
	store        *storage.LocalStore

	presence *notifications.Presence
	registry *notifications.Registry
	emitter  *notifications.Emitter

	userService         *service.UserService
	followService       *service.FollowService
	postService         *service.PostService
	commentService      *service.CommentService
	chatService         *service.ChatService
	notificationService *service.NotificationService
	imageService        *service.ImageService
	counterService      *service.CounterService
}

// NewServer connects to the database and Redis and builds a server over them.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; the server then runs on a single process without
// cache, presence mirroring, tickets, or rate limits.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, fmt.Errorf("server requires config and database")
	}
	if cache.GetClient() != redisClient {
		cache.SetClient(redisClient)
	}
	models.IncludeErrorDetails = !cfg.IsProduction()

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	followRepo := repository.NewFollowRepository(db)

	presence := notifications.NewPresence(redisClient, notifications.PresenceConfig{
		OfflineGrace: time.Duration(cfg.PresenceGraceSeconds) * time.Second,
	})
	registry := notifications.NewRegistry(presence)
	emitter := notifications.NewEmitter(registry, notifications.NewBus(redisClient))
	store := storage.NewLocalStore(cfg.ImageUploadDir, cfg.PublicBaseURL)

	notifier := service.NewNotificationService(repository.NewNotificationRepository(db), userRepo, emitter)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("snapgrid-api"),
		userRepo:       userRepo,
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		rateLimiter:    middleware.NewRateLimiter(redisClient, cfg.RateLimitOn),
		store:          store,
		presence:       presence,
		registry:       registry,
		emitter:        emitter,

		userService:         service.NewUserService(userRepo, followRepo, emitter),
		followService:       service.NewFollowService(followRepo, userRepo, notifier, emitter),
		postService:         service.NewPostService(postRepo, userRepo, notifier, emitter),
		commentService:      service.NewCommentService(commentRepo, postRepo, notifier, emitter),
		chatService:         service.NewChatService(repository.NewChatRepository(db), userRepo, emitter),
		notificationService: notifier,
		imageService:        service.NewImageService(repository.NewImageRepository(db), store, cfg),
		counterService:      service.NewCounterService(repository.NewCounterRepository(db)),
	}
	presence.OnTransition(s.presenceChanged(true), s.presenceChanged(false))
	return s, nil
}

// App builds the Fiber application with middleware and routes. It is
// what Start serves and what tests drive through app.Test.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "snapgrid API",
		BodyLimit:    (s.config.ImageMaxUploadSizeMB + 1) * 1024 * 1024,
		ErrorHandler: s.errorHandler,
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New(recover.Config{
		EnableStackTrace:  true,
		StackTraceHandler: recordPanicStack,
	}))
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))
	app.Use(middleware.StructuredLogger())

	// CORS runs before anything that can short-circuit so error responses
	// still carry the headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:     "GET,POST,PATCH,DELETE,OPTIONS",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	// Global per-IP ceiling. Route-level limits below are Redis backed.
	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return !s.config.RateLimitOn || c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return models.RespondWithError(c, fiber.StatusTooManyRequests,
				fmt.Errorf("too many requests, please try again later"))
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	app.Get("/metrics/dashboard", monitor.New(monitor.Config{Title: "snapgrid metrics"}))
	app.Get("/swagger/*", swagger.HandlerDefault)

	app.Static("/uploads", s.store.Root(), fiber.Static{
		MaxAge: int((24 * time.Hour).Seconds()),
	})

	app.Get("/ws", s.WebSocketAuth(), s.WebsocketHandler())

	api := app.Group("/api")
	rl := s.rateLimiter

	auth := api.Group("/auth")
	auth.Post("/register", rl.Handler(5, 10*time.Minute, "register"), s.Register)
	auth.Post("/login", rl.Handler(10, 5*time.Minute, "login"), s.Login)

	protected := api.Group("", s.AuthRequired())
	protected.Post("/auth/logout", s.Logout)
	protected.Get("/auth/me", s.Me)

	protected.Get("/feature-flags", s.GetFeatureFlags)
	protected.Post("/ws/ticket", rl.Handler(30, time.Minute, "ws_ticket"), s.IssueWSTicket)

	// Static segments are registered before /:id.
	users := protected.Group("/users")
	users.Get("/search", rl.Handler(60, time.Minute, "search"), s.SearchUsers)
	users.Get("/suggested", s.SuggestedUsers)
	users.Patch("/me", s.UpdateMyProfile)
	users.Delete("/me", s.DeleteMyAccount)
	users.Get("/:id/posts", s.GetUserPosts)
	users.Get("/:id/followers", s.GetFollowers)
	users.Get("/:id/following", s.GetFollowing)
	users.Post("/:id/follow", rl.Handler(60, time.Minute, "follow"), s.FollowUser)
	users.Delete("/:id/follow", s.UnfollowUser)
	users.Get("/:id", s.GetUserProfile)

	posts := protected.Group("/posts")
	posts.Get("/feed", s.GetFeed)
	posts.Get("/explore", s.GetExplore)
	posts.Get("/search", rl.Handler(60, time.Minute, "search"), s.SearchPosts)
	posts.Post("/", rl.Handler(10, time.Minute, "create_post"), s.CreatePost)
	posts.Post("/:id/like", s.LikePost)
	posts.Delete("/:id/like", s.UnlikePost)
	posts.Get("/:id/likes", s.GetPostLikers)
	posts.Get("/:id/comments", s.GetComments)
	posts.Post("/:id/comments", rl.Handler(30, time.Minute, "create_comment"), s.CreateComment)
	posts.Get("/:id", s.GetPost)
	posts.Patch("/:id", s.UpdatePost)
	posts.Delete("/:id", s.DeletePost)

	comments := protected.Group("/comments")
	comments.Get("/:id/replies", s.GetReplies)
	comments.Post("/:id/like", s.LikeComment)
	comments.Delete("/:id/like", s.UnlikeComment)
	comments.Patch("/:id", s.UpdateComment)
	comments.Delete("/:id", s.DeleteComment)

	conversations := protected.Group("/conversations")
	conversations.Get("/", s.GetConversations)
	conversations.Get("/:id/messages", s.GetMessages)
	conversations.Post("/:id/read", s.MarkConversationRead)
	conversations.Delete("/:id", s.DeleteConversation)

	messages := protected.Group("/messages")
	messages.Post("/", rl.Handler(30, time.Minute, "send_message"), s.SendMessage)
	messages.Delete("/:id", s.DeleteMessage)

	notes := protected.Group("/notifications")
	notes.Get("/", s.GetNotifications)
	notes.Get("/unread-count", s.GetUnreadCount)
	notes.Patch("/read-all", s.MarkAllNotificationsRead)
	notes.Patch("/:id/read", s.MarkNotificationRead)
	notes.Delete("/:id", s.DeleteNotification)

	protected.Post("/images", rl.Handler(20, time.Minute, "upload_image"), s.UploadImage)
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
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if sqlDB, err := s.db.DB(); err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus != "healthy" || (s.config.IsProduction() && redisStatus != "healthy") {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start subscribes to the event bus, launches the counter repair job when
// configured, and serves HTTP until Shutdown.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.App()

	// Subscribe before accepting connections. On failure events still
	// reach this process's own connections directly.
	if err := s.emitter.Start(ctx); err != nil {
		middleware.Logger.Error("event bus subscription failed, delivering locally only",
			slog.String("error", err.Error()))
	}

	if interval := s.config.ReconcileInterval(); interval > 0 {
		go s.counterService.Run(ctx, interval)
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.registry.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error closing live connections", slog.String("error", err.Error()))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}

// Per-endpoint page size maxima. PAGINATION_MAX_LIMIT caps all of them.
const (
	maxPostsPage         = 50
	maxSearchPage        = 25
	maxCommentsPage      = 100
	maxUsersPage         = 100
	maxNotificationsPage = 100
	maxConversationsPage = 50
	maxMessagesPage      = 200
)

// pageParams reads ?page= and ?limit= clamped to the endpoint's maximum
// and the configured ceiling.
func (s *Server) pageParams(c *fiber.Ctx, endpointMax int) pagination.Params {
	max := endpointMax
	if ceiling := s.config.PaginationMaxLimit; ceiling > 0 && ceiling < max {
		max = ceiling
	}
	return pagination.New(c.QueryInt("page", 1), c.QueryInt("limit", 0), pagination.DefaultLimit, max)
}
