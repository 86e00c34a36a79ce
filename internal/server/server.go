package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"anoa.com/ulike/internal/config"
	"anoa.com/ulike/internal/middleware"
	"anoa.com/ulike/internal/worker"
	"anoa.com/ulike/pkg/storage"

	adminHttp "anoa.com/ulike/internal/modules/admin/delivery/http"

	contentRepo "anoa.com/ulike/internal/modules/content/repository"

	leaderboardHttp "anoa.com/ulike/internal/modules/leaderboard/delivery/http"
	leaderboardRepo "anoa.com/ulike/internal/modules/leaderboard/repository"
	leaderboardService "anoa.com/ulike/internal/modules/leaderboard/service"

	notiHttp "anoa.com/ulike/internal/modules/notification/delivery/http"
	notifRepo "anoa.com/ulike/internal/modules/notification/repository"
	notifService "anoa.com/ulike/internal/modules/notification/service"

	reactionHttp "anoa.com/ulike/internal/modules/reaction/delivery/http"
	reactionRepo "anoa.com/ulike/internal/modules/reaction/repository"
	reactionService "anoa.com/ulike/internal/modules/reaction/service"

	statHttp "anoa.com/ulike/internal/modules/stat/delivery/http"
	statRepo "anoa.com/ulike/internal/modules/stat/repository"
	statService "anoa.com/ulike/internal/modules/stat/service"

	userHttp "anoa.com/ulike/internal/modules/user/delivery/http"
	userRepo "anoa.com/ulike/internal/modules/user/repository"
	userService "anoa.com/ulike/internal/modules/user/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Server struct {
	engine     *gin.Engine
	events     *reactionService.Dispatcher
	reconciler *reactionService.Reconciler
	scheduler  *worker.Scheduler
	auth       userService.AuthService
	logger     *zap.Logger
}

func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, logger *zap.Logger) *Server {
	opts := cfg.Options

	userRepo := userRepo.NewUserRepository(db)
	authSvc := userService.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTTTL, logger)
	authHandler := userHttp.NewAuthHandler(authSvc)

	contentRepo := contentRepo.NewContentRepository(db)

	// Notification Module
	notificationRepository := notifRepo.NewNotificationRepository(db)
	notificationSvc := notifService.NewNotificationService(notificationRepository, redisClient, logger)
	notificationHandler := notiHttp.NewNotificationHandler(notificationSvc, logger)

	leaderboardRepo := leaderboardRepo.NewLeaderboardRepository(db)
	leaderboardSvc := leaderboardService.NewLeaderboardService(leaderboardRepo, userRepo, opts.PointsLikeReceived, logger)
	leaderboardHandler := leaderboardHttp.NewLeaderboardHandler(leaderboardSvc)

	// Reaction Module
	reactionRepo := reactionRepo.NewReactionRepository(db)
	counterCache := reactionService.NewCounterCache(redisClient, logger)
	reactionSvc := reactionService.NewReactionService(reactionRepo, contentRepo, counterCache, opts, logger)
	likers := reactionService.NewLikersBuilder(reactionRepo, userRepo, redisClient, opts.LikersPageSize, opts.LikersCacheTTL, logger)
	if avatars, err := storage.NewCloudinaryAvatars(cfg.CloudinaryURL); err != nil {
		logger.Warn("Avatar thumbnails disabled", zap.Error(err))
	} else if avatars != nil {
		likers.UseThumbnails(avatars)
	}
	reconciler := reactionService.NewReconciler(reactionRepo, counterCache, opts.ReconcileInterval, logger)

	events := reactionService.NewDispatcher(logger)
	events.Register(
		counterCache,
		likers,
		notifService.NewReactionListener(notificationSvc, contentRepo, userRepo, opts.NotificationsEnabled),
		leaderboardService.NewReactionListener(leaderboardSvc, contentRepo),
	)

	reactionHandler := reactionHttp.NewReactionHandler(reactionHttp.Deps{
		Service:  reactionSvc,
		Likers:   likers,
		Tokens:   reactionService.NewTokenIssuer(opts.TokenSecret, opts.TokenTTL),
		Limiter:  reactionService.NewRateLimiter(redisClient),
		Events:   events,
		Cache:    counterCache,
		Identity: reactionHttp.NewIdentityResolver(opts.AllowAnonymous, opts.TokenSecret),
		Options:  opts,
		Logger:   logger,
	})

	adminHandler := adminHttp.NewAdminHandler(contentRepo, reconciler)
	statHandler := statHttp.NewStatHandler(statService.NewStatService(statRepo.NewStatRepository(db), userRepo))

	router := gin.New()

	setupCORS(router, cfg.AllowedOrigins)

	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz"},
	}))

	router.GET("/healthz", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	authMiddleware := middleware.NewAuthMiddleware(userRepo, cfg.JWTSecret)

	api := router.Group("/api")

	// Public routes (no auth required)
	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
	}

	// Reaction routes accept guests; the handler decides who may act
	reactions := api.Group("")
	reactions.Use(authMiddleware.OptionalAuth())
	{
		reactions.POST("/react", reactionHandler.React)
		reactions.POST("/likers", reactionHandler.Likers)
		reactions.GET("/reactions/:type/:id", reactionHandler.Status)
		reactions.GET("/reactions/:type/:id/ws", reactionHandler.Stream)
	}

	// Protected routes (apply auth middleware explicitly)
	protected := api.Group("")
	protected.Use(authMiddleware.RequireAuth())
	{
		// Admin routes
		adminGroup := protected.Group("/admin")
		adminGroup.Use(authMiddleware.RequireAdmin())
		{
			adminGroup.PUT("/content", adminHandler.UpsertContent)
			adminGroup.POST("/reconcile", adminHandler.SyncPending)
			adminGroup.POST("/reconcile/:type/:id", adminHandler.ReconcileSubject)
			adminGroup.GET("/stats", statHandler.GetSummary)
			adminGroup.GET("/stats/top", statHandler.GetTopSubjects)
		}

		protected.GET("/auth/me", authHandler.Me)

		// Notification routes
		protected.GET("/notifications", notificationHandler.GetNotifications)
		protected.GET("/notifications/unread-count", notificationHandler.UnreadCount)
		protected.PUT("/notifications/:id/read", notificationHandler.MarkAsRead)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllAsRead)
		protected.GET("/notifications/ws", notificationHandler.HandleWebSocket)

		protected.GET("/leaderboard", leaderboardHandler.GetLeaderboard)
	}

	return &Server{
		engine:     router,
		events:     events,
		reconciler: reconciler,
		scheduler:  worker.NewScheduler(logger),
		auth:       authSvc,
		logger:     logger,
	}
}

// Handler exposes the router, e.g. for http.Server or tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Auth returns the auth service, used for seeding at startup.
func (s *Server) Auth() userService.AuthService {
	return s.auth
}

// StartWorkers schedules background jobs until ctx is cancelled.
func (s *Server) StartWorkers(ctx context.Context) error {
	if err := s.scheduler.Register(s.reconciler); err != nil {
		return err
	}
	s.scheduler.Start(ctx)
	return nil
}

// Close waits for running jobs and in-flight reaction listeners.
func (s *Server) Close() {
	s.scheduler.Stop()
	s.events.Close()
}

func setupCORS(router *gin.Engine, allowedOrigins string) {
	var origins []string
	if allowedOrigins != "" {
		for _, origin := range strings.Split(allowedOrigins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				origins = append(origins, origin)
			}
		}
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
