// @title Eco Coordination API
// @version 1.0
// @description Event and service request coordination between schools and partner agencies.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/eco-coord-api/api/swagger"
	"github.com/noah-isme/eco-coord-api/internal/handler"
	"github.com/noah-isme/eco-coord-api/internal/middleware"
	"github.com/noah-isme/eco-coord-api/internal/models"
	"github.com/noah-isme/eco-coord-api/internal/repository"
	"github.com/noah-isme/eco-coord-api/internal/service"
	"github.com/noah-isme/eco-coord-api/pkg/cache"
	"github.com/noah-isme/eco-coord-api/pkg/config"
	"github.com/noah-isme/eco-coord-api/pkg/database"
	"github.com/noah-isme/eco-coord-api/pkg/export"
	"github.com/noah-isme/eco-coord-api/pkg/jobs"
	"github.com/noah-isme/eco-coord-api/pkg/logger"
	"github.com/noah-isme/eco-coord-api/pkg/middleware/cors"
	"github.com/noah-isme/eco-coord-api/pkg/middleware/requestid"
	"github.com/noah-isme/eco-coord-api/pkg/storage"
)

// letterFiles adapts local storage to the handler's streaming interface.
type letterFiles struct {
	*storage.LocalStorage
}

func (l letterFiles) Open(filename string) (io.ReadCloser, error) {
	return l.LocalStorage.Open(filename)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	if err := run(cfg, log); err != nil {
		log.Sugar().Fatalw("server exited", "error", err)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()

	letterStore, err := storage.NewLocalStorage(cfg.Letters.StorageDir)
	if err != nil {
		return fmt.Errorf("letter storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Letters.SignedURLSecret, cfg.Letters.SignedURLTTL)

	// Repositories.
	requestRepo := repository.NewRequestRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)

	// Background notification dispatcher.
	notifier, queue := service.NewQueueNotifier(notificationRepo, cacheRepo, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     log,
	})
	queueCtx, queueCancel := context.WithCancel(context.Background())
	defer queueCancel()
	queue.Start(queueCtx)
	defer queue.Stop()

	// Services.
	metricsService := service.NewMetricsService()
	statsService := service.NewStatsService(requestRepo, activityRepo, submissionRepo, cacheRepo, cfg.Stats.CacheTTL, log)
	requestService := service.NewRequestService(requestRepo, userRepo, notifier,
		export.NewLetterRenderer(), letterStore, cfg.Letters.IssuerName, log)
	notificationService := service.NewNotificationService(notificationRepo, cacheRepo, cfg.Notifications.UnreadCacheTTL, log)
	activityService := service.NewActivityService(activityRepo, statsService, log)
	submissionService := service.NewSubmissionService(submissionRepo, userRepo, statsService, log)
	authService := service.NewAuthService(userRepo, cfg.JWT, log)
	userService := service.NewUserService(userRepo, log)

	// Handlers.
	authHandler := handler.NewAuthHandler(authService)
	requestHandler := handler.NewRequestHandler(requestService, signer, letterFiles{letterStore})
	notificationHandler := handler.NewNotificationHandler(notificationService)
	statsHandler := handler.NewStatsHandler(statsService, metricsService)
	activityHandler := handler.NewActivityHandler(activityService)
	submissionHandler := handler.NewSubmissionHandler(submissionService)
	userHandler := handler.NewUserHandler(userService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.Middleware())
	router.Use(logger.GinMiddleware(log))
	router.Use(cors.New(cfg.CORS.AllowedOrigins))
	router.Use(middleware.Metrics(metricsService))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.Env != "production" {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := router.Group(cfg.APIPrefix)

	// Session endpoints.
	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	authenticated := auth.Group("", middleware.JWT(authService))
	authenticated.POST("/logout", authHandler.Logout)
	authenticated.PUT("/password", authHandler.ChangePassword)
	authenticated.GET("/me", authHandler.Me)

	// Signed letter downloads carry their own credential in the token.
	api.GET("/letters/download", requestHandler.DownloadLetter)

	protected := api.Group("", middleware.JWT(authService))

	requests := protected.Group("/requests")
	requests.POST("", middleware.RequireRoles(models.RoleSchool), requestHandler.Create)
	requests.GET("", requestHandler.List)
	requests.GET("/:id", requestHandler.Get)
	requests.POST("/:id/transition", requestHandler.Transition)
	requests.POST("/:id/override-status", middleware.RequireRoles(models.RoleAdmin), requestHandler.Override)
	requests.GET("/:id/letter", requestHandler.LetterLink)

	notifications := protected.Group("/notifications")
	notifications.GET("", notificationHandler.List)
	notifications.GET("/unread-count", notificationHandler.UnreadCount)
	notifications.POST("/:id/read", notificationHandler.MarkRead)
	notifications.DELETE("/:id", notificationHandler.Delete)

	activities := protected.Group("/activities")
	activities.POST("", middleware.RequireRoles(models.RoleSchool), activityHandler.Create)
	activities.GET("", middleware.RequireRoles(models.RoleSchool, models.RoleAdmin), activityHandler.List)
	activities.POST("/:id/held", middleware.RequireRoles(models.RoleSchool), activityHandler.MarkHeld)
	activities.POST("/:id/document", middleware.RequireRoles(models.RoleSchool), activityHandler.Document)
	activities.POST("/:id/cancel", middleware.RequireRoles(models.RoleSchool), activityHandler.Cancel)
	protected.GET("/categories", activityHandler.Categories)

	submissions := protected.Group("/submissions")
	submissions.POST("", middleware.RequireRoles(models.RoleSchool), submissionHandler.Create)
	submissions.GET("", middleware.RequireRoles(models.RoleSchool, models.RoleAdmin), submissionHandler.List)
	submissions.POST("/:id/review", middleware.RequireRoles(models.RoleAdmin), submissionHandler.Review)

	protected.GET("/schools/:id/stats", statsHandler.SchoolStats)

	users := protected.Group("/users", middleware.RequireRoles(models.RoleAdmin))
	users.POST("", userHandler.Create)
	users.GET("", userHandler.List)
	users.GET("/:id", userHandler.Get)
	users.PUT("/:id", userHandler.Update)
	users.DELETE("/:id", userHandler.Deactivate)

	protected.GET("/admin/metrics", middleware.RequireRoles(models.RoleAdmin), metricsHandler.Snapshot)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Sugar().Infow("server listening", "addr", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Sugar().Infow("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
