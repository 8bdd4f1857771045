package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"commenthub/database"
	"commenthub/internal/config"
	"commenthub/internal/httpapi/handler"
	"commenthub/internal/httpapi/middleware"
	"commenthub/internal/httpapi/protection"
	"commenthub/internal/httpapi/repository"
	"commenthub/internal/httpapi/service"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := newLogger(cfg)

	db, err := database.ConnectDB(cfg, logger)
	if err != nil {
		log.Fatalf("could not connect to database: %v", err)
	}

	cache, err := repository.NewThreadCache(cfg.RedisURL, cfg.RedisPassword, time.Duration(cfg.CacheTTL)*time.Second)
	if err != nil {
		// Redis is an optimization; the service runs without it.
		logger.Warn("thread cache disabled", "error", err)
		cache = nil
	} else {
		defer cache.Close()
	}

	commentRepo := repository.NewCommentRepository(db)
	commentableRepo := repository.NewCommentableRepository(db)
	userRepo := repository.NewUserRepository(db)

	pipeline := protection.NewPipeline(protection.Config{
		CookieToken:             protection.CookiesToken,
		EmptyTrapProtection:     cfg.EmptyTrapProtection,
		TrapFields:              cfg.TrapFields,
		ToleranceTimeProtection: cfg.ToleranceTimeProtection,
		ToleranceTime:           cfg.ToleranceTime,
	})

	commentService := service.NewCommentService(commentRepo, commentableRepo, pipeline, cache)
	authService := service.NewAuthService(userRepo, cfg)

	commentHandler := handler.NewCommentHandler(commentService, cfg.TrapFields)
	commentableHandler := handler.NewCommentableHandler(commentableRepo)
	authHandler := handler.NewAuthHandler(authService)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	visitorToken := middleware.VisitorToken(middleware.VisitorTokenConfig{
		HumanProofTTL: cfg.HumanProofCookieTTL,
		ViewTokenTTL:  cfg.ViewTokenTTL,
		Secure:        cfg.IsProduction(),
	})

	api := r.Group("/api")

	// Auth
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)

	// Public read paths issue the visitor identity cookies.
	public := api.Group("", visitorToken)
	public.GET("/threads/:type/:id", commentHandler.Thread)
	public.GET("/comments/:id", commentHandler.GetByID)

	// Comment creation must NOT issue cookies: the human-proof cookie has
	// to predate the submission, otherwise the cookie check proves nothing.
	api.POST("/comments",
		middleware.RateLimit(cfg.CreateRatePerSecond, cfg.CreateRateBurst),
		middleware.OptionalAuth(authService),
		commentHandler.Create)

	api.PATCH("/comments/:id", middleware.OptionalAuth(authService), commentHandler.Patch)
	api.GET("/comments/me", middleware.AuthMiddleware(authService), commentHandler.ListMine)

	// Moderation
	mod := api.Group("/moderation", middleware.AuthMiddleware(authService), middleware.RequireModerator())
	mod.GET("/comments/:state", commentHandler.ModerationQueue)
	mod.GET("/spam", commentHandler.SpamQueue)
	mod.PUT("/comments/:id/state/:state", commentHandler.Transition)
	mod.PUT("/comments/:id/spam", commentHandler.MarkAsSpam)
	mod.POST("/commentables", commentableHandler.Register)

	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	logger.Info("starting comment API server", "addr", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
