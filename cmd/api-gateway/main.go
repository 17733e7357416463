package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/taskflow-api/api/swagger"
	"github.com/noah-isme/taskflow-api/internal/handler"
	"github.com/noah-isme/taskflow-api/internal/middleware"
	"github.com/noah-isme/taskflow-api/internal/oauth"
	"github.com/noah-isme/taskflow-api/internal/repository"
	"github.com/noah-isme/taskflow-api/internal/service"
	"github.com/noah-isme/taskflow-api/internal/token"
	"github.com/noah-isme/taskflow-api/pkg/cache"
	"github.com/noah-isme/taskflow-api/pkg/config"
	"github.com/noah-isme/taskflow-api/pkg/database"
	appErrors "github.com/noah-isme/taskflow-api/pkg/errors"
	"github.com/noah-isme/taskflow-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/taskflow-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/taskflow-api/pkg/middleware/requestid"
)

// @title TaskFlow API
// @version 0.1.0
// @description Authentication and session lifecycle service
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	issuer, err := token.NewIssuer(cfg.Auth)
	if err != nil {
		// An unset SECRET_KEY must never fall back to a guessable default.
		if appErrors.Is(err, appErrors.ErrConfiguration) {
			logr.Fatal("SECRET_KEY is not configured", zap.Error(err))
		}
		logr.Fatal("failed to init token issuer", zap.Error(err))
	}
	tokenValidator, err := token.NewValidator(cfg.Auth)
	if err != nil {
		logr.Fatal("failed to init token validator", zap.Error(err))
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	var limiter *repository.LoginLimiter
	if cfg.Limiter.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, login limiter disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			limiter = repository.NewLoginLimiter(redisClient, logr, cfg.Limiter.MaxAttempts, cfg.Limiter.Window)
		}
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	// A typed nil limiter must not reach the service as a non-nil interface.
	var authSvc *service.AuthService
	if limiter != nil {
		authSvc = service.NewAuthService(userRepo, tokenRepo, auditRepo, limiter, issuer, tokenValidator, validate, logr, metricsSvc)
	} else {
		authSvc = service.NewAuthService(userRepo, tokenRepo, auditRepo, nil, issuer, tokenValidator, validate, logr, metricsSvc)
	}
	userSvc := service.NewUserService(userRepo, logr)

	providers := oauth.NewRegistry(cfg.OAuth)
	authHandler := handler.NewAuthHandler(authSvc, providers)
	userHandler := handler.NewUserHandler(userSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	auth := r.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", authHandler.Logout)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
		auth.GET("/:provider", authHandler.OAuthRedirect)
		auth.GET("/:provider/callback", authHandler.OAuthCallback)
	}

	users := r.Group("/users", middleware.JWT(authSvc))
	{
		users.GET("/me", userHandler.Me)
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
