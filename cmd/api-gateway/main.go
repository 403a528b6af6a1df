package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/lead-lifecycle-api/api/swagger"
	"github.com/noah-isme/lead-lifecycle-api/internal/handler"
	"github.com/noah-isme/lead-lifecycle-api/internal/middleware"
	"github.com/noah-isme/lead-lifecycle-api/internal/models"
	"github.com/noah-isme/lead-lifecycle-api/internal/repository"
	"github.com/noah-isme/lead-lifecycle-api/internal/service"
	"github.com/noah-isme/lead-lifecycle-api/pkg/cache"
	"github.com/noah-isme/lead-lifecycle-api/pkg/config"
	"github.com/noah-isme/lead-lifecycle-api/pkg/database"
	"github.com/noah-isme/lead-lifecycle-api/pkg/logger"
	"github.com/noah-isme/lead-lifecycle-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/lead-lifecycle-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lead-lifecycle-api/pkg/middleware/requestid"
	"github.com/noah-isme/lead-lifecycle-api/pkg/queue"
)

// @title Lead Lifecycle API
// @version 1.0.0
// @description Lead scoring, pipeline, approval, and duplicate-resolution backend
// @BasePath /api/v1
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Catalog.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, catalog cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Catalog.CacheTTL, logr, true)
		}
	}

	userRepo := repository.NewUserRepository(db)
	leadRepo := repository.NewLeadRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	duplicateRepo := repository.NewDuplicateRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	authSvc := service.NewAuthService(&authRepo{userRepo, auditRepo}, validator.New(), logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "lead-lifecycle-api",
	})
	courseSvc := service.NewCourseService(courseRepo, cacheSvc, cfg.Catalog.CacheTTL, logr)
	leadSvc := service.NewLeadService(leadRepo, courseSvc, auditRepo, auditRepo, metricsSvc, logr)
	approvalSvc := service.NewApprovalService(approvalRepo, leadRepo, auditRepo, mailer.NewSMTP(cfg.SMTP), metricsSvc, logr)
	duplicateSvc := service.NewDuplicateService(duplicateRepo, leadRepo, auditRepo, metricsSvc, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	leadHandler := handler.NewLeadHandler(leadSvc)
	approvalHandler := handler.NewApprovalHandler(approvalSvc)
	duplicateHandler := handler.NewDuplicateHandler(duplicateSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	protected.POST("/leads", leadHandler.Create)
	protected.GET("/leads", leadHandler.List)
	protected.GET("/leads/:id", leadHandler.Get)
	protected.PATCH("/leads/:id", leadHandler.Update)
	protected.GET("/leads/:id/history", leadHandler.History)
	protected.GET("/leads/:id/approvals", approvalHandler.ListByLead)
	protected.POST("/leads/:id/quotations", approvalHandler.RequestQuotation)
	protected.POST("/leads/:id/invoices", approvalHandler.RequestInvoice)

	protected.POST("/quotations/:id/send", approvalHandler.SendQuotation)
	protected.POST("/quotations/:id/revise", approvalHandler.ReviseQuotation)
	protected.POST("/quotations/:id/resubmit", approvalHandler.ResubmitQuotation)

	protected.GET("/duplicates", duplicateHandler.List)
	protected.GET("/duplicates/:id", duplicateHandler.Get)

	protected.GET("/courses", courseHandler.List)
	protected.GET("/courses/:id", courseHandler.Get)

	managers := protected.Group("")
	managers.Use(middleware.RequireManagerTier())
	managers.POST("/quotations/:id/decision", approvalHandler.DecideQuotation)
	managers.POST("/invoices/:id/decision", approvalHandler.DecideInvoice)
	managers.POST("/invoices/:id/outcome", approvalHandler.RecordInvoiceOutcome)
	managers.POST("/duplicates/:id/resolve", duplicateHandler.Resolve)
	managers.GET("/metrics/snapshot", metricsHandler.Snapshot)

	// REST backfill for detector alerts; normally they arrive over AMQP.
	admins := protected.Group("")
	admins.Use(middleware.RequireRoles(models.RoleAdmin))
	admins.POST("/duplicates", duplicateHandler.Ingest)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.AMQP.Enabled {
		broker, err := queue.NewBroker(cfg.AMQP)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to broker", "error", err)
		}
		defer broker.Close()

		go func() {
			if err := broker.Consume(ctx, duplicateSvc.IngestPayload, logr); err != nil && !errors.Is(err, context.Canceled) {
				logr.Error("alert consumer stopped", zap.Error(err))
			}
		}()
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}

// authRepo joins the user and audit repositories behind the auth service's
// store interface.
type authRepo struct {
	*repository.UserRepository
	*repository.AuditRepository
}
