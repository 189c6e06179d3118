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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/cems-project/cems-api/api/swagger"
	"github.com/cems-project/cems-api/internal/handler"
	"github.com/cems-project/cems-api/internal/middleware"
	"github.com/cems-project/cems-api/internal/models"
	"github.com/cems-project/cems-api/internal/repository"
	"github.com/cems-project/cems-api/internal/service"
	"github.com/cems-project/cems-api/pkg/cache"
	"github.com/cems-project/cems-api/pkg/config"
	"github.com/cems-project/cems-api/pkg/database"
	"github.com/cems-project/cems-api/pkg/export"
	"github.com/cems-project/cems-api/pkg/logger"
	"github.com/cems-project/cems-api/pkg/mailer"
	corsmiddleware "github.com/cems-project/cems-api/pkg/middleware/cors"
	reqidmiddleware "github.com/cems-project/cems-api/pkg/middleware/requestid"
	"github.com/cems-project/cems-api/pkg/storage"
)

// @title Campus Event Management API
// @version 1.0.0
// @description Event submission, multi-stage approvals, venue availability, registrations and certificates
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("redis connection failed", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	files, err := storage.NewLocalStorage(cfg.Certificates.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("certificate storage init failed", "error", err)
	}

	var notifier mailer.Notifier
	if cfg.SMTP.Host != "" {
		notifier = mailer.NewSMTPNotifier(cfg.SMTP)
	} else {
		logr.Warn("smtp not configured, notifications disabled")
		notifier = mailer.NopNotifier{}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher := service.NewNotificationDispatcher(notifier, cfg.Notify, logr)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	eventRepo := repository.NewEventRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	workflowRepo := repository.NewWorkflowRepository(db)
	venueRepo := repository.NewVenueRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)

	// Services.
	validate := validator.New()
	availabilitySvc := service.NewAvailabilityService(eventRepo, venueRepo, logr)
	eventSvc := service.NewEventService(eventRepo, departmentRepo, venueRepo, userRepo, availabilitySvc, validate, cfg.BaseURL, logr)
	approvalSvc := service.NewApprovalService(workflowRepo, approvalRepo, cfg.BaseURL, logr)
	registrationSvc := service.NewRegistrationService(registrationRepo, eventRepo, venueRepo, logr)
	signer := storage.NewSignedURLSigner(cfg.Certificates.SignedURLSecret, cfg.Certificates.SignedURLTTL)
	certificateSvc := service.NewCertificateService(registrationRepo, eventRepo, userRepo, venueRepo, export.NewCertificateRenderer(), files, signer, cfg.BaseURL, logr)
	authSvc := service.NewAuthService(userRepo, service.NewRedisOTPStore(redisClient), notifier, cfg.JWT, cfg.Guest, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc, userRepo)
	eventHandler := handler.NewEventHandler(eventSvc, approvalSvc, userRepo, dispatcher)
	approvalHandler := handler.NewApprovalHandler(approvalSvc, dispatcher)
	registrationHandler := handler.NewRegistrationHandler(registrationSvc, certificateSvc, userRepo)
	venueHandler := handler.NewVenueHandler(availabilitySvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics())

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
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", authHandler.Logout)
		auth.POST("/guest/otp", authHandler.GuestOTP)
		auth.POST("/guest/verify", authHandler.GuestVerify)
	}

	// Certificate downloads authenticate via the signed token in the URL.
	api.GET("/certificates/download", registrationHandler.DownloadCertificate)

	authed := api.Group("")
	authed.Use(middleware.Authentication(authSvc))
	{
		authed.GET("/auth/me", authHandler.Me)
		authed.PUT("/auth/password", authHandler.ChangePassword)

		authed.GET("/events", eventHandler.List)
		authed.GET("/events/:id", eventHandler.Get)
		authed.GET("/events/:id/approvals", eventHandler.Chain)

		authed.GET("/venues", venueHandler.List)
		authed.POST("/venues/availability", venueHandler.Availability)

		organizers := authed.Group("")
		organizers.Use(middleware.RequireRoles(models.RoleOrganizer, models.RoleAdmin))
		{
			organizers.POST("/events", eventHandler.Create)
			organizers.PUT("/events/:id", eventHandler.Update)
			organizers.GET("/events/:id/registrations", registrationHandler.ForEvent)
			organizers.POST("/events/:id/scan", registrationHandler.Scan)
		}

		approvers := authed.Group("")
		approvers.Use(middleware.RequireRoles(models.RoleHOD, models.RolePrincipal))
		{
			approvers.GET("/approvals/pending", approvalHandler.Pending)
			approvers.GET("/approvals/history", approvalHandler.History)
			approvers.POST("/events/:id/approve", approvalHandler.Approve)
			approvers.POST("/events/:id/reject", approvalHandler.Reject)
		}

		students := authed.Group("")
		students.Use(middleware.RequireRoles(models.RoleStudent, models.RoleGuest, models.RoleAdmin))
		{
			students.POST("/events/:id/register", registrationHandler.Register)
			students.GET("/registrations", registrationHandler.Mine)
			students.POST("/registrations/:id/certificate", registrationHandler.Certificate)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
