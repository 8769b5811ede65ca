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

	_ "github.com/swimbuddz/academy-api/api/swagger"
	migrationfs "github.com/swimbuddz/academy-api/db"
	"github.com/swimbuddz/academy-api/internal/clients"
	"github.com/swimbuddz/academy-api/internal/events"
	"github.com/swimbuddz/academy-api/internal/handler"
	"github.com/swimbuddz/academy-api/internal/middleware"
	"github.com/swimbuddz/academy-api/internal/models"
	"github.com/swimbuddz/academy-api/internal/repository"
	"github.com/swimbuddz/academy-api/internal/service"
	rediscache "github.com/swimbuddz/academy-api/pkg/cache"
	"github.com/swimbuddz/academy-api/pkg/config"
	"github.com/swimbuddz/academy-api/pkg/database"
	"github.com/swimbuddz/academy-api/pkg/export"
	"github.com/swimbuddz/academy-api/pkg/logger"
	corsmiddleware "github.com/swimbuddz/academy-api/pkg/middleware/cors"
	reqidmiddleware "github.com/swimbuddz/academy-api/pkg/middleware/requestid"
)

// @title SwimBuddz Academy API
// @version 1.0.0
// @description Cohort enrollment, coach assignment and payout engine
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

	if cfg.Database.Migrate {
		if err := database.Migrate(db, migrationfs.Migrations); err != nil {
			logr.Sugar().Fatalw("failed to apply migrations", "error", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Repositories.
	programRepo := repository.NewProgramRepository(db)
	cohortRepo := repository.NewCohortRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)
	userRepo := repository.NewUserRepository(db)

	// Collaborator clients.
	directoryClient := clients.NewDirectoryClient(cfg.Clients, logr)
	paymentsClient := clients.NewPaymentsClient(cfg.Clients, logr)
	notificationsClient := clients.NewNotificationsClient(cfg.Clients, logr)
	sessionsClient := clients.NewSessionsClient(cfg.Clients, logr)

	publisher := events.NewPublisher(notificationsClient, cfg.Events, logr)
	publisher.Start(ctx)
	defer publisher.Stop()

	metricsService := service.NewMetricsService()

	cacheService := newCacheService(cfg, metricsService, logr)

	validate := validator.New()

	scoringCfg := models.DefaultScoringConfig()
	payoutCfg := models.DefaultPayoutConfig()
	payoutCfg.BlockWeeks = cfg.Billing.BlockWeeks

	scoringService := service.NewScoringService(scoringCfg, validate, logr)
	programService := service.NewProgramService(programRepo, validate, logr)
	cohortService := service.NewCohortService(cohortRepo, programRepo, scoringService, publisher, cacheService, validate, logr)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, programRepo, directoryClient, paymentsClient, publisher, cacheService, validate, logr).
		WithMetrics(metricsService)
	assignmentService := service.NewAssignmentService(assignmentRepo, cohortRepo, programRepo, directoryClient, validate, logr)
	payoutService := service.NewPayoutService(payoutRepo, enrollmentRepo, assignmentRepo, cohortRepo, programRepo, scoringCfg, payoutCfg, publisher, logr).
		WithMetrics(metricsService)
	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	exportService := service.NewExportService(payoutRepo, export.NewCSVExporter(), export.NewPDFExporter(), logr)
	dashboardService := service.NewDashboardService(assignmentRepo, payoutService, sessionsClient, cacheService, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authService)
	programHandler := handler.NewProgramHandler(programService)
	cohortHandler := handler.NewCohortHandler(cohortService, scoringService)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentService)
	assignmentHandler := handler.NewAssignmentHandler(assignmentService)
	payoutHandler := handler.NewPayoutHandler(payoutService, exportService)
	dashboardHandler := handler.NewDashboardHandler(dashboardService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)

	authed := api.Group("", middleware.JWT(authService))
	authed.POST("/auth/logout", authHandler.Logout)

	admin := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleCoach)

	authed.GET("/programs", programHandler.List)
	authed.GET("/programs/:id", programHandler.Get)
	authed.POST("/programs", admin, programHandler.Create)
	authed.PUT("/programs/:id", admin, programHandler.Update)

	authed.GET("/cohorts", cohortHandler.List)
	authed.GET("/cohorts/:id", cohortHandler.Get)
	authed.POST("/cohorts", admin, cohortHandler.Create)
	authed.PUT("/cohorts/:id", admin, cohortHandler.Update)
	authed.POST("/cohorts/:id/publish", admin, cohortHandler.Publish)
	authed.POST("/cohorts/:id/activate", admin, cohortHandler.Activate)
	authed.POST("/cohorts/:id/complete", admin, cohortHandler.Complete)
	authed.POST("/cohorts/:id/cancel", admin, cohortHandler.Cancel)
	authed.GET("/cohorts/:id/score", staff, cohortHandler.Score)
	authed.POST("/scoring/preview", admin, cohortHandler.Preview)

	authed.POST("/cohorts/:id/enrollments", middleware.RequireRoles(models.RoleAdmin, models.RoleMember), enrollmentHandler.Create)
	authed.GET("/cohorts/:id/enrollments", staff, enrollmentHandler.ListByCohort)
	authed.GET("/enrollments/:id", enrollmentHandler.Get)
	authed.POST("/enrollments/:id/approve", admin, enrollmentHandler.Approve)
	authed.POST("/enrollments/:id/drop", middleware.RequireRoles(models.RoleAdmin, models.RoleMember), enrollmentHandler.Drop)
	authed.POST("/enrollments/:id/graduate", staff, enrollmentHandler.Graduate)
	authed.GET("/enrollments/:id/waitlist-position", enrollmentHandler.WaitlistPosition)
	authed.POST("/enrollments/:id/payment-status", admin, enrollmentHandler.PaymentStatus)

	authed.POST("/cohorts/:id/coaches", admin, assignmentHandler.Assign)
	authed.GET("/cohorts/:id/coaches", staff, assignmentHandler.ListByCohort)
	authed.DELETE("/assignments/:id", admin, assignmentHandler.Remove)

	authed.POST("/cohorts/:id/payouts/:block", admin, payoutHandler.ComputeBlock)
	authed.GET("/cohorts/:id/payouts", staff, payoutHandler.ListByCohort)
	authed.GET("/coaches/:coachId/statement", middleware.RBAC(string(models.RoleAdmin), "SELF"), payoutHandler.Statement)
	authed.GET("/coaches/:coachId/dashboard", middleware.RBAC(string(models.RoleAdmin), "SELF"), dashboardHandler.Coach)

	if cfg.Billing.SweepEnabled {
		go runPayoutSweep(ctx, payoutService, cfg.Billing.SweepInterval, logr.Sugar())
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
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

// newCacheService wires Redis when caching is enabled. A missing Redis is a
// degraded start, not a fatal one.
func newCacheService(cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) *service.CacheService {
	if !cfg.Cache.Enabled {
		return service.NewCacheService(nil, metrics, cfg.Cache.CohortTTL, logr, false)
	}
	client, err := rediscache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		return service.NewCacheService(nil, metrics, cfg.Cache.CohortTTL, logr, false)
	}
	repo := repository.NewCacheRepository(client, logr)
	return service.NewCacheService(repo, metrics, cfg.Cache.CohortTTL, logr, true)
}

// runPayoutSweep periodically computes closed, uncomputed payout blocks.
func runPayoutSweep(ctx context.Context, payouts *service.PayoutService, interval time.Duration, logr *zap.SugaredLogger) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			computed, err := payouts.CloseDueBlocks(ctx)
			if err != nil {
				logr.Warnw("payout sweep failed", "error", err)
				continue
			}
			if computed > 0 {
				logr.Infow("payout sweep computed blocks", "count", computed)
			}
		}
	}
}
