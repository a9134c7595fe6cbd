package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/anonto42/nano-midea/socialgraph/internal/cache"
	"github.com/anonto42/nano-midea/socialgraph/internal/media"
	"github.com/anonto42/nano-midea/socialgraph/internal/metrics"
	"github.com/anonto42/nano-midea/socialgraph/internal/middleware"
	"github.com/anonto42/nano-midea/socialgraph/internal/migrations"
	"github.com/anonto42/nano-midea/socialgraph/internal/push"
	"github.com/anonto42/nano-midea/socialgraph/internal/repositories"
	"github.com/anonto42/nano-midea/socialgraph/internal/router"
	"github.com/anonto42/nano-midea/socialgraph/internal/services"
	"github.com/anonto42/nano-midea/socialgraph/pkg/config"
	"github.com/anonto42/nano-midea/socialgraph/pkg/firebase"
	"github.com/anonto42/nano-midea/socialgraph/pkg/logger"
	"github.com/anonto42/nano-midea/socialgraph/validators"
)

const (
	uploadFolder         = "socialgraph"
	limiterSweepInterval = 10 * time.Minute
	shutdownTimeout      = 10 * time.Second
)

func main() {
	// Load configuration
	cfg := config.Load()
	log := logger.New(cfg.Env, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connections
	db, err := config.InitDB(cfg, log)
	if err != nil {
		log.Fatalf("Failed to initialize databases: %v", err)
	}
	defer db.CloseDB()

	if err := migrations.Up(db.Postgres, log); err != nil {
		log.Fatalf("Failed to migrate PostgreSQL: %v", err)
	}
	sqlDB, err := db.Postgres.DB()
	if err != nil {
		log.Fatalf("Failed to get PostgreSQL handle: %v", err)
	}

	// Initialize Firebase
	firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	m := metrics.New()
	views := viewCache(ctx, cfg, db, log)
	uploader := imageUploader(cfg, log)

	store := repositories.NewPostgresStore(db.Postgres)
	notifications := services.NewNotificationService(store, push.NewFCMSender(firebaseApp.MessagingClient), m, log)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log)
	limiter.StartCleanup(ctx, limiterSweepInterval)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()
	config.SetupMiddleware(e, log, m.Middleware())

	router.SetupRoutes(e, router.Dependencies{
		Log:           log,
		DB:            sqlDB,
		Provider:      middleware.NewFirebaseVerifier(firebaseApp.AuthClient),
		Sessions:      middleware.NewSessionTokens(cfg.JWTSecret, cfg.SessionTTL),
		Limiter:       limiter,
		Uploader:      uploader,
		Identity:      services.NewIdentityService(store, log),
		Content:       services.NewContentService(store, notifications, views, m, log),
		Engagement:    services.NewEngagementService(store, notifications, views, m, log),
		Notifications: notifications,
		Profiles:      services.NewProfileService(store, views, m, log),
	})

	metricsServer := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.WithField("port", cfg.MetricsPort).Info("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server stopped")
		}
	}()

	// Start server
	go func() {
		log.WithField("port", cfg.Port).Info("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http server shutdown")
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("metrics server shutdown")
	}
}

func viewCache(ctx context.Context, cfg *config.Config, db *config.DB, log *logrus.Logger) cache.ViewCache {
	if db.Mongo == nil {
		return cache.Nop{}
	}
	mc := cache.NewMongoViewCache(db.Mongo.Database(cfg.MongoDatabase), cfg.ViewCacheTTL)
	if err := mc.EnsureIndexes(ctx); err != nil {
		log.WithError(err).Warn("view cache indexes not created, caching disabled")
		return cache.Nop{}
	}
	return mc
}

func imageUploader(cfg *config.Config, log *logrus.Logger) media.Uploader {
	if cfg.CloudinaryURL == "" {
		log.Warn("CLOUDINARY_URL not set, uploads disabled")
		return media.Disabled{}
	}
	u, err := media.NewCloudinaryUploader(cfg.CloudinaryURL, uploadFolder)
	if err != nil {
		log.WithError(err).Warn("Cloudinary not configured, uploads disabled")
		return media.Disabled{}
	}
	return u
}
