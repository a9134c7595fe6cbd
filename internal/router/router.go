package router

import (
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/anonto42/nano-midea/socialgraph/internal/handlers"
	"github.com/anonto42/nano-midea/socialgraph/internal/media"
	"github.com/anonto42/nano-midea/socialgraph/internal/middleware"
	"github.com/anonto42/nano-midea/socialgraph/internal/services"
)

// Dependencies are the wired components the routes are built from.
type Dependencies struct {
	Log      *logrus.Logger
	DB       handlers.Pinger
	Provider middleware.TokenVerifier
	Sessions *middleware.SessionTokens
	Limiter  *middleware.RateLimiter
	Uploader media.Uploader

	Identity      *services.IdentityService
	Content       *services.ContentService
	Engagement    *services.EngagementService
	Notifications *services.NotificationService
	Profiles      *services.ProfileService
}

// SetupRoutes configures all application routes
func SetupRoutes(e *echo.Echo, d Dependencies) {
	log := d.Log

	// Health check - always accessible
	e.GET("/health", handlers.NewHealthHandler(d.DB).HealthCheck)

	// --- Unprotected routes for authentication ---
	authGroup := e.Group("/api/v1/auth", d.Limiter.Middleware())
	handlers.NewAuthHandler(d.Provider, d.Identity, d.Sessions).RegisterAuthRoutes(authGroup)
	log.Info("Auth routes configured.")

	// --- Protected routes: session token or Firebase ID token ---
	api := e.Group("/api/v1",
		middleware.Authenticate(log, d.Sessions, d.Provider),
		middleware.BindIdentity(d.Identity),
		d.Limiter.Middleware(),
	)
	log.Info("Authentication middleware applied to /api/v1 group.")

	handlers.NewUserHandler(d.Profiles).RegisterProfileRoutes(api)
	log.Info("User profile routes configured.")

	handlers.NewPostHandler(d.Content).RegisterPostRoutes(api)
	handlers.NewFeedHandler(d.Content).RegisterFeedRoutes(api)
	log.Info("Post and feed routes configured.")

	handlers.NewCommentHandler(d.Content).RegisterCommentRoutes(api)
	log.Info("Comment routes configured.")

	handlers.NewLikeHandler(d.Engagement).RegisterLikeRoutes(api)
	handlers.NewFollowHandler(d.Engagement).RegisterFollowRoutes(api)
	log.Info("Like and follow routes configured.")

	handlers.NewNotificationHandler(d.Notifications).RegisterNotificationRoutes(api)
	handlers.NewDeviceHandler(d.Notifications).RegisterDeviceRoutes(api)
	log.Info("Notification routes configured.")

	handlers.NewUploadHandler(d.Uploader, log).RegisterUploadRoutes(api)
	log.Info("Upload routes configured.")

	log.Info("All routes configured.")
}
