package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"smartcampus/api/internal/config"
	"smartcampus/api/internal/middleware"
	"smartcampus/api/internal/models"
	"smartcampus/api/internal/security"
	"smartcampus/api/internal/service"
)

// HealthCheck reports whether one backing service is reachable.
type HealthCheck func(ctx context.Context) error

type Dependencies struct {
	Auth       *service.AuthService
	Admin      *service.UserService
	Sessions   *security.SessionIssuer
	UserLookup middleware.UserLookup
	Checks     map[string]HealthCheck
}

type HandlerSet struct {
	log        zerolog.Logger
	cfg        *config.AppConfig
	auth       *service.AuthService
	admin      *service.UserService
	sessions   *security.SessionIssuer
	userLookup middleware.UserLookup
	checks     map[string]HealthCheck
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, deps Dependencies) HandlerSet {
	registerValidators()

	return HandlerSet{
		log:        log,
		cfg:        cfg,
		auth:       deps.Auth,
		admin:      deps.Admin,
		sessions:   deps.Sessions,
		userLookup: deps.UserLookup,
		checks:     deps.Checks,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authenticate := middleware.Authenticate(h.sessions, h.userLookup, h.log)

	v1 := router.Group("/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/register", h.RegisterUser)
		auth.POST("/login", h.Login)
		auth.POST("/verify-email", h.VerifyEmail)
		auth.POST("/verify-email/resend", h.ResendVerification)
		auth.POST("/forgot-password", h.ForgotPassword)
		auth.POST("/reset-password", h.ResetPassword)

		protected := v1.Group("/auth")
		protected.Use(authenticate)
		protected.GET("/me", h.Me)
	}

	admin := v1.Group("/admin")
	admin.Use(
		authenticate,
		middleware.RequireRoles(models.RoleAdmin),
	)
	admin.GET("", h.AdminStatus)
	admin.GET("/users", h.AdminListUsers)
	admin.GET("/users/count", h.AdminCountUsers)
	admin.PUT("/users/:id", h.AdminUpdateUser)
	admin.DELETE("/users/:id", h.AdminDeleteUser)
}

// writeError is the only place service errors become HTTP statuses.
func (h HandlerSet) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": err.Error()})
	case errors.Is(err, service.ErrInvalidToken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_token"})
	case errors.Is(err, service.ErrExpired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "token_expired"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user_not_found"})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict"})
	case errors.Is(err, service.ErrTooManyAttempts):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too_many_attempts"})
	default:
		_ = c.Error(err)
		h.log.Error().Err(err).Str("route", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
	}
}

func bindJSON(c *gin.Context, out any) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"details": describeBindError(err),
		})
		return false
	}
	return true
}
