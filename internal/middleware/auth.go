package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"smartcampus/api/internal/models"
	"smartcampus/api/internal/repository"
	"smartcampus/api/internal/security"
)

const (
	ContextUserKey   = "current_user"
	ContextClaimsKey = "session_claims"
)

// UserLookup resolves a session's username. A missing user must be reported
// as repository.ErrUserNotFound.
type UserLookup interface {
	FindByUsername(ctx context.Context, username string) (models.User, error)
}

// Authenticate requires a valid bearer session and loads its user from
// storage on every request, so role changes and deletions apply at once.
func Authenticate(issuer *security.SessionIssuer, users UserLookup, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		claims, err := issuer.Verify(tokenStr)
		if err != nil {
			reason := "invalid"
			if errors.Is(err, security.ErrSessionExpired) {
				reason = "expired"
			}
			log.Debug().Str("reason", reason).Str("path", c.FullPath()).Msg("session rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		user, err := users.FindByUsername(c.Request.Context(), claims.Username)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				log.Info().Str("username", claims.Username).Msg("session for missing user")
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "user_not_found"})
				return
			}
			log.Error().Err(err).Msg("load session user failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
			return
		}

		c.Set(ContextClaimsKey, claims)
		c.Set(ContextUserKey, user)

		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// CurrentUser returns the user stored by Authenticate.
func CurrentUser(c *gin.Context) (models.User, bool) {
	val, exists := c.Get(ContextUserKey)
	if !exists {
		return models.User{}, false
	}
	user, ok := val.(models.User)
	return user, ok
}
