package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smartcampus/api/internal/models"
)

// RequireRoles must run after Authenticate. The role is taken from the user
// row Authenticate loaded, never from the token.
func RequireRoles(roles ...models.RoleID) gin.HandlerFunc {
	roleSet := make(map[models.RoleID]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role] = struct{}{}
	}

	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		if _, ok := roleSet[user.Role.ID]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		c.Next()
	}
}
