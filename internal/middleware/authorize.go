package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vorbereitung/api/internal/models"
)

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication_required"})
			return
		}
		if user.Role != models.UserRoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin_access_required"})
			return
		}

		c.Next()
	}
}
