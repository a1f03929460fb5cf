package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"vorbereitung/api/internal/models"
)

type MaintenanceChecker interface {
	MaintenanceActive(ctx context.Context) (bool, error)
}

// Maintenance blocks non-admin traffic while the flag is set. The flag is
// re-read from storage on every request, so toggling it off restores
// access immediately. Routes that must stay reachable (maintenance status,
// admin login, health) simply don't carry this middleware.
func Maintenance(settings MaintenanceChecker, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		active, err := settings.MaintenanceActive(c.Request.Context())
		if err != nil {
			// Fail open: a broken settings read shouldn't lock everyone out.
			log.Error().Err(err).Msg("maintenance flag read failed")
			c.Next()
			return
		}
		if !active {
			c.Next()
			return
		}

		if user, ok := CurrentUser(c); ok && user.Role == models.UserRoleAdmin {
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "maintenance_mode"})
	}
}
