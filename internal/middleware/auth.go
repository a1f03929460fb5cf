package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"vorbereitung/api/internal/config"
	"vorbereitung/api/internal/models"
)

// Context keys set by Auth for downstream handlers.
const (
	CtxUser         = "current_user"
	CtxSessionToken = "session_token"
)

type SessionSource interface {
	FindByToken(ctx context.Context, token string) (models.Session, error)
	UpdateActivity(ctx context.Context, token string) error
}

type UserSource interface {
	GetByID(ctx context.Context, id string) (models.User, error)
}

// Auth resolves the session cookie to a live session and its owner. The
// user is re-read from storage on every request so access flags and the
// active bit are always current.
func Auth(cfg *config.AppConfig, users UserSource, sessions SessionSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c, cfg.Auth.CookieName)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication_required"})
			return
		}

		session, err := sessions.FindByToken(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_session"})
			return
		}

		user, err := users.GetByID(c.Request.Context(), session.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_session"})
			return
		}

		if !user.IsActive {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account_inactive"})
			return
		}

		// Any authenticated request counts as activity.
		_ = sessions.UpdateActivity(c.Request.Context(), token)

		c.Set(CtxUser, user)
		c.Set(CtxSessionToken, token)

		c.Next()
	}
}

// CurrentUser returns the user loaded by Auth, if any.
func CurrentUser(c *gin.Context) (models.User, bool) {
	val, exists := c.Get(CtxUser)
	if !exists {
		return models.User{}, false
	}
	user, ok := val.(models.User)
	return user, ok
}

func extractToken(c *gin.Context, cookieName string) string {
	if token, err := c.Cookie(cookieName); err == nil && token != "" {
		return token
	}
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}
