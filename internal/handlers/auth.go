package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"vorbereitung/api/internal/middleware"
	"vorbereitung/api/internal/service"
)

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Surname  string `json:"surname" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Phone    string `json:"phone"`
}

func (h HandlerSet) RegisterUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.authService.Register(c.Request.Context(), service.RegisterInput{
		Name:     req.Name,
		Surname:  req.Surname,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
	})
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "email_already_registered"})
			return
		}
		h.log.Error().Err(err).Msg("registration failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Registration successful. Your account is pending admin approval.",
		"user":    user,
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h HandlerSet) Login(c *gin.Context) {
	h.handleLogin(c, h.authService.Login)
}

func (h HandlerSet) AdminLogin(c *gin.Context) {
	h.handleLogin(c, h.authService.AdminLogin)
}

func (h HandlerSet) handleLogin(c *gin.Context, login func(ctx context.Context, input service.LoginInput) (service.LoginResult, error)) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := login(c.Request.Context(), service.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	})
	if err != nil {
		h.sendLoginError(c, err)
		return
	}

	h.setSessionCookie(c, result.Token)
	c.JSON(http.StatusOK, gin.H{"user": result.User})
}

// sendLoginError maps workflow reason codes to client responses. The
// message for bad credentials stays generic: the caller can't learn
// whether the email exists.
func (h HandlerSet) sendLoginError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too_many_attempts"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
	case errors.Is(err, service.ErrPendingApproval):
		c.JSON(http.StatusForbidden, gin.H{"error": "pending_approval"})
	case errors.Is(err, service.ErrDeviceLimitExceeded):
		c.JSON(http.StatusForbidden, gin.H{"error": "device_limit_exceeded"})
	default:
		h.log.Error().Err(err).Msg("login failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login_failed"})
	}
}

func (h HandlerSet) Logout(c *gin.Context) {
	token, _ := c.Cookie(h.cfg.Auth.CookieName)

	if err := h.authService.Logout(c.Request.Context(), token); err != nil {
		h.log.Error().Err(err).Msg("logout failed")
	}

	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (h HandlerSet) CheckSession(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication_required"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"user":          service.Project(user),
	})
}

// Ping extends the session: the auth middleware already refreshed
// last_activity for this request.
func (h HandlerSet) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Activity updated"})
}

func (h HandlerSet) setSessionCookie(c *gin.Context, token string) {
	c.SetCookie(h.cfg.Auth.CookieName, token, 0, "/", "", h.cfg.Auth.CookieSecure, true)
}

func (h HandlerSet) clearSessionCookie(c *gin.Context) {
	c.SetCookie(h.cfg.Auth.CookieName, "", -1, "/", "", h.cfg.Auth.CookieSecure, true)
}
