package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"vorbereitung/api/internal/middleware"
	"vorbereitung/api/internal/service"
)

type profileRequest struct {
	Name    *string `json:"name"`
	Surname *string `json:"surname"`
	Email   *string `json:"email" binding:"omitempty,email"`
	Phone   *string `json:"phone"`
}

func (h HandlerSet) UpdateProfile(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication_required"})
		return
	}

	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.userService.UpdateProfile(c.Request.Context(), user.ID, service.ProfileUpdate{
		Name:    req.Name,
		Surname: req.Surname,
		Email:   req.Email,
		Phone:   req.Phone,
	})
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email_already_in_use"})
			return
		}
		h.log.Error().Err(err).Str("user_id", user.ID).Msg("profile update failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "profile_update_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Profile updated successfully",
		"user":    updated,
	})
}

type passwordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

func (h HandlerSet) UpdatePassword(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication_required"})
		return
	}

	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		c.JSON(http.StatusBadRequest, gin.H{"error": "passwords_do_not_match"})
		return
	}

	if err := h.userService.ChangePassword(c.Request.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, service.ErrWrongPassword) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "current_password_incorrect"})
			return
		}
		h.log.Error().Err(err).Str("user_id", user.ID).Msg("password change failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "password_change_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}
