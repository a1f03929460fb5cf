package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"vorbereitung/api/internal/models"
	"vorbereitung/api/internal/repository"
	"vorbereitung/api/internal/service"
)

// adminUserResponse is the admin's view of an account. It carries more than
// the public projection (active bit, device limit, timestamps) but still
// never the password hash.
type adminUserResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Surname     string    `json:"surname"`
	Email       string    `json:"email"`
	Phone       *string   `json:"phone,omitempty"`
	Role        string    `json:"role"`
	IsActive    bool      `json:"is_active"`
	AccessB1    bool      `json:"access_b1"`
	AccessB2    bool      `json:"access_b2"`
	DeviceLimit int       `json:"device_limit"`
	CreatedAt   time.Time `json:"created_at"`
}

func adminUserView(user models.User) adminUserResponse {
	return adminUserResponse{
		ID:          user.ID,
		Name:        user.Name,
		Surname:     user.Surname,
		Email:       user.Email,
		Phone:       user.Phone,
		Role:        string(user.Role),
		IsActive:    user.IsActive,
		AccessB1:    user.AccessB1,
		AccessB2:    user.AccessB2,
		DeviceLimit: user.DeviceLimit,
		CreatedAt:   user.CreatedAt,
	}
}

func (h HandlerSet) AdminListUsers(c *gin.Context) {
	includePending := c.DefaultQuery("pending", "1") == "1"

	users, err := h.users.List(c.Request.Context(), includePending)
	if err != nil {
		h.log.Error().Err(err).Msg("list users failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}

	items := make([]adminUserResponse, 0, len(users))
	for _, u := range users {
		items = append(items, adminUserView(u))
	}
	c.JSON(http.StatusOK, gin.H{"users": items})
}

func (h HandlerSet) AdminListPendingUsers(c *gin.Context) {
	users, err := h.users.ListPending(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("list pending users failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}

	items := make([]adminUserResponse, 0, len(users))
	for _, u := range users {
		items = append(items, adminUserView(u))
	}
	c.JSON(http.StatusOK, gin.H{"users": items})
}

func (h HandlerSet) AdminGetUser(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user_not_found"})
			return
		}
		h.log.Error().Err(err).Msg("get user failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": adminUserView(user)})
}

type adminCreateUserRequest struct {
	Name        string `json:"name" binding:"required"`
	Surname     string `json:"surname" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	Phone       string `json:"phone"`
	Role        string `json:"role"`
	IsActive    *bool  `json:"is_active"`
	AccessB1    bool   `json:"access_b1"`
	AccessB2    bool   `json:"access_b2"`
	DeviceLimit int    `json:"device_limit"`
}

func (h HandlerSet) AdminCreateUser(c *gin.Context) {
	var req adminCreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Admin-created accounts default to active, unlike self-registration.
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	user, err := h.userService.AdminCreate(c.Request.Context(), service.AdminCreateInput{
		Name:        req.Name,
		Surname:     req.Surname,
		Email:       req.Email,
		Password:    req.Password,
		Phone:       req.Phone,
		Role:        models.UserRole(req.Role),
		IsActive:    isActive,
		AccessB1:    req.AccessB1,
		AccessB2:    req.AccessB2,
		DeviceLimit: req.DeviceLimit,
	})
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "email_already_registered"})
			return
		}
		h.log.Error().Err(err).Msg("create user failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": adminUserView(user)})
}

type adminUpdateUserRequest struct {
	Name        *string `json:"name"`
	Surname     *string `json:"surname"`
	Email       *string `json:"email" binding:"omitempty,email"`
	Phone       *string `json:"phone"`
	Role        *string `json:"role" binding:"omitempty,oneof=user admin"`
	IsActive    *bool   `json:"is_active"`
	AccessB1    *bool   `json:"access_b1"`
	AccessB2    *bool   `json:"access_b2"`
	DeviceLimit *int    `json:"device_limit" binding:"omitempty,min=1"`
}

func (h HandlerSet) AdminUpdateUser(c *gin.Context) {
	id := c.Param("id")

	var req adminUpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	upd := repository.UserUpdate{
		Name:        req.Name,
		Surname:     req.Surname,
		Phone:       req.Phone,
		IsActive:    req.IsActive,
		AccessB1:    req.AccessB1,
		AccessB2:    req.AccessB2,
		DeviceLimit: req.DeviceLimit,
	}
	if req.Email != nil {
		if other, err := h.users.FindByEmail(c.Request.Context(), *req.Email); err == nil && other.ID != id {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email_already_in_use"})
			return
		} else if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
			h.log.Error().Err(err).Msg("email lookup failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update_failed"})
			return
		}
		upd.Email = req.Email
	}
	if req.Role != nil {
		role := models.UserRole(*req.Role)
		upd.Role = &role
	}

	if upd.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no_data_to_update"})
		return
	}

	if err := h.users.Update(c.Request.Context(), id, upd); err != nil {
		h.sendAdminUpdateError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User updated successfully"})
}

func (h HandlerSet) AdminActivateUser(c *gin.Context) {
	h.setActive(c, true, "User activated")
}

func (h HandlerSet) AdminDeactivateUser(c *gin.Context) {
	h.setActive(c, false, "User deactivated")
}

func (h HandlerSet) setActive(c *gin.Context, active bool, message string) {
	upd := repository.UserUpdate{IsActive: &active}
	if err := h.users.Update(c.Request.Context(), c.Param("id"), upd); err != nil {
		h.sendAdminUpdateError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": message})
}

type accessRequest struct {
	AccessB1 *bool `json:"access_b1"`
	AccessB2 *bool `json:"access_b2"`
}

func (h HandlerSet) AdminSetAccess(c *gin.Context) {
	var req accessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.AccessB1 == nil && req.AccessB2 == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no_data_to_update"})
		return
	}

	upd := repository.UserUpdate{AccessB1: req.AccessB1, AccessB2: req.AccessB2}
	if err := h.users.Update(c.Request.Context(), c.Param("id"), upd); err != nil {
		h.sendAdminUpdateError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Access updated"})
}

type deviceLimitRequest struct {
	DeviceLimit int `json:"device_limit" binding:"required,min=1"`
}

func (h HandlerSet) AdminSetDeviceLimit(c *gin.Context) {
	var req deviceLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	upd := repository.UserUpdate{DeviceLimit: &req.DeviceLimit}
	if err := h.users.Update(c.Request.Context(), c.Param("id"), upd); err != nil {
		h.sendAdminUpdateError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Device limit updated"})
}

func (h HandlerSet) AdminDeleteUser(c *gin.Context) {
	if err := h.userService.AdminDelete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user_not_found"})
			return
		}
		h.log.Error().Err(err).Msg("delete user failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}

func (h HandlerSet) sendAdminUpdateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user_not_found"})
	case errors.Is(err, repository.ErrEmailTaken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "email_already_in_use"})
	default:
		h.log.Error().Err(err).Msg("user update failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update_failed"})
	}
}

func (h HandlerSet) AdminListSettings(c *gin.Context) {
	settings, err := h.settings.All(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("list settings failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

type maintenanceRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (h HandlerSet) AdminSetMaintenance(c *gin.Context) {
	var req maintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.settings.SetMaintenance(c.Request.Context(), *req.Enabled); err != nil {
		h.log.Error().Err(err).Msg("set maintenance failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update_failed"})
		return
	}

	h.log.Info().Bool("enabled", *req.Enabled).Msg("maintenance mode toggled")
	c.JSON(http.StatusOK, gin.H{"maintenance": *req.Enabled})
}

type logoutTimerRequest struct {
	Minutes int `json:"minutes" binding:"required,min=1"`
}

func (h HandlerSet) AdminSetLogoutTimer(c *gin.Context) {
	var req logoutTimerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.settings.SetLogoutTimer(c.Request.Context(), req.Minutes); err != nil {
		h.log.Error().Err(err).Msg("set logout timer failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"logout_timer": req.Minutes})
}
