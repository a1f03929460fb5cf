package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MaintenanceStatus is public so clients can show a banner before login.
// The flag is read from the database on every call, admin toggles take
// effect immediately.
func (h HandlerSet) MaintenanceStatus(c *gin.Context) {
	active, err := h.settings.MaintenanceActive(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("maintenance flag read failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status_unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"maintenance": active})
}
