package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type connectivityRequest struct {
	Online *bool `json:"online" binding:"required"`
}

// PostConnectivity feeds a browser online/offline event into the observer.
func (h *Handler) PostConnectivity(c *gin.Context) {
	var req connectivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	changed := h.Observer.Set(*req.Online)
	c.JSON(http.StatusOK, gin.H{"changed": changed, "kpis": h.kpis()})
}

// GetNotifications returns recent messages, optionally only those after ?since=<RFC3339>.
func (h *Handler) GetNotifications(c *gin.Context) {
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be an RFC3339 timestamp"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": h.Feed.Since(since)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": h.Feed.Recent()})
}
