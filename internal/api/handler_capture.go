package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"meter-capture-agent/internal/capture"
	"meter-capture-agent/internal/model"
)

// PostRecord runs the submission path for one capture form.
func (h *Handler) PostRecord(c *gin.Context) {
	var form model.Form
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c)
		return
	}

	res, err := h.Capture.Submit(c.Request.Context(), form, c.Request.UserAgent())
	if err != nil {
		var verr *capture.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": verr.Error(), "fields": verr.Fields})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": res, "kpis": h.kpis()})
}

// GetDraft returns the current actor's draft, or null.
func (h *Handler) GetDraft(c *gin.Context) {
	form, ok := h.Capture.LoadDraft()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"draft": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"draft": form})
}

// PutDraft stores the in-progress form.
func (h *Handler) PutDraft(c *gin.Context) {
	var form model.Form
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"draft": h.Capture.SaveDraft(form)})
}

// DeleteDraft discards the draft.
func (h *Handler) DeleteDraft(c *gin.Context) {
	h.Capture.ResetDraft()
	c.Status(http.StatusNoContent)
}

type gpsRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
	Accuracy  float64  `json:"accuracy"`
}

// PutGPS records the last position fix reported by the browser.
func (h *Handler) PutGPS(c *gin.Context) {
	var req gpsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	fix := h.Capture.SetGPS(model.GPSFix{
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		Accuracy:  req.Accuracy,
	})
	c.JSON(http.StatusOK, fix)
}
