package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"meter-capture-agent/internal/delivery"
	"meter-capture-agent/internal/export"
)

// GetOutbox lists the queued payloads, oldest first.
func (h *Handler) GetOutbox(c *gin.Context) {
	items := h.Queue.List()
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// SyncOutbox runs one drain. The drain stops when the client goes away.
func (h *Handler) SyncOutbox(c *gin.Context) {
	silent := c.Query("silent") == "true"
	report := h.Pump.Drain(c.Request.Context(), delivery.DrainOptions{Silent: silent})
	c.JSON(http.StatusOK, gin.H{"report": report, "kpis": h.kpis()})
}

// ClearOutbox discards every queued payload of the current actor. It is
// refused while a drain is running.
func (h *Handler) ClearOutbox(c *gin.Context) {
	if h.Pump.Running() {
		c.JSON(http.StatusConflict, gin.H{"error": "sync in progress"})
		return
	}
	discarded := h.Queue.Count()
	h.Queue.Clear()
	log.WithFields(log.Fields{"namespace": h.Queue.Namespace().String(), "discarded": discarded}).Warn("outbox cleared")
	c.JSON(http.StatusOK, gin.H{"discarded": discarded, "kpis": h.kpis()})
}

// GetLedger returns the per-day sent counts of the current actor.
func (h *Handler) GetLedger(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"days": h.Ledger.All(), "today": h.Ledger.TodayKey()})
}

var renderOutbox = export.WriteOutbox

// ExportOutbox downloads the outbox as a spreadsheet.
func (h *Handler) ExportOutbox(c *gin.Context) {
	var buf bytes.Buffer
	if err := renderOutbox(&buf, h.Queue.List(), h.Location); err != nil {
		log.WithError(err).Error("outbox export failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}

	filename := fmt.Sprintf("outbox-%s.xlsx", h.Ledger.TodayKey())
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}
