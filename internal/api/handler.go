package api

import (
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"meter-capture-agent/internal/auth"
	"meter-capture-agent/internal/capture"
	"meter-capture-agent/internal/connectivity"
	"meter-capture-agent/internal/delivery"
	"meter-capture-agent/internal/identity"
	"meter-capture-agent/internal/ledger"
	"meter-capture-agent/internal/model"
	"meter-capture-agent/internal/notification"
	"meter-capture-agent/internal/outbox"
	"meter-capture-agent/internal/settings"
)

// Deps are the services the API exposes.
type Deps struct {
	Capture       *capture.Service
	Queue         *outbox.Queue
	Ledger        *ledger.Ledger
	Pump          *delivery.Pump
	Scoper        *identity.Scoper
	Auth          *auth.Client
	Settings      *settings.Service
	Observer      *connectivity.Observer
	Feed          *notification.Feed
	Subscriptions *notification.Subscriptions
	WebPush       *webpush.Options
	Location      *time.Location
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	Deps
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &Handler{Deps: deps}
}

// KPIs is the read model shown on the capture screen.
type KPIs struct {
	Queued        int    `json:"queued"`
	SentToday     int    `json:"sent_today"`
	Date          string `json:"date"`
	Online        bool   `json:"online"`
	OnlineKnown   bool   `json:"online_known"`
	Syncing       bool   `json:"syncing"`
	ConfirmUnload bool   `json:"confirm_unload"`
}

func (h *Handler) kpis() KPIs {
	queued := h.Queue.Count()
	return KPIs{
		Queued:        queued,
		SentToday:     h.Ledger.Today(),
		Date:          h.Ledger.TodayKey(),
		Online:        h.Observer.Online(),
		OnlineKnown:   h.Observer.Known(),
		Syncing:       h.Pump.Running(),
		ConfirmUnload: queued > 0,
	}
}

// GetKPIs returns queue depth and today's sent count for the current actor.
func (h *Handler) GetKPIs(c *gin.Context) {
	c.JSON(http.StatusOK, h.kpis())
}

// requireAdmin aborts with 403 unless the current actor is an admin.
func (h *Handler) requireAdmin(c *gin.Context) (*model.Actor, bool) {
	actor := h.Scoper.Current()
	if !actor.IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"error": settings.MsgAdminOnly})
		return nil, false
	}
	return actor, true
}

func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
}
