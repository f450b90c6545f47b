package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"meter-capture-agent/config"
	"meter-capture-agent/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(deps Deps, cfg config.ServerConfig) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(deps)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, cfg.RequestIPHeader)

	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(ttl, 2*ttl)
	caching := mw.Cache(cacheStore, ttl)

	api := r.Group("/api")
	api.Use(mw.Invalidate(cacheStore))

	// UI bookkeeping: polled or written on every edit, never rate limited.
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
		api.GET("/session", handler.GetSession)

		api.GET("/draft", handler.GetDraft)
		api.PUT("/draft", handler.PutDraft)
		api.DELETE("/draft", handler.DeleteDraft)
		api.PUT("/gps", handler.PutGPS)

		api.GET("/kpis", handler.GetKPIs)
		api.POST("/connectivity", handler.PostConnectivity)
		api.GET("/notifications", handler.GetNotifications)
	}

	limited := api.Group("", rateLimiter)
	{
		limited.POST("/session", handler.Login)
		limited.DELETE("/session", handler.Logout)
		limited.GET("/users", handler.ListUsers)
		limited.POST("/users", handler.CreateUser)
		limited.DELETE("/users/:username", handler.DeleteUser)

		limited.POST("/records", handler.PostRecord)

		limited.GET("/outbox", handler.GetOutbox)
		limited.DELETE("/outbox", handler.ClearOutbox)
		limited.POST("/outbox/sync", handler.SyncOutbox)
		limited.GET("/outbox/export", handler.ExportOutbox)
		limited.GET("/ledger", handler.GetLedger)

		limited.GET("/settings", handler.GetSettings)
		limited.PUT("/settings", handler.PutSettings)
		limited.GET("/catalog", caching, handler.GetCatalog)
		limited.POST("/catalog/:kind", handler.AddCatalogEntry)
		limited.DELETE("/catalog/:kind/:index", handler.RemoveCatalogEntry)

		limited.GET("/subscriptions", handler.GetSubscription)
		limited.PUT("/subscriptions", handler.PutSubscription)
		limited.DELETE("/subscriptions", handler.DeleteSubscription)
		limited.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
