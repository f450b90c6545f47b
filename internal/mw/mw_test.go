package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRateLimiter_PerClientHeader(t *testing.T) {
	r := gin.New()
	r.Use(RateLimiter(rate.Limit(0.001), 1, "X-Forwarded-For"))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	do := func(client string) int {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-Forwarded-For", client+", 10.0.0.1")
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do("192.168.1.10"))
	assert.Equal(t, http.StatusTooManyRequests, do("192.168.1.10"))
	assert.Equal(t, http.StatusOK, do("192.168.1.11"))
}

func TestCache_HitMissAndInvalidate(t *testing.T) {
	store := cache.New(time.Minute, time.Minute)
	calls := 0

	r := gin.New()
	r.Use(Invalidate(store))
	r.GET("/catalog", Cache(store, time.Minute), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"calls": calls})
	})
	r.POST("/catalog", func(c *gin.Context) { c.Status(http.StatusCreated) })

	get := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/catalog", nil)
		r.ServeHTTP(w, req)
		return w
	}

	first := get()
	assert.Equal(t, "MISS", first.Header().Get(CacheStatusHeader))
	second := get()
	assert.Equal(t, "HIT", second.Header().Get(CacheStatusHeader))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "application/json; charset=utf-8", second.Header().Get("Content-Type"))
	assert.Equal(t, 1, calls)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/catalog", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)

	third := get()
	assert.Equal(t, "MISS", third.Header().Get(CacheStatusHeader))
	assert.Equal(t, 2, calls)
}
