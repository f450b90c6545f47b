package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meter-capture-agent/config"
	"meter-capture-agent/internal/settings"
	"meter-capture-agent/internal/store"
)

func newService(t *testing.T, handler http.HandlerFunc) (*Service, *settings.Service, *int32) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	kv := store.NewKV(store.NewMemoryStorage())
	st := settings.NewService(kv, config.DefaultsConfig{}, nil)
	svc := NewService(config.DiscoveryConfig{
		Enabled: true,
		URL:     server.URL,
		TTL:     12 * time.Hour,
		Timeout: time.Second,
	}, kv, st)
	return svc, st, &hits
}

func TestDiscover_NestedSettingsAndCache(t *testing.T) {
	svc, st, hits := newService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Write([]byte(`{"settings":{"webhook":"https://server.example/upload","team":"East"}}`))
	})
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	res := svc.Discover(context.Background())
	assert.Equal(t, Result{OK: true}, res)
	assert.Equal(t, "https://server.example/upload", st.Endpoint())
	assert.Equal(t, "East", st.Team())

	now = now.Add(11 * time.Hour)
	res = svc.Discover(context.Background())
	assert.Equal(t, Result{OK: true, Cached: true}, res)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))

	now = now.Add(2 * time.Hour)
	res = svc.Discover(context.Background())
	assert.Equal(t, Result{OK: true}, res)
	assert.Equal(t, int32(2), atomic.LoadInt32(hits))
}

func TestDiscover_BareObject(t *testing.T) {
	svc, st, _ := newService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"webhookUrl":"https://bare.example/in"}`))
	})

	require.True(t, svc.Discover(context.Background()).OK)
	assert.Equal(t, "https://bare.example/in", st.Endpoint())
}

func TestDiscover_FailuresAreNotFatal(t *testing.T) {
	testCases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{name: "server error", handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) }},
		{name: "not json", handler: func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("<html>")) }},
		{name: "null body", handler: func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("null")) }},
		{name: "too slow", handler: func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(3 * time.Second):
			}
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc, st, _ := newService(t, tc.handler)
			svc.cfg.Timeout = 100 * time.Millisecond

			assert.Equal(t, Result{}, svc.Discover(context.Background()))
			assert.Equal(t, "", st.Endpoint())

			var cached cacheEntry
			assert.False(t, svc.kv.Get(CacheKey, &cached))
		})
	}
}
