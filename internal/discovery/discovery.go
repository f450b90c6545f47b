// Package discovery fetches device settings from the startup endpoint.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"meter-capture-agent/config"
	"meter-capture-agent/internal/model"
	"meter-capture-agent/internal/store"
)

// CacheKey is the global key of the last discovery answer.
var CacheKey = store.Global("__discovery_cache__")

// Merger applies server-provided settings.
type Merger interface {
	Merge(server map[string]any) model.Settings
}

// Result reports how a discovery run ended.
type Result struct {
	OK     bool `json:"ok"`
	Cached bool `json:"cached"`
}

type cacheEntry struct {
	Timestamp time.Time      `json:"ts"`
	Settings  map[string]any `json:"settings"`
}

// Service performs discovery and caches the answer for a fixed TTL.
type Service struct {
	cfg      config.DiscoveryConfig
	kv       *store.KV
	settings Merger
	client   *http.Client
	now      func() time.Time
}

// NewService creates a discovery service.
func NewService(cfg config.DiscoveryConfig, kv *store.KV, settings Merger) *Service {
	return &Service{
		cfg:      cfg,
		kv:       kv,
		settings: settings,
		client:   &http.Client{Timeout: cfg.Timeout},
		now:      time.Now,
	}
}

// Run performs one discovery if enabled. It is meant to be started in the background at startup.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled || s.cfg.URL == "" {
		log.Println("Discovery is disabled. Not starting.")
		return
	}
	res := s.Discover(ctx)
	log.WithFields(log.Fields{"ok": res.OK, "cached": res.Cached}).Info("discovery finished")
}

// Discover merges cached settings when the cache is fresh, and otherwise
// fetches them. Failures leave settings untouched and report OK=false.
func (s *Service) Discover(ctx context.Context) Result {
	now := s.now()

	var cached cacheEntry
	if s.kv.Get(CacheKey, &cached) && cached.Settings != nil && !cached.Timestamp.IsZero() && now.Sub(cached.Timestamp) < s.cfg.TTL {
		s.settings.Merge(cached.Settings)
		return Result{OK: true, Cached: true}
	}

	server, err := s.fetch(ctx)
	if err != nil {
		log.Printf("Discovery failed: %v", err)
		return Result{}
	}
	s.settings.Merge(server)
	s.kv.Set(CacheKey, cacheEntry{Timestamp: now, Settings: server})
	return Result{OK: true}
}

func (s *Service) fetch(ctx context.Context) (map[string]any, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("received non-2xx status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal discovery response: %w", err)
	}
	if data == nil {
		return nil, fmt.Errorf("discovery response carried no settings")
	}
	if nested, ok := data["settings"].(map[string]any); ok {
		return nested, nil
	}
	return data, nil
}
