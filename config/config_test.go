package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
database:
  driver: postgres
  dsn: host=db
capture:
  timezone: UTC
  sync_delay_ms: 250
  send_timeout_seconds: 3
defaults:
  webhook: https://hooks.example/in
discovery:
  enabled: true
  url: https://cfg.example/settings
  ttl_hours: 1
worker_pool:
  size: 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "host=db", cfg.Database.DSN)
	assert.Equal(t, 250*time.Millisecond, cfg.Capture.SyncDelay)
	assert.Equal(t, 3*time.Second, cfg.Capture.SendTimeout)
	assert.Equal(t, "https://hooks.example/in", cfg.Defaults.Webhook)
	assert.True(t, cfg.Discovery.Enabled)
	assert.Equal(t, time.Hour, cfg.Discovery.TTL)
	assert.Equal(t, 8*time.Second, cfg.Discovery.Timeout)
	assert.Equal(t, 3, cfg.WorkerPool.Size)
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8787, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "data/capture.db", cfg.Database.DSN)
	assert.Equal(t, DefaultTimezone, cfg.Capture.Timezone)
	assert.Equal(t, 2*time.Second, cfg.Capture.SyncDelay)
	assert.Zero(t, cfg.Capture.SendTimeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.Capture.NotifyThrottle)
	assert.Equal(t, 50, cfg.Capture.FeedSize)
	assert.Equal(t, 12*time.Hour, cfg.Discovery.TTL)
	assert.Equal(t, 30*time.Second, cfg.Connectivity.Interval)
	assert.Equal(t, 1, cfg.WorkerPool.Size)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Push.Enabled())
}

func TestNegativeSyncDelayDisablesPacing(t *testing.T) {
	cfg, err := Load(writeConfig(t, "capture:\n  sync_delay_ms: -1\n"))
	require.NoError(t, err)
	assert.Zero(t, cfg.Capture.SyncDelay)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CAPTURE_DATABASE_DSN", "/tmp/other.db")
	t.Setenv("CAPTURE_DELIVERY_WEBHOOK", "https://env.example/in")
	t.Setenv("CAPTURE_VAPID_PUBLIC_KEY", "pub")
	t.Setenv("CAPTURE_VAPID_PRIVATE_KEY", "priv")

	cfg, err := Load(writeConfig(t, "database:\n  dsn: ignored.db\n"))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/other.db", cfg.Database.DSN)
	assert.Equal(t, "https://env.example/in", cfg.Defaults.Webhook)
	assert.True(t, cfg.Push.Enabled())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeConfig(t, "server: [not, a, map]\n"))
	assert.Error(t, err)
}

func TestLocation(t *testing.T) {
	assert.Equal(t, time.UTC, CaptureConfig{Timezone: "Not/AZone"}.Location())
	assert.Equal(t, "UTC", CaptureConfig{Timezone: "UTC"}.Location().String())
}
