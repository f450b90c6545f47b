package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefaultTimezone is the zone used for sent-ledger day buckets and payload metadata.
const DefaultTimezone = "Africa/Johannesburg"

// Config represents the overall application configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Capture      CaptureConfig      `yaml:"capture"`
	Defaults     DefaultsConfig     `yaml:"defaults"`
	Discovery    DiscoveryConfig    `yaml:"discovery"`
	Connectivity ConnectivityConfig `yaml:"connectivity"`
	Push         PushConfig         `yaml:"push"`
	WorkerPool   WorkerPoolConfig   `yaml:"worker_pool"`
	Log          LogConfig          `yaml:"log"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the durable store connection configuration.
// Driver is "sqlite" (DSN is a file path) or "postgres".
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// CaptureConfig tunes the submission path and the delivery pump.
type CaptureConfig struct {
	Timezone           string        `yaml:"timezone"`
	SyncDelayMillis    int           `yaml:"sync_delay_ms"`
	SyncDelay          time.Duration `yaml:"-"`
	SendTimeoutSeconds int           `yaml:"send_timeout_seconds"`
	SendTimeout        time.Duration `yaml:"-"`
	NotifyThrottleMs   int           `yaml:"notify_throttle_ms"`
	NotifyThrottle     time.Duration `yaml:"-"`
	FeedSize           int           `yaml:"feed_size"`
}

// DefaultsConfig lists the webhook URLs used until an admin or the discovery service overrides them.
type DefaultsConfig struct {
	Webhook           string `yaml:"webhook"`
	AuthWebhook       string `yaml:"auth_webhook"`
	CreateUserWebhook string `yaml:"create_user_webhook"`
}

// DiscoveryConfig points at the startup endpoint that hands out settings.
type DiscoveryConfig struct {
	Enabled        bool          `yaml:"enabled"`
	URL            string        `yaml:"url"`
	TTLHours       int           `yaml:"ttl_hours"`
	TTL            time.Duration `yaml:"-"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	Timeout        time.Duration `yaml:"-"`
}

// ConnectivityConfig holds the optional reachability prober settings.
type ConnectivityConfig struct {
	ProbeURL        string        `yaml:"probe_url"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"`
	TimeoutSeconds  int           `yaml:"timeout_seconds"`
	Timeout         time.Duration `yaml:"-"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are present.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// LogConfig selects the log level and output format ("text" or "json").
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadEnv reads a .env file into the process environment when one exists.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Debugf("no .env file loaded: %v", err)
	}
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyEnv() {
	if v := os.Getenv("CAPTURE_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("CAPTURE_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("CAPTURE_VAPID_PRIVATE_KEY"); v != "" {
		cfg.Push.PrivateKey = v
	}
	if v := os.Getenv("CAPTURE_VAPID_PUBLIC_KEY"); v != "" {
		cfg.Push.PublicKey = v
	}
	if v := os.Getenv("CAPTURE_DELIVERY_WEBHOOK"); v != "" {
		cfg.Defaults.Webhook = v
	}
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8787
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 20
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "data/capture.db"
	}

	if cfg.Capture.Timezone == "" {
		cfg.Capture.Timezone = DefaultTimezone
	}
	if cfg.Capture.SyncDelayMillis < 0 {
		cfg.Capture.SyncDelayMillis = 0
	} else if cfg.Capture.SyncDelayMillis == 0 {
		cfg.Capture.SyncDelayMillis = 2000
	}
	cfg.Capture.SyncDelay = time.Duration(cfg.Capture.SyncDelayMillis) * time.Millisecond
	if cfg.Capture.SendTimeoutSeconds > 0 {
		cfg.Capture.SendTimeout = time.Duration(cfg.Capture.SendTimeoutSeconds) * time.Second
	}
	if cfg.Capture.NotifyThrottleMs <= 0 {
		cfg.Capture.NotifyThrottleMs = 1500
	}
	cfg.Capture.NotifyThrottle = time.Duration(cfg.Capture.NotifyThrottleMs) * time.Millisecond
	if cfg.Capture.FeedSize <= 0 {
		cfg.Capture.FeedSize = 50
	}

	if cfg.Discovery.TTLHours <= 0 {
		cfg.Discovery.TTLHours = 12
	}
	cfg.Discovery.TTL = time.Duration(cfg.Discovery.TTLHours) * time.Hour
	if cfg.Discovery.TimeoutSeconds <= 0 {
		cfg.Discovery.TimeoutSeconds = 8
	}
	cfg.Discovery.Timeout = time.Duration(cfg.Discovery.TimeoutSeconds) * time.Second

	if cfg.Connectivity.IntervalSeconds <= 0 {
		cfg.Connectivity.IntervalSeconds = 30
	}
	cfg.Connectivity.Interval = time.Duration(cfg.Connectivity.IntervalSeconds) * time.Second
	if cfg.Connectivity.TimeoutSeconds <= 0 {
		cfg.Connectivity.TimeoutSeconds = 5
	}
	cfg.Connectivity.Timeout = time.Duration(cfg.Connectivity.TimeoutSeconds) * time.Second

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// Location resolves the capture timezone, falling back to UTC when it is unknown.
func (c CaptureConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("unknown capture timezone %q, using UTC: %v", c.Timezone, err)
		return time.UTC
	}
	return loc
}

// SetupLogger applies the configured level and format to the standard logrus logger.
func SetupLogger(cfg LogConfig) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.Printf("invalid log level %q, using info", cfg.Level)
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	log.SetOutput(os.Stdout)
}
