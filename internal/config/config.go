// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Drive     DriveConfig     `mapstructure:"drive"`
	Crawl     CrawlConfig     `mapstructure:"crawl"`
	Store     StoreConfig     `mapstructure:"store"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                int `mapstructure:"port"`
	ReadTimeoutSeconds  int `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int `mapstructure:"write_timeout_seconds"`
}

// DriveConfig points at the remote photo store and its batch endpoint.
type DriveConfig struct {
	BaseURL          string `mapstructure:"base_url"`
	AccessToken      string `mapstructure:"access_token"`
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	MaxRetries       int    `mapstructure:"max_retries"`
	RetryDelaySecond int    `mapstructure:"retry_delay_seconds"`
}

// CrawlConfig governs the index crawl.
type CrawlConfig struct {
	// RefreshMinutes is how often a finished index is re-crawled.
	// Zero means crawl once and serve.
	RefreshMinutes       int `mapstructure:"refresh_minutes"`
	ThrottleDelaySeconds int `mapstructure:"throttle_delay_seconds"`
}

// StoreConfig selects the local document store backing warm starts.
type StoreConfig struct {
	// Driver is "sqlite" or "memory".
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// RateLimitConfig bounds query traffic on the HTTP API.
type RateLimitConfig struct {
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PHOTOMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// AutomaticEnv only surfaces keys viper already knows about, so
	// required keys without a real default still get registered here.
	v.SetDefault("drive.base_url", "")
	v.SetDefault("drive.access_token", "")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 30)
	v.SetDefault("drive.timeout_seconds", 30)
	v.SetDefault("drive.max_retries", 0)
	v.SetDefault("drive.retry_delay_seconds", 5)
	v.SetDefault("crawl.refresh_minutes", 0)
	v.SetDefault("crawl.throttle_delay_seconds", 30)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "photomap.db")
	v.SetDefault("rate_limit.per_second", 20)
	v.SetDefault("rate_limit.burst", 40)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Drive.BaseURL == "" {
		return fmt.Errorf("drive.base_url must be set")
	}
	if c.Drive.TimeoutSeconds <= 0 {
		return fmt.Errorf("drive.timeout_seconds must be > 0")
	}
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path must be set for the sqlite driver")
		}
	case "memory":
	default:
		return fmt.Errorf("store.driver must be sqlite or memory, got %q", c.Store.Driver)
	}
	if c.RateLimit.PerSecond <= 0 {
		return fmt.Errorf("rate_limit.per_second must be > 0")
	}
	return nil
}

// DriveTimeout is the per-call budget for remote store requests.
func (c Config) DriveTimeout() time.Duration {
	return time.Duration(c.Drive.TimeoutSeconds) * time.Second
}

// RetryDelay is the pause between retried batch calls.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.Drive.RetryDelaySecond) * time.Second
}

// ThrottleDelay is the pause after a throttled folder listing.
func (c Config) ThrottleDelay() time.Duration {
	return time.Duration(c.Crawl.ThrottleDelaySeconds) * time.Second
}

// RefreshInterval is how often the index is re-crawled, zero when the
// service crawls once.
func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.Crawl.RefreshMinutes) * time.Minute
}
