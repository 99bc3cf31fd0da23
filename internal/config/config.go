// Package config loads and validates console configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Backend       BackendConfig       `mapstructure:"backend"`
	Geometry      GeometryConfig      `mapstructure:"geometry"`
	Map           MapConfig           `mapstructure:"map"`
	Selection     SelectionConfig     `mapstructure:"selection"`
	Poll          PollConfig          `mapstructure:"poll"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Exports       ExportsConfig       `mapstructure:"exports"`
	Events        EventsConfig        `mapstructure:"events"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Telemetry     TelemetryConfig     `mapstructure:"telemetry"`
	Keywords      []string            `mapstructure:"keywords"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// BackendConfig points at the extraction backend.
type BackendConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RequestsPerSec float64 `mapstructure:"requests_per_second"`
	Burst          int     `mapstructure:"burst"`
}

// GeometryConfig configures the department boundary download.
type GeometryConfig struct {
	URL            string `mapstructure:"url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
	MaxBodyBytes   int    `mapstructure:"max_body_bytes"`
}

// MapConfig holds the initial view handed to the map widget.
type MapConfig struct {
	CenterLat   float64 `mapstructure:"center_lat"`
	CenterLng   float64 `mapstructure:"center_lng"`
	Zoom        int     `mapstructure:"zoom"`
	TileURL     string  `mapstructure:"tile_url"`
	Attribution string  `mapstructure:"attribution"`
}

// SelectionConfig controls the predefined set and the automatic selection.
type SelectionConfig struct {
	Predefined        []string `mapstructure:"predefined"`
	AutoSelect        bool     `mapstructure:"auto_select"`
	AutoSelectDelayMs int      `mapstructure:"auto_select_delay_ms"`
	FallbackDelayMs   int      `mapstructure:"fallback_delay_ms"`
}

// PollConfig governs progress polling.
type PollConfig struct {
	IntervalMs         int `mapstructure:"interval_ms"`
	BackoffMaxMs       int `mapstructure:"backoff_max_ms"`
	MaxDurationMinutes int `mapstructure:"max_duration_minutes"`
}

// NotificationsConfig sets the toast lifetime.
type NotificationsConfig struct {
	TTLMs int `mapstructure:"ttl_ms"`
}

// ExportsConfig selects where downloaded exports are saved.
type ExportsConfig struct {
	Provider  string `mapstructure:"provider"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// EventsConfig controls job lifecycle event fan-out.
type EventsConfig struct {
	Provider       string `mapstructure:"provider"`
	ProjectID      string `mapstructure:"project_id"`
	Topic          string `mapstructure:"topic"`
	BufferSize     int    `mapstructure:"buffer_size"`
	MaxBatchEvents int    `mapstructure:"max_batch_events"`
	MaxBatchWaitMs int    `mapstructure:"max_batch_wait_ms"`
	LogEvents      bool   `mapstructure:"log_events"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// TelemetryConfig toggles the tracer provider.
type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CONSOLE")
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("backend.base_url", "http://localhost:8000")
	v.SetDefault("backend.timeout_seconds", 15)
	v.SetDefault("backend.requests_per_second", 5)
	v.SetDefault("backend.burst", 1)
	v.SetDefault("geometry.url",
		"https://raw.githubusercontent.com/gregoiredavid/france-geojson/master/departements.geojson")
	v.SetDefault("geometry.timeout_seconds", 20)
	v.SetDefault("geometry.user_agent", "boamp-console/0.1")
	v.SetDefault("geometry.max_body_bytes", 32<<20)
	v.SetDefault("map.center_lat", 46.603354)
	v.SetDefault("map.center_lng", 1.888334)
	v.SetDefault("map.zoom", 6)
	v.SetDefault("map.tile_url", "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png")
	v.SetDefault("map.attribution", "© OpenStreetMap contributors")
	v.SetDefault("selection.predefined", []string{"75", "77", "78", "91", "92", "93", "94", "95"})
	v.SetDefault("selection.auto_select", true)
	v.SetDefault("selection.auto_select_delay_ms", 500)
	v.SetDefault("selection.fallback_delay_ms", 100)
	v.SetDefault("poll.interval_ms", 2000)
	v.SetDefault("poll.backoff_max_ms", 30000)
	v.SetDefault("poll.max_duration_minutes", 360)
	v.SetDefault("notifications.ttl_ms", 3000)
	v.SetDefault("exports.provider", "local")
	v.SetDefault("exports.base_dir", "exports")
	v.SetDefault("exports.prefix", "boamp")
	v.SetDefault("events.provider", "none")
	v.SetDefault("events.topic", "boamp-jobs")
	v.SetDefault("events.buffer_size", 256)
	v.SetDefault("events.max_batch_events", 32)
	v.SetDefault("events.max_batch_wait_ms", 250)
	v.SetDefault("events.log_events", true)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "boamp-console")
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if c.Backend.TimeoutSeconds <= 0 {
		return fmt.Errorf("backend.timeout_seconds must be > 0")
	}
	if c.Poll.IntervalMs <= 0 {
		return fmt.Errorf("poll.interval_ms must be > 0")
	}
	if c.Poll.BackoffMaxMs < c.Poll.IntervalMs {
		return fmt.Errorf("poll.backoff_max_ms must be >= poll.interval_ms")
	}
	if c.Poll.MaxDurationMinutes < 0 {
		return fmt.Errorf("poll.max_duration_minutes must be >= 0")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be within [0, 1]")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Exports.Provider {
	case "", "none", "memory":
	case "local":
		if strings.TrimSpace(c.Exports.BaseDir) == "" {
			return fmt.Errorf("exports.base_dir is required for the local provider")
		}
	case "gcs":
		if strings.TrimSpace(c.Exports.GCSBucket) == "" {
			return fmt.Errorf("exports.gcs_bucket is required for the gcs provider")
		}
	default:
		return fmt.Errorf("unknown exports.provider %q", c.Exports.Provider)
	}
	switch c.Events.Provider {
	case "", "none", "memory":
	case "pubsub":
		if c.Events.ProjectID == "" || c.Events.Topic == "" {
			return fmt.Errorf("events.project_id and events.topic are required for pubsub")
		}
	default:
		return fmt.Errorf("unknown events.provider %q", c.Events.Provider)
	}
	return nil
}

// BackendTimeout returns the per-request budget for backend calls.
func (c Config) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// GeometryTimeout returns the boundary download budget.
func (c Config) GeometryTimeout() time.Duration {
	return time.Duration(c.Geometry.TimeoutSeconds) * time.Second
}

// PollInterval returns the fixed poll spacing.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.IntervalMs) * time.Millisecond
}

// PollBackoffMax caps the delay between polls after consecutive failures.
func (c Config) PollBackoffMax() time.Duration {
	return time.Duration(c.Poll.BackoffMaxMs) * time.Millisecond
}

// PollMaxDuration bounds a single poll subscription; zero means unbounded.
func (c Config) PollMaxDuration() time.Duration {
	return time.Duration(c.Poll.MaxDurationMinutes) * time.Minute
}

// AutoSelectDelay is the wait after a successful geometry load.
func (c Config) AutoSelectDelay() time.Duration {
	return time.Duration(c.Selection.AutoSelectDelayMs) * time.Millisecond
}

// FallbackDelay is the wait after a failed geometry load.
func (c Config) FallbackDelay() time.Duration {
	return time.Duration(c.Selection.FallbackDelayMs) * time.Millisecond
}

// NotificationTTL is how long a notification stays visible.
func (c Config) NotificationTTL() time.Duration {
	return time.Duration(c.Notifications.TTLMs) * time.Millisecond
}

// RequestTimeout bounds inbound console requests.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}
