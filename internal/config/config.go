// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/jobcrawler/internal/storage/local"
)

// EnvPrefix is prepended to every environment override, e.g. JOBCRAWLER_DB_DSN.
const EnvPrefix = "JOBCRAWLER"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	DB        DBConfig        `mapstructure:"db"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Vendors   VendorConfig    `mapstructure:"vendors"`
	Crawl     CrawlConfig     `mapstructure:"crawl"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Retention RetentionConfig `mapstructure:"retention"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Snapshots SnapshotConfig  `mapstructure:"snapshots"`
	Remote    RemoteConfig    `mapstructure:"remote"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// DBConfig controls access to Postgres. An empty DSN selects the in-memory store.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	Migrate         bool          `mapstructure:"migrate"`
}

// HTTPConfig configures outbound vendor requests.
type HTTPConfig struct {
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	UserAgent      string  `mapstructure:"user_agent"`
	PerHostRPS     float64 `mapstructure:"per_host_rps"`
	PerHostBurst   int     `mapstructure:"per_host_burst"`
}

// VendorConfig overrides vendor API base URLs. Empty values use the public endpoints.
type VendorConfig struct {
	Greenhouse      string `mapstructure:"greenhouse"`
	Lever           string `mapstructure:"lever"`
	Ashby           string `mapstructure:"ashby"`
	SmartRecruiters string `mapstructure:"smartrecruiters"`
}

// CrawlConfig governs orchestrator scheduling.
type CrawlConfig struct {
	APIConcurrency int           `mapstructure:"api_concurrency"`
	PacingDelay    time.Duration `mapstructure:"pacing_delay"`
	RecycleAfter   int           `mapstructure:"recycle_after"`
	NewJobsTopic   string        `mapstructure:"new_jobs_topic"`
}

// HeadlessConfig configures browser rendering. Renderer is "chromedp" or "static".
type HeadlessConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Renderer         string        `mapstructure:"renderer"`
	ExecPath         string        `mapstructure:"exec_path"`
	NavTimeout       time.Duration `mapstructure:"nav_timeout"`
	NetworkIdle      time.Duration `mapstructure:"network_idle"`
	NetworkIdleMax   time.Duration `mapstructure:"network_idle_max"`
	LoadMoreAttempts int           `mapstructure:"load_more_attempts"`
	LoadMoreTimeout  time.Duration `mapstructure:"load_more_timeout"`
	RespectRobots    bool          `mapstructure:"respect_robots"`
}

// RetentionConfig controls cleanup of dismissed listings.
type RetentionConfig struct {
	Days            int           `mapstructure:"days"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// PubSubConfig holds the new-jobs notification target. Both fields empty selects
// the in-memory publisher.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// SnapshotConfig selects where HTML of empty extractions is kept.
type SnapshotConfig struct {
	Enabled bool         `mapstructure:"enabled"`
	Backend string       `mapstructure:"backend"`
	Bucket  string       `mapstructure:"bucket"`
	Prefix  string       `mapstructure:"prefix"`
	Local   local.Config `mapstructure:"local"`
}

// RemoteConfig is used by the push command.
type RemoteConfig struct {
	APIBaseURL string        `mapstructure:"api_base_url"`
	APIKey     string        `mapstructure:"api_key"`
	UserID     string        `mapstructure:"user_id"`
	LockFile   string        `mapstructure:"lock_file"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// TelemetryConfig controls OpenTelemetry tracing. ProjectID enables Cloud Trace export.
type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	ProjectID   string  `mapstructure:"project_id"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
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
	v.SetDefault("server.request_timeout", 10*time.Minute)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.max_conn_lifetime", time.Hour)
	v.SetDefault("db.migrate", true)
	v.SetDefault("http.timeout_seconds", 20)
	v.SetDefault("http.user_agent", "jobcrawler/0.1")
	v.SetDefault("http.per_host_rps", 2.0)
	v.SetDefault("http.per_host_burst", 2)
	v.SetDefault("vendors.greenhouse", "")
	v.SetDefault("vendors.lever", "")
	v.SetDefault("vendors.ashby", "")
	v.SetDefault("vendors.smartrecruiters", "")
	v.SetDefault("crawl.api_concurrency", 4)
	v.SetDefault("crawl.pacing_delay", 2*time.Second)
	v.SetDefault("crawl.recycle_after", 5)
	v.SetDefault("crawl.new_jobs_topic", "new-jobs")
	v.SetDefault("headless.enabled", true)
	v.SetDefault("headless.renderer", "chromedp")
	v.SetDefault("headless.exec_path", "")
	v.SetDefault("headless.nav_timeout", 30*time.Second)
	v.SetDefault("headless.network_idle", 500*time.Millisecond)
	v.SetDefault("headless.network_idle_max", 5*time.Second)
	v.SetDefault("headless.load_more_attempts", 3)
	v.SetDefault("headless.load_more_timeout", 3*time.Second)
	v.SetDefault("headless.respect_robots", false)
	v.SetDefault("retention.days", 30)
	v.SetDefault("retention.cleanup_interval", 24*time.Hour)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("snapshots.enabled", false)
	v.SetDefault("snapshots.backend", "memory")
	v.SetDefault("snapshots.bucket", "")
	v.SetDefault("snapshots.prefix", "snapshots")
	v.SetDefault("snapshots.local.base_dir", "./snapshots")
	v.SetDefault("remote.api_base_url", "http://localhost:8080")
	v.SetDefault("remote.api_key", "")
	v.SetDefault("remote.user_id", "")
	v.SetDefault("remote.lock_file", "/tmp/jobcrawler-push.lock")
	v.SetDefault("remote.timeout", 60*time.Second)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "jobcrawler")
	v.SetDefault("telemetry.project_id", "")
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.PerHostRPS < 0 {
		return fmt.Errorf("http.per_host_rps must be >= 0")
	}
	if c.Crawl.APIConcurrency <= 0 {
		return fmt.Errorf("crawl.api_concurrency must be > 0")
	}
	if c.Crawl.PacingDelay < 0 {
		return fmt.Errorf("crawl.pacing_delay must be >= 0")
	}
	if c.Crawl.RecycleAfter <= 0 {
		return fmt.Errorf("crawl.recycle_after must be > 0")
	}
	if c.Headless.Enabled {
		switch c.Headless.Renderer {
		case "chromedp", "static":
		default:
			return fmt.Errorf("headless.renderer must be chromedp or static, got %q", c.Headless.Renderer)
		}
		if c.Headless.NavTimeout <= 0 {
			return fmt.Errorf("headless.nav_timeout must be > 0")
		}
	}
	if c.Retention.Days <= 0 {
		return fmt.Errorf("retention.days must be > 0")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	if c.Snapshots.Enabled {
		switch c.Snapshots.Backend {
		case "memory", "local":
		case "gcs":
			if c.Snapshots.Bucket == "" {
				return fmt.Errorf("snapshots.bucket must be set for the gcs backend")
			}
		default:
			return fmt.Errorf("snapshots.backend must be memory, local or gcs, got %q", c.Snapshots.Backend)
		}
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be within [0,1]")
	}
	return nil
}

// VendorTimeout is the per-request budget for vendor API calls.
func (c Config) VendorTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// RetentionWindow is how long dismissed listings are kept.
func (c Config) RetentionWindow() time.Duration {
	return time.Duration(c.Retention.Days) * 24 * time.Hour
}
