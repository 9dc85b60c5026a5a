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
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Sweep   SweepConfig   `mapstructure:"sweep"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Storage StorageConfig `mapstructure:"storage"`
	DB      DBConfig      `mapstructure:"db"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// SweepConfig governs batch selection and the page walk.
type SweepConfig struct {
	DefaultLimit    int    `mapstructure:"default_limit"`
	CooldownDays    int    `mapstructure:"cooldown_days"`
	MaxPages        int    `mapstructure:"max_pages"`
	EnrichmentWidth int    `mapstructure:"enrichment_width"`
	Topic           string `mapstructure:"topic"`
}

// FetchConfig configures the diagnostic page fetcher.
type FetchConfig struct {
	UserAgent      string  `mapstructure:"user_agent"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	MaxRedirects   int     `mapstructure:"max_redirects"`
	MaxBodyBytes   int     `mapstructure:"max_body_bytes"`
	MinHTMLBytes   int     `mapstructure:"min_html_bytes"`
	RespectRobots  bool    `mapstructure:"respect_robots"`
	PerHostRPS     float64 `mapstructure:"per_host_rps"`
	PerHostBurst   int     `mapstructure:"per_host_burst"`
}

// StorageConfig selects and configures the raw page archive.
type StorageConfig struct {
	Backend     string `mapstructure:"backend"` // gcs, local, or memory
	GCSBucket   string `mapstructure:"gcs_bucket"`
	LocalDir    string `mapstructure:"local_dir"`
	ContentType string `mapstructure:"content_type"`
}

// DBConfig controls access to the relational database. An empty DSN selects
// the in-memory stores, which is only suitable for local development.
type DBConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxConns        int    `mapstructure:"max_conns"`
	MinConns        int    `mapstructure:"min_conns"`
	ConnLifetimeMin int    `mapstructure:"conn_lifetime_minutes"`
}

// PubSubConfig holds metadata for staged-candidate notifications. An empty
// project id disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCOUT")
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
	v.SetDefault("sweep.default_limit", 25)
	v.SetDefault("sweep.cooldown_days", 10)
	v.SetDefault("sweep.max_pages", 6)
	v.SetDefault("sweep.enrichment_width", 2)
	v.SetDefault("sweep.topic", "candidates.staged")
	v.SetDefault("fetch.user_agent", "sourcescout/1.0 (+https://github.com/refhq/sourcescout)")
	v.SetDefault("fetch.timeout_seconds", 12)
	v.SetDefault("fetch.max_redirects", 5)
	v.SetDefault("fetch.max_body_bytes", 1<<20)
	v.SetDefault("fetch.min_html_bytes", 2048)
	v.SetDefault("fetch.respect_robots", true)
	v.SetDefault("fetch.per_host_rps", 1.0)
	v.SetDefault("fetch.per_host_burst", 2)
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_dir", "data/pages")
	v.SetDefault("storage.content_type", "text/html; charset=utf-8")
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.conn_lifetime_minutes", 30)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Sweep.CooldownDays <= 0 {
		return fmt.Errorf("sweep.cooldown_days must be > 0")
	}
	if c.Sweep.MaxPages <= 0 {
		return fmt.Errorf("sweep.max_pages must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Storage.Backend {
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir must be set for the local backend")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.backend must be gcs, local, or memory")
	}
	return nil
}

// FetchTimeout converts the configured fetch timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}
