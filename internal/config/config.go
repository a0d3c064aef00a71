// Package config loads and validates newsrange configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/spf13/viper"

	"github.com/tadevos/newsrange/internal/acquire"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Acquire    AcquireConfig    `mapstructure:"acquire"`
	Search     SearchConfig     `mapstructure:"search"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// AcquireConfig names the run parameters with typed fields: keyword, start
// date, end date, concurrency. Nothing downstream probes loosely-typed
// filter objects; this is the single schema boundary.
type AcquireConfig struct {
	Keyword     string `mapstructure:"keyword"`
	StartDate   string `mapstructure:"start_date"`
	EndDate     string `mapstructure:"end_date"`
	Concurrency int    `mapstructure:"concurrency"`
}

// Range parses the configured dates into a DateRange.
func (c AcquireConfig) Range() (acquire.DateRange, error) {
	start, err := civil.ParseDate(c.StartDate)
	if err != nil {
		return acquire.DateRange{}, fmt.Errorf("parse acquire.start_date: %w", err)
	}
	end, err := civil.ParseDate(c.EndDate)
	if err != nil {
		return acquire.DateRange{}, fmt.Errorf("parse acquire.end_date: %w", err)
	}
	return acquire.DateRange{Start: start, End: end}, nil
}

// SearchConfig selects and tunes the search backend.
type SearchConfig struct {
	Backend           string  `mapstructure:"backend"` // gdelt | googlenews
	Country           string  `mapstructure:"country"`
	EnglishOnly       bool    `mapstructure:"english_only"`
	MaxCandidates     int     `mapstructure:"max_candidates"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	NavTimeoutSeconds int     `mapstructure:"nav_timeout_seconds"`
	SettleDelayMs     int     `mapstructure:"settle_delay_ms"`
	RatePerSecond     float64 `mapstructure:"rate_per_second"`
	RateBurst         int     `mapstructure:"rate_burst"`
}

// FetchConfig tunes the article content fetcher.
type FetchConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxBodyBytes   int    `mapstructure:"max_body_bytes"`
}

// CheckpointConfig selects where snapshots land.
type CheckpointConfig struct {
	Backend   string `mapstructure:"backend"` // file | gcs | postgres
	Path      string `mapstructure:"path"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSObject string `mapstructure:"gcs_object"`
	DSN       string `mapstructure:"dsn"`
	Table     string `mapstructure:"table"`
}

// PubSubConfig holds metadata for per-result completion notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ServerConfig controls the optional status HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NEWSRANGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("newsrange")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.newsrange")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	const defaultUA = "newsrange/1.0 (+https://github.com/tadevos/newsrange)"

	v.SetDefault("acquire.concurrency", 10)

	v.SetDefault("search.backend", "gdelt")
	v.SetDefault("search.country", "US")
	v.SetDefault("search.english_only", true)
	v.SetDefault("search.max_candidates", 6)
	v.SetDefault("search.timeout_seconds", 15)
	v.SetDefault("search.nav_timeout_seconds", 45)
	v.SetDefault("search.settle_delay_ms", 2000)
	v.SetDefault("search.rate_per_second", 2)
	v.SetDefault("search.rate_burst", 1)

	v.SetDefault("fetch.user_agent", defaultUA)
	v.SetDefault("fetch.timeout_seconds", 15)
	v.SetDefault("fetch.max_body_bytes", 5*1024*1024)

	v.SetDefault("checkpoint.backend", "file")
	v.SetDefault("checkpoint.path", "data/daily_articles.json")
	v.SetDefault("checkpoint.gcs_object", "newsrange/checkpoint.json")
	v.SetDefault("checkpoint.table", "articles")

	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)

	v.SetDefault("logging.development", false)
}

// Validate checks the fields an acquisition run depends on.
func (c Config) Validate() error {
	if c.Acquire.Keyword == "" {
		return fmt.Errorf("acquire.keyword is required")
	}
	rng, err := c.Acquire.Range()
	if err != nil {
		return err
	}
	if err := rng.Validate(); err != nil {
		return err
	}
	if c.Acquire.Concurrency <= 0 {
		return fmt.Errorf("acquire.concurrency must be positive")
	}
	switch c.Search.Backend {
	case "gdelt", "googlenews":
	default:
		return fmt.Errorf("unknown search backend %q", c.Search.Backend)
	}
	switch c.Checkpoint.Backend {
	case "file":
		if c.Checkpoint.Path == "" {
			return fmt.Errorf("checkpoint.path is required for the file backend")
		}
	case "gcs":
		if c.Checkpoint.GCSBucket == "" {
			return fmt.Errorf("checkpoint.gcs_bucket is required for the gcs backend")
		}
	case "postgres":
		if c.Checkpoint.DSN == "" {
			return fmt.Errorf("checkpoint.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown checkpoint backend %q", c.Checkpoint.Backend)
	}
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}

// SearchTimeout returns the API client timeout.
func (c SearchConfig) SearchTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// NavTimeout returns the headless navigation timeout.
func (c SearchConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSeconds) * time.Second
}

// SettleDelay returns the post-render settle delay.
func (c SearchConfig) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}

// FetchTimeout returns the content fetch timeout.
func (c FetchConfig) FetchTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
