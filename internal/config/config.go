// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/jobgraph-crawler/internal/crawler"
)

// EnvPrefix prefixes every environment override, e.g. JOBCRAWLER_SERVER_PORT.
const EnvPrefix = "JOBCRAWLER"

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Search   SearchConfig   `mapstructure:"search"`
	Filter   FilterConfig   `mapstructure:"filter"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Progress ProgressConfig `mapstructure:"progress"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSecs   int `mapstructure:"shutdown_timeout_seconds"`
	RetainCrawls          int `mapstructure:"retain_crawls"` // finished crawls kept in memory; 0 keeps all
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CrawlerConfig governs the crawl engine and the page fetcher.
type CrawlerConfig struct {
	UserAgent             string `mapstructure:"user_agent"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout"`
	Concurrency           int    `mapstructure:"concurrency"`
	MaxDepthDefault       int    `mapstructure:"max_depth_default"`
	FrontierMode          string `mapstructure:"frontier_mode"`
	RetryAttempts         int    `mapstructure:"retry_attempts"`
	RespectRobots         bool   `mapstructure:"respect_robots"`
	Workers               int    `mapstructure:"workers"`
}

// SearchConfig describes the job search the seed URL points at.
type SearchConfig struct {
	URLTemplate string `mapstructure:"url_template"`
	Location    string `mapstructure:"location"`
	Origin      string `mapstructure:"origin"`
}

// FilterConfig holds the URL markers that classify links.
type FilterConfig struct {
	ListingMarkers []string `mapstructure:"listing_markers"`
	ViewMarker     string   `mapstructure:"view_marker"`
	BlockedHosts   []string `mapstructure:"blocked_hosts"`
}

// StorageConfig selects where exported artifacts are written.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls the optional Postgres result archive.
type DBConfig struct {
	DSN         string `mapstructure:"dsn"`
	TablePrefix string `mapstructure:"table_prefix"`
	MaxConns    int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for crawl-completed notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// QueueConfig sizes the in-process crawl queue.
type QueueConfig struct {
	Depth int `mapstructure:"depth"`
}

// ProgressConfig sizes progress buffering and history.
type ProgressConfig struct {
	BufferSize   int `mapstructure:"buffer_size"`
	HistoryLimit int `mapstructure:"history_limit"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Storage backends.
const (
	BackendMemory = "memory"
	BackendLocal  = "local"
	BackendGCS    = "gcs"
)

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
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("server.retain_crawls", 1000)
	v.SetDefault("crawler.user_agent", "jobgraph-crawler/0.1")
	v.SetDefault("crawler.request_timeout", 15)
	v.SetDefault("crawler.concurrency", 4)
	v.SetDefault("crawler.max_depth_default", crawler.DefaultDepth)
	v.SetDefault("crawler.frontier_mode", string(crawler.FrontierCandidates))
	v.SetDefault("crawler.retry_attempts", 3)
	v.SetDefault("crawler.respect_robots", false)
	v.SetDefault("crawler.workers", 2)
	v.SetDefault("search.url_template", crawler.DefaultSearchURL)
	v.SetDefault("search.location", crawler.DefaultLocation)
	v.SetDefault("search.origin", crawler.DefaultOrigin)
	v.SetDefault("filter.listing_markers", crawler.DefaultListingMarkers)
	v.SetDefault("filter.view_marker", crawler.DefaultViewMarker)
	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.base_dir", "out")
	v.SetDefault("db.table_prefix", "jobcrawler_")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("queue.depth", 64)
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.history_limit", 64)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RetainCrawls < 0 {
		return fmt.Errorf("server.retain_crawls must be >= 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Crawler.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.request_timeout must be > 0")
	}
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be > 0")
	}
	if c.Crawler.RetryAttempts < 1 {
		return fmt.Errorf("crawler.retry_attempts must be >= 1")
	}
	if err := c.EngineConfig().Validate(); err != nil {
		return fmt.Errorf("crawler: %w", err)
	}
	if c.Filter.ViewMarker == "" {
		return fmt.Errorf("filter.view_marker must be set")
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendLocal:
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir must be set for the local backend")
		}
	case BackendGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set with pubsub.topic_name")
	}
	if c.Queue.Depth < 0 {
		return fmt.Errorf("queue.depth must be >= 0")
	}
	return nil
}

// EngineConfig converts the crawler, search and filter sections into the
// engine's own configuration.
func (c Config) EngineConfig() crawler.Config {
	return crawler.Config{
		Concurrency:    c.Crawler.Concurrency,
		DefaultDepth:   c.Crawler.MaxDepthDefault,
		FrontierMode:   crawler.FrontierMode(strings.ToLower(c.Crawler.FrontierMode)),
		ListingMarkers: c.Filter.ListingMarkers,
		ViewMarker:     c.Filter.ViewMarker,
		BlockedHosts:   c.Filter.BlockedHosts,
		Seed: crawler.SeedTemplate{
			BaseURL:  c.Search.URLTemplate,
			Location: c.Search.Location,
			Origin:   c.Search.Origin,
		},
	}
}

// RequestTimeout is the per-fetch timeout.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Crawler.RequestTimeoutSeconds) * time.Second
}
