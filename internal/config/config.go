// Package config provides configuration management for xtreamscout using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/xtreamscout/xtreamscout/pkg/httpclient"
)

// Default configuration values.
const (
	defaultUserAgent     = "Mozilla/5.0"
	defaultRetryAttempts = 3
	defaultRetryDelay    = 5 * time.Second
	defaultRetryMaxDelay = 30 * time.Second
	defaultRetryStatuses = "429,500-599"
	defaultHTTPTimeout   = 30 * time.Second
	defaultProbeTimeout  = 30 * time.Second
	defaultCacheDir      = "."
	defaultSnapshotKeep  = 0 // 0 disables pruning
	defaultStreamExt     = "ts"
	defaultWatchSchedule = "0 4 * * *"
	defaultDatabaseDSN   = "xtreamscout.db"
	defaultConnMaxLife   = time.Hour
	defaultMaxOpenConns  = 6
	defaultMaxIdleConns  = 3
)

// Config holds all configuration for the application.
type Config struct {
	Provider Provider       `mapstructure:"provider"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Probe    ProbeConfig    `mapstructure:"probe"`
	Database DatabaseConfig `mapstructure:"database"`
	Watch    WatchConfig    `mapstructure:"watch"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// Provider holds the Xtream provider credentials and request policy.
// It is immutable for the duration of a run.
type Provider struct {
	Server    string        `mapstructure:"server"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	UserAgent string        `mapstructure:"user_agent"`
	Retries   int           `mapstructure:"retries"`
	Timeout   time.Duration `mapstructure:"timeout"`
	StreamExt string        `mapstructure:"stream_ext"`

	// RetryDelay is the backoff before the first retry, RetryMaxDelay
	// caps the backoff growth.
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	RetryMaxDelay time.Duration `mapstructure:"retry_max_delay"`

	// RetryStatuses names the response codes that trigger a retry, in
	// the form "429,500-599".
	RetryStatuses string `mapstructure:"retry_statuses"`
}

// ServerURL returns the server with an http:// prefix applied when the
// configured value carries no scheme.
func (p *Provider) ServerURL() string {
	if strings.HasPrefix(p.Server, "http://") || strings.HasPrefix(p.Server, "https://") {
		return strings.TrimSuffix(p.Server, "/")
	}
	return "http://" + strings.TrimSuffix(p.Server, "/")
}

// ServerKey returns the server identity used for cache filenames and
// snapshot directories: scheme stripped, path separators flattened.
func (p *Provider) ServerKey() string {
	key := p.Server
	if idx := strings.Index(key, "://"); idx >= 0 {
		key = key[idx+3:]
	}
	key = strings.TrimSuffix(key, "/")
	return strings.ReplaceAll(key, "/", "_")
}

// CacheConfig holds listing-cache configuration.
type CacheConfig struct {
	Dir    string `mapstructure:"dir"`
	Bypass bool   `mapstructure:"bypass"`
}

// SnapshotConfig holds snapshot archival configuration.
type SnapshotConfig struct {
	Dir string `mapstructure:"dir"`
	// Keep is the number of snapshots retained per server. 0 disables pruning.
	Keep int `mapstructure:"keep"`
	// Raw persists user_info with credentials unmasked.
	Raw bool `mapstructure:"raw"`
	// Pretty reformats JSON artifacts with indentation before writing.
	Pretty bool `mapstructure:"pretty"`
}

// ProbeConfig holds stream-probe configuration.
type ProbeConfig struct {
	// BinaryPath is the path to the ffprobe binary (empty = resolve from PATH).
	BinaryPath string        `mapstructure:"binary_path"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig holds run-history database configuration.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// WatchConfig holds scheduled-acquisition configuration.
type WatchConfig struct {
	// Schedule is a 5-field cron expression.
	Schedule string `mapstructure:"schedule"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration and are
// prefixed with XTREAMSCOUT_ using underscores for nesting.
// Example: XTREAMSCOUT_PROVIDER_RETRIES=5.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/xtreamscout")
		v.AddConfigPath("$HOME/.xtreamscout")
	}

	v.SetEnvPrefix("XTREAMSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - defaults and env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file.
func SetDefaults(v *viper.Viper) {
	// Provider defaults
	v.SetDefault("provider.user_agent", defaultUserAgent)
	v.SetDefault("provider.retries", defaultRetryAttempts)
	v.SetDefault("provider.timeout", defaultHTTPTimeout)
	v.SetDefault("provider.retry_delay", defaultRetryDelay)
	v.SetDefault("provider.retry_max_delay", defaultRetryMaxDelay)
	v.SetDefault("provider.retry_statuses", defaultRetryStatuses)
	v.SetDefault("provider.stream_ext", defaultStreamExt)

	// Cache defaults
	v.SetDefault("cache.dir", defaultCacheDir)
	v.SetDefault("cache.bypass", false)

	// Snapshot defaults
	v.SetDefault("snapshot.dir", "./snapshots")
	v.SetDefault("snapshot.keep", defaultSnapshotKeep)
	v.SetDefault("snapshot.raw", false)
	v.SetDefault("snapshot.pretty", true)

	// Probe defaults
	v.SetDefault("probe.binary_path", "")
	v.SetDefault("probe.timeout", defaultProbeTimeout)

	// Database defaults
	v.SetDefault("database.dsn", defaultDatabaseDSN)
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", defaultConnMaxLife)
	v.SetDefault("database.log_level", "warn")

	// Watch defaults
	v.SetDefault("watch.schedule", defaultWatchSchedule)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Provider.Retries < 1 {
		return fmt.Errorf("provider.retries must be at least 1")
	}
	if c.Provider.Timeout <= 0 {
		return fmt.Errorf("provider.timeout must be positive")
	}
	if c.Provider.RetryDelay < 0 {
		return fmt.Errorf("provider.retry_delay must not be negative")
	}
	if c.Provider.RetryMaxDelay < 0 {
		return fmt.Errorf("provider.retry_max_delay must not be negative")
	}
	if _, err := httpclient.ParseStatusCodes(c.Provider.RetryStatuses); err != nil {
		return fmt.Errorf("provider.retry_statuses: %w", err)
	}

	if c.Snapshot.Keep < 0 {
		return fmt.Errorf("snapshot.keep must not be negative")
	}

	if c.Probe.Timeout <= 0 {
		return fmt.Errorf("probe.timeout must be positive")
	}

	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
