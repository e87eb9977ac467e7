// Package cmd implements the CLI commands for xtreamscout.
package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/xtreamscout/xtreamscout/internal/cache"
	"github.com/xtreamscout/xtreamscout/internal/config"
	"github.com/xtreamscout/xtreamscout/internal/observability"
	"github.com/xtreamscout/xtreamscout/internal/prober"
	"github.com/xtreamscout/xtreamscout/internal/version"
	"github.com/xtreamscout/xtreamscout/pkg/httpclient"
	"github.com/xtreamscout/xtreamscout/pkg/xtream"
)

// cfgFile holds the config file path from the CLI flag.
var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "xtreamscout",
	Short:   "Xtream provider inspection and archival tool",
	Version: version.Short(),
	Long: `xtreamscout inspects Xtream Codes IPTV providers: it queries live
channels with guide depth and probed stream properties, and archives
timestamped snapshots of the full provider inventory.

Results of provider calls are cached per calendar day, so repeated
invocations within a day avoid hammering the provider.`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// These flags are NOT bound to viper. loadConfig checks Changed() and
	// only then overrides config/env values, preserving the priority:
	// CLI flag > env var > config file > default.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./xtreamscout.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().String("server", "", "provider server, host[:port] or URL")
	rootCmd.PersistentFlags().String("username", "", "provider account username")
	rootCmd.PersistentFlags().String("password", "", "provider account password")
	rootCmd.PersistentFlags().String("user-agent", "", "User-Agent header for provider requests")
	rootCmd.PersistentFlags().Int("retries", 0, "total request attempts per provider call")
	rootCmd.PersistentFlags().Duration("timeout", 0, "per-request timeout")
	rootCmd.PersistentFlags().String("cache-dir", "", "listing cache directory")
	rootCmd.PersistentFlags().Bool("no-cache", false, "bypass the listing cache")
}

// loadConfig loads configuration and applies explicit CLI flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	cfg.Provider.Server = flagString(flags, "server", cfg.Provider.Server)
	cfg.Provider.Username = flagString(flags, "username", cfg.Provider.Username)
	cfg.Provider.Password = flagString(flags, "password", cfg.Provider.Password)
	cfg.Provider.UserAgent = flagString(flags, "user-agent", cfg.Provider.UserAgent)
	cfg.Cache.Dir = flagString(flags, "cache-dir", cfg.Cache.Dir)
	cfg.Logging.Level = flagString(flags, "log-level", cfg.Logging.Level)
	cfg.Logging.Format = flagString(flags, "log-format", cfg.Logging.Format)
	if flags.Changed("retries") {
		cfg.Provider.Retries, _ = flags.GetInt("retries")
	}
	if flags.Changed("timeout") {
		cfg.Provider.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("no-cache") {
		cfg.Cache.Bypass, _ = flags.GetBool("no-cache")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// flagString returns the flag value when the user set it explicitly,
// otherwise the current config value.
func flagString(flags *pflag.FlagSet, name, current string) string {
	if flags.Changed(name) {
		value, _ := flags.GetString(name)
		return value
	}
	return current
}

// requireProvider ensures provider credentials are configured before a
// command talks to the provider.
func requireProvider(cfg *config.Config) error {
	switch {
	case cfg.Provider.Server == "":
		return fmt.Errorf("provider server is required (--server or provider.server)")
	case cfg.Provider.Username == "":
		return fmt.Errorf("provider username is required (--username or provider.username)")
	case cfg.Provider.Password == "":
		return fmt.Errorf("provider password is required (--password or provider.password)")
	}
	return nil
}

// setupLogging installs the redacting logger as the process default.
func setupLogging(cfg *config.Config) *slog.Logger {
	logger := observability.NewLogger(cfg.Logging)
	observability.SetDefault(logger)
	return logger
}

// buildClient constructs the provider client on top of the retrying HTTP
// client.
func buildClient(cfg *config.Config, logger *slog.Logger) *xtream.Client {
	httpCfg := httpclient.DefaultConfig()
	httpCfg.Logger = observability.WithComponent(logger, "httpclient")
	httpCfg.UserAgent = cfg.Provider.UserAgent
	if cfg.Provider.Retries > 0 {
		httpCfg.MaxAttempts = cfg.Provider.Retries
	}
	if cfg.Provider.Timeout > 0 {
		httpCfg.Timeout = cfg.Provider.Timeout
	}
	if cfg.Provider.RetryDelay > 0 {
		httpCfg.RetryDelay = cfg.Provider.RetryDelay
	}
	if cfg.Provider.RetryMaxDelay > 0 {
		httpCfg.RetryMaxDelay = cfg.Provider.RetryMaxDelay
	}
	// Load already validated the retry status string.
	if set, err := httpclient.ParseStatusCodes(cfg.Provider.RetryStatuses); err == nil && set != nil {
		httpCfg.RetryStatuses = set
	}

	return xtream.NewClient(
		cfg.Provider.ServerURL(),
		cfg.Provider.Username,
		cfg.Provider.Password,
		xtream.WithHTTPClient(httpclient.New(httpCfg).StandardClient()),
		xtream.WithUserAgent(cfg.Provider.UserAgent),
	)
}

// buildStore constructs the day-keyed listing cache for the configured
// provider.
func buildStore(cfg *config.Config, logger *slog.Logger) cache.Store {
	return cache.NewDirStore(cfg.Cache.Dir, cfg.Provider.ServerKey(),
		cache.WithBypass(cfg.Cache.Bypass),
		cache.WithLogger(logger),
	)
}

// buildProber constructs the ffprobe-backed stream prober, verifying the
// binary up front.
func buildProber(cfg *config.Config, logger *slog.Logger) (*prober.FFProber, error) {
	opts := []prober.FFOption{prober.WithLogger(logger)}
	if cfg.Probe.BinaryPath != "" {
		opts = append(opts, prober.WithBinary(cfg.Probe.BinaryPath))
	}
	if cfg.Probe.Timeout > 0 {
		opts = append(opts, prober.WithTimeout(cfg.Probe.Timeout))
	} else {
		opts = append(opts, prober.WithTimeout(30*time.Second))
	}

	p := prober.NewFFProber(opts...)
	if err := p.CheckBinary(); err != nil {
		return nil, fmt.Errorf("stream probing unavailable: %w", err)
	}
	return p, nil
}
