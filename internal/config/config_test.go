package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultsConfig(t *testing.T) *Config {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	return &cfg
}

func TestSetDefaults(t *testing.T) {
	cfg := defaultsConfig(t)

	assert.Equal(t, "Mozilla/5.0", cfg.Provider.UserAgent)
	assert.Equal(t, 3, cfg.Provider.Retries)
	assert.Equal(t, 30*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Provider.RetryDelay)
	assert.Equal(t, 30*time.Second, cfg.Provider.RetryMaxDelay)
	assert.Equal(t, "429,500-599", cfg.Provider.RetryStatuses)
	assert.Equal(t, "ts", cfg.Provider.StreamExt)
	assert.False(t, cfg.Cache.Bypass)
	assert.Equal(t, 0, cfg.Snapshot.Keep)
	assert.True(t, cfg.Snapshot.Pretty)
	assert.Equal(t, 30*time.Second, cfg.Probe.Timeout)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults pass", func(*Config) {}, ""},
		{"zero retries", func(c *Config) { c.Provider.Retries = 0 }, "provider.retries"},
		{"negative retry delay", func(c *Config) { c.Provider.RetryDelay = -time.Second }, "provider.retry_delay"},
		{"bad retry statuses", func(c *Config) { c.Provider.RetryStatuses = "teapots" }, "provider.retry_statuses"},
		{"negative keep", func(c *Config) { c.Snapshot.Keep = -1 }, "snapshot.keep"},
		{"zero probe timeout", func(c *Config) { c.Probe.Timeout = 0 }, "probe.timeout"},
		{"empty dsn", func(c *Config) { c.Database.DSN = "" }, "database.dsn"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultsConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
provider:
  server: iptv.example.com:8080
  username: alice
  password: hunter2
  retries: 5
snapshot:
  keep: 4
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "iptv.example.com:8080", cfg.Provider.Server)
	assert.Equal(t, 5, cfg.Provider.Retries)
	assert.Equal(t, 4, cfg.Snapshot.Keep)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched keys keep their defaults.
	assert.Equal(t, "Mozilla/5.0", cfg.Provider.UserAgent)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("XTREAMSCOUT_PROVIDER_RETRIES", "7")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider:\n  retries: 2\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Provider.Retries)
}

func TestProvider_ServerURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"iptv.example.com:8080", "http://iptv.example.com:8080"},
		{"http://iptv.example.com", "http://iptv.example.com"},
		{"https://iptv.example.com/", "https://iptv.example.com"},
	}

	for _, tt := range tests {
		p := Provider{Server: tt.in}
		assert.Equal(t, tt.want, p.ServerURL(), "server %q", tt.in)
	}
}

func TestProvider_ServerKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://iptv.example.com:8080", "iptv.example.com:8080"},
		{"iptv.example.com/path", "iptv.example.com_path"},
		{"https://host/", "host"},
	}

	for _, tt := range tests {
		p := Provider{Server: tt.in}
		assert.Equal(t, tt.want, p.ServerKey(), "server %q", tt.in)
	}
}
