package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtreamscout/xtreamscout/internal/config"
)

func newTestLogger(buf *bytes.Buffer, level string) *slog.Logger {
	return NewLoggerWithWriter(config.LoggingConfig{Level: level, Format: "json"}, buf)
}

func TestNewLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, "info")
	logger.Info("test message", slog.String("key", "value"))

	output := buf.String()
	assert.Contains(t, output, "test message")
	assert.Contains(t, output, `"key":"value"`)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
}

func TestNewLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(config.LoggingConfig{Level: "info", Format: "text"}, &buf)
	logger.Info("test message", slog.String("key", "value"))

	assert.Contains(t, buf.String(), "key=value")
}

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		name        string
		configLevel string
		logLevel    slog.Level
		shouldLog   bool
	}{
		{"debug logs at debug level", "debug", slog.LevelDebug, true},
		{"info does not log debug", "info", slog.LevelDebug, false},
		{"info logs at info level", "info", slog.LevelInfo, true},
		{"warn does not log info", "warn", slog.LevelInfo, false},
		{"error does not log warn", "error", slog.LevelWarn, false},
		{"error logs at error level", "error", slog.LevelError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newTestLogger(&buf, tt.configLevel)
			logger.Log(context.Background(), tt.logLevel, "test")

			if tt.shouldLog {
				assert.NotEmpty(t, buf.String())
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestSensitiveKeyRedaction(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"password lowercase", "password", "secret123"},
		{"password mixed case", "Password", "secret123"},
		{"token", "token", "bearer_xyz"},
		{"api key", "api_key", "ak_test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newTestLogger(&buf, "info")
			logger.Info("login", slog.String(tt.key, tt.value))

			output := buf.String()
			assert.NotContains(t, output, tt.value,
				"sensitive value should be redacted for key %s", tt.key)
			assert.Contains(t, output, RedactedMarker)
		})
	}
}

func TestURLParameterRedaction(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, "info")
	logger.Info("fetching",
		slog.String("url", "http://example.com/player_api.php?username=alice&password=hunter2&action=get_live_streams"))

	output := buf.String()
	assert.NotContains(t, output, "alice")
	assert.NotContains(t, output, "hunter2")
	assert.Contains(t, output, "action=get_live_streams")
	assert.Contains(t, output, RedactedMarker)
}

func TestRedactURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		keeps   []string
		removes []string
	}{
		{
			name:    "credentials removed",
			in:      "http://host/player_api.php?username=u1&password=p1&action=get_series",
			keeps:   []string{"action=get_series", RedactedMarker},
			removes: []string{"u1", "p1"},
		},
		{
			name:  "no query untouched",
			in:    "http://host/xmltv.php",
			keeps: []string{"http://host/xmltv.php"},
		},
		{
			name:  "non-sensitive query untouched",
			in:    "http://host/api?limit=5",
			keeps: []string{"limit=5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := RedactURL(tt.in)
			for _, want := range tt.keeps {
				assert.Contains(t, out, want)
			}
			for _, gone := range tt.removes {
				assert.NotContains(t, out, gone)
			}
		})
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := WithComponent(newTestLogger(&buf, "info"), "archiver")
	logger.Info("snapshot sealed")

	assert.Contains(t, buf.String(), `"component":"archiver"`)
}

func TestWithRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := WithRunID(newTestLogger(&buf, "info"), "run-123")
	logger.Info("run started")

	assert.Contains(t, buf.String(), `"run_id":"run-123"`)
}
