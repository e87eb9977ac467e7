// Package observability provides structured logging for xtreamscout.
//
// Credentials travel through almost every component here (request URLs,
// provider responses, config structs), so redaction is applied at the
// handler level rather than at call sites.
package observability

import (
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/m-mizutani/masq"

	"github.com/xtreamscout/xtreamscout/internal/config"
)

// RedactedMarker is the value substituted for sensitive data in log output.
const RedactedMarker = "[REDACTED]"

// sensitiveKeys are attribute keys whose values are never logged verbatim.
var sensitiveKeys = map[string]bool{
	"password": true,
	"passwd":   true,
	"secret":   true,
	"token":    true,
	"apikey":   true,
	"api_key":  true,
}

// sensitiveParams are URL query parameters scrubbed from logged URLs.
var sensitiveParams = map[string]bool{
	"username": true,
	"password": true,
	"token":    true,
	"apikey":   true,
	"api_key":  true,
	"secret":   true,
}

// NewLogger creates a new slog.Logger based on the provided configuration.
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	return NewLoggerWithWriter(cfg, os.Stderr)
}

// NewLoggerWithWriter creates a new slog.Logger that writes to the provided
// writer. Useful for testing or custom output destinations.
func NewLoggerWithWriter(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	// masq handles deep redaction of struct values (config.Provider and
	// friends); attr-key and URL scrubbing is layered on top.
	structRedact := masq.New(
		masq.WithFieldName("Password"),
		masq.WithFieldName("Username"),
		masq.WithTag("secret"),
	)

	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && cfg.TimeFormat != "" {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(slog.TimeKey, t.Format(cfg.TimeFormat))
				}
			}
			if sensitiveKeys[strings.ToLower(a.Key)] {
				return slog.String(a.Key, RedactedMarker)
			}
			if a.Value.Kind() == slog.KindString {
				if s := a.Value.String(); strings.Contains(s, "://") {
					return slog.String(a.Key, RedactURL(s))
				}
			}
			return structRedact(groups, a)
		},
	}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}

// RedactURL replaces the values of credential query parameters in a URL
// string. Unparseable strings are returned unchanged.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return raw
	}

	q := u.Query()
	changed := false
	for key := range q {
		if sensitiveParams[strings.ToLower(key)] {
			q.Set(key, RedactedMarker)
			changed = true
		}
	}
	if !changed {
		return raw
	}
	u.RawQuery = q.Encode()

	// Query() escapes the marker; keep it readable in log output.
	return strings.ReplaceAll(u.String(), url.QueryEscape(RedactedMarker), RedactedMarker)
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithComponent adds a component name to the logger for identifying the source.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String("component", component))
}

// WithRunID adds an acquisition-run correlation ID to the logger.
func WithRunID(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With(slog.String("run_id", runID))
}

// SetDefault sets the provided logger as the default slog logger.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}
