// Package logging configures zerolog for the scraper.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ServiceName is attached to every log line.
const ServiceName = "g2-scraper"

// Config holds logger configuration.
type Config struct {
	// Level is a zerolog level name: trace, debug, info, warn, error.
	// Unknown names fall back to info.
	Level string

	// Pretty switches from JSON to human-readable console output.
	Pretty bool

	// Output defaults to os.Stderr. Stdout is reserved for records.
	Output io.Writer
}

// DefaultConfig returns JSON logging at info level on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Output: os.Stderr,
	}
}

// Setup configures the global logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	logger := zerolog.New(out).With().
		Timestamp().
		Str("service", ServiceName).
		Logger()

	log.Logger = logger
	return logger
}

// ParseLevel converts a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "warning":
		return zerolog.WarnLevel
	case "":
		return zerolog.InfoLevel
	}
	l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}

// NewLogger creates a child of the global logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Level guidelines:
//
// Debug: page cache hit/miss, backend request parameters, worker lifecycle.
//
// Info: run phases, page progress ("Scraping page", "Scraping pagination"),
// collection summaries, server startup.
//
// Warn: retries, credit throttling, a single page failing inside a batch,
// cache errors that fall back to the backend.
//
// Error: a page that ends a target-count collection, retries exhausted,
// credit blocks, a failed run.
//
// Common fields: component, kind (reviews|search), url, page, records,
// error_class, run_id.
