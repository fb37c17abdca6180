// Package logger wraps zerolog with the controller's preferred defaults: a
// leveled, structured logger that writes human-readable output during
// development and compact JSON lines in production.
package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config selects the logger's verbosity and output format.
type Config struct {
	// Level is one of "debug", "info", "warn", "error". Defaults to "info"
	// on an unrecognised value.
	Level string
	// Pretty enables zerolog's human-readable console writer. Disable for
	// production deployments where logs are collected as JSON.
	Pretty bool
}

// New builds a zerolog.Logger writing to stderr with the given configuration.
func New(cfg Config) zerolog.Logger {
	level := parseLevel(cfg.Level)

	var writer = os.Stderr
	logger := zerolog.New(writer).Level(level).With().Timestamp().Logger()

	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: writer, TimeFormat: time.Kitchen}).
			Level(level).
			With().
			Timestamp().
			Logger()
	}

	return logger
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
