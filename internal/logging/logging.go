// Package logging builds the zerolog loggers used by both binaries.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config selects the minimum level and output format.
type Config struct {
	Level   string // debug | info | warn | error (default info)
	Format  string // json | pretty (default json)
	Service string // service tag attached to every line
}

// New creates a structured logger writing to stderr so protocol and
// renderer output on stdout stays clean.
func New(cfg Config) zerolog.Logger {
	var output io.Writer = os.Stderr

	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn", "warning":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	if strings.EqualFold(cfg.Format, "pretty") {
		output = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(output).Level(level).
		With().
		Timestamp().
		Str("service", cfg.Service).
		Logger()
	return logger
}
