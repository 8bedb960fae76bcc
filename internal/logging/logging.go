// Package logging configures the structured logger cmd/cmv wires into every
// internal package. Library code never logs on its own; it accepts a
// *zerolog.Logger (nil defaults to zerolog.Nop()) the way the teacher passes
// config.Config explicitly instead of reaching for global state.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the root logger.
type Options struct {
	// Level is one of debug, info, warn, error. Empty defaults to info.
	Level string
	// Pretty selects the human-readable console writer over JSON lines.
	Pretty bool
	// Writer overrides the output sink; defaults to os.Stderr.
	Writer io.Writer
}

// New builds a root logger per opts.
func New(opts Options) zerolog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	if opts.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	return zerolog.New(w).
		Level(parseLevel(opts.Level)).
		With().
		Timestamp().
		Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "":
		return zerolog.InfoLevel
	default:
		return zerolog.InfoLevel
	}
}

// OrNop returns *log if non-nil, else a no-op logger — the fallback every
// internal package uses so a zero-valued *zerolog.Logger field is safe.
func OrNop(log *zerolog.Logger) zerolog.Logger {
	if log != nil {
		return *log
	}
	return zerolog.Nop()
}
