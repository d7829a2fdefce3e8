// Package logger builds the zerolog loggers used across the engine.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New creates a zerolog logger writing to stdout. Format is "json" or
// "console"; levels follow zerolog numbering (-1 trace .. 5 panic).
func New(level int, format string) zerolog.Logger {
	var writer io.Writer = os.Stdout
	if format != "json" {
		writer = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	return zerolog.New(writer).
		Level(zerolog.Level(level)).
		With().
		Timestamp().
		Logger()
}
