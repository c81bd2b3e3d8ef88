package cmd

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// setupLogger creates a console logger on stderr at the given level
func setupLogger(level string) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Logger()
}

// parseLevel maps a --log-level value to a zerolog level, defaulting to info
func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
