// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// EnvLevel names the environment variable that sets the log level.
const EnvLevel = "NANDFIX_LOG_LEVEL"

var level = new(slog.LevelVar)

// Configure installs a text handler writing to w as the default logger.
// The level defaults to Info and can be raised or lowered through
// NANDFIX_LOG_LEVEL (DEBUG, INFO, WARN, ERROR). It returns the logger.
func Configure(w io.Writer) *slog.Logger {
	level.Set(slog.LevelInfo)
	if lvl, ok := ParseLevel(os.Getenv(EnvLevel)); ok {
		level.Set(lvl)
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// SetLevel changes the level of the configured logger.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// Level reports the current level.
func Level() slog.Level { return level.Level() }

// ParseLevel accepts the usual level names in any case.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN", "WARNING":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}
