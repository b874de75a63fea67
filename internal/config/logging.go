package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

var logLevel = new(slog.LevelVar)

// ParseLevel maps DEBUG, INFO, WARN or ERROR onto a slog level
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "", "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log_level must be DEBUG, INFO, WARN or ERROR, got '%s'", name)
	}
}

// ConfigureLogging installs a text handler on stderr as the default logger.
// Stdout is left to command output.
func ConfigureLogging(level string) {
	lvl, err := ParseLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	logLevel.Set(lvl)

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// SetLogLevel changes the level of the logger installed by ConfigureLogging
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}
