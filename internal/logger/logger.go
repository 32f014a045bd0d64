// Package logger wraps log/slog with level selection from the
// environment and bearer-token redaction, so provider errors can be
// logged without leaking credentials.
package logger

import (
	"log/slog"
	"os"
	"regexp"
	"strings"
)

var defaultLogger *slog.Logger

var bearerPattern = regexp.MustCompile(`(?i)(bearer|token)\s+[A-Za-z0-9._-]+`)

func init() {
	defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: levelFromEnv(),
	}))
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetVerbose switches to debug-level logging. Used by the --verbose flag.
func SetVerbose(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Redact masks credential material embedded in a message.
func Redact(msg string) string {
	return bearerPattern.ReplaceAllString(msg, "$1 [REDACTED]")
}

func Debug(msg string, args ...any) { defaultLogger.Debug(Redact(msg), args...) }
func Info(msg string, args ...any)  { defaultLogger.Info(Redact(msg), args...) }
func Warn(msg string, args ...any)  { defaultLogger.Warn(Redact(msg), args...) }
func Error(msg string, args ...any) { defaultLogger.Error(Redact(msg), args...) }
