package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Init initializes the global logger: JSON in production, a plain text
// handler in development, both attributed with service/env on every
// record.
func Init(service string, env string, level slog.Level) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: env == "production",
	}

	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler).With(
		slog.String("service", service),
		slog.String("env", env),
	)
	slog.SetDefault(logger)

	return logger
}

// ParseLevelFromEnv reads LOG_LEVEL from environment or defaults to INFO
func ParseLevelFromEnv() slog.Level {
	levelStr := strings.ToUpper(os.Getenv("LOG_LEVEL"))
	switch levelStr {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// L returns the default global logger
func L() *slog.Logger {
	return slog.Default()
}
