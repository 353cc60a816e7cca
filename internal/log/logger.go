package log

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger создает логгер с уровнем из конфигурации и маскировкой секретов.
func NewLogger(level string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(NewSecretMaskerHandler(handler))
}

// parseLevel преобразует строковый уровень в slog.Level
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
