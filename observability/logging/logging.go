// Package logging configures structured JSON logging for the bridge tools.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs a JSON slog handler as the default logger and returns it.
// Log lines carry the tool name plus conventional severity/message/timestamp
// field names so they slot into existing log pipelines.
func Setup(tool string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				return slog.Attr{Key: "timestamp", Value: attr.Value}
			case slog.LevelKey:
				return slog.String("severity", strings.ToUpper(attr.Value.String()))
			case slog.MessageKey:
				return slog.Attr{Key: "message", Value: attr.Value}
			}
			return attr
		},
	})

	logger := slog.New(handler).With(slog.String("tool", strings.TrimSpace(tool)))
	slog.SetDefault(logger)
	return logger
}
