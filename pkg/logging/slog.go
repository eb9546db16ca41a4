package logging

import (
	"log/slog"
	"os"
)

// New builds the JSON logger shared by every component. The level comes
// from LOG_LEVEL (debug, info, warn, error) and defaults to info.
func New() *slog.Logger {
	level := slog.LevelInfo
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(v)); err == nil {
			level = l
		}
	}
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(h)
}
