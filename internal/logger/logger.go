package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup builds the process logger. PROD writes JSON at info level, every
// other env writes text at debug level.
func Setup(w io.Writer, env string) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}

	if strings.EqualFold(env, "PROD") {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// SetupDefault installs Setup(w, env) as the slog default.
func SetupDefault(w io.Writer, env string) *slog.Logger {
	logger := Setup(w, env)
	slog.SetDefault(logger)
	return logger
}
