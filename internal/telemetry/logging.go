package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogLevel читает уровень из LOG_LEVEL (debug, info, warn, error,
// регистр не важен). Пустое или нераспознанное значение даёт INFO.
func LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(os.Getenv("LOG_LEVEL")))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// SetupLogger настраивает логгер сервера: stdout, JSON по умолчанию.
func SetupLogger() *slog.Logger {
	return SetupLoggerTo(os.Stdout, "json")
}

// SetupLoggerTo настраивает slog.Default с выводом в w и возвращает его.
//
// LOG_FORMAT выбирает "json" или "text"; если переменная пуста,
// используется format. На уровне DEBUG в записи добавляется source.
func SetupLoggerTo(w io.Writer, format string) *slog.Logger {
	if env := os.Getenv("LOG_FORMAT"); env != "" {
		format = env
	}

	level := LogLevel()
	opts := &slog.HandlerOptions{Level: level, AddSource: level <= slog.LevelDebug}

	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.EqualFold(format, "text") {
		h = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

type loggerKey struct{}

// WithLogger кладёт logger в ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext возвращает логгер из ctx или slog.Default.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithJobID добавляет к логгеру имя job в manifest.
func WithJobID(logger *slog.Logger, job string) *slog.Logger {
	return logger.With("job", job)
}

// WithNode добавляет к логгеру узел и его инструмент.
func WithNode(logger *slog.Logger, node, tool string) *slog.Logger {
	return logger.With("node", node, "tool", tool)
}
