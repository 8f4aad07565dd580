package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync/atomic"
)

var _logger atomic.Pointer[slog.Logger]

func init() {
	_logger.Store(NewSlogger(os.Stderr, slog.LevelWarn, "text"))
}

// ParseLevel maps a config level name to a slog.Level. Unknown names
// fall back to warn.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// NewSlogger builds a logger writing to w. format is "json" or "text".
func NewSlogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Configure replaces the package logger.
func Configure(w io.Writer, level, format string) {
	_logger.Store(NewSlogger(w, ParseLevel(level), format))
}

// Set installs l as the package logger. Tests use it to capture output.
func Set(l *slog.Logger) {
	_logger.Store(l)
}

func handle(level slog.Level, msg string, args ...any) {
	l := _logger.Load()
	if !l.Enabled(context.Background(), level) {
		return
	}
	_, f, line, _ := runtime.Caller(2)
	source := fmt.Sprintf("%s:%d", f, line)
	args = append(args, slog.String("source", source))

	l.Log(context.Background(), level, msg, args...)
}

func Debug(msg string, args ...any) {
	handle(slog.LevelDebug, msg, args...)
}

func Info(msg string, args ...any) {
	handle(slog.LevelInfo, msg, args...)
}

func Warn(msg string, args ...any) {
	handle(slog.LevelWarn, msg, args...)
}

func Error(msg string, args ...any) {
	handle(slog.LevelError, msg, args...)
}
