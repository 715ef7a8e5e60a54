// Package log provides category-based structured logging for flowstate.
// Every log call carries a category so output can be filtered per
// subsystem (database, engine, definitions, watcher).
package log

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

// Category identifies the subsystem emitting a log record.
type Category string

// Log categories for flowstate subsystems.
const (
	CatDB         Category = "db"
	CatEngine     Category = "engine"
	CatDefinition Category = "definition"
	CatWatcher    Category = "watcher"
	CatConfig     Category = "config"
	CatTelemetry  Category = "telemetry"
)

var (
	mu     sync.RWMutex
	level  = new(slog.LevelVar)
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
)

// Configure replaces the output writer and minimum level for the
// package logger. It is intended to be called once during startup.
func Configure(w io.Writer, lvl slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	level.Set(lvl)
	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// SetLevel adjusts the minimum level without replacing the writer.
func SetLevel(lvl slog.Level) {
	level.Set(lvl)
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Debug logs a debug-level message for the given category.
func Debug(cat Category, msg string, args ...any) {
	current().Debug(msg, append([]any{"category", string(cat)}, args...)...)
}

// Info logs an info-level message for the given category.
func Info(cat Category, msg string, args ...any) {
	current().Info(msg, append([]any{"category", string(cat)}, args...)...)
}

// Warn logs a warn-level message for the given category.
func Warn(cat Category, msg string, args ...any) {
	current().Warn(msg, append([]any{"category", string(cat)}, args...)...)
}

// ErrorErr logs an error-level message with the error attached.
func ErrorErr(cat Category, msg string, err error, args ...any) {
	current().Error(msg, append([]any{"category", string(cat), "error", err}, args...)...)
}
