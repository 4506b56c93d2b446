package lrugo

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with lrugo-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithCapacity adds a capacity field to the logger.
func (l *Logger) WithCapacity(capacity int) *Logger {
	return &Logger{
		Logger: l.Logger.With("capacity", capacity),
	}
}

// WithShard adds a shard field to the logger.
func (l *Logger) WithShard(shard int) *Logger {
	return &Logger{
		Logger: l.Logger.With("shard", shard),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogResize logs a capacity change.
func (l *Logger) LogResize(ctx context.Context, oldCapacity, newCapacity, evicted int) {
	l.DebugContext(ctx, "resize completed",
		"old_capacity", oldCapacity,
		"new_capacity", newCapacity,
		"evicted", evicted,
	)
}

// LogSweep logs a janitor expiry sweep.
func (l *Logger) LogSweep(ctx context.Context, removed int) {
	if removed > 0 {
		l.DebugContext(ctx, "expiry sweep completed",
			"removed", removed,
		)
	}
}

// LogLoad logs a read-through load operation.
func (l *Logger) LogLoad(ctx context.Context, shared bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"shared", shared,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "load completed",
			"shared", shared,
		)
	}
}

// LogSnapshot logs a snapshot save operation.
func (l *Logger) LogSnapshot(ctx context.Context, filename string, entries int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"filename", filename,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot saved",
			"filename", filename,
			"entries", entries,
		)
	}
}

// LogRestore logs a snapshot load operation.
func (l *Logger) LogRestore(ctx context.Context, entriesLoaded, entriesExpired int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot restore failed",
			"entries_loaded", entriesLoaded,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot restore completed",
			"entries_loaded", entriesLoaded,
			"entries_expired", entriesExpired,
		)
	}
}
