// Package pclog provides the structured logging pcachefs's components use
// to trace filesystem operations, mirroring the level-gated helpers the
// teacher's own log package wraps around log/slog.
package pclog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
)

var (
	logger  atomic.Pointer[slog.Logger]
	verbose atomic.Bool
)

func init() {
	SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))
}

// SetLogger replaces the package-level logger used by Debugf/Infof/Errorf.
func SetLogger(l *slog.Logger) {
	logger.Store(l)
}

// SetVerbose toggles debug-level tracing, equivalent to the Python
// original's module-level DEBUG flag consulted by its debug() helper.
func SetVerbose(v bool) {
	verbose.Store(v)
}

// Debugf logs a trace-level message when verbose mode is enabled.
func Debugf(ctx context.Context, format string, args ...any) {
	if !verbose.Load() {
		return
	}
	logger.Load().Log(ctx, slog.LevelDebug, sprintf(format, args...))
}

// Infof logs an informational message.
func Infof(ctx context.Context, format string, args ...any) {
	logger.Load().Log(ctx, slog.LevelInfo, sprintf(format, args...))
}

// Errorf logs an error-level message.
func Errorf(ctx context.Context, format string, args ...any) {
	logger.Load().Log(ctx, slog.LevelError, sprintf(format, args...))
}

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
