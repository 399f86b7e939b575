// Package logger holds the process-wide structured logger.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// L is the global logger instance. It's initialized to discard all output by default.
// Call Init() to enable logging.
var L = slog.New(slog.NewTextHandler(io.Discard, nil))

// EnvAllocLog enables debug logging of allocator slow paths when set to any
// non-empty value.
const EnvAllocLog = "SLAM_LOG_ALLOC"

// Options configures the logger initialization.
type Options struct {
	Enabled bool       // If false, all logging is discarded
	Writer  io.Writer  // Destination. Default: os.Stderr
	Level   slog.Level // Minimum log level. Default: LevelInfo when enabled
	JSON    bool       // Emit JSON instead of logfmt-style text
}

// Init configures logging. Call from main() before any log calls.
// If opts.Enabled is false, all log output is discarded unless EnvAllocLog is
// set, which forces debug output to stderr.
func Init(opts Options) {
	if os.Getenv(EnvAllocLog) != "" {
		opts.Enabled = true
		opts.Level = slog.LevelDebug
	}
	L = New(opts)
}

// New builds a logger from opts without touching the global.
func New(opts Options) *slog.Logger {
	if !opts.Enabled {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: opts.Level}
	if opts.JSON {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// Debug logs a debug message with optional key-value pairs.
func Debug(msg string, args ...any) { L.Debug(msg, args...) }

// Info logs an info message with optional key-value pairs.
func Info(msg string, args ...any) { L.Info(msg, args...) }

// Warn logs a warning message with optional key-value pairs.
func Warn(msg string, args ...any) { L.Warn(msg, args...) }

// Error logs an error message with optional key-value pairs.
func Error(msg string, args ...any) { L.Error(msg, args...) }
