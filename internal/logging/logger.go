// Package logging provides structured logging for multishot runs.
// It wraps Go's log/slog: human-readable text on stderr by default, or JSON
// appended to a log file, with run and job context carried by child loggers.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Log levels supported by the logger
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// ValidLevels returns the accepted level names in lower case.
func ValidLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Logger provides structured logging with context propagation.
// It is safe for concurrent use.
type Logger struct {
	logger *slog.Logger
	file   *os.File
	mu     *sync.Mutex // Protects file; shared with child loggers
}

// NewLogger creates a Logger. When file is non-empty, JSON entries are
// appended to it (its directory is created if missing); otherwise text
// entries go to stderr, or os.Stderr when stderr is nil. Unknown levels fall
// back to INFO.
func NewLogger(stderr io.Writer, file string, level string) (*Logger, error) {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	if file == "" {
		if stderr == nil {
			stderr = os.Stderr
		}
		return &Logger{
			logger: slog.New(slog.NewTextHandler(stderr, opts)),
			mu:     &sync.Mutex{},
		}, nil
	}

	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &Logger{
		logger: slog.New(slog.NewJSONHandler(f, opts)),
		file:   f,
		mu:     &sync.Mutex{},
	}, nil
}

// NewWriterLogger creates a Logger emitting JSON to w. Useful in tests.
func NewWriterLogger(w io.Writer, level string) *Logger {
	return &Logger{
		logger: slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)})),
		mu:     &sync.Mutex{},
	}
}

// NopLogger returns a Logger that discards everything.
func NopLogger() *Logger {
	return &Logger{
		logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1})),
		mu:     &sync.Mutex{},
	}
}

// parseLevel converts a string log level to slog.Level.
// Defaults to INFO if the level string is not recognized.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRun returns a child Logger tagging every entry with the run ID.
func (l *Logger) WithRun(runID string) *Logger {
	return l.with(slog.String("run_id", runID))
}

// WithJob returns a child Logger tagging every entry with the job's index and
// label.
func (l *Logger) WithJob(index int, label string) *Logger {
	return l.with(slog.Int("job", index), slog.String("job_label", label))
}

func (l *Logger) with(attrs ...slog.Attr) *Logger {
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	return &Logger{
		logger: l.logger.With(args...),
		file:   l.file,
		mu:     l.mu,
	}
}

// Debug logs at DEBUG level.
func (l *Logger) Debug(msg string, args ...any) {
	l.logger.Log(context.Background(), slog.LevelDebug, msg, args...)
}

// Info logs at INFO level.
func (l *Logger) Info(msg string, args ...any) {
	l.logger.Log(context.Background(), slog.LevelInfo, msg, args...)
}

// Warn logs at WARN level.
func (l *Logger) Warn(msg string, args ...any) {
	l.logger.Log(context.Background(), slog.LevelWarn, msg, args...)
}

// Error logs at ERROR level.
func (l *Logger) Error(msg string, args ...any) {
	l.logger.Log(context.Background(), slog.LevelError, msg, args...)
}

// Close closes the log file, if any. Child loggers share the file, so only
// the root logger should be closed.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
