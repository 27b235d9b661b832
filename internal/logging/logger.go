// Package logging provides the file-based debug logger shared by every
// Conductor component. It intentionally stays a thin, hand-rolled
// append-to-file logger rather than a structured-logging library: the
// consumer is a human tailing a log file during a long-running
// orchestration run, not a log-aggregation pipeline.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger writes timestamped lines to a file. The zero value and a nil
// pointer are both safe to call Log/Close on — they discard output.
type Logger struct {
	mu   sync.Mutex
	file *os.File
}

// Open creates a logger writing to path, creating parent directories as
// needed. An empty path returns a no-op logger.
func Open(path string) (*Logger, error) {
	if path == "" {
		return &Logger{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logging: create dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open %s: %w", path, err)
	}

	l := &Logger{file: f}
	l.Log("=== log started %s ===", time.Now().Format(time.RFC3339))
	return l, nil
}

// NoOp returns a logger that discards everything.
func NoOp() *Logger {
	return &Logger{}
}

// Log writes a formatted, timestamped line. Safe on a nil receiver.
func (l *Logger) Log(format string, args ...any) {
	if l == nil || l.file == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	ts := time.Now().Format("15:04:05.000")
	fmt.Fprintf(l.file, "[%s] %s\n", ts, msg)
	l.file.Sync()
}

// Close closes the underlying file. Safe on a nil receiver or a logger
// with no open file.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
