package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Logger writes timestamped lines to stderr and, optionally, to a log file.
type Logger struct {
	mu      sync.Mutex
	console io.Writer
	file    *os.File
}

// New returns a logger mirroring output to path. An empty path logs to
// stderr only. An existing file at path is renamed to its "-old.txt"
// sibling before the new log is started.
func New(path string) (*Logger, error) {
	l := &Logger{console: os.Stderr}
	if path == "" {
		return l, nil
	}
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, oldName(path)); err != nil {
			return nil, fmt.Errorf("rotate old log: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	l.file = f
	return l, nil
}

// oldName maps "crawl.log" to "crawl-old.txt".
func oldName(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-old.txt"
}

// Printf appends one formatted line to every destination.
func (l *Logger) Printf(format string, args ...interface{}) {
	line := fmt.Sprintf("%s %s\n", time.Now().Format("2006-01-02 15:04:05"), fmt.Sprintf(format, args...))
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.console, line)
	if l.file != nil {
		_, _ = l.file.WriteString(line)
	}
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		return err
	}
	err := l.file.Close()
	l.file = nil
	return err
}
