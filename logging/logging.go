// Package logging builds the program's slog logger.
//
// Output goes to stderr unless a file is configured; the TUI owns the
// terminal, so it writes to ~/.config/ccremote/debug.log instead.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"ccremote/config"
)

// Logger is a slog.Logger plus the file it may own
type Logger struct {
	*slog.Logger

	out  *switchWriter
	mu   sync.Mutex
	file *os.File
}

// switchWriter lets the destination change after handlers are built
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// DefaultFile returns ~/.config/ccremote/debug.log
func DefaultFile() (string, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "debug.log"), nil
}

// ParseLevel maps a config string to a slog level, defaulting to info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a logger from cfg. If cfg.File is set the file is truncated
// and written to; otherwise stderr is used.
func New(cfg config.LoggingConfig) (*Logger, error) {
	var out io.Writer = os.Stderr
	var file *os.File

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out, file = f, f
	}

	l := newLogger(out, cfg)
	l.file = file
	l.Debug("logging started", "level", ParseLevel(cfg.Level), "file", cfg.File)
	return l, nil
}

// NewWriter creates a logger writing to w (readline's stdout, tests)
func NewWriter(w io.Writer, cfg config.LoggingConfig) *Logger {
	return newLogger(w, cfg)
}

func newLogger(w io.Writer, cfg config.LoggingConfig) *Logger {
	out := &switchWriter{w: w}
	return &Logger{Logger: slog.New(newHandler(out, cfg)), out: out}
}

// Redirect sends subsequent records to w, e.g. through readline so log
// lines do not break the prompt. Ignored while logging to a file.
func (l *Logger) Redirect(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		return
	}
	l.out.mu.Lock()
	l.out.w = w
	l.out.mu.Unlock()
}

func newHandler(w io.Writer, cfg config.LoggingConfig) slog.Handler {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Close releases the log file, if any
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
