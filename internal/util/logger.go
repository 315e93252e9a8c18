// Package util provides helper functions for logging events
package util

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Crys266/IoT-Project/internal/model"
)

// Info prints general system information messages with timestamp.
func Info(msg string, args ...any) {
	log.Printf("[INFO] %s | %s", time.Now().Format(time.RFC3339), fmt.Sprintf(msg, args...))
}

// Error prints error messages with timestamp.
func Error(msg string, args ...any) {
	log.Printf("[ERROR] %s | %s", time.Now().Format(time.RFC3339), fmt.Sprintf(msg, args...))
}

// SetupLogger configures the standard log package used by Info and Error.
func SetupLogger() {
	log.SetFlags(0)
	log.SetOutput(os.Stderr)
}

// LogManager owns the slog configuration and the optional log file.
type LogManager struct {
	mu     sync.RWMutex
	logger *slog.Logger
	file   *os.File
}

// NewLogManager returns a manager logging at info level to stderr.
func NewLogManager() *LogManager {
	return &LogManager{
		logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})),
	}
}

// Configure applies cfg. console receives log lines alongside the file; pass nil
// when the terminal is owned by the dashboard UI.
func (m *LogManager) Configure(cfg model.LoggingConfig, console io.Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.file != nil {
		_ = m.file.Close()
		m.file = nil
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}

	var writers []io.Writer
	if console != nil {
		writers = append(writers, console)
	}
	if cfg.File != "" {
		path := filepath.Clean(cfg.File)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		m.file = f
		writers = append(writers, f)
	}

	var w io.Writer
	switch len(writers) {
	case 0:
		w = io.Discard
	case 1:
		w = writers[0]
	default:
		w = &fanoutWriter{writers: writers}
	}
	m.logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(m.logger)
	return nil
}

// Logger returns the logger for one component.
func (m *LogManager) Logger(component string) *slog.Logger {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.logger.With("component", component)
}

// Close closes the log file, if any.
func (m *LogManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.file == nil {
		return nil
	}
	err := m.file.Close()
	m.file = nil
	return err
}

// ParseLevel maps a config level name to a slog level.
func ParseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported log level: %q", raw)
	}
}

// fanoutWriter writes to every destination and succeeds if any of them did.
type fanoutWriter struct {
	writers []io.Writer
}

func (w *fanoutWriter) Write(p []byte) (int, error) {
	var (
		wroteAny bool
		firstErr error
	)
	for _, dst := range w.writers {
		n, err := dst.Write(p)
		if err == nil && n != len(p) {
			err = io.ErrShortWrite
		}
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		wroteAny = true
	}
	if wroteAny || firstErr == nil {
		return len(p), nil
	}
	return 0, firstErr
}
