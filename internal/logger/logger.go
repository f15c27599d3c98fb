package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"visionqa/internal/config"
)

// Log file names, one per level.
const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

// Logger provides leveled logging (info/warning/error) to rotating files and stdout/stderr.
type Logger struct {
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	logDir     string
	files      map[string]*lumberjack.Logger
	mu         sync.Mutex
}

// NewLogger creates a Logger and ensures the log directory exists.
func NewLogger(cfg *config.Config) (*Logger, error) {
	if err := os.MkdirAll(cfg.LogDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	l := &Logger{logDir: cfg.LogDirectory, files: make(map[string]*lumberjack.Logger)}

	infoFile := l.rotatingFile(InfoFile, cfg)
	warningFile := l.rotatingFile(WarningFile, cfg)
	errorFile := l.rotatingFile(ErrorFile, cfg)

	l.setupLoggers(
		io.MultiWriter(os.Stdout, infoFile),
		io.MultiWriter(os.Stdout, warningFile),
		io.MultiWriter(os.Stderr, errorFile),
	)
	return l, nil
}

// NewWithWriters creates a Logger writing each level to the given writer.
// It does not touch the filesystem; Dir returns "".
func NewWithWriters(info, warning, errw io.Writer) *Logger {
	l := &Logger{}
	l.setupLoggers(info, warning, errw)
	return l
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return NewWithWriters(io.Discard, io.Discard, io.Discard)
}

// setupLoggers initializes per-level loggers.
func (l *Logger) setupLoggers(info, warning, errw io.Writer) {
	l.infoLog = log.New(info, "ℹ️  INFO    ", log.Ldate|log.Ltime|log.Lshortfile)
	l.warningLog = log.New(warning, "⚠️  WARNING ", log.Ldate|log.Ltime|log.Lshortfile)
	l.errorLog = log.New(errw, "❌ ERROR   ", log.Ldate|log.Ltime|log.Lshortfile)
}

// rotatingFile opens a size-rotated log file in the log directory.
func (l *Logger) rotatingFile(name string, cfg *config.Config) io.Writer {
	w := &lumberjack.Logger{
		Filename:   filepath.Join(l.logDir, name),
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		Compress:   true,
	}
	l.files[name] = w
	return w
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoLog.Output(2, fmt.Sprintf(format, v...))
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warningLog.Output(2, fmt.Sprintf(format, v...))
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorLog.Output(2, fmt.Sprintf(format, v...))
}

// Dir returns the directory holding the log files.
func (l *Logger) Dir() string {
	return l.logDir
}

// Rotate starts a fresh file for the named log and keeps the old one as a backup.
func (l *Logger) Rotate(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.files[name]
	if !ok {
		return fmt.Errorf("unknown log file %q", name)
	}
	return w.Rotate()
}

// Close closes the rotating log files.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for name, w := range l.files {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(l.files, name)
	}
	return firstErr
}
