package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// rotation limits for the debug log file
	maxLogSizeMB  = 10
	maxLogBackups = 3
	maxLogAgeDays = 28
)

// Logger defines the common logging interface used throughout the application.
// It provides a standardized way to emit log messages at different levels of importance,
// with a clear separation between internal (debug) logs and user-facing messages.
//
// The interface is designed to handle both internal logging needs (Info, Warning, Error)
// and user communication (InfoToUser, WarningToUser, Success, StatusMessage).
type Logger interface {
	// Private logging methods (typically written only to log file)

	// Info logs an informational message for debugging purposes.
	// These messages are only written to the log file.
	//
	// The format string follows fmt.Printf style formatting.
	Info(format string, args ...interface{})

	// Warning logs a warning message for debugging purposes.
	// These messages indicate potential issues that are not critical failures.
	// They are shown on stdout as well when verbose mode is enabled.
	//
	// The format string follows fmt.Printf style formatting.
	Warning(format string, args ...interface{})

	// Error logs an error message. Errors are always shown on stderr.
	//
	// The format string follows fmt.Printf style formatting.
	Error(format string, args ...interface{})

	// User-facing logging methods (typically written to both file and stdout)

	// InfoToUser logs an informational message intended for users.
	//
	// The format string follows fmt.Printf style formatting.
	InfoToUser(format string, args ...interface{})

	// WarningToUser logs a warning message intended for users.
	//
	// The format string follows fmt.Printf style formatting.
	WarningToUser(format string, args ...interface{})

	// Success logs a success message to the user.
	//
	// The format string follows fmt.Printf style formatting.
	Success(format string, args ...interface{})

	// StatusMessage writes a bare line to stdout. It is used for the startup
	// banner, the session summary and the port announcement, which other
	// processes parse, so no prefix is added.
	//
	// The format string follows fmt.Printf style formatting.
	StatusMessage(format string, args ...interface{})

	// Close flushes and closes the log file.
	Close() error
}

// DefaultLogger implements Logger on top of logrus. When debug logging is
// enabled, entries go to a size-rotated file.
type DefaultLogger struct {
	mu      sync.Mutex
	logger  *logrus.Logger
	enabled bool
	logFile string
	verbose bool
	stdout  io.Writer
	stderr  io.Writer
	rotator *lumberjack.Logger
}

// New creates a new Logger instance
func New(enabled bool, logFile string, verbose bool) Logger {
	return NewWithOutput(enabled, logFile, verbose, os.Stdout, os.Stderr)
}

// NewWithOutput creates a DefaultLogger with custom output writers
func NewWithOutput(enabled bool, logFile string, verbose bool, stdout, stderr io.Writer) *DefaultLogger {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	var rotator *lumberjack.Logger

	if enabled && logFile != "" {
		logDir := filepath.Dir(logFile)
		if logDir != "." {
			if err := os.MkdirAll(logDir, 0o755); err != nil {
				_, _ = fmt.Fprintf(stderr, "⚠️ Failed to create log directory: %v\n", err)
			}
		}

		rotator = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    maxLogSizeMB,
			MaxBackups: maxLogBackups,
			MaxAge:     maxLogAgeDays,
		}

		// lumberjack opens lazily; a zero-length write surfaces open errors now.
		if _, err := rotator.Write(nil); err != nil {
			_, _ = fmt.Fprintf(stderr, "⚠️ Failed to open log file: %v, using stderr instead\n", err)
			rotator = nil
		}
	}

	if rotator != nil {
		logger.SetOutput(rotator)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			DisableColors: true,
		})
		_, _ = fmt.Fprintf(stdout, "🔍 Debug logging enabled. Logs will be written to: %s\n", logFile)
		logger.Info("gitjournal debug logging started")
	} else {
		logger.SetOutput(stderr)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			DisableColors: !isTerminal(stderr),
		})
	}

	return &DefaultLogger{
		logger:  logger,
		enabled: enabled,
		logFile: logFile,
		verbose: verbose,
		stdout:  stdout,
		stderr:  stderr,
		rotator: rotator,
	}
}

// isTerminal reports whether w is a terminal file descriptor.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Info logs an informational message (file only)
func (l *DefaultLogger) Info(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return
	}

	l.logger.Info(fmt.Sprintf(format, args...))
}

// InfoToUser logs an informational message to both file and stdout
func (l *DefaultLogger) InfoToUser(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)

	if l.enabled {
		l.logger.Info(msg)
	}

	_, _ = fmt.Fprintf(l.stdout, "ℹ️  %s\n", msg)
}

// Success logs a success message to both file and stdout
func (l *DefaultLogger) Success(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)

	if l.enabled {
		l.logger.Info(msg)
	}

	_, _ = fmt.Fprintf(l.stdout, "✅ %s\n", msg)
}

// Warning logs a warning message
func (l *DefaultLogger) Warning(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)

	if l.enabled {
		l.logger.Warn(msg)
	}

	if l.verbose {
		_, _ = fmt.Fprintf(l.stdout, "⚠️  %s\n", msg)
	}
}

// WarningToUser logs a warning message to both file and stdout
func (l *DefaultLogger) WarningToUser(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)

	if l.enabled {
		l.logger.Warn(msg)
	}

	_, _ = fmt.Fprintf(l.stdout, "⚠️  %s\n", msg)
}

// Error logs an error message
func (l *DefaultLogger) Error(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)

	if l.enabled {
		l.logger.Error(msg)
	}

	_, _ = fmt.Fprintf(l.stderr, "❌ %s\n", msg)
}

// StatusMessage prints a status message to stdout only (no logging)
func (l *DefaultLogger) StatusMessage(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, _ = fmt.Fprintf(l.stdout, format+"\n", args...)
}

// Close closes the rotating log file, if one is open.
func (l *DefaultLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rotator != nil {
		err := l.rotator.Close()
		l.rotator = nil
		return err
	}
	return nil
}

// SetStdout sets a custom writer for user-facing stdout messages only.
// NOTE: This does not affect where logrus entries are directed.
func (l *DefaultLogger) SetStdout(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stdout = w
}

// SetStderr sets a custom writer for user-facing stderr messages only.
// NOTE: This does not affect where logrus entries are directed.
func (l *DefaultLogger) SetStderr(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stderr = w
}
