package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Level is the minimum severity that gets written.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "debug",
	INFO:  "info",
	WARN:  "warn",
	ERROR: "error",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", int(l))
}

func (l Level) logrus() logrus.Level {
	switch l {
	case DEBUG:
		return logrus.DebugLevel
	case WARN:
		return logrus.WarnLevel
	case ERROR:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// ParseLevel maps debug/info/warn/error (case-insensitive) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG, nil
	case "", "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	}
	return INFO, fmt.Errorf("unknown log level %q", s)
}

// Options configures the diagnostic logger.
type Options struct {
	Level Level
	// File, when set, receives a copy of every entry.
	File string
	// Output defaults to os.Stderr.
	Output io.Writer
	// RunID is attached to every entry as the "run" field.
	RunID string
}

// Logger writes diagnostics; results never go through it.
type Logger struct {
	mu          sync.Mutex
	entry       *logrus.Entry
	logFile     *os.File
	logFilePath string
}

var (
	defaultMu     sync.Mutex
	defaultLogger = newLogger(logrus.New(), "")
)

func newLogger(base *logrus.Logger, runID string) *Logger {
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006/01/02 15:04:05",
	})
	if base.Out == nil {
		base.SetOutput(os.Stderr)
	}
	entry := logrus.NewEntry(base)
	if runID != "" {
		entry = entry.WithField("run", runID)
	}
	return &Logger{entry: entry}
}

// Init replaces the package logger. It may be called more than once; the
// previous log file, if any, is closed.
func Init(opts Options) error {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var (
		logFile *os.File
		path    string
	)
	if opts.File != "" {
		abs, err := filepath.Abs(opts.File)
		if err != nil {
			return fmt.Errorf("resolve log file path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		logFile, err = os.OpenFile(abs, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(out, logFile)
		path = abs
	}

	base := logrus.New()
	base.SetOutput(out)
	base.SetLevel(opts.Level.logrus())

	l := newLogger(base, opts.RunID)
	l.logFile = logFile
	l.logFilePath = path

	defaultMu.Lock()
	prev := defaultLogger
	defaultLogger = l
	defaultMu.Unlock()

	if prev != nil && prev.logFile != nil {
		_ = prev.logFile.Close()
	}
	return nil
}

// Close closes the log file opened by Init.
func Close() error {
	l := current()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logFile == nil {
		return nil
	}
	err := l.logFile.Close()
	l.logFile = nil
	return err
}

// GetLogFilePath returns the absolute log file path, or "" when logging
// only to the console.
func GetLogFilePath() string {
	return current().logFilePath
}

// Enabled reports whether entries at level would be written.
func Enabled(level Level) bool {
	return current().entry.Logger.IsLevelEnabled(level.logrus())
}

// Writer returns the logger's underlying output.
func Writer() io.Writer {
	return current().entry.Logger.Out
}

func current() *Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultLogger
}

// Debug logs command lines and other detail shown only with DEBUG enabled.
func Debug(format string, args ...interface{}) {
	current().entry.Debugf(format, args...)
}

// Info logs progress.
func Info(format string, args ...interface{}) {
	current().entry.Infof(format, args...)
}

// Warn logs recoverable per-node problems.
func Warn(format string, args ...interface{}) {
	current().entry.Warnf(format, args...)
}

// Error logs failures.
func Error(format string, args ...interface{}) {
	current().entry.Errorf(format, args...)
}

// WithNode logs with a "node" field attached.
func WithNode(addr string) *logrus.Entry {
	return current().entry.WithField("node", addr)
}
