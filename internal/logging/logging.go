// Package logging provides a unified logging system for codebridge.
//
// The logging system has two output channels, both zap cores:
//   - Console (stderr): Human-readable lines, respects log level
//   - File (.codebridge/logs/): JSON session logs, always captures all levels
//
// Usage:
//
//	log, err := logging.Init(logging.ConfigFromEnv())
//	if err != nil {
//	    // handle error
//	}
//	defer log.Close()
//
//	log.Info("Starting bridge")
//	log.Debug("Verbose info", logging.F("key", "value"))
//	log.Event(logging.EventTaskStart, logging.Project("demo"))
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the main logging interface.
type Logger struct {
	config  Config
	zl      *zap.Logger
	level   zap.AtomicLevel
	file    *FileWriter
	metrics *Metrics

	// Current component prefix (e.g., "router", "executor")
	prefix string
}

// global logger instance
var (
	globalLogger *Logger
	globalMu     sync.RWMutex
)

// Init initializes the global logger with the given configuration.
// This should be called early in main() before any logging occurs.
func Init(cfg Config) (*Logger, error) {
	globalMu.Lock()
	defer globalMu.Unlock()

	logger, err := New(cfg)
	if err != nil {
		return nil, err
	}

	globalLogger = logger
	return logger, nil
}

// New creates a new Logger writing to stderr and, when cfg.LogDir is set,
// to a session log file.
func New(cfg Config) (*Logger, error) {
	return newLogger(cfg, os.Stderr), nil
}

// NewWithWriter creates a Logger whose console output goes to w.
func NewWithWriter(cfg Config, w io.Writer) *Logger {
	return newLogger(cfg, w)
}

func newLogger(cfg Config, console io.Writer) *Logger {
	consoleLevel := cfg.Level
	if cfg.Verbose || cfg.DebugMode {
		consoleLevel = LevelDebug
	}
	level := zap.NewAtomicLevelAt(consoleLevel.zapLevel())

	cores := []zapcore.Core{newConsoleCore(console, level)}

	var file *FileWriter
	if cfg.LogDir != "" {
		file = NewFileWriter(cfg.LogDir)
		cores = append(cores, newFileCore(file))
	}

	return &Logger{
		config:  cfg,
		zl:      zap.New(zapcore.NewTee(cores...)),
		level:   level,
		file:    file,
		metrics: NewMetrics(),
	}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{
		zl:      zap.NewNop(),
		level:   zap.NewAtomicLevelAt(zapcore.ErrorLevel),
		metrics: NewMetrics(),
	}
}

// Global returns the global logger instance.
// Returns nil if Init has not been called.
func Global() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// WithPrefix returns a new logger with the given prefix.
// The prefix appears in log output as [prefix].
func (l *Logger) WithPrefix(prefix string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{
		config:  l.config,
		zl:      l.zl.Named(prefix),
		level:   l.level,
		file:    l.file,
		metrics: l.metrics,
		prefix:  prefix,
	}
}

// With returns a logger that adds fields to every entry.
func (l *Logger) With(fields ...Field) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{
		config:  l.config,
		zl:      l.zl.With(zapFields(fields)...),
		level:   l.level,
		file:    l.file,
		metrics: l.metrics,
		prefix:  l.prefix,
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...Field) {
	if l == nil {
		return
	}
	l.zl.Debug(msg, zapFields(fields)...)
}

// Info logs an informational message.
func (l *Logger) Info(msg string, fields ...Field) {
	if l == nil {
		return
	}
	l.zl.Info(msg, zapFields(fields)...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...Field) {
	if l == nil {
		return
	}
	l.zl.Warn(msg, zapFields(fields)...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...Field) {
	if l == nil {
		return
	}
	l.zl.Error(msg, zapFields(fields)...)
}

// Event logs a structured event. Events are debug-level records carrying
// an "event" field so they can be filtered out of the session log.
func (l *Logger) Event(eventType string, fields ...Field) {
	if l == nil {
		return
	}
	l.zl.Debug(eventType, append(zapFields(fields), zap.String("event", eventType))...)
}

// NewRequestID generates a new request correlation ID.
func (l *Logger) NewRequestID() string {
	return GenerateRequestID()
}

// GenerateRequestID returns a fresh request correlation ID.
func GenerateRequestID() string {
	return "req_" + uuid.NewString()[:8]
}

// Metrics returns the metrics collector.
func (l *Logger) Metrics() *Metrics {
	if l == nil {
		return nil
	}
	return l.metrics
}

// IsDebugEnabled returns true if debug logging is enabled on the console.
func (l *Logger) IsDebugEnabled() bool {
	if l == nil {
		return false
	}
	return l.level.Enabled(zapcore.DebugLevel)
}

// SetLevel sets the console log level.
func (l *Logger) SetLevel(level Level) {
	if l == nil {
		return
	}
	l.level.SetLevel(level.zapLevel())
}

// LogPath returns the session log file path, if one has been opened.
func (l *Logger) LogPath() string {
	if l == nil || l.file == nil {
		return ""
	}
	return l.file.GetPath()
}

// Close flushes the logger and closes the session file.
// This should be called on application exit.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}

	snap := l.metrics.Snapshot()
	l.zl.Info("session summary",
		zap.Int("tasks", snap.Tasks),
		zap.Int("failures", snap.Failures),
		zap.Float64("total_cost_usd", snap.TotalCost),
	)

	_ = l.zl.Sync()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Package-level convenience functions using the global logger

// Debug logs a debug message to the global logger.
func Debug(msg string, fields ...Field) {
	if l := Global(); l != nil {
		l.Debug(msg, fields...)
	}
}

// Info logs an informational message to the global logger.
func Info(msg string, fields ...Field) {
	if l := Global(); l != nil {
		l.Info(msg, fields...)
	}
}

// Warn logs a warning message to the global logger.
func Warn(msg string, fields ...Field) {
	if l := Global(); l != nil {
		l.Warn(msg, fields...)
	}
}

// LogError logs an error message to the global logger.
func LogError(msg string, fields ...Field) {
	if l := Global(); l != nil {
		l.Error(msg, fields...)
	}
}

// Close closes the global logger.
func Close() error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalLogger != nil {
		err := globalLogger.Close()
		globalLogger = nil
		return err
	}
	return nil
}

// DebugEnabled returns true if debug logging is enabled in the global logger.
func DebugEnabled() bool {
	if l := Global(); l != nil {
		return l.IsDebugEnabled()
	}
	return false
}
