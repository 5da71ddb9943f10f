// Package logging provides the unified logging system for codebridge.
// It supports console output and session log files, both backed by zap.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Level represents log severity levels.
type Level int

const (
	// LevelDebug logs everything, including verbose debugging information.
	LevelDebug Level = iota
	// LevelInfo logs informational messages and above.
	LevelInfo
	// LevelWarn logs warnings and errors only.
	LevelWarn
	// LevelError logs only error messages.
	LevelError
)

// String returns the string representation of a log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// zapLevel maps a Level onto the zap equivalent.
func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel converts a string to a Level.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level for console output.
	Level Level

	// DebugMode forces debug level and records task events.
	DebugMode bool

	// LogDir is the directory for session log files.
	// Empty disables file logging.
	LogDir string

	// Verbose enables debug-level console output.
	Verbose bool
}

// DefaultLogDir is the default directory for session logs (relative to cwd).
const DefaultLogDir = ".codebridge/logs"

// ConfigFromEnv creates a Config from environment variables.
//
// Environment variables:
//   - CODEBRIDGE_DEBUG: Set to "1" to enable debug mode
//   - CODEBRIDGE_LOG_DIR: Override the session log directory
//   - CODEBRIDGE_LOG_LEVEL: Console log level (debug, info, warn, error)
func ConfigFromEnv() Config {
	cfg := Config{
		Level:  LevelInfo,
		LogDir: DefaultLogDir,
	}

	if os.Getenv("CODEBRIDGE_DEBUG") == "1" {
		cfg.DebugMode = true
		cfg.Level = LevelDebug
	}

	if dir := os.Getenv("CODEBRIDGE_LOG_DIR"); dir != "" {
		cfg.LogDir = dir
	}

	if level := os.Getenv("CODEBRIDGE_LOG_LEVEL"); level != "" && !cfg.DebugMode {
		cfg.Level = ParseLevel(level)
	}

	return cfg
}

// WithVerbose returns a copy of the config with verbose mode enabled.
func (c Config) WithVerbose(enabled bool) Config {
	c.Verbose = enabled
	if enabled {
		c.Level = LevelDebug
	}
	return c
}

// WithLevel returns a copy of the config with the specified level.
func (c Config) WithLevel(level Level) Config {
	c.Level = level
	return c
}

// WithLogDir returns a copy of the config writing session logs to dir.
func (c Config) WithLogDir(dir string) Config {
	c.LogDir = dir
	return c
}
