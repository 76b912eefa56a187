// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelNotice logs notices and above. Notices are warn-level events
	// tagged with severity=notice.
	LevelNotice LogLevel = "notice"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// SeverityField marks events whose severity has no zerolog level of its own.
const SeverityField = "severity"

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	// Ignored when FilePath is set.
	Output io.Writer

	// FilePath enables a size-rotated log file (optional).
	FilePath string

	// MaxSizeMB is the rotation size of the log file (default: 100).
	MaxSizeMB int

	// MaxBackups is the number of rotated files to keep (default: 0, all).
	MaxBackups int

	// Compress gzips rotated files.
	Compress bool
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger. When the log file directory
// can't be created, output falls back to stderr and a warning is logged.
func Setup(cfg Config) zerolog.Logger {
	// Set global log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	// Configure output
	output, outErr := buildOutput(cfg)
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	// Create logger with timestamp
	logger := zerolog.New(output).With().Timestamp().Logger()

	// Set as global logger
	log.Logger = logger

	if outErr != nil {
		logger.Warn().Err(outErr).Str("path", cfg.FilePath).Msg("Log file unavailable, using stderr")
	}

	return logger
}

// buildOutput returns the configured writer, or stderr with an error when
// the log file can't be prepared.
func buildOutput(cfg Config) (io.Writer, error) {
	if cfg.FilePath == "" {
		if cfg.Output == nil {
			return os.Stderr, nil
		}
		return cfg.Output, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return os.Stderr, fmt.Errorf("create log directory: %w", err)
	}

	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 100
	}

	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    maxSize,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
		LocalTime:  true,
	}, nil
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "notice", "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Notice starts a notice event on l: a condition worth surfacing that is
// neither a failure nor routine, such as a resource absent from every tier.
func Notice(l *zerolog.Logger) *zerolog.Event {
	return l.Warn().Str(SeverityField, "notice")
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Tier lookups (hit/miss, key, tier)
//   - Fetch attempts and retries
//   - Promotion writes
//
// Info: Normal operation events
//   - Cache directory created or found
//   - Server startup/shutdown
//   - Prefetch summaries
//
// Notice: Expected but noteworthy outcomes
//   - Resource absent from every tier (network miss)
//
// Warn: Warning conditions that don't prevent operation
//   - Retry attempts exhausted
//   - Log file fallback
//
// Error: Error conditions requiring attention
//   - Disk or Redis I/O failures (tier degraded, value still served)
//   - Cache directory creation failure
//   - Configuration errors
//
// Context Fields:
//   - component: emitting package
//   - cache: cache instance name
//   - load_id: identifier of one load
//   - key: cache key
//   - tier: tier name (memory, disk, redis, network)
//   - url: requested URL
//   - path: disk file path
//   - status_code: HTTP status code
//   - error_class: Error classification (client, server, network)
