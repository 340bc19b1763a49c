// logger.go - Centralized logging configuration for the label reassigner.
//
// This package provides structured logging on top of Go's slog package with
// configurable levels, text or JSON output, and component-based loggers.
//
// Key Features:
// - Structured logging with key-value pairs
// - Configurable log levels (DEBUG, INFO, WARN, ERROR)
// - Component-based loggers with automatic "component" attribute
// - Environment-based configuration before the config file is loaded
//
// Usage:
//   logger := logging.GetLogger("graph")
//   logger.Info("Fetched page", "groups", len(page.Items))
//   logger.Error("Patch failed", "group_id", id, "error", err)
//
// Configuration:
// - LOG_LEVEL: DEBUG, INFO, WARN or ERROR (default: DEBUG until config is loaded, INFO after)
// - LOG_FORMAT: "json" for JSON output, "text" for human-readable (default: text)
// - LABEL_REASSIGNER_APP_LOG: optional file path for diagnostic output
//
// Diagnostic logs are distinct from the failure log written by internal/failurelog.

package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// AppLogEnv names the environment variable that redirects diagnostic output to a file.
const AppLogEnv = "LABEL_REASSIGNER_APP_LOG"

var (
	defaultLogger *slog.Logger
	logLevel      slog.Level = slog.LevelDebug // Maximum verbosity until config is loaded
	logOutput     io.Writer  = os.Stderr
	logFormat     string
)

// Initialize sets up the global logger from environment variables.
// Used during early startup before the config object is available.
func Initialize() {
	InitializeFromEnv()
}

// InitializeFromEnv sets up logging from environment variables only.
func InitializeFromEnv() {
	logLevel = parseLevel(os.Getenv("LOG_LEVEL"), slog.LevelDebug)
	output := openOutput(os.Getenv(AppLogEnv))
	configure(output, os.Getenv("LOG_FORMAT"))
}

// LoggingConfig is implemented by configuration objects that carry logging settings.
type LoggingConfig interface {
	GetLogLevel() string
	GetLogFormat() string
	GetLogFile() string
}

// InitializeFromConfig reinitializes logging from a loaded configuration.
// Empty config values fall back to the environment.
func InitializeFromConfig(cfg LoggingConfig) {
	if defaultLogger != nil {
		defaultLogger.Debug("Transitioning from startup verbosity to configured logging")
	}

	levelStr := cfg.GetLogLevel()
	if levelStr == "" {
		levelStr = os.Getenv("LOG_LEVEL")
	}
	formatStr := cfg.GetLogFormat()
	if formatStr == "" {
		formatStr = os.Getenv("LOG_FORMAT")
	}
	fileStr := cfg.GetLogFile()
	if fileStr == "" {
		fileStr = os.Getenv(AppLogEnv)
	}

	// After config loading, default to INFO
	logLevel = parseLevel(levelStr, slog.LevelInfo)
	configure(openOutput(fileStr), formatStr)
	refreshComponentLoggers()

	defaultLogger.Debug("Logging reconfigured from config",
		"log_level", logLevel.String(),
		"log_format", strings.ToLower(formatStr),
		"log_file", fileStr)
}

// SetOutput redirects all loggers to w, keeping the current level. Intended for tests.
func SetOutput(w io.Writer, format string) {
	configure(w, format)
	refreshComponentLoggers()
}

func parseLevel(s string, fallback slog.Level) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return fallback
	}
}

func openOutput(path string) io.Writer {
	if path == "" {
		return os.Stderr
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		slog.Error("Failed to open application log file, using stderr", "file", path, "error", err)
		return os.Stderr
	}
	return file
}

func configure(output io.Writer, format string) {
	logOutput = output
	logFormat = strings.ToLower(format)
	opts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if logFormat == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}
	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// GetLogger returns a component-specific logger.
// The component name is attached to every entry for filtering.
func GetLogger(component string) *slog.Logger {
	if defaultLogger == nil {
		Initialize()
	}
	return defaultLogger.With("component", component)
}

// GetLevel returns the current log level
func GetLevel() slog.Level {
	return logLevel
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return logLevel <= slog.LevelDebug
}

// SetLevel sets the log level programmatically (useful for testing)
func SetLevel(level slog.Level) {
	logLevel = level
	configure(logOutput, logFormat)
	refreshComponentLoggers()
}

// Component-specific logger instances
var (
	AuthLogger     = GetLogger("auth")
	ConfigLogger   = GetLogger("config")
	GraphLogger    = GetLogger("graph")
	PagingLogger   = GetLogger("paging")
	RetryLogger    = GetLogger("retry")
	ReassignLogger = GetLogger("reassign")
	MainLogger     = GetLogger("main")
)

func refreshComponentLoggers() {
	AuthLogger = GetLogger("auth")
	ConfigLogger = GetLogger("config")
	GraphLogger = GetLogger("graph")
	PagingLogger = GetLogger("paging")
	RetryLogger = GetLogger("retry")
	ReassignLogger = GetLogger("reassign")
	MainLogger = GetLogger("main")
}
