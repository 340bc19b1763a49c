// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLoggingConfig struct {
	logLevel  string
	logFormat string
	logFile   string
}

func (m *mockLoggingConfig) GetLogLevel() string  { return m.logLevel }
func (m *mockLoggingConfig) GetLogFormat() string { return m.logFormat }
func (m *mockLoggingConfig) GetLogFile() string   { return m.logFile }

// cleanLogEnv clears logging variables for the duration of a test
func cleanLogEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"LOG_LEVEL", "LOG_FORMAT", AppLogEnv} {
		t.Setenv(key, "")
	}
}

func TestInitializeFromEnv(t *testing.T) {
	tests := []struct {
		name          string
		logLevel      string
		logFormat     string
		expectedLevel slog.Level
	}{
		{name: "debug", logLevel: "DEBUG", logFormat: "text", expectedLevel: slog.LevelDebug},
		{name: "info json", logLevel: "INFO", logFormat: "json", expectedLevel: slog.LevelInfo},
		{name: "warn", logLevel: "WARN", expectedLevel: slog.LevelWarn},
		{name: "warning alias", logLevel: "warning", expectedLevel: slog.LevelWarn},
		{name: "error", logLevel: "ERROR", expectedLevel: slog.LevelError},
		{name: "empty defaults to debug", expectedLevel: slog.LevelDebug},
		{name: "invalid defaults to debug", logLevel: "LOUD", logFormat: "xml", expectedLevel: slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanLogEnv(t)
			t.Setenv("LOG_LEVEL", tt.logLevel)
			t.Setenv("LOG_FORMAT", tt.logFormat)

			defaultLogger = nil
			InitializeFromEnv()

			assert.Equal(t, tt.expectedLevel, GetLevel())
			assert.NotNil(t, defaultLogger)
		})
	}
}

func TestInitializeFromConfig(t *testing.T) {
	t.Run("config values override environment", func(t *testing.T) {
		cleanLogEnv(t)
		t.Setenv("LOG_LEVEL", "ERROR")

		InitializeFromConfig(&mockLoggingConfig{logLevel: "DEBUG", logFormat: "text"})

		assert.Equal(t, slog.LevelDebug, GetLevel())
		assert.True(t, IsDebugEnabled())
	})

	t.Run("empty config values fall back to environment", func(t *testing.T) {
		cleanLogEnv(t)
		t.Setenv("LOG_LEVEL", "WARN")

		InitializeFromConfig(&mockLoggingConfig{})

		assert.Equal(t, slog.LevelWarn, GetLevel())
	})

	t.Run("defaults to info after config load", func(t *testing.T) {
		cleanLogEnv(t)

		InitializeFromConfig(&mockLoggingConfig{})

		assert.Equal(t, slog.LevelInfo, GetLevel())
		assert.False(t, IsDebugEnabled())
	})

	t.Run("writes to configured file", func(t *testing.T) {
		cleanLogEnv(t)
		path := filepath.Join(t.TempDir(), "app.log")

		InitializeFromConfig(&mockLoggingConfig{logLevel: "INFO", logFile: path})
		MainLogger.Info("hello from test")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "hello from test")
		assert.Contains(t, string(data), "component=main")

		SetOutput(os.Stderr, "")
	})
}

func TestLogFileFallback(t *testing.T) {
	cleanLogEnv(t)
	t.Setenv(AppLogEnv, filepath.Join(t.TempDir(), "missing", "dir", "app.log"))

	// Unwritable path falls back to stderr instead of panicking
	InitializeFromEnv()
	assert.NotNil(t, defaultLogger)
}

func TestComponentLoggers(t *testing.T) {
	cleanLogEnv(t)
	InitializeFromEnv()

	var buf bytes.Buffer
	SetOutput(&buf, "json")
	defer SetOutput(os.Stderr, "")

	RetryLogger.Warn("attempt failed", "attempt", 1)
	ReassignLogger.Info("group reassigned", "group_id", "g1")

	out := buf.String()
	assert.Contains(t, out, `"component":"retry"`)
	assert.Contains(t, out, `"component":"reassign"`)
	assert.Contains(t, out, `"group_id":"g1"`)
}

func TestSetLevel(t *testing.T) {
	cleanLogEnv(t)
	original := GetLevel()
	defer SetLevel(original)

	SetLevel(slog.LevelError)
	assert.Equal(t, slog.LevelError, GetLevel())
	assert.False(t, IsDebugEnabled())

	SetLevel(slog.LevelDebug)
	assert.True(t, IsDebugEnabled())
}

func TestSetLevelKeepsFormat(t *testing.T) {
	cleanLogEnv(t)
	original := GetLevel()
	var buf bytes.Buffer
	SetOutput(&buf, "json")
	defer SetOutput(os.Stderr, "")
	defer SetLevel(original)

	SetLevel(slog.LevelInfo)
	ReassignLogger.Info("still json", "group_id", "g2")

	assert.Contains(t, buf.String(), `"msg":"still json"`)
	assert.Contains(t, buf.String(), `"group_id":"g2"`)
}

func TestGetLoggerAutoInitializes(t *testing.T) {
	cleanLogEnv(t)
	defaultLogger = nil

	logger := GetLogger("auto-init")
	assert.NotNil(t, logger)
	assert.NotNil(t, defaultLogger)
}
