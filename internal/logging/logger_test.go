package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupLogger(t *testing.T) {
	originalLogger := defaultLogger
	defer func() {
		defaultLogger = originalLogger
	}()

	testCases := []struct {
		name          string
		level         LogLevel
		expectedLevel slog.Level
	}{
		{
			name:          "Debug level",
			level:         LevelDebug,
			expectedLevel: slog.LevelDebug,
		},
		{
			name:          "Info level",
			level:         LevelInfo,
			expectedLevel: slog.LevelInfo,
		},
		{
			name:          "Warn level",
			level:         LevelWarn,
			expectedLevel: slog.LevelWarn,
		},
		{
			name:          "Error level",
			level:         LevelError,
			expectedLevel: slog.LevelError,
		},
		{
			name:          "Invalid level defaults to Info",
			level:         LogLevel("invalid"),
			expectedLevel: slog.LevelInfo,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := parseLevel(tc.level); got != tc.expectedLevel {
				t.Errorf("parseLevel(%q) = %v, want %v", tc.level, got, tc.expectedLevel)
			}

			var buf bytes.Buffer
			SetupLogger(&buf, tc.level)

			if defaultLogger == nil {
				t.Fatal("defaultLogger is nil after setup")
			}

			Error("test message")
			if output := buf.String(); !strings.Contains(output, "test message") {
				t.Errorf("Expected message in output, got: %s", output)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	originalLogger := defaultLogger
	defer func() {
		defaultLogger = originalLogger
	}()

	var buf bytes.Buffer
	SetupLogger(&buf, LevelWarn)

	Debug("debug message")
	Info("info message")
	if buf.Len() != 0 {
		t.Errorf("Expected debug/info to be filtered at warn level, got: %s", buf.String())
	}

	Warn("warn message")
	Error("error message")
	output := buf.String()
	if !strings.Contains(output, "warn message") || !strings.Contains(output, "error message") {
		t.Errorf("Expected warn and error messages in output, got: %s", output)
	}
}

func TestLoggingFunctions(t *testing.T) {
	originalLogger := defaultLogger
	defer func() {
		defaultLogger = originalLogger
	}()

	var buf bytes.Buffer
	SetupLogger(&buf, LevelDebug)

	tests := []struct {
		name    string
		logFunc func(string, ...any)
		level   string
		message string
	}{
		{
			name:    "Debug logging",
			logFunc: Debug,
			level:   "DEBUG",
			message: "debug message",
		},
		{
			name:    "Info logging",
			logFunc: Info,
			level:   "INFO",
			message: "info message",
		},
		{
			name:    "Warn logging",
			logFunc: Warn,
			level:   "WARN",
			message: "warn message",
		},
		{
			name:    "Error logging",
			logFunc: Error,
			level:   "ERROR",
			message: "error message",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf.Reset()

			tc.logFunc(tc.message, "key", "value")

			output := buf.String()
			if !strings.Contains(strings.ToUpper(output), tc.level) {
				t.Errorf("Expected log level %s in output, got: %s", tc.level, output)
			}
			if !strings.Contains(output, tc.message) {
				t.Errorf("Expected message %q in output, got: %s", tc.message, output)
			}
			if !strings.Contains(output, "key") || !strings.Contains(output, "value") {
				t.Errorf("Expected key-value pair in output, got: %s", output)
			}
		})
	}
}

func TestSetupFileLogger(t *testing.T) {
	originalLogger := defaultLogger
	defer func() {
		defaultLogger = originalLogger
	}()

	path := filepath.Join(t.TempDir(), "tether.log")
	var buf bytes.Buffer
	SetupFileLogger(&buf, LevelInfo, path)

	Info("written to both sinks")

	if !strings.Contains(buf.String(), "written to both sinks") {
		t.Errorf("Expected message on primary writer, got: %s", buf.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "written to both sinks") {
		t.Errorf("Expected message in log file, got: %s", data)
	}
}

func TestMaskSensitive(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Empty string",
			input:    "",
			expected: "<not set>",
		},
		{
			name:     "Short string",
			input:    "abc",
			expected: "<set>",
		},
		{
			name:     "Exactly 4 characters",
			input:    "abcd",
			expected: "<set>",
		},
		{
			name:     "Long string",
			input:    "abcdefghijklm",
			expected: "abcd...***",
		},
		{
			name:     "Token-like string",
			input:    "2Dn5j8fk39Dkf0s",
			expected: "2Dn5...***",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := MaskSensitive(tc.input)
			if result != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, result)
			}
		})
	}
}

func TestGetLogger(t *testing.T) {
	if GetLogger() == nil {
		t.Fatal("GetLogger() returned nil")
	}
}
