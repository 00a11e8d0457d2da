// Package logging holds the debug logger shared by all gitflow packages.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Logger is the public logger instance accessible from all packages.
// It discards everything until Initialize enables debug output.
var Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))

// Initialize sets up the logger. Output is enabled by the --debug flag or
// GITFLOW_DEBUG=1 and written as JSON lines to debugFile, GITFLOW_DEBUG_FILE,
// or gitflow-debug.log in the temp directory, in that order of preference.
// It returns the path being written to, or "" when logging is disabled.
func Initialize(debug bool, debugFile string) (string, error) {
	if os.Getenv("GITFLOW_DEBUG") == "1" {
		debug = true
	}
	if envDebugFile := os.Getenv("GITFLOW_DEBUG_FILE"); envDebugFile != "" && debugFile == "" {
		debugFile = envDebugFile
	}

	if !debug {
		Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
		return "", nil
	}

	if debugFile == "" {
		debugFile = filepath.Join(os.TempDir(), "gitflow-debug.log")
	}
	if err := os.MkdirAll(filepath.Dir(debugFile), 0o755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}

	// #nosec G304 - path comes from the user's own flag or environment
	logFile, err := os.OpenFile(debugFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return "", fmt.Errorf("failed to create log file: %w", err)
	}

	Logger = slog.New(slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: slog.LevelDebug}))
	Logger.Info("Debug logging initialized", "log_file", debugFile, "pid", os.Getpid())
	return debugFile, nil
}
