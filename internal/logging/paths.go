package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.toolcore/logs/).
// Falls back to temp directory if home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".toolcore", "logs")
	}
	return filepath.Join(home, ".toolcore", "logs")
}

// DefaultLogPath returns the default server log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "server.log")
}

// LogSource represents the source of logs to view.
type LogSource string

const (
	// LogSourceServer is the retrieval server logs (default, and only
	// source today since the engine runs in-process).
	LogSourceServer LogSource = "server"
)

// FindLogFile attempts to find the log file for viewing.
// Priority:
// 1. Explicit path (if provided)
// 2. ~/.toolcore/logs/server.log (global)
//
// Returns an error if no log file is found.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}

	// Try global path
	globalPath := DefaultLogPath()
	if _, err := os.Stat(globalPath); err == nil {
		return globalPath, nil
	}

	return "", fmt.Errorf("no log file found. Server may not have run with --debug yet.\nExpected at: %s", globalPath)
}

// FindLogFileBySource finds log files based on the source type.
// Returns a list of log file paths that exist.
func FindLogFileBySource(source LogSource, explicit string) ([]string, error) {
	// Explicit path takes precedence
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return []string{explicit}, nil
		}
		return nil, fmt.Errorf("log file not found: %s", explicit)
	}

	var paths []string
	var checked []string

	switch source {
	case LogSourceServer:
		serverPath := DefaultLogPath()
		checked = append(checked, serverPath)
		if _, err := os.Stat(serverPath); err == nil {
			paths = append(paths, serverPath)
		}

	default:
		return nil, fmt.Errorf("unknown log source: %s (use: server)", source)
	}

	if len(paths) == 0 {
		hint := getLogHint(source)
		return nil, fmt.Errorf("no log files found for source '%s'.\nChecked: %v\n\n%s", source, checked, hint)
	}

	return paths, nil
}

// ParseLogSource parses a string into a LogSource.
func ParseLogSource(s string) LogSource {
	return LogSourceServer
}

// EnsureLogDir creates the log directory if it doesn't exist.
func EnsureLogDir() error {
	dir := DefaultLogDir()
	return os.MkdirAll(dir, 0o755)
}

// getLogHint returns a helpful message on how to generate logs for the given source.
func getLogHint(source LogSource) string {
	return "To generate server logs:\n  toolctl --debug serve"
}
