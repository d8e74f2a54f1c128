package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.docsmcp/logs/).
// Falls back to the temp directory when no home directory is available.
func DefaultLogDir() string {
	base, err := os.UserHomeDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, ".docsmcp", "logs")
}

// DefaultLogPath is where the server writes its log by default.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "docsmcp.log")
}

// FindLogFile resolves the log file for viewing: the explicit path when one
// is given, otherwise the default server log. Errors when the resolved file
// does not exist.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("log file not found: %s", explicit)
		}
		return explicit, nil
	}

	path := DefaultLogPath()
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("no log file found. Server may not have run yet.\nExpected at: %s", path)
	}
	return path, nil
}
