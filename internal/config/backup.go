package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const (
	MaxBackups   = 3      // backups kept per config file
	BackupSuffix = ".bak" // marks backup copies, followed by a timestamp
)

// backupName builds the timestamped backup path for a config file.
func backupName(path string) string {
	return path + BackupSuffix + "." + time.Now().Format("20060102-150405")
}

// copyFile duplicates src into dst with config file permissions.
func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}

// BackupConfigFile creates a timestamped backup of the given config file.
// Returns the backup file path on success. If the file doesn't exist,
// returns empty string and nil error.
func BackupConfigFile(path string) (string, error) {
	if !fileExists(path) {
		return "", nil // Nothing to back up
	}

	backupPath := backupName(path)
	if err := copyFile(path, backupPath); err != nil {
		return "", fmt.Errorf("failed to back up config: %w", err)
	}

	// Best-effort cleanup; the backup itself already succeeded
	_ = pruneBackups(path)

	return backupPath, nil
}

// BackupUserConfig backs up the user-level config file.
func BackupUserConfig() (string, error) {
	return BackupConfigFile(GetUserConfigPath())
}

// ListConfigBackups finds every backup of the given config file, newest
// first.
func ListConfigBackups(path string) ([]string, error) {
	dir := filepath.Dir(path)
	prefix := filepath.Base(path) + BackupSuffix + "."

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil // No directory = no backups
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	type backup struct {
		path    string
		modTime time.Time
	}
	var found []backup
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		found = append(found, backup{filepath.Join(dir, entry.Name()), info.ModTime()})
	}

	slices.SortFunc(found, func(a, b backup) int {
		return b.modTime.Compare(a.modTime)
	})

	var paths []string
	for _, b := range found {
		paths = append(paths, b.path)
	}
	return paths, nil
}

// pruneBackups removes backups beyond MaxBackups, keeping the newest.
func pruneBackups(path string) error {
	backups, err := ListConfigBackups(path)
	if err != nil {
		return err
	}
	if len(backups) > MaxBackups {
		for _, stale := range backups[MaxBackups:] {
			_ = os.Remove(stale) // Best effort
		}
	}
	return nil
}

// RestoreConfigFile restores a config file from a backup.
// The current file (if any) is backed up before restore.
func RestoreConfigFile(backupPath, path string) error {
	if _, err := os.Stat(backupPath); err != nil {
		return fmt.Errorf("backup file not found: %w", err)
	}

	if fileExists(path) {
		if _, err := BackupConfigFile(path); err != nil {
			return fmt.Errorf("failed to back up existing config before restore: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := copyFile(backupPath, path); err != nil {
		return fmt.Errorf("failed to restore config: %w", err)
	}
	return nil
}
