package initcmd

import (
	"fmt"
	"os"
)

// BackupFile copies an existing file to path+".bak" before it is
// overwritten. Returns empty string if no backup was needed.
func BackupFile(path string) (string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", nil
	}

	backupPath := path + ".bak"

	// Remove existing backup if present
	_ = os.Remove(backupPath)

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read existing file: %w", err)
	}

	if err := os.WriteFile(backupPath, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}

	return backupPath, nil
}

// FileExists checks if a file exists at the given path.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
