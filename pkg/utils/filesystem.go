package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// StateDirName is the working-directory dotfolder holding local state:
// the default SQLite database and persisted vectors.
const StateDirName = ".baton"

// EnsureParentDir creates the directory containing path. SQLite will
// not create missing parent directories on open, so the default state
// dir has to exist before the first connection.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
