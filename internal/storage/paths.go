package storage

import (
	"os"
	"path/filepath"
)

// PathManager resolves the on-disk locations used by the local stores.
// Constructed explicitly and passed down; there is no package-level instance.
type PathManager struct {
	homeDir    string
	patternDir string
}

// NewPathManager creates a path manager rooted at ~/.pattern.
func NewPathManager() *PathManager {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home dir is not available
		homeDir = "."
	}
	return &PathManager{
		homeDir:    homeDir,
		patternDir: filepath.Join(homeDir, ".pattern"),
	}
}

// NewPathManagerAt creates a path manager rooted at an explicit directory,
// used by tests and by the --data-dir flag.
func NewPathManagerAt(dir string) *PathManager {
	return &PathManager{homeDir: dir, patternDir: dir}
}

// DataDir returns the main data directory, creating it if needed.
func (pm *PathManager) DataDir() (string, error) {
	if err := os.MkdirAll(pm.patternDir, 0755); err != nil {
		return "", err
	}
	return pm.patternDir, nil
}

// HistoryDatabasePath returns the path of the report cache database.
func (pm *PathManager) HistoryDatabasePath() (string, error) {
	dir, err := pm.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// ProfileDatabasePath returns the path of the profile store database.
func (pm *PathManager) ProfileDatabasePath() (string, error) {
	dir, err := pm.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "profiles.db"), nil
}

// ConfigPath returns the path of the local configuration file.
func (pm *PathManager) ConfigPath() (string, error) {
	dir, err := pm.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}
