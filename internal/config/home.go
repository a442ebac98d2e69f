package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// HomeEnvVar overrides the coordinator home directory.
const HomeEnvVar = "COORDINATOR_HOME"

// HomeDirName is the per-project directory holding config and history.
const HomeDirName = ".coordinator"

// Home returns the coordinator home directory, rooted at the current
// working directory unless COORDINATOR_HOME is set.
func Home() (string, error) {
	return HomeWithRoot("")
}

// HomeWithRoot resolves the coordinator home directory.
// Priority order:
//  1. COORDINATOR_HOME environment variable (if set)
//  2. <root>/.coordinator when root is non-empty
//  3. <cwd>/.coordinator
//
// The directory is created if it doesn't exist.
func HomeWithRoot(root string) (string, error) {
	if home := os.Getenv(HomeEnvVar); home != "" {
		return home, nil
	}

	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
		root = cwd
	}

	home := filepath.Join(root, HomeDirName)
	if err := os.MkdirAll(home, 0755); err != nil {
		return "", fmt.Errorf("create coordinator home directory: %w", err)
	}
	return home, nil
}

// DefaultHistoryDBPath returns $COORDINATOR_HOME/history/coordinations.db.
func DefaultHistoryDBPath() (string, error) {
	home, err := Home()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "history", "coordinations.db"), nil
}
