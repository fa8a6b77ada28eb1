// Package config provides configuration utilities for the application.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultDBPath is where the ledger database lives when the config
// does not say otherwise.
const DefaultDBPath = "$HOME/.local/share/loom/loom.db"

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}

// DatabasePath resolves the configured database path, falling back to
// the default location.
func DatabasePath(configured string) string {
	if configured == "" {
		configured = DefaultDBPath
	}
	return ExpandPath(configured)
}
